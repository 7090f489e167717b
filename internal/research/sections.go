package research

// Section is one unit of the generated research document. Phase groups
// related sections; cancellation is observed between sections, so a
// section is the smallest unit of work a cancel can interrupt.
type Section struct {
	Number    int
	Name      string
	Phase     int
	PhaseName string
	Prompts   []string
}

// Sections defines the full research document, in generation order.
var Sections = []Section{
	{1, "Product Overview", 1, "Understand the Platform", []string{
		"What does {connector} do? Describe its purpose, target users, and main functionality.",
		"What are the key modules and features?",
		"What types of data entities does it store?",
		"What are the limitations of its data model?",
	}},
	{2, "Sandbox/Dev Environments", 1, "Understand the Platform", []string{
		"Does {connector} provide sandbox or developer environments?",
		"How do you request sandbox access (self-service, sales, partner)?",
		"Is sandbox permanent or temporary? What are refresh rules?",
	}},
	{3, "Pre-Call Configurations", 1, "Understand the Platform", []string{
		"What prerequisites must be configured before API access works?",
		"What integration/app registrations are required?",
		"Are there IP whitelists or redirect URI requirements?",
		"Provide a minimal health check code example.",
	}},
	{4, "Data Access Mechanisms", 2, "Data Access Mechanisms", []string{
		"What data access methods are available (REST, GraphQL, SOAP, JDBC, SDK, Webhooks)?",
		"For each method, what are the rate limits and auth types?",
		"Which method is best for historical extraction and which for incremental sync?",
	}},
	{5, "Authentication Mechanics", 2, "Data Access Mechanisms", []string{
		"What authentication methods are supported (OAuth 2.0, API Key, etc.)?",
		"What are the exact OAuth scopes required for data extraction?",
		"What roles/permissions are required? List exact permission names.",
	}},
	{6, "App Registration & User Consent", 2, "Data Access Mechanisms", []string{
		"What are the step-by-step instructions to register an app/integration?",
		"How does multi-tenant consent work?",
		"Can one app be used across multiple customer accounts?",
	}},
	{7, "Metadata Discovery & Schema Introspection", 2, "Data Access Mechanisms", []string{
		"What objects/entities are available? Create a catalog table.",
		"Are there OpenAPI/WSDL schema definitions available?",
		"How do you discover custom fields?",
	}},
	{8, "Sync Strategies", 3, "Sync Design & Extraction", []string{
		"For each object, what cursor field should be used for incremental sync?",
		"What window strategies work best (time-based, ID-based)?",
		"What load modes are supported (full load, incremental, CDC)?",
	}},
	{9, "Bulk Extraction & Billions of Rows", 3, "Sync Design & Extraction", []string{
		"What bulk/async APIs or export mechanisms are available?",
		"What are pagination rules and cursor fields?",
		"What are the max records per request?",
	}},
	{10, "Async Capabilities, Job Queues & Webhooks", 3, "Sync Design & Extraction", []string{
		"What async job mechanisms exist (bulk jobs, export tasks, reports)?",
		"How do you poll for job status?",
		"Can webhooks be used for incremental sync and delete detection?",
	}},
	{11, "Deletion Handling", 3, "Sync Design & Extraction", []string{
		"How are deletions represented (hard delete, soft delete, archive)?",
		"Is there a deleted items endpoint?",
		"Are audit logs or tombstone tables available?",
	}},
	{12, "Rate Limits, Quotas & Concurrency", 4, "Reliability & Performance", []string{
		"What are the exact rate limits (per minute, hour, day)?",
		"Are limits per user, per account, or per app?",
		"What is the recommended concurrency for bulk extraction?",
	}},
	{13, "API Failure Types & Retry Strategy", 4, "Reliability & Performance", []string{
		"What error codes indicate retryable errors and which non-retryable?",
		"What errors require re-authentication?",
		"What retry strategy is recommended?",
	}},
	{14, "Timeouts", 4, "Reliability & Performance", []string{
		"What are the default timeout settings?",
		"What are API-specific execution limits?",
		"What are empirical limits observed by the community?",
	}},
	{15, "Dependencies, Drivers & SDK Versions", 5, "Advanced Considerations", []string{
		"What official SDKs are available (Java, Python, Node)?",
		"What JDBC/ODBC drivers are available?",
		"What are the version compatibility requirements?",
	}},
	{16, "Operational Test Data & Runbooks", 5, "Advanced Considerations", []string{
		"How do you generate test data for historical loads?",
		"How do you insert, update, and delete test records?",
		"Which objects cannot have realistic test data generated?",
	}},
	{17, "Relationships, Refresher Tasks & Multi-Account", 5, "Advanced Considerations", []string{
		"What parent-child relationships exist between objects?",
		"What is the correct load order for related objects?",
		"How does multi-account setup work?",
	}},
	{18, "Common Issues & Troubleshooting", 6, "Troubleshooting", []string{
		"What are the top 10 common issues encountered?",
		"What are typical auth failures and their resolutions?",
		"What pagination, timeout and rate limit issues commonly occur?",
	}},
}
