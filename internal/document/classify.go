package document

import "strings"

// categoryGeneral is assigned when no keyword matches.
const (
	categoryGeneral   = "GENERAL"
	objectTypeGeneral = "General"
)

// docCategories maps a category to the keywords that select it. Order
// matters: the first category with a matching keyword wins.
var docCategories = []struct {
	name     string
	keywords []string
}{
	{"SOAP", []string{"SOAP Web Services", "SuiteTalk"}},
	{"REST", []string{"REST Web Services", "REST API"}},
	{"GOVERNANCE", []string{"Governance", "Concurrency", "Limits", "Rate"}},
	{"PERMISSION", []string{"Permission", "Role", "Access"}},
	{"RECORD", []string{"Record", "Entity", "Transaction", "Item"}},
	{"SEARCH", []string{"Search", "Query", "SuiteQL"}},
	{"CUSTOM", []string{"Custom Record", "Custom Field", "Customization"}},
}

// objectKeywords are business object names recognized in filenames, most
// specific first where names overlap (InventoryItem before Item).
var objectKeywords = []string{
	"Customer", "Vendor", "Employee", "Contact", "Partner",
	"Invoice", "SalesOrder", "PurchaseOrder", "CreditMemo",
	"InventoryItem", "AssemblyItem", "ServiceItem", "Item",
	"Account", "Department", "Location", "Subsidiary",
	"JournalEntry", "Transaction", "Payment", "Deposit",
}

// classifyContentPrefix bounds how much content participates in category
// matching; keywords deep in a document say little about its topic.
const classifyContentPrefix = 500

// Classify derives a document category and business object type from a
// filename and an optional content sample. Filenames like
// "customer_rest.pdf" fall back to the REST category when nothing else
// matched.
func Classify(filename, content string) (category, objectType string) {
	name := strings.ToLower(filename)
	sample := strings.ToLower(content)
	if len(sample) > classifyContentPrefix {
		sample = sample[:classifyContentPrefix]
	}

	category = categoryGeneral
	for _, cat := range docCategories {
		for _, kw := range cat.keywords {
			k := strings.ToLower(kw)
			if strings.Contains(name, k) || (sample != "" && strings.Contains(sample, k)) {
				category = cat.name
				break
			}
		}
		if category != categoryGeneral {
			break
		}
	}

	objectType = objectTypeGeneral
	for _, obj := range objectKeywords {
		if strings.Contains(name, strings.ToLower(obj)) {
			objectType = obj
			break
		}
	}

	if category == categoryGeneral && (strings.Contains(name, "_rest") || strings.Contains(name, "rest.")) {
		category = "REST"
	}

	return category, objectType
}
