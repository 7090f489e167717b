// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./docpipe.yaml or ~/.docpipe/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Embedding: model name, vector dimension, API endpoint and key
//   - Vector store: PostgreSQL + pgvector connection, collection name, metric
//   - Processing: chunk size, chunk overlap, batch size
//   - Web search: provider base URL, cache TTL
//   - Ranking: per-source score boost policy, summarization limits
//
// Security: API keys and passwords are never logged; MarshalJSON masks them.
// Validation: fail-fast range checks with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidChunkOverlap indicates the chunk overlap is out of range.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidBatchSize indicates the batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidDimension indicates the embedding dimension is out of range.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidMetric indicates the similarity metric is not supported.
	ErrInvalidMetric = errors.New("invalid similarity metric")

	// ErrInvalidCacheTTL indicates the web cache TTL is out of range.
	ErrInvalidCacheTTL = errors.New("invalid web cache TTL")

	// ErrInvalidBoost indicates a score boost multiplier is out of range.
	ErrInvalidBoost = errors.New("invalid score boost")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")
)

const (
	// DefaultEmbeddingModel is the default embedding model identifier.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDimension matches DefaultEmbeddingModel's output size.
	DefaultEmbeddingDimension = 1536

	// DefaultTokenizer is the tiktoken encoding used for token budgeting.
	DefaultTokenizer = "cl100k_base"

	// MetricCosine is the only similarity metric the store supports today.
	MetricCosine = "cosine"
)

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	BaseURL   string `mapstructure:"base_url" json:"base_url"`
	APIKey    string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Model     string `mapstructure:"model" json:"model"`
	Dimension int    `mapstructure:"dimension" json:"dimension"`
	// RequestsPerSecond paces outbound embedding calls (0 = unlimited).
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
}

// LLMConfig holds the completion provider settings used for RAG answers,
// result summaries and research generation.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url" json:"base_url"`
	APIKey      string  `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Model       string  `mapstructure:"model" json:"model"`
	Temperature float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`
}

// WebSearchConfig holds the live web-search provider settings.
type WebSearchConfig struct {
	// BaseURL is the SearXNG-compatible instance URL. Empty means the live
	// branch is unavailable and the cache runs in cached-only mode.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	// CacheTTLDays is the staleness window for cached web results.
	CacheTTLDays int `mapstructure:"cache_ttl_days" json:"cache_ttl_days"`
}

// BoostConfig is the per-source-type score multiplier policy applied at
// ranking time. These are tunable policy constants, not derived values.
type BoostConfig struct {
	Code     float64 `mapstructure:"code" json:"code"`
	Research float64 `mapstructure:"research" json:"research"`
	Web      float64 `mapstructure:"web" json:"web"`
	Doc      float64 `mapstructure:"doc" json:"doc"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	Embedding EmbeddingConfig `mapstructure:"embedding" json:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm" json:"llm"`
	WebSearch WebSearchConfig `mapstructure:"web_search" json:"web_search"`
	Boosts    BoostConfig     `mapstructure:"boosts" json:"boosts"`

	// Tokenizer is the tiktoken encoding name for token counting.
	Tokenizer string `mapstructure:"tokenizer" json:"tokenizer"`

	// Processing configuration
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`       // tokens
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"` // tokens
	BatchSize    int `mapstructure:"batch_size" json:"batch_size"`
	// BatchPauseMs is the cooperative inter-batch delay during indexing.
	BatchPauseMs int `mapstructure:"batch_pause_ms" json:"batch_pause_ms"`

	// Vector store configuration
	IndexName        string `mapstructure:"index_name" json:"index_name"`
	Metric           string `mapstructure:"metric" json:"metric"`
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Summarization fan-out limits
	MaxSummaries   int `mapstructure:"max_summaries" json:"max_summaries"`
	SummaryWorkers int `mapstructure:"summary_workers" json:"summary_workers"`

	// ConnectorBaseDir is where connector research projects are stored.
	ConnectorBaseDir string `mapstructure:"connector_base_dir" json:"connector_base_dir"`

	// ServeAddr is the HTTP listen address for serve mode.
	ServeAddr string `mapstructure:"serve_addr" json:"serve_addr"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("docpipe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".docpipe"))
	}

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults", "config_name", "docpipe.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Embedding defaults
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", DefaultEmbeddingModel)
	v.SetDefault("embedding.dimension", DefaultEmbeddingDimension)
	v.SetDefault("embedding.requests_per_second", 5.0)

	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 2000)

	// Tokenizer
	v.SetDefault("tokenizer", DefaultTokenizer)

	// Processing defaults
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 200)
	v.SetDefault("batch_size", 100)
	v.SetDefault("batch_pause_ms", 100)

	// Vector store defaults
	v.SetDefault("index_name", "connector-docs")
	v.SetDefault("metric", MetricCosine)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "docpipe")
	v.SetDefault("postgres_password", "docpipe_dev_password")
	v.SetDefault("postgres_db_name", "docpipe")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Web search defaults
	v.SetDefault("web_search.base_url", "")
	v.SetDefault("web_search.cache_ttl_days", 7)

	// Score boost policy. Empirical constants favoring source kinds judged
	// more information-dense per token; tune here, not in code.
	v.SetDefault("boosts.code", 1.3)
	v.SetDefault("boosts.research", 1.25)
	v.SetDefault("boosts.web", 1.1)
	v.SetDefault("boosts.doc", 1.0)

	// Summarization defaults
	v.SetDefault("max_summaries", 5)
	v.SetDefault("summary_workers", 5)

	v.SetDefault("connector_base_dir", "connectors")
	v.SetDefault("serve_addr", ":8080")
}

// bindEnvVariables binds environment variables explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("embedding.api_key", "OPENAI_API_KEY")
	mustBind("embedding.base_url", "EMBEDDING_BASE_URL")
	mustBind("embedding.model", "EMBEDDING_MODEL")
	mustBind("llm.api_key", "OPENAI_API_KEY")
	mustBind("llm.base_url", "LLM_BASE_URL")
	mustBind("llm.model", "LLM_MODEL")
	mustBind("web_search.base_url", "SEARXNG_BASE_URL")
	mustBind("web_search.cache_ttl_days", "WEB_CACHE_DAYS")
	mustBind("index_name", "DOCPIPE_INDEX_NAME")
	mustBind("chunk_size", "CHUNK_SIZE")
	mustBind("chunk_overlap", "CHUNK_OVERLAP")
	mustBind("batch_size", "BATCH_SIZE")
	mustBind("postgres_host", "DOCPIPE_POSTGRES_HOST")
	mustBind("postgres_port", "DOCPIPE_POSTGRES_PORT")
	mustBind("postgres_user", "DOCPIPE_POSTGRES_USER")
	mustBind("postgres_password", "DOCPIPE_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "DOCPIPE_POSTGRES_DB")
	mustBind("serve_addr", "DOCPIPE_SERVE_ADDR")
}

// Validate checks configuration ranges. Credentials are deliberately NOT
// validated here: a missing API key disables only the component that needs
// it, which is decided at wiring time (see ValidateEmbeddingCredentials).
func (c *Config) Validate() error {
	if c.ChunkSize < 50 || c.ChunkSize > 8192 {
		return fmt.Errorf("%w: %d (must be 50-8192 tokens)", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: %d (must be 0 <= overlap < chunk_size)", ErrInvalidChunkOverlap, c.ChunkOverlap)
	}
	if c.BatchSize < 1 || c.BatchSize > 1000 {
		return fmt.Errorf("%w: %d (must be 1-1000)", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.Embedding.Dimension < 1 || c.Embedding.Dimension > 8192 {
		return fmt.Errorf("%w: %d (must be 1-8192)", ErrInvalidDimension, c.Embedding.Dimension)
	}
	if c.Metric != MetricCosine {
		return fmt.Errorf("%w: %q (only %q is supported)", ErrInvalidMetric, c.Metric, MetricCosine)
	}
	if c.WebSearch.CacheTTLDays < 1 || c.WebSearch.CacheTTLDays > 365 {
		return fmt.Errorf("%w: %d (must be 1-365 days)", ErrInvalidCacheTTL, c.WebSearch.CacheTTLDays)
	}
	for name, b := range map[string]float64{
		"code": c.Boosts.Code, "research": c.Boosts.Research,
		"web": c.Boosts.Web, "doc": c.Boosts.Doc,
	} {
		if b < 1.0 || b > 3.0 {
			return fmt.Errorf("%w: %s=%g (must be 1.0-3.0)", ErrInvalidBoost, name, b)
		}
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	return nil
}

// ValidateEmbeddingCredentials reports whether the embedding component can
// be constructed. Called by the component, not by Load.
func (c *Config) ValidateEmbeddingCredentials() error {
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingAPIKey)
	}
	return nil
}

// ValidateLLMCredentials reports whether the completion component can be
// constructed.
func (c *Config) ValidateLLMCredentials() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingAPIKey)
	}
	return nil
}

// PostgresDSN returns the connection string for the vector store.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked to prevent substring matching; longer ones keep the first
// and last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.Embedding.APIKey = maskSecret(a.Embedding.APIKey)
	a.LLM.APIKey = maskSecret(a.LLM.APIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
