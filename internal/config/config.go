// Package config loads the per-environment YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/patentscope/internal/domain/prompt"
)

// Storage drivers.
const (
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Config holds the patentscope configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Chat      ChatConfig      `yaml:"chat"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// LLMConfig holds the chat-completion provider settings.
type LLMConfig struct {
	Provider          string `yaml:"provider"`
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	MaxTokens         int    `yaml:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	TimeoutSec        int    `yaml:"timeout_sec"`
}

// EmbeddingConfig holds the embedding provider settings. Empty connection fields inherit from llm.
type EmbeddingConfig struct {
	APIKey            string `yaml:"api_key"`
	BaseURL           string `yaml:"base_url"`
	Model             string `yaml:"model"`
	Dimensions        int    `yaml:"dimensions"`
	BatchSize         int    `yaml:"batch_size"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	TimeoutSec        int    `yaml:"timeout_sec"`
	Cache             bool   `yaml:"cache"` // effective only with a redis/valkey storage driver
}

// WarehouseConfig holds the BigQuery settings.
type WarehouseConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	Table           string `yaml:"table"`
	Language        string `yaml:"language"`
	RowLimit        int    `yaml:"row_limit"`
	CredentialsEnv  string `yaml:"credentials_env"` // name of a variable holding the service-account JSON
	CredentialsFile string `yaml:"credentials_file"`
	Endpoint        string `yaml:"endpoint"`
	PageSize        int64  `yaml:"page_size"`
	PollIntervalMs  int    `yaml:"poll_interval_ms"`
	TimeoutSec      int    `yaml:"timeout_sec"`
}

// IndexConfig holds similarity index settings.
type IndexConfig struct {
	IndexKey   string `yaml:"index_key"`
	MappingKey string `yaml:"mapping_key"`
	DefaultK   int    `yaml:"default_k"`
	MaxK       int    `yaml:"max_k"`
}

// StorageConfig holds artifact storage settings.
type StorageConfig struct {
	Driver           string   `yaml:"driver"` // file, redis, valkey (default: file)
	Dir              string   `yaml:"dir"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// DefaultsConfig holds values substituted when the extractor leaves a field unusable.
type DefaultsConfig struct {
	PublicationFrom string `yaml:"publication_from"` // YYYY-MM-DD
}

// PromptsConfig holds the model instructions and fixed assistant replies.
type PromptsConfig struct {
	Extraction string `yaml:"extraction"` // may use {default_from}
	Proposal   string `yaml:"proposal"`
	Summary    string `yaml:"summary"`
	Apology    string `yaml:"apology"`
	Reentry    string `yaml:"reentry"`
}

// ChatConfig holds conversation session settings.
type ChatConfig struct {
	Confirm        *bool `yaml:"confirm"` // default true
	SessionTTLMin  int   `yaml:"session_ttl_min"`
	MaxSessions    int   `yaml:"max_sessions"`
	SweepPeriodSec int   `yaml:"sweep_period_sec"`
}

// ConfirmEnabled reports whether new sessions paraphrase and confirm requests.
func (c ChatConfig) ConfirmEnabled() bool { return c.Confirm == nil || *c.Confirm }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}

	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.LLM.APIKey
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = c.LLM.BaseURL
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 60
	}

	if c.Warehouse.Table == "" {
		c.Warehouse.Table = "patents-public-data.patents.publications"
	}
	if c.Warehouse.Language == "" {
		c.Warehouse.Language = "en"
	}
	if c.Warehouse.RowLimit <= 0 {
		c.Warehouse.RowLimit = 100
	}
	if c.Warehouse.TimeoutSec <= 0 {
		c.Warehouse.TimeoutSec = 120
	}

	if c.Index.IndexKey == "" {
		c.Index.IndexKey = "faiss.index"
	}
	if c.Index.MappingKey == "" {
		c.Index.MappingKey = "faiss_mapping.json"
	}
	if c.Index.DefaultK <= 0 {
		c.Index.DefaultK = 5
	}
	if c.Index.MaxK <= 0 {
		c.Index.MaxK = 100
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverFile
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}
	if c.Storage.KeyPrefix == "" && c.Storage.Driver != DriverFile {
		c.Storage.KeyPrefix = "patentscope:"
	}
	if c.Storage.ReadinessTimeout <= 0 {
		c.Storage.ReadinessTimeout = 10
	}

	if c.Defaults.PublicationFrom == "" {
		c.Defaults.PublicationFrom = "2015-01-01"
	}

	if c.Prompts.Extraction == "" {
		c.Prompts.Extraction = defaultExtractionPrompt
	}
	if c.Prompts.Proposal == "" {
		c.Prompts.Proposal = defaultProposalPrompt
	}
	if c.Prompts.Summary == "" {
		c.Prompts.Summary = defaultSummaryPrompt
	}
	if c.Prompts.Apology == "" {
		c.Prompts.Apology = "Sorry, I misunderstood. Please describe the patents you are looking for again."
	}
	if c.Prompts.Reentry == "" {
		c.Prompts.Reentry = "I could not turn that into a search filter. Please rephrase your request."
	}

	if c.Chat.SessionTTLMin <= 0 {
		c.Chat.SessionTTLMin = 30
	}
	if c.Chat.MaxSessions <= 0 {
		c.Chat.MaxSessions = 1000
	}
	if c.Chat.SweepPeriodSec <= 0 {
		c.Chat.SweepPeriodSec = 60
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.LLM.APIKey == "" {
		return errors.New("llm.api_key is required")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions)
	}
	if c.Index.DefaultK > c.Index.MaxK {
		return fmt.Errorf("index.default_k (%d) exceeds index.max_k (%d)", c.Index.DefaultK, c.Index.MaxK)
	}

	switch c.Storage.Driver {
	case DriverFile:
	case DriverRedis, DriverValkey:
		if len(c.Storage.Addrs) == 0 {
			return fmt.Errorf("storage.addrs is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver must be %q, %q or %q, got %q",
			DriverFile, DriverRedis, DriverValkey, c.Storage.Driver)
	}

	if _, err := c.DefaultFrom(); err != nil {
		return err
	}
	if _, err := c.ExtractionPrompt(); err != nil {
		return fmt.Errorf("prompts.extraction: %w", err)
	}
	return nil
}

// DefaultFrom parses defaults.publication_from.
func (c *Config) DefaultFrom() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, c.Defaults.PublicationFrom)
	if err != nil {
		return time.Time{}, fmt.Errorf("defaults.publication_from must be YYYY-MM-DD, got %q", c.Defaults.PublicationFrom)
	}
	return t, nil
}

// ExtractionPrompt builds the typed extraction template.
func (c *Config) ExtractionPrompt() (prompt.Template, error) {
	return prompt.New("extraction", c.Prompts.Extraction, map[string]prompt.Kind{
		"default_from": prompt.Date,
	})
}

// Credentials returns the service-account JSON from the credentials_env variable, falling back to
// credentials_file. Nil means the warehouse client uses no explicit credentials.
func (c *Config) Credentials() ([]byte, error) {
	if c.Warehouse.CredentialsEnv != "" {
		if v := os.Getenv(c.Warehouse.CredentialsEnv); v != "" {
			return []byte(v), nil
		}
	}
	if c.Warehouse.CredentialsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Clean(c.Warehouse.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("read warehouse credentials: %w", err)
	}
	return data, nil
}

// Seconds converts a *_sec setting.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
