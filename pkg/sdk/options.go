package patentscope

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "file", "valkey" or "redis"
	dir      string
	addrs    []string
	password string
	prefix   string

	openAIKey     string
	openAIBaseURL string
	chatModel     string
	embedModel    string
	dimensions    int

	completer Completer
	embedder  Embedder
	executor  Executor

	bqProject string
	bqCreds   []byte

	table       string
	language    string
	rowLimit    int
	defaultFrom time.Time
	batchSize   int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithFileStore keeps the index artifacts as files under dir.
func WithFileStore(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "file"
		c.dir = dir
	})
}

// WithValkey keeps the index artifacts in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis keeps the index artifacts in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces artifact keys. Defaults to "patentscope:" for redis and valkey.
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.prefix = prefix
	})
}

// WithOpenAI uses an OpenAI-compatible API for both completions and embeddings.
// An empty baseURL targets api.openai.com. Explicit WithCompleter and WithEmbedder take precedence.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIBaseURL = baseURL
	})
}

// WithModels overrides the chat and embedding models used by WithOpenAI.
// dimensions <= 0 keeps the model's native size.
func WithModels(chat, embedding string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chatModel = chat
		c.embedModel = embedding
		c.dimensions = dimensions
	})
}

// WithCompleter sets the language model used for extraction and summaries.
func WithCompleter(l Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = l
	})
}

// WithEmbedder sets the text embedding provider.
// Required for Index and Similar; planning and summaries work without it.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithBigQuery runs searches on BigQuery. credentialsJSON is a service-account key;
// nil uses no explicit credentials.
func WithBigQuery(projectID string, credentialsJSON []byte) Option {
	return optionFunc(func(c *clientConfig) {
		c.bqProject = projectID
		c.bqCreds = credentialsJSON
	})
}

// WithExecutor replaces the BigQuery client with a custom statement runner.
func WithExecutor(e Executor) Option {
	return optionFunc(func(c *clientConfig) {
		c.executor = e
	})
}

// WithTable sets the publications table and the localized text language.
// Defaults: patents-public-data.patents.publications, "en".
func WithTable(table, language string) Option {
	return optionFunc(func(c *clientConfig) {
		c.table = table
		c.language = language
	})
}

// WithRowLimit caps the rows returned by one search. Defaults to 100.
func WithRowLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.rowLimit = n
	})
}

// WithDefaultFrom sets the publication date used when a request names none. Defaults to 2015-01-01.
func WithDefaultFrom(t time.Time) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultFrom = t
	})
}

// WithBatchSize sets the number of abstracts sent per embedding call. Defaults to 100.
func WithBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = n
	})
}

// WithLogger sets a structured logger for SDK operations.
// Operations are logged at Debug level on success and Warn on error.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK operation metrics with the given registerer.
// Metrics: patentscope_sdk_operations_total, patentscope_sdk_operation_duration_seconds.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
