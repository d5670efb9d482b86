package patentscope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/patentscope/internal/config"
	"github.com/kailas-cloud/patentscope/internal/db"
	dbFile "github.com/kailas-cloud/patentscope/internal/db/file"
	dbRedis "github.com/kailas-cloud/patentscope/internal/db/redis"
	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
	"github.com/kailas-cloud/patentscope/internal/repository/artifact"
	bqTransport "github.com/kailas-cloud/patentscope/internal/transport/bigquery"
	openaiTransport "github.com/kailas-cloud/patentscope/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/patentscope/internal/usecase/embedding"
	extractuc "github.com/kailas-cloud/patentscope/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/patentscope/internal/usecase/health"
	indexuc "github.com/kailas-cloud/patentscope/internal/usecase/index"
	searchuc "github.com/kailas-cloud/patentscope/internal/usecase/search"
	summaryuc "github.com/kailas-cloud/patentscope/internal/usecase/summary"
)

const defaultReadinessTimeout = 10 * time.Second

// Client runs the patent search pipeline in-process.
// It is safe for concurrent use; index builds exclude similarity queries.
type Client struct {
	store     db.Store
	extract   *extractuc.Service
	search    *searchuc.Service
	index     *indexuc.Service
	summary   *summaryuc.Service
	healthSvc healthUseCase
	defaults  time.Time
	obs       *observer

	hasWarehouse  bool
	hasEmbeddings bool

	indexMu sync.RWMutex
}

// New creates a Client. A store (WithFileStore, WithRedis or WithValkey) and a language model
// (WithOpenAI or WithCompleter) are required.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	// Defaults shared with the server configuration.
	base := config.Config{}
	base.ApplyDefaults()
	applyDefaults(cfg, &base)

	if cfg.driver == "" {
		return nil, errors.New("patentscope: storage required (use WithFileStore, WithRedis or WithValkey)")
	}
	if cfg.completer == nil && cfg.openAIKey == "" {
		return nil, errors.New("patentscope: language model required (use WithOpenAI or WithCompleter)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	extractionPrompt, err := base.ExtractionPrompt()
	if err != nil {
		return nil, err
	}
	compiler, err := searchuc.NewCompiler(searchuc.TableShape{Table: cfg.table, Language: cfg.language}, cfg.rowLimit)
	if err != nil {
		return nil, fmt.Errorf("patentscope: %w", err)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("patentscope: storage not ready: %w", err)
	}

	executor, err := createExecutor(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	var (
		completer domain.Completer
		embedder  domain.Embedder = &noopEmbedder{}
		provider  healthuc.ProviderChecker
	)
	if cfg.openAIKey != "" {
		llm := openaiTransport.NewClient(&openaiTransport.Config{
			APIKey:   cfg.openAIKey,
			BaseURL:  cfg.openAIBaseURL,
			Provider: base.LLM.Provider,
		})
		completer = openaiTransport.NewCompleter(llm, cfg.chatModel, 0)
		embedder = openaiTransport.NewEmbedder(llm, cfg.embedModel, cfg.dimensions)
		provider = llm
	}
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	}
	if cfg.embedder != nil {
		embedder = adaptEmbedder(cfg.embedder)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, base.LLM.Provider, cfg.embedModel, nil)

	extractSvc := extractuc.New(completer, extractionPrompt, cfg.defaultFrom)
	return &Client{
		store:   store,
		extract: extractSvc,
		search:  searchuc.New(extractSvc, compiler, executor),
		index: indexuc.New(
			artifact.New(store, cfg.prefix+base.Index.IndexKey, cfg.prefix+base.Index.MappingKey),
			embedder,
			cfg.batchSize,
		),
		summary:   summaryuc.New(completer, base.Prompts.Summary),
		healthSvc: healthuc.New(store, provider),
		defaults:  cfg.defaultFrom,
		obs:       obs,

		hasWarehouse:  executor != nil,
		hasEmbeddings: cfg.openAIKey != "" || cfg.embedder != nil,
	}, nil
}

func applyDefaults(cfg *clientConfig, base *config.Config) {
	if cfg.chatModel == "" {
		cfg.chatModel = base.LLM.Model
	}
	if cfg.embedModel == "" {
		cfg.embedModel = base.Embedding.Model
	}
	if cfg.table == "" {
		cfg.table = base.Warehouse.Table
	}
	if cfg.language == "" {
		cfg.language = base.Warehouse.Language
	}
	if cfg.rowLimit <= 0 {
		cfg.rowLimit = base.Warehouse.RowLimit
	}
	if cfg.batchSize <= 0 {
		cfg.batchSize = base.Embedding.BatchSize
	}
	if cfg.defaultFrom.IsZero() {
		// ApplyDefaults always sets a valid date.
		cfg.defaultFrom, _ = base.DefaultFrom()
	}
	if cfg.prefix == "" && cfg.driver != "" && cfg.driver != config.DriverFile {
		cfg.prefix = base.Storage.KeyPrefix
		if cfg.prefix == "" {
			cfg.prefix = "patentscope:"
		}
	}
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case config.DriverFile:
		s, err := dbFile.NewStore(cfg.dir)
		if err != nil {
			return nil, fmt.Errorf("patentscope: create file store: %w", err)
		}
		return s, nil
	case config.DriverValkey, config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Name:     cfg.driver,
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("patentscope: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("patentscope: unknown driver %q", cfg.driver)
	}
}

// createExecutor returns nil when neither WithExecutor nor WithBigQuery was given.
func createExecutor(ctx context.Context, cfg *clientConfig) (searchuc.Executor, error) {
	if cfg.executor != nil {
		return cfg.executor, nil
	}
	if cfg.bqProject == "" && cfg.bqCreds == nil {
		return nil, nil
	}
	exec, err := bqTransport.NewExecutor(ctx, bqTransport.Config{
		ProjectID:       cfg.bqProject,
		CredentialsJSON: cfg.bqCreds,
	})
	if err != nil {
		return nil, fmt.Errorf("patentscope: %w", err)
	}
	return exec, nil
}

// Close releases the storage connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks artifact storage.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Extract turns a free-text request into a filter.
func (c *Client) Extract(ctx context.Context, text string) (f Filter, drift []Drift, err error) {
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer func(start time.Time) { c.obs.observe("extract", start, usage, err) }(time.Now())

	sf, d, err := c.extract.Extract(ctx, text)
	if err != nil {
		return Filter{}, nil, err
	}
	return filterFromDomain(sf), driftFromDomain(d), nil
}

// Compile renders a filter as a BigQuery statement without running it.
func (c *Client) Compile(f Filter) (string, error) {
	sf, err := c.toDomainFilter(f)
	if err != nil {
		return "", err
	}
	return string(c.search.PlanFilter(sf).Statement), nil
}

// Search extracts a filter from text, runs it and returns the matching patents.
func (c *Client) Search(ctx context.Context, text string) (res SearchResult, err error) {
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer func(start time.Time) { c.obs.observe("search", start, usage, err) }(time.Now())

	if strings.TrimSpace(text) == "" {
		return SearchResult{}, fmt.Errorf("text is required: %w", ErrInvalidInput)
	}
	plan, rows, err := c.search.Search(ctx, text)
	if err != nil {
		return SearchResult{}, err
	}
	return resultFromPlan(plan, rows), nil
}

// SearchFilter runs an explicit filter without calling the language model.
func (c *Client) SearchFilter(ctx context.Context, f Filter) (res SearchResult, err error) {
	defer func(start time.Time) { c.obs.observe("search_filter", start, nil, err) }(time.Now())

	sf, err := c.toDomainFilter(f)
	if err != nil {
		return SearchResult{}, err
	}
	plan := c.search.PlanFilter(sf)
	rows, err := c.search.Run(ctx, plan.Statement)
	if err != nil {
		return SearchResult{}, err
	}
	return resultFromPlan(plan, rows), nil
}

// Index embeds the abstracts of patents and replaces the stored similarity index.
func (c *Client) Index(ctx context.Context, patents []Patent) (stats IndexStats, err error) {
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer func(start time.Time) { c.obs.observe("index", start, usage, err) }(time.Now())

	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	s, err := c.index.Build(ctx, rowsFromPatents(patents))
	if err != nil {
		return IndexStats{}, err
	}
	return statsFromDomain(s), nil
}

// Similar returns the k indexed patents closest to text, nearest first.
func (c *Client) Similar(ctx context.Context, text string, k int) (matches []Match, err error) {
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer func(start time.Time) { c.obs.observe("similar", start, usage, err) }(time.Now())

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", ErrInvalidInput)
	}

	c.indexMu.RLock()
	found, err := c.index.Query(ctx, text, k)
	c.indexMu.RUnlock()
	if err != nil {
		return nil, err
	}

	matches = make([]Match, len(found))
	for i, m := range found {
		matches[i] = Match{Patent: patentFromRow(m.Row), Distance: m.Distance}
	}
	return matches, nil
}

// Summarize condenses an abstract. Empty text yields an empty summary without a model call.
func (c *Client) Summarize(ctx context.Context, text string) (summary string, err error) {
	ctx, usage := domain.NewContextWithUsage(ctx)
	defer func(start time.Time) { c.obs.observe("summarize", start, usage, err) }(time.Now())

	return c.summary.Summarize(ctx, text)
}

// toDomainFilter validates f, substituting the default date when PublicationFrom is zero.
func (c *Client) toDomainFilter(f Filter) (filter.SearchFilter, error) {
	from := f.PublicationFrom
	if from.IsZero() {
		from = c.defaults
	}
	sf, err := filter.New(f.IPCCodes, f.Assignees, from)
	if err != nil {
		return filter.SearchFilter{}, fmt.Errorf("invalid filter: %v: %w", err, ErrInvalidInput)
	}
	return sf, nil
}
