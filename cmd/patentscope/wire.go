package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/config"
	"github.com/kailas-cloud/patentscope/internal/db"
	dbFile "github.com/kailas-cloud/patentscope/internal/db/file"
	dbRedis "github.com/kailas-cloud/patentscope/internal/db/redis"
	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/metrics"
	"github.com/kailas-cloud/patentscope/internal/repository/artifact"
	"github.com/kailas-cloud/patentscope/internal/repository/embcache"
	"github.com/kailas-cloud/patentscope/internal/repository/session"
	bqTransport "github.com/kailas-cloud/patentscope/internal/transport/bigquery"
	openaiTransport "github.com/kailas-cloud/patentscope/internal/transport/openai"
	conversationuc "github.com/kailas-cloud/patentscope/internal/usecase/conversation"
	embeddinguc "github.com/kailas-cloud/patentscope/internal/usecase/embedding"
	extractuc "github.com/kailas-cloud/patentscope/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/patentscope/internal/usecase/health"
	indexuc "github.com/kailas-cloud/patentscope/internal/usecase/index"
	searchuc "github.com/kailas-cloud/patentscope/internal/usecase/search"
	summaryuc "github.com/kailas-cloud/patentscope/internal/usecase/summary"
)

// app is the composition root shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	store  db.Store
	llm    *openaiTransport.Client

	extract      *extractuc.Service
	search       *searchuc.Service
	index        *indexuc.Service
	summary      *summaryuc.Service
	conversation *conversationuc.Service
	sessions     *session.Store
	health       *healthuc.Service
}

// newApp wires services from cfg. The warehouse client is created only when withWarehouse is set,
// so commands that never query BigQuery do not need Google credentials.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, withWarehouse bool) (*app, error) {
	defaultFrom, err := cfg.DefaultFrom()
	if err != nil {
		return nil, err
	}
	extractionPrompt, err := cfg.ExtractionPrompt()
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	llmClient := openaiTransport.NewClient(&openaiTransport.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Provider:          cfg.LLM.Provider,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		Timeout:           config.Seconds(cfg.LLM.TimeoutSec),
		Logger:            logger,
	})
	completer := openaiTransport.NewCompleter(llmClient, cfg.LLM.Model, cfg.LLM.MaxTokens)

	var executor searchuc.Executor
	if withWarehouse {
		exec, err := newExecutor(ctx, cfg, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		executor = exec
	}

	compiler, err := searchuc.NewCompiler(searchuc.TableShape{
		Table:    cfg.Warehouse.Table,
		Language: cfg.Warehouse.Language,
	}, cfg.Warehouse.RowLimit)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("warehouse: %w", err)
	}

	extractSvc := extractuc.New(completer, extractionPrompt, defaultFrom)
	searchSvc := searchuc.New(extractSvc, compiler, executor)

	prefix := cfg.Storage.KeyPrefix
	embedder := buildEmbedder(cfg, store, logger)
	indexSvc := indexuc.New(
		artifact.New(store, prefix+cfg.Index.IndexKey, prefix+cfg.Index.MappingKey),
		embedder,
		cfg.Embedding.BatchSize,
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		llm:     llmClient,
		extract: extractSvc,
		search:  searchSvc,
		index:   indexSvc,
		summary: summaryuc.New(completer, cfg.Prompts.Summary),
		conversation: conversationuc.New(completer, searchSvc, cfg.Prompts.Proposal, conversationuc.Messages{
			Apology: cfg.Prompts.Apology,
			Reentry: cfg.Prompts.Reentry,
		}),
		sessions: session.New(),
		health:   healthuc.New(store, llmClient),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func newStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverRedis, config.DriverValkey:
		// Valkey speaks the Redis protocol; one rueidis client serves both.
		store, err = dbRedis.NewStore(dbRedis.Config{
			Name:     cfg.Driver,
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	case config.DriverFile:
		store, err = dbFile.NewStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}

	if err := store.WaitForReady(ctx, config.Seconds(cfg.ReadinessTimeout)); err != nil {
		store.Close()
		return nil, fmt.Errorf("storage not ready: %w", err)
	}
	logger.Debug("Storage ready", zap.String("driver", cfg.Driver))
	return store, nil
}

func newExecutor(ctx context.Context, cfg config.Config, logger *zap.Logger) (*bqTransport.Executor, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}
	w := cfg.Warehouse
	exec, err := bqTransport.NewExecutor(ctx, bqTransport.Config{
		ProjectID:       w.ProjectID,
		Location:        w.Location,
		CredentialsJSON: creds,
		Endpoint:        w.Endpoint,
		PageSize:        w.PageSize,
		PollInterval:    time.Duration(w.PollIntervalMs) * time.Millisecond,
		Timeout:         config.Seconds(w.TimeoutSec),
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("warehouse: %w", err)
	}
	return exec, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached (redis/valkey only) -> Instrumented.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	client := openaiTransport.NewClient(&openaiTransport.Config{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Provider:          cfg.LLM.Provider,
		RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		Timeout:           config.Seconds(cfg.Embedding.TimeoutSec),
		Logger:            logger,
	})
	base := openaiTransport.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimensions)

	var embedder domain.Embedder = base
	if cfg.Embedding.Cache && cfg.Storage.Driver != config.DriverFile {
		embedder = embcache.New(base, store, embcache.Config{
			Prefix:     cfg.Storage.KeyPrefix + "emb:",
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			CacheTotal: metrics.EmbeddingCacheTotal,
			Logger:     logger,
		})
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.LLM.Provider, cfg.Embedding.Model, logger)
}
