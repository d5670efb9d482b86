package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/config"
	"github.com/kailas-cloud/patentscope/internal/repository/session"
	chiTransport "github.com/kailas-cloud/patentscope/internal/transport/chi"
	"github.com/kailas-cloud/patentscope/internal/version"
)

func newServeCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cc)
		},
	}
}

func runServe(ctx context.Context, cc *cliContext) error {
	cfg, logger := cc.cfg, cc.logger

	logger.Info("Starting patentscope API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", cc.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("warehouse_table", cfg.Warehouse.Table),
	)

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	defaultFrom, _ := cfg.DefaultFrom()
	server := chiTransport.NewServer(chiTransport.Services{
		Extractor:    a.extract,
		Searcher:     a.search,
		Indexer:      a.index,
		Summarizer:   a.summary,
		Conversation: a.conversation,
		Sessions:     a.sessions,
		Health:       a.health,
	}, chiTransport.Options{
		DefaultFrom: defaultFrom,
		DefaultK:    cfg.Index.DefaultK,
		MaxK:        cfg.Index.MaxK,
		Confirm:     cfg.Chat.ConfirmEnabled(),
		MaxSessions: cfg.Chat.MaxSessions,
		APIKeys:     cfg.Auth.APIKeys,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepSessions(sweepCtx, a.sessions, cfg.Chat, logger)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-quit:
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// sweepSessions drops sessions idle for longer than the configured TTL until ctx is done.
func sweepSessions(ctx context.Context, store *session.Store, cfg config.ChatConfig, logger *zap.Logger) {
	ttl := time.Duration(cfg.SessionTTLMin) * time.Minute
	ticker := time.NewTicker(config.Seconds(cfg.SweepPeriodSec))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.EvictIdle(now.UTC().Add(-ttl)); n > 0 {
				logger.Info("Evicted idle sessions", zap.Int("count", n), zap.Int("remaining", store.Len()))
			}
		}
	}
}
