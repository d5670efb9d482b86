// Package openai adapts an OpenAI-compatible API to the domain Completer and Embedder contracts.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the provider connection settings shared by the completer and the embedder.
type Config struct {
	APIKey   string
	BaseURL  string
	Provider string
	User     string
	// RequestsPerMinute caps outgoing calls across both endpoints. Zero disables limiting.
	RequestsPerMinute int
	// Timeout bounds each HTTP request. Zero means no client-side timeout.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client is a rate-limited OpenAI-compatible API client.
type Client struct {
	api      *openai.Client
	limiter  *rate.Limiter
	provider string
	user     string
	logger   *zap.Logger
}

// NewClient creates a provider client.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:      openai.NewClientWithConfig(clientCfg),
		limiter:  limiter,
		provider: cfg.Provider,
		user:     cfg.User,
		logger:   logger,
	}
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
