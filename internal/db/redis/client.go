// Package redis stores artifacts in Redis or Valkey; both speak RESP, so one rueidis client serves either.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/patentscope/internal/db"
)

var (
	_ db.Store       = (*Store)(nil)
	_ db.MultiGetter = (*Store)(nil)
)

const (
	firstRetry = 50 * time.Millisecond
	maxRetry   = time.Second
)

// Config holds connection parameters.
type Config struct {
	// Name labels the backend in errors ("redis", "valkey"). Defaults to "redis".
	Name     string
	Addrs    []string
	Username string
	Password string
	DB       int

	// DialTimeout bounds each connection attempt. Zero keeps the rueidis default.
	DialTimeout time.Duration
}

// Store implements db.Store over a rueidis client. Artifacts are whole values, so client-side caching is off.
type Store struct {
	client rueidis.Client
	name   string
}

// NewStore connects to the first reachable address.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Name == "" {
		cfg.Name = "redis"
	}
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("%s: at least one address is required", cfg.Name)
	}

	opt := rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	}
	if cfg.DialTimeout > 0 {
		opt.Dialer.Timeout = cfg.DialTimeout
	}
	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Name, err)
	}
	return &Store{client: client, name: cfg.Name}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings at once, then retries with doubling delays until a ping succeeds or timeout expires.
// The returned error carries the last ping failure.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := firstRetry
	for {
		lastErr := s.Ping(ctx)
		if lastErr == nil {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s not ready after %s: %w", s.label(), timeout, errors.Join(ctx.Err(), lastErr))
		case <-timer.C:
		}
		delay = min(delay*2, maxRetry)
	}
}

func (s *Store) label() string {
	if s.name == "" {
		return "redis"
	}
	return s.name
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}
