package db

import (
	"context"
	"time"
)

// Store is the artifact store facade used by repositories.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks storage connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides whole-value key operations. Set replaces the previous value; last writer wins.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// MultiGetter reads many keys in one round trip. Missing keys yield nil entries, in key order.
// Optional: callers fall back to Get per key when a store does not implement it.
type MultiGetter interface {
	MGet(ctx context.Context, keys []string) ([][]byte, error)
}
