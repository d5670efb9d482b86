// Package embcache is a read-through embedding cache in front of the embedding provider.
// Rebuilding the similarity index over overlapping search results re-embeds mostly known abstracts,
// so hits skip the provider entirely.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/db"
	"github.com/kailas-cloud/patentscope/internal/domain"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Config describes the cached vectors. Model and Dimensions are part of the key,
// so changing either starts a fresh cache instead of serving vectors of another shape.
type Config struct {
	Prefix     string
	Model      string
	Dimensions int // 0: the model's native size, any cached length is accepted
	// CacheTotal counts lookups by label "result" ("hit"/"miss"). May be nil.
	CacheTotal *prometheus.CounterVec
	Logger     *zap.Logger
}

// CachedEmbedder caches embeddings in a key-value store.
// Vectors come back in input order whether they were hits or misses.
type CachedEmbedder struct {
	inner domain.Embedder
	store store
	cfg   Config
	salt  []byte
}

// New creates a caching decorator.
func New(inner domain.Embedder, s store, cfg Config) *CachedEmbedder {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner: inner,
		store: s,
		cfg:   cfg,
		salt:  []byte(cfg.Model + "\x00" + strconv.Itoa(cfg.Dimensions) + "\x00"),
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	data, err := c.store.Get(ctx, key)
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		c.cfg.Logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
	}
	if vec, ok := c.decode(key, data); ok {
		c.count("hit", 1)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss", 1)

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.put(ctx, key, result.Embedding)
	return result, nil
}

// BatchEmbed serves hits from the cache and sends only the misses to the inner embedder, in one call.
// Stores that support MGet are read in a single round trip.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}
	cached := c.lookup(ctx, keys)

	embeddings := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, data := range cached {
		if vec, ok := c.decode(keys[i], data); ok {
			embeddings[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	c.count("hit", len(texts)-len(missTexts))
	c.count("miss", len(missTexts))

	if len(missTexts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: embeddings}, nil
	}

	res, err := domain.EmbedBatch(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed misses: %w", err)
	}
	if len(res.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embed misses: got %d vectors for %d texts", len(res.Embeddings), len(missTexts))
	}

	for j, i := range missIdx {
		embeddings[i] = res.Embeddings[j]
		c.put(ctx, keys[i], res.Embeddings[j])
	}

	c.cfg.Logger.Debug("Embedding cache batch",
		zap.Int("hits", len(texts)-len(missTexts)),
		zap.Int("misses", len(missTexts)),
	)

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// lookup returns the raw cached value per key, nil for misses. Read failures count as misses.
func (c *CachedEmbedder) lookup(ctx context.Context, keys []string) [][]byte {
	if mg, ok := c.store.(db.MultiGetter); ok {
		out, err := mg.MGet(ctx, keys)
		if err == nil && len(out) == len(keys) {
			return out
		}
		c.cfg.Logger.Warn("Failed to read cached embeddings", zap.Int("keys", len(keys)), zap.Error(err))
		return make([][]byte, len(keys))
	}

	out := make([][]byte, len(keys))
	for i, key := range keys {
		data, err := c.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, db.ErrKeyNotFound) {
				c.cfg.Logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
			}
			continue
		}
		out[i] = data
	}
	return out
}

func (c *CachedEmbedder) decode(key string, data []byte) ([]float32, bool) {
	if len(data) == 0 {
		return nil, false
	}
	vec, err := bytesToVector(data)
	if err != nil {
		c.cfg.Logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if c.cfg.Dimensions > 0 && len(vec) != c.cfg.Dimensions {
		c.cfg.Logger.Warn("Cached embedding has wrong size",
			zap.String("key", key), zap.Int("got", len(vec)), zap.Int("want", c.cfg.Dimensions))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) put(ctx context.Context, key string, vec []float32) {
	if err := c.store.Set(ctx, key, vectorToBytes(vec)); err != nil {
		c.cfg.Logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(result string, n int) {
	if c.cfg.CacheTotal != nil && n > 0 {
		c.cfg.CacheTotal.WithLabelValues(result).Add(float64(n))
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write(c.salt)
	h.Write([]byte(text))
	return c.cfg.Prefix + hex.EncodeToString(h.Sum(nil))
}

func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
