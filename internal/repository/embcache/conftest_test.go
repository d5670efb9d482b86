package embcache

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/patentscope/internal/db"
	"github.com/kailas-cloud/patentscope/internal/domain"
)

// fakeProvider returns one vector per text: {len(text), call number}.
type fakeProvider struct {
	err        error
	short      bool // return one vector fewer than requested
	singles    []string
	batches    [][]string
	tokensEach int
}

func (f *fakeProvider) vector(text string) []float32 {
	return []float32{float32(len(text)), float32(len(f.singles) + len(f.batches))}
}

func (f *fakeProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	f.singles = append(f.singles, text)
	return domain.EmbeddingResult{Embedding: f.vector(text), TotalTokens: f.tokensEach}, nil
}

func (f *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	f.batches = append(f.batches, append([]string(nil), texts...))
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = f.vector(texts[i])
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: f.tokensEach * len(texts)}, nil
}

// memStore is a map-backed KV store that counts reads.
type memStore struct {
	data   map[string][]byte
	gets   int
	getErr error
	setErr error
	sets   int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.data[key] = value
	return nil
}

// batchStore adds MGet on top of memStore.
type batchStore struct {
	*memStore
	mgets   int
	mgetErr error
}

func (b *batchStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	b.mgets++
	if b.mgetErr != nil {
		return nil, b.mgetErr
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = b.data[k]
	}
	return out, nil
}

var errDown = errors.New("provider down")

func newCache(t *testing.T, inner domain.Embedder, s store, dims int) *CachedEmbedder {
	t.Helper()
	return New(inner, s, Config{Prefix: "patentscope:emb:", Model: "text-embedding-3-small", Dimensions: dims})
}
