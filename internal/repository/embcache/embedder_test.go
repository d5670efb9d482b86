package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &fakeProvider{tokensEach: 7}
	s := newMemStore()
	ce := newCache(t, inner, s, 0)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "sulfide electrolyte")
	if err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	if first.TotalTokens != 7 {
		t.Errorf("miss tokens = %d, want 7", first.TotalTokens)
	}
	if s.sets != 1 {
		t.Fatalf("sets = %d, want 1", s.sets)
	}

	second, err := ce.Embed(ctx, "sulfide electrolyte")
	if err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit tokens = %d, want 0", second.TotalTokens)
	}
	if len(inner.singles) != 1 {
		t.Errorf("provider calls = %d, want 1", len(inner.singles))
	}
	if second.Embedding[0] != first.Embedding[0] || second.Embedding[1] != first.Embedding[1] {
		t.Errorf("hit = %v, want %v", second.Embedding, first.Embedding)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	ce := newCache(t, &fakeProvider{err: errDown}, newMemStore(), 0)

	if _, err := ce.Embed(context.Background(), "x"); !errors.Is(err, errDown) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestEmbed_StoreFailuresDegradeToProvider(t *testing.T) {
	inner := &fakeProvider{}
	s := newMemStore()
	s.getErr = errors.New("connection reset")
	s.setErr = errors.New("read only replica")
	ce := newCache(t, inner, s, 0)

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("store failures must not fail Embed: %v", err)
	}
	if len(inner.singles) != 1 {
		t.Errorf("provider calls = %d, want 1", len(inner.singles))
	}
}

func TestBatchEmbed_OnlyMissesReachProvider(t *testing.T) {
	inner := &fakeProvider{tokensEach: 3}
	s := newMemStore()
	ce := newCache(t, inner, s, 0)
	ctx := context.Background()

	if _, err := ce.BatchEmbed(ctx, []string{"alpha", "gamma"}); err != nil {
		t.Fatalf("warm-up: %v", err)
	}

	res, err := ce.BatchEmbed(ctx, []string{"alpha", "beta", "gamma", "delta"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(inner.batches) != 2 {
		t.Fatalf("batch calls = %d, want 2", len(inner.batches))
	}
	if got := strings.Join(inner.batches[1], ","); got != "beta,delta" {
		t.Errorf("second batch = %q, want only the misses in order", got)
	}
	if len(res.Embeddings) != 4 {
		t.Fatalf("embeddings = %d, want 4", len(res.Embeddings))
	}
	for i, text := range []string{"alpha", "beta", "gamma", "delta"} {
		if res.Embeddings[i][0] != float32(len(text)) {
			t.Errorf("slot %d = %v, not the vector of %q", i, res.Embeddings[i], text)
		}
	}
	if res.TotalTokens != 6 {
		t.Errorf("tokens = %d, want 6 (two misses)", res.TotalTokens)
	}
}

func TestBatchEmbed_AllHitsSkipProvider(t *testing.T) {
	inner := &fakeProvider{}
	ce := newCache(t, inner, newMemStore(), 0)
	ctx := context.Background()
	texts := []string{"a", "bb"}

	if _, err := ce.BatchEmbed(ctx, texts); err != nil {
		t.Fatalf("warm-up: %v", err)
	}
	res, err := ce.BatchEmbed(ctx, texts)
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(inner.batches) != 1 {
		t.Errorf("batch calls = %d, want 1", len(inner.batches))
	}
	if res.TotalTokens != 0 {
		t.Errorf("tokens = %d, want 0", res.TotalTokens)
	}
}

func TestBatchEmbed_UsesMGet(t *testing.T) {
	s := &batchStore{memStore: newMemStore()}
	ce := newCache(t, &fakeProvider{}, s, 0)

	if _, err := ce.BatchEmbed(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if s.mgets != 1 {
		t.Errorf("mgets = %d, want 1", s.mgets)
	}
	if s.gets != 0 {
		t.Errorf("gets = %d, want 0 when MGet is available", s.gets)
	}
}

func TestBatchEmbed_MGetFailureTreatsAllAsMisses(t *testing.T) {
	inner := &fakeProvider{}
	s := &batchStore{memStore: newMemStore(), mgetErr: errors.New("cluster down")}
	ce := newCache(t, inner, s, 0)

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 2 || len(inner.batches) != 1 || len(inner.batches[0]) != 2 {
		t.Errorf("expected both texts embedded by the provider, got batches %v", inner.batches)
	}
}

func TestBatchEmbed_WrongSizedEntryIsAMiss(t *testing.T) {
	inner := &fakeProvider{}
	s := newMemStore()
	ce := newCache(t, inner, s, 2)

	s.data[ce.cacheKey("stale")] = vectorToBytes([]float32{1, 2, 3})

	res, err := ce.BatchEmbed(context.Background(), []string{"stale"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(inner.batches) != 1 {
		t.Fatal("a cached vector of the wrong size must be re-embedded")
	}
	if len(res.Embeddings[0]) != 2 {
		t.Errorf("vector size = %d, want 2", len(res.Embeddings[0]))
	}
}

func TestBatchEmbed_Errors(t *testing.T) {
	tests := []struct {
		name  string
		inner *fakeProvider
	}{
		{"provider failure", &fakeProvider{err: errDown}},
		{"short provider result", &fakeProvider{short: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := newCache(t, tt.inner, newMemStore(), 0)
			if _, err := ce.BatchEmbed(context.Background(), []string{"a", "b"}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBatchEmbed_Empty(t *testing.T) {
	ce := newCache(t, &fakeProvider{}, newMemStore(), 0)

	res, err := ce.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("expected nil for empty input")
	}
}

func TestCacheKey_ScopedByModelAndDimensions(t *testing.T) {
	base := New(nil, nil, Config{Prefix: "p:", Model: "m", Dimensions: 256})
	otherModel := New(nil, nil, Config{Prefix: "p:", Model: "n", Dimensions: 256})
	otherDims := New(nil, nil, Config{Prefix: "p:", Model: "m", Dimensions: 512})

	k := base.cacheKey("same text")
	if k == otherModel.cacheKey("same text") {
		t.Error("cache keys must differ across models")
	}
	if k == otherDims.cacheKey("same text") {
		t.Error("cache keys must differ across dimensions")
	}
	if k != base.cacheKey("same text") {
		t.Error("cache key must be deterministic")
	}
	if !strings.HasPrefix(k, "p:") || len(k) != len("p:")+64 {
		t.Errorf("unexpected key %q", k)
	}
}

func TestCacheCounter(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	ce := New(&fakeProvider{}, newMemStore(), Config{Model: "m", CacheTotal: counter})
	ctx := context.Background()

	if _, err := ce.BatchEmbed(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ce.BatchEmbed(ctx, []string{"a", "c"}); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 3 {
		t.Errorf("misses = %v, want 3", got)
	}
}

func TestBytesToVector(t *testing.T) {
	vec, err := bytesToVector(vectorToBytes([]float32{0.25, -1}))
	if err != nil || len(vec) != 2 || vec[0] != 0.25 || vec[1] != -1 {
		t.Fatalf("round trip = %v, %v", vec, err)
	}
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
