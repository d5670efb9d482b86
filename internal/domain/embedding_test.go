package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (EmbeddingResult, error) {
	s.calls++
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batchResult BatchEmbeddingResult
	batchErr    error
	batchTexts  []string
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batchTexts = texts
	return s.batchResult, s.batchErr
}

func TestBatchFallback_Success(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 5,
		TotalTokens:  5,
	}}
	res, err := BatchFallback(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if res.TotalTokens != 15 || res.PromptTokens != 15 {
		t.Errorf("expected 15/15 tokens, got %d/%d", res.PromptTokens, res.TotalTokens)
	}
}

func TestBatchFallback_Error(t *testing.T) {
	innerErr := errors.New("fail")
	inner := &stubEmbedder{err: innerErr}
	_, err := BatchFallback(context.Background(), inner, []string{"a"})
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestBatchFallback_Empty(t *testing.T) {
	res, err := BatchFallback(context.Background(), &stubEmbedder{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 {
		t.Errorf("expected 0 embeddings, got %d", len(res.Embeddings))
	}
}

func TestEmbedBatch_PrefersNativeBatch(t *testing.T) {
	inner := &stubBatchEmbedder{batchResult: BatchEmbeddingResult{
		Embeddings: [][]float32{{0.1}, {0.2}},
	}}

	res, err := EmbedBatch(context.Background(), inner, []string{"x", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(res.Embeddings))
	}
	if len(inner.batchTexts) != 2 || inner.calls != 0 {
		t.Errorf("expected one batch call and no single calls, got batch=%v single=%d", inner.batchTexts, inner.calls)
	}
}

func TestEmbedBatch_FallsBackToSingle(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.5}}}

	res, err := EmbedBatch(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || inner.calls != 2 {
		t.Errorf("expected 2 single calls, got %d embeddings / %d calls", len(res.Embeddings), inner.calls)
	}
}

func TestUsage_NilSafe(t *testing.T) {
	var u *Usage
	u.AddEmbeddingTokens(10)
	u.AddCompletionTokens(10)

	if UsageFromContext(context.Background()) != nil {
		t.Error("expected nil usage on bare context")
	}
}

func TestUsage_Accumulates(t *testing.T) {
	ctx, u := NewContextWithUsage(context.Background())
	UsageFromContext(ctx).AddEmbeddingTokens(0)
	UsageFromContext(ctx).AddCompletionTokens(7)
	UsageFromContext(ctx).AddCompletionTokens(3)

	if !u.Embedded || u.EmbeddingTokens != 0 {
		t.Errorf("embedding usage = %+v", u)
	}
	if !u.Completed || u.CompletionTokens != 10 {
		t.Errorf("completion usage = %+v", u)
	}
}
