package patentscope

import (
	"context"
	"errors"

	"github.com/kailas-cloud/patentscope/internal/domain"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// Optional: if the provided Embedder also implements BatchEmbedder,
// index builds use it instead of one call per abstract.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// Message is one chat turn.
type Message struct {
	Role string // "user" or "assistant"
	Text string
}

// Completer sends one chat completion.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message, temperature float32) (string, error)
}

// Executor runs a BigQuery Standard SQL statement and returns one record per row.
type Executor interface {
	Execute(ctx context.Context, statement string) ([]map[string]any, error)
}

var errNoEmbedder = errors.New("patentscope: embedder not configured (use WithEmbedder or WithOpenAI)")

// embedderAdapter adapts a public Embedder to domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// batchEmbedderAdapter also forwards BatchEmbed.
type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func adaptEmbedder(e Embedder) domain.Embedder {
	if b, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: embedderAdapter{inner: e}, batch: b}
	}
	return &embedderAdapter{inner: e}
}

// noopEmbedder fails every call; planning and summaries work without embeddings.
type noopEmbedder struct{}

func (n *noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errNoEmbedder
}

// completerAdapter adapts a public Completer to domain.Completer.
type completerAdapter struct {
	inner Completer
}

func (a *completerAdapter) Complete(
	ctx context.Context, system string, messages []domain.Message, temperature float32,
) (string, error) {
	msgs := make([]Message, len(messages))
	for i, m := range messages {
		msgs[i] = Message{Role: string(m.Role), Text: m.Text}
	}
	return a.inner.Complete(ctx, system, msgs, temperature)
}
