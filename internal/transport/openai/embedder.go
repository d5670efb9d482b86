package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/metrics"
)

// Compile-time check: Embedder implements domain.FullEmbedder.
var _ domain.FullEmbedder = (*Embedder)(nil)

var errVectorCount = errors.New("embedding count mismatch")

// Embedder is an embedding provider using the OpenAI-compatible API.
type Embedder struct {
	client     *Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewEmbedder creates an embedding provider for model. dimensions <= 0 uses the model's native size.
func NewEmbedder(c *Client, model string, dimensions int) *Embedder {
	return &Embedder{
		client:     c,
		model:      openai.EmbeddingModel(model),
		dimensions: dimensions,
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return string(e.model) }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed implements domain.BatchEmbedder with a single API call.
// Vectors are reordered by the response index, so output order matches texts.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.client.user,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	if err := e.client.wait(ctx); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	provider, model := e.client.provider, string(e.model)
	start := time.Now()

	resp, err := e.client.api.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, model, errorType(err)).Inc()
		return domain.BatchEmbeddingResult{}, parseAPIError(domain.CollaboratorEmbedding, err)
	}

	if len(resp.Data) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, model, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, domain.NewTransportError(domain.CollaboratorEmbedding,
			fmt.Errorf("%w: got %d vectors for %d texts", errVectorCount, len(resp.Data), len(texts)))
	}

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || embeddings[d.Index] != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, "error").Inc()
			return domain.BatchEmbeddingResult{}, domain.NewTransportError(domain.CollaboratorEmbedding,
				fmt.Errorf("invalid or duplicate embedding index %d", d.Index))
		}
		embeddings[d.Index] = d.Embedding
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(provider, model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   embeddings,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}
