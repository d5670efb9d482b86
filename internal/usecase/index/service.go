// Package index builds and queries the similarity index over search result abstracts.
package index

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/vector"
	"github.com/kailas-cloud/patentscope/internal/logger"
	"github.com/kailas-cloud/patentscope/internal/metrics"
)

// DefaultBatchSize is the number of abstracts sent per embedding call when none is configured.
const DefaultBatchSize = 100

// Stats describes a completed build.
type Stats struct {
	Rows        int           `json:"rows"`
	Dimensions  int           `json:"dimensions"`
	Batches     int           `json:"batches"`
	TotalTokens int           `json:"total_tokens"`
	Duration    time.Duration `json:"-"`
}

// Service owns the build and query paths. The caller serializes Build against Query.
type Service struct {
	repo      Repository
	embed     domain.Embedder
	batchSize int
}

// New creates an index service. batchSize <= 0 uses DefaultBatchSize.
func New(repo Repository, embed domain.Embedder, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{repo: repo, embed: embed, batchSize: batchSize}
}

// Build embeds the abstract of every row and replaces the stored index and mapping.
// Rows without an abstract are embedded as the empty string so slots stay aligned with rows.
func (s *Service) Build(ctx context.Context, rows []patent.Row) (Stats, error) {
	stats, err := s.build(ctx, rows)
	if err != nil {
		metrics.IndexBuildsTotal.WithLabelValues("error").Inc()
		return Stats{}, err
	}
	metrics.IndexBuildsTotal.WithLabelValues("success").Inc()
	metrics.IndexSize.Set(float64(stats.Rows))
	return stats, nil
}

func (s *Service) build(ctx context.Context, rows []patent.Row) (Stats, error) {
	if len(rows) == 0 {
		return Stats{}, domain.ErrNothingToIndex
	}

	start := time.Now()
	texts := patent.Abstracts(rows)

	var (
		idx   *vector.FlatL2
		stats Stats
	)
	for offset := 0; offset < len(texts); offset += s.batchSize {
		end := min(offset+s.batchSize, len(texts))
		chunk := texts[offset:end]

		res, err := domain.EmbedBatch(ctx, s.embed, chunk)
		if err != nil {
			return Stats{}, fmt.Errorf("embed rows %d-%d: %w", offset, end-1, err)
		}
		if len(res.Embeddings) != len(chunk) {
			return Stats{}, domain.NewTransportError(domain.CollaboratorEmbedding,
				fmt.Errorf("got %d vectors for %d rows at offset %d", len(res.Embeddings), len(chunk), offset))
		}

		if idx == nil {
			idx, err = vector.NewFlatL2(len(res.Embeddings[0]))
			if err != nil {
				return Stats{}, fmt.Errorf("create index: %w", err)
			}
		}
		if err := idx.Add(res.Embeddings...); err != nil {
			return Stats{}, fmt.Errorf("add rows %d-%d: %w", offset, end-1, err)
		}

		stats.Batches++
		stats.TotalTokens += res.TotalTokens
	}

	if err := s.repo.Save(ctx, idx, rows); err != nil {
		return Stats{}, fmt.Errorf("save index: %w", err)
	}

	stats.Rows = idx.Len()
	stats.Dimensions = idx.Dim()
	stats.Duration = time.Since(start)

	logger.FromContext(ctx).Info("Similarity index built",
		zap.Int("rows", stats.Rows),
		zap.Int("dimensions", stats.Dimensions),
		zap.Int("batches", stats.Batches),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// Query returns the k rows whose abstracts are nearest to text, closest first.
func (s *Service) Query(ctx context.Context, text string, k int) ([]patent.Match, error) {
	matches, err := s.query(ctx, text, k)
	if err != nil {
		metrics.IndexQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.IndexQueriesTotal.WithLabelValues("success").Inc()
	return matches, nil
}

func (s *Service) query(ctx context.Context, text string, k int) ([]patent.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}

	idx, rows, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := idx.Search(res.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	matches := make([]patent.Match, len(hits))
	for i, h := range hits {
		matches[i] = patent.Match{Row: rows[h.Slot], Distance: h.Distance}
	}
	return matches, nil
}
