// Package extract turns a free-text request into a SearchFilter with one language-model call.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/domain/prompt"
	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
	"github.com/kailas-cloud/patentscope/internal/logger"
)

// DefaultFromParam is the placeholder the extraction prompt may use for the default start date.
const DefaultFromParam = "default_from"

// Service extracts search filters.
type Service struct {
	llm         Completer
	prompt      prompt.Template
	defaultFrom time.Time
}

// New creates an extractor. defaultFrom is substituted when the model leaves publication_from unusable.
func New(llm Completer, schemaPrompt prompt.Template, defaultFrom time.Time) *Service {
	return &Service{llm: llm, prompt: schemaPrompt, defaultFrom: defaultFrom}
}

// DefaultFrom returns the configured default publication date.
func (s *Service) DefaultFrom() time.Time { return s.defaultFrom }

// Extract renders the configured prompt and extracts a filter from text.
func (s *Service) Extract(ctx context.Context, text string) (filter.SearchFilter, []filter.SchemaDrift, error) {
	values := map[string]any{}
	if s.prompt.Declares(DefaultFromParam) {
		values[DefaultFromParam] = s.defaultFrom
	}
	system, err := s.prompt.Render(values)
	if err != nil {
		return filter.SearchFilter{}, nil, fmt.Errorf("render extraction prompt: %w", err)
	}
	return s.ExtractWithPrompt(ctx, text, system)
}

// ExtractWithPrompt makes exactly one completion call at temperature 0 with schemaPrompt as the
// system instruction and text as the only user turn, then parses the reply.
// Transport failures and malformed output are distinct errors; no filter is returned with either.
func (s *Service) ExtractWithPrompt(
	ctx context.Context, text, schemaPrompt string,
) (filter.SearchFilter, []filter.SchemaDrift, error) {
	if text == "" {
		return filter.SearchFilter{}, nil, fmt.Errorf("empty request text: %w", domain.ErrInvalidInput)
	}

	log := logger.FromContext(ctx)

	raw, err := s.llm.Complete(ctx, schemaPrompt, domain.UserTurn(text), 0)
	if err != nil {
		return filter.SearchFilter{}, nil, fmt.Errorf("extract filter: %w", err)
	}

	f, drift, err := filter.Parse(raw, s.defaultFrom)
	if err != nil {
		var mf *domain.MalformedFilterError
		if errors.As(err, &mf) {
			log.Warn("Extractor returned malformed filter",
				zap.String("reason", mf.Reason),
				zap.String("raw", truncate(mf.Raw, 512)),
			)
		}
		return filter.SearchFilter{}, nil, err
	}

	for _, d := range drift {
		log.Info("Filter schema drift",
			zap.String("field", d.Field),
			zap.String("kind", string(d.Kind)),
		)
	}
	return f, drift, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
