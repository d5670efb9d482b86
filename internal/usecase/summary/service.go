// Package summary condenses patent text with one language-model call.
package summary

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/logger"
)

// Completer sends one chat completion.
type Completer interface {
	Complete(ctx context.Context, system string, messages []domain.Message, temperature float32) (string, error)
}

// Service summarizes text with a fixed system prompt.
type Service struct {
	llm    Completer
	system string
}

// New creates a summarizer using system as the instruction for every call.
func New(llm Completer, system string) *Service {
	return &Service{llm: llm, system: system}
}

// Summarize returns the model's summary of text. Blank text returns "" without calling the model.
// Failures are returned as *domain.SummarizationError; there are no retries.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	out, err := s.llm.Complete(ctx, s.system, domain.UserTurn(text), 0)
	if err != nil {
		logger.FromContext(ctx).Warn("Summarization failed", zap.Error(err))
		return "", &domain.SummarizationError{Err: err}
	}
	return strings.TrimSpace(out), nil
}

// Summarized is a similarity match with the summary of its abstract.
type Summarized struct {
	patent.Match
	Summary string `json:"summary"`
}

// SummarizeMatches summarizes the abstract of every match in order. The first failure stops the loop.
func (s *Service) SummarizeMatches(ctx context.Context, matches []patent.Match) ([]Summarized, error) {
	out := make([]Summarized, len(matches))
	for i, m := range matches {
		sum, err := s.Summarize(ctx, m.Row.Abstract)
		if err != nil {
			return nil, err
		}
		out[i] = Summarized{Match: m, Summary: sum}
	}
	return out, nil
}
