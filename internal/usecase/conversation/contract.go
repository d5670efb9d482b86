package conversation

import (
	"context"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/usecase/search"
)

// Completer sends one chat completion.
type Completer interface {
	Complete(ctx context.Context, system string, messages []domain.Message, temperature float32) (string, error)
}

// Planner turns the accepted request into a filter and statement.
type Planner interface {
	Plan(ctx context.Context, text string) (search.Plan, error)
}
