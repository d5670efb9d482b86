package extract

import (
	"context"

	"github.com/kailas-cloud/patentscope/internal/domain"
)

// Completer sends one chat completion.
type Completer interface {
	Complete(ctx context.Context, system string, messages []domain.Message, temperature float32) (string, error)
}
