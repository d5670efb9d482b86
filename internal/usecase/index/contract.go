package index

import (
	"context"

	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/vector"
)

// Repository persists the index and its row mapping as one pair.
type Repository interface {
	Save(ctx context.Context, idx *vector.FlatL2, rows []patent.Row) error
	Load(ctx context.Context) (*vector.FlatL2, []patent.Row, error)
}
