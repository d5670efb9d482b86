package search

import (
	"context"

	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
)

// Extractor turns free text into a SearchFilter.
type Extractor interface {
	Extract(ctx context.Context, text string) (filter.SearchFilter, []filter.SchemaDrift, error)
}

// Executor runs a statement against the warehouse and returns one record per result row.
type Executor interface {
	Execute(ctx context.Context, statement string) ([]map[string]any, error)
}
