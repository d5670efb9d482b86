// Package search plans and runs warehouse queries for patent search requests.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
	"github.com/kailas-cloud/patentscope/internal/logger"
)

// Plan is the outcome of the planner: the validated filter and the statement compiled from it.
type Plan struct {
	Filter    filter.SearchFilter
	Drift     []filter.SchemaDrift
	Statement Statement
}

// Service combines extraction, compilation and execution.
type Service struct {
	extractor Extractor
	compiler  *Compiler
	executor  Executor
}

// New creates a search service. executor may be nil when only planning is needed.
func New(extractor Extractor, compiler *Compiler, executor Executor) *Service {
	return &Service{extractor: extractor, compiler: compiler, executor: executor}
}

// Plan extracts a filter from text and compiles it. Extractor errors are returned unchanged.
func (s *Service) Plan(ctx context.Context, text string) (Plan, error) {
	f, drift, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return Plan{}, err
	}
	p := s.PlanFilter(f)
	p.Drift = drift
	return p, nil
}

// PlanFilter compiles an already validated filter.
func (s *Service) PlanFilter(f filter.SearchFilter) Plan {
	return Plan{Filter: f, Statement: s.compiler.Compile(f)}
}

// Run executes the statement and converts the records into rows in warehouse order.
func (s *Service) Run(ctx context.Context, stmt Statement) ([]patent.Row, error) {
	if s.executor == nil {
		return nil, fmt.Errorf("search executor not configured")
	}

	recs, err := s.executor.Execute(ctx, string(stmt))
	if err != nil {
		return nil, fmt.Errorf("execute statement: %w", err)
	}

	rows, err := patent.FromRecords(recs)
	if err != nil {
		return nil, fmt.Errorf("decode warehouse rows: %w", err)
	}

	logger.FromContext(ctx).Debug("Search executed", zap.Int("rows", len(rows)))
	return rows, nil
}

// Search plans text and runs the resulting statement.
func (s *Service) Search(ctx context.Context, text string) (Plan, []patent.Row, error) {
	p, err := s.Plan(ctx, text)
	if err != nil {
		return Plan{}, nil, err
	}
	rows, err := s.Run(ctx, p.Statement)
	if err != nil {
		return p, nil, err
	}
	return p, rows, nil
}
