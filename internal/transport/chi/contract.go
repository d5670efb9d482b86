package chi

import (
	"context"

	conv "github.com/kailas-cloud/patentscope/internal/domain/conversation"
	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
	conversationuc "github.com/kailas-cloud/patentscope/internal/usecase/conversation"
	healthuc "github.com/kailas-cloud/patentscope/internal/usecase/health"
	indexuc "github.com/kailas-cloud/patentscope/internal/usecase/index"
	searchuc "github.com/kailas-cloud/patentscope/internal/usecase/search"
	summaryuc "github.com/kailas-cloud/patentscope/internal/usecase/summary"
)

// Extractor turns free text into a filter.
type Extractor interface {
	Extract(ctx context.Context, text string) (filter.SearchFilter, []filter.SchemaDrift, error)
}

// Searcher plans and runs warehouse queries.
type Searcher interface {
	Plan(ctx context.Context, text string) (searchuc.Plan, error)
	PlanFilter(f filter.SearchFilter) searchuc.Plan
	Run(ctx context.Context, stmt searchuc.Statement) ([]patent.Row, error)
}

// Indexer builds and queries the similarity index.
type Indexer interface {
	Build(ctx context.Context, rows []patent.Row) (indexuc.Stats, error)
	Query(ctx context.Context, text string, k int) ([]patent.Match, error)
}

// Summarizer condenses text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
	SummarizeMatches(ctx context.Context, matches []patent.Match) ([]summaryuc.Summarized, error)
}

// Conversation runs confirmation-loop turns.
type Conversation interface {
	Turn(ctx context.Context, sess *conv.Session, text string) (conversationuc.Outcome, error)
}

// Sessions stores conversation sessions.
type Sessions interface {
	Create(confirm bool) *conv.Session
	With(ctx context.Context, id string, fn func(*conv.Session) error) error
	Delete(id string)
	Len() int
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
