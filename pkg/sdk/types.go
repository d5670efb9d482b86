package patentscope

import (
	"time"

	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
	indexuc "github.com/kailas-cloud/patentscope/internal/usecase/index"
	searchuc "github.com/kailas-cloud/patentscope/internal/usecase/search"
)

// Filter is a validated search filter.
type Filter struct {
	IPCCodes        []string
	Assignees       []string
	PublicationFrom time.Time
}

// Drift is a tolerated deviation in model output that was normalized without losing values.
type Drift struct {
	Field string
	Kind  string // "code_fence", "mapping_flattened", "null_value", "defaulted"
}

// Patent is one publication returned by a search.
type Patent struct {
	PublicationNumber string
	Title             string
	Abstract          string
	PublicationDate   string // YYYY-MM-DD
	IPCCodes          string
	Assignees         string
}

// Match is a patent returned by Similar with its squared L2 distance to the query.
type Match struct {
	Patent
	Distance float32
}

// SearchResult is the outcome of Search and SearchFilter.
type SearchResult struct {
	Filter    Filter
	Drift     []Drift
	Statement string
	Patents   []Patent
}

// IndexStats describes a completed index build.
type IndexStats struct {
	Rows        int
	Dimensions  int
	Batches     int
	TotalTokens int
	Duration    time.Duration
}

func filterFromDomain(f filter.SearchFilter) Filter {
	return Filter{
		IPCCodes:        f.IPCCodes(),
		Assignees:       f.Assignees(),
		PublicationFrom: f.PublicationFrom(),
	}
}

func driftFromDomain(d []filter.SchemaDrift) []Drift {
	if len(d) == 0 {
		return nil
	}
	out := make([]Drift, len(d))
	for i, x := range d {
		out[i] = Drift{Field: x.Field, Kind: string(x.Kind)}
	}
	return out
}

func patentFromRow(r patent.Row) Patent {
	return Patent{
		PublicationNumber: r.PublicationNumber,
		Title:             r.Title,
		Abstract:          r.Abstract,
		PublicationDate:   r.PublicationDate,
		IPCCodes:          r.IPCCodes,
		Assignees:         r.Assignees,
	}
}

func patentsFromRows(rows []patent.Row) []Patent {
	out := make([]Patent, len(rows))
	for i, r := range rows {
		out[i] = patentFromRow(r)
	}
	return out
}

func rowsFromPatents(ps []Patent) []patent.Row {
	out := make([]patent.Row, len(ps))
	for i, p := range ps {
		out[i] = patent.Row{
			PublicationNumber: p.PublicationNumber,
			Title:             p.Title,
			Abstract:          p.Abstract,
			PublicationDate:   p.PublicationDate,
			IPCCodes:          p.IPCCodes,
			Assignees:         p.Assignees,
		}
	}
	return out
}

func resultFromPlan(p searchuc.Plan, rows []patent.Row) SearchResult {
	return SearchResult{
		Filter:    filterFromDomain(p.Filter),
		Drift:     driftFromDomain(p.Drift),
		Statement: string(p.Statement),
		Patents:   patentsFromRows(rows),
	}
}

func statsFromDomain(s indexuc.Stats) IndexStats {
	return IndexStats{
		Rows:        s.Rows,
		Dimensions:  s.Dimensions,
		Batches:     s.Batches,
		TotalTokens: s.TotalTokens,
		Duration:    s.Duration,
	}
}
