package filter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/patentscope/internal/domain/patent"
)

// Field names of the extractor's JSON object.
const (
	FieldIPCCodes        = "ipc_codes"
	FieldAssignees       = "assignees"
	FieldPublicationFrom = "publication_from"
)

// MaxValuesPerDimension bounds the number of codes or assignees in one filter.
const MaxValuesPerDimension = 64

// SearchFilter is the validated search intent: IPC code prefixes, assignee substrings
// and an inclusive lower bound on the publication date.
// An empty dimension means "no filter on this dimension".
type SearchFilter struct {
	ipcCodes        []string
	assignees       []string
	publicationFrom time.Time
}

// New validates and creates a SearchFilter. Values are trimmed and deduplicated in first-seen order.
func New(ipcCodes, assignees []string, publicationFrom time.Time) (SearchFilter, error) {
	if publicationFrom.IsZero() {
		return SearchFilter{}, fmt.Errorf("%s is required", FieldPublicationFrom)
	}
	codes := normalizeSet(ipcCodes, false)
	names := normalizeSet(assignees, true)
	if len(codes) > MaxValuesPerDimension {
		return SearchFilter{}, fmt.Errorf("too many %s (max %d)", FieldIPCCodes, MaxValuesPerDimension)
	}
	if len(names) > MaxValuesPerDimension {
		return SearchFilter{}, fmt.Errorf("too many %s (max %d)", FieldAssignees, MaxValuesPerDimension)
	}
	y, m, d := publicationFrom.Date()
	return SearchFilter{
		ipcCodes:        codes,
		assignees:       names,
		publicationFrom: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}, nil
}

// IPCCodes returns the IPC code prefixes.
func (f SearchFilter) IPCCodes() []string { return append([]string(nil), f.ipcCodes...) }

// Assignees returns the assignee substrings.
func (f SearchFilter) Assignees() []string { return append([]string(nil), f.assignees...) }

// PublicationFrom returns the inclusive lower bound on the publication date.
func (f SearchFilter) PublicationFrom() time.Time { return f.publicationFrom }

// IsZero reports whether f was never constructed.
func (f SearchFilter) IsZero() bool { return f.publicationFrom.IsZero() }

type filterJSON struct {
	IPCCodes        []string `json:"ipc_codes"`
	Assignees       []string `json:"assignees"`
	PublicationFrom string   `json:"publication_from"`
}

// MarshalJSON renders the filter in the extractor's own schema.
func (f SearchFilter) MarshalJSON() ([]byte, error) {
	out := filterJSON{
		IPCCodes:        f.IPCCodes(),
		Assignees:       f.Assignees(),
		PublicationFrom: f.publicationFrom.Format(patent.DateLayout),
	}
	if out.IPCCodes == nil {
		out.IPCCodes = []string{}
	}
	if out.Assignees == nil {
		out.Assignees = []string{}
	}
	return json.Marshal(out)
}

func normalizeSet(values []string, foldCase bool) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := v
		if foldCase {
			key = strings.ToLower(v)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
