package chi

import (
	"encoding/json"

	conv "github.com/kailas-cloud/patentscope/internal/domain/conversation"
	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	"github.com/kailas-cloud/patentscope/internal/domain/search/filter"
	indexuc "github.com/kailas-cloud/patentscope/internal/usecase/index"
	searchuc "github.com/kailas-cloud/patentscope/internal/usecase/search"
)

// ErrorCode is the machine-readable error kind in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeMalformedFilter   ErrorCode = "malformed_filter"
	CodeIndexNotFound     ErrorCode = "index_not_found"
	CodeIndexCorrupt      ErrorCode = "index_corrupt"
	CodeNothingToIndex    ErrorCode = "nothing_to_index"
	CodeVectorDimMismatch ErrorCode = "vector_dim_mismatch"
	CodeSessionNotFound   ErrorCode = "session_not_found"
	CodeInvalidTransition ErrorCode = "invalid_transition"
	CodeUpstreamError     ErrorCode = "upstream_error"
	CodeSummarization     ErrorCode = "summarization_failed"
	CodeTooManySessions   ErrorCode = "too_many_sessions"
	CodeTimeout           ErrorCode = "timeout"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code         ErrorCode `json:"code"`
	Message      string    `json:"message"`
	Collaborator string    `json:"collaborator,omitempty"`
	Raw          string    `json:"raw,omitempty"`
}

// TextRequest carries free text.
type TextRequest struct {
	Text string `json:"text"`
}

// ExtractResponse is the body of POST /v1/filters/extract.
type ExtractResponse struct {
	Filter filter.SearchFilter  `json:"filter"`
	Drift  []filter.SchemaDrift `json:"drift"`
}

// CompileRequest is the body of POST /v1/queries/compile.
type CompileRequest struct {
	Filter json.RawMessage `json:"filter"`
}

// CompileResponse is the body returned by POST /v1/queries/compile.
type CompileResponse struct {
	Statement string `json:"statement"`
}

// SearchRequest is the body of POST /v1/searches. Exactly one of Text and Filter is set.
type SearchRequest struct {
	Text   string          `json:"text,omitempty"`
	Filter json.RawMessage `json:"filter,omitempty"`
	Index  bool            `json:"index,omitempty"`
}

// SearchResponse is the body returned by POST /v1/searches.
type SearchResponse struct {
	Filter    filter.SearchFilter  `json:"filter"`
	Drift     []filter.SchemaDrift `json:"drift"`
	Statement string               `json:"statement"`
	Rows      []patent.Row         `json:"rows"`
	Indexed   *indexuc.Stats       `json:"indexed"`
}

// IndexRequest is the body of POST /v1/index.
type IndexRequest struct {
	Rows []patent.Row `json:"rows"`
}

// IndexResponse is the body returned by POST /v1/index.
type IndexResponse struct {
	Indexed indexuc.Stats `json:"indexed"`
}

// SimilarItem is one similarity hit.
type SimilarItem struct {
	Row      patent.Row `json:"row"`
	Distance float32    `json:"distance"`
	Summary  *string    `json:"summary,omitempty"`
}

// SimilarResponse is the body returned by GET /v1/similar.
type SimilarResponse struct {
	Items []SimilarItem `json:"items"`
}

// SummaryResponse is the body returned by POST /v1/summaries.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// CreateSessionRequest is the body of POST /v1/sessions. Confirm defaults to the server setting.
type CreateSessionRequest struct {
	Confirm *bool `json:"confirm"`
}

// TurnRequest is the body of POST /v1/sessions/{id}/turns.
// Execute runs the statement once the turn produces a plan; Index additionally rebuilds the index.
type TurnRequest struct {
	Text    string `json:"text"`
	Execute bool   `json:"execute,omitempty"`
	Index   bool   `json:"index,omitempty"`
}

// PlanResponse is an accepted request.
type PlanResponse struct {
	Filter    filter.SearchFilter  `json:"filter"`
	Drift     []filter.SchemaDrift `json:"drift"`
	Statement string               `json:"statement"`
}

// TurnResponse is the body returned by POST /v1/sessions/{id}/turns.
type TurnResponse struct {
	State   conv.State      `json:"state"`
	Reply   string          `json:"reply,omitempty"`
	Plan    *PlanResponse   `json:"plan,omitempty"`
	Rows    []patent.Row    `json:"rows,omitempty"`
	Indexed *indexuc.Stats  `json:"indexed,omitempty"`
	Session SessionResponse `json:"session"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID         string      `json:"id"`
	State      conv.State  `json:"state"`
	Confirm    bool        `json:"confirm"`
	Original   string      `json:"original,omitempty"`
	Paraphrase string      `json:"paraphrase,omitempty"`
	Turns      []conv.Turn `json:"turns"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func sessionToResponse(s *conv.Session) SessionResponse {
	turns := s.Turns()
	if turns == nil {
		turns = []conv.Turn{}
	}
	return SessionResponse{
		ID:         s.ID(),
		State:      s.State(),
		Confirm:    s.ConfirmMode(),
		Original:   s.Original(),
		Paraphrase: s.Paraphrase(),
		Turns:      turns,
	}
}

func planToResponse(p searchuc.Plan) *PlanResponse {
	return &PlanResponse{Filter: p.Filter, Drift: nonNilDrift(p.Drift), Statement: string(p.Statement)}
}

func nonNilDrift(d []filter.SchemaDrift) []filter.SchemaDrift {
	if d == nil {
		return []filter.SchemaDrift{}
	}
	return d
}

func nonNilRows(rows []patent.Row) []patent.Row {
	if rows == nil {
		return []patent.Row{}
	}
	return rows
}
