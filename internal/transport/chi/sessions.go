package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/patentscope/internal/domain"
	conv "github.com/kailas-cloud/patentscope/internal/domain/conversation"
	"github.com/kailas-cloud/patentscope/internal/domain/patent"
	conversationuc "github.com/kailas-cloud/patentscope/internal/usecase/conversation"
	indexuc "github.com/kailas-cloud/patentscope/internal/usecase/index"
	searchuc "github.com/kailas-cloud/patentscope/internal/usecase/search"
)

// CreateSession handles POST /v1/sessions. An empty body uses the server's confirm default.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := decodeOptional(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	if s.opts.MaxSessions > 0 && s.svc.Sessions.Len() >= s.opts.MaxSessions {
		writeError(w, http.StatusServiceUnavailable, CodeTooManySessions, "session limit reached")
		return
	}

	confirm := s.opts.Confirm
	if req.Confirm != nil {
		confirm = *req.Confirm
	}
	sess := s.svc.Sessions.Create(confirm)
	writeJSON(w, http.StatusCreated, sessionToResponse(sess))
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	var resp SessionResponse
	err := s.svc.Sessions.With(r.Context(), chi.URLParam(r, "id"), func(sess *conv.Session) error {
		resp = sessionToResponse(sess)
		return nil
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Sessions.With(r.Context(), id, func(*conv.Session) error { return nil }); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.svc.Sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// ResetSession handles POST /v1/sessions/{id}/reset.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	var resp SessionResponse
	err := s.svc.Sessions.With(r.Context(), chi.URLParam(r, "id"), func(sess *conv.Session) error {
		sess.Reset(time.Now().UTC())
		resp = sessionToResponse(sess)
		return nil
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SessionTurn handles POST /v1/sessions/{id}/turns.
// When the turn accepts the request and execute is set, the compiled statement is run
// and, with index set, the rows replace the similarity index.
func (s *Server) SessionTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "text is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	var (
		out  conversationuc.Outcome
		sess SessionResponse
	)
	err := s.svc.Sessions.With(ctx, chi.URLParam(r, "id"), func(cs *conv.Session) error {
		var err error
		out, err = s.svc.Conversation.Turn(ctx, cs, req.Text)
		sess = sessionToResponse(cs)
		return err
	})
	// A request that could not be read as a filter sends the session back for new input;
	// the re-entry reply is the answer, not an error.
	if err != nil && !errors.Is(err, domain.ErrMalformedFilter) {
		setUsageHeaders(w, usage)
		s.handleDomainError(w, r, err)
		return
	}

	resp := TurnResponse{State: out.State, Reply: out.Reply, Session: sess}
	if out.Plan != nil {
		resp.Plan = planToResponse(*out.Plan)
	}
	if out.Plan != nil && req.Execute {
		rows, stats, err := s.execute(ctx, out.Plan.Statement, req.Index)
		if err != nil {
			setUsageHeaders(w, usage)
			s.handleDomainError(w, r, err)
			return
		}
		resp.Rows, resp.Indexed = nonNilRows(rows), stats
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) execute(ctx context.Context, stmt searchuc.Statement, index bool) ([]patent.Row, *indexuc.Stats, error) {
	rows, err := s.svc.Searcher.Run(ctx, stmt)
	if err != nil {
		return nil, nil, err
	}
	if !index || len(rows) == 0 {
		return rows, nil, nil
	}
	stats, err := s.build(ctx, rows)
	if err != nil {
		return nil, nil, err
	}
	return rows, &stats, nil
}

func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
