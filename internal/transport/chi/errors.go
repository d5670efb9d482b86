package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/domain"
	"github.com/kailas-cloud/patentscope/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	// Order matters: SummarizationError also unwraps to ErrTransport.
	return []errorHandler{
		malformedFilterHandler,
		sentinelHandler(domain.ErrSummarization, http.StatusBadGateway, CodeSummarization),
		transportHandler,
		sentinelHandler(domain.ErrIndexNotFound, http.StatusNotFound, CodeIndexNotFound),
		sentinelHandler(domain.ErrIndexCorrupt, http.StatusInternalServerError, CodeIndexCorrupt),
		sentinelHandler(domain.ErrNothingToIndex, http.StatusBadRequest, CodeNothingToIndex),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrMalformedFilter,
		domain.ErrSummarization,
		domain.ErrTransport,
		domain.ErrIndexNotFound,
		domain.ErrIndexCorrupt,
		domain.ErrNothingToIndex,
		domain.ErrVectorDimMismatch,
		domain.ErrNotFound,
		domain.ErrInvalidTransition,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	// Validation messages are written by this module and are safe to echo.
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// malformedFilterHandler returns 422 with the raw model output so the caller can inspect it.
func malformedFilterHandler(w http.ResponseWriter, err error, msg string) bool {
	var mfe *domain.MalformedFilterError
	if !errors.As(err, &mfe) {
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Code:    CodeMalformedFilter,
		Message: msg + ": " + mfe.Reason,
		Raw:     mfe.Raw,
	})
	return true
}

// transportHandler returns 502 naming the collaborator that failed.
func transportHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrTransport) {
		return false
	}
	writeJSON(w, http.StatusBadGateway, ErrorResponse{
		Code:         CodeUpstreamError,
		Message:      msg,
		Collaborator: domain.CollaboratorOf(err),
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, CodeTimeout, "request timed out")
		return
	}
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
