package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("run query: %w", NewTransportError(CollaboratorWarehouse, cause))

	if !errors.Is(err, ErrTransport) {
		t.Error("expected ErrTransport in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if got := CollaboratorOf(err); got != CollaboratorWarehouse {
		t.Errorf("CollaboratorOf = %q, want %q", got, CollaboratorWarehouse)
	}
}

func TestCollaboratorOf_NoTransport(t *testing.T) {
	if got := CollaboratorOf(ErrInvalidInput); got != "" {
		t.Errorf("CollaboratorOf = %q, want empty", got)
	}
}

func TestMalformedFilterError(t *testing.T) {
	err := fmt.Errorf("extract: %w", NewMalformedFilter("not json", "invalid JSON"))

	if !errors.Is(err, ErrMalformedFilter) {
		t.Error("expected ErrMalformedFilter in chain")
	}
	var mf *MalformedFilterError
	if !errors.As(err, &mf) {
		t.Fatal("expected MalformedFilterError")
	}
	if mf.Raw != "not json" {
		t.Errorf("Raw = %q", mf.Raw)
	}
}

func TestSummarizationError(t *testing.T) {
	cause := NewTransportError(CollaboratorCompletion, errors.New("timeout"))
	err := &SummarizationError{Err: cause}

	if !errors.Is(err, ErrSummarization) || !errors.Is(err, ErrTransport) {
		t.Errorf("chain incomplete: %v", err)
	}
	if CollaboratorOf(err) != CollaboratorCompletion {
		t.Errorf("CollaboratorOf = %q", CollaboratorOf(err))
	}
}
