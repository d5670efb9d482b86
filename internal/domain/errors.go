package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a request that fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMalformedFilter signals extractor output that is not a usable search filter.
	ErrMalformedFilter = errors.New("malformed filter")
	// ErrIndexNotFound signals a similarity query issued before any successful build.
	ErrIndexNotFound = errors.New("similarity index not found")
	// ErrIndexCorrupt signals an index/mapping pair that is not row-aligned.
	ErrIndexCorrupt = errors.New("similarity index corrupt")
	// ErrNothingToIndex signals a build over an empty result set.
	ErrNothingToIndex = errors.New("nothing to index")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrTransport signals a network or auth failure of an external collaborator.
	ErrTransport = errors.New("collaborator unavailable")
	// ErrSummarization signals a failed summary request.
	ErrSummarization = errors.New("summarization failed")
	// ErrInvalidTransition signals a conversation turn not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid conversation transition")
)

// Collaborator names used in TransportError.
const (
	CollaboratorCompletion = "completion"
	CollaboratorEmbedding  = "embedding"
	CollaboratorWarehouse  = "warehouse"
	CollaboratorStorage    = "storage"
)

// MalformedFilterError carries the raw model output that could not be parsed as a filter.
type MalformedFilterError struct {
	Raw    string
	Reason string
}

func (e *MalformedFilterError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedFilter.Error(), e.Reason)
}

func (e *MalformedFilterError) Unwrap() error { return ErrMalformedFilter }

// NewMalformedFilter creates a malformed filter error.
func NewMalformedFilter(raw, reason string) error {
	return &MalformedFilterError{Raw: raw, Reason: reason}
}

// TransportError identifies the collaborator whose call failed.
type TransportError struct {
	Collaborator string
	Err          error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, ErrTransport.Error(), e.Err)
}

// Unwrap exposes both ErrTransport and the underlying cause.
func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// NewTransportError wraps err as a failure of the named collaborator.
func NewTransportError(collaborator string, err error) error {
	return &TransportError{Collaborator: collaborator, Err: err}
}

// SummarizationError wraps the cause of a failed summary.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrSummarization.Error(), e.Err)
}

func (e *SummarizationError) Unwrap() []error { return []error{ErrSummarization, e.Err} }

// CollaboratorOf returns the collaborator name of the first TransportError in err's chain.
func CollaboratorOf(err error) string {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Collaborator
	}
	return ""
}
