package patentscope

import "github.com/kailas-cloud/patentscope/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput      = domain.ErrInvalidInput
	ErrMalformedFilter   = domain.ErrMalformedFilter
	ErrIndexNotFound     = domain.ErrIndexNotFound
	ErrIndexCorrupt      = domain.ErrIndexCorrupt
	ErrNothingToIndex    = domain.ErrNothingToIndex
	ErrVectorDimMismatch = domain.ErrVectorDimMismatch
	ErrTransport         = domain.ErrTransport
	ErrSummarization     = domain.ErrSummarization
)

// MalformedFilterError carries the model output that could not be read as a filter.
type MalformedFilterError = domain.MalformedFilterError

// TransportError names the external service whose call failed.
type TransportError = domain.TransportError
