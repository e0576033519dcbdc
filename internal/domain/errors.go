package domain

import (
	"errors"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface keeps the handler error mapping extensible.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError
type (
	// NotFoundError indicates a card or workspace id that no longer exists.
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input (missing custom-mode
	// selection, missing branch reason, out-of-bounds message index).
	ValidationError struct {
		Message string
	}

	// CycleError indicates a structural rejection: the requested edge
	// would make the conversation graph cyclic, duplicate an existing
	// edge, or form a self-loop.
	CycleError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }
func (e *CycleError) Error() string      { return e.Message }

func (e *NotFoundError) StatusCode() int   { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }
func (e *CycleError) StatusCode() int      { return http.StatusConflict }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrCycle      = errors.New("edge would create a cycle")
	ErrMergeLimit = errors.New("merge parent limit exceeded")
	ErrStorage    = errors.New("storage failure")
)

func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *CycleError) Is(target error) bool      { return target == ErrCycle }

// MergeLimitError is the structured, non-fatal rejection returned when a
// merge is requested with more sources than the business rule allows. It
// carries an actionable remedy so the UI can guide the user instead of
// just failing.
type MergeLimitError struct {
	Requested int
	Limit     int
	Remedy    string
}

func (e *MergeLimitError) Error() string {
	return "merge parent limit exceeded"
}

func (e *MergeLimitError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

func (e *MergeLimitError) Is(target error) bool {
	return target == ErrMergeLimit
}
