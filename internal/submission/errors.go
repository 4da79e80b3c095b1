package submission

import (
	"errors"
	"fmt"

	"casaspese/internal/core"
)

var (
	ErrNotOpen         = errors.New("form is not open")
	ErrNoRetryPayload  = errors.New("nothing to retry")
	ErrNoDiscardPrompt = errors.New("no discard prompt shown")
)

// SubmitError reports a create call that failed after validation passed.
// The optimistic row has already been rolled back when it is returned.
type SubmitError struct {
	Class  core.FailureClass
	Status int // HTTP status when the server answered, else 0
	Retry  bool
	Err    error
}

func (e *SubmitError) Error() string {
	op := "submit expense"
	if e.Retry {
		op = "retry expense"
	}
	return fmt.Sprintf("%s: %s: %v", op, e.Class, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

func newSubmitError(err error, retry bool) *SubmitError {
	se := &SubmitError{Class: core.Classify(err), Retry: retry, Err: err}
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		se.Status = apiErr.Status
	}
	return se
}
