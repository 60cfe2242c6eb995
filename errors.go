package cachebench

import (
	"fmt"

	"github.com/always-cache/cachebench/fhir"
)

// ToggleStateError is returned when the cache toggle could not be attached
// to or detached from the client. The benchmark cannot continue, since the
// cache mode of the following requests would be unknown.
type ToggleStateError struct {
	Iteration int
	Op        string
	Err       error
}

func (e *ToggleStateError) Error() string {
	return fmt.Sprintf("iteration %d: %s cache toggle: %v", e.Iteration, e.Op, e.Err)
}

func (e *ToggleStateError) Unwrap() error {
	return e.Err
}

// QueryFailure records a single query that did not produce records.
type QueryFailure struct {
	Iteration int
	Parameter string
	Err       error
	// Completed is set if a response was received, e.g. an error status.
	// Completed round trips are counted by the stopwatch.
	Completed bool
}

func newQueryFailure(parameter string, err error) QueryFailure {
	return QueryFailure{
		Parameter: parameter,
		Err:       err,
		Completed: fhir.IsCompleted(err),
	}
}

// Timeout reports whether the query failed because it took too long.
func (f QueryFailure) Timeout() bool {
	return fhir.IsTimeout(f.Err)
}

func (f QueryFailure) Error() string {
	return fmt.Sprintf("query %q in iteration %d: %v", f.Parameter, f.Iteration, f.Err)
}

func (f QueryFailure) Unwrap() error {
	return f.Err
}
