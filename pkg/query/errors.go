package query

import (
	"errors"
	"fmt"
)

// QueryError reports query parameters that cannot be run: a malformed
// region, a bad range or an unknown backend
type QueryError struct {
	Msg string
	Err error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid query: %s: %v", e.Msg, e.Err)
	}
	return "invalid query: " + e.Msg
}

func (e *QueryError) Unwrap() error { return e.Err }

func queryErrorf(format string, args ...any) error {
	return &QueryError{Msg: fmt.Sprintf(format, args...)}
}

var (
	// ErrInvalidState is returned when a query step runs out of order
	ErrInvalidState = errors.New("query is not in a state allowing this step")

	// ErrRunnerClosed is returned to a producer whose consumer went away
	ErrRunnerClosed = errors.New("runner closed")
)
