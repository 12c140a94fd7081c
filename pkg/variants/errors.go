package variants

import (
	"fmt"
	"strings"
)

// MalformedRecordError reports an input row that cannot be parsed
type MalformedRecordError struct {
	File string
	Line int
	Msg  string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed record at %s: %s: %v", loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("malformed record at %s: %s", loc, e.Msg)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// MalformedRecordErrors collects the bad rows of one import bucket
type MalformedRecordErrors []*MalformedRecordError

func (es MalformedRecordErrors) Error() string {
	switch len(es) {
	case 0:
		return "no malformed records"
	case 1:
		return es[0].Error()
	}
	const shown = 3
	msgs := make([]string, 0, shown)
	for i, e := range es {
		if i == shown {
			break
		}
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("%d malformed records: %s", len(es), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual errors to errors.As
func (es MalformedRecordErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// ConsistencyError is a violated internal invariant. It is never recovered.
type ConsistencyError struct {
	Msg string
}

func (e *ConsistencyError) Error() string {
	return "consistency error: " + e.Msg
}

func consistencyf(format string, args ...any) error {
	return &ConsistencyError{Msg: fmt.Sprintf(format, args...)}
}
