package dataset

import "fmt"

// DatasetCorruptionError reports a dataset file that is missing, unreadable
// or does not match the expected schema. Queries fail on it instead of
// returning partial results.
type DatasetCorruptionError struct {
	Path string
	Err  error
}

func (e *DatasetCorruptionError) Error() string {
	return fmt.Sprintf("dataset corrupted at %s: %v", e.Path, e.Err)
}

func (e *DatasetCorruptionError) Unwrap() error { return e.Err }

func corrupted(path string, format string, args ...any) error {
	return &DatasetCorruptionError{Path: path, Err: fmt.Errorf(format, args...)}
}
