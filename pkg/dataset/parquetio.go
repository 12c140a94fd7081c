package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// writeRows stores rows as a single parquet file
func writeRows[T any](ctx context.Context, store Storage, rel string, rows []T) error {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf, parquet.Compression(&parquet.Zstd))
	if _, err := w.Write(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", rel, err)
	}
	if err := store.WriteFile(ctx, rel, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to store %s: %w", rel, err)
	}
	return nil
}

// readRows loads every row of a parquet file after checking that its
// columns match T. Any failure is reported as a DatasetCorruptionError.
func readRows[T any](ctx context.Context, store Storage, rel string) ([]T, error) {
	data, err := store.ReadFile(ctx, rel)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return nil, corrupted(rel, "file is missing")
		}
		return nil, &DatasetCorruptionError{Path: rel, Err: err}
	}
	size := int64(len(data))
	file, err := parquet.OpenFile(bytes.NewReader(data), size)
	if err != nil {
		return nil, corrupted(rel, "not a parquet file: %w", err)
	}
	var model T
	if err := checkSchema(file, model); err != nil {
		return nil, &DatasetCorruptionError{Path: rel, Err: err}
	}
	rows, err := parquet.Read[T](bytes.NewReader(data), size)
	if err != nil {
		return nil, corrupted(rel, "failed to read rows: %w", err)
	}
	return rows, nil
}
