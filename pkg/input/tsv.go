package input

import (
	"bufio"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/scttfrdmn/varquery-go/pkg/dataset"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

const maxLineSize = 16 << 20

// table is a tab separated file with a header line. A leading "#" on the
// header is dropped.
type table struct {
	path    string
	header  []string
	scanner *bufio.Scanner
	line    int
}

func (t *table) readHeader() error {
	for t.scanner.Scan() {
		t.line++
		line := strings.TrimRight(t.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		line = strings.TrimPrefix(line, "#")
		t.header = strings.Split(line, "\t")
		for i, h := range t.header {
			t.header[i] = strings.TrimSpace(h)
		}
		return nil
	}
	if err := t.scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", t.path, err)
	}
	return fmt.Errorf("%s: missing header line", t.path)
}

// rows yields the data rows as column maps. A row with the wrong number
// of columns is a MalformedRecordError and reading goes on.
func (t *table) rows() iter.Seq2[variants.Record, error] {
	return func(yield func(variants.Record, error) bool) {
		for t.scanner.Scan() {
			t.line++
			line := strings.TrimRight(t.scanner.Text(), "\r")
			if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
				continue
			}
			cols := strings.Split(line, "\t")
			if len(cols) != len(t.header) {
				err := &variants.MalformedRecordError{
					File: t.path, Line: t.line,
					Msg: fmt.Sprintf("expected %d columns, got %d", len(t.header), len(cols)),
				}
				if !yield(variants.Record{}, err) {
					return
				}
				continue
			}
			rec := variants.Record{File: t.path, Line: t.line, Fields: make(map[string]string, len(cols))}
			for i, v := range cols {
				rec.Fields[t.header[i]] = strings.TrimSpace(v)
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := t.scanner.Err(); err != nil {
			yield(variants.Record{}, fmt.Errorf("failed to read %s: %w", t.path, err))
		}
	}
}

// Records streams the rows of a variant file. The file is opened when the
// sequence is ranged over and closed when it ends. Rows of one locus must
// be consecutive.
func Records(path string) iter.Seq2[variants.Record, error] {
	return func(yield func(variants.Record, error) bool) {
		r, err := Open(path)
		if err != nil {
			yield(variants.Record{}, err)
			return
		}
		defer r.Close()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		t := &table{path: path, scanner: scanner}
		if err := t.readHeader(); err != nil {
			yield(variants.Record{}, err)
			return
		}
		log.WithFields(log.Fields{"file": path, "columns": len(t.header)}).Debug("reading variants")
		for rec, err := range t.rows() {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// FileBuckets makes one import bucket per variant file, indexed from
// first in file order
func FileBuckets(paths []string, first int) []dataset.Bucket {
	buckets := make([]dataset.Bucket, len(paths))
	for i, p := range paths {
		buckets[i] = dataset.Bucket{
			Index:   first + i,
			Name:    filepath.Base(p),
			Records: Records(p),
		}
	}
	return buckets
}
