package query

import (
	"bufio"
	"cmp"
	"container/heap"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"

	log "github.com/sirupsen/logrus"
)

const spillBufferSize = 1 << 20

// sortKey orders results by chromosome, position and family
type sortKey struct {
	ChromRank    int
	Chrom        string
	Position     int
	FamilyID     string
	BucketIndex  int
	SummaryIndex int
}

func compareKeys(a, b sortKey) int {
	return cmp.Or(
		cmp.Compare(a.ChromRank, b.ChromRank),
		cmp.Compare(a.Chrom, b.Chrom),
		cmp.Compare(a.Position, b.Position),
		cmp.Compare(a.FamilyID, b.FamilyID),
		cmp.Compare(a.BucketIndex, b.BucketIndex),
		cmp.Compare(a.SummaryIndex, b.SummaryIndex),
	)
}

// spillRecord is one result as written to a spill file
type spillRecord struct {
	Key     sortKey
	Matched []int
	Data    []byte
}

// spillWriter writes sorted records to a temporary file
type spillWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *gob.Encoder
	count   int
}

func newSpillWriter(dir string, n int) (*spillWriter, error) {
	file, err := os.Create(filepath.Join(dir, fmt.Sprintf("spill-%04d.dat", n)))
	if err != nil {
		return nil, fmt.Errorf("failed to create spill file: %w", err)
	}
	w := bufio.NewWriterSize(file, spillBufferSize)
	return &spillWriter{file: file, writer: w, encoder: gob.NewEncoder(w)}, nil
}

func (sw *spillWriter) write(rec *spillRecord) error {
	if err := sw.encoder.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode spill record: %w", err)
	}
	sw.count++
	return nil
}

func (sw *spillWriter) close() (string, error) {
	if err := sw.writer.Flush(); err != nil {
		sw.file.Close()
		return "", fmt.Errorf("failed to flush spill file: %w", err)
	}
	if err := sw.file.Close(); err != nil {
		return "", fmt.Errorf("failed to close spill file: %w", err)
	}
	return sw.file.Name(), nil
}

// spillReader reads records back in the order they were written
type spillReader struct {
	file    *os.File
	decoder *gob.Decoder
	current *spillRecord
	err     error
}

func newSpillReader(path string) (*spillReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill file: %w", err)
	}
	sr := &spillReader{file: file, decoder: gob.NewDecoder(bufio.NewReaderSize(file, spillBufferSize))}
	sr.advance()
	return sr, nil
}

func (sr *spillReader) advance() {
	var rec spillRecord
	if err := sr.decoder.Decode(&rec); err != nil {
		sr.current = nil
		if !errors.Is(err, io.EOF) {
			sr.err = err
		}
		return
	}
	sr.current = &rec
}

func (sr *spillReader) close() error { return sr.file.Close() }

type mergeItem struct {
	rec    *spillRecord
	reader int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int           { return len(h) }
func (h mergeHeap) Less(i, j int) bool { return compareKeys(h[i].rec.Key, h[j].rec.Key) < 0 }
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Sorter orders query results. Records are kept in memory up to a buffer
// size, then sorted runs are spilled to a temporary directory and merged.
type Sorter struct {
	bufferSize int
	buf        []*spillRecord
	dir        string
	spills     []string
}

// NewSorter keeps at most bufferSize records in memory
func NewSorter(bufferSize int) *Sorter {
	return &Sorter{bufferSize: max(bufferSize, 1)}
}

// Add buffers a record, spilling when the buffer is full
func (s *Sorter) Add(rec *spillRecord) error {
	s.buf = append(s.buf, rec)
	if len(s.buf) >= s.bufferSize {
		return s.spill()
	}
	return nil
}

func (s *Sorter) sortBuffer() {
	slices.SortStableFunc(s.buf, func(a, b *spillRecord) int { return compareKeys(a.Key, b.Key) })
}

func (s *Sorter) spill() error {
	if s.dir == "" {
		dir, err := os.MkdirTemp("", "varquery-sort-")
		if err != nil {
			return fmt.Errorf("failed to create spill directory: %w", err)
		}
		s.dir = dir
	}
	s.sortBuffer()
	sw, err := newSpillWriter(s.dir, len(s.spills))
	if err != nil {
		return err
	}
	for _, rec := range s.buf {
		if err := sw.write(rec); err != nil {
			sw.close()
			return err
		}
	}
	path, err := sw.close()
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"file": path, "records": sw.count}).Debug("sort buffer spilled")
	s.spills = append(s.spills, path)
	s.buf = s.buf[:0]
	return nil
}

// Sorted yields every added record in key order
func (s *Sorter) Sorted() iter.Seq2[*spillRecord, error] {
	return func(yield func(*spillRecord, error) bool) {
		if len(s.spills) == 0 {
			s.sortBuffer()
			for _, rec := range s.buf {
				if !yield(rec, nil) {
					return
				}
			}
			return
		}
		if len(s.buf) > 0 {
			if err := s.spill(); err != nil {
				yield(nil, err)
				return
			}
		}
		s.merge(yield)
	}
}

func (s *Sorter) merge(yield func(*spillRecord, error) bool) {
	readers := make([]*spillReader, 0, len(s.spills))
	defer func() {
		for _, r := range readers {
			r.close()
		}
	}()
	h := &mergeHeap{}
	for _, path := range s.spills {
		r, err := newSpillReader(path)
		if err != nil {
			yield(nil, err)
			return
		}
		readers = append(readers, r)
		if r.err != nil {
			yield(nil, fmt.Errorf("failed to read %s: %w", path, r.err))
			return
		}
		if r.current != nil {
			heap.Push(h, mergeItem{rec: r.current, reader: len(readers) - 1})
		}
	}
	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)
		if !yield(item.rec, nil) {
			return
		}
		r := readers[item.reader]
		r.advance()
		if r.err != nil {
			yield(nil, fmt.Errorf("failed to read spill %d: %w", item.reader, r.err))
			return
		}
		if r.current != nil {
			heap.Push(h, mergeItem{rec: r.current, reader: item.reader})
		}
	}
}

// Close removes the spill files
func (s *Sorter) Close() error {
	s.buf = nil
	if s.dir == "" {
		return nil
	}
	return os.RemoveAll(s.dir)
}
