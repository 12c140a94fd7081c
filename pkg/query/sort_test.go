package query

import (
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int) []*spillRecord {
	chroms := []string{"foo", "bar"}
	out := make([]*spillRecord, n)
	for i := range out {
		rank := i % 2
		out[i] = &spillRecord{
			Key:     sortKey{ChromRank: rank, Chrom: chroms[rank], Position: (i * 37) % 101, FamilyID: "f1", SummaryIndex: i},
			Matched: []int{1},
			Data:    []byte{byte(i)},
		}
	}
	return out
}

func sorted(t *testing.T, bufferSize int, recs []*spillRecord) ([]*spillRecord, *Sorter) {
	t.Helper()
	s := NewSorter(bufferSize)
	shuffled := append([]*spillRecord(nil), recs...)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	for _, rec := range shuffled {
		require.NoError(t, s.Add(rec))
	}
	var out []*spillRecord
	for rec, err := range s.Sorted() {
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out, s
}

func assertOrdered(t *testing.T, recs []*spillRecord) {
	t.Helper()
	for i := 1; i < len(recs); i++ {
		assert.LessOrEqual(t, compareKeys(recs[i-1].Key, recs[i].Key), 0, "record %d out of order", i)
	}
}

func TestSorterInMemory(t *testing.T) {
	out, s := sorted(t, 100, records(20))
	defer s.Close()
	assert.Len(t, out, 20)
	assertOrdered(t, out)
	assert.Empty(t, s.dir)
	assert.Equal(t, "foo", out[0].Key.Chrom)
}

func TestSorterSpills(t *testing.T) {
	recs := records(25)
	out, s := sorted(t, 4, recs)
	require.Len(t, out, 25)
	assertOrdered(t, out)
	assert.Len(t, s.spills, 7)
	for _, rec := range out {
		assert.Equal(t, []int{1}, rec.Matched)
		assert.Len(t, rec.Data, 1)
	}

	dir := s.dir
	assert.DirExists(t, dir)
	require.NoError(t, s.Close())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestSorterEarlyStop(t *testing.T) {
	s := NewSorter(3)
	defer s.Close()
	for _, rec := range records(10) {
		require.NoError(t, s.Add(rec))
	}
	n := 0
	for _, err := range s.Sorted() {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
