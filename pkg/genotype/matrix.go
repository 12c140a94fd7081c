package genotype

import (
	"fmt"
	"sort"
	"strings"
)

// Sentinel values stored in genotype and best-state matrices
const (
	NoCall         = -1 // missing call
	HaploidMissing = -2 // absent second copy of a haploid call
)

// Matrix is a small integer matrix indexed as m[row][column].
// Genotypes are 2 x persons, best states are alleles x persons.
type Matrix [][]int

// NewMatrix creates a zero filled matrix
func NewMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for i := range m {
		m[i] = make([]int, cols)
	}
	return m
}

// Rows returns the number of rows
func (m Matrix) Rows() int {
	return len(m)
}

// Cols returns the number of columns
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Column returns a copy of column p
func (m Matrix) Column(p int) []int {
	col := make([]int, len(m))
	for r := range m {
		col[r] = m[r][p]
	}
	return col
}

// SelectColumns returns a matrix made of the given columns, in order
func (m Matrix) SelectColumns(cols ...int) Matrix {
	out := NewMatrix(m.Rows(), len(cols))
	for r := range m {
		for i, c := range cols {
			out[r][i] = m[r][c]
		}
	}
	return out
}

// Clone returns a deep copy
func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for r := range m {
		out[r] = append([]int(nil), m[r]...)
	}
	return out
}

// Equal reports whether both matrices have identical shape and values
func (m Matrix) Equal(o Matrix) bool {
	if m.Rows() != o.Rows() || m.Cols() != o.Cols() {
		return false
	}
	for r := range m {
		for c := range m[r] {
			if m[r][c] != o[r][c] {
				return false
			}
		}
	}
	return true
}

// validate checks that all rows have the same length
func (m Matrix) validate() error {
	cols := m.Cols()
	for r := range m {
		if len(m[r]) != cols {
			return fmt.Errorf("ragged matrix: row %d has %d columns, expected %d", r, len(m[r]), cols)
		}
	}
	return nil
}

// columnUnknown reports whether any entry of column p is NoCall
func (m Matrix) columnUnknown(p int) bool {
	for r := range m {
		if m[r][p] == NoCall {
			return true
		}
	}
	return false
}

// BestStateFromGenotype counts allele copies per person.
//
// A column holding any NoCall entry becomes an all NoCall column.
// HaploidMissing entries contribute nothing.
func BestStateFromGenotype(gt Matrix, numAlleles int) (Matrix, error) {
	if err := gt.validate(); err != nil {
		return nil, err
	}
	bs := NewMatrix(numAlleles, gt.Cols())
	for p := 0; p < gt.Cols(); p++ {
		if gt.columnUnknown(p) {
			for a := 0; a < numAlleles; a++ {
				bs[a][p] = NoCall
			}
			continue
		}
		for r := range gt {
			a := gt[r][p]
			if a == HaploidMissing {
				continue
			}
			if a < 0 || a >= numAlleles {
				return nil, fmt.Errorf("allele index %d in column %d out of range [0, %d)", a, p, numAlleles)
			}
			bs[a][p]++
		}
	}
	return bs, nil
}

// GenotypeFromBestState rebuilds an unphased 2 x persons genotype.
//
// Allele indices in each column are ordered ascending, so the round trip
// through BestStateFromGenotype restores only genotypes whose columns are
// already sorted: 1/0 comes back as 0/1. A column with a single
// copy is haploid and gets HaploidMissing in the second slot. Columns that
// cannot be expressed as at most two copies (more than two copies, negative
// counts other than the unknown marker, or no copies at all) are set to NoCall
// and reported through broken.
func GenotypeFromBestState(bs Matrix) (gt Matrix, broken bool) {
	cols := bs.Cols()
	gt = NewMatrix(2, cols)
	for p := 0; p < cols; p++ {
		if bs.columnUnknown(p) {
			gt[0][p], gt[1][p] = NoCall, NoCall
			continue
		}

		var alleles []int
		bad := false
		for a := range bs {
			n := bs[a][p]
			if n < 0 || n > 2 {
				bad = true
				break
			}
			for i := 0; i < n; i++ {
				alleles = append(alleles, a)
			}
		}
		if bad || len(alleles) == 0 || len(alleles) > 2 {
			gt[0][p], gt[1][p] = NoCall, NoCall
			broken = true
			continue
		}

		gt[0][p] = alleles[0]
		if len(alleles) == 2 {
			gt[1][p] = alleles[1]
		} else {
			gt[1][p] = HaploidMissing
		}
	}
	return gt, broken
}

// Ploidy returns the number of called copies per column of a best state.
// NoCall columns report NoCall.
func Ploidy(bs Matrix) []int {
	out := make([]int, bs.Cols())
	for p := range out {
		if bs.columnUnknown(p) {
			out[p] = NoCall
			continue
		}
		for a := range bs {
			out[p] += bs[a][p]
		}
	}
	return out
}

// AlleleCounts returns the copies of allele carried by each person of a
// genotype, NoCall for columns with a missing call.
func AlleleCounts(gt Matrix, allele int) []int {
	out := make([]int, gt.Cols())
	for p := range out {
		if gt.columnUnknown(p) {
			out[p] = NoCall
			continue
		}
		for r := range gt {
			if gt[r][p] == allele {
				out[p]++
			}
		}
	}
	return out
}

// IsUnknown reports whether any call in the genotype is missing
func IsUnknown(gt Matrix) bool {
	for p := 0; p < gt.Cols(); p++ {
		if gt.columnUnknown(p) {
			return true
		}
	}
	return false
}

// IsAllUnknown reports whether every call in the genotype is missing
func IsAllUnknown(gt Matrix) bool {
	for r := range gt {
		for _, v := range gt[r] {
			if v != NoCall {
				return false
			}
		}
	}
	return true
}

// IsReference reports whether all known calls are reference
func IsReference(gt Matrix) bool {
	for r := range gt {
		for _, v := range gt[r] {
			if v > 0 {
				return false
			}
		}
	}
	return true
}

// AltAlleles returns the distinct non-reference allele indices present
func AltAlleles(gt Matrix) []int {
	seen := make(map[int]bool)
	for r := range gt {
		for _, v := range gt[r] {
			if v > 0 {
				seen[v] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Ints(out)
	return out
}

// FormatBestState renders a best state as rows separated by '/', one
// character per person, '?' for unknown entries (e.g. "220/001/001").
func FormatBestState(bs Matrix) string {
	rows := make([]string, len(bs))
	for r := range bs {
		var sb strings.Builder
		for _, v := range bs[r] {
			switch {
			case v == NoCall:
				sb.WriteByte('?')
			case v >= 0 && v <= 9:
				sb.WriteByte(byte('0' + v))
			default:
				sb.WriteByte('!')
			}
		}
		rows[r] = sb.String()
	}
	return strings.Join(rows, "/")
}

// ParseBestState parses the FormatBestState representation
func ParseBestState(s string) (Matrix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty best state")
	}
	rows := strings.Split(s, "/")
	cols := len(rows[0])
	m := NewMatrix(len(rows), cols)
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("best state %q: row %d has %d columns, expected %d", s, r, len(row), cols)
		}
		for c := 0; c < cols; c++ {
			ch := row[c]
			switch {
			case ch == '?':
				m[r][c] = NoCall
			case ch >= '0' && ch <= '9':
				m[r][c] = int(ch - '0')
			default:
				return nil, fmt.Errorf("best state %q: unexpected character %q", s, ch)
			}
		}
	}
	return m, nil
}

// FormatGenotype renders a genotype as comma separated "a/b" calls per person
func FormatGenotype(gt Matrix) string {
	calls := make([]string, gt.Cols())
	for p := range calls {
		parts := make([]string, 0, gt.Rows())
		for r := range gt {
			switch v := gt[r][p]; v {
			case HaploidMissing:
				continue
			case NoCall:
				parts = append(parts, ".")
			default:
				parts = append(parts, fmt.Sprint(v))
			}
		}
		calls[p] = strings.Join(parts, "/")
	}
	return strings.Join(calls, ",")
}

// ParseGenotype parses "0/1,0/0,1" style calls. A single allele call is
// haploid; "." marks a missing allele.
func ParseGenotype(s string) (Matrix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty genotype")
	}
	calls := strings.Split(s, ",")
	gt := NewMatrix(2, len(calls))
	for p, call := range calls {
		alleles := strings.FieldsFunc(call, func(r rune) bool { return r == '/' || r == '|' })
		if len(alleles) < 1 || len(alleles) > 2 {
			return nil, fmt.Errorf("genotype %q: bad call %q", s, call)
		}
		gt[1][p] = HaploidMissing
		for i, a := range alleles {
			if a == "." {
				gt[i][p] = NoCall
				continue
			}
			var v int
			if _, err := fmt.Sscanf(a, "%d", &v); err != nil || v < 0 {
				return nil, fmt.Errorf("genotype %q: bad allele %q", s, a)
			}
			gt[i][p] = v
		}
		if gt[0][p] == NoCall || gt[1][p] == NoCall {
			gt[0][p], gt[1][p] = NoCall, NoCall
		}
	}
	return gt, nil
}
