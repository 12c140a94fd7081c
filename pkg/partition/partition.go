package partition

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Bin is one named bin value
type Bin struct {
	Name  string
	Value string
}

// Partition is a set of bins kept in canonical order: region, family,
// coding, frequency
type Partition []Bin

var binOrder = map[string]int{
	RegionBin:    0,
	FamilyBin:    1,
	CodingBin:    2,
	FrequencyBin: 3,
}

func binRank(name string) int {
	if r, ok := binOrder[name]; ok {
		return r
	}
	return len(binOrder)
}

func (p Partition) sort() {
	sort.SliceStable(p, func(i, j int) bool {
		ri, rj := binRank(p[i].Name), binRank(p[j].Name)
		if ri != rj {
			return ri < rj
		}
		return p[i].Name < p[j].Name
	})
}

// With returns a copy holding b, replacing a bin of the same name
func (p Partition) With(b Bin) Partition {
	out := make(Partition, 0, len(p)+1)
	for _, x := range p {
		if x.Name != b.Name {
			out = append(out, x)
		}
	}
	out = append(out, b)
	out.sort()
	return out
}

// Get returns the value of the named bin
func (p Partition) Get(name string) (string, bool) {
	for _, b := range p {
		if b.Name == name {
			return b.Value, true
		}
	}
	return "", false
}

// Directory renders "region_bin=chr1_0/family_bin=1/..."
func (p Partition) Directory() string {
	parts := make([]string, len(p))
	for i, b := range p {
		parts[i] = b.Name + "=" + b.Value
	}
	return strings.Join(parts, "/")
}

// Filename renders "{prefix}_region_bin_chr1_0_..._bucket_index_000003.parquet".
// A negative bucket index is left out.
func (p Partition) Filename(prefix string, bucketIndex int) string {
	parts := []string{prefix}
	for _, b := range p {
		parts = append(parts, b.Name+"_"+b.Value)
	}
	if bucketIndex >= 0 {
		parts = append(parts, fmt.Sprintf("bucket_index_%06d", bucketIndex))
	}
	return strings.Join(parts, "_") + ".parquet"
}

// Path joins Directory and Filename
func (p Partition) Path(prefix string, bucketIndex int) string {
	return path.Join(p.Directory(), p.Filename(prefix, bucketIndex))
}

func (p Partition) String() string {
	if len(p) == 0 {
		return "(unpartitioned)"
	}
	return p.Directory()
}

// Equal compares bins in order
func (p Partition) Equal(o Partition) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// PathToPartition reads the bins back from a relative partition path. A
// trailing parquet file name is ignored; every directory must be a
// "name=value" pair.
func PathToPartition(relPath string) (Partition, error) {
	parts := strings.Split(strings.Trim(path.Clean(relPath), "/"), "/")
	if n := len(parts); n > 0 && strings.HasSuffix(parts[n-1], ".parquet") {
		parts = parts[:n-1]
	}
	var p Partition
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("path %s contains non-partition directory %q", relPath, part)
		}
		p = append(p, Bin{name, value})
	}
	p.sort()
	return p, nil
}
