package variants

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is a closed genomic interval. A zero Start or Stop leaves that side
// unbounded, so Region{Chrom: "1"} covers the whole chromosome.
type Region struct {
	Chrom string
	Start int
	Stop  int
}

// NewRegion creates a region and checks start <= stop
func NewRegion(chrom string, start, stop int) (Region, error) {
	r := Region{Chrom: chrom, Start: start, Stop: stop}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks the interval bounds
func (r Region) Validate() error {
	if r.Chrom == "" {
		return fmt.Errorf("region without chromosome")
	}
	if r.Start < 0 || r.Stop < 0 {
		return fmt.Errorf("region %s: negative position", r)
	}
	if r.Start > 0 && r.Stop > 0 && r.Start > r.Stop {
		return fmt.Errorf("region %s: start %d after stop %d", r, r.Start, r.Stop)
	}
	return nil
}

// ParseRegion parses "chr1", "chr1:100", "chr1:100-200", "chr1:100-" and
// "chr1:-200". Thousands separators are accepted.
func ParseRegion(regionStr string) (Region, error) {
	region := Region{}
	s := strings.TrimSpace(regionStr)
	if s == "" {
		return region, fmt.Errorf("empty region")
	}

	chrom, span, hasSpan := strings.Cut(s, ":")
	region.Chrom = chrom
	if !hasSpan {
		return region, region.Validate()
	}

	span = strings.ReplaceAll(span, ",", "")
	startStr, stopStr, isRange := strings.Cut(span, "-")
	var err error
	if startStr != "" {
		if region.Start, err = strconv.Atoi(startStr); err != nil {
			return Region{}, fmt.Errorf("invalid start position in %q: %w", regionStr, err)
		}
	}
	switch {
	case !isRange:
		region.Stop = region.Start
	case stopStr != "":
		if region.Stop, err = strconv.Atoi(stopStr); err != nil {
			return Region{}, fmt.Errorf("invalid stop position in %q: %w", regionStr, err)
		}
	}
	if !isRange && startStr == "" {
		return Region{}, fmt.Errorf("invalid region format: %s (expected chr:start-stop)", regionStr)
	}
	if err := region.Validate(); err != nil {
		return Region{}, err
	}
	return region, nil
}

// String renders the region so that ParseRegion returns it unchanged
func (r Region) String() string {
	if r.Start == 0 && r.Stop == 0 {
		return r.Chrom
	}
	var sb strings.Builder
	sb.WriteString(r.Chrom)
	sb.WriteByte(':')
	if r.Start > 0 {
		sb.WriteString(strconv.Itoa(r.Start))
	}
	sb.WriteByte('-')
	if r.Stop > 0 {
		sb.WriteString(strconv.Itoa(r.Stop))
	}
	return sb.String()
}

// Contains reports whether the position lies inside the region
func (r Region) Contains(chrom string, pos int) bool {
	return r.IntersectsRange(chrom, pos, pos)
}

// IntersectsRange reports whether [start, end] on chrom overlaps the region
func (r Region) IntersectsRange(chrom string, start, end int) bool {
	if chrom != r.Chrom {
		return false
	}
	if end < start {
		end = start
	}
	if r.Start > 0 && end < r.Start {
		return false
	}
	if r.Stop > 0 && start > r.Stop {
		return false
	}
	return true
}

// Intersects reports whether two regions overlap
func (r Region) Intersects(o Region) bool {
	if r.Chrom != o.Chrom {
		return false
	}
	if r.Stop > 0 && o.Start > 0 && o.Start > r.Stop {
		return false
	}
	if o.Stop > 0 && r.Start > 0 && r.Start > o.Stop {
		return false
	}
	return true
}

// Intersection returns the overlap of two regions
func (r Region) Intersection(o Region) (Region, bool) {
	if !r.Intersects(o) {
		return Region{}, false
	}
	out := Region{Chrom: r.Chrom, Start: max(r.Start, o.Start), Stop: r.Stop}
	switch {
	case r.Stop == 0:
		out.Stop = o.Stop
	case o.Stop > 0:
		out.Stop = min(r.Stop, o.Stop)
	}
	return out, true
}
