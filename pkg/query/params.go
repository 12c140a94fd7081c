package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// Range is a closed interval. A nil bound is open.
type Range struct {
	Min *float64
	Max *float64
}

// Between builds a range from optional bounds
func Between(lo, hi *float64) Range { return Range{Min: lo, Max: hi} }

// Float returns a pointer to v, for building ranges
func Float(v float64) *float64 { return &v }

// Contains reports whether v lies in the range
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

func (r Range) String() string {
	format := func(b *float64) string {
		if b == nil {
			return ""
		}
		return strconv.FormatFloat(*b, 'g', -1, 64)
	}
	return "[" + format(r.Min) + ", " + format(r.Max) + "]"
}

// AttrFilter restricts a numeric allele attribute to a range
type AttrFilter struct {
	Attr  string
	Range Range
}

// ParseAttrFilter parses "name:min:max". An empty bound is open.
func ParseAttrFilter(s string) (AttrFilter, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return AttrFilter{}, queryErrorf("attribute filter %q: expected name:min:max", s)
	}
	f := AttrFilter{Attr: strings.TrimSpace(parts[0])}
	for i, dst := range []**float64{&f.Range.Min, &f.Range.Max} {
		v := strings.TrimSpace(parts[i+1])
		if v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return AttrFilter{}, &QueryError{Msg: "attribute filter " + strconv.Quote(s), Err: err}
		}
		*dst = &x
	}
	return f, f.validate()
}

var attrNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (f AttrFilter) validate() error {
	if !attrNameRe.MatchString(f.Attr) {
		return queryErrorf("invalid attribute name %q", f.Attr)
	}
	if f.Range.Min != nil && f.Range.Max != nil && *f.Range.Min > *f.Range.Max {
		return queryErrorf("attribute %s: empty range %s", f.Attr, f.Range)
	}
	return nil
}

// Params is the structured filter set of a query. Empty fields do not
// filter, except FamilyIDs and PersonIDs: nil means any, an empty non-nil
// slice matches nothing.
type Params struct {
	Regions     []variants.Region
	Genes       []string
	EffectTypes []string

	FamilyIDs []string
	PersonIDs []string

	// Inheritance expressions must all hold
	Inheritance []string
	Roles       string
	Sexes       string
	Statuses    string
	VariantType string

	RealAttrFilter  []AttrFilter
	FrequencyFilter []AttrFilter
	UltraRare       bool

	ReturnReference bool
	ReturnUnknown   bool

	// Limit of 0 returns every match
	Limit int

	SortResults           bool
	SkipInMemoryFiltering bool

	// Timeout of 0 leaves the query without a deadline
	Timeout time.Duration
}

// ParseRegions parses region strings, failing on the first bad one
func ParseRegions(values []string) ([]variants.Region, error) {
	var out []variants.Region
	for _, v := range values {
		r, err := variants.ParseRegion(v)
		if err != nil {
			return nil, &QueryError{Msg: "region " + strconv.Quote(v), Err: err}
		}
		out = append(out, r)
	}
	return out, nil
}

// Validate checks value ranges. Expressions are checked when the filter
// is compiled.
func (p *Params) Validate() error {
	for _, r := range p.Regions {
		if err := r.Validate(); err != nil {
			return &QueryError{Msg: "region " + r.String(), Err: err}
		}
	}
	for _, f := range p.RealAttrFilter {
		if err := f.validate(); err != nil {
			return err
		}
	}
	for _, f := range p.FrequencyFilter {
		if err := f.validate(); err != nil {
			return err
		}
	}
	if p.Limit < 0 {
		return queryErrorf("limit must not be negative, got %d", p.Limit)
	}
	if p.Timeout < 0 {
		return queryErrorf("timeout must not be negative, got %s", p.Timeout)
	}
	return nil
}

// familyLevel reports whether any filter needs family data
func (p *Params) familyLevel() bool {
	return p.FamilyIDs != nil || p.PersonIDs != nil || len(p.Inheritance) > 0 ||
		p.Roles != "" || p.Sexes != "" || p.Statuses != ""
}

// summaryLevel reports whether any filter needs allele annotations
func (p *Params) summaryLevel() bool {
	return p.Genes != nil || p.EffectTypes != nil || p.VariantType != "" ||
		len(p.RealAttrFilter) > 0 || len(p.FrequencyFilter) > 0 || p.UltraRare
}
