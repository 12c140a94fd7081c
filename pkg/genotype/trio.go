package genotype

import "strings"

// Class is the set of inheritance predicates one allele satisfies in a trio.
// Denovo and Omission may both be set for the same observation.
type Class uint8

const (
	Mendelian Class = 1 << iota
	Denovo
	Omission
	Missing
	Unknown
	PossibleDenovo
	PossibleOmission
)

var classNames = []struct {
	c    Class
	name string
}{
	{Mendelian, "mendelian"},
	{Denovo, "denovo"},
	{Omission, "omission"},
	{Missing, "missing"},
	{Unknown, "unknown"},
	{PossibleDenovo, "possible_denovo"},
	{PossibleOmission, "possible_omission"},
}

// Has reports whether all bits of o are set
func (c Class) Has(o Class) bool {
	return c&o == o
}

func (c Class) String() string {
	var names []string
	for _, cn := range classNames {
		if c&cn.c != 0 {
			names = append(names, cn.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Primary resolves the set to a single value. Unknown wins, then mendelian,
// denovo, omission, and missing last.
func (c Class) Primary() Class {
	for _, p := range []Class{Unknown, Mendelian, Denovo, Omission, Missing} {
		if c&p != 0 {
			return p
		}
	}
	return Missing
}

// TrioRule selects how parental copies reach the child
type TrioRule int

const (
	// RuleAutosomal applies to autosomes and pseudo-autosomal regions:
	// each parent transmits one of two copies.
	RuleAutosomal TrioRule = iota
	// RuleXMaleChild applies to a son outside pseudo-autosomal regions of X:
	// he carries one copy and it comes from the mother.
	RuleXMaleChild
	// RuleXFemaleChild applies to a daughter outside pseudo-autosomal regions
	// of X: the hemizygous father always transmits his only copy.
	RuleXFemaleChild
)

// bounds returns the minimum and maximum child copies explainable by the
// parents under the rule.
func (r TrioRule) bounds(mom, dad int) (need, supply int) {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	switch r {
	case RuleXMaleChild:
		return b(mom == 2), b(mom > 0)
	case RuleXFemaleChild:
		return b(mom == 2) + b(dad > 0), b(mom > 0) + b(dad > 0)
	default:
		return b(mom == 2) + b(dad == 2), b(mom > 0) + b(dad > 0)
	}
}

// ClassifyTrio classifies one allele from the copies of that allele carried by
// mother, father and child. A negative count marks a missing call.
func ClassifyTrio(mom, dad, child int, rule TrioRule) Class {
	if mom < 0 || dad < 0 || child < 0 {
		return Unknown | possible(mom, dad, child)
	}

	need, supply := rule.bounds(mom, dad)
	carriers := mom > 0 || dad > 0

	var c Class
	if child > 0 && !carriers {
		c |= Denovo
	}
	if child > 0 && child >= need && child <= supply {
		c |= Mendelian
	}
	if carriers && (child < need || child > supply) {
		c |= Omission
	}
	if !carriers && child >= 2 {
		// a homozygous new allele also lacks the expected parental copy
		c |= Omission
	}
	if c == 0 {
		c = Missing
	}
	return c
}

// possible evaluates the partially observed trio optimistically
func possible(mom, dad, child int) Class {
	if child < 0 {
		return 0
	}
	var c Class
	if child > 0 && mom <= 0 && dad <= 0 {
		c |= PossibleDenovo
	}
	if child == 0 && (mom == 2 || dad == 2) {
		c |= PossibleOmission
	}
	return c
}
