package genotype

import (
	"fmt"
	"strings"
)

// Model is the genetic model applied to a locus of a family
type Model int

const (
	Autosomal       Model = 1
	AutosomalBroken Model = 2
	PseudoAutosomal Model = 3
	X               Model = 4
	XBroken         Model = 5
)

var modelNames = map[Model]string{
	Autosomal:       "autosomal",
	AutosomalBroken: "autosomal_broken",
	PseudoAutosomal: "pseudo_autosomal",
	X:               "X",
	XBroken:         "X_broken",
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// IsBroken reports whether the observed data contradicts the model's ploidy
func (m Model) IsBroken() bool {
	return m == AutosomalBroken || m == XBroken
}

// ParseModel parses a model name
func ParseModel(name string) (Model, error) {
	for m, n := range modelNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown genetic model %q", name)
}

// PAR is a pseudo-autosomal region on chromosome X, 1-based and closed
type PAR struct {
	Chrom string
	Start int
	End   int
}

// Pseudo-autosomal regions per reference genome
var PseudoAutosomalRegions = map[string][]PAR{
	"hg19": {
		{Chrom: "X", Start: 60001, End: 2699520},
		{Chrom: "X", Start: 154931044, End: 155260560},
	},
	"hg38": {
		{Chrom: "chrX", Start: 10001, End: 2781479},
		{Chrom: "chrX", Start: 155701383, End: 156030895},
	},
}

// IsChromX reports whether chrom names the X chromosome
func IsChromX(chrom string) bool {
	return strings.TrimPrefix(chrom, "chr") == "X"
}

// InPAR reports whether position is inside one of the regions. Chromosome
// names are compared without a "chr" prefix.
func InPAR(pars []PAR, chrom string, pos int) bool {
	name := strings.TrimPrefix(chrom, "chr")
	for _, r := range pars {
		if strings.TrimPrefix(r.Chrom, "chr") != name {
			continue
		}
		if pos >= r.Start && pos <= r.End {
			return true
		}
	}
	return false
}

// SelectModel picks the genetic model for a locus from the ploidy of each
// person (as returned by Ploidy) and which persons are male.
func SelectModel(chrom string, pos int, pars []PAR, ploidy []int, male []bool) Model {
	if !IsChromX(chrom) {
		for _, p := range ploidy {
			if p != NoCall && p != 2 {
				return AutosomalBroken
			}
		}
		return Autosomal
	}

	if InPAR(pars, chrom, pos) {
		for i, p := range ploidy {
			if i < len(male) && male[i] && p != NoCall && p != 2 {
				return XBroken
			}
		}
		return PseudoAutosomal
	}

	for i, p := range ploidy {
		if p == NoCall {
			continue
		}
		if i < len(male) && male[i] {
			if p != 1 {
				return XBroken
			}
		} else if p != 2 {
			return XBroken
		}
	}
	return X
}

// CorrectMaleX folds male calls outside pseudo-autosomal regions of X from
// two identical copies into one hemizygous copy. Heterozygous male columns are
// left as they are and end up under XBroken.
func CorrectMaleX(bs Matrix, chrom string, pos int, pars []PAR, male []bool) Matrix {
	if !IsChromX(chrom) || InPAR(pars, chrom, pos) {
		return bs
	}
	out := bs.Clone()
	for p := 0; p < out.Cols(); p++ {
		if p >= len(male) || !male[p] || out.columnUnknown(p) {
			continue
		}
		for a := range out {
			if out[a][p] == 2 {
				out[a][p] = 1
			}
		}
	}
	return out
}
