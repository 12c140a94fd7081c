package variants

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/scttfrdmn/varquery-go/pkg/genotype"
)

// Record is one parsed input row, fields keyed by column name
type Record struct {
	File   string
	Line   int
	Fields map[string]string
}

// Columns with a fixed meaning. Any other column becomes an attribute of
// the alternative alleles.
var recordColumns = map[string]bool{
	"chrom": true, "pos": true, "ref": true, "alt": true,
	"location": true, "variant": true,
	"pos_begin": true, "pos_end": true, "cnv_type": true,
	"family_id": true, "best_state": true, "genotype": true,
	"effects": true, "transmission_type": true,
}

func (r Record) get(name string) (string, bool) {
	v, ok := r.Fields[name]
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func (r Record) malformed(msg string, err error) *MalformedRecordError {
	return &MalformedRecordError{File: r.File, Line: r.Line, Msg: msg, Err: err}
}

// LocusKey identifies the locus and alleles of the row. Consecutive rows
// sharing a key belong to the same summary variant.
func (r Record) LocusKey() string {
	if loc, ok := r.get("location"); ok {
		v, _ := r.get("variant")
		return loc + " " + v
	}
	if _, ok := r.get("cnv_type"); ok {
		return strings.Join([]string{r.Fields["chrom"], r.Fields["pos_begin"], r.Fields["pos_end"], r.Fields["cnv_type"]}, " ")
	}
	return strings.Join([]string{r.Fields["chrom"], r.Fields["pos"], r.Fields["ref"], r.Fields["alt"]}, " ")
}

// ParseSummaryVariant reads the locus, alleles, effects and attributes of a
// row. Three layouts are recognized: chrom/pos/ref/alt, location/variant and
// chrom/pos_begin/pos_end/cnv_type.
func ParseSummaryVariant(r Record) (*SummaryVariant, error) {
	var alts []*SummaryAllele
	var ref *SummaryAllele
	var err error

	switch {
	case r.has("location"):
		ref, alts, err = r.parseCSHL()
	case r.has("cnv_type"):
		ref, alts, err = r.parseCNV()
	default:
		ref, alts, err = r.parseVCFLike()
	}
	if err != nil {
		return nil, err
	}

	transmission := TransmissionTransmitted
	if s, ok := r.get("transmission_type"); ok {
		if transmission, err = ParseTransmissionType(s); err != nil {
			return nil, r.malformed("transmission_type", err)
		}
	}
	ref.TransmissionType = transmission
	for i, a := range alts {
		a.AlleleIndex = i + 1
		a.TransmissionType = transmission
	}
	if err := r.parseEffects(alts); err != nil {
		return nil, err
	}
	if err := r.parseAttributes(alts); err != nil {
		return nil, err
	}

	sv, err := NewSummaryVariant(append([]*SummaryAllele{ref}, alts...))
	if err != nil {
		return nil, r.malformed("inconsistent alleles", err)
	}
	return sv, nil
}

func (r Record) has(name string) bool {
	_, ok := r.get(name)
	return ok
}

func (r Record) intField(name string) (int, error) {
	s, ok := r.get(name)
	if !ok {
		return 0, r.malformed("missing column "+name, nil)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, r.malformed("bad "+name, err)
	}
	if v <= 0 {
		return 0, r.malformed(fmt.Sprintf("%s must be positive, got %d", name, v), nil)
	}
	return v, nil
}

func (r Record) parseVCFLike() (*SummaryAllele, []*SummaryAllele, error) {
	chrom, ok := r.get("chrom")
	if !ok {
		return nil, nil, r.malformed("missing column chrom", nil)
	}
	pos, err := r.intField("pos")
	if err != nil {
		return nil, nil, err
	}
	refSeq, ok := r.get("ref")
	if !ok {
		return nil, nil, r.malformed("missing column ref", nil)
	}
	altField, ok := r.get("alt")
	if !ok {
		return nil, nil, r.malformed("missing column alt", nil)
	}

	ref := &SummaryAllele{Chrom: chrom, Position: pos, Reference: refSeq, EndPosition: pos + len(refSeq) - 1}
	var alts []*SummaryAllele
	for _, alt := range strings.Split(altField, ",") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return nil, nil, r.malformed("empty alternative allele", nil)
		}
		alts = append(alts, &SummaryAllele{
			Chrom:       chrom,
			Position:    pos,
			EndPosition: pos + len(refSeq) - 1,
			Reference:   refSeq,
			Alternative: alt,
			VariantType: classifyAlleles(refSeq, alt),
		})
	}
	return ref, alts, nil
}

// classifyAlleles derives the variant type of a VCF style allele pair
func classifyAlleles(ref, alt string) VariantType {
	switch {
	case len(ref) == len(alt) && len(ref) == 1:
		return VariantSubstitution
	case len(ref) < len(alt) && strings.HasPrefix(alt, ref):
		return VariantInsertion
	case len(ref) > len(alt) && strings.HasPrefix(ref, alt):
		return VariantDeletion
	}
	return VariantComplex
}

var (
	cshlSub  = regexp.MustCompile(`^sub\(([ACGTN])->([ACGTN])\)$`)
	cshlIns  = regexp.MustCompile(`^ins\(([ACGTN]+)\)$`)
	cshlDel  = regexp.MustCompile(`^del\((\d+)\)$`)
	cshlComp = regexp.MustCompile(`^comp\(([ACGTN]*)->([ACGTN]*)\)$`)
)

func (r Record) parseCSHL() (*SummaryAllele, []*SummaryAllele, error) {
	loc, _ := r.get("location")
	region, err := ParseRegion(loc)
	if err != nil || region.Start == 0 {
		return nil, nil, r.malformed("bad location "+loc, err)
	}
	variant, ok := r.get("variant")
	if !ok {
		return nil, nil, r.malformed("missing column variant", nil)
	}

	alt := &SummaryAllele{Chrom: region.Chrom, Position: region.Start, EndPosition: region.Start}
	if m := cshlSub.FindStringSubmatch(variant); m != nil {
		alt.Reference, alt.Alternative, alt.VariantType = m[1], m[2], VariantSubstitution
	} else if m := cshlIns.FindStringSubmatch(variant); m != nil {
		alt.Alternative, alt.VariantType = m[1], VariantInsertion
	} else if m := cshlDel.FindStringSubmatch(variant); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n == 0 {
			return nil, nil, r.malformed("empty deletion "+variant, nil)
		}
		alt.Reference, alt.VariantType = strings.Repeat("N", n), VariantDeletion
		alt.EndPosition = region.Start + n - 1
	} else if m := cshlComp.FindStringSubmatch(variant); m != nil {
		alt.Reference, alt.Alternative, alt.VariantType = m[1], m[2], VariantComplex
		alt.EndPosition = region.Start + max(len(m[1]), 1) - 1
	} else {
		return nil, nil, r.malformed("unrecognized variant "+variant, nil)
	}

	ref := &SummaryAllele{
		Chrom:       alt.Chrom,
		Position:    alt.Position,
		EndPosition: alt.EndPosition,
		Reference:   alt.Reference,
	}
	return ref, []*SummaryAllele{alt}, nil
}

func (r Record) parseCNV() (*SummaryAllele, []*SummaryAllele, error) {
	chrom, ok := r.get("chrom")
	if !ok {
		return nil, nil, r.malformed("missing column chrom", nil)
	}
	begin, err := r.intField("pos_begin")
	if err != nil {
		return nil, nil, err
	}
	end, err := r.intField("pos_end")
	if err != nil {
		return nil, nil, err
	}
	if end < begin {
		return nil, nil, r.malformed(fmt.Sprintf("pos_end %d before pos_begin %d", end, begin), nil)
	}
	kind, _ := r.get("cnv_type")
	vt, err := ParseVariantType(kind)
	if err != nil || !vt.IsCNV() {
		vt, err = parseCNVType(kind)
		if err != nil {
			return nil, nil, r.malformed("bad cnv_type", err)
		}
	}

	ref := &SummaryAllele{Chrom: chrom, Position: begin, EndPosition: end}
	alt := &SummaryAllele{
		Chrom:       chrom,
		Position:    begin,
		EndPosition: end,
		Alternative: vt.String(),
		VariantType: vt,
	}
	return ref, []*SummaryAllele{alt}, nil
}

func parseCNVType(s string) (VariantType, error) {
	switch strings.ToLower(s) {
	case "cnv+", "dup", "duplication", "gain":
		return VariantCNVPlus, nil
	case "cnv-", "del", "deletion", "loss":
		return VariantCNVMinus, nil
	}
	return 0, fmt.Errorf("unknown cnv type %q", s)
}

// parseEffects reads "type:gene|type:gene" lists, one per alternative,
// separated by commas
func (r Record) parseEffects(alts []*SummaryAllele) error {
	field, ok := r.get("effects")
	if !ok {
		return nil
	}
	perAllele := strings.Split(field, ",")
	if len(perAllele) != 1 && len(perAllele) != len(alts) {
		return r.malformed(fmt.Sprintf("effects for %d alleles, expected %d", len(perAllele), len(alts)), nil)
	}
	for i, a := range alts {
		s := perAllele[0]
		if len(perAllele) > 1 {
			s = perAllele[i]
		}
		for _, item := range strings.Split(s, "|") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			typ, gene, _ := strings.Cut(item, ":")
			a.Effects = append(a.Effects, Effect{Type: typ, Gene: gene})
		}
	}
	return nil
}

func (r Record) parseAttributes(alts []*SummaryAllele) error {
	for _, name := range sortedKeys(r.Fields) {
		if recordColumns[name] {
			continue
		}
		raw, ok := r.get(name)
		if !ok {
			continue
		}
		values := strings.Split(raw, ",")
		if len(values) != 1 && len(values) != len(alts) {
			return r.malformed(fmt.Sprintf("attribute %s has %d values, expected %d", name, len(values), len(alts)), nil)
		}
		for i, a := range alts {
			v := values[0]
			if len(values) > 1 {
				v = values[i]
			}
			if err := a.Attributes.Set(name, inferValue(strings.TrimSpace(v))); err != nil {
				return r.malformed("attribute "+name, err)
			}
		}
	}
	return nil
}

// inferValue picks int, float, bool or string for a text cell
func inferValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}

// ParseFamilyVariant reads family_id and either best_state or genotype from
// a row and attaches them to an already parsed summary variant
func ParseFamilyVariant(r Record, sv *SummaryVariant, families *Families, opts Options) (*FamilyVariant, error) {
	fid, ok := r.get("family_id")
	if !ok {
		return nil, r.malformed("missing column family_id", nil)
	}
	f, ok := families.Get(fid)
	if !ok {
		return nil, r.malformed("unknown family "+fid, nil)
	}

	if s, ok := r.get("best_state"); ok {
		bs, err := genotype.ParseBestState(s)
		if err != nil {
			return nil, r.malformed("bad best_state", err)
		}
		if bs.Rows() != sv.NumAlleles() || bs.Cols() != f.Size() {
			return nil, r.malformed(fmt.Sprintf("best state %s does not fit %d alleles and %d members", s, sv.NumAlleles(), f.Size()), nil)
		}
		return NewFamilyVariantFromBestState(sv, f, bs, opts)
	}
	if s, ok := r.get("genotype"); ok {
		gt, err := genotype.ParseGenotype(s)
		if err != nil {
			return nil, r.malformed("bad genotype", err)
		}
		if gt.Cols() != f.Size() {
			return nil, r.malformed(fmt.Sprintf("genotype %s does not fit %d members", s, f.Size()), nil)
		}
		return NewFamilyVariant(sv, f, gt, opts)
	}
	return nil, r.malformed("row has neither best_state nor genotype", nil)
}
