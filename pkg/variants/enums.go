package variants

import (
	"fmt"
	"sort"
	"strings"
)

// enumNames maps the values of a flag-style enum to their names
type enumNames[T ~uint32] struct {
	kind    string
	values  []T
	names   []string
	aliases map[string]T
}

func (e *enumNames[T]) name(v T) string {
	for i, ev := range e.values {
		if ev == v {
			return e.names[i]
		}
	}
	var parts []string
	for i, ev := range e.values {
		if v&ev != 0 {
			parts = append(parts, e.names[i])
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s(%d)", e.kind, uint32(v))
	}
	return strings.Join(parts, "|")
}

func (e *enumNames[T]) parse(s string) (T, error) {
	key := strings.TrimSpace(s)
	for i, n := range e.names {
		if n == key {
			return e.values[i], nil
		}
	}
	if v, ok := e.aliases[strings.ToLower(key)]; ok {
		return v, nil
	}
	for i, n := range e.names {
		if strings.EqualFold(n, key) {
			return e.values[i], nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", e.kind, s)
}

// vocabulary returns name to bit value, including aliases
func (e *enumNames[T]) vocabulary() map[string]uint64 {
	out := make(map[string]uint64, len(e.names)+len(e.aliases))
	for i, n := range e.names {
		out[n] = uint64(e.values[i])
	}
	for a, v := range e.aliases {
		out[a] = uint64(v)
	}
	return out
}

func (e *enumNames[T]) split(mask T) []T {
	var out []T
	for _, v := range e.values {
		if mask&v != 0 {
			out = append(out, v)
		}
	}
	return out
}

// Role of a person in a pedigree. Values are distinct bits so that sets of
// roles fit a single mask.
type Role uint32

const (
	RoleMaternalGrandmother Role = 1 << iota
	RoleMaternalGrandfather
	RolePaternalGrandmother
	RolePaternalGrandfather
	RoleMom
	RoleDad
	RoleParent
	RoleProband
	RoleSibling
	RoleChild
	RoleMaternalHalfSibling
	RolePaternalHalfSibling
	RoleHalfSibling
	RoleMaternalAunt
	RoleMaternalUncle
	RolePaternalAunt
	RolePaternalUncle
	RoleMaternalCousin
	RolePaternalCousin
	RoleStepMom
	RoleStepDad
	RoleSpouse
	RoleUnknown
)

var roleNames = &enumNames[Role]{
	kind: "role",
	values: []Role{
		RoleMaternalGrandmother, RoleMaternalGrandfather,
		RolePaternalGrandmother, RolePaternalGrandfather,
		RoleMom, RoleDad, RoleParent, RoleProband, RoleSibling, RoleChild,
		RoleMaternalHalfSibling, RolePaternalHalfSibling, RoleHalfSibling,
		RoleMaternalAunt, RoleMaternalUncle, RolePaternalAunt, RolePaternalUncle,
		RoleMaternalCousin, RolePaternalCousin,
		RoleStepMom, RoleStepDad, RoleSpouse, RoleUnknown,
	},
	names: []string{
		"maternal_grandmother", "maternal_grandfather",
		"paternal_grandmother", "paternal_grandfather",
		"mom", "dad", "parent", "prb", "sib", "child",
		"maternal_half_sibling", "paternal_half_sibling", "half_sibling",
		"maternal_aunt", "maternal_uncle", "paternal_aunt", "paternal_uncle",
		"maternal_cousin", "paternal_cousin",
		"step_mom", "step_dad", "spouse", "unknown",
	},
	aliases: map[string]Role{
		"mother":   RoleMom,
		"father":   RoleDad,
		"proband":  RoleProband,
		"sibling":  RoleSibling,
		"daughter": RoleChild,
		"son":      RoleChild,
		"stepmom":  RoleStepMom,
		"stepdad":  RoleStepDad,
		"":         RoleUnknown,
	},
}

func (r Role) String() string { return roleNames.name(r) }

// ParseRole parses a role name or alias
func ParseRole(s string) (Role, error) { return roleNames.parse(s) }

// RoleVocabulary returns role names mapped to their bits
func RoleVocabulary() map[string]uint64 { return roleNames.vocabulary() }

// Roles splits a role mask into single roles
func (r Role) Roles() []Role { return roleNames.split(r) }

// Sex of a person
type Sex uint32

const (
	SexMale        Sex = 1
	SexFemale      Sex = 2
	SexUnspecified Sex = 4
)

var sexNames = &enumNames[Sex]{
	kind:   "sex",
	values: []Sex{SexMale, SexFemale, SexUnspecified},
	names:  []string{"M", "F", "U"},
	aliases: map[string]Sex{
		"male":        SexMale,
		"female":      SexFemale,
		"unspecified": SexUnspecified,
		"1":           SexMale,
		"2":           SexFemale,
		"0":           SexUnspecified,
		"":            SexUnspecified,
	},
}

func (s Sex) String() string { return sexNames.name(s) }

// ParseSex accepts M/F/U, male/female/unspecified and 1/2/0
func ParseSex(s string) (Sex, error) { return sexNames.parse(s) }

// SexVocabulary returns sex names mapped to their bits
func SexVocabulary() map[string]uint64 { return sexNames.vocabulary() }

// Status is the affected status of a person
type Status uint32

const (
	StatusUnaffected  Status = 1
	StatusAffected    Status = 2
	StatusUnspecified Status = 4
)

var statusNames = &enumNames[Status]{
	kind:   "status",
	values: []Status{StatusUnaffected, StatusAffected, StatusUnspecified},
	names:  []string{"unaffected", "affected", "unspecified"},
	aliases: map[string]Status{
		"1":     StatusUnaffected,
		"2":     StatusAffected,
		"0":     StatusUnspecified,
		"false": StatusUnaffected,
		"true":  StatusAffected,
		"":      StatusUnspecified,
	},
}

func (s Status) String() string { return statusNames.name(s) }

// ParseStatus accepts names and the 1/2 pedigree codes
func ParseStatus(s string) (Status, error) { return statusNames.parse(s) }

// StatusVocabulary returns status names mapped to their bits
func StatusVocabulary() map[string]uint64 { return statusNames.vocabulary() }

// Inheritance of an allele in a family member. A member may carry more
// than one flag; denovo and omission can both hold for the same call.
type Inheritance uint32

const (
	InheritanceReference        Inheritance = 1
	InheritanceMendelian        Inheritance = 2
	InheritanceDenovo           Inheritance = 4
	InheritancePossibleDenovo   Inheritance = 8
	InheritanceOmission         Inheritance = 16
	InheritancePossibleOmission Inheritance = 32
	InheritanceOther            Inheritance = 64
	InheritanceMissing          Inheritance = 128
	InheritanceUnknown          Inheritance = 256
)

var inheritanceNames = &enumNames[Inheritance]{
	kind: "inheritance",
	values: []Inheritance{
		InheritanceReference, InheritanceMendelian, InheritanceDenovo,
		InheritancePossibleDenovo, InheritanceOmission, InheritancePossibleOmission,
		InheritanceOther, InheritanceMissing, InheritanceUnknown,
	},
	names: []string{
		"reference", "mendelian", "denovo",
		"possible_denovo", "omission", "possible_omission",
		"other", "missing", "unknown",
	},
}

func (i Inheritance) String() string { return inheritanceNames.name(i) }

// ParseInheritance parses a single inheritance name
func ParseInheritance(s string) (Inheritance, error) { return inheritanceNames.parse(s) }

// InheritanceVocabulary returns inheritance names mapped to their bits
func InheritanceVocabulary() map[string]uint64 { return inheritanceNames.vocabulary() }

// Has reports whether all bits of o are set
func (i Inheritance) Has(o Inheritance) bool { return i&o == o }

// Primary picks one flag when several are set, in the order unknown,
// mendelian, denovo, omission, other, missing.
func (i Inheritance) Primary() Inheritance {
	for _, p := range []Inheritance{
		InheritanceUnknown, InheritanceMendelian, InheritanceDenovo,
		InheritanceOmission, InheritanceOther, InheritanceMissing,
		InheritancePossibleDenovo, InheritancePossibleOmission, InheritanceReference,
	} {
		if i&p != 0 {
			return p
		}
	}
	return 0
}

// VariantType of an allele
type VariantType uint32

const (
	VariantSubstitution VariantType = 1
	VariantInsertion    VariantType = 2
	VariantDeletion     VariantType = 4
	VariantComplex      VariantType = 8
	VariantCNVPlus      VariantType = 16
	VariantCNVMinus     VariantType = 32
)

var variantTypeNames = &enumNames[VariantType]{
	kind: "variant type",
	values: []VariantType{
		VariantSubstitution, VariantInsertion, VariantDeletion,
		VariantComplex, VariantCNVPlus, VariantCNVMinus,
	},
	names: []string{"sub", "ins", "del", "comp", "cnv+", "cnv-"},
	aliases: map[string]VariantType{
		"substitution": VariantSubstitution,
		"insertion":    VariantInsertion,
		"deletion":     VariantDeletion,
		"complex":      VariantComplex,
		"dup":          VariantCNVPlus,
		"cnv_plus":     VariantCNVPlus,
		"cnv_minus":    VariantCNVMinus,
	},
}

func (v VariantType) String() string { return variantTypeNames.name(v) }

// ParseVariantType parses a variant type name or alias
func ParseVariantType(s string) (VariantType, error) { return variantTypeNames.parse(s) }

// VariantTypeVocabulary returns variant type names mapped to their bits
func VariantTypeVocabulary() map[string]uint64 { return variantTypeNames.vocabulary() }

// IsCNV reports whether the type is a copy number variant
func (v VariantType) IsCNV() bool { return v == VariantCNVPlus || v == VariantCNVMinus }

// TransmissionType tells how the variant calls were produced
type TransmissionType uint32

const (
	TransmissionUnknown     TransmissionType = 0
	TransmissionTransmitted TransmissionType = 1
	TransmissionDenovo      TransmissionType = 2
)

func (t TransmissionType) String() string {
	switch t {
	case TransmissionTransmitted:
		return "transmitted"
	case TransmissionDenovo:
		return "denovo"
	}
	return "unknown"
}

// ParseTransmissionType parses transmitted/denovo
func ParseTransmissionType(s string) (TransmissionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transmitted":
		return TransmissionTransmitted, nil
	case "denovo", "de novo":
		return TransmissionDenovo, nil
	case "", "unknown":
		return TransmissionUnknown, nil
	}
	return 0, fmt.Errorf("unknown transmission type %q", s)
}

// sortedKeys returns map keys in order, for deterministic output
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
