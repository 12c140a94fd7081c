package variants

import (
	"fmt"
	"iter"
)

// Person is one pedigree member
type Person struct {
	FamilyID string
	PersonID string
	MomID    string
	DadID    string
	Sex      Sex
	Status   Status
	Role     Role

	// Index is the position of the person in the family, which is the
	// genotype column of the person
	Index int
}

// IsMale reports whether the person is male
func (p *Person) IsMale() bool { return p.Sex == SexMale }

// HasParents reports whether the pedigree names any parent
func (p *Person) HasParents() bool { return p.MomID != "" || p.DadID != "" }

// Family is a pedigree in member order
type Family struct {
	ID      string
	Members []*Person

	index map[string]int
}

// NewFamily indexes members and fills in missing roles
func NewFamily(id string, members []*Person) (*Family, error) {
	f := &Family{ID: id, Members: members, index: make(map[string]int, len(members))}
	for i, p := range members {
		if p.FamilyID != id {
			return nil, fmt.Errorf("person %s belongs to family %s, not %s", p.PersonID, p.FamilyID, id)
		}
		if _, dup := f.index[p.PersonID]; dup {
			return nil, fmt.Errorf("family %s: duplicate person %s", id, p.PersonID)
		}
		p.Index = i
		f.index[p.PersonID] = i
	}
	f.inferRoles()
	return f, nil
}

// inferRoles assigns mom/dad/prb/sib to persons without a role
func (f *Family) inferRoles() {
	parents := make(map[string]bool)
	for _, p := range f.Members {
		parents[p.MomID] = true
		parents[p.DadID] = true
	}
	for _, p := range f.Members {
		if p.Role != 0 && p.Role != RoleUnknown {
			continue
		}
		_, momIn := f.index[p.MomID]
		_, dadIn := f.index[p.DadID]
		switch {
		case momIn && dadIn && p.Status == StatusAffected:
			p.Role = RoleProband
		case momIn && dadIn:
			p.Role = RoleSibling
		case parents[p.PersonID] && p.Sex == SexFemale:
			p.Role = RoleMom
		case parents[p.PersonID] && p.Sex == SexMale:
			p.Role = RoleDad
		default:
			p.Role = RoleUnknown
		}
	}
}

// Size returns the number of members
func (f *Family) Size() int { return len(f.Members) }

// MemberIndex returns the genotype column of a person
func (f *Family) MemberIndex(personID string) (int, bool) {
	i, ok := f.index[personID]
	return i, ok
}

// Person returns a member by id
func (f *Family) Person(personID string) (*Person, bool) {
	i, ok := f.index[personID]
	if !ok {
		return nil, false
	}
	return f.Members[i], true
}

// Parents returns the member indices of both parents of member i. ok is
// false unless both parents are members of the family.
func (f *Family) Parents(i int) (mom, dad int, ok bool) {
	p := f.Members[i]
	mom, momOK := f.index[p.MomID]
	dad, dadOK := f.index[p.DadID]
	return mom, dad, momOK && dadOK
}

// IsFounder reports whether member i has no parent inside the family
func (f *Family) IsFounder(i int) bool {
	p := f.Members[i]
	_, momOK := f.index[p.MomID]
	_, dadOK := f.index[p.DadID]
	return !momOK && !dadOK
}

// Trios returns child index to (mom, dad) indices for every complete trio
func (f *Family) Trios() map[int][2]int {
	out := make(map[int][2]int)
	for i := range f.Members {
		if mom, dad, ok := f.Parents(i); ok {
			out[i] = [2]int{mom, dad}
		}
	}
	return out
}

// MaleMask returns per member whether the member is male
func (f *Family) MaleMask() []bool {
	out := make([]bool, len(f.Members))
	for i, p := range f.Members {
		out[i] = p.IsMale()
	}
	return out
}

// Families holds pedigrees keyed by family id in first-seen order
type Families struct {
	byID    map[string]*Family
	order   []string
	persons map[string]*Person
}

// NewFamilies groups persons into families, keeping input order
func NewFamilies(persons []*Person) (*Families, error) {
	groups := make(map[string][]*Person)
	var order []string
	for _, p := range persons {
		if p.FamilyID == "" {
			return nil, fmt.Errorf("person %s without family id", p.PersonID)
		}
		if _, ok := groups[p.FamilyID]; !ok {
			order = append(order, p.FamilyID)
		}
		groups[p.FamilyID] = append(groups[p.FamilyID], p)
	}

	fs := &Families{
		byID:    make(map[string]*Family, len(order)),
		order:   order,
		persons: make(map[string]*Person, len(persons)),
	}
	for _, id := range order {
		f, err := NewFamily(id, groups[id])
		if err != nil {
			return nil, err
		}
		fs.byID[id] = f
		for _, p := range f.Members {
			if _, dup := fs.persons[p.PersonID]; dup {
				return nil, fmt.Errorf("person %s appears in more than one family", p.PersonID)
			}
			fs.persons[p.PersonID] = p
		}
	}
	return fs, nil
}

// Get returns a family by id
func (fs *Families) Get(id string) (*Family, bool) {
	f, ok := fs.byID[id]
	return f, ok
}

// Person returns a person by id
func (fs *Families) Person(personID string) (*Person, bool) {
	p, ok := fs.persons[personID]
	return p, ok
}

// Len returns the number of families
func (fs *Families) Len() int { return len(fs.order) }

// IDs returns family ids in input order
func (fs *Families) IDs() []string { return append([]string(nil), fs.order...) }

// All iterates families in input order
func (fs *Families) All() iter.Seq[*Family] {
	return func(yield func(*Family) bool) {
		for _, id := range fs.order {
			if !yield(fs.byID[id]) {
				return
			}
		}
	}
}

// Persons iterates all persons, family by family
func (fs *Families) Persons() iter.Seq[*Person] {
	return func(yield func(*Person) bool) {
		for _, id := range fs.order {
			for _, p := range fs.byID[id].Members {
				if !yield(p) {
					return
				}
			}
		}
	}
}

// FamiliesOfPersons returns the family ids holding any of the persons
func (fs *Families) FamiliesOfPersons(personIDs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, pid := range personIDs {
		p, ok := fs.persons[pid]
		if !ok || seen[p.FamilyID] {
			continue
		}
		seen[p.FamilyID] = true
		out = append(out, p.FamilyID)
	}
	return out
}
