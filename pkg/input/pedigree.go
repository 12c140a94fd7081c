package input

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

// pedigreeColumns maps accepted header names to pedigree fields
var pedigreeColumns = map[string]string{
	"familyid": "family", "family_id": "family",
	"personid": "person", "person_id": "person",
	"dadid": "dad", "dad_id": "dad",
	"momid": "mom", "mom_id": "mom",
	"sex": "sex", "status": "status", "role": "role",
}

var requiredPedigreeColumns = []string{"family", "person", "dad", "mom", "sex"}

func parseSex(s string) (variants.Sex, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return variants.SexMale, nil
	case "2":
		return variants.SexFemale, nil
	case "", "0":
		return variants.SexUnspecified, nil
	}
	return variants.ParseSex(s)
}

func parseStatus(s string) (variants.Status, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return variants.StatusUnaffected, nil
	case "2":
		return variants.StatusAffected, nil
	case "", "0", "-9":
		return variants.StatusUnspecified, nil
	}
	return variants.ParseStatus(s)
}

func parentID(s string) string {
	if s == "0" || s == "-" {
		return ""
	}
	return s
}

// ReadPedigree reads a tab separated pedigree with the columns familyId,
// personId, dadId, momId, sex, status and role. Status and role are
// optional; missing roles are inferred from the trios.
func ReadPedigree(path string) ([]*variants.Person, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	t := &table{path: path, scanner: bufio.NewScanner(r)}
	if err := t.readHeader(); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(t.header))
	for _, h := range t.header {
		if f, ok := pedigreeColumns[strings.ToLower(h)]; ok {
			fields[h] = f
		}
	}
	have := make(map[string]bool)
	for _, f := range fields {
		have[f] = true
	}
	for _, f := range requiredPedigreeColumns {
		if !have[f] {
			return nil, fmt.Errorf("%s: missing %s column", path, f)
		}
	}

	var persons []*variants.Person
	for rec, err := range t.rows() {
		if err != nil {
			return nil, err
		}
		values := make(map[string]string, len(fields))
		for h, f := range fields {
			values[f] = rec.Fields[h]
		}
		p := &variants.Person{
			FamilyID: values["family"],
			PersonID: values["person"],
			DadID:    parentID(values["dad"]),
			MomID:    parentID(values["mom"]),
		}
		malformed := func(msg string, err error) error {
			return &variants.MalformedRecordError{File: path, Line: rec.Line, Msg: msg, Err: err}
		}
		if p.FamilyID == "" || p.PersonID == "" {
			return nil, malformed("empty family or person id", nil)
		}
		if p.Sex, err = parseSex(values["sex"]); err != nil {
			return nil, malformed("bad sex", err)
		}
		if p.Status, err = parseStatus(values["status"]); err != nil {
			return nil, malformed("bad status", err)
		}
		if role := values["role"]; role != "" {
			if p.Role, err = variants.ParseRole(role); err != nil {
				return nil, malformed("bad role", err)
			}
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// LoadFamilies reads a pedigree file into families
func LoadFamilies(path string) (*variants.Families, error) {
	persons, err := ReadPedigree(path)
	if err != nil {
		return nil, err
	}
	families, err := variants.NewFamilies(persons)
	if err != nil {
		return nil, fmt.Errorf("invalid pedigree %s: %w", path, err)
	}
	return families, nil
}
