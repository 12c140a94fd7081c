package dataset

import (
	"context"
	"fmt"

	"github.com/scttfrdmn/varquery-go/pkg/partition"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

func pedigreeRows(families *variants.Families, desc *partition.Descriptor) []PedigreeRow {
	var rows []PedigreeRow
	for p := range families.Persons() {
		row := PedigreeRow{
			FamilyID:    p.FamilyID,
			PersonID:    p.PersonID,
			MomID:       p.MomID,
			DadID:       p.DadID,
			Sex:         int32(p.Sex),
			Status:      int32(p.Status),
			Role:        int32(p.Role),
			MemberIndex: int32(p.Index),
		}
		if desc.HasFamilyBins() {
			row.FamilyBin = int32(desc.MakeFamilyBin(p.FamilyID))
		}
		rows = append(rows, row)
	}
	return rows
}

// WritePedigree stores the pedigree table of a dataset
func WritePedigree(ctx context.Context, store Storage, families *variants.Families, desc *partition.Descriptor) error {
	return writeRows(ctx, store, PedigreeFile, pedigreeRows(families, desc))
}

// ReadPedigree loads the pedigree table. Rows are regrouped in member
// order so genotype columns line up with what was imported.
func ReadPedigree(ctx context.Context, store Storage) (*variants.Families, error) {
	rows, err := readRows[PedigreeRow](ctx, store, PedigreeFile)
	if err != nil {
		return nil, err
	}
	persons := make([]*variants.Person, len(rows))
	for i, r := range rows {
		persons[i] = &variants.Person{
			FamilyID: r.FamilyID,
			PersonID: r.PersonID,
			MomID:    r.MomID,
			DadID:    r.DadID,
			Sex:      variants.Sex(r.Sex),
			Status:   variants.Status(r.Status),
			Role:     variants.Role(r.Role),
		}
	}
	families, err := variants.NewFamilies(persons)
	if err != nil {
		return nil, corrupted(PedigreeFile, "invalid pedigree: %w", err)
	}
	for i, r := range rows {
		if persons[i].Index != int(r.MemberIndex) {
			return nil, corrupted(PedigreeFile, "person %s stored at member index %d, loaded at %d",
				r.PersonID, r.MemberIndex, persons[i].Index)
		}
	}
	return families, nil
}

// ValidatePedigree checks the imported pedigree before any variant is
// parsed
func ValidatePedigree(families *variants.Families) error {
	if families == nil || families.Len() == 0 {
		return fmt.Errorf("pedigree has no families")
	}
	for f := range families.All() {
		for _, p := range f.Members {
			for _, parent := range []string{p.MomID, p.DadID} {
				if parent == "" || parent == "0" {
					continue
				}
				if _, ok := f.Person(parent); !ok {
					return fmt.Errorf("family %s: parent %s of %s is not a family member", f.ID, parent, p.PersonID)
				}
			}
		}
	}
	return nil
}
