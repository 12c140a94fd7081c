package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/scttfrdmn/varquery-go/pkg/genotype"
	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

type alleleBlob struct {
	Chrom            string              `json:"chrom"`
	Position         int                 `json:"position"`
	EndPosition      int                 `json:"end_position,omitempty"`
	Reference        string              `json:"reference"`
	Alternative      string              `json:"alternative,omitempty"`
	SummaryIndex     int                 `json:"summary_index"`
	AlleleIndex      int                 `json:"allele_index"`
	BucketIndex      int                 `json:"bucket_index"`
	VariantType      uint32              `json:"variant_type,omitempty"`
	TransmissionType uint32              `json:"transmission_type,omitempty"`
	Effects          []variants.Effect   `json:"effects,omitempty"`
	Attributes       variants.Attributes `json:"attributes"`
}

type familyBlob struct {
	FamilyID  string       `json:"family_id"`
	BestState []byte       `json:"best_state"`
	Summary   []alleleBlob `json:"summary"`
}

func toAlleleBlobs(sv *variants.SummaryVariant) []alleleBlob {
	out := make([]alleleBlob, len(sv.Alleles))
	for i, a := range sv.Alleles {
		out[i] = alleleBlob{
			Chrom:            a.Chrom,
			Position:         a.Position,
			EndPosition:      a.EndPosition,
			Reference:        a.Reference,
			Alternative:      a.Alternative,
			SummaryIndex:     a.SummaryIndex,
			AlleleIndex:      a.AlleleIndex,
			BucketIndex:      a.BucketIndex,
			VariantType:      uint32(a.VariantType),
			TransmissionType: uint32(a.TransmissionType),
			Effects:          a.Effects,
			Attributes:       a.Attributes,
		}
	}
	return out
}

func fromAlleleBlobs(blobs []alleleBlob) (*variants.SummaryVariant, error) {
	alleles := make([]*variants.SummaryAllele, len(blobs))
	for i, b := range blobs {
		alleles[i] = &variants.SummaryAllele{
			Chrom:            b.Chrom,
			Position:         b.Position,
			EndPosition:      b.EndPosition,
			Reference:        b.Reference,
			Alternative:      b.Alternative,
			SummaryIndex:     b.SummaryIndex,
			AlleleIndex:      b.AlleleIndex,
			BucketIndex:      b.BucketIndex,
			VariantType:      variants.VariantType(b.VariantType),
			TransmissionType: variants.TransmissionType(b.TransmissionType),
			Effects:          b.Effects,
			Attributes:       b.Attributes,
		}
	}
	return variants.NewSummaryVariant(alleles)
}

// Codec serializes variants into the compressed blobs stored in summary
// and family rows
type Codec struct {
	compressor *Compressor
	opts       variants.Options
}

func NewCodec(compressor *Compressor, opts variants.Options) *Codec {
	return &Codec{compressor: compressor, opts: opts}
}

func (c *Codec) EncodeSummary(sv *variants.SummaryVariant) ([]byte, error) {
	data, err := json.Marshal(toAlleleBlobs(sv))
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary variant %s: %w", sv.SVUID(), err)
	}
	return c.compressor.Compress(data), nil
}

func (c *Codec) DecodeSummary(data []byte) (*variants.SummaryVariant, error) {
	raw, err := c.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress summary variant: %w", err)
	}
	var blobs []alleleBlob
	if err := json.Unmarshal(raw, &blobs); err != nil {
		return nil, fmt.Errorf("failed to decode summary variant: %w", err)
	}
	return fromAlleleBlobs(blobs)
}

func (c *Codec) EncodeFamily(fv *variants.FamilyVariant) ([]byte, error) {
	bs, err := genotype.EncodeMatrix(fv.BestState, genotype.KindBestState)
	if err != nil {
		return nil, fmt.Errorf("failed to encode best state of %s: %w", fv.FVUID(), err)
	}
	data, err := json.Marshal(familyBlob{
		FamilyID:  fv.FamilyID(),
		BestState: bs,
		Summary:   toAlleleBlobs(fv.Summary),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode family variant %s: %w", fv.FVUID(), err)
	}
	return c.compressor.Compress(data), nil
}

// DecodeFamily rebuilds a family variant and attaches the family object of
// the dataset pedigree by id. Inheritance is recomputed from the best state.
func (c *Codec) DecodeFamily(data []byte, families *variants.Families) (*variants.FamilyVariant, error) {
	raw, err := c.compressor.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress family variant: %w", err)
	}
	var blob familyBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, fmt.Errorf("failed to decode family variant: %w", err)
	}
	sv, err := fromAlleleBlobs(blob.Summary)
	if err != nil {
		return nil, err
	}
	f, ok := families.Get(blob.FamilyID)
	if !ok {
		return nil, fmt.Errorf("family %s is not in the pedigree", blob.FamilyID)
	}
	bs, kind, err := genotype.DecodeMatrix(blob.BestState)
	if err != nil {
		return nil, fmt.Errorf("failed to decode best state: %w", err)
	}
	if kind != genotype.KindBestState {
		return nil, fmt.Errorf("family %s blob holds matrix kind %d, expected a best state", blob.FamilyID, kind)
	}
	return variants.NewFamilyVariantFromBestState(sv, f, bs, c.opts)
}
