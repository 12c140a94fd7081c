package genotype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestStateFromGenotype(t *testing.T) {
	tests := []struct {
		name       string
		gt         Matrix
		numAlleles int
		expected   string
	}{
		{"two alternatives", Matrix{{0, 0, 1}, {0, 0, 2}}, 3, "220/001/001"},
		{"reference only", Matrix{{0, 0, 0}, {0, 0, 0}}, 2, "222/000"},
		{"unknown column", Matrix{{0, NoCall, 1}, {0, 0, 0}}, 2, "2?1/0?1"},
		{"haploid", Matrix{{0, 1}, {HaploidMissing, 1}}, 2, "10/02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs, err := BestStateFromGenotype(tt.gt, tt.numAlleles)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, FormatBestState(bs))
		})
	}
}

func TestBestStateFromGenotypeOutOfRange(t *testing.T) {
	_, err := BestStateFromGenotype(Matrix{{0, 3}, {0, 0}}, 2)
	assert.Error(t, err)
}

func TestGenotypeFromBestState(t *testing.T) {
	tests := []struct {
		name     string
		bs       string
		expected Matrix
		broken   bool
	}{
		{"heterozygous", "221/001", Matrix{{0, 0, 0}, {0, 0, 1}}, false},
		{"haploid column", "211/001", Matrix{{0, 0, 0}, {0, HaploidMissing, 1}}, false},
		{"multi allelic", "210/011/001", Matrix{{0, 0, 1}, {0, 1, 2}}, false},
		{"unknown column", "2?/0?", Matrix{{0, NoCall}, {0, NoCall}}, false},
		{"three copies", "23/00", Matrix{{0, NoCall}, {0, NoCall}}, true},
		{"no copies", "20/00", Matrix{{0, NoCall}, {0, NoCall}}, true},
		{"three alleles in one person", "21/01/01", Matrix{{0, NoCall}, {0, NoCall}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs, err := ParseBestState(tt.bs)
			require.NoError(t, err)
			gt, broken := GenotypeFromBestState(bs)
			assert.Equal(t, tt.expected, gt)
			assert.Equal(t, tt.broken, broken)
		})
	}
}

func TestGenotypeBestStateRoundTrip(t *testing.T) {
	// every unphased diploid call over three alleles, for a trio
	var calls [][2]int
	for a := 0; a < 3; a++ {
		for b := a; b < 3; b++ {
			calls = append(calls, [2]int{a, b})
		}
	}

	for _, c0 := range calls {
		for _, c1 := range calls {
			for _, c2 := range calls {
				gt := Matrix{
					{c0[0], c1[0], c2[0]},
					{c0[1], c1[1], c2[1]},
				}
				bs, err := BestStateFromGenotype(gt, 3)
				require.NoError(t, err)
				back, broken := GenotypeFromBestState(bs)
				require.False(t, broken)
				require.Equal(t, gt, back, "best state %s", FormatBestState(bs))
			}
		}
	}
}

func TestGenotypeBestStateUnsorted(t *testing.T) {
	gt := Matrix{
		{1, 0, 2},
		{0, 0, 1},
	}
	bs, err := BestStateFromGenotype(gt, 3)
	require.NoError(t, err)
	back, broken := GenotypeFromBestState(bs)
	require.False(t, broken)
	assert.Equal(t, Matrix{{0, 0, 1}, {1, 0, 2}}, back)

	again, err := BestStateFromGenotype(back, 3)
	require.NoError(t, err)
	assert.True(t, bs.Equal(again))
}

func TestParseBestStateErrors(t *testing.T) {
	for _, s := range []string{"", "22/0", "2x2/000"} {
		_, err := ParseBestState(s)
		assert.Error(t, err, s)
	}
}

func TestParseGenotype(t *testing.T) {
	gt, err := ParseGenotype("0/1,0/0,1,./.")
	require.NoError(t, err)
	assert.Equal(t, Matrix{
		{0, 0, 1, NoCall},
		{1, 0, HaploidMissing, NoCall},
	}, gt)
	assert.Equal(t, "0/1,0/0,1,./.", FormatGenotype(gt))

	_, err = ParseGenotype("0/1/2")
	assert.Error(t, err)
}

func TestGenotypePredicates(t *testing.T) {
	ref := Matrix{{0, 0, 0}, {0, 0, 0}}
	assert.True(t, IsReference(ref))
	assert.False(t, IsUnknown(ref))
	assert.Empty(t, AltAlleles(ref))

	gt := Matrix{{0, NoCall, 2}, {1, NoCall, 2}}
	assert.False(t, IsReference(gt))
	assert.True(t, IsUnknown(gt))
	assert.False(t, IsAllUnknown(gt))
	assert.Equal(t, []int{1, 2}, AltAlleles(gt))
	assert.Equal(t, []int{1, NoCall, 0}, AlleleCounts(gt, 1))
	assert.Equal(t, []int{0, NoCall, 2}, AlleleCounts(gt, 2))

	bs, err := BestStateFromGenotype(gt, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, NoCall, 2}, Ploidy(bs))
}

func TestMatrixCodec(t *testing.T) {
	gt := Matrix{{0, NoCall, 1}, {HaploidMissing, NoCall, 2}}
	data, err := EncodeMatrix(gt, KindGenotype)
	require.NoError(t, err)

	back, kind, err := DecodeMatrix(data)
	require.NoError(t, err)
	assert.Equal(t, KindGenotype, kind)
	assert.Equal(t, gt, back)

	_, _, err = DecodeMatrix(data[:len(data)-1])
	assert.Error(t, err)

	data[0] = 0
	_, _, err = DecodeMatrix(data)
	assert.Error(t, err)
}
