package attrquery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/varquery-go/pkg/variants"
)

var roles = Vocabulary{"mom": 1, "dad": 2, "prb": 4, "sib": 8}

func TestParse(t *testing.T) {
	tests := []struct {
		expr     string
		expected string
	}{
		{"prb", "prb"},
		{"prb and not sib", "(prb and not sib)"},
		{"mom or dad and prb", "(mom or (dad and prb))"},
		{"(mom or dad) and prb", "((mom or dad) and prb)"},
		{"not not prb", "not not prb"},
		{"any(mom, dad)", "any(mom, dad)"},
		{"ALL(mom,dad,)", "all(mom, dad)"},
		{"eq(prb)", "eq(prb)"},
		{`"3'UTR" or 'intron'`, "(3'UTR or intron)"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			n, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		expr string
		pos  int
	}{
		{"", 0},
		{"prb and", 7},
		{"and prb", 0},
		{"(prb or sib", 11},
		{"prb sib", 4},
		{"any()", 4},
		{"prb & sib", 4},
		{`"open`, 0},
		{"any(mom dad)", 8},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Parse(tt.expr)
			var qe *QueryGrammarError
			require.True(t, errors.As(err, &qe), "%v", err)
			assert.Equal(t, tt.pos, qe.Pos)
		})
	}
}

func TestCompileUnknownName(t *testing.T) {
	_, err := Compile("prb or uncle", roles)
	var qe *QueryGrammarError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "uncle", qe.Token)
	assert.Equal(t, 7, qe.Pos)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		expr    string
		mask    uint64
		matches bool
	}{
		{"prb", 4, true},
		{"prb", 8, false},
		{"prb and not sib", 4, true},
		{"prb and not sib", 12, false},
		{"mom or dad", 2, true},
		{"any(mom, dad)", 3, true},
		{"any(mom, dad)", 4, false},
		{"all(mom, dad)", 1, false},
		{"all(mom, dad)", 7, true},
		{"eq(mom, dad)", 3, true},
		{"eq(mom, dad)", 7, false},
		{"not prb", 0, true},
		{"PRB", 4, true},
	}
	for _, tt := range tests {
		m, err := Compile(tt.expr, roles)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.matches, m.Match(tt.mask), "%s on %b", tt.expr, tt.mask)
	}
}

func TestSQL(t *testing.T) {
	m, err := Compile("prb and not any(mom, dad)", roles)
	require.NoError(t, err)
	assert.Equal(t, "((prb_col & 4) != 0) AND (NOT ((prb_col & 3) != 0))", m.SQL("prb_col", InfixBitAnd))
	assert.Equal(t, "(bitand(c, 4) != 0) AND (NOT (bitand(c, 3) != 0))", m.SQL("c", FunctionBitAnd))

	m, err = Compile("all(mom, dad) or eq(sib)", roles)
	require.NoError(t, err)
	assert.Equal(t, "((c & 3) = 3) OR (c = 8)", m.SQL("c", InfixBitAnd))
}

func TestImpliesAndSatisfiable(t *testing.T) {
	inh := Vocabulary(variants.InheritanceVocabulary())
	denovo := uint64(variants.InheritanceDenovo)

	tests := []struct {
		expr        string
		implies     bool
		satisfiable bool
	}{
		{"denovo", true, true},
		{"denovo and not omission", true, true},
		{"denovo or mendelian", false, true},
		{"not denovo", false, true},
		{"mendelian and missing", false, true},
		{"denovo and not denovo", true, false},
		{"eq(denovo)", true, true},
	}
	for _, tt := range tests {
		m, err := Compile(tt.expr, inh)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.implies, m.Implies(denovo), "implies %s", tt.expr)
		assert.Equal(t, tt.satisfiable, m.Satisfiable(), "satisfiable %s", tt.expr)
	}
}
