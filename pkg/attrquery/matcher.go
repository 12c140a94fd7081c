package attrquery

import (
	"fmt"
	"math/bits"
	"strings"
)

// Vocabulary maps the names an expression may use to their bits
type Vocabulary map[string]uint64

func (v Vocabulary) lookup(name string) (uint64, bool) {
	if b, ok := v[name]; ok {
		return b, true
	}
	b, ok := v[strings.ToLower(name)]
	return b, ok
}

// Matcher is an expression bound to a vocabulary
type Matcher struct {
	Expr string
	Root *Node

	values map[*Node]uint64
	hasEq  bool
	all    uint64
}

// Compile parses the expression and resolves every name. An unknown name
// is a QueryGrammarError.
func Compile(expr string, vocab Vocabulary) (*Matcher, error) {
	root, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	m := &Matcher{Expr: expr, Root: root, values: make(map[*Node]uint64)}
	for _, v := range vocab {
		m.all |= v
	}
	if err := m.resolve(root, vocab); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matcher) resolve(n *Node, vocab Vocabulary) error {
	if n.Kind == NodeName {
		v, ok := vocab.lookup(n.Name)
		if !ok {
			return &QueryGrammarError{Expr: m.Expr, Pos: n.Pos, Token: n.Name, Msg: "unknown name"}
		}
		m.values[n] = v
		return nil
	}
	if n.Kind == NodeEq {
		m.hasEq = true
	}
	for _, c := range n.Children {
		if err := m.resolve(c, vocab); err != nil {
			return err
		}
	}
	return nil
}

// argsMask ORs the bits of a call's arguments
func (m *Matcher) argsMask(n *Node) uint64 {
	var mask uint64
	for _, c := range n.Children {
		mask |= m.values[c]
	}
	return mask
}

// Match evaluates the expression against a mask. A name holds when any of
// its bits is set.
func (m *Matcher) Match(mask uint64) bool {
	return m.eval(m.Root, mask)
}

func (m *Matcher) eval(n *Node, mask uint64) bool {
	switch n.Kind {
	case NodeName:
		return mask&m.values[n] != 0
	case NodeNot:
		return !m.eval(n.Children[0], mask)
	case NodeAnd:
		for _, c := range n.Children {
			if !m.eval(c, mask) {
				return false
			}
		}
		return true
	case NodeOr:
		for _, c := range n.Children {
			if m.eval(c, mask) {
				return true
			}
		}
		return false
	case NodeAny:
		return mask&m.argsMask(n) != 0
	case NodeAll:
		want := m.argsMask(n)
		return mask&want == want
	case NodeEq:
		return mask == m.argsMask(n)
	}
	return false
}

// Bits returns the union of the bits the expression mentions
func (m *Matcher) Bits() uint64 {
	var out uint64
	for _, v := range m.values {
		out |= v
	}
	return out
}

// maxEnumerationBits bounds the masks Implies and Satisfiable try
const maxEnumerationBits = 16

// universe returns the bits that can change the outcome of Match
func (m *Matcher) universe(extra uint64) uint64 {
	u := m.Bits() | extra
	if m.hasEq {
		u |= m.all
	}
	return u
}

// forEachSubset calls fn for every subset of u until fn returns false. It
// reports false when u has too many bits to enumerate.
func forEachSubset(u uint64, fn func(uint64) bool) bool {
	if bits.OnesCount64(u) > maxEnumerationBits {
		return false
	}
	for s := u; ; s = (s - 1) & u {
		if !fn(s) {
			return true
		}
		if s == 0 {
			return true
		}
	}
}

// Implies reports whether every mask satisfying the expression has a bit of
// b set. It answers false when this cannot be decided.
func (m *Matcher) Implies(b uint64) bool {
	implied := true
	complete := forEachSubset(m.universe(b), func(s uint64) bool {
		if s&b == 0 && m.Match(s) {
			implied = false
			return false
		}
		return true
	})
	return complete && implied
}

// Satisfiable reports whether some mask satisfies the expression. It
// answers true when this cannot be decided.
func (m *Matcher) Satisfiable() bool {
	found := false
	complete := forEachSubset(m.universe(0), func(s uint64) bool {
		if m.Match(s) {
			found = true
			return false
		}
		return true
	})
	return found || !complete
}

// BitAndFunc renders the bitwise and of a column and a constant
type BitAndFunc func(column string, mask uint64) string

// InfixBitAnd renders "(column & mask)", as SQLite and DuckDB accept
func InfixBitAnd(column string, mask uint64) string {
	return fmt.Sprintf("(%s & %d)", column, mask)
}

// FunctionBitAnd renders "bitand(column, mask)", as Impala expects
func FunctionBitAnd(column string, mask uint64) string {
	return fmt.Sprintf("bitand(%s, %d)", column, mask)
}

// SQL renders the expression as a predicate over an integer mask column
func (m *Matcher) SQL(column string, bitAnd BitAndFunc) string {
	return m.sql(m.Root, column, bitAnd)
}

func (m *Matcher) sql(n *Node, column string, bitAnd BitAndFunc) string {
	switch n.Kind {
	case NodeName:
		return fmt.Sprintf("%s != 0", bitAnd(column, m.values[n]))
	case NodeNot:
		return fmt.Sprintf("NOT (%s)", m.sql(n.Children[0], column, bitAnd))
	case NodeAnd, NodeOr:
		op := " AND "
		if n.Kind == NodeOr {
			op = " OR "
		}
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = "(" + m.sql(c, column, bitAnd) + ")"
		}
		return strings.Join(parts, op)
	case NodeAny:
		return fmt.Sprintf("%s != 0", bitAnd(column, m.argsMask(n)))
	case NodeAll:
		want := m.argsMask(n)
		return fmt.Sprintf("%s = %d", bitAnd(column, want), want)
	case NodeEq:
		return fmt.Sprintf("%s = %d", column, m.argsMask(n))
	}
	return "FALSE"
}

func (m *Matcher) String() string { return m.Root.String() }
