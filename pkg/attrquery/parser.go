// Package attrquery parses boolean expressions over named flags, such as
// "prb and not sib" or "denovo or any(mendelian, missing)", and evaluates
// them against bit masks in memory or as SQL.
package attrquery

import (
	"fmt"
	"strings"
	"unicode"
)

// QueryGrammarError reports a malformed expression
type QueryGrammarError struct {
	Expr  string
	Pos   int
	Token string
	Msg   string
}

func (e *QueryGrammarError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("invalid expression %q at offset %d: %s", e.Expr, e.Pos, e.Msg)
	}
	return fmt.Sprintf("invalid expression %q at offset %d near %q: %s", e.Expr, e.Pos, e.Token, e.Msg)
}

// NodeKind tells what a Node does
type NodeKind int

const (
	NodeName NodeKind = iota
	NodeNot
	NodeAnd
	NodeOr
	NodeAny
	NodeAll
	NodeEq
)

// Node is an expression tree node. Name is set on NodeName only; the call
// nodes hold their arguments as NodeName children.
type Node struct {
	Kind     NodeKind
	Name     string
	Pos      int
	Children []*Node
}

func (n *Node) String() string {
	switch n.Kind {
	case NodeName:
		return n.Name
	case NodeNot:
		return "not " + n.Children[0].String()
	case NodeAnd, NodeOr:
		op := " and "
		if n.Kind == NodeOr {
			op = " or "
		}
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, op) + ")"
	}
	fn := map[NodeKind]string{NodeAny: "any", NodeAll: "all", NodeEq: "eq"}[n.Kind]
	args := make([]string, len(n.Children))
	for i, c := range n.Children {
		args[i] = c.Name
	}
	return fn + "(" + strings.Join(args, ", ") + ")"
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_.-+'", r)
}

func lex(expr string) ([]token, error) {
	var toks []token
	runes := []rune(expr)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case r == '"':
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			if end == len(runes) {
				return nil, &QueryGrammarError{Expr: expr, Pos: i, Token: string(runes[i:]), Msg: "unterminated quote"}
			}
			toks = append(toks, token{tokIdent, string(runes[i+1 : end]), i})
			i = end + 1
		case isIdentRune(r):
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			text := string(runes[start:i])
			if len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'' {
				text = text[1 : len(text)-1]
			}
			toks = append(toks, token{tokIdent, text, start})
		default:
			return nil, &QueryGrammarError{Expr: expr, Pos: i, Token: string(r), Msg: "unexpected character"}
		}
	}
	toks = append(toks, token{tokEOF, "", len(runes)})
	return toks, nil
}

type parser struct {
	expr string
	toks []token
	pos  int
}

// Parse builds the expression tree. Operators bind as not, and, or from
// tightest to loosest.
func Parse(expr string) (*Node, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{expr: expr, toks: toks}
	if p.peek().kind == tokEOF {
		return nil, p.fail("empty expression")
	}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.fail("unexpected trailing input")
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) fail(msg string) error {
	t := p.peek()
	return &QueryGrammarError{Expr: p.expr, Pos: t.pos, Token: t.text, Msg: msg}
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func (p *parser) parseOr() (*Node, error) {
	return p.parseBinary("or", NodeOr, p.parseAnd)
}

func (p *parser) parseAnd() (*Node, error) {
	return p.parseBinary("and", NodeAnd, p.parseUnary)
}

func (p *parser) parseBinary(keyword string, kind NodeKind, operand func() (*Node, error)) (*Node, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	children := []*Node{first}
	for p.isKeyword(keyword) {
		p.next()
		n, err := operand()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &Node{Kind: kind, Children: children}, nil
}

var functions = map[string]NodeKind{"any": NodeAny, "all": NodeAll, "eq": NodeEq}

func (p *parser) parseUnary() (*Node, error) {
	if p.isKeyword("not") {
		p.next()
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeNot, Children: []*Node{n}}, nil
	}

	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.fail("expected )")
		}
		p.next()
		return n, nil
	case tokIdent:
		if kind, ok := functions[strings.ToLower(t.text)]; ok && p.toks[p.pos+1].kind == tokLParen {
			return p.parseCall(kind)
		}
		switch strings.ToLower(t.text) {
		case "and", "or":
			return nil, p.fail("operator without left operand")
		}
		p.next()
		return &Node{Kind: NodeName, Name: t.text, Pos: t.pos}, nil
	}
	return nil, p.fail("expected a name, not, ( or a function call")
}

func (p *parser) parseCall(kind NodeKind) (*Node, error) {
	p.next() // name
	p.next() // (
	n := &Node{Kind: kind}
	for {
		t := p.peek()
		if t.kind == tokRParen && len(n.Children) > 0 {
			p.next()
			return n, nil
		}
		if t.kind != tokIdent {
			return nil, p.fail("expected an argument")
		}
		p.next()
		n.Children = append(n.Children, &Node{Kind: NodeName, Name: t.text, Pos: t.pos})
		switch p.peek().kind {
		case tokComma:
			p.next()
		case tokRParen:
		default:
			return nil, p.fail("expected , or )")
		}
	}
}
