package expr

import (
	"math"
	"slices"
	"strings"

	"github.com/matzehuels/urbanknots/pkg/errors"
)

// node is one vertex of the expression AST.
type node interface {
	eval(slots []float64) float64
}

type numberNode float64

func (n numberNode) eval([]float64) float64 { return float64(n) }

type varNode int

func (n varNode) eval(slots []float64) float64 { return slots[n] }

type negNode struct{ x node }

func (n negNode) eval(slots []float64) float64 { return -n.x.eval(slots) }

type binaryNode struct {
	op   string
	l, r node
}

func (n binaryNode) eval(slots []float64) float64 {
	a, b := n.l.eval(slots), n.r.eval(slots)
	switch n.op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	case "<":
		return boolf(a < b)
	case "<=":
		return boolf(a <= b)
	case ">":
		return boolf(a > b)
	case ">=":
		return boolf(a >= b)
	case "==":
		return boolf(a == b)
	case "!=":
		return boolf(a != b)
	}
	return math.NaN()
}

type callNode struct {
	fn   string
	args []node
}

func (n callNode) eval(slots []float64) float64 {
	switch n.fn {
	case "abs":
		return math.Abs(n.args[0].eval(slots))
	case "min":
		v := n.args[0].eval(slots)
		for _, a := range n.args[1:] {
			v = math.Min(v, a.eval(slots))
		}
		return v
	case "max":
		v := n.args[0].eval(slots)
		for _, a := range n.args[1:] {
			v = math.Max(v, a.eval(slots))
		}
		return v
	}
	return math.NaN()
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// arity is the accepted argument count per builtin (-1 = one or more).
var arity = map[string]int{
	"abs": 1,
	"min": -1,
	"max": -1,
}

// Program is a compiled expression. It is immutable and safe for concurrent
// evaluation.
type Program struct {
	src   string
	root  node
	names []string // slot order, as passed to Compile
	used  []string // identifiers actually referenced, in first-use order
}

// Compile parses src and binds each identifier to its position in allowed.
// Identifiers not in allowed are rejected with an INVALID_EXPRESSION error.
func Compile(src string, allowed []string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, allowed: allowed, src: src}
	root, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errors.New(errors.ErrCodeInvalidExpression, "unexpected %q at %d in %q", t.text, t.pos, src)
	}
	return &Program{src: src, root: root, names: slices.Clone(allowed), used: p.used}, nil
}

// References returns the identifiers referenced by src without restricting
// them. Builtin function names are not reported.
func References(src string) ([]string, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, src: src, open: true}
	if _, err := p.parseComparison(); err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, errors.New(errors.ErrCodeInvalidExpression, "unexpected %q at %d in %q", t.text, t.pos, src)
	}
	return p.used, nil
}

// String returns the source the program was compiled from.
func (p *Program) String() string { return p.src }

// Uses reports whether the expression references name.
func (p *Program) Uses(name string) bool { return slices.Contains(p.used, name) }

// EvalSlots evaluates the program with slots[i] bound to the i-th allowed
// identifier given to Compile. len(slots) must be at least len(allowed).
func (p *Program) EvalSlots(slots []float64) float64 {
	return p.root.eval(slots)
}

// Eval evaluates the program against named bindings. Missing bindings are
// an error.
func (p *Program) Eval(env map[string]float64) (float64, error) {
	slots := make([]float64, len(p.names))
	for i, name := range p.names {
		v, ok := env[name]
		if !ok && p.Uses(name) {
			return 0, errors.New(errors.ErrCodeInvalidExpression, "no value bound for %q", name)
		}
		slots[i] = v
	}
	return p.root.eval(slots), nil
}

type parser struct {
	toks    []token
	i       int
	src     string
	allowed []string
	open    bool // accept any identifier (References)
	used    []string
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) parseComparison() (node, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOp && isComparison(t.text) {
		p.next()
		r, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: t.text, l: l, r: r}, nil
	}
	return l, nil
}

func isComparison(op string) bool {
	switch op {
	case "<", "<=", ">", ">=", "==", "!=":
		return true
	}
	return false
}

func (p *parser) parseAdditive() (node, error) {
	l, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return l, nil
		}
		p.next()
		r, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: t.text, l: l, r: r}
	}
}

func (p *parser) parseTerm() (node, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return l, nil
		}
		p.next()
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = binaryNode{op: t.text, l: l, r: r}
	}
}

func (p *parser) parseUnary() (node, error) {
	if t := p.peek(); t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			return negNode{x: x}, nil
		}
		return x, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode(t.num), nil
	case tokLParen:
		x, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, errors.New(errors.ErrCodeInvalidExpression, "expected ) at %d in %q", c.pos, p.src)
		}
		return x, nil
	case tokIdent:
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return p.bind(t)
	case tokEOF:
		return nil, errors.New(errors.ErrCodeInvalidExpression, "unexpected end of expression %q", p.src)
	}
	return nil, errors.New(errors.ErrCodeInvalidExpression, "unexpected %q at %d in %q", t.text, t.pos, p.src)
}

func (p *parser) parseCall(name token) (node, error) {
	want, ok := arity[name.text]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidExpression, "unknown function %q at %d", name.text, name.pos)
	}
	p.next() // (
	var args []node
	if p.peek().kind != tokRParen {
		for {
			a, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if c := p.next(); c.kind != tokRParen {
		return nil, errors.New(errors.ErrCodeInvalidExpression, "expected ) at %d in %q", c.pos, p.src)
	}
	if (want == -1 && len(args) == 0) || (want > 0 && len(args) != want) {
		return nil, errors.New(errors.ErrCodeInvalidExpression, "%s: wrong number of arguments (%d)", name.text, len(args))
	}
	return callNode{fn: name.text, args: args}, nil
}

func (p *parser) bind(t token) (node, error) {
	if _, isFn := arity[t.text]; isFn {
		return nil, errors.New(errors.ErrCodeInvalidExpression, "function %q used as a value at %d", t.text, t.pos)
	}
	if !slices.Contains(p.used, t.text) {
		p.used = append(p.used, t.text)
	}
	if p.open {
		return numberNode(0), nil
	}
	idx := slices.Index(p.allowed, t.text)
	if idx < 0 {
		if hint := p.subtractionHint(t.text); hint != "" {
			return nil, errors.New(errors.ErrCodeInvalidExpression,
				"unknown identifier %q at %d in %q; write %q to subtract", t.text, t.pos, p.src, hint)
		}
		return nil, errors.New(errors.ErrCodeInvalidExpression, "unknown identifier %q at %d in %q", t.text, t.pos, p.src)
	}
	return varNode(idx), nil
}

// subtractionHint returns name with spaced minus signs when every
// dash-separated part of name is itself a bound identifier, e.g. "a - b"
// for "a-b". Otherwise it returns "".
func (p *parser) subtractionHint(name string) string {
	parts := strings.Split(name, "-")
	if len(parts) < 2 {
		return ""
	}
	for _, part := range parts {
		if !slices.Contains(p.allowed, part) {
			return ""
		}
	}
	return strings.Join(parts, " - ")
}
