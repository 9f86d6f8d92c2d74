package expr

import (
	"strconv"
	"unicode"

	"github.com/matzehuels/urbanknots/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokLParen
	tokRParen
	tokComma
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// lex splits src into tokens. Identifiers may contain dashes in knot ids,
// so a dash directly following an identifier character is part of the
// identifier only when it is itself followed by a letter and there is no
// surrounding whitespace (e.g. "sky-view"). Write "a - b" to subtract.
func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	i := 0
	for i < len(rs) {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			if i < len(rs) && (rs[i] == 'e' || rs[i] == 'E') {
				j := i + 1
				if j < len(rs) && (rs[j] == '+' || rs[j] == '-') {
					j++
				}
				if j < len(rs) && unicode.IsDigit(rs[j]) {
					i = j
					for i < len(rs) && unicode.IsDigit(rs[i]) {
						i++
					}
				}
			}
			text := string(rs[start:i])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, errors.New(errors.ErrCodeInvalidExpression, "invalid number %q at %d", text, start)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: v, pos: start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(rs) {
				c := rs[i]
				if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
					i++
					continue
				}
				if c == '-' && i+1 < len(rs) && (unicode.IsLetter(rs[i+1]) || rs[i+1] == '_') {
					i++
					continue
				}
				break
			}
			toks = append(toks, token{kind: tokIdent, text: string(rs[start:i]), pos: start})
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			toks = append(toks, token{kind: tokOp, text: string(r), pos: i})
			i++
		case r == '<' || r == '>' || r == '=' || r == '!':
			start := i
			i++
			if i < len(rs) && rs[i] == '=' {
				i++
			}
			text := string(rs[start:i])
			if text == "=" || text == "!" {
				return nil, errors.New(errors.ErrCodeInvalidExpression, "unexpected %q at %d", text, start)
			}
			toks = append(toks, token{kind: tokOp, text: text, pos: start})
		default:
			return nil, errors.New(errors.ErrCodeInvalidExpression, "unexpected character %q at %d", r, i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(rs)})
	return toks, nil
}
