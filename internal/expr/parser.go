package expr

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/deckfsd/deckfsd/internal/deckerr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	s   string
	pos int
}

func newLexer(s string) *lexer { return &lexer{s: s} }

func (l *lexer) next() token {
	l.skipSpace()
	if l.pos >= len(l.s) {
		return token{kind: tokEOF}
	}
	c := l.s[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "("}
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")"}
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ","}
	case c == '"' || c == '\'':
		return l.lexString(c)
	case c >= '0' && c <= '9':
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	default:
		return l.lexOp()
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.s) && unicode.IsSpace(rune(l.s[l.pos])) {
		l.pos++
	}
}

func (l *lexer) lexString(quote byte) token {
	l.pos++ // consume opening quote
	start := l.pos
	var sb strings.Builder
	for l.pos < len(l.s) && l.s[l.pos] != quote {
		if l.s[l.pos] == '\\' && l.pos+1 < len(l.s) {
			l.pos++
		}
		sb.WriteByte(l.s[l.pos])
		l.pos++
	}
	_ = start
	if l.pos < len(l.s) {
		l.pos++ // closing quote
	}
	return token{kind: tokString, text: sb.String()}
}

func (l *lexer) lexNumber() token {
	start := l.pos
	for l.pos < len(l.s) && (isDigit(l.s[l.pos]) || l.s[l.pos] == '.') {
		l.pos++
	}
	return token{kind: tokNumber, text: l.s[start:l.pos]}
}

func (l *lexer) lexIdent() token {
	start := l.pos
	l.pos++ // isIdentStart accepted this byte, which may be '$'
	for l.pos < len(l.s) && isIdentCont(l.s[l.pos]) {
		l.pos++
	}
	return token{kind: tokIdent, text: l.s[start:l.pos]}
}

var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

func (l *lexer) lexOp() token {
	if l.pos+2 <= len(l.s) {
		cand := l.s[l.pos : l.pos+2]
		for _, op := range twoCharOps {
			if cand == op {
				l.pos += 2
				return token{kind: tokOp, text: op}
			}
		}
	}
	c := l.s[l.pos]
	l.pos++
	return token{kind: tokOp, text: string(c)}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '$' || c == '_' || unicode.IsLetter(rune(c)) }
func isIdentCont(c byte) bool  { return c == '_' || isDigit(c) || unicode.IsLetter(rune(c)) }

// --- Pratt parser -------------------------------------------------------

type parser struct {
	lex    *lexer
	cur    token
	lookup VarLookup
}

func (p *parser) next() { p.cur = p.lex.next() }

// precedence table, low to high.
var binPrec = map[string]int{
	"or": 1, "||-keyword": 1,
	"and": 2,
	"in":  3,
	"==": 4, "!=": 4,
	"<": 5, "<=": 5, ">": 5, ">=": 5,
	"+": 6, "-": 6,
	"*": 7, "/": 7, "%": 7, "||": 7,
}

func (p *parser) parseExpr(minPrec int) (Value, error) {
	left, err := p.parseUnary()
	if err != nil {
		return Value{}, err
	}
	for {
		opName, ok := p.peekBinOp()
		if !ok {
			break
		}
		prec := binPrec[opName]
		if prec < minPrec {
			break
		}
		p.next() // consume operator token(s)
		if opName == "and" || opName == "or" || opName == "in" {
			// already consumed ident token via peekBinOp/next
		}
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return Value{}, err
		}
		left, err = applyBinOp(opName, left, right)
		if err != nil {
			return Value{}, err
		}
	}
	return left, nil
}

// peekBinOp reports whether the current token starts a binary operator,
// returning its canonical name without consuming anything beyond the
// single lookahead token already cached in p.cur.
func (p *parser) peekBinOp() (string, bool) {
	switch p.cur.kind {
	case tokOp:
		switch p.cur.text {
		case "+", "-", "*", "/", "%", "||", "==", "!=", "<", "<=", ">", ">=":
			return p.cur.text, true
		}
	case tokIdent:
		switch p.cur.text {
		case "and", "or", "in":
			return p.cur.text, true
		}
	}
	return "", false
}

func (p *parser) parseUnary() (Value, error) {
	if p.cur.kind == tokOp && p.cur.text == "-" {
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return Value{}, err
		}
		if v.Kind == KindInt {
			return Int(-v.I), nil
		}
		return Float(-v.AsFloat()), nil
	}
	if p.cur.kind == tokIdent && p.cur.text == "not" {
		p.next()
		v, err := p.parseUnary()
		if err != nil {
			return Value{}, err
		}
		return Bool(!v.AsBool()), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Value, error) {
	switch p.cur.kind {
	case tokNumber:
		text := p.cur.text
		p.next()
		if strings.Contains(text, ".") {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return Value{}, deckerr.Newf(deckerr.Evaluation, "", "bad number %q", text)
			}
			return Float(f), nil
		}
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, deckerr.Newf(deckerr.Evaluation, "", "bad number %q", text)
		}
		return Int(n), nil
	case tokString:
		s := p.cur.text
		p.next()
		return Str(s), nil
	case tokLParen:
		p.next()
		v, err := p.parseExpr(0)
		if err != nil {
			return Value{}, err
		}
		if p.cur.kind != tokRParen {
			return Value{}, deckerr.Newf(deckerr.Evaluation, "", "expected )")
		}
		p.next()
		return v, nil
	case tokIdent:
		name := p.cur.text
		if strings.HasPrefix(name, "$") {
			p.next()
			return p.lookupVar(name[1:])
		}
		if name == "true" || name == "false" {
			p.next()
			return Bool(name == "true"), nil
		}
		p.next()
		if p.cur.kind == tokLParen {
			p.next()
			var args []Value
			for p.cur.kind != tokRParen {
				v, err := p.parseExpr(0)
				if err != nil {
					return Value{}, err
				}
				args = append(args, v)
				if p.cur.kind == tokComma {
					p.next()
					continue
				}
				break
			}
			if p.cur.kind != tokRParen {
				return Value{}, deckerr.Newf(deckerr.Evaluation, "", "expected ) in call to %s", name)
			}
			p.next()
			return callFunction(name, args)
		}
		return Value{}, deckerr.Newf(deckerr.Evaluation, "", "unknown identifier %q", name)
	default:
		return Value{}, deckerr.Newf(deckerr.Evaluation, "", "unexpected token %q", p.cur.text)
	}
}

func (p *parser) lookupVar(name string) (Value, error) {
	var idx *int
	lineCount := false
	if p.cur.kind == tokOp && p.cur.text == "[" {
		p.next()
		if p.cur.kind == tokOp && p.cur.text == "#" {
			lineCount = true
			p.next()
		} else if p.cur.kind == tokNumber {
			n, _ := strconv.Atoi(p.cur.text)
			idx = &n
			p.next()
		} else if p.cur.kind == tokOp && p.cur.text == "-" {
			p.next()
			if p.cur.kind == tokNumber {
				n, _ := strconv.Atoi(p.cur.text)
				n = -n
				idx = &n
				p.next()
			}
		}
		if p.cur.kind == tokOp && p.cur.text == "]" {
			p.next()
		}
	}
	if p.lookup == nil {
		return Value{}, deckerr.Newf(deckerr.VariableUnresolved, "", "no variable lookup configured for $%s", name)
	}
	v, ok := p.lookup(name, idx, lineCount)
	if !ok {
		return Value{}, deckerr.Newf(deckerr.VariableUnresolved, "", "unresolved variable $%s", name)
	}
	return v, nil
}

func applyBinOp(op string, l, r Value) (Value, error) {
	switch op {
	case "+":
		if l.Kind == KindString || r.Kind == KindString {
			return Str(l.AsString() + r.AsString()), nil
		}
		return arith(l, r, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	case "-":
		return arith(l, r, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case "*":
		return arith(l, r, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	case "/":
		// the single "/" is reserved for float division per §4.3
		rf := r.AsFloat()
		if rf == 0 {
			return Value{}, deckerr.Newf(deckerr.Evaluation, "", "division by zero")
		}
		return Float(l.AsFloat() / rf), nil
	case "||":
		rb := r.AsFloat()
		if rb == 0 {
			return Value{}, deckerr.Newf(deckerr.Evaluation, "", "division by zero")
		}
		return Int(int64(l.AsFloat()) / int64(rb)), nil
	case "%":
		rb := int64(r.AsFloat())
		if rb == 0 {
			return Value{}, deckerr.Newf(deckerr.Evaluation, "", "division by zero")
		}
		return Int(int64(l.AsFloat()) % rb), nil
	case "==":
		return Bool(valuesEqual(l, r)), nil
	case "!=":
		return Bool(!valuesEqual(l, r)), nil
	case "<", "<=", ">", ">=":
		return Bool(compare(op, l, r)), nil
	case "and":
		return Bool(l.AsBool() && r.AsBool()), nil
	case "or":
		return Bool(l.AsBool() || r.AsBool()), nil
	case "in":
		return Bool(strings.Contains(r.AsString(), l.AsString())), nil
	}
	return Value{}, deckerr.Newf(deckerr.Evaluation, "", "unknown operator %q", op)
}

func arith(l, r Value, fi func(a, b int64) int64, ff func(a, b float64) float64) (Value, error) {
	if !l.isNumeric() || !r.isNumeric() {
		if l.Kind == KindString || r.Kind == KindString {
			return Value{}, deckerr.Newf(deckerr.Evaluation, "", "type mismatch in arithmetic operation")
		}
	}
	if l.Kind == KindInt && r.Kind == KindInt {
		return Int(fi(l.I, r.I)), nil
	}
	return Float(ff(l.AsFloat(), r.AsFloat())), nil
}

func valuesEqual(l, r Value) bool {
	if l.Kind == KindString || r.Kind == KindString {
		return l.AsString() == r.AsString()
	}
	if l.Kind == KindBool || r.Kind == KindBool {
		return l.AsBool() == r.AsBool()
	}
	return l.AsFloat() == r.AsFloat()
}

func compare(op string, l, r Value) bool {
	lf, rf := l.AsFloat(), r.AsFloat()
	switch op {
	case "<":
		return lf < rf
	case "<=":
		return lf <= rf
	case ">":
		return lf > rf
	case ">=":
		return lf >= rf
	}
	return false
}
