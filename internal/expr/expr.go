// Package expr implements the arithmetic/string/boolean expression
// evaluator used inside `{expr}` interpolations and `$VAR` substitutions,
// per the semantic contract in spec.md §4.3. The lexer/parser internals are
// free-form; only the contract (types, operators, functions, failure
// modes) is load-bearing.
package expr

import (
	"math"
	"strconv"
	"strings"

	"github.com/deckfsd/deckfsd/internal/deckerr"
)

// Value is a dynamically typed evaluator value: exactly one of Int, Float,
// Str, Bool is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	I    int64
	F    float64
	S    string
	B    bool
}

type ValueKind int

const (
	KindInt ValueKind = iota
	KindFloat
	KindString
	KindBool
)

func Int(i int64) Value    { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }
func Str(s string) Value   { return Value{Kind: KindString, S: s} }
func Bool(b bool) Value    { return Value{Kind: KindBool, B: b} }

func (v Value) AsFloat() float64 {
	switch v.Kind {
	case KindInt:
		return float64(v.I)
	case KindFloat:
		return v.F
	case KindBool:
		if v.B {
			return 1
		}
		return 0
	default:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
		return f
	}
}

func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.S
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	}
	return ""
}

func (v Value) AsBool() bool {
	switch v.Kind {
	case KindBool:
		return v.B
	case KindInt:
		return v.I != 0
	case KindFloat:
		return v.F != 0
	case KindString:
		return v.S != ""
	}
	return false
}

func (v Value) isNumeric() bool { return v.Kind == KindInt || v.Kind == KindFloat }

// VarLookup resolves a $VAR or $VAR[i] reference during evaluation.
// idx is nil for a plain $VAR; otherwise it's the requested line index
// (-1 meaning "last"), or lineCount=true meaning "$VAR[#]".
type VarLookup func(name string, idx *int, lineCount bool) (Value, bool)

// Eval parses and evaluates expr, resolving $VAR references through
// lookup. Expr is the bare expression text, without the surrounding `{ }`
// delimiters (callers strip those; see Interpolate for the full
// `{expr}`-inside-a-string contract).
func Eval(exprText string, lookup VarLookup) (Value, error) {
	p := &parser{lex: newLexer(exprText), lookup: lookup}
	p.next()
	v, err := p.parseExpr(0)
	if err != nil {
		return Value{}, err
	}
	if p.cur.kind != tokEOF {
		return Value{}, deckerr.Newf(deckerr.Evaluation, "", "unexpected trailing input at %q", p.cur.text)
	}
	return v, nil
}

// Interpolate replaces every `{expr}` span inside s with the stringified
// result of evaluating expr, and every bare `$VAR_NAME`/`$VAR_NAME[i]`
// token (outside of `{}`) with its substituted value, per §4.3's "Lexical
// surface". `$VAR` substitution happens textually *before* `{}` parsing,
// so a variable's value can itself contain `{}` expressions meant for the
// enclosing context - matching "substitutes a variable before parsing".
func Interpolate(s string, lookup VarLookup) (string, error) {
	substituted, err := substituteDollarVars(s, lookup)
	if err != nil {
		return "", err
	}
	return evalBraceSpans(substituted, lookup)
}

func substituteDollarVars(s string, lookup VarLookup) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '$' {
			out.WriteByte(s[i])
			i++
			continue
		}
		name, idx, lineCount, consumed := scanVarToken(s[i:])
		if consumed == 0 {
			out.WriteByte(s[i])
			i++
			continue
		}
		val, ok := lookup(name, idx, lineCount)
		if !ok {
			return "", deckerr.Newf(deckerr.VariableUnresolved, "", "unresolved variable $%s", name)
		}
		out.WriteString(val.AsString())
		i += consumed
	}
	return out.String(), nil
}

// scanVarToken parses a leading "$NAME" or "$NAME[i]" or "$NAME[#]" token
// from s (which starts with '$'), returning how many bytes it consumed.
func scanVarToken(s string) (name string, idx *int, lineCount bool, consumed int) {
	i := 1
	start := i
	for i < len(s) && (isVarNameByte(s[i])) {
		i++
	}
	if i == start {
		return "", nil, false, 0
	}
	// $VAR_COLOR names the variable defined by a VAR_COLOR file, whose
	// name is COLOR, so the VAR_ prefix is dropped before lookup.
	name = strings.TrimPrefix(s[start:i], "VAR_")
	if i < len(s) && s[i] == '[' {
		end := strings.IndexByte(s[i:], ']')
		if end >= 0 {
			inner := s[i+1 : i+end]
			i = i + end + 1
			if inner == "#" {
				return name, nil, true, i
			}
			if n, err := strconv.Atoi(inner); err == nil {
				return name, &n, false, i
			}
		}
	}
	return name, nil, false, i
}

func isVarNameByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func evalBraceSpans(s string, lookup VarLookup) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '{' {
			out.WriteByte(s[i])
			i++
			continue
		}
		depth := 1
		j := i + 1
		for j < len(s) && depth > 0 {
			switch s[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			j++
		}
		if depth != 0 {
			return "", deckerr.Newf(deckerr.Evaluation, "", "unbalanced { in %q", s)
		}
		inner := s[i+1 : j-1]
		v, err := Eval(inner, lookup)
		if err != nil {
			return "", err
		}
		out.WriteString(v.AsString())
		i = j
	}
	return out.String(), nil
}

// --- functions ---------------------------------------------------------

func callFunction(name string, args []Value) (Value, error) {
	switch name {
	case "int":
		if len(args) != 1 {
			return Value{}, arityErr(name, 1, len(args))
		}
		switch args[0].Kind {
		case KindString:
			n, err := strconv.ParseInt(strings.TrimSpace(args[0].S), 10, 64)
			if err != nil {
				return Value{}, deckerr.Newf(deckerr.Evaluation, "", "int(): %v", err)
			}
			return Int(n), nil
		default:
			return Int(int64(args[0].AsFloat())), nil
		}
	case "float":
		if len(args) != 1 {
			return Value{}, arityErr(name, 1, len(args))
		}
		return Float(args[0].AsFloat()), nil
	case "str":
		if len(args) != 1 {
			return Value{}, arityErr(name, 1, len(args))
		}
		return Str(args[0].AsString()), nil
	case "round":
		if len(args) != 1 {
			return Value{}, arityErr(name, 1, len(args))
		}
		return Int(int64(math.Round(args[0].AsFloat()))), nil
	case "min", "max":
		if len(args) == 0 {
			return Value{}, deckerr.Newf(deckerr.Evaluation, "", "%s(): needs at least 1 argument", name)
		}
		best := args[0].AsFloat()
		for _, a := range args[1:] {
			f := a.AsFloat()
			if (name == "min" && f < best) || (name == "max" && f > best) {
				best = f
			}
		}
		return numericFromFloat(best, args), nil
	case "if":
		if len(args) != 3 {
			return Value{}, arityErr(name, 3, len(args))
		}
		if args[0].AsBool() {
			return args[1], nil
		}
		return args[2], nil
	case "format":
		if len(args) != 2 {
			return Value{}, arityErr(name, 2, len(args))
		}
		return Str(formatSpec(args[0], args[1].AsString())), nil
	}
	return Value{}, deckerr.Newf(deckerr.Evaluation, "", "unknown function %q", name)
}

func arityErr(name string, want, got int) error {
	return deckerr.Newf(deckerr.Evaluation, "", "%s(): expected %d argument(s), got %d", name, want, got)
}

func numericFromFloat(f float64, args []Value) Value {
	allInt := true
	for _, a := range args {
		if a.Kind != KindInt {
			allInt = false
			break
		}
	}
	if allInt {
		return Int(int64(f))
	}
	return Float(f)
}

// formatSpec implements the padding/width mini-language used by format():
// a leading "0" means zero-pad, the rest of the spec is a decimal width.
// e.g. "02" -> zero-pad to width 2.
func formatSpec(v Value, spec string) string {
	zeroPad := strings.HasPrefix(spec, "0")
	widthStr := spec
	if zeroPad {
		widthStr = spec[1:]
	}
	width, err := strconv.Atoi(widthStr)
	if err != nil {
		return v.AsString()
	}
	s := v.AsString()
	if len(s) >= width {
		return s
	}
	pad := "0"
	if !zeroPad {
		pad = " "
	}
	return strings.Repeat(pad, width-len(s)) + s
}
