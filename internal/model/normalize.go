package model

import (
	"strconv"
	"strings"

	"github.com/deckfsd/deckfsd/internal/deckerr"
	"github.com/deckfsd/deckfsd/internal/expr"
	"github.com/deckfsd/deckfsd/internal/grammar"
)

// adaptLookup turns a model.VariableLookup into an expr.VarLookup bound to
// a specific entity, recording every variable read into *deps so the
// dependency graph (component E) can wire edges from this entity to its
// producers.
func adaptLookup(from Entity, lookup VariableLookup, deps *[]Dependency) expr.VarLookup {
	return func(name string, idx *int, lineCount bool) (expr.Value, bool) {
		raw, ok := lookup(from, name)
		*deps = append(*deps, Dependency{Variable: name})
		if !ok {
			return expr.Value{}, false
		}
		if idx == nil && !lineCount {
			return expr.Str(raw), true
		}
		lines := strings.Split(raw, "\n")
		if lineCount {
			return expr.Int(int64(len(lines))), true
		}
		i := *idx
		if i < 0 {
			i = len(lines) + i
		}
		if i < 0 || i >= len(lines) {
			return expr.Value{}, false
		}
		return expr.Str(lines[i]), true
	}
}

// interpolateOpt resolves {expr}/$VAR substitutions in a single scalar
// option value, tracking dependencies and surfacing evaluator failures as
// typed deckerr errors per §7.
func interpolateOpt(path, raw string, from Entity, lookup VariableLookup, deps *[]Dependency) (string, error) {
	out, err := expr.Interpolate(raw, adaptLookup(from, lookup, deps))
	if err != nil {
		return "", deckerr.New(deckerr.Evaluation, path, err)
	}
	return out, nil
}

func normalizeImageOpts(il *ImageLayer, opts map[string]grammar.Value, lookup VariableLookup) (map[string]string, map[string]map[string]string, []Dependency, error) {
	norm := map[string]string{}
	tuples := map[string]map[string]string{}
	var deps []Dependency

	if v, ok := opts["layer"]; ok {
		n, err := strconv.Atoi(v.Scalar)
		if err != nil {
			return nil, nil, nil, deckerr.New(deckerr.Parse, il.Path, err)
		}
		il.LayerIndex = &n
		norm["layer"] = v.Scalar
	}
	if v, ok := opts["name"]; ok {
		il.NameVal = v.Scalar
		norm["name"] = v.Scalar
	}

	for _, key := range []string{"file", "draw", "color", "colorize", "opacity", "crop", "angles", "margin", "coords", "fill", "rotate", "emojis"} {
		if v, ok := opts[key]; ok {
			resolved, err := interpolateOpt(il.Path, v.Scalar, il, lookup, &deps)
			if err != nil {
				return nil, nil, nil, err
			}
			norm[key] = resolved
		}
		if v, ok := opts[key]; ok && v.IsTuple {
			t := map[string]string{}
			for sk, sv := range v.Parts {
				resolved, err := interpolateOpt(il.Path, sv, il, lookup, &deps)
				if err != nil {
					return nil, nil, nil, err
				}
				t[sk] = resolved
			}
			tuples[key] = t
			if base, ok := norm[key]; ok {
				norm[key] = grammar.MergeSubOptions(base, t)
			}
		}
	}
	return norm, tuples, deps, nil
}

func normalizeTextOpts(t *TextLine, opts map[string]grammar.Value, lookup VariableLookup) (map[string]string, map[string]map[string]string, []Dependency, error) {
	norm := map[string]string{}
	tuples := map[string]map[string]string{}
	var deps []Dependency

	if v, ok := opts["line"]; ok {
		n, err := strconv.Atoi(v.Scalar)
		if err != nil {
			return nil, nil, nil, deckerr.New(deckerr.Parse, t.Path, err)
		}
		t.LineIndex = &n
		norm["line"] = v.Scalar
	}
	if v, ok := opts["name"]; ok {
		t.NameVal = v.Scalar
		norm["name"] = v.Scalar
	}

	for _, key := range []string{"text", "color", "size", "weight", "italic", "align", "valign", "wrap", "scroll", "font", "margin", "fit", "emojis"} {
		if v, ok := opts[key]; ok {
			resolved, err := interpolateOpt(t.Path, v.Scalar, t, lookup, &deps)
			if err != nil {
				return nil, nil, nil, err
			}
			norm[key] = resolved
		}
	}
	if v, ok := opts["margin"]; ok && v.IsTuple {
		m := map[string]string{}
		for sk, sv := range v.Parts {
			resolved, err := interpolateOpt(t.Path, sv, t, lookup, &deps)
			if err != nil {
				return nil, nil, nil, err
			}
			m[sk] = resolved
		}
		tuples["margin"] = m
		if base, ok := norm["margin"]; ok {
			norm["margin"] = grammar.MergeSubOptions(base, m)
		}
	}
	return norm, tuples, deps, nil
}

// eventOptKeys lists the scalar options every event kind shares; specific
// per-kind validation (e.g. `every` only applying to press/start) is left
// to the supervisor (component H), which is the component that actually
// interprets timing semantics.
var eventOptKeys = []string{
	"command", "wait", "every", "max-runs", "duration-min", "duration-max",
	"detach", "unique", "quiet", "page", "brightness", "var", "slash", "semicolon",
}

func normalizeEventOpts(e *Event, opts map[string]grammar.Value, lookup VariableLookup) (map[string]string, []Dependency, error) {
	norm := map[string]string{}
	var deps []Dependency
	for _, key := range eventOptKeys {
		if v, ok := opts[key]; ok {
			resolved, err := interpolateOpt(e.Path, v.Scalar, e, lookup, &deps)
			if err != nil {
				return nil, nil, err
			}
			norm[key] = resolved
		}
	}
	return norm, deps, nil
}
