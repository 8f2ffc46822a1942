// Package grammar parses the BASENAME[;opt=val;...] filename syntax that
// drives every entity in the deck tree, and encodes entities back to
// filenames for the (external) CLI surface.
package grammar

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies which entity a filename's BASENAME selects.
type Kind int

const (
	KindUnknown Kind = iota
	KindDeck         // directory named with a device serial
	KindPage         // PAGE_<n>
	KindKey          // KEY_<r>,<c> or legacy KEY_ROW_<r>_COL_<c>
	KindImage        // IMAGE
	KindText         // TEXT
	KindEvent        // ON_<KIND>
	KindVar          // VAR_<NAME>
)

func (k Kind) String() string {
	switch k {
	case KindDeck:
		return "deck"
	case KindPage:
		return "page"
	case KindKey:
		return "key"
	case KindImage:
		return "image"
	case KindText:
		return "text"
	case KindEvent:
		return "event"
	case KindVar:
		return "var"
	default:
		return "unknown"
	}
}

// Value is an option value: either a bare scalar string or a tuple broken
// into indexed/named parts (for coords, angles, margin, crop).
type Value struct {
	Scalar string
	// Parts holds tuple sub-values keyed by index-as-string ("0", "1", ...)
	// or by name ("top", "right", "bottom", "left") for margin.
	Parts map[string]string
	IsTuple bool
}

// Name is the parsed result of a single filename.
type Name struct {
	Kind Kind
	Main map[string]string // captured groups from the BASENAME match (e.g. "row", "col", "n", "name")
	Opts map[string]Value  // option name -> value, flags normalized to "true"/"false" scalars
}

var (
	pageRe       = regexp.MustCompile(`^PAGE_(?P<n>\d+)$`)
	keyRe        = regexp.MustCompile(`^KEY_(?P<row>\d+),(?P<col>\d+)$`)
	keyLegacyRe  = regexp.MustCompile(`^KEY_ROW_(?P<row>\d+)_COL_(?P<col>\d+)$`)
	imageRe      = regexp.MustCompile(`^IMAGE$`)
	textRe       = regexp.MustCompile(`^TEXT$`)
	eventRe      = regexp.MustCompile(`^ON_(?P<kind>[A-Z]+)$`)
	varRe        = regexp.MustCompile(`^VAR_(?P<name>[A-Z][A-Z0-9_]*)$`)
	flagRe       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	kvRe         = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*(?:\.[A-Za-z0-9_-]+)?)=(.*)$`)
)

// tupleOptions lists the options that accept "<opt>.<index-or-name>"
// partial overrides, per spec.md §4.1.
var tupleOptions = map[string]bool{
	"coords": true,
	"angles": true,
	"margin": true,
	"crop":   true,
}

// marginNames maps named sub-keys of "margin" to a positional index in the
// canonical "top,right,bottom,left" tuple order.
var marginNames = map[string]int{
	"top":    0,
	"right":  1,
	"bottom": 2,
	"left":   3,
}

// Escapes holds the owning entity's configured escape substitutions.
type Escapes struct {
	Slash     string // default `\\`
	Semicolon string // default `^`
}

// DefaultEscapes returns the grammar's documented defaults.
func DefaultEscapes() Escapes {
	return Escapes{Slash: `\\`, Semicolon: `^`}
}

// ParseFilename splits a raw filename into BASENAME and ;-delimited option
// parts, resolving escapes, and classifies the BASENAME into a Kind plus
// its captured groups. Unescaping happens once, after the ';' split, using
// the *caller-supplied* escapes (the entity that owns this file may itself
// redefine "slash"/"semicolon" via its own options, so the grammar layer
// takes Escapes rather than assuming the defaults).
func ParseFilename(filename string, esc Escapes) (Name, bool) {
	parts := splitUnescaped(filename, esc)
	if len(parts) == 0 {
		return Name{}, false
	}
	main := parts[0]
	kind, groups := classifyMain(main)
	if kind == KindUnknown {
		return Name{}, false
	}

	n := Name{Kind: kind, Main: groups, Opts: map[string]Value{}}
	for _, raw := range parts[1:] {
		raw = unescape(raw, esc)
		if raw == "" {
			continue
		}
		if m := kvRe.FindStringSubmatch(raw); m != nil {
			setOpt(n.Opts, m[1], m[2])
			continue
		}
		if flagRe.MatchString(raw) {
			setOpt(n.Opts, raw, "true")
			continue
		}
		// Malformed option segment: whole entity is ill-formed (Parse error).
		return Name{}, false
	}
	return n, true
}

func setOpt(opts map[string]Value, key, value string) {
	if dot := strings.IndexByte(key, '.'); dot >= 0 {
		base := key[:dot]
		sub := key[dot+1:]
		v := opts[base]
		v.IsTuple = true
		if v.Parts == nil {
			v.Parts = map[string]string{}
		}
		v.Parts[sub] = value
		opts[base] = v
		return
	}
	v := opts[key]
	v.Scalar = value
	opts[key] = v
}

// splitUnescaped splits filename on every literal ';'. A ';' meant as part
// of a value is written as the configured semicolon escape instead, so
// every literal ';' is a separator; escapes are resolved per part
// afterwards, by unescape.
func splitUnescaped(filename string, esc Escapes) []string {
	if filename == "" {
		return nil
	}
	return strings.Split(filename, ";")
}

// unescape applies the configured slash/semicolon escape substitutions
// exactly once, after the ';' split (per spec.md §4.1).
func unescape(s string, esc Escapes) string {
	if esc.Slash != "" {
		s = strings.ReplaceAll(s, esc.Slash, "/")
	}
	if esc.Semicolon != "" {
		s = strings.ReplaceAll(s, esc.Semicolon, ";")
	}
	return s
}

// escape is the inverse of unescape, used when composing filenames.
func escape(s string, esc Escapes) string {
	if esc.Semicolon != "" {
		s = strings.ReplaceAll(s, ";", esc.Semicolon)
	}
	if esc.Slash != "" {
		s = strings.ReplaceAll(s, "/", esc.Slash)
	}
	return s
}

func classifyMain(main string) (Kind, map[string]string) {
	if m := pageRe.FindStringSubmatch(main); m != nil {
		return KindPage, map[string]string{"n": m[1]}
	}
	if m := keyRe.FindStringSubmatch(main); m != nil {
		return KindKey, map[string]string{"row": m[1], "col": m[2]}
	}
	if m := keyLegacyRe.FindStringSubmatch(main); m != nil {
		return KindKey, map[string]string{"row": m[1], "col": m[2]}
	}
	if imageRe.MatchString(main) {
		return KindImage, map[string]string{}
	}
	if textRe.MatchString(main) {
		return KindText, map[string]string{}
	}
	if m := eventRe.FindStringSubmatch(main); m != nil {
		return KindEvent, map[string]string{"kind": strings.ToLower(m[1])}
	}
	if m := varRe.FindStringSubmatch(main); m != nil && !strings.HasSuffix(m[1], "_") {
		return KindVar, map[string]string{"name": m[1]}
	}
	return KindUnknown, nil
}

// ComposeFilename is the inverse of ParseFilename, used by the round-trip
// test and by any future CLI/rename driver. Option order is made
// deterministic (lexicographic) since the grammar does not care about
// order but tests and diffs benefit from stability.
func ComposeFilename(n Name, esc Escapes) string {
	var sb strings.Builder
	sb.WriteString(composeMain(n))

	keys := make([]string, 0, len(n.Opts))
	for k := range n.Opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := n.Opts[k]
		if v.IsTuple {
			subKeys := make([]string, 0, len(v.Parts))
			for sk := range v.Parts {
				subKeys = append(subKeys, sk)
			}
			sort.Strings(subKeys)
			for _, sk := range subKeys {
				sb.WriteByte(';')
				sb.WriteString(k)
				sb.WriteByte('.')
				sb.WriteString(sk)
				sb.WriteByte('=')
				sb.WriteString(escape(v.Parts[sk], esc))
			}
			continue
		}
		sb.WriteByte(';')
		if v.Scalar == "true" && flagRe.MatchString(k) {
			sb.WriteString(k)
			continue
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(escape(v.Scalar, esc))
	}
	return sb.String()
}

func composeMain(n Name) string {
	switch n.Kind {
	case KindPage:
		return "PAGE_" + n.Main["n"]
	case KindKey:
		return "KEY_" + n.Main["row"] + "," + n.Main["col"]
	case KindImage:
		return "IMAGE"
	case KindText:
		return "TEXT"
	case KindEvent:
		return "ON_" + strings.ToUpper(n.Main["kind"])
	case KindVar:
		return "VAR_" + n.Main["name"]
	default:
		return ""
	}
}

// MergeSubOptions merges an indexed/named partial override ("margin.top")
// into the base tuple value, following streamdeckfs' rule: numeric indices
// address positionally-split comma values, named keys (currently only
// margin's top/right/bottom/left) address by name. A partial override is
// only meaningful when the base option is already defined (by this entity
// or by an inherited reference); callers are expected to have already
// merged in the reference's raw args before calling this.
func MergeSubOptions(base string, parts map[string]string) string {
	if base == "" {
		return base
	}
	segs := strings.Split(base, ",")
	for key, value := range parts {
		if idx, ok := marginNames[key]; ok {
			setSeg(&segs, idx, value)
			continue
		}
		if idx, err := strconv.Atoi(key); err == nil {
			setSeg(&segs, idx, value)
		}
	}
	return strings.Join(segs, ",")
}

func setSeg(segs *[]string, idx int, value string) {
	for len(*segs) <= idx {
		*segs = append(*segs, "")
	}
	(*segs)[idx] = value
}

// IsTupleOption reports whether opt accepts indexed/named partial overrides.
func IsTupleOption(opt string) bool { return tupleOptions[opt] }
