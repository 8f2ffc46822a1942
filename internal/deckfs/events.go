package deckfs

import (
	"strconv"
	"strings"
	"time"

	"github.com/deckfsd/deckfsd/internal/model"
	"github.com/deckfsd/deckfsd/internal/supervisor"
)

// specFromEvent translates one resolved Event entity's normalized options
// into a supervisor.Spec, per spec.md §4.8. The action is discriminated by
// which of var/page/brightness/command is present; Exec is the default
// when none are, running the event file itself.
func specFromEvent(owner model.Entity, e *model.Event) supervisor.Spec {
	spec := supervisor.Spec{WorkDir: ownerDir(owner)}

	switch {
	case hasOpt(e, "var"):
		raw, _ := e.Get("var")
		name, value, toFile := parseVarAssignment(raw)
		spec.Action = supervisor.ActionSetVar
		spec.Assignments = map[string]string{name: value}
		spec.ToFile = toFile
		spec.VarScope = ownerScope(owner)
		spec.VarDir = ownerDir(owner)
	case hasOpt(e, "page"):
		target, _ := e.Get("page")
		spec.Action = supervisor.ActionPage
		spec.PageTarget = target
	case hasOpt(e, "brightness"):
		raw, _ := e.Get("brightness")
		spec.Action = supervisor.ActionBrightness
		spec.BrightnessDelta, spec.BrightnessValue = supervisor.ParsePageSpecOption(raw)
	default:
		spec.Action = supervisor.ActionExec
		if cmd, ok := e.Get("command"); ok {
			if cmd == "__inside__" {
				spec.InsideFile = e.EntityPath()
			} else {
				spec.Command = cmd
			}
		} else {
			spec.Command = e.EntityPath()
		}
	}

	spec.Wait = durationMS(e, "wait", 0)
	spec.Every = durationMS(e, "every", 0)
	spec.DurationMin = durationMS(e, "duration-min", defaultDurationMin(e.Kind))
	spec.DurationMax = durationMS(e, "duration-max", 0)

	if v, ok := e.Get("max-runs"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			spec.MaxRuns = n
		}
	}
	if v, ok := e.Get("detach"); ok {
		spec.Detach = v != "false"
	}
	if v, ok := e.Get("unique"); ok {
		spec.Unique = v != "false"
	} else if e.Kind == model.EventStart || e.Kind == model.EventEnd {
		spec.Unique = true
	}
	if v, ok := e.Get("quiet"); ok {
		spec.Quiet = v != "false"
	}
	return spec
}

func hasOpt(e *model.Event, name string) bool {
	_, ok := e.Get(name)
	return ok
}

func durationMS(e *model.Event, name string, fallbackMS int) time.Duration {
	if v, ok := e.Get(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return time.Duration(fallbackMS) * time.Millisecond
}

// defaultDurationMin supplies longpress's documented 300ms default when the
// event doesn't set duration-min itself.
func defaultDurationMin(kind model.EventKind) int {
	if kind == model.EventLongPress {
		return 300
	}
	return 0
}

// parseVarAssignment splits a `var=` option's raw value into the assigned
// name/value and the `<=` (file-content) vs `=` (filename-encode) form.
func parseVarAssignment(raw string) (name, value string, toFile bool) {
	if idx := strings.Index(raw, "<="); idx >= 0 {
		return raw[:idx], raw[idx+2:], true
	}
	if idx := strings.Index(raw, "="); idx >= 0 {
		return raw[:idx], raw[idx+1:], false
	}
	return raw, "", false
}

// ownerDir returns the directory a SetVar/Exec action should run relative
// to: the key/page/deck directory of the event's owning entity, all of
// which are directories themselves.
func ownerDir(owner model.Entity) string {
	return owner.EntityPath()
}

// ownerScope names the owning entity's kind, passed through to VarWriter;
// WriteVar does not use it, since dir+name alone compose the target
// filename.
func ownerScope(owner model.Entity) string {
	switch owner.(type) {
	case *model.Deck:
		return "deck"
	case *model.Page:
		return "page"
	case *model.Key:
		return "key"
	default:
		return "unknown"
	}
}
