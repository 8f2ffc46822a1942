// Package supervisor implements the event & process supervisor
// (component H): the Exec/SetVar/Page/Brightness event actions, the
// per-key press lifecycle state machine, and SIGTERM-then-SIGKILL process
// reaping, per spec.md §4.8.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Action discriminates the four event action kinds of §4.8.
type Action int

const (
	ActionExec Action = iota
	ActionSetVar
	ActionPage
	ActionBrightness
)

// Spec is one normalized ON_<KIND> event's supervised behavior, built by
// deckfs (specFromEvent) from an Event entity's normalized options.
type Spec struct {
	Action Action

	// Exec
	Command    string // shell command line; deckfs passes the event file's path when no command= is given
	InsideFile string // non-empty when command=__inside__: the file whose contents to exec
	WorkDir    string
	Env        []string

	// SetVar
	Assignments map[string]string
	ToFile      bool // true for `<=` (file content), false for `=` (filename encode)
	VarScope    string
	VarDir      string

	// Page
	PageTarget string // numeric, name, or __first__/__next__/__previous__/__back__

	// Brightness
	BrightnessDelta bool
	BrightnessValue int

	// Timing, common to all kinds (§4.8's timing table)
	Wait          time.Duration
	Every         time.Duration
	MaxRuns       int
	DurationMin   time.Duration
	DurationMax   time.Duration
	Detach        bool
	Unique        bool
	Quiet         bool
}

// state is one key-press event's lifecycle position, per §4.8's state
// machine.
type state int

const (
	stateIdle state = iota
	stateArmed
	stateRunning
)

// PageController is the minimal surface the supervisor needs from
// component I to execute Page actions.
type PageController interface {
	GoTo(target string) error
}

// VarWriter is the minimal surface needed to execute SetVar actions.
type VarWriter interface {
	WriteVar(scope, dir, name, value string, toFile bool) error
}

// Brightness is the minimal surface needed to execute Brightness actions.
type Brightness interface {
	Adjust(delta bool, value int) error
}

// Runner supervises one event's active process (if any) and lifecycle
// state across repeated presses.
type Runner struct {
	mu      sync.Mutex
	log     *slog.Logger
	spec    Spec
	state   state
	cmd     *exec.Cmd
	runs    int
	timer   *time.Timer
	ticker  *time.Ticker
	cancel  context.CancelFunc
	grace   time.Duration
}

func NewRunner(log *slog.Logger, spec Spec) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log, spec: spec, grace: 2 * time.Second}
}

// Press drives the Idle->Armed transition on key press, per §4.8.
func (r *Runner) Press(pc PageController, vw VarWriter, br Brightness) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateIdle {
		return
	}
	r.state = stateArmed

	delay := r.spec.Wait
	switch {
	case r.spec.DurationMax > 0:
		delay = r.spec.DurationMax
	case r.spec.DurationMin > 0:
		// longpress: defer firing until held at least duration-min; an
		// early Release stops this timer before it ever runs.
		delay = r.spec.DurationMin
	}
	r.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.state != stateArmed {
			r.mu.Unlock()
			return
		}
		if r.spec.DurationMax > 0 {
			// scheduled purely to cancel an overlong press; plain press
			// without duration-max fires here instead.
			r.state = stateIdle
			r.mu.Unlock()
			return
		}
		r.state = stateRunning
		r.mu.Unlock()
		r.fire(pc, vw, br)
		if r.spec.Every > 0 {
			r.startTicker(pc, vw, br)
		}
	})
}

// Release drives the Armed/Running->Idle transition on key release, per
// §4.8: for press+duration-max, fire if held within the window; for
// plain press, the scheduled fire already ran or will run as-is. It is
// only meaningful for a runner previously armed by Press — release-kind
// events never call Press and use FireOnRelease instead.
func (r *Runner) Release(pc PageController, vw VarWriter, br Brightness, held time.Duration) {
	r.mu.Lock()
	wasArmed := r.state == stateArmed
	r.state = stateIdle
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	fireNow := wasArmed && r.spec.DurationMax > 0 && held <= r.spec.DurationMax
	r.mu.Unlock()

	if fireNow {
		r.fire(pc, vw, br)
	}
	if !r.spec.Detach {
		r.Stop()
	}
}

// FireOnRelease fires a release-kind event exactly at the release edge,
// per §4.8's timing table ("duration-min: for release/longpress, minimum
// pressed-time to fire"): the event is untouched on press and evaluated
// only here, gated on held >= duration-min when one is configured.
func (r *Runner) FireOnRelease(pc PageController, vw VarWriter, br Brightness, held time.Duration) {
	r.mu.Lock()
	if r.state != stateIdle {
		r.mu.Unlock()
		return
	}
	if r.spec.DurationMin > 0 && held < r.spec.DurationMin {
		r.mu.Unlock()
		return
	}
	r.state = stateRunning
	r.mu.Unlock()

	r.fire(pc, vw, br)
	if !r.spec.Detach {
		r.Stop()
	}
}

// startTicker implements the Running state's `every` repeat, skipping a
// tick when `unique` holds and the prior run is still alive, and
// stopping once `max-runs` is reached.
func (r *Runner) startTicker(pc PageController, vw VarWriter, br Brightness) {
	r.ticker = time.NewTicker(r.spec.Every)
	go func(t *time.Ticker) {
		for range t.C {
			r.mu.Lock()
			if r.state != stateRunning {
				r.mu.Unlock()
				return
			}
			if r.spec.MaxRuns > 0 && r.runs >= r.spec.MaxRuns {
				r.mu.Unlock()
				return
			}
			alive := r.cmd != nil && r.cmd.ProcessState == nil
			unique := r.spec.Unique
			r.mu.Unlock()
			if unique && alive {
				continue
			}
			r.fire(pc, vw, br)
		}
	}(r.ticker)
}

// fire dispatches to the action-specific executor and counts the run
// toward max-runs.
func (r *Runner) fire(pc PageController, vw VarWriter, br Brightness) {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	switch r.spec.Action {
	case ActionExec:
		r.fireExec()
	case ActionSetVar:
		r.fireSetVar(vw)
	case ActionPage:
		r.firePage(pc)
	case ActionBrightness:
		r.fireBrightness(br)
	}
}

func (r *Runner) fireExec() {
	name, args, err := r.resolveCommand()
	if err != nil {
		if !r.spec.Quiet {
			r.log.Error("exec resolve failed", "err", err)
		}
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.spec.WorkDir
	cmd.Env = append(os.Environ(), r.spec.Env...)

	r.mu.Lock()
	r.cmd = cmd
	r.cancel = cancel
	r.mu.Unlock()

	if err := cmd.Start(); err != nil {
		if !r.spec.Quiet {
			r.log.Error("exec start failed", "command", name, "err", err)
		}
		cancel()
		return
	}
	if !r.spec.Quiet {
		r.log.Info("exec started", "command", name, "pid", cmd.Process.Pid, "detach", r.spec.Detach)
	}
	if r.spec.Detach {
		go cmd.Wait()
		return
	}
	go func() {
		err := cmd.Wait()
		if err != nil && !r.spec.Quiet {
			r.log.Warn("exec exited with error", "command", name, "err", err)
		}
	}()
}

// resolveCommand implements the Exec discriminator of §4.8: the target
// file's contents when command=__inside__ (InsideFile), otherwise the
// Command line; either runs through /bin/sh -c. With neither set it
// returns an error.
func (r *Runner) resolveCommand() (string, []string, error) {
	if r.spec.InsideFile != "" {
		data, err := os.ReadFile(r.spec.InsideFile)
		if err != nil {
			return "", nil, err
		}
		return "/bin/sh", []string{"-c", string(data)}, nil
	}
	if r.spec.Command != "" {
		return "/bin/sh", []string{"-c", r.spec.Command}, nil
	}
	return "", nil, fmt.Errorf("supervisor: no command or file to execute")
}

func (r *Runner) fireSetVar(vw VarWriter) {
	if vw == nil {
		return
	}
	for name, value := range r.spec.Assignments {
		if err := vw.WriteVar(r.spec.VarScope, r.spec.VarDir, name, value, r.spec.ToFile); err != nil {
			r.log.Error("setvar failed", "name", name, "err", err)
		}
	}
}

func (r *Runner) firePage(pc PageController) {
	if pc == nil {
		return
	}
	if err := pc.GoTo(r.spec.PageTarget); err != nil {
		r.log.Error("page navigation failed", "target", r.spec.PageTarget, "err", err)
	}
}

func (r *Runner) fireBrightness(br Brightness) {
	if br == nil {
		return
	}
	if err := br.Adjust(r.spec.BrightnessDelta, r.spec.BrightnessValue); err != nil {
		r.log.Error("brightness adjust failed", "err", err)
	}
}

// Stop terminates any active non-detached process: SIGTERM, then
// SIGKILL after the grace period, per §4.8's "All non-detach children are
// SIGTERM'd on deactivation with a bounded grace period, then SIGKILL'd."
func (r *Runner) Stop() {
	r.mu.Lock()
	cmd := r.cmd
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	r.state = stateIdle
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil || r.spec.Detach {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(r.grace):
		_ = cmd.Process.Kill()
	}
}

// ParsePageSpecOption parses a Brightness `brightness=` option value into
// (delta, value), supporting both absolute (`60`) and delta (`+10`,
// `-10`) forms, clamped 0-100 by the caller.
func ParsePageSpecOption(raw string) (delta bool, value int) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-") {
		v, _ := strconv.Atoi(raw)
		return true, v
	}
	v, _ := strconv.Atoi(raw)
	return false, v
}
