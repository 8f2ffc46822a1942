// Package logging wires structured logging for deckfsd: a text handler
// when the process is not a systemd service, fanned out to the systemd
// journal whenever a journal handler can be opened, following the
// reusee-tai logs package's terminal/journal split.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

var level = new(slog.LevelVar)

// SetLevel adjusts the shared level var; both the terminal and journal
// handlers built by New read it, so a call after New takes effect without
// re-constructing the logger.
func SetLevel(s string) {
	switch strings.ToLower(s) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// spanHandler attaches the current key-press/tick span id to every log
// record made within its context, mirroring logs.Handler.
type spanHandler struct {
	slog.Handler
}

type spanKeyType struct{}

var spanKey = spanKeyType{}

func (h *spanHandler) Handle(ctx context.Context, record slog.Record) error {
	if v := ctx.Value(spanKey); v != nil {
		record.Add("span", v)
	}
	return h.Handler.Handle(ctx, record)
}

// WithSpan attaches a correlation id (e.g. a tick sequence number or
// event-press id) to the context so every log line emitted while
// handling that tick/press carries it.
func WithSpan(ctx context.Context, span string) context.Context {
	return context.WithValue(ctx, spanKey, span)
}

// New builds the daemon logger: text output on w (stderr when w is nil)
// unless cgroup inspection shows the process belongs to a .service unit,
// fanned out to the systemd journal whenever its handler can be opened.
// A service without a journal falls back to text output on w.
func New(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	var handlers []slog.Handler
	isService := isSystemdService()

	var terminal slog.Handler
	if !isService {
		terminal = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
		handlers = append(handlers, terminal)
	}

	journal, err := slogjournal.NewHandler(&slogjournal.Options{
		ReplaceGroup: toJournalKey,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a.Key = toJournalKey(a.Key)
			return a
		},
	})
	if err != nil {
		if terminal != nil {
			rec := slog.NewRecord(time.Now(), slog.LevelWarn, "systemd journal handler unavailable", 0)
			rec.Add("err", err)
			_ = terminal.Handle(context.Background(), rec)
		} else {
			// no journal and not a terminal run either: fall back to
			// stderr so the daemon is never silent.
			handlers = append(handlers, slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
		}
	} else {
		handlers = append(handlers, journal)
	}

	return slog.New(&spanHandler{Handler: slogmulti.Fanout(handlers...)})
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, str)
}

func isSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	parts := strings.Split(string(content), ":")
	if len(parts) < 3 {
		return false
	}
	return strings.HasSuffix(path.Dir(parts[2]), ".service")
}
