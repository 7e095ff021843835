package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
)

// Attribute keys the migration runner logs with. They are printed ahead
// of the message instead of as key=value pairs.
const (
	keyComponent = "component"
	keyMigration = "migration"
	keyDirection = "direction"
	keyPhase     = "phase"
)

// directionColors and phaseColors tint the run context of a record.
var (
	directionColors = map[string]string{
		"forward": Green,
		"reverse": Yellow,
	}
	phaseColors = map[string]string{
		"parse":       Gray,
		"transaction": Blue,
		"script":      Magenta,
		"persist":     Cyan,
	}
)

// ColorHandler writes one line per record for terminals:
//
//	10:30:45 INFO  [migrator] 0002 forward script  State is now at 0002. key=value
type ColorHandler struct {
	opts     *slog.HandlerOptions
	mu       *sync.Mutex
	writer   io.Writer
	attrs    []slog.Attr
	prefix   string
	masker   *Masker
	useColor bool
}

// NewColorHandler creates a color handler writing to w. Colors are only
// used when w is a terminal and NO_COLOR is unset.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{
		opts:     opts,
		mu:       &sync.Mutex{},
		writer:   w,
		masker:   NewMasker(),
		useColor: shouldUseColor(w),
	}
}

func shouldUseColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// runContext holds the runner attributes pulled out of a record.
type runContext struct {
	component, migration, direction, phase string
	failed                                 bool
}

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		attrs = append(attrs, a)
		return true
	})
	attrs = h.maskAttributes(attrs)

	var rc runContext
	rest := attrs[:0:0]
	for _, a := range attrs {
		switch a.Key {
		case keyComponent:
			rc.component = a.Value.String()
		case keyMigration:
			rc.migration = a.Value.String()
		case keyDirection:
			rc.direction = a.Value.String()
		case keyPhase:
			rc.phase = a.Value.String()
		default:
			if a.Key == "failed" && a.Value.Kind() == slog.KindBool && a.Value.Bool() {
				rc.failed = true
			}
			rest = append(rest, a)
		}
	}

	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(h.colorize(Gray, r.Time.Format(time.TimeOnly)))
		b.WriteByte(' ')
	}
	b.WriteString(h.formatLevel(r.Level))
	b.WriteByte(' ')
	if rc.component != "" {
		b.WriteString(h.colorize(Cyan, "["+rc.component+"]"))
		b.WriteByte(' ')
	}
	if rc.migration != "" {
		b.WriteString(h.colorize(Bold, rc.migration))
		b.WriteByte(' ')
	}
	if rc.direction != "" {
		b.WriteString(h.colorize(directionColors[rc.direction], rc.direction))
		b.WriteByte(' ')
	}
	if rc.phase != "" {
		color := phaseColors[rc.phase]
		if rc.failed || r.Level >= slog.LevelError {
			color = Red
		}
		b.WriteString(h.colorize(color, rc.phase))
		b.WriteByte(' ')
	}

	msg := r.Message
	if r.Level >= slog.LevelError {
		msg = h.colorize(Red, msg)
	}
	b.WriteString(msg)
	for _, a := range rest {
		b.WriteByte(' ')
		b.WriteString(h.colorize(Gray, a.Key+"="))
		b.WriteString(h.formatValue(a))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *ColorHandler) formatLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.colorize(Red, "ERROR")
	case level >= slog.LevelWarn:
		return h.colorize(Yellow, "WARN ")
	case level >= slog.LevelInfo:
		return h.colorize(Green, "INFO ")
	default:
		return h.colorize(Gray, "DEBUG")
	}
}

// formatValue quotes strings and turns errors red.
func (h *ColorHandler) formatValue(a slog.Attr) string {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := fmt.Sprintf("%q", v.String())
		if a.Key == "error" {
			return h.colorize(Red, s)
		}
		return s
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return h.colorize(Red, fmt.Sprintf("%q", err.Error()))
		}
	}
	return v.String()
}

func (h *ColorHandler) colorize(color, text string) string {
	if !h.useColor || color == "" {
		return text
	}
	return color + text + Reset
}

// maskAttributes hides credentials in string values and sensitive keys.
func (h *ColorHandler) maskAttributes(attrs []slog.Attr) []slog.Attr {
	if h.masker == nil || !h.masker.IsEnabled() {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = a
		if s, ok := h.masker.MaskValue(a.Key, a.Value.Any()).(string); ok &&
			(s == maskedPlaceholder || a.Value.Kind() == slog.KindString && s != a.Value.String()) {
			out[i] = slog.String(a.Key, s)
		}
	}
	return out
}

func (h *ColorHandler) clone() *ColorHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return c
}

// WithGroup prefixes the keys of later attributes with name.
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func (h *ColorHandler) SetMasker(masker *Masker) {
	h.masker = masker
}

func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.useColor = enabled
}
