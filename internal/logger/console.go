package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
)

// CharmHandler adapts charmbracelet/log to slog.Handler for console output.
type CharmHandler struct {
	logger *charmlog.Logger
	writer io.Writer
	opts   CharmHandlerOptions
	attrs  []slog.Attr
	groups []string
}

// CharmHandlerOptions configures the Charm handler.
type CharmHandlerOptions struct {
	Level      slog.Leveler
	NoColor    bool
	TimeFormat string
	Prefix     string
}

// NewCharmHandler creates a Charm-based slog handler writing to w.
func NewCharmHandler(w io.Writer, opts *CharmHandlerOptions) *CharmHandler {
	if opts == nil {
		opts = &CharmHandlerOptions{}
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04:05"
	}
	h := &CharmHandler{writer: w, opts: *opts}
	h.logger = h.newCharmLogger()
	return h
}

func (h *CharmHandler) newCharmLogger() *charmlog.Logger {
	l := charmlog.NewWithOptions(h.writer, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      h.opts.TimeFormat,
		Prefix:          h.opts.Prefix,
		Level:           charmLogLevel(h.opts.Level.Level()),
	})
	if !h.opts.NoColor {
		applyStyles(l)
	}
	return l
}

func applyStyles(l *charmlog.Logger) {
	styles := charmlog.DefaultStyles()
	styles.Levels[charmlog.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBU").Bold(true).Foreground(lipgloss.Color("63"))
	styles.Levels[charmlog.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").Bold(true).Foreground(lipgloss.Color("42"))
	styles.Levels[charmlog.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").Bold(true).Foreground(lipgloss.Color("214"))
	styles.Levels[charmlog.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERRO").Bold(true).Foreground(lipgloss.Color("196"))
	styles.Key = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styles.Value = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	styles.Timestamp = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styles.Prefix = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	l.SetStyles(styles)
}

// Enabled implements slog.Handler.
func (h *CharmHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle implements slog.Handler.
func (h *CharmHandler) Handle(_ context.Context, r slog.Record) error {
	kvs := make([]any, 0, (len(h.attrs)+r.NumAttrs())*2)
	for _, attr := range h.attrs {
		if k, v := h.formatAttr(attr); k != "" {
			kvs = append(kvs, k, v)
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		if k, v := h.formatAttr(a); k != "" {
			kvs = append(kvs, k, v)
		}
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, kvs...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, kvs...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, kvs...)
	default:
		h.logger.Debug(r.Message, kvs...)
	}
	return nil
}

func (h *CharmHandler) formatAttr(attr slog.Attr) (string, any) {
	if attr.Key == "" {
		return "", nil
	}
	key := attr.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		var parts []string
		for _, ga := range attr.Value.Group() {
			if k, v := h.formatAttr(ga); k != "" {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
		}
		if len(parts) == 0 {
			return "", nil
		}
		return key, strings.Join(parts, " ")
	}
	return key, formatValue(attr.Value)
}

// WithAttrs implements slog.Handler.
func (h *CharmHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)
	return c
}

// WithGroup implements slog.Handler.
func (h *CharmHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

func (h *CharmHandler) clone() *CharmHandler {
	return &CharmHandler{
		logger: h.logger,
		writer: h.writer,
		opts:   h.opts,
		attrs:  append([]slog.Attr{}, h.attrs...),
		groups: append([]string{}, h.groups...),
	}
}

func formatValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}

func charmLogLevel(level slog.Level) charmlog.Level {
	switch {
	case level >= slog.LevelError:
		return charmlog.ErrorLevel
	case level >= slog.LevelWarn:
		return charmlog.WarnLevel
	case level >= slog.LevelInfo:
		return charmlog.InfoLevel
	default:
		return charmlog.DebugLevel
	}
}
