// Package logger builds the slog loggers used across alisbot.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects log level, format and destinations.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // pretty, text, json
	Output     string // stderr, stdout, or empty for none
	FilePath   string // optional rotated log file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	NoColor    bool
}

// Logger wraps slog.Logger and owns any open log files.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	writer, closer := buildWriters(cfg)

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = NewCharmHandler(writer, &CharmHandlerOptions{
			Level:   level,
			NoColor: cfg.NoColor || cfg.FilePath != "",
			Prefix:  "alisbot",
		})
	}

	return &Logger{Logger: slog.New(handler), closer: closer}, nil
}

// Close closes the rotated log file, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", name)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildWriters(cfg Config) (io.Writer, io.Closer) {
	var writers []io.Writer
	var closer io.Closer

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		writers = append(writers, os.Stdout)
	case "stderr":
		writers = append(writers, os.Stderr)
	}

	if cfg.FilePath != "" {
		lj := newLumberjack(cfg)
		writers = append(writers, lj)
		closer = lj
	}

	switch len(writers) {
	case 0:
		return io.Discard, closer
	case 1:
		return writers[0], closer
	default:
		return io.MultiWriter(writers...), closer
	}
}

func newLumberjack(cfg Config) *lumberjack.Logger {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 20
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}
