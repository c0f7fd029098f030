// Package logger wraps charmbracelet/log behind a small structured logging
// interface that can travel in a context.
package logger

import (
	"context"
	"io"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

type ctxKey struct{}

// Logger is the structured logger used across the module.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) charm() charmlog.Level {
	switch Level(strings.ToLower(string(l))) {
	case DebugLevel:
		return charmlog.DebugLevel
	case WarnLevel:
		return charmlog.WarnLevel
	case ErrorLevel:
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

type Format string

const (
	// FormatAuto picks text for terminals and JSON otherwise.
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	TimeFormat string
}

func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Format:     FormatAuto,
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

type charmLogger struct {
	l *charmlog.Logger
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}

// NewLogger builds a logger from cfg, falling back to DefaultConfig for nil
// or zero fields.
func NewLogger(cfg *Config) Logger {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	out := cfg.Output
	if out == nil {
		out = def.Output
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = def.TimeFormat
	}

	l := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Level:           cfg.Level.charm(),
	})
	if useJSON(cfg.Format, out) {
		l.SetFormatter(charmlog.JSONFormatter)
	} else {
		l.SetFormatter(charmlog.TextFormatter)
	}
	return &charmLogger{l: l}
}

func useJSON(f Format, out io.Writer) bool {
	switch f {
	case FormatJSON:
		return true
	case FormatText:
		return false
	}
	file, ok := out.(*os.File)
	if !ok {
		return true
	}
	return !isatty.IsTerminal(file.Fd()) && !isatty.IsCygwinTerminal(file.Fd())
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return NewLogger(&Config{Level: ErrorLevel, Format: FormatText, Output: io.Discard})
}

var defaultLogger = NewLogger(nil)

// SetDefault replaces the logger returned by FromContext when the context
// carries none.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	return defaultLogger
}
