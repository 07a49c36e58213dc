// Package logger provides the structured logger used across uedump.
package logger

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type (
	LogLevel string

	// Logger is a leveled, key/value logger.
	Logger interface {
		Debug(msg string, keyvals ...any)
		Info(msg string, keyvals ...any)
		Warn(msg string, keyvals ...any)
		Error(msg string, keyvals ...any)
		With(keyvals ...any) Logger
	}

	loggerImpl struct {
		charmLogger *charmlog.Logger
	}
)

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

func (l LogLevel) charm() charmlog.Level {
	switch l {
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

func (l *loggerImpl) Debug(msg string, keyvals ...any) { l.charmLogger.Debug(msg, keyvals...) }
func (l *loggerImpl) Info(msg string, keyvals ...any)  { l.charmLogger.Info(msg, keyvals...) }
func (l *loggerImpl) Warn(msg string, keyvals ...any)  { l.charmLogger.Warn(msg, keyvals...) }
func (l *loggerImpl) Error(msg string, keyvals ...any) { l.charmLogger.Error(msg, keyvals...) }

func (l *loggerImpl) With(keyvals ...any) Logger {
	return &loggerImpl{charmLogger: l.charmLogger.With(keyvals...)}
}

type Config struct {
	Level      LogLevel
	Output     io.Writer
	JSON       bool
	TimeFormat string
	// Plain disables colours, for log files.
	Plain bool
}

func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		TimeFormat: "15:04:05",
	}
}

// NewLogger builds a logger from cfg; nil means DefaultConfig.
func NewLogger(cfg *Config) Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	charmLogger := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           cfg.Level.charm(),
	})
	switch {
	case cfg.JSON:
		charmLogger.SetFormatter(charmlog.JSONFormatter)
	case cfg.Plain:
		charmLogger.SetFormatter(charmlog.LogfmtFormatter)
	default:
		charmLogger.SetFormatter(charmlog.TextFormatter)
	}
	return &loggerImpl{charmLogger: charmLogger}
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return NewLogger(&Config{Level: ErrorLevel, Output: io.Discard})
}

// Tee returns a logger that forwards every call to each of ls.
func Tee(ls ...Logger) Logger { return tee(ls) }

type tee []Logger

func (t tee) Debug(msg string, keyvals ...any) {
	for _, l := range t {
		l.Debug(msg, keyvals...)
	}
}

func (t tee) Info(msg string, keyvals ...any) {
	for _, l := range t {
		l.Info(msg, keyvals...)
	}
}

func (t tee) Warn(msg string, keyvals ...any) {
	for _, l := range t {
		l.Warn(msg, keyvals...)
	}
}

func (t tee) Error(msg string, keyvals ...any) {
	for _, l := range t {
		l.Error(msg, keyvals...)
	}
}

func (t tee) With(keyvals ...any) Logger {
	out := make(tee, len(t))
	for i, l := range t {
		out[i] = l.With(keyvals...)
	}
	return out
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}
