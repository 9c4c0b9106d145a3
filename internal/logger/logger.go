// Package logger is the structured logging layer shared by the API, the
// scheduler and the analysis service. Two backends are available: slog and zap.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level is a log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "info"
}

// ParseLevel reads a level name case-insensitively. Unknown names are info.
func ParseLevel(s string) Level {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return LevelWarn
	}
	for l, n := range levelNames {
		if n == name {
			return l
		}
	}
	return LevelInfo
}

// Field is one structured key/value on a log entry
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field                 { return Field{Key: key, Value: value} }
func Int(key string, value int) Field                { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field              { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Time(key string, value time.Time) Field         { return Field{Key: key, Value: value} }
func Any(key string, value any) Field                { return Field{Key: key, Value: value} }

// Err records err under "error". A nil error logs as null.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger is implemented by each backend
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that adds fields to every entry
	With(fields ...Field) Logger
	// WithContext adds the request, user, run and item values carried by ctx
	WithContext(ctx context.Context) Logger

	Level() Level
}

// Backend names accepted by New
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// Config selects a backend and its output
type Config struct {
	Level     Level
	Format    string // "json" or "text"
	Backend   string // BackendSlog when empty
	AddSource bool
	Output    io.Writer // stdout when nil
}

// DefaultConfig is JSON at info level on slog
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: "json", Backend: BackendSlog}
}

func (c Config) output() io.Writer {
	if c.Output == nil {
		return os.Stdout
	}
	return c.Output
}

// New builds a Logger for cfg.Backend
func New(cfg Config) Logger {
	if cfg.Backend == BackendZap {
		return NewZapLogger(cfg)
	}
	return NewSlogLogger(cfg)
}

type holder struct{ Logger }

var defaultLogger atomic.Pointer[holder]

// SetDefault replaces the process-wide logger. Passing nil restores the
// built-in default on next use.
func SetDefault(l Logger) {
	if l == nil {
		defaultLogger.Store(nil)
		return
	}
	defaultLogger.Store(&holder{l})
}

// Default returns the process-wide logger
func Default() Logger {
	if h := defaultLogger.Load(); h != nil {
		return h.Logger
	}
	l := NewSlogLogger(DefaultConfig())
	if defaultLogger.CompareAndSwap(nil, &holder{l}) {
		return l
	}
	return defaultLogger.Load().Logger
}

func Debug(msg string, fields ...Field) { Default().Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { Default().Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { Default().Warn(msg, fields...) }
func Error(msg string, fields ...Field) { Default().Error(msg, fields...) }
