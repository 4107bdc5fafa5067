package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
)

var (
	disabled atomic.Bool
	current  atomic.Pointer[slog.Logger]
)

func init() {
	current.Store(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.DateTime,
	})))
}

// Setup replaces the process logger. format is "json" or anything else for
// the colored console handler; level is debug, info, warn or error.
func Setup(w io.Writer, format, level string) {
	lvl := ParseLevel(level)
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		h = tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.DateTime})
	}
	l := slog.New(h)
	current.Store(l)
	slog.SetDefault(l)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// L returns the structured process logger.
func L() *slog.Logger {
	if disabled.Load() {
		return discard
	}
	return current.Load()
}

// Disable turns off all logging
func Disable() {
	disabled.Store(true)
}

// Enable turns logging back on
func Enable() {
	disabled.Store(false)
}

// Info logs an info message
func Info(v ...any) {
	L().Info(fmt.Sprint(v...))
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	L().Info(fmt.Sprintf(format, v...))
}

// Error logs an error message
func Error(v ...any) {
	L().Error(fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	L().Error(fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func Warn(v ...any) {
	L().Warn(fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	L().Warn(fmt.Sprintf(format, v...))
}

// Debug logs a debug message
func Debug(v ...any) {
	L().Debug(fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...any) {
	L().Debug(fmt.Sprintf(format, v...))
}

// Logger carries a request-scoped slog logger.
type Logger struct {
	l *slog.Logger
}

type ctxKey struct{}

// NewContext returns a context carrying l for WithContext to pick up.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithContext returns the logger stored in ctx, or the process logger.
func WithContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil && !disabled.Load() {
		return Logger{l: l}
	}
	return Logger{l: L()}
}

// Slog exposes the underlying structured logger.
func (l Logger) Slog() *slog.Logger {
	return l.l
}

// Info logs an info message
func (l Logger) Info(v ...any) {
	l.l.Info(fmt.Sprint(v...))
}

// Infof logs a formatted info message
func (l Logger) Infof(format string, v ...any) {
	l.l.Info(fmt.Sprintf(format, v...))
}

// Error logs an error message
func (l Logger) Error(v ...any) {
	l.l.Error(fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func (l Logger) Errorf(format string, v ...any) {
	l.l.Error(fmt.Sprintf(format, v...))
}

// Warnf logs a formatted warning message
func (l Logger) Warnf(format string, v ...any) {
	l.l.Warn(fmt.Sprintf(format, v...))
}
