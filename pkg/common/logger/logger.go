package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
)

var (
	once   sync.Once
	logger *slog.Logger
)

const redacted = "[REDACTED]"

// sensitiveKeys never reach the output, whatever component logs them.
var sensitiveKeys = map[string]struct{}{
	"mnemonic":    {},
	"seed":        {},
	"passphrase":  {},
	"private_key": {},
	"password":    {},
}

type Options struct {
	Level      slog.Leveler // slog.LevelInfo, slog.LevelDebug, etc.
	Writer     io.Writer    // default: os.Stdout
	TimeFormat string       // default: 2025-07-25T10:41:10+07:00
	NoColor    bool
	// JSON switches to one JSON object per line for log shippers.
	JSON bool
}

func newHandler(opts *Options) slog.Handler {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.JSON {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       opts.Level,
			ReplaceAttr: RedactAttr,
		})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:       opts.Level,
		TimeFormat:  opts.TimeFormat,
		NoColor:     opts.NoColor,
		ReplaceAttr: RedactAttr,
	})
}

func Init(opts *Options) {
	once.Do(func() {
		logger = slog.New(newHandler(opts))
		slog.SetDefault(logger)
	})
}

// RedactAttr replaces the value of secret-bearing attributes.
func RedactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	return a
}

func L() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// Fatal logs an error then exits.
func Fatal(msg string, args ...any) {
	Error(msg, args...)
	os.Exit(1)
}

func With(args ...any) *slog.Logger {
	return L().With(args...)
}
