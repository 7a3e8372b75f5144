package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Conventional attribute keys shared by every package.
const (
	KeyModule   = "module"
	KeyAction   = "action"
	KeyResource = "resource"
	KeyResult   = "result"
)

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// Anything else is treated as info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Init installs the process-wide text logger on stdout.
func Init(level slog.Level) {
	InitWithWriter(os.Stdout, level)
}

// InitWithWriter is Init with a custom destination, used by tests.
func InitWithWriter(w io.Writer, level slog.Level) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.LevelKey {
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			}
			return attr
		},
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)))
}

func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}
