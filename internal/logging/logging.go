// Package logging configures log/slog for ntc.
//
// Dev mode writes colored text through tint at debug level. Otherwise logs are
// JSON at the level named by LOG_LEVEL (default info). One-shot CLI commands
// use SetupCLI, which only shows warnings unless LOG_LEVEL says otherwise.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup installs the default slog logger writing to stderr.
func Setup(devMode bool) {
	slog.SetDefault(New(os.Stderr, devMode))
}

// SetupCLI installs a plain-text default logger for commands other than
// serve, so their output is not interleaved with routine log lines.
func SetupCLI(w io.Writer) {
	slog.SetDefault(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      levelFromEnv(slog.LevelWarn),
		TimeFormat: time.Kitchen,
		NoColor:    true,
	})))
}

// New builds a logger writing to w.
func New(w io.Writer, devMode bool) *slog.Logger {
	if devMode {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: levelFromEnv(slog.LevelInfo),
	}))
}

func levelFromEnv(fallback slog.Level) slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	default:
		return fallback
	}
}
