package logging

import (
	"log/slog"
	"os"
)

// Init installs the default slog logger. def applies when LOG_LEVEL is
// unset; the CLI defaults to errors only so the terminal UI stays clean,
// the relay defaults to info.
func Init(def slog.Level) {
	level := def

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error", "production", "prod":
			level = slog.LevelError
		}
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}
