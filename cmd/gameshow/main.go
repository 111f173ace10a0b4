package main

import (
	"log/slog"

	"github.com/ratjar110/gameshow-app/internal/cli"
	"github.com/ratjar110/gameshow-app/internal/logging"
)

func main() {
	// Errors only by default; the TUI owns the terminal. LOG_LEVEL
	// overrides for debugging.
	logging.Init(slog.LevelError)
	cli.Execute()
}
