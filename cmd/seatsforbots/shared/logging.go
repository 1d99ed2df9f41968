// Package shared holds helpers common to the seatsforbots subcommands.
package shared

import (
	"os"

	"github.com/charmbracelet/log"
)

// SetupLogger builds the process logger writing to stderr. Unknown level
// strings fall back to info.
func SetupLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           lvl,
	})
}
