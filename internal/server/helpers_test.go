package server

import (
	"io"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
