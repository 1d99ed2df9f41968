package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/seatsforbots/internal/tui"
	"github.com/lox/seatsforbots/sdk"
)

type WatchCmd struct {
	Server  string `default:"ws://localhost:8080/watch" help:"WebSocket watch URL"`
	Match   string `default:"default" help:"Match to watch"`
	LogFile string `help:"Append debug logs to this file"`
}

func (c *WatchCmd) Run() error {
	// The screen belongs to the viewer, so logs go to a file or nowhere
	var logWriter io.Writer = io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logWriter = f
	}
	logger := log.NewWithOptions(logWriter, log.Options{
		ReportTimestamp: true,
		Level:           log.DebugLevel,
	})

	client := sdk.NewClient(c.Server, logger)

	params := url.Values{}
	params.Set("match", c.Match)

	if err := client.Connect(context.Background(), params); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = client.Disconnect() }()

	events := make(chan *sdk.Message, 16)
	go func() {
		defer close(events)
		for {
			msg, err := client.ReadMessage(0)
			if err != nil {
				logger.Debug("read loop ended", "error", err)
				return
			}
			events <- msg
		}
	}()

	model := tui.NewWatchModel(events, logger)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("viewer error: %w", err)
	}
	return nil
}
