package main

import (
	"github.com/lox/seatsforbots/cmd/seatsforbots/shared"
	"github.com/lox/seatsforbots/internal/server"
)

type ServeCmd struct {
	Config   string `short:"c" default:"seatsforbots.hcl" help:"Path to the HCL config file"`
	Listen   string `help:"Override the configured listen address"`
	LogLevel string `help:"Override the configured log level (debug|info|warn|error)"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Server.Listen = c.Listen
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}

	logger := shared.SetupLogger(cfg.Server.LogLevel)

	srv, err := server.New(logger, *cfg)
	if err != nil {
		return err
	}

	logger.Info("Starting server",
		"listen", cfg.Server.Listen,
		"matches", len(cfg.Matches),
		"timeout", cfg.Server.DecisionTimeout)

	ctx := shared.SetupSignalHandler(logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server")
		return srv.Stop()
	case err := <-serverErr:
		return err
	}
}
