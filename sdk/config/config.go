// Package config provides configuration parsing for seatsforbots SDK
// clients. It defines the standard environment variables used by the
// spawner and bots.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names used by the spawner and bots
const (
	// EnvServer specifies the WebSocket URL for the seats server
	EnvServer = "SEATSFORBOTS_SERVER"

	// EnvSeed provides a random seed for deterministic testing
	EnvSeed = "SEATSFORBOTS_SEED"

	// EnvBotID provides a unique identifier for the bot
	EnvBotID = "SEATSFORBOTS_BOT_ID"

	// EnvMatch specifies the target match name (defaults to "default")
	EnvMatch = "SEATSFORBOTS_MATCH"

	// EnvStrategy selects a built-in strategy for the generic bot command
	EnvStrategy = "SEATSFORBOTS_STRATEGY"
)

// BotConfig holds configuration parsed from environment variables
type BotConfig struct {
	// ServerURL is the WebSocket URL for connecting to the server
	ServerURL string

	// Seed is the random seed for deterministic behavior (0 means not set)
	Seed int64

	// BotID is the unique identifier for this bot instance
	BotID string

	// Match is the target match block to join (defaults to "default")
	Match string

	// Strategy names the built-in strategy to play (optional)
	Strategy string
}

// FromEnv parses configuration from environment variables.
// Returns an error if required variables are missing or invalid.
func FromEnv() (*BotConfig, error) {
	cfg := &BotConfig{
		Match: "default",
	}

	cfg.ServerURL = os.Getenv(EnvServer)
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%s environment variable is required", EnvServer)
	}

	if seedStr := os.Getenv(EnvSeed); seedStr != "" {
		seed, err := strconv.ParseInt(seedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", EnvSeed, err)
		}
		cfg.Seed = seed
	}

	cfg.BotID = os.Getenv(EnvBotID)

	if match := os.Getenv(EnvMatch); match != "" {
		cfg.Match = match
	}

	cfg.Strategy = os.Getenv(EnvStrategy)

	return cfg, nil
}

// SetEnv sets an environment variable for the spawner to use.
// This is a helper for setting up bot processes.
func SetEnv(env []string, key, value string) []string {
	return append(env, fmt.Sprintf("%s=%s", key, value))
}
