package main

import (
	"fmt"
	"time"

	"github.com/lox/seatsforbots/cmd/seatsforbots/shared"
	"github.com/lox/seatsforbots/internal/simulator"
)

type SimulateCmd struct {
	Games    int    `default:"10000" help:"Games to simulate (each is played twice with seats swapped)"`
	Players  int    `default:"2" help:"Sellers per game (2-4)"`
	Strategy string `default:"undercut" help:"Strategy under evaluation"`
	Opponent string `default:"sticky" help:"Rival strategy, or mixed for a rotating field"`
	Seed     int64  `help:"Base seed (0 for random)"`
	Workers  int    `help:"Worker goroutines (0 for one per CPU)"`
	LogLevel string `default:"warn" help:"Log level (debug|info|warn|error)"`
}

func (c *SimulateCmd) Run() error {
	logger := shared.SetupLogger(c.LogLevel)

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	fmt.Printf("Starting simulation: %d games, %d players, %s vs %s (seed %d)\n",
		c.Games, c.Players, c.Strategy, c.Opponent, seed)

	start := time.Now()

	sim := simulator.New(simulator.Config{
		Games:        c.Games,
		Players:      c.Players,
		Strategy:     c.Strategy,
		OpponentType: c.Opponent,
		Seed:         seed,
		Workers:      c.Workers,
		Logger:       logger,
	})

	stats, opponentInfo, err := sim.Run()
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	simulator.PrintSummary(stats, opponentInfo)

	fmt.Printf("\nCompleted %d games in %s (%.0f games/sec)\n",
		stats.Games, elapsed.Round(time.Millisecond), float64(stats.Games)/elapsed.Seconds())
	return nil
}
