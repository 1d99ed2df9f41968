package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/lox/seatsforbots/internal/display"
	"github.com/lox/seatsforbots/internal/server"
	"github.com/lox/seatsforbots/seats"
)

type ReplayCmd struct {
	File    string `arg:"" help:"Match record JSON file"`
	Actions bool   `help:"Also print the decision log"`
	NoColor bool   `help:"Disable colored output"`
}

func (c *ReplayCmd) Run() error {
	rec, err := server.LoadMatchRecord(c.File)
	if err != nil {
		return err
	}

	game, err := seats.NewGame(seats.Config{Players: len(rec.Players), Seed: rec.Seed})
	if err != nil {
		return fmt.Errorf("match record players: %w", err)
	}
	st, err := game.Deserialize(rec.State)
	if err != nil {
		return fmt.Errorf("match record state: %w", err)
	}

	r := display.New(os.Stdout)
	if c.NoColor {
		r = display.NewPlain(os.Stdout)
	}

	names := make([]string, len(rec.Players))
	for _, p := range rec.Players {
		if p.Seat >= 0 && p.Seat < len(names) {
			names[p.Seat] = p.Name
		}
	}
	r.SetNames(names)

	r.GameHeader(rec.Name, len(rec.Players), rec.Seed)
	r.SeatPurchases(st)
	for round := 0; round < st.Round(); round++ {
		r.Round(st, round)
	}
	r.Standings(st)

	if c.Actions {
		printDecisions(rec, names)
	}
	return nil
}

func printDecisions(rec *server.MatchRecord, names []string) {
	fmt.Println("\nDecisions:")
	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUND\tPHASE\tSELLER\tACTION\tREASONING")
	for _, a := range rec.Actions {
		name := fmt.Sprintf("seat %d", a.Seat)
		if a.Seat >= 0 && a.Seat < len(names) && names[a.Seat] != "" {
			name = names[a.Seat]
		}
		reasoning := a.Reasoning
		if a.Substituted {
			reasoning = "(substituted) " + reasoning
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.Round, a.Phase, name, a.Label, reasoning)
	}
	tw.Flush()
}
