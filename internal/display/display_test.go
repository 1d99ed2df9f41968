package display

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lox/seatsforbots/seats"
)

func playedState(t *testing.T, rounds int) *seats.State {
	t.Helper()
	g, err := seats.NewGame(seats.Config{Players: 2, Seed: 42})
	if err != nil {
		t.Fatal(err)
	}
	st := g.NewInitialState()
	script := []seats.Action{seats.ChanceAction, seats.Buy10, seats.Buy15}
	for r := 0; r < rounds; r++ {
		script = append(script, seats.SetPrice60, seats.SetPrice65, seats.ChanceAction)
	}
	for _, a := range script {
		if err := st.Apply(a); err != nil {
			t.Fatalf("Apply(%d) failed: %v", a, err)
		}
	}
	return st
}

func TestRenderer_Round(t *testing.T) {
	st := playedState(t, 2)
	var buf bytes.Buffer
	r := NewPlain(&buf)

	r.Round(st, 0)
	out := buf.String()

	if !strings.Contains(out, "round 1") {
		t.Errorf("Expected round header, got:\n%s", out)
	}
	if !strings.Contains(out, "P0") || !strings.Contains(out, "P1") {
		t.Errorf("Expected both sellers, got:\n%s", out)
	}
	if !strings.Contains(out, "$60") || !strings.Contains(out, "$65") {
		t.Errorf("Expected round prices, got:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("Plain renderer emitted escape codes")
	}
}

func TestRenderer_SeatPurchases(t *testing.T) {
	st := playedState(t, 0)
	var buf bytes.Buffer
	r := NewPlain(&buf)

	r.SeatPurchases(st)
	out := buf.String()

	if !strings.Contains(out, "seller") || !strings.Contains(out, "seats") {
		t.Errorf("Expected table header, got:\n%s", out)
	}
	if !strings.Contains(out, "10") || !strings.Contains(out, "15") {
		t.Errorf("Expected inventories 10 and 15, got:\n%s", out)
	}
}

func TestRenderer_Standings(t *testing.T) {
	st := playedState(t, seats.MaxRounds)
	if !st.IsTerminal() {
		t.Fatal("Expected terminal state")
	}

	var buf bytes.Buffer
	r := NewPlain(&buf)
	r.SetNames([]string{"alice", "bob"})
	r.Standings(st)
	out := buf.String()

	if !strings.Contains(out, "standings") {
		t.Errorf("Expected standings header, got:\n%s", out)
	}
	if !strings.Contains(out, "alice") || !strings.Contains(out, "bob") {
		t.Errorf("Expected seller names, got:\n%s", out)
	}
	if !strings.Contains(out, "winner") {
		t.Errorf("Expected a winner marker, got:\n%s", out)
	}

	// The winner line comes first
	lines := strings.Split(out, "\n")
	winnerLine := -1
	for i, line := range lines {
		if strings.Contains(line, "winner") {
			winnerLine = i
			break
		}
	}
	if winnerLine != 2 {
		t.Errorf("Expected winner on the first data row, got line %d:\n%s", winnerLine, out)
	}
}

func TestRenderer_GameHeader(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlain(&buf)
	r.GameHeader("01h5n0et5q6mt3v7ms1234abcd", 2, 42)
	out := buf.String()

	if !strings.Contains(out, "match 01h5n0et5q6mt3v7ms1234abcd") {
		t.Errorf("Expected match banner, got:\n%s", out)
	}
	if !strings.Contains(out, "2 sellers, seed 42") {
		t.Errorf("Expected seller and seed info, got:\n%s", out)
	}
}
