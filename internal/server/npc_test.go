package server

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/lox/seatsforbots/sdk"
	"github.com/lox/seatsforbots/seats"
)

func TestResolveStrategy(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"sticky", "sticky"},
		{"fixed", "sticky"},
		{"Premium", "premium"},
		{"high", "premium"},
		{"undercut", "undercut"},
		{"aggressive", "undercut"},
		{"aggro", "undercut"},
		{"adaptive", "adaptive"},
		{"adapt", "adaptive"},
		{"random", "random"},
		{"rand", "random"},
		{" sticky ", "sticky"},
	}

	for _, tt := range tests {
		got, err := resolveStrategy(tt.name)
		if err != nil {
			t.Errorf("resolveStrategy(%q) failed: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveStrategy(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	if _, err := resolveStrategy("bluff"); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func TestKnownStrategy(t *testing.T) {
	if !knownStrategy("undercut") {
		t.Error("Expected undercut to be known")
	}
	if knownStrategy("bluff") {
		t.Error("Expected bluff to be unknown")
	}
}

func buyRequest() sdk.ActionRequestData {
	return sdk.ActionRequestData{
		MatchID:      "m1",
		Seat:         0,
		Phase:        "SeatBuying",
		Round:        0,
		LegalActions: []int{0, 1, 2, 3, 4},
		View: sdk.ViewData{
			Round:  0,
			Phase:  "SeatBuying",
			Prices: [][]int{{}, {}},
			Sold:   [][]int{{}, {}},
		},
	}
}

func priceRequest() sdk.ActionRequestData {
	return sdk.ActionRequestData{
		MatchID:      "m1",
		Seat:         0,
		Phase:        "PriceSetting",
		Round:        0,
		LegalActions: []int{5, 6, 7, 8, 9},
		View: sdk.ViewData{
			Round:  0,
			Phase:  "PriceSetting",
			Bought: 10,
			Prices: [][]int{{}, {}},
			Sold:   [][]int{{}, {}},
		},
	}
}

func TestNPCAgent_StickyDecisions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	npc, err := newNPCAgent(testLogger(), "sticky", rng)
	if err != nil {
		t.Fatalf("newNPCAgent failed: %v", err)
	}

	if !strings.HasPrefix(npc.ID(), "npc-sticky-") {
		t.Errorf("Expected id prefix npc-sticky-, got %s", npc.ID())
	}

	action, _, err := npc.RequestAction(context.Background(), buyRequest())
	if err != nil {
		t.Fatalf("RequestAction failed: %v", err)
	}
	if action != int(seats.Buy10) {
		t.Errorf("Expected buy action %d, got %d", int(seats.Buy10), action)
	}

	action, _, err = npc.RequestAction(context.Background(), priceRequest())
	if err != nil {
		t.Fatalf("RequestAction failed: %v", err)
	}
	if action != int(seats.SetPrice55) {
		t.Errorf("Expected price action %d, got %d", int(seats.SetPrice55), action)
	}
}

func TestNPCAgent_RandomStaysLegal(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	npc, err := newNPCAgent(testLogger(), "random", rng)
	if err != nil {
		t.Fatalf("newNPCAgent failed: %v", err)
	}

	for i := 0; i < 50; i++ {
		req := priceRequest()
		action, _, err := npc.RequestAction(context.Background(), req)
		if err != nil {
			t.Fatalf("RequestAction failed: %v", err)
		}
		legal := false
		for _, id := range req.LegalActions {
			if action == id {
				legal = true
			}
		}
		if !legal {
			t.Fatalf("Random npc chose illegal action %d", action)
		}
	}
}

func TestNPCAgent_UnknownStrategy(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := newNPCAgent(testLogger(), "bluff", rng); err == nil {
		t.Error("Expected error for unknown strategy")
	}
}

func TestViewFromRequest(t *testing.T) {
	req := sdk.ActionRequestData{
		Seat:         1,
		Phase:        "PriceSetting",
		Round:        2,
		LegalActions: []int{5, 6, 7, 8, 9},
		View: sdk.ViewData{
			Round:  2,
			Phase:  "PriceSetting",
			Bought: 15,
			Prices: [][]int{{50, 55}, {70, 70}},
			Sold:   [][]int{{12, 9}, {3, 1}},
		},
	}

	view := viewFromRequest(req)
	if view.Phase != seats.PriceSetting {
		t.Errorf("Expected PriceSetting, got %s", view.Phase)
	}
	if view.Seat != 1 || view.Round != 2 || view.Players != 2 || view.Bought != 15 {
		t.Errorf("Unexpected view fields: %+v", view)
	}
	if len(view.Legal) != 5 || view.Legal[0] != seats.SetPrice50 {
		t.Errorf("Unexpected legal actions: %v", view.Legal)
	}
	if view.Prices[1][0] != 70 || view.Sold[0][1] != 9 {
		t.Errorf("History rows not carried through: %+v", view)
	}
}
