package seller

import (
	"io"
	"math/rand"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/seats"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestNew_ResolvesAllStrategies(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, name := range Strategies() {
		agent, err := New(name, rng, testLogger())
		if err != nil {
			t.Errorf("Expected strategy %q to resolve: %v", name, err)
			continue
		}
		if agent.Name() != name {
			t.Errorf("Expected agent name %q, got %q", name, agent.Name())
		}
	}

	if _, err := New("bluff", rng, testLogger()); err == nil {
		t.Error("Expected unknown strategy to fail")
	}
}

func TestPriceAction_ClampsToMenu(t *testing.T) {
	if got := priceAction(60); got != seats.SetPrice60 {
		t.Errorf("Expected SetPrice60, got %d", got)
	}
	if got := priceAction(45); got != seats.SetPrice50 {
		t.Errorf("Expected clamp to SetPrice50, got %d", got)
	}
	if got := priceAction(85); got != seats.SetPrice70 {
		t.Errorf("Expected clamp to SetPrice70, got %d", got)
	}
}

func TestStickySeller_Decisions(t *testing.T) {
	agent := NewStickySeller(testLogger())

	buy := agent.Decide(View{Phase: seats.SeatBuying})
	if qty, _ := buy.Action.Quantity(); qty != 10 {
		t.Errorf("Expected sticky to buy 10 seats, got %d", qty)
	}

	refill := agent.Decide(View{Phase: seats.SeatBuying, Round: 3})
	if qty, _ := refill.Action.Quantity(); qty != 0 {
		t.Errorf("Expected no purchases after the opening round, got %d", qty)
	}

	price := agent.Decide(View{Phase: seats.PriceSetting, Round: 4})
	if p, _ := price.Action.Price(); p != 55 {
		t.Errorf("Expected sticky price 55, got %d", p)
	}
}

func TestPremiumSeller_Decisions(t *testing.T) {
	agent := NewPremiumSeller(testLogger())

	buy := agent.Decide(View{Phase: seats.SeatBuying})
	if qty, _ := buy.Action.Quantity(); qty != 5 {
		t.Errorf("Expected premium to buy 5 seats, got %d", qty)
	}

	price := agent.Decide(View{Phase: seats.PriceSetting})
	if p, _ := price.Action.Price(); p != 70 {
		t.Errorf("Expected premium price 70, got %d", p)
	}
}

func TestUndercutSeller_TracksCheapestRival(t *testing.T) {
	agent := NewUndercutSeller(testLogger())

	opening := agent.Decide(View{Phase: seats.PriceSetting, Round: 0, Players: 2, Seat: 0})
	if p, _ := opening.Action.Price(); p != 60 {
		t.Errorf("Expected opening price 60, got %d", p)
	}

	view := View{
		Phase:   seats.PriceSetting,
		Round:   1,
		Seat:    0,
		Players: 3,
		Prices:  [][]int{{70}, {65}, {60}},
		Sold:    [][]int{{2}, {3}, {5}},
	}
	cut := agent.Decide(view)
	if p, _ := cut.Action.Price(); p != 55 {
		t.Errorf("Expected 55, one tick under the 60 rival, got %d", p)
	}

	// Already at the floor: stays at 50.
	view.Prices = [][]int{{70}, {50}, {50}}
	floor := agent.Decide(view)
	if p, _ := floor.Action.Price(); p != 50 {
		t.Errorf("Expected floor price 50, got %d", p)
	}
}

func TestAdaptiveSeller_WalksPrice(t *testing.T) {
	agent := NewAdaptiveSeller(testLogger())

	view := View{
		Phase:   seats.PriceSetting,
		Round:   1,
		Seat:    0,
		Players: 2,
		Bought:  10,
		Prices:  [][]int{{60}, {55}},
		Sold:    [][]int{{0}, {4}},
	}
	cut := agent.Decide(view)
	if p, _ := cut.Action.Price(); p != 55 {
		t.Errorf("Expected cut to 55 after zero sales, got %d", p)
	}

	view.Sold = [][]int{{5}, {1}}
	raise := agent.Decide(view)
	if p, _ := raise.Action.Price(); p != 65 {
		t.Errorf("Expected raise to 65 after strong sales, got %d", p)
	}

	view.Sold = [][]int{{2}, {2}}
	hold := agent.Decide(view)
	if p, _ := hold.Action.Price(); p != 60 {
		t.Errorf("Expected hold at 60, got %d", p)
	}
}

func TestAgents_AlwaysChooseLegalActions(t *testing.T) {
	// Drive every strategy through a full game and check each decision
	// against the legal menu.
	for _, name := range Strategies() {
		rng := rand.New(rand.NewSource(7))
		agent, err := New(name, rng, testLogger())
		if err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}

		game, err := seats.NewGame(seats.Config{Players: 2, Seed: 99})
		if err != nil {
			t.Fatal(err)
		}
		st := game.NewInitialState()
		for !st.IsTerminal() {
			if st.IsChanceNode() {
				if err := st.Apply(seats.ChanceAction); err != nil {
					t.Fatalf("%s: chance apply failed: %v", name, err)
				}
				continue
			}
			view := ViewOf(st, st.CurrentPlayer())
			decision := agent.Decide(view)
			legal := false
			for _, a := range view.Legal {
				if a == decision.Action {
					legal = true
					break
				}
			}
			if !legal {
				t.Fatalf("%s chose illegal action %d in phase %s", name, decision.Action, view.Phase)
			}
			if err := st.Apply(decision.Action); err != nil {
				t.Fatalf("%s: apply failed: %v", name, err)
			}
		}
	}
}
