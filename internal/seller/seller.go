// Package seller provides strategy agents for offline play of the
// seat-selling game. Agents see only public information plus their own
// inventory, the same view a networked bot gets.
package seller

import (
	"fmt"
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/seats"
)

// Decision is an agent's chosen action with its reasoning
type Decision struct {
	Action    seats.Action
	Reasoning string
}

// View is the immutable observation an agent decides from
type View struct {
	Phase   seats.Phase
	Round   int
	Seat    int // the acting seller's index
	Players int
	Bought  int     // the acting seller's own inventory
	Prices  [][]int // public per-player price history
	Sold    [][]int // public per-player sales history
	Legal   []seats.Action
}

// ViewOf builds seat's observation of st
func ViewOf(st *seats.State, seat int) View {
	players := st.Game().NumPlayers()
	v := View{
		Phase:   st.CurrentPhase(),
		Round:   st.Round(),
		Seat:    seat,
		Players: players,
		Bought:  st.BoughtSeats(seat),
		Prices:  make([][]int, players),
		Sold:    make([][]int, players),
		Legal:   st.LegalActions(),
	}
	for i := 0; i < players; i++ {
		v.Prices[i] = st.Prices(i)
		v.Sold[i] = st.Sold(i)
	}
	return v
}

// Agent decides actions for one seller
type Agent interface {
	Name() string
	Decide(view View) Decision
}

// New creates an agent by strategy name
func New(strategy string, rng *rand.Rand, logger *log.Logger) (Agent, error) {
	switch strategy {
	case "random":
		return NewRandomSeller(rng, logger), nil
	case "sticky":
		return NewStickySeller(logger), nil
	case "premium":
		return NewPremiumSeller(logger), nil
	case "undercut":
		return NewUndercutSeller(logger), nil
	case "adaptive":
		return NewAdaptiveSeller(logger), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", strategy)
}

// Strategies lists the known strategy names
func Strategies() []string {
	return []string{"random", "sticky", "premium", "undercut", "adaptive"}
}

// priceAction maps a price in {50,55,60,65,70} to its action id, clamping
// out-of-range prices to the nearest menu entry.
func priceAction(price int) seats.Action {
	if price < 50 {
		price = 50
	}
	if price > 70 {
		price = 70
	}
	return seats.SetPrice50 + seats.Action((price-50)/5)
}

// buyAction maps a quantity in {0,5,10,15,20} to its action id
func buyAction(qty int) seats.Action {
	if qty < 0 {
		qty = 0
	}
	if qty > 20 {
		qty = 20
	}
	return seats.Action(qty / 5)
}

// lastRoundLow returns the lowest price any rival charged in the most recent
// completed round, or 0 if no round has completed.
func lastRoundLow(view View) int {
	if view.Round == 0 {
		return 0
	}
	low := 0
	for i := 0; i < view.Players; i++ {
		if i == view.Seat || len(view.Prices[i]) < view.Round {
			continue
		}
		p := view.Prices[i][view.Round-1]
		if low == 0 || p < low {
			low = p
		}
	}
	return low
}
