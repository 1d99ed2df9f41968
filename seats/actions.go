package seats

import "fmt"

// Action is a move identifier. Ids are global across phases: 0-4 buy a seat
// block, 5-9 set a price. Chance nodes expose the single dummy outcome 0.
type Action int

const (
	Buy0 Action = iota
	Buy5
	Buy10
	Buy15
	Buy20
	SetPrice50
	SetPrice55
	SetPrice60
	SetPrice65
	SetPrice70
)

// ChanceAction is the synthetic outcome applied at chance nodes. The draw
// itself happens inside Apply; the action only triggers it.
const ChanceAction Action = 0

// NumDistinctActions is the size of the global action space.
const NumDistinctActions = 10

// Quantity returns the seat quantity for a buy action.
func (a Action) Quantity() (int, bool) {
	if a < Buy0 || a > Buy20 {
		return 0, false
	}
	return int(a) * 5, true
}

// Price returns the ticket price for a price-setting action.
func (a Action) Price() (int, bool) {
	if a < SetPrice50 || a > SetPrice70 {
		return 0, false
	}
	return 50 + int(a-SetPrice50)*5, true
}

// SeatBuyingActions returns the legal menu for the seat-buying phase.
func SeatBuyingActions() []Action {
	return []Action{Buy0, Buy5, Buy10, Buy15, Buy20}
}

// PriceSettingActions returns the legal menu for the price-setting phase.
func PriceSettingActions() []Action {
	return []Action{SetPrice50, SetPrice55, SetPrice60, SetPrice65, SetPrice70}
}

// ActionString renders an action in the context of the state's current phase.
// Chance-node actions render as the phase name.
func (s *State) ActionString(a Action) string {
	switch s.phase {
	case InitialConditions:
		return "InitialConditions"
	case DemandSimulation:
		return "DemandSimulation"
	}
	if qty, ok := a.Quantity(); ok {
		return fmt.Sprintf("Buy:%d", qty)
	}
	if price, ok := a.Price(); ok {
		return fmt.Sprintf("SetPrice:%d", price)
	}
	return fmt.Sprintf("Unknown:%d", a)
}
