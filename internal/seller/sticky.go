package seller

import (
	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/seats"
)

// StickySeller buys a mid-size inventory and charges the same mid price
// every round regardless of what the market does
type StickySeller struct {
	logger *log.Logger
}

// NewStickySeller creates a new StickySeller instance
func NewStickySeller(logger *log.Logger) *StickySeller {
	return &StickySeller{logger: logger}
}

func (s *StickySeller) Name() string { return "sticky" }

func (s *StickySeller) Decide(view View) Decision {
	if view.Phase == seats.SeatBuying {
		if view.Round == 0 {
			return Decision{Action: buyAction(10), Reasoning: "sticky-seller mid inventory"}
		}
		return Decision{Action: buyAction(0), Reasoning: "sticky-seller book already filled"}
	}
	return Decision{Action: priceAction(55), Reasoning: "sticky-seller fixed price"}
}
