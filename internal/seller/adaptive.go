package seller

import (
	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/seats"
)

// AdaptiveSeller buys a mid-size inventory and walks its price up or down a
// tick at a time based on how the previous round sold
type AdaptiveSeller struct {
	logger *log.Logger
}

// NewAdaptiveSeller creates a new AdaptiveSeller instance
func NewAdaptiveSeller(logger *log.Logger) *AdaptiveSeller {
	return &AdaptiveSeller{logger: logger}
}

func (a *AdaptiveSeller) Name() string { return "adaptive" }

func (a *AdaptiveSeller) Decide(view View) Decision {
	if view.Phase == seats.SeatBuying {
		if view.Round == 0 {
			return Decision{Action: buyAction(10), Reasoning: "adaptive-seller mid inventory"}
		}
		return Decision{Action: buyAction(0), Reasoning: "adaptive-seller book already filled"}
	}
	if view.Round == 0 {
		return Decision{Action: priceAction(60), Reasoning: "adaptive-seller opening price"}
	}

	own := view.Prices[view.Seat]
	lastPrice := own[view.Round-1]
	lastSold := view.Sold[view.Seat][view.Round-1]

	switch {
	case lastSold == 0:
		return Decision{Action: priceAction(lastPrice - 5), Reasoning: "adaptive-seller cutting after no sales"}
	case lastSold >= 4:
		return Decision{Action: priceAction(lastPrice + 5), Reasoning: "adaptive-seller raising into demand"}
	}
	return Decision{Action: priceAction(lastPrice), Reasoning: "adaptive-seller holding price"}
}
