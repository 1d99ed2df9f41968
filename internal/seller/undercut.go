package seller

import (
	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/seats"
)

// UndercutSeller buys deep and prices one tick below the cheapest rival from
// the previous round, chasing the biggest demand share
type UndercutSeller struct {
	logger *log.Logger
}

// NewUndercutSeller creates a new UndercutSeller instance
func NewUndercutSeller(logger *log.Logger) *UndercutSeller {
	return &UndercutSeller{logger: logger}
}

func (u *UndercutSeller) Name() string { return "undercut" }

func (u *UndercutSeller) Decide(view View) Decision {
	if view.Phase == seats.SeatBuying {
		if view.Round == 0 {
			return Decision{Action: buyAction(15), Reasoning: "undercut-seller deep inventory"}
		}
		return Decision{Action: buyAction(0), Reasoning: "undercut-seller book already filled"}
	}

	low := lastRoundLow(view)
	if low == 0 {
		// No history yet; open mid-menu.
		return Decision{Action: priceAction(60), Reasoning: "undercut-seller opening price"}
	}
	return Decision{Action: priceAction(low - 5), Reasoning: "undercut-seller below cheapest rival"}
}
