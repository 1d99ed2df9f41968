package seller

import (
	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/seats"
)

// PremiumSeller carries a small inventory and always charges the top of the
// menu, betting that even a thin demand share covers the cheap book
type PremiumSeller struct {
	logger *log.Logger
}

// NewPremiumSeller creates a new PremiumSeller instance
func NewPremiumSeller(logger *log.Logger) *PremiumSeller {
	return &PremiumSeller{logger: logger}
}

func (p *PremiumSeller) Name() string { return "premium" }

func (p *PremiumSeller) Decide(view View) Decision {
	if view.Phase == seats.SeatBuying {
		if view.Round == 0 {
			return Decision{Action: buyAction(5), Reasoning: "premium-seller small inventory"}
		}
		return Decision{Action: buyAction(0), Reasoning: "premium-seller book already filled"}
	}
	return Decision{Action: priceAction(70), Reasoning: "premium-seller top price"}
}
