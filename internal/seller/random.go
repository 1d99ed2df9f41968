package seller

import (
	"math/rand"

	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/seats"
)

// RandomSeller picks a uniform random legal action
type RandomSeller struct {
	rng    *rand.Rand
	logger *log.Logger
}

// NewRandomSeller creates a new RandomSeller instance
func NewRandomSeller(rng *rand.Rand, logger *log.Logger) *RandomSeller {
	return &RandomSeller{rng: rng, logger: logger}
}

func (r *RandomSeller) Name() string { return "random" }

func (r *RandomSeller) Decide(view View) Decision {
	if len(view.Legal) == 0 {
		return Decision{Action: seats.SetPrice50, Reasoning: "random-seller no legal actions"}
	}
	action := view.Legal[r.rng.Intn(len(view.Legal))]
	return Decision{Action: action, Reasoning: "random-seller random action"}
}
