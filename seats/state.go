package seats

import (
	"fmt"
	"strings"
)

// Phase is one stage of the per-round protocol.
type Phase int

const (
	InitialConditions Phase = iota
	SeatBuying
	PriceSetting
	DemandSimulation
)

func (p Phase) String() string {
	switch p {
	case InitialConditions:
		return "InitialConditions"
	case SeatBuying:
		return "SeatBuying"
	case PriceSetting:
		return "PriceSetting"
	case DemandSimulation:
		return "DemandSimulation"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ChanceOutcome pairs a chance action with its probability.
type ChanceOutcome struct {
	Action Action
	Prob   float64
}

// State holds the value data for one playout: phase, turn cursor, round
// counter, the market-scale draw c1, and the per-player bought/priced/sold
// history. All mutation goes through Apply. The random stream lives on the
// owning Game, never here; see the package comment for the cloning contract.
type State struct {
	game   *Game
	phase  Phase
	player int
	round  int
	c1     float64
	bought []int
	prices [][]int
	sold   [][]int
}

// Game returns the owning game.
func (s *State) Game() *Game {
	return s.game
}

// CurrentPhase returns the phase the next action applies to. Once the state
// is terminal the value is the final DemandSimulation phase.
func (s *State) CurrentPhase() Phase {
	return s.phase
}

// CurrentPlayer returns the acting player index, ChancePlayer at chance
// nodes, or TerminalPlayer once the game is over.
func (s *State) CurrentPlayer() int {
	return s.player
}

// Round returns the number of completed demand rounds.
func (s *State) Round() int {
	return s.round
}

// C1 returns the game's market-scale draw. Zero until InitialConditions has
// been applied.
func (s *State) C1() float64 {
	return s.c1
}

// BoughtSeats returns player's seat inventory purchased at game start.
func (s *State) BoughtSeats(player int) int {
	return s.bought[player]
}

// Prices returns a copy of player's per-round price history.
func (s *State) Prices(player int) []int {
	out := make([]int, len(s.prices[player]))
	copy(out, s.prices[player])
	return out
}

// Sold returns a copy of player's per-round sales history.
func (s *State) Sold(player int) []int {
	out := make([]int, len(s.sold[player]))
	copy(out, s.sold[player])
	return out
}

// IsTerminal reports whether all rounds have been simulated.
func (s *State) IsTerminal() bool {
	return s.round >= MaxRounds
}

// IsChanceNode reports whether the next action is a chance outcome.
func (s *State) IsChanceNode() bool {
	return !s.IsTerminal() && s.player == ChancePlayer
}

// ChanceOutcomes returns the outcome distribution at a chance node. The
// randomness is sampled implicitly inside Apply, so the distribution is a
// single dummy outcome with probability 1.
func (s *State) ChanceOutcomes() []ChanceOutcome {
	if !s.IsChanceNode() {
		return nil
	}
	return []ChanceOutcome{{Action: ChanceAction, Prob: 1.0}}
}

// LegalActions returns the actions accepted by Apply in the current phase, in
// increasing id order. Terminal states have none.
func (s *State) LegalActions() []Action {
	if s.IsTerminal() {
		return nil
	}
	switch s.phase {
	case InitialConditions, DemandSimulation:
		return []Action{ChanceAction}
	case SeatBuying:
		return SeatBuyingActions()
	default:
		return PriceSettingActions()
	}
}

func (s *State) actionLegal(action Action) bool {
	for _, a := range s.LegalActions() {
		if a == action {
			return true
		}
	}
	return false
}

// Apply validates action against the current phase and advances the state.
// On InvalidActionError or ComputationError the state's value data is left
// unmutated. A demand step consumes stream draws before its numeric checks,
// so the stream may have advanced even when a ComputationError is returned.
func (s *State) Apply(action Action) error {
	if s.IsTerminal() {
		return &InvalidActionError{Action: action, Phase: s.phase, Terminal: true}
	}
	if !s.actionLegal(action) {
		return &InvalidActionError{Action: action, Phase: s.phase}
	}
	switch s.phase {
	case InitialConditions:
		s.applyInitialConditions()
	case SeatBuying:
		s.applySeatBuying(action)
	case PriceSetting:
		s.applyPriceSetting(action)
	case DemandSimulation:
		return s.applyDemandSimulation()
	}
	return nil
}

func (s *State) applyInitialConditions() {
	u := s.game.stream.Float64()
	s.c1 = c1Start + u*(c1End-c1Start)
	s.phase = SeatBuying
	s.player = 0
}

func (s *State) applySeatBuying(action Action) {
	qty, _ := action.Quantity()
	s.bought[s.player] = qty
	s.player++
	if s.player == s.game.players {
		s.player = 0
		s.phase = PriceSetting
	}
}

func (s *State) applyPriceSetting(action Action) {
	price, _ := action.Price()
	s.prices[s.player] = append(s.prices[s.player], price)
	s.player++
	if s.player == s.game.players {
		s.player = ChancePlayer
		s.phase = DemandSimulation
	}
}

func (s *State) applyDemandSimulation() error {
	current := make([]int, s.game.players)
	for i := range current {
		current[i] = s.prices[i][s.round]
	}
	sold, _, err := allocateDemand(current, s.c1, s.game.stream)
	if err != nil {
		return err
	}
	for i := range sold {
		s.sold[i] = append(s.sold[i], sold[i])
	}
	s.round++
	if s.round >= MaxRounds {
		s.player = TerminalPlayer
		return nil
	}
	s.phase = PriceSetting
	s.player = 0
	return nil
}

// Clone returns a pure value copy of the recorded history. The clone shares
// the owning game's stream: advancing either copy past a chance node mutates
// the shared stream. Branch exploration that needs exact replay must export
// the stream position alongside each branch and re-import it before drawing.
func (s *State) Clone() *State {
	c := &State{
		game:   s.game,
		phase:  s.phase,
		player: s.player,
		round:  s.round,
		c1:     s.c1,
		bought: make([]int, len(s.bought)),
		prices: make([][]int, len(s.prices)),
		sold:   make([][]int, len(s.sold)),
	}
	copy(c.bought, s.bought)
	for i := range s.prices {
		c.prices[i] = make([]int, len(s.prices[i]))
		copy(c.prices[i], s.prices[i])
	}
	for i := range s.sold {
		c.sold[i] = make([]int, len(s.sold[i]))
		copy(c.sold[i], s.sold[i])
	}
	return c
}

// String renders a human-readable dump of the full state for debugging and
// logs. It is not a serialization format; use Serialize for resumption.
func (s *State) String() string {
	var b strings.Builder
	actor := "terminal"
	switch {
	case s.IsTerminal():
	case s.player == ChancePlayer:
		actor = "chance"
	default:
		actor = fmt.Sprintf("player %d", s.player)
	}
	fmt.Fprintf(&b, "phase=%s round=%d actor=%s c1=%g\n", s.phase, s.round, actor, s.c1)
	pnl := s.RunningPnl(s.round)
	for i := 0; i < s.game.players; i++ {
		fmt.Fprintf(&b, "P%d bought=%d prices=%v sold=%v pnl=%.0f\n",
			i, s.bought[i], s.prices[i], s.sold[i], pnl[i])
	}
	return b.String()
}

// InformationStateString renders the game from player's perspective: the turn
// cursor, the player's own inventory, and the public price and sales history.
// Other players' inventories and the c1 draw are hidden.
func (s *State) InformationStateString(player int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "phase=%s round=%d actor=%d bought=%d\n", s.phase, s.round, s.player, s.bought[player])
	for i := 0; i < s.game.players; i++ {
		fmt.Fprintf(&b, "P%d prices=%v sold=%v\n", i, s.prices[i], s.sold[i])
	}
	return b.String()
}

// ObservationString is identical to InformationStateString; the public
// history carries all observable information.
func (s *State) ObservationString(player int) string {
	return s.InformationStateString(player)
}
