package seats

import "fmt"

// Fixed game constants. The demand-curve parameters are deliberately not
// configurable; every deployment simulates the same market.
const (
	MinPlayers     = 2
	MaxPlayers     = 4
	DefaultPlayers = 2

	// MaxRounds is the number of demand rounds before the game ends.
	MaxRounds = 10

	// InitialPurchasePrice is the per-seat cost of inventory bought up front.
	InitialPurchasePrice = 50

	// LatePurchasePrice is the per-seat premium charged when sales exceed
	// inventory.
	LatePurchasePrice = 80

	baseDemand     = 36.0
	demandExponent = -50.0
	noiseAmplitude = 20.0

	// c1 is drawn uniformly between these endpoints once per game.
	c1Start = -0.24
	c1End   = -0.293
)

// Player sentinels. Real players are indexed 0..NumPlayers-1.
const (
	ChancePlayer   = -1
	TerminalPlayer = -4
)

// Config holds the immutable parameters of a Game.
type Config struct {
	// Players is the number of sellers, 2 to 4. Zero means DefaultPlayers.
	Players int
	// Seed seeds the game's random stream. Zero means wall clock.
	Seed int64
}

// Game owns the configuration and the single random stream shared by all of
// its states. Create one with NewGame and then one or more states with
// NewInitialState or Deserialize.
type Game struct {
	players int
	stream  *Stream
}

// NewGame validates cfg and creates a game.
func NewGame(cfg Config) (*Game, error) {
	players := cfg.Players
	if players == 0 {
		players = DefaultPlayers
	}
	if players < MinPlayers || players > MaxPlayers {
		return nil, fmt.Errorf("seats: players must be between %d and %d, got %d", MinPlayers, MaxPlayers, players)
	}
	return &Game{
		players: players,
		stream:  NewStream(cfg.Seed),
	}, nil
}

// NumPlayers returns the configured number of sellers.
func (g *Game) NumPlayers() int {
	return g.players
}

// Stream returns the game's random stream. Search tooling uses this to export
// and re-import positions around branch exploration.
func (g *Game) Stream() *Stream {
	return g.stream
}

// NewInitialState creates a state at InitialConditions, round 0, with all
// records empty.
func (g *Game) NewInitialState() *State {
	st := &State{
		game:   g,
		phase:  InitialConditions,
		player: ChancePlayer,
		bought: make([]int, g.players),
		prices: make([][]int, g.players),
		sold:   make([][]int, g.players),
	}
	return st
}

// MaxGameLength is the longest possible action sequence, excluding chance
// nodes: one buy per player plus one price per player per round.
func (g *Game) MaxGameLength() int {
	return g.players*MaxRounds + g.players
}

// MaxChanceOutcomes returns the width of a chance node. The randomness is
// sampled implicitly, so every chance node has a single outcome.
func (g *Game) MaxChanceOutcomes() int {
	return 1
}

// MaxChanceNodesInHistory counts the initial-conditions draw plus one demand
// node per round.
func (g *Game) MaxChanceNodesInHistory() int {
	return 1 + MaxRounds
}

// MinUtility is a lower bound on a player's terminal return.
func (g *Game) MinUtility() float64 {
	return -1000
}

// MaxUtility is an upper bound on a player's terminal return.
func (g *Game) MaxUtility() float64 {
	return 5000
}
