package seats

import (
	"fmt"
	"strconv"
	"strings"
)

// The serialized form is a single space-separated string with a fixed field
// order: stream blob, round, c1, phase:actor marker, per-player bought seats,
// sales flattened round-major, prices flattened round-major. A price-setting
// pass in progress contributes the first actor players' entries for the open
// round; every expected count is derivable from the marker, so truncation is
// always detectable. The grammar is stable across versions reading the same
// blob.

const terminalMarker = "Terminal"

func (s *State) marker() string {
	if s.IsTerminal() {
		return fmt.Sprintf("%s:%d", terminalMarker, TerminalPlayer)
	}
	return fmt.Sprintf("%s:%d", s.phase, s.player)
}

// priceLayout returns how many complete price rounds the state holds and how
// many players have already priced the open round.
func (s *State) priceLayout() (full, partial int) {
	if s.IsTerminal() {
		return s.round, 0
	}
	switch s.phase {
	case PriceSetting:
		return s.round, s.player
	case DemandSimulation:
		return s.round + 1, 0
	default:
		return 0, 0
	}
}

// Serialize encodes the state and the owning game's exact stream position as
// one opaque string. Deserializing it reproduces future chance draws
// bit-for-bit.
func (s *State) Serialize() string {
	n := s.game.players
	full, partial := s.priceLayout()

	fields := make([]string, 0, 4+n+n*s.round+n*full+partial)
	fields = append(fields,
		s.game.stream.Export(),
		strconv.Itoa(s.round),
		strconv.FormatFloat(s.c1, 'g', -1, 64),
		s.marker(),
	)
	for i := 0; i < n; i++ {
		fields = append(fields, strconv.Itoa(s.bought[i]))
	}
	for r := 0; r < s.round; r++ {
		for i := 0; i < n; i++ {
			fields = append(fields, strconv.Itoa(s.sold[i][r]))
		}
	}
	for r := 0; r < full; r++ {
		for i := 0; i < n; i++ {
			fields = append(fields, strconv.Itoa(s.prices[i][r]))
		}
	}
	for i := 0; i < partial; i++ {
		fields = append(fields, strconv.Itoa(s.prices[i][full]))
	}
	return strings.Join(fields, " ")
}

// Deserialize reconstructs a state from a Serialize blob and restores the
// game's stream to the recorded position. Subsequent Apply calls behave
// identically to a state built by live simulation to the same point. On any
// grammar violation it returns a MalformedStateError, leaves the stream
// untouched, and returns no partial state.
func (g *Game) Deserialize(encoded string) (*State, error) {
	fields := strings.Fields(encoded)
	if len(fields) < 4 {
		return nil, &MalformedStateError{Reason: fmt.Sprintf("expected at least 4 fields, got %d", len(fields))}
	}

	round, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, &MalformedStateError{Reason: fmt.Sprintf("round %q: %v", fields[1], err)}
	}
	if round < 0 || round > MaxRounds {
		return nil, &MalformedStateError{Reason: fmt.Sprintf("round %d out of range", round)}
	}

	c1, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, &MalformedStateError{Reason: fmt.Sprintf("c1 %q: %v", fields[2], err)}
	}

	phase, player, err := g.parseMarker(fields[3], round)
	if err != nil {
		return nil, err
	}

	st := &State{
		game:   g,
		phase:  phase,
		player: player,
		round:  round,
		c1:     c1,
		bought: make([]int, g.players),
		prices: make([][]int, g.players),
		sold:   make([][]int, g.players),
	}
	full, partial := st.priceLayout()

	expected := 4 + g.players + g.players*round + g.players*full + partial
	if len(fields) != expected {
		return nil, &MalformedStateError{Reason: fmt.Sprintf("expected %d fields for marker %q round %d, got %d", expected, fields[3], round, len(fields))}
	}

	next := 4
	parseInt := func(what string) (int, error) {
		v, err := strconv.Atoi(fields[next])
		if err != nil {
			return 0, &MalformedStateError{Reason: fmt.Sprintf("%s %q: %v", what, fields[next], err)}
		}
		next++
		return v, nil
	}

	for i := 0; i < g.players; i++ {
		if st.bought[i], err = parseInt("bought seats"); err != nil {
			return nil, err
		}
	}
	for r := 0; r < round; r++ {
		for i := 0; i < g.players; i++ {
			v, err := parseInt("seats sold")
			if err != nil {
				return nil, err
			}
			st.sold[i] = append(st.sold[i], v)
		}
	}
	for r := 0; r < full; r++ {
		for i := 0; i < g.players; i++ {
			v, err := parseInt("price")
			if err != nil {
				return nil, err
			}
			st.prices[i] = append(st.prices[i], v)
		}
	}
	for i := 0; i < partial; i++ {
		v, err := parseInt("price")
		if err != nil {
			return nil, err
		}
		st.prices[i] = append(st.prices[i], v)
	}

	if err := g.stream.Import(fields[0]); err != nil {
		return nil, &MalformedStateError{Reason: err.Error()}
	}
	return st, nil
}

func (g *Game) parseMarker(marker string, round int) (Phase, int, error) {
	name, actorField, ok := strings.Cut(marker, ":")
	if !ok {
		return 0, 0, &MalformedStateError{Reason: fmt.Sprintf("marker %q missing actor", marker)}
	}
	actor, err := strconv.Atoi(actorField)
	if err != nil {
		return 0, 0, &MalformedStateError{Reason: fmt.Sprintf("marker actor %q: %v", actorField, err)}
	}

	malformed := func(format string, args ...any) (Phase, int, error) {
		return 0, 0, &MalformedStateError{Reason: fmt.Sprintf(format, args...)}
	}
	switch name {
	case InitialConditions.String():
		if actor != ChancePlayer || round != 0 {
			return malformed("marker %q inconsistent with round %d", marker, round)
		}
		return InitialConditions, ChancePlayer, nil
	case SeatBuying.String():
		if actor < 0 || actor >= g.players || round != 0 {
			return malformed("marker %q inconsistent with %d players round %d", marker, g.players, round)
		}
		return SeatBuying, actor, nil
	case PriceSetting.String():
		if actor < 0 || actor >= g.players || round >= MaxRounds {
			return malformed("marker %q inconsistent with %d players round %d", marker, g.players, round)
		}
		return PriceSetting, actor, nil
	case DemandSimulation.String():
		if actor != ChancePlayer || round >= MaxRounds {
			return malformed("marker %q inconsistent with round %d", marker, round)
		}
		return DemandSimulation, ChancePlayer, nil
	case terminalMarker:
		if actor != TerminalPlayer || round != MaxRounds {
			return malformed("marker %q inconsistent with round %d", marker, round)
		}
		return DemandSimulation, TerminalPlayer, nil
	}
	return malformed("unrecognized phase marker %q", marker)
}
