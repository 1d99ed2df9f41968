package seats

// pnlThrough computes one seller's profit-and-loss over the first rounds
// completed rounds. Sales are simulated independent of inventory: revenue is
// booked at the round's price regardless, and any shortfall is covered at the
// late-purchase premium. Once inventory is exhausted every further sale is
// fully penalized.
func pnlThrough(bought int, prices, sold []int, rounds int) float64 {
	pnl := -float64(bought) * InitialPurchasePrice
	remaining := bought
	for r := 0; r < rounds; r++ {
		units := sold[r]
		pnl += float64(units * prices[r])
		if remaining > 0 {
			remaining -= units
			if remaining < 0 {
				pnl -= float64(-remaining) * LatePurchasePrice
			}
		} else {
			pnl -= float64(units) * LatePurchasePrice
		}
	}
	return pnl
}

// RunningPnl returns each player's profit-and-loss accumulated over the first
// rounds completed rounds. rounds is clamped to the number of rounds actually
// completed. Usable before termination, unlike Returns.
func (s *State) RunningPnl(rounds int) []float64 {
	if rounds < 0 {
		rounds = 0
	}
	if rounds > s.round {
		rounds = s.round
	}
	pnl := make([]float64, s.game.players)
	for i := range pnl {
		pnl[i] = pnlThrough(s.bought[i], s.prices[i], s.sold[i], rounds)
	}
	return pnl
}

// Returns is the terminal valuation: each player's profit-and-loss over all
// rounds. On a non-terminal state it returns the zero vector so that no
// partial credit leaks into terminal valuations.
func (s *State) Returns() []float64 {
	if !s.IsTerminal() {
		return make([]float64, s.game.players)
	}
	return s.RunningPnl(MaxRounds)
}

// Rewards is the per-transition reward signal: the change in running
// profit-and-loss produced by the round that just completed. It is nonzero
// only immediately after a demand step, for every player at once (a demand
// step completes the round for all sellers). Everywhere else, including
// freshly created states, it is the zero vector.
func (s *State) Rewards() []float64 {
	if s.round == 0 {
		return make([]float64, s.game.players)
	}
	justCompleted := s.IsTerminal() || (s.phase == PriceSetting && s.player == 0)
	if !justCompleted {
		return make([]float64, s.game.players)
	}
	after := s.RunningPnl(s.round)
	before := s.RunningPnl(s.round - 1)
	for i := range after {
		after[i] -= before[i]
	}
	return after
}
