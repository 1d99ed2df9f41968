// Package seats implements the core airline seat-selling game logic.
//
// The game is a turn-based, stochastic market simulation: each seller buys an
// initial seat inventory once, then over ten rounds sets a ticket price and
// receives a randomized, price-sensitive share of total market demand. Selling
// more seats than were bought is allowed but penalized at a late-purchase
// premium. The main types are Game, which owns the configuration and the
// random stream, and State, which holds the value data for one playout.
//
// # Basic Usage
//
// Create a game and walk a state to completion:
//
//	g, _ := seats.NewGame(seats.Config{Players: 2, Seed: 42})
//	st := g.NewInitialState()
//	for !st.IsTerminal() {
//	    actions := st.LegalActions()
//	    if err := st.Apply(actions[0]); err != nil {
//	        // InvalidActionError or ComputationError
//	    }
//	}
//	pnl := st.Returns()
//
// # Determinism
//
// All randomness flows through the game's single Stream. For a fixed seed and
// a fixed action sequence, playouts are bit-for-bit reproducible. The stream
// belongs to the Game, not to any State: cloning a State never duplicates or
// re-draws stream output, and further simulation from a clone consumes new
// draws in whatever order Apply is invoked. To replay a past trajectory
// exactly, capture the stream position alongside the snapshot; Serialize does
// this, and Deserialize restores it.
//
// # Architecture
//
// State delegates to two internal computations:
//   - demand allocation: splits total market demand across sellers by price
//     elasticity with per-seller noise (one uniform draw per seller, in seat
//     order)
//   - accounting: running and terminal profit-and-loss with the late-purchase
//     oversell penalty
//
// Everything is synchronous and free of I/O. Concurrent advancement of
// branching states without serializing stream access is undefined; parallel
// search must export and re-import the stream position per branch.
package seats
