package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/lox/seatsforbots/sdk"
	"github.com/lox/seatsforbots/seats"
)

// MatchParams configures one play of a match block.
type MatchParams struct {
	Name    string
	Players int
	Seed    int64
	Timeout int
	Agents  []Agent
	Conns   []*Conn // seat-indexed; nil entries are NPC seats
	History HistoryWriter
	Stats   *MatchStats
	Watch   func(*sdk.Message)
}

// MatchRunner plays one match to completion. It resolves chance nodes,
// collects seat decisions through the agents, broadcasts public updates, and
// persists the trace when the match ends.
type MatchRunner struct {
	matchID string
	name    string
	seed    int64
	logger  *log.Logger
	clock   quartz.Clock
	timeout int

	agents  []Agent
	conns   []*Conn
	names   []string
	history HistoryWriter
	stats   *MatchStats
	watch   func(*sdk.Message)

	// mu guards state: Run mutates it, admin and state requests read it.
	mu    sync.RWMutex
	state *seats.State

	actions     []ActionRecord
	timeouts    []int
	substituted []int
}

// NewMatchRunner validates params and deals the initial state.
func NewMatchRunner(logger *log.Logger, clock quartz.Clock, params MatchParams) (*MatchRunner, error) {
	if len(params.Agents) != params.Players {
		return nil, fmt.Errorf("match %s: %d agents for %d seats", params.Name, len(params.Agents), params.Players)
	}
	if len(params.Conns) != params.Players {
		return nil, fmt.Errorf("match %s: %d conns for %d seats", params.Name, len(params.Conns), params.Players)
	}

	game, err := seats.NewGame(seats.Config{Players: params.Players, Seed: params.Seed})
	if err != nil {
		return nil, err
	}

	matchID := uuid.Must(uuid.NewV7()).String()
	names := make([]string, len(params.Agents))
	for seat, agent := range params.Agents {
		names[seat] = agent.ID()
	}

	history := params.History
	if history == nil {
		history = NoopHistoryWriter{}
	}

	return &MatchRunner{
		matchID:     matchID,
		name:        params.Name,
		seed:        params.Seed,
		logger:      logger.WithPrefix("match").With("match_id", matchID),
		clock:       clock,
		timeout:     params.Timeout,
		agents:      params.Agents,
		conns:       params.Conns,
		names:       names,
		history:     history,
		stats:       params.Stats,
		watch:       params.Watch,
		state:       game.NewInitialState(),
		timeouts:    make([]int, params.Players),
		substituted: make([]int, params.Players),
	}, nil
}

// MatchID returns the per-play identifier.
func (r *MatchRunner) MatchID() string {
	return r.matchID
}

// Names returns the seat-ordered player names.
func (r *MatchRunner) Names() []string {
	return append([]string(nil), r.names...)
}

// Run plays the match. It returns early only when ctx is cancelled or the
// engine rejects an action the runner believed legal.
func (r *MatchRunner) Run(ctx context.Context) error {
	start := r.clock.Now()
	st := r.state
	r.logger.Info("match starting", "name", r.name, "players", len(r.agents))

	r.broadcastMatchStart()

	for !st.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if st.IsChanceNode() {
			prevRound := st.Round()
			if err := r.apply(seats.ChanceAction); err != nil {
				return fmt.Errorf("applying chance action: %w", err)
			}
			if st.Round() > prevRound {
				r.broadcastRoundResult(st.Round())
			}
			continue
		}

		seat := st.CurrentPlayer()
		req := actionRequestData(r.matchID, st, seat, r.timeout)
		phase := st.CurrentPhase()

		action, reasoning, substituted, err := r.collectAction(ctx, seat, req)
		if err != nil {
			return err
		}

		label := st.ActionString(action)
		if err := r.apply(action); err != nil {
			return fmt.Errorf("applying action %d for seat %d: %w", int(action), seat, err)
		}

		r.actions = append(r.actions, ActionRecord{
			Seat:        seat,
			Round:       req.Round,
			Phase:       phase.String(),
			Action:      int(action),
			Label:       label,
			Reasoning:   reasoning,
			Substituted: substituted,
		})

		r.logger.Debug("action applied",
			"seat", seat,
			"bot", r.names[seat],
			"round", req.Round,
			"action", label,
			"substituted", substituted)

		if phase == seats.PriceSetting {
			if price, ok := action.Price(); ok {
				r.broadcastPriceSet(seat, req.Round, price)
			}
		}
	}

	// Persist before announcing so anything reacting to match_end sees the
	// record and the stats already in place.
	r.writeHistory(start)
	r.recordStats()
	r.broadcastMatchEnd()

	r.logger.Info("match completed",
		"rounds", st.Round(),
		"returns", st.Returns(),
		"duration", r.clock.Now().Sub(start))
	return nil
}

func (r *MatchRunner) apply(action seats.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Apply(action)
}

// collectAction asks the seat's agent to decide. Timeouts, disconnects and
// illegal replies are substituted with the lowest legal action id so the
// match always finishes. A non-nil error means ctx was cancelled.
func (r *MatchRunner) collectAction(ctx context.Context, seat int, req sdk.ActionRequestData) (seats.Action, string, bool, error) {
	agent := r.agents[seat]
	fallback := seats.Action(req.LegalActions[0])

	id, reasoning, err := agent.RequestAction(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, "", false, err
		}
		switch {
		case errors.Is(err, ErrDecisionTimeout):
			r.timeouts[seat]++
			r.logger.Warn("seat timed out", "seat", seat, "bot", agent.ID(), "fallback", int(fallback))
		case errors.Is(err, ErrAgentGone):
			r.logger.Warn("seat disconnected", "seat", seat, "bot", agent.ID(), "fallback", int(fallback))
		default:
			r.logger.Error("action request failed", "seat", seat, "bot", agent.ID(), "error", err)
		}
		r.substituted[seat]++
		return fallback, "", true, nil
	}

	for _, legal := range req.LegalActions {
		if id == legal {
			return seats.Action(id), reasoning, false, nil
		}
	}

	r.logger.Warn("illegal action", "seat", seat, "bot", agent.ID(), "action", id, "fallback", int(fallback))
	r.errorTo(seat, "illegal_action", fmt.Sprintf("action %d is not legal now", id))
	r.substituted[seat]++
	return fallback, "", true, nil
}

// StateMessage renders seat's private view of the current state as a wire
// message.
func (r *MatchRunner) StateMessage(seat int) (*sdk.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sdk.NewMessage(sdk.MessageTypeState, stateData(r.matchID, r.state, seat))
}

// SeatOf finds the seat a bot occupies.
func (r *MatchRunner) SeatOf(botID string) (int, bool) {
	for seat, agent := range r.agents {
		if agent.ID() == botID {
			return seat, true
		}
	}
	return -1, false
}

// HandleAction routes a bot's reply to its seat's pending request.
func (r *MatchRunner) HandleAction(botID string, data sdk.ActionData) error {
	seat, ok := r.SeatOf(botID)
	if !ok {
		return fmt.Errorf("no seat for bot %s", botID)
	}
	na, ok := r.agents[seat].(*networkAgent)
	if !ok {
		return fmt.Errorf("seat %d is not a network seat", seat)
	}
	return na.HandleAction(data)
}

func (r *MatchRunner) broadcast(msg *sdk.Message) {
	for _, conn := range r.conns {
		if conn == nil {
			continue
		}
		_ = conn.SendMessage(msg)
	}
	if r.watch != nil {
		r.watch(msg)
	}
}

func (r *MatchRunner) broadcastMatchStart() {
	for seat, conn := range r.conns {
		if conn == nil {
			continue
		}
		msg, err := sdk.NewMessage(sdk.MessageTypeMatchStart, matchStartData(r.matchID, r.names, seat))
		if err != nil {
			r.logger.Error("failed to create match start", "error", err)
			return
		}
		_ = conn.SendMessage(msg)
	}
	if r.watch != nil {
		msg, err := sdk.NewMessage(sdk.MessageTypeMatchStart, matchStartData(r.matchID, r.names, -1))
		if err == nil {
			r.watch(msg)
		}
	}
}

func (r *MatchRunner) broadcastPriceSet(seat, round, price int) {
	msg, err := sdk.NewMessage(sdk.MessageTypePriceSet, sdk.PriceSetData{
		MatchID: r.matchID,
		Seat:    seat,
		Round:   round,
		Price:   price,
	})
	if err != nil {
		r.logger.Error("failed to create price set", "error", err)
		return
	}
	r.broadcast(msg)
}

func (r *MatchRunner) broadcastRoundResult(round int) {
	msg, err := sdk.NewMessage(sdk.MessageTypeRoundResult, roundResultData(r.matchID, r.state, round))
	if err != nil {
		r.logger.Error("failed to create round result", "error", err)
		return
	}
	r.broadcast(msg)
}

func (r *MatchRunner) broadcastMatchEnd() {
	msg, err := sdk.NewMessage(sdk.MessageTypeMatchEnd, matchEndData(r.matchID, r.state, r.names))
	if err != nil {
		r.logger.Error("failed to create match end", "error", err)
		return
	}
	r.broadcast(msg)
}

func (r *MatchRunner) errorTo(seat int, code, message string) {
	if conn := r.conns[seat]; conn != nil {
		conn.sendError(code, message)
	}
}

func (r *MatchRunner) writeHistory(start time.Time) {
	st := r.state
	players := make([]PlayerRecord, len(r.agents))
	for seat := range r.agents {
		kind := "bot"
		if r.conns[seat] == nil {
			kind = "npc"
		}
		players[seat] = PlayerRecord{Seat: seat, Name: r.names[seat], Kind: kind}
	}

	rec := &MatchRecord{
		MatchID:   r.matchID,
		Name:      r.name,
		Seed:      r.seed,
		StartedAt: start,
		EndedAt:   r.clock.Now(),
		Players:   players,
		Rounds:    st.Round(),
		Returns:   st.Returns(),
		Actions:   r.actions,
		State:     st.Serialize(),
	}
	if err := r.history.WriteMatch(rec); err != nil {
		r.logger.Error("failed to write match record", "error", err)
	}
}

func (r *MatchRunner) recordStats() {
	if r.stats == nil {
		return
	}

	returns := r.state.Returns()
	best := returns[0]
	for _, ret := range returns[1:] {
		if ret > best {
			best = ret
		}
	}

	results := make([]SeatResult, len(returns))
	for seat, ret := range returns {
		results[seat] = SeatResult{
			Bot:         r.agents[seat].ID(),
			Return:      ret,
			Won:         ret == best,
			Timeouts:    r.timeouts[seat],
			Substituted: r.substituted[seat],
		}
	}
	r.stats.RecordMatch(r.state.Round(), results)
}
