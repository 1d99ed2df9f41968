package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// readPollInterval bounds each blocking read so Run can notice context
// cancellation between messages.
const readPollInterval = 2 * time.Second

// Handler defines the callbacks a bot implements. OnActionRequest returns
// the chosen action id and an optional reasoning string. Returning io.EOF
// from any callback stops the Run loop cleanly.
type Handler interface {
	// OnWelcome is called once the server has assigned the bot a seat
	OnWelcome(state *MatchState, data WelcomeData) error

	// OnMatchStart is called when all seats are filled and play begins
	OnMatchStart(state *MatchState, data MatchStartData) error

	// OnActionRequest is called when the bot must choose an action
	OnActionRequest(state *MatchState, req ActionRequestData) (int, string, error)

	// OnRoundResult is called after each round's demand resolves
	OnRoundResult(state *MatchState, result RoundResultData) error

	// OnMatchEnd is called when the match completes
	OnMatchEnd(state *MatchState, end MatchEndData) error

	// OnError is called when the server reports an error
	OnError(state *MatchState, errData ErrorData) error
}

// MatchState is the bot's view of the match, maintained by the Run loop
// from server messages. Prices and Sold are indexed by seat and grow one
// entry per round; the current round's price row may be partial.
type MatchState struct {
	BotID      string
	MatchID    string
	Seat       int
	Players    []SeatInfo
	Phase      string
	Round      int
	Bought     int
	RunningPnl float64
	Prices     [][]int
	Sold       [][]int
	Returns    []float64
}

// Bot wires a Handler to a server connection and runs the message loop.
type Bot struct {
	id      string
	match   string
	client  *Client
	logger  *log.Logger
	handler Handler
	state   *MatchState
}

// New creates a bot with the given id and handler.
func New(id string, handler Handler, logger *log.Logger) *Bot {
	return &Bot{
		id:      id,
		logger:  logger.With("bot_id", id),
		handler: handler,
		state:   &MatchState{Seat: -1},
	}
}

// SetMatch targets a named match block instead of the server default.
func (b *Bot) SetMatch(match string) {
	b.match = match
}

// ID returns the bot's id.
func (b *Bot) ID() string {
	return b.id
}

// State returns the tracked match state.
func (b *Bot) State() *MatchState {
	return b.state
}

// Connect dials the server and identifies the bot via query parameters.
func (b *Bot) Connect(ctx context.Context, serverURL string) error {
	b.client = NewClient(serverURL, b.logger)

	params := url.Values{}
	params.Set("bot", b.id)
	if b.match != "" {
		params.Set("match", b.match)
	}
	return b.client.Connect(ctx, params)
}

// Run drives the message loop until the context is cancelled, the
// connection closes, or a handler returns io.EOF.
func (b *Bot) Run(ctx context.Context) error {
	if b.client == nil || !b.client.IsConnected() {
		return errors.New("not connected")
	}
	defer func() { _ = b.client.Disconnect() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := b.client.ReadMessage(readPollInterval)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return nil
			}
			return err
		}

		if err := b.handle(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			b.logger.Error("handler error", "type", msg.Type, "error", err)
		}
	}
}

func (b *Bot) handle(msg *Message) error {
	switch msg.Type {
	case MessageTypeWelcome:
		var data WelcomeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("bad welcome payload: %w", err)
		}
		b.state.BotID = data.BotID
		b.state.MatchID = data.MatchID
		b.state.Seat = data.Seat
		return b.handler.OnWelcome(b.state, data)

	case MessageTypeMatchStart:
		var data MatchStartData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("bad match_start payload: %w", err)
		}
		b.state.MatchID = data.MatchID
		if data.YourSeat >= 0 {
			b.state.Seat = data.YourSeat
		}
		b.state.Players = data.Players
		b.state.Round = 0
		b.state.Bought = 0
		b.state.RunningPnl = 0
		b.state.Prices = make([][]int, len(data.Players))
		b.state.Sold = make([][]int, len(data.Players))
		b.state.Returns = nil
		return b.handler.OnMatchStart(b.state, data)

	case MessageTypeActionRequest:
		var req ActionRequestData
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return fmt.Errorf("bad action_request payload: %w", err)
		}
		b.applyView(req.View)

		action, reasoning, err := b.handler.OnActionRequest(b.state, req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return err
			}
			b.logger.Error("OnActionRequest error", "error", err)
			action, reasoning = DefaultAction(req.LegalActions), "handler error fallback"
		}
		if !legalAction(req.LegalActions, action) {
			b.logger.Warn("handler chose illegal action, using default", "action", action)
			action = DefaultAction(req.LegalActions)
		}
		return b.client.SendAction(req.MatchID, action, reasoning)

	case MessageTypePriceSet:
		var data PriceSetData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("bad price_set payload: %w", err)
		}
		b.applyPriceSet(data)
		return nil

	case MessageTypeRoundResult:
		var data RoundResultData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("bad round_result payload: %w", err)
		}
		b.applyRoundResult(data)
		return b.handler.OnRoundResult(b.state, data)

	case MessageTypeMatchEnd:
		var data MatchEndData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("bad match_end payload: %w", err)
		}
		b.state.Returns = data.Returns
		return b.handler.OnMatchEnd(b.state, data)

	case MessageTypeState:
		// Response to a state request; nothing to track.
		return nil

	case MessageTypeError:
		var data ErrorData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return fmt.Errorf("bad error payload: %w", err)
		}
		return b.handler.OnError(b.state, data)
	}

	b.logger.Debug("ignoring unknown message type", "type", msg.Type)
	return nil
}

// applyView replaces the tracked history with the server's authoritative
// view from an action request.
func (b *Bot) applyView(view ViewData) {
	b.state.Phase = view.Phase
	b.state.Round = view.Round
	b.state.Bought = view.Bought
	b.state.RunningPnl = view.RunningPnl
	b.state.Prices = view.Prices
	b.state.Sold = view.Sold
}

func (b *Bot) applyPriceSet(data PriceSetData) {
	if data.Seat < 0 || data.Seat >= len(b.state.Prices) {
		return
	}
	if len(b.state.Prices[data.Seat]) == data.Round {
		b.state.Prices[data.Seat] = append(b.state.Prices[data.Seat], data.Price)
	}
}

// applyRoundResult folds the completed round into the tracked history.
// RunningPnl is left at the last server-reported value; the next action
// request refreshes it.
func (b *Bot) applyRoundResult(data RoundResultData) {
	b.state.Round = data.Round
	for seat := 0; seat < len(data.Prices) && seat < len(b.state.Prices); seat++ {
		if len(b.state.Prices[seat]) == data.Round-1 {
			b.state.Prices[seat] = append(b.state.Prices[seat], data.Prices[seat])
		}
		if len(b.state.Sold[seat]) == data.Round-1 {
			b.state.Sold[seat] = append(b.state.Sold[seat], data.Sold[seat])
		}
	}
}

func legalAction(legal []int, action int) bool {
	for _, id := range legal {
		if id == action {
			return true
		}
	}
	return false
}
