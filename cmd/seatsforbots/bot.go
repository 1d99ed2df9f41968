package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lox/seatsforbots/cmd/seatsforbots/shared"
	"github.com/lox/seatsforbots/internal/seller"
	"github.com/lox/seatsforbots/sdk"
	sdkconfig "github.com/lox/seatsforbots/sdk/config"
	"github.com/lox/seatsforbots/seats"
)

type BotCmd struct {
	Strategy string `arg:"" optional:"" help:"Strategy to play (random|sticky|premium|undercut|adaptive)"`
	Server   string `help:"WebSocket server URL (overrides SEATSFORBOTS_SERVER)"`
	Match    string `help:"Match to join (overrides SEATSFORBOTS_MATCH)"`
	ID       string `help:"Bot identifier (overrides SEATSFORBOTS_BOT_ID)"`
	Seed     int64  `help:"Seed for deterministic play (0 for random)"`
	LogLevel string `default:"info" help:"Log level (debug|info|warn|error)"`
}

func (c *BotCmd) Run() error {
	logger := shared.SetupLogger(c.LogLevel)

	cfg, err := sdkconfig.FromEnv()
	if err != nil {
		logger.Debug("No environment config", "error", err)
		cfg = &sdkconfig.BotConfig{
			ServerURL: "ws://localhost:8080/ws",
			Match:     "default",
		}
	}

	// Flags win over the environment
	if c.Server != "" {
		cfg.ServerURL = c.Server
	}
	if c.Match != "" {
		cfg.Match = c.Match
	}
	if c.ID != "" {
		cfg.BotID = c.ID
	}
	if c.Seed != 0 {
		cfg.Seed = c.Seed
	}
	if c.Strategy != "" {
		cfg.Strategy = c.Strategy
	}

	if cfg.Strategy == "" {
		return fmt.Errorf("no strategy given, choose one of: %s", strings.Join(seller.Strategies(), ", "))
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	agent, err := seller.New(cfg.Strategy, rng, logger)
	if err != nil {
		return fmt.Errorf("%w (known strategies: %s)", err, strings.Join(seller.Strategies(), ", "))
	}

	botID := cfg.BotID
	if botID == "" {
		botID = fmt.Sprintf("%s-%s", agent.Name(), uuid.NewString()[:8])
	}

	bot := sdk.New(botID, &sellerHandler{agent: agent, logger: logger}, logger)
	bot.SetMatch(cfg.Match)

	ctx := shared.SetupSignalHandler(logger)

	logger.Info("Connecting to server",
		"server", cfg.ServerURL,
		"match", cfg.Match,
		"strategy", agent.Name(),
		"bot_id", botID)

	if err := bot.Connect(ctx, cfg.ServerURL); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// sellerHandler plays a seller strategy over the wire. The same agents run
// in-process as NPCs and offline in the simulator.
type sellerHandler struct {
	agent  seller.Agent
	logger *log.Logger
}

func (h *sellerHandler) OnWelcome(state *sdk.MatchState, data sdk.WelcomeData) error {
	h.logger.Info("Joined match", "match", data.MatchID, "seat", data.Seat)
	return nil
}

func (h *sellerHandler) OnMatchStart(state *sdk.MatchState, data sdk.MatchStartData) error {
	h.logger.Info("Match started",
		"rounds", data.Rounds,
		"players", len(data.Players),
		"initial_price", data.InitialPrice)
	return nil
}

func (h *sellerHandler) OnActionRequest(state *sdk.MatchState, req sdk.ActionRequestData) (int, string, error) {
	view := seller.View{
		Phase:   phaseFromWire(req.Phase),
		Round:   req.Round,
		Seat:    req.Seat,
		Players: len(req.View.Prices),
		Bought:  req.View.Bought,
		Prices:  req.View.Prices,
		Sold:    req.View.Sold,
		Legal:   legalActions(req.LegalActions),
	}

	decision := h.agent.Decide(view)
	return int(decision.Action), decision.Reasoning, nil
}

func (h *sellerHandler) OnRoundResult(state *sdk.MatchState, result sdk.RoundResultData) error {
	h.logger.Debug("Round complete",
		"round", result.Round,
		"total_sold", result.TotalSold)
	return nil
}

func (h *sellerHandler) OnMatchEnd(state *sdk.MatchState, end sdk.MatchEndData) error {
	pnl := 0.0
	if state.Seat >= 0 && state.Seat < len(end.Returns) {
		pnl = end.Returns[state.Seat]
	}
	h.logger.Info("Match finished", "rounds", end.Rounds, "pnl", pnl)
	return nil
}

func (h *sellerHandler) OnError(state *sdk.MatchState, errData sdk.ErrorData) error {
	h.logger.Warn("Server reported error", "code", errData.Code, "message", errData.Message)
	return nil
}

// phaseFromWire maps the wire phase name back to the engine phase. Action
// requests are only issued for the two decision phases.
func phaseFromWire(phase string) seats.Phase {
	if phase == seats.SeatBuying.String() {
		return seats.SeatBuying
	}
	return seats.PriceSetting
}

func legalActions(ids []int) []seats.Action {
	actions := make([]seats.Action, len(ids))
	for i, id := range ids {
		actions[i] = seats.Action(id)
	}
	return actions
}
