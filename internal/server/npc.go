package server

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/lox/seatsforbots/internal/seller"
	"github.com/lox/seatsforbots/sdk"
	"github.com/lox/seatsforbots/seats"
)

// resolveStrategy canonicalizes a configured NPC strategy name, accepting a
// few aliases.
func resolveStrategy(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "random", "rand":
		return "random", nil
	case "sticky", "fixed":
		return "sticky", nil
	case "premium", "high":
		return "premium", nil
	case "undercut", "aggressive", "aggro":
		return "undercut", nil
	case "adaptive", "adapt":
		return "adaptive", nil
	}
	return "", fmt.Errorf("unknown npc strategy %q", name)
}

// knownStrategy reports whether name resolves to a seller strategy.
func knownStrategy(name string) bool {
	_, err := resolveStrategy(name)
	return err == nil
}

// npcAgent fills a seat with a house strategy. It decides from the same wire
// view a networked bot receives, so it cannot see rival inventories or the
// market scale.
type npcAgent struct {
	id       string
	strategy seller.Agent
	logger   *log.Logger
}

func newNPCAgent(logger *log.Logger, name string, rng *rand.Rand) (*npcAgent, error) {
	canonical, err := resolveStrategy(name)
	if err != nil {
		return nil, err
	}
	strategy, err := seller.New(canonical, rng, logger)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("npc-%s-%s", canonical, uuid.NewString()[:8])

	return &npcAgent{
		id:       id,
		strategy: strategy,
		logger:   logger.WithPrefix("npc").With("npc_id", id),
	}, nil
}

func (n *npcAgent) ID() string {
	return n.id
}

func (n *npcAgent) RequestAction(ctx context.Context, req sdk.ActionRequestData) (int, string, error) {
	decision := n.strategy.Decide(viewFromRequest(req))
	n.logger.Debug("npc decision",
		"round", req.Round,
		"phase", req.Phase,
		"action", int(decision.Action),
		"reasoning", decision.Reasoning)
	return int(decision.Action), decision.Reasoning, nil
}

// viewFromRequest rebuilds a seller view from the wire payload.
func viewFromRequest(req sdk.ActionRequestData) seller.View {
	legal := make([]seats.Action, len(req.LegalActions))
	for i, a := range req.LegalActions {
		legal[i] = seats.Action(a)
	}
	return seller.View{
		Phase:   parsePhase(req.Phase),
		Round:   req.Round,
		Seat:    req.Seat,
		Players: len(req.View.Prices),
		Bought:  req.View.Bought,
		Prices:  req.View.Prices,
		Sold:    req.View.Sold,
		Legal:   legal,
	}
}

func parsePhase(s string) seats.Phase {
	switch s {
	case seats.SeatBuying.String():
		return seats.SeatBuying
	case seats.PriceSetting.String():
		return seats.PriceSetting
	case seats.DemandSimulation.String():
		return seats.DemandSimulation
	}
	return seats.InitialConditions
}
