package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/seatsforbots/sdk"
)

// ErrDecisionTimeout is returned when a bot fails to answer an action request
// within the configured window.
var ErrDecisionTimeout = errors.New("decision timeout")

// ErrAgentGone is returned when the agent's connection has dropped.
var ErrAgentGone = errors.New("agent disconnected")

// Agent supplies decisions for one seat of a running match.
type Agent interface {
	ID() string
	RequestAction(ctx context.Context, req sdk.ActionRequestData) (int, string, error)
}

// networkAgent proxies action requests to a remote bot over its WebSocket
// connection and waits for the reply.
type networkAgent struct {
	conn           *Conn
	logger         *log.Logger
	decisionChan   chan sdk.ActionData
	timeoutSeconds int
	clock          quartz.Clock
}

func newNetworkAgent(conn *Conn, logger *log.Logger, timeoutSeconds int, clock quartz.Clock) *networkAgent {
	return &networkAgent{
		conn:           conn,
		logger:         logger.WithPrefix("agent").With("bot", conn.BotID()),
		decisionChan:   make(chan sdk.ActionData, 1),
		timeoutSeconds: timeoutSeconds,
		clock:          clock,
	}
}

func (na *networkAgent) ID() string {
	return na.conn.BotID()
}

// RequestAction sends the request to the remote bot and waits for its reply,
// the timeout, or the connection dropping, whichever comes first.
func (na *networkAgent) RequestAction(ctx context.Context, req sdk.ActionRequestData) (int, string, error) {
	// Drop any reply that arrived after a previous request timed out.
	select {
	case <-na.decisionChan:
	default:
	}

	msg, err := sdk.NewMessage(sdk.MessageTypeActionRequest, req)
	if err != nil {
		return 0, "", fmt.Errorf("encoding action request: %w", err)
	}
	if err := na.conn.SendMessage(msg); err != nil {
		return 0, "", ErrAgentGone
	}

	na.logger.Debug("requested action",
		"round", req.Round,
		"phase", req.Phase,
		"legal", len(req.LegalActions))

	timeoutFired := make(chan struct{})
	timer := na.clock.AfterFunc(time.Duration(na.timeoutSeconds)*time.Second, func() {
		close(timeoutFired)
	})
	defer timer.Stop()

	select {
	case data := <-na.decisionChan:
		na.logger.Debug("received action", "action", data.Action, "reasoning", data.Reasoning)
		return data.Action, data.Reasoning, nil

	case <-timeoutFired:
		na.logger.Warn("action request timed out", "timeout_seconds", na.timeoutSeconds)
		return 0, "", ErrDecisionTimeout

	case <-na.conn.Done():
		return 0, "", ErrAgentGone

	case <-ctx.Done():
		return 0, "", ctx.Err()
	}
}

// HandleAction delivers a bot's reply to the outstanding request.
func (na *networkAgent) HandleAction(data sdk.ActionData) error {
	select {
	case na.decisionChan <- data:
		return nil
	default:
		return fmt.Errorf("no action request outstanding for %s", na.ID())
	}
}
