package testing

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/lox/seatsforbots/internal/server"
	"github.com/lox/seatsforbots/sdk"
	"github.com/lox/seatsforbots/sdk/spawner"
)

// TestServer runs a match server on a random local port.
type TestServer struct {
	Server *server.Server
	WSURL  string

	hs       *http.Server
	listener net.Listener
}

// StartTestServer boots a server for cfg and waits until its health
// endpoint answers. The server is stopped when the test finishes.
func StartTestServer(t *testing.T, cfg server.Config) *TestServer {
	t.Helper()

	srv, err := server.New(quietLogger(), cfg)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)

	hs := &http.Server{Handler: srv.Handler()}
	go func() { _ = hs.Serve(listener) }()

	srv.StartMatches()

	ts := &TestServer{
		Server:   srv,
		WSURL:    "ws://" + listener.Addr().String() + "/ws",
		hs:       hs,
		listener: listener,
	}
	require.NoError(t, spawner.WaitForServer(ts.WSURL, 5*time.Second))

	t.Cleanup(ts.Stop)
	return ts
}

func (s *TestServer) Stop() {
	_ = s.hs.Close()
	_ = s.Server.Stop()
}

// TestBot runs an sdk bot in the background and reports when its run loop
// exits.
type TestBot struct {
	ID      string
	Handler *scriptedSeller
	Done    chan error
}

// StartBot connects a scripted bot to the server and starts its run loop.
func StartBot(t *testing.T, ts *TestServer, id, match string, handler *scriptedSeller) *TestBot {
	t.Helper()

	bot := sdk.New(id, handler, quietLogger())
	bot.SetMatch(match)

	ctx := context.Background()
	require.NoError(t, bot.Connect(ctx, ts.WSURL))

	tb := &TestBot{ID: id, Handler: handler, Done: make(chan error, 1)}
	go func() { tb.Done <- bot.Run(ctx) }()
	return tb
}

// WaitDone blocks until the bot's run loop exits.
func (b *TestBot) WaitDone(t *testing.T, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-b.Done:
		return err
	case <-time.After(timeout):
		t.Fatalf("bot %s did not finish within %v", b.ID, timeout)
		return nil
	}
}

// scriptedSeller buys a fixed quantity and posts the same price every round,
// so match outcomes depend only on the demand seed.
type scriptedSeller struct {
	buy       int
	price     int
	stopAfter int // stop the run loop after this many match ends (0 = never)

	mu   sync.Mutex
	ends []sdk.MatchEndData
}

func (h *scriptedSeller) matchEnds() []sdk.MatchEndData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sdk.MatchEndData(nil), h.ends...)
}

func (h *scriptedSeller) OnWelcome(*sdk.MatchState, sdk.WelcomeData) error       { return nil }
func (h *scriptedSeller) OnMatchStart(*sdk.MatchState, sdk.MatchStartData) error { return nil }

func (h *scriptedSeller) OnActionRequest(_ *sdk.MatchState, req sdk.ActionRequestData) (int, string, error) {
	if id, ok := sdk.BuyActionFor(req.Menu, h.buy); ok {
		return id, "scripted buy", nil
	}
	if id, ok := sdk.PriceActionFor(req.Menu, h.price); ok {
		return id, "scripted price", nil
	}
	return sdk.DefaultAction(req.LegalActions), "scripted fallback", nil
}

func (h *scriptedSeller) OnRoundResult(*sdk.MatchState, sdk.RoundResultData) error { return nil }

func (h *scriptedSeller) OnMatchEnd(_ *sdk.MatchState, end sdk.MatchEndData) error {
	h.mu.Lock()
	h.ends = append(h.ends, end)
	n := len(h.ends)
	h.mu.Unlock()

	if h.stopAfter > 0 && n >= h.stopAfter {
		return io.EOF
	}
	return nil
}

func (h *scriptedSeller) OnError(*sdk.MatchState, sdk.ErrorData) error { return nil }

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
