package server

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lox/seatsforbots/internal/auth"
	"github.com/lox/seatsforbots/sdk"
	"github.com/lox/seatsforbots/seats"
)

func testConfig(matches ...MatchConfig) Config {
	return Config{
		Server:  Settings{Listen: ":0", DecisionTimeout: 5},
		Matches: matches,
	}
}

// newTestServer mounts the server on an httptest listener. Lobbies are not
// started; tests that play matches call StartMatches themselves.
func newTestServer(t *testing.T, cfg Config, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()

	opts = append([]Option{WithRand(rand.New(rand.NewSource(42)))}, opts...)
	srv, err := New(testLogger(), cfg, opts...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop()
		ts.Close()
	})
	return srv, ts
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", path, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) *sdk.Message {
	t.Helper()

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg sdk.Message
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return &msg
}

type stubValidator struct {
	identity *auth.Identity
	err      error
}

func (v stubValidator) Validate(ctx context.Context, token string) (*auth.Identity, error) {
	return v.identity, v.err
}

func TestServerHealth(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, testConfig(MatchConfig{Name: "duel", Players: 2}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected OK body, got %q", w.Body.String())
	}
}

func TestMatchStatsEndpoint(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, testConfig(MatchConfig{Name: "duel", Players: 2}))

	resp, err := http.Get(ts.URL + "/admin/matches/duel/stats")
	if err != nil {
		t.Fatalf("Failed to fetch stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var snap MatchStatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if snap.Name != "duel" || snap.Matches != 0 {
		t.Errorf("Unexpected snapshot: %+v", snap)
	}

	for _, path := range []string{
		"/admin/matches/nope/stats",
		"/admin/matches/duel",
		"/admin/matches/duel/stats/extra",
	} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("Failed to fetch %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404 for %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestServerUnknownMatch(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, testConfig(MatchConfig{Name: "duel", Players: 2}))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?match=nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected handshake to fail for unknown match")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %+v", resp)
	}
}

func TestServerRejectsDuplicateBot(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, testConfig(MatchConfig{Name: "duel", Players: 2}))

	ws := dialWS(t, ts, "/ws?bot=dupe&match=duel")
	msg := readMessage(t, ws)
	if msg.Type != sdk.MessageTypeWelcome {
		t.Fatalf("Expected welcome, got %s", msg.Type)
	}
	var welcome sdk.WelcomeData
	if err := json.Unmarshal(msg.Data, &welcome); err != nil {
		t.Fatalf("Failed to decode welcome: %v", err)
	}
	if welcome.BotID != "dupe" || welcome.MatchID != "duel" || welcome.Seat != -1 {
		t.Errorf("Unexpected welcome: %+v", welcome)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?bot=dupe&match=duel"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Expected handshake to fail for duplicate bot name")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %+v", resp)
	}
}

func TestServerAuth(t *testing.T) {
	t.Parallel()

	t.Run("invalid token rejected", func(t *testing.T) {
		cfg := testConfig(MatchConfig{Name: "duel", Players: 2})
		_, ts := newTestServer(t, cfg, WithValidator(stubValidator{err: auth.ErrInvalidToken}))

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?bot=x&match=duel&token=bad"
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatal("Expected handshake to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %+v", resp)
		}
	})

	t.Run("unavailable fails closed", func(t *testing.T) {
		cfg := testConfig(MatchConfig{Name: "duel", Players: 2})
		_, ts := newTestServer(t, cfg, WithValidator(stubValidator{err: auth.ErrUnavailable}))

		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?bot=x&match=duel&token=any"
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatal("Expected handshake to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %+v", resp)
		}
	})

	t.Run("unavailable fails open when configured", func(t *testing.T) {
		cfg := testConfig(MatchConfig{Name: "duel", Players: 2})
		cfg.Server.AuthFailOpen = true
		_, ts := newTestServer(t, cfg, WithValidator(stubValidator{err: auth.ErrUnavailable}))

		ws := dialWS(t, ts, "/ws?bot=x&match=duel&token=any")
		msg := readMessage(t, ws)
		if msg.Type != sdk.MessageTypeWelcome {
			t.Errorf("Expected welcome, got %s", msg.Type)
		}
	})

	t.Run("identity overrides bot id", func(t *testing.T) {
		cfg := testConfig(MatchConfig{Name: "duel", Players: 2})
		validator := stubValidator{identity: &auth.Identity{BotID: "registered-bot", Owner: "team"}}
		_, ts := newTestServer(t, cfg, WithValidator(validator))

		ws := dialWS(t, ts, "/ws?bot=whatever&match=duel&token=good")
		msg := readMessage(t, ws)
		if msg.Type != sdk.MessageTypeWelcome {
			t.Fatalf("Expected welcome, got %s", msg.Type)
		}
		var welcome sdk.WelcomeData
		if err := json.Unmarshal(msg.Data, &welcome); err != nil {
			t.Fatalf("Failed to decode welcome: %v", err)
		}
		if welcome.BotID != "registered-bot" {
			t.Errorf("Expected bot id from identity, got %q", welcome.BotID)
		}
	})
}

func TestServerPlaysMatch(t *testing.T) {
	t.Parallel()
	cfg := testConfig(MatchConfig{
		Name:    "duel",
		Players: 2,
		Seed:    7,
		NPCs:    []NPCSpec{{Strategy: "sticky", Count: 1}},
	})
	srv, ts := newTestServer(t, cfg)
	srv.StartMatches()

	ws := dialWS(t, ts, "/ws?bot=tester&match=duel")
	if msg := readMessage(t, ws); msg.Type != sdk.MessageTypeWelcome {
		t.Fatalf("Expected welcome, got %s", msg.Type)
	}

	var (
		started bool
		rounds  int
		end     sdk.MatchEndData
	)
	for done := false; !done; {
		msg := readMessage(t, ws)
		switch msg.Type {
		case sdk.MessageTypeMatchStart:
			started = true
			var data sdk.MatchStartData
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				t.Fatalf("Failed to decode match start: %v", err)
			}
			if data.YourSeat < 0 || data.YourSeat > 1 {
				t.Errorf("Expected a seat assignment, got %d", data.YourSeat)
			}
			if len(data.Players) != 2 {
				t.Errorf("Expected 2 players, got %d", len(data.Players))
			}

		case sdk.MessageTypeActionRequest:
			var req sdk.ActionRequestData
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				t.Fatalf("Failed to decode action request: %v", err)
			}
			if len(req.LegalActions) == 0 {
				t.Fatal("Expected legal actions in request")
			}
			reply, err := sdk.NewMessage(sdk.MessageTypeAction, sdk.ActionData{
				MatchID: req.MatchID,
				Action:  req.LegalActions[0],
			})
			if err != nil {
				t.Fatalf("Failed to create action: %v", err)
			}
			if err := ws.WriteJSON(reply); err != nil {
				t.Fatalf("Failed to send action: %v", err)
			}

		case sdk.MessageTypeRoundResult:
			rounds++

		case sdk.MessageTypeMatchEnd:
			if err := json.Unmarshal(msg.Data, &end); err != nil {
				t.Fatalf("Failed to decode match end: %v", err)
			}
			done = true
		}
	}

	if !started {
		t.Error("Expected match_start before match_end")
	}
	if rounds != seats.MaxRounds {
		t.Errorf("Expected %d round results, got %d", seats.MaxRounds, rounds)
	}
	if len(end.Standings) != 2 || len(end.Returns) != 2 {
		t.Fatalf("Unexpected match end: %+v", end)
	}

	// Stats are persisted before match_end is sent.
	resp, err := http.Get(ts.URL + "/admin/matches/duel/stats")
	if err != nil {
		t.Fatalf("Failed to fetch stats: %v", err)
	}
	defer resp.Body.Close()
	var snap MatchStatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if snap.Matches != 1 {
		t.Errorf("Expected 1 recorded match, got %d", snap.Matches)
	}
	found := false
	for _, seat := range snap.Seats {
		if seat.Bot == "tester" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected tester in stats, got %+v", snap.Seats)
	}
}

func TestWatcherReceivesBroadcasts(t *testing.T) {
	t.Parallel()
	cfg := testConfig(MatchConfig{
		Name:    "exhibition",
		Players: 2,
		Seed:    11,
		NPCs:    []NPCSpec{{Strategy: "sticky", Count: 2}},
	})
	srv, ts := newTestServer(t, cfg)

	// Connect before the lobby opens so no broadcast is missed; the npc
	// match starts as soon as StartMatches runs.
	ws := dialWS(t, ts, "/watch?match=exhibition")
	if msg := readMessage(t, ws); msg.Type != sdk.MessageTypeWelcome {
		t.Fatalf("Expected welcome, got %s", msg.Type)
	}

	srv.StartMatches()

	msg := readMessage(t, ws)
	if msg.Type != sdk.MessageTypeMatchStart {
		t.Fatalf("Expected match_start, got %s", msg.Type)
	}
	var start sdk.MatchStartData
	if err := json.Unmarshal(msg.Data, &start); err != nil {
		t.Fatalf("Failed to decode match start: %v", err)
	}
	if start.YourSeat != -1 {
		t.Errorf("Expected watcher seat -1, got %d", start.YourSeat)
	}

	rounds := 0
	var end sdk.MatchEndData
	for {
		msg := readMessage(t, ws)
		if msg.Type == sdk.MessageTypeRoundResult {
			rounds++
		}
		if msg.Type == sdk.MessageTypeMatchEnd {
			if err := json.Unmarshal(msg.Data, &end); err != nil {
				t.Fatalf("Failed to decode match end: %v", err)
			}
			break
		}
	}

	if rounds != seats.MaxRounds {
		t.Errorf("Expected %d round results, got %d", seats.MaxRounds, rounds)
	}
	if len(end.Standings) != 2 {
		t.Fatalf("Expected 2 standings, got %d", len(end.Standings))
	}
	for _, standing := range end.Standings {
		if !strings.HasPrefix(standing.Name, "npc-sticky-") {
			t.Errorf("Expected npc name, got %q", standing.Name)
		}
	}
}

func TestWatcherCannotAct(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, testConfig(MatchConfig{Name: "duel", Players: 2}))

	ws := dialWS(t, ts, "/watch?match=duel")
	if msg := readMessage(t, ws); msg.Type != sdk.MessageTypeWelcome {
		t.Fatalf("Expected welcome, got %s", msg.Type)
	}

	msg, err := sdk.NewMessage(sdk.MessageTypeAction, sdk.ActionData{Action: 0})
	if err != nil {
		t.Fatalf("Failed to create action: %v", err)
	}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("Failed to send action: %v", err)
	}

	reply := readMessage(t, ws)
	if reply.Type != sdk.MessageTypeError {
		t.Fatalf("Expected error, got %s", reply.Type)
	}
	var data sdk.ErrorData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if data.Code != "watch_only" {
		t.Errorf("Expected watch_only, got %q", data.Code)
	}
}

func TestStateRequestOutsideMatch(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, testConfig(MatchConfig{Name: "duel", Players: 2}))

	ws := dialWS(t, ts, "/ws?bot=curious&match=duel")
	if msg := readMessage(t, ws); msg.Type != sdk.MessageTypeWelcome {
		t.Fatalf("Expected welcome, got %s", msg.Type)
	}

	msg, err := sdk.NewMessage(sdk.MessageTypeState, struct{}{})
	if err != nil {
		t.Fatalf("Failed to create state request: %v", err)
	}
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("Failed to send state request: %v", err)
	}

	reply := readMessage(t, ws)
	if reply.Type != sdk.MessageTypeError {
		t.Fatalf("Expected error, got %s", reply.Type)
	}
	var data sdk.ErrorData
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		t.Fatalf("Failed to decode error: %v", err)
	}
	if data.Code != "no_match" {
		t.Errorf("Expected no_match, got %q", data.Code)
	}
}
