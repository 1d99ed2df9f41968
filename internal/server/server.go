// Package server hosts seat-selling matches over WebSockets. Bots join a
// configured match block, play through the JSON protocol in the sdk package,
// and watchers observe the public broadcast stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lox/seatsforbots/internal/auth"
	"github.com/lox/seatsforbots/sdk"
)

// rematchDelay spaces consecutive plays of a match block.
const rematchDelay = time.Second

// joinBacklog bounds how many bots can queue for a block while a match runs.
const joinBacklog = 16

// Server accepts bot and watcher connections and runs matches.
type Server struct {
	cfg       Config
	upgrader  websocket.Upgrader
	logger    *log.Logger
	clock     quartz.Clock
	rng       *rand.Rand
	validator auth.Validator
	history   HistoryWriter

	mu          sync.RWMutex
	connections map[*Conn]bool
	watchers    map[*Conn]bool

	lobbies map[string]*matchLobby
	stats   map[string]*MatchStats

	ctx        context.Context
	cancel     context.CancelFunc
	httpServer *http.Server
	wg         sync.WaitGroup
}

// matchLobby collects bots for one configured match block and tracks the
// play in progress.
type matchLobby struct {
	cfg    MatchConfig
	joinCh chan *Conn
	rng    *rand.Rand

	mu     sync.RWMutex
	runner *MatchRunner
}

func (l *matchLobby) current() *MatchRunner {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.runner
}

func (l *matchLobby) setRunner(r *MatchRunner) {
	l.mu.Lock()
	l.runner = r
	l.mu.Unlock()
}

// Option customizes a Server.
type Option func(*Server)

// WithClock substitutes the clock used for decision timeouts and timestamps.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithRand seeds seat shuffling and per-play game seeds.
func WithRand(rng *rand.Rand) Option {
	return func(s *Server) { s.rng = rng }
}

// WithHistoryWriter substitutes the match record sink.
func WithHistoryWriter(w HistoryWriter) Option {
	return func(s *Server) { s.history = w }
}

// WithValidator substitutes the connection token validator.
func WithValidator(v auth.Validator) Option {
	return func(s *Server) { s.validator = v }
}

// New builds a server from cfg. Lobbies start with StartMatches or Start.
func New(logger *log.Logger, cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		connections: make(map[*Conn]bool),
		watchers:    make(map[*Conn]bool),
		lobbies:     make(map[string]*matchLobby),
		stats:       make(map[string]*MatchStats),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		s.clock = quartz.NewReal()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.validator == nil {
		if cfg.Server.AuthURL != "" {
			s.validator = auth.NewHTTPValidator(cfg.Server.AuthURL)
		} else {
			s.validator = auth.NewNoopValidator()
		}
	}
	if s.history == nil {
		if cfg.Server.HistoryDir != "" {
			writer, err := NewFileHistoryWriter(cfg.Server.HistoryDir, s.logger)
			if err != nil {
				cancel()
				return nil, err
			}
			s.history = writer
		} else {
			s.history = NoopHistoryWriter{}
		}
	}

	for _, match := range cfg.Matches {
		seed := match.Seed
		if seed == 0 {
			seed = s.rng.Int63()
		}
		s.lobbies[match.Name] = &matchLobby{
			cfg:    match,
			joinCh: make(chan *Conn, joinBacklog),
			rng:    rand.New(rand.NewSource(seed)),
		}
		s.stats[match.Name] = NewMatchStats(match.Name)
	}

	return s, nil
}

// StartMatches launches the lobby loop for every configured match block.
func (s *Server) StartMatches() {
	for name := range s.lobbies {
		lobby := s.lobbies[name]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLobby(lobby)
		}()
	}
}

// Start launches the lobbies and serves HTTP on the configured address. It
// blocks until Stop is called.
func (s *Server) Start() error {
	s.StartMatches()

	s.httpServer = &http.Server{Addr: s.cfg.Server.Listen, Handler: s.Handler()}
	s.logger.Info("starting server", "addr", s.cfg.Server.Listen, "matches", len(s.lobbies))

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down: lobbies stop, connections close, and the HTTP
// listener drains.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.connections)+len(s.watchers))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	for conn := range s.watchers {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(ctx)
	}

	s.wg.Wait()
	return nil
}

// Handler returns the HTTP routes: /ws for bots, /watch for observers,
// /health, and /admin/matches/<name>/stats.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/watch", s.handleWatch)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/admin/matches/", s.handleMatchStats)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	matchName := query.Get("match")
	if matchName == "" {
		matchName = "default"
	}
	lobby, ok := s.lobbies[matchName]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown match %q", matchName), http.StatusNotFound)
		return
	}

	botID := query.Get("bot")
	if botID == "" {
		botID = fmt.Sprintf("bot-%s", uuid.NewString()[:8])
	}

	identity, err := s.validator.Validate(r.Context(), query.Get("token"))
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	case errors.Is(err, auth.ErrUnavailable):
		if !s.cfg.Server.AuthFailOpen {
			http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
			return
		}
		s.logger.Warn("auth unavailable, allowing connection", "bot", botID)
	case err != nil:
		s.logger.Error("auth failed", "bot", botID, "error", err)
		http.Error(w, "auth error", http.StatusInternalServerError)
		return
	}
	if identity != nil && identity.BotID != "" {
		botID = identity.BotID
	}

	if s.botConnected(botID) {
		http.Error(w, fmt.Sprintf("bot %q already connected", botID), http.StatusConflict)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	conn := newConn(ws, s.logger, RoleBot, botID, matchName)
	conn.onMessage = s.dispatch
	conn.onClose = s.removeConn
	s.addConn(conn)
	conn.Start()

	welcome, err := sdk.NewMessage(sdk.MessageTypeWelcome, sdk.WelcomeData{
		BotID:   botID,
		MatchID: matchName,
		Seat:    -1,
		Players: lobby.cfg.Players,
	})
	if err == nil {
		_ = conn.SendMessage(welcome)
	}

	select {
	case lobby.joinCh <- conn:
		s.logger.Info("bot connected", "bot", botID, "match", matchName)
	case <-s.ctx.Done():
		_ = conn.Close()
	default:
		conn.sendError("match_full", "too many bots waiting for this match")
		_ = conn.Close()
	}
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	matchName := r.URL.Query().Get("match")
	if matchName == "" {
		matchName = "default"
	}
	lobby, ok := s.lobbies[matchName]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown match %q", matchName), http.StatusNotFound)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade watcher", "error", err)
		return
	}

	watcherID := fmt.Sprintf("watcher-%s", uuid.NewString()[:8])
	conn := newConn(ws, s.logger, RoleWatcher, watcherID, matchName)
	conn.onMessage = s.dispatch
	conn.onClose = s.removeConn
	s.addConn(conn)
	conn.Start()

	welcome, err := sdk.NewMessage(sdk.MessageTypeWelcome, sdk.WelcomeData{
		BotID:   watcherID,
		MatchID: matchName,
		Seat:    -1,
		Players: lobby.cfg.Players,
	})
	if err == nil {
		_ = conn.SendMessage(welcome)
	}
	s.logger.Info("watcher connected", "watcher", watcherID, "match", matchName)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// handleMatchStats serves /admin/matches/<name>/stats.
func (s *Server) handleMatchStats(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/matches/")
	name, ok := strings.CutSuffix(rest, "/stats")
	if !ok || name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}

	stats, found := s.stats[name]
	if !found {
		http.Error(w, fmt.Sprintf("unknown match %q", name), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats.Snapshot()); err != nil {
		s.logger.Error("failed to encode stats", "error", err)
	}
}

// dispatch routes frames from the read pumps to the right match.
func (s *Server) dispatch(conn *Conn, msg *sdk.Message) {
	if conn.Role() == RoleWatcher {
		conn.sendError("watch_only", "watchers cannot send messages")
		return
	}

	lobby, ok := s.lobbies[conn.MatchName()]
	if !ok {
		conn.sendError("unknown_match", fmt.Sprintf("unknown match %q", conn.MatchName()))
		return
	}

	switch msg.Type {
	case sdk.MessageTypeAction:
		var data sdk.ActionData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			conn.sendError("bad_message", "malformed action payload")
			return
		}
		runner := lobby.current()
		if runner == nil {
			conn.sendError("no_match", "no match in progress")
			return
		}
		if err := runner.HandleAction(conn.BotID(), data); err != nil {
			s.logger.Debug("dropped action", "bot", conn.BotID(), "error", err)
		}

	case sdk.MessageTypeState:
		runner := lobby.current()
		if runner == nil {
			conn.sendError("no_match", "no match in progress")
			return
		}
		seat, seated := runner.SeatOf(conn.BotID())
		if !seated {
			conn.sendError("not_seated", "bot is not seated in the current match")
			return
		}
		reply, err := runner.StateMessage(seat)
		if err != nil {
			s.logger.Error("failed to create state message", "error", err)
			return
		}
		_ = conn.SendMessage(reply)

	default:
		conn.sendError("bad_message", fmt.Sprintf("unsupported message type %q", msg.Type))
	}
}

// runLobby fills seats for one block and plays matches until shutdown.
func (s *Server) runLobby(lobby *matchLobby) {
	needed := lobby.cfg.NetworkSeats()
	logger := s.logger.WithPrefix("lobby").With("match", lobby.cfg.Name)
	logger.Info("lobby open", "players", lobby.cfg.Players, "network_seats", needed, "npcs", lobby.cfg.NPCCount())

	var waiting []*Conn
	for {
		waiting = pruneDead(waiting)
		for len(waiting) < needed {
			select {
			case conn := <-lobby.joinCh:
				waiting = append(waiting, conn)
				logger.Info("bot seated", "bot", conn.BotID(), "waiting", len(waiting), "needed", needed)
			case <-s.ctx.Done():
				return
			}
			waiting = pruneDead(waiting)
		}

		runner, err := s.buildMatch(lobby, waiting)
		if err != nil {
			logger.Error("failed to build match", "error", err)
			return
		}

		lobby.setRunner(runner)
		err = runner.Run(s.ctx)
		lobby.setRunner(nil)
		if err != nil {
			logger.Warn("match aborted", "error", err)
			return
		}

		if !lobby.cfg.Rematch {
			for _, conn := range waiting {
				_ = conn.Close()
			}
			waiting = waiting[:0]
			if needed == 0 {
				logger.Info("npc match complete, closing lobby")
				return
			}
			continue
		}

		s.sleep(rematchDelay)
	}
}

// buildMatch seats the waiting bots and the configured NPCs, shuffles the
// seat order, and creates the runner.
func (s *Server) buildMatch(lobby *matchLobby, bots []*Conn) (*MatchRunner, error) {
	cfg := lobby.cfg
	agents := make([]Agent, 0, cfg.Players)
	conns := make([]*Conn, 0, cfg.Players)

	for _, conn := range bots {
		agents = append(agents, newNetworkAgent(conn, s.logger, s.cfg.Server.DecisionTimeout, s.clock))
		conns = append(conns, conn)
	}
	for _, spec := range cfg.NPCs {
		for i := 0; i < spec.Count; i++ {
			npc, err := newNPCAgent(s.logger, spec.Strategy, rand.New(rand.NewSource(lobby.rng.Int63())))
			if err != nil {
				return nil, err
			}
			agents = append(agents, npc)
			conns = append(conns, nil)
		}
	}

	lobby.rng.Shuffle(len(agents), func(i, j int) {
		agents[i], agents[j] = agents[j], agents[i]
		conns[i], conns[j] = conns[j], conns[i]
	})

	return NewMatchRunner(s.logger, s.clock, MatchParams{
		Name:    cfg.Name,
		Players: cfg.Players,
		Seed:    lobby.rng.Int63(),
		Timeout: s.cfg.Server.DecisionTimeout,
		Agents:  agents,
		Conns:   conns,
		History: s.history,
		Stats:   s.stats[cfg.Name],
		Watch:   s.watchBroadcaster(cfg.Name),
	})
}

// watchBroadcaster fans a message out to every watcher of one block.
func (s *Server) watchBroadcaster(matchName string) func(*sdk.Message) {
	return func(msg *sdk.Message) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for conn := range s.watchers {
			if conn.MatchName() == matchName {
				_ = conn.SendMessage(msg)
			}
		}
	}
}

func (s *Server) addConn(conn *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn.Role() == RoleWatcher {
		s.watchers[conn] = true
	} else {
		s.connections[conn] = true
	}
}

func (s *Server) removeConn(conn *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, conn)
	delete(s.watchers, conn)
}

func (s *Server) botConnected(botID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.connections {
		if conn.BotID() == botID {
			return true
		}
	}
	return false
}

// pruneDead drops connections whose pumps have exited.
func pruneDead(conns []*Conn) []*Conn {
	alive := conns[:0]
	for _, conn := range conns {
		select {
		case <-conn.Done():
		default:
			alive = append(alive, conn)
		}
	}
	return alive
}

// sleep waits for d or shutdown, whichever comes first.
func (s *Server) sleep(d time.Duration) {
	fired := make(chan struct{})
	timer := s.clock.AfterFunc(d, func() { close(fired) })
	defer timer.Stop()

	select {
	case <-fired:
	case <-s.ctx.Done():
	}
}
