package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lox/seatsforbots/cmd/seatsforbots/shared"
	"github.com/lox/seatsforbots/internal/fileutil"
	"github.com/lox/seatsforbots/internal/seller"
	"github.com/lox/seatsforbots/internal/server"
	"github.com/lox/seatsforbots/sdk/spawner"
	"github.com/lox/seatsforbots/seats"
)

type SpawnCmd struct {
	// Server configuration
	Addr       string `default:"localhost:0" help:"Server address, defaults to a random port on localhost"`
	Match      string `default:"default" help:"Match name"`
	Seed       int64  `help:"Seed for deterministic matches (0 for random)"`
	Timeout    int    `default:"5" help:"Bot decision timeout in seconds"`
	Rematch    bool   `help:"Keep playing matches until interrupted"`
	HistoryDir string `help:"Write match records under this directory"`

	// Field composition
	Spec   string   `default:"undercut:1" help:"Subprocess bots as strategy:count pairs (e.g. undercut:1,adaptive:2)"`
	NPC    []string `help:"In-process sellers as strategy:count (can be repeated)"`
	BotCmd []string `help:"Additional bot command to spawn (can be repeated)"`
	Count  int      `default:"1" help:"Number of each --bot-cmd to spawn"`

	// Stats output
	WriteStats string `help:"Write match stats JSON to this file on exit"`
	PrintStats bool   `help:"Print match stats on exit"`

	LogLevel string `default:"info" help:"Log level (debug|info|warn|error)"`
}

func (c *SpawnCmd) Run() error {
	logger := shared.SetupLogger(c.LogLevel)
	ctx := shared.SetupSignalHandler(logger)

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	botSpecs, err := parseStrategyCounts(c.Spec)
	if err != nil {
		return err
	}

	var npcs []server.NPCSpec
	npcTotal := 0
	for _, entry := range c.NPC {
		parsed, err := parseStrategyCounts(entry)
		if err != nil {
			return err
		}
		for _, sc := range parsed {
			npcs = append(npcs, server.NPCSpec{Strategy: sc.strategy, Count: sc.count})
			npcTotal += sc.count
		}
	}

	botTotal := 0
	for _, sc := range botSpecs {
		botTotal += sc.count
	}
	botTotal += len(c.BotCmd) * c.Count

	if botTotal == 0 {
		return fmt.Errorf("no bots specified (use --spec or --bot-cmd)")
	}

	// Every seat not taken by an NPC is filled by a spawned bot
	players := npcTotal + botTotal
	if players < seats.MinPlayers || players > seats.MaxPlayers {
		return fmt.Errorf("field needs %d-%d sellers, got %d (%d npcs + %d bots)",
			seats.MinPlayers, seats.MaxPlayers, players, npcTotal, botTotal)
	}

	listener, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	wsURL := fmt.Sprintf("ws://%s/ws", listener.Addr())

	cfg := server.Config{
		Server: server.Settings{
			Listen:          listener.Addr().String(),
			DecisionTimeout: c.Timeout,
			LogLevel:        c.LogLevel,
			HistoryDir:      c.HistoryDir,
		},
		Matches: []server.MatchConfig{{
			Name:    c.Match,
			Players: players,
			Seed:    seed,
			Rematch: c.Rematch,
			NPCs:    npcs,
		}},
	}

	srv, err := server.New(logger, cfg)
	if err != nil {
		listener.Close()
		return err
	}
	defer func() { _ = srv.Stop() }()

	hs := &http.Server{Handler: srv.Handler()}
	serverErr := make(chan error, 1)
	go func() {
		if err := hs.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	defer func() { _ = hs.Close() }()

	srv.StartMatches()

	if err := spawner.WaitForServer(wsURL, 5*time.Second); err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}

	logger.Info("Server started",
		"url", wsURL,
		"seed", seed,
		"players", players,
		"npcs", npcTotal)

	bin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}

	specs := make([]spawner.BotSpec, 0, len(botSpecs)+len(c.BotCmd))
	for _, sc := range botSpecs {
		specs = append(specs, spawner.BotSpec{
			Command: bin,
			Args:    []string{"bot", sc.strategy, "--server", wsURL},
			Count:   sc.count,
			Match:   c.Match,
		})
	}
	for _, botCmd := range c.BotCmd {
		parts := strings.Fields(botCmd)
		if len(parts) == 0 {
			continue
		}
		// Custom bots pick up SEATSFORBOTS_SERVER from the spawner env
		specs = append(specs, spawner.BotSpec{
			Command: parts[0],
			Args:    parts[1:],
			Count:   c.Count,
			Match:   c.Match,
		})
	}

	botSpawner := spawner.NewWithSeed(wsURL, logger, seed)
	defer func() { _ = botSpawner.StopAll() }()

	if err := botSpawner.SpawnMany(specs); err != nil {
		return fmt.Errorf("failed to spawn bots: %w", err)
	}
	logger.Info("Bots spawned", "count", botSpawner.ActiveCount())

	// Once a non-rematch match completes the server closes its bot
	// connections, the bots exit, and the waits below all return.
	botsDone := make(chan error, 1)
	go func() {
		var firstErr error
		for _, proc := range botSpawner.Processes() {
			if err := proc.Wait(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("bot %s: %w", proc.ID, err)
			}
		}
		botsDone <- firstErr
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case err := <-botsDone:
		if err != nil {
			return fmt.Errorf("bot failure: %w", err)
		}
		if c.Rematch {
			return fmt.Errorf("bots exited but rematch expected them to keep playing")
		}
		logger.Info("Match complete, all bots exited")
	}

	if c.WriteStats != "" || c.PrintStats {
		stats, err := spawner.CollectStats(wsURL, c.Match)
		if err != nil {
			logger.Error("Failed to collect stats", "error", err)
			return nil
		}
		if c.WriteStats != "" {
			if err := fileutil.WriteJSONAtomic(c.WriteStats, stats, 0644); err != nil {
				logger.Error("Failed to write stats file", "file", c.WriteStats, "error", err)
			} else {
				logger.Info("Stats written", "file", c.WriteStats)
			}
		}
		if c.PrintStats {
			printMatchStats(stats)
		}
	}
	return nil
}

type strategyCount struct {
	strategy string
	count    int
}

// parseStrategyCounts parses a comma-separated list of strategy:count pairs.
func parseStrategyCounts(spec string) ([]strategyCount, error) {
	var out []strategyCount
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, countStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid spec %q (expected strategy:count)", part)
		}
		name = strings.TrimSpace(name)

		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("invalid count for strategy %q in %q", name, part)
		}
		if !knownStrategy(name) {
			return nil, fmt.Errorf("unknown strategy %q (choose from %s)", name, strings.Join(seller.Strategies(), ", "))
		}

		out = append(out, strategyCount{strategy: name, count: count})
	}
	return out, nil
}

func knownStrategy(name string) bool {
	for _, s := range seller.Strategies() {
		if s == name {
			return true
		}
	}
	return false
}

func printMatchStats(stats *spawner.MatchStats) {
	fmt.Printf("\n=== Match Statistics: %s ===\n", stats.Name)
	fmt.Printf("Matches: %d  Rounds: %d\n", stats.Matches, stats.Rounds)
	if len(stats.Seats) == 0 {
		return
	}

	ranked := make([]spawner.SeatStats, len(stats.Seats))
	copy(ranked, stats.Seats)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].MeanReturn > ranked[j].MeanReturn
	})

	fmt.Println("\n=== Rankings ===")
	for i, s := range ranked {
		fmt.Printf("%d. %s: %+.0f total (%.1f/match, %.0f%% wins)",
			i+1, s.Bot, s.TotalReturn, s.MeanReturn, s.WinRate)
		if s.Timeouts > 0 {
			fmt.Printf(" [%d timeouts]", s.Timeouts)
		}
		fmt.Println()
	}
}
