// Package spawner manages bot and server subprocesses for match
// orchestration and load testing. Spawned bots receive their server URL,
// match and identity through the environment variables in sdk/config.
package spawner

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/seatsforbots/sdk/config"
)

// BotSpawner manages the lifecycle of spawned processes.
type BotSpawner struct {
	serverURL string
	processes map[string]*Process
	mu        sync.RWMutex
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	seed      int64
	botSeq    int
}

// BotSpec defines a bot to spawn.
type BotSpec struct {
	Command string            // command to execute, e.g. "go"
	Args    []string          // arguments, e.g. ["run", "./cmd/seatsforbots", "bot"]
	Count   int               // number to spawn
	Match   string            // target match block (default "default")
	Env     map[string]string // additional environment variables
}

// New creates a spawner targeting the given server URL.
func New(serverURL string, logger *log.Logger) *BotSpawner {
	ctx, cancel := context.WithCancel(context.Background())
	return &BotSpawner{
		serverURL: serverURL,
		processes: make(map[string]*Process),
		logger:    logger.WithPrefix("spawner"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// NewWithSeed creates a spawner that hands each bot a seed derived from the
// base seed, for deterministic testing.
func NewWithSeed(serverURL string, logger *log.Logger, seed int64) *BotSpawner {
	s := New(serverURL, logger)
	s.seed = seed
	return s
}

// Spawn starts spec.Count bot processes. On any failure the bots spawned so
// far are stopped.
func (s *BotSpawner) Spawn(spec BotSpec) error {
	if spec.Count <= 0 {
		spec.Count = 1
	}
	if spec.Match == "" {
		spec.Match = "default"
	}

	s.logger.Info("spawning bots",
		"command", spec.Command,
		"count", spec.Count,
		"match", spec.Match)

	for i := 0; i < spec.Count; i++ {
		if _, err := s.spawnOne(spec); err != nil {
			s.logger.Error("failed to spawn bot", "index", i, "error", err)
			_ = s.StopAll()
			return fmt.Errorf("failed to spawn bot %d: %w", i, err)
		}
	}
	return nil
}

// SpawnMany spawns multiple bot specs.
func (s *BotSpawner) SpawnMany(specs []BotSpec) error {
	for _, spec := range specs {
		if err := s.Spawn(spec); err != nil {
			return err
		}
	}
	return nil
}

// SpawnBot spawns a single bot and returns its process handle.
func (s *BotSpawner) SpawnBot(spec BotSpec) (*Process, error) {
	if spec.Count > 1 {
		return nil, fmt.Errorf("SpawnBot expects a single bot, got count %d", spec.Count)
	}
	if spec.Match == "" {
		spec.Match = "default"
	}
	return s.spawnOne(spec)
}

func (s *BotSpawner) spawnOne(spec BotSpec) (*Process, error) {
	env, botID := s.buildEnv(spec)

	proc := NewProcess(s.ctx, botID, spec.Command, spec.Args, env, s.logger)
	if err := proc.Start(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.processes[botID] = proc
	s.mu.Unlock()
	return proc, nil
}

// buildEnv assembles the standard bot environment. Entries in spec.Env
// override the generated values, including the bot id.
func (s *BotSpawner) buildEnv(spec BotSpec) (map[string]string, string) {
	s.mu.Lock()
	s.botSeq++
	seq := s.botSeq
	s.mu.Unlock()

	env := map[string]string{
		config.EnvServer: s.serverURL,
		config.EnvMatch:  spec.Match,
		config.EnvBotID:  fmt.Sprintf("bot-%d", seq),
	}
	if s.seed != 0 {
		env[config.EnvSeed] = strconv.FormatInt(s.seed+int64(seq), 10)
	}
	maps.Copy(env, spec.Env)
	return env, env[config.EnvBotID]
}

// StopAll stops every spawned process, gracefully first. The spawner cannot
// spawn again afterwards.
func (s *BotSpawner) StopAll() error {
	s.logger.Info("stopping all processes")

	s.mu.Lock()
	procs := make([]*Process, 0, len(s.processes))
	ids := make([]string, 0, len(s.processes))
	for id, proc := range s.processes {
		procs = append(procs, proc)
		ids = append(ids, id)
	}
	s.processes = make(map[string]*Process)
	s.mu.Unlock()

	var lastErr error
	for i, proc := range procs {
		if err := proc.Stop(); err != nil {
			s.logger.Error("failed to stop process", "id", ids[i], "error", err)
			lastErr = err
		}
	}

	s.cancel()
	return lastErr
}

// Wait blocks until every spawned process has exited.
func (s *BotSpawner) Wait() error {
	s.mu.RLock()
	procs := make([]*Process, 0, len(s.processes))
	for _, proc := range s.processes {
		procs = append(procs, proc)
	}
	s.mu.RUnlock()

	for _, proc := range procs {
		_ = proc.Wait()
	}
	return nil
}

// ActiveCount returns the number of processes still running.
func (s *BotSpawner) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, proc := range s.processes {
		if proc.IsAlive() {
			count++
		}
	}
	return count
}

// GetProcess retrieves a process by its bot id.
func (s *BotSpawner) GetProcess(botID string) (*Process, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proc, ok := s.processes[botID]
	return proc, ok
}

// Processes returns a snapshot of every spawned process.
func (s *BotSpawner) Processes() []*Process {
	s.mu.RLock()
	defer s.mu.RUnlock()

	procs := make([]*Process, 0, len(s.processes))
	for _, proc := range s.processes {
		procs = append(procs, proc)
	}
	return procs
}

// ServerConfig defines a server subprocess.
type ServerConfig struct {
	Command    string   // command to execute (default "go")
	Args       []string // arguments (default ["run", "./cmd/seatsforbots", "serve"])
	Listen     string   // listen address
	ConfigFile string   // HCL configuration path
	LogLevel   string
	Env        map[string]string
}

// SpawnServer starts a seats server as a subprocess, useful for isolating
// runs or testing different server builds.
func (s *BotSpawner) SpawnServer(cfg ServerConfig) (*Process, error) {
	if cfg.Command == "" {
		cfg.Command = "go"
		cfg.Args = []string{"run", "./cmd/seatsforbots", "serve"}
	}

	args := append([]string{}, cfg.Args...)
	if cfg.ConfigFile != "" {
		args = append(args, "--config", cfg.ConfigFile)
	}
	if cfg.Listen != "" {
		args = append(args, "--listen", cfg.Listen)
	}
	if cfg.LogLevel != "" {
		args = append(args, "--log-level", cfg.LogLevel)
	}

	env := make(map[string]string)
	maps.Copy(env, cfg.Env)

	proc := NewProcess(s.ctx, "server", cfg.Command, args, env, s.logger)
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	s.mu.Lock()
	s.processes["server"] = proc
	s.mu.Unlock()

	s.logger.Info("server spawned", "listen", cfg.Listen)
	return proc, nil
}

// WaitForServer polls the server's health endpoint until it answers or the
// timeout elapses.
func WaitForServer(url string, timeout time.Duration) error {
	healthURL := httpBase(url) + "/health"
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := http.Get(healthURL)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %v", timeout)
}

// MatchStats mirrors the per-match aggregates served by the admin endpoint.
type MatchStats struct {
	Name    string      `json:"name"`
	Matches int         `json:"matches"`
	Rounds  int         `json:"rounds"`
	Seats   []SeatStats `json:"seats"`
}

// SeatStats is one bot's aggregate line, ordered best first.
type SeatStats struct {
	Bot         string  `json:"bot"`
	Matches     int     `json:"matches"`
	TotalReturn float64 `json:"total_return"`
	MeanReturn  float64 `json:"mean_return"`
	StdDev      float64 `json:"std_dev"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"win_rate"`
	Timeouts    int     `json:"timeouts"`
	Substituted int     `json:"substituted"`
}

// CollectStats fetches a match block's statistics from the server.
func CollectStats(serverURL, match string) (*MatchStats, error) {
	statsURL := fmt.Sprintf("%s/admin/matches/%s/stats", httpBase(serverURL), match)

	resp, err := http.Get(statsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stats request failed with status %d", resp.StatusCode)
	}

	var stats MatchStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}
	return &stats, nil
}

// httpBase converts a WebSocket URL to its HTTP base.
func httpBase(url string) string {
	base := strings.Replace(url, "ws://", "http://", 1)
	base = strings.Replace(base, "wss://", "https://", 1)
	return strings.TrimSuffix(base, "/ws")
}
