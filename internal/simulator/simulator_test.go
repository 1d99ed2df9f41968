package simulator

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.WarnLevel})
}

func TestNew(t *testing.T) {
	config := Config{
		Games:        100,
		Strategy:     "adaptive",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}

	simulator := New(config)
	if simulator == nil {
		t.Fatal("New() returned nil")
	}
	if simulator.config.Games != 100 {
		t.Errorf("Expected 100 games, got %d", simulator.config.Games)
	}
	if simulator.config.OpponentType != "sticky" {
		t.Errorf("Expected 'sticky' opponent, got %s", simulator.config.OpponentType)
	}
	if simulator.config.Players != 2 {
		t.Errorf("Expected default of 2 players, got %d", simulator.config.Players)
	}
}

func TestRunSimulation_Convenience(t *testing.T) {
	stats, opponentInfo, err := RunSimulation(2, "adaptive", "sticky", 12345, 5*time.Second, testLogger())
	if err != nil {
		t.Fatalf("RunSimulation failed: %v", err)
	}
	if stats == nil {
		t.Fatal("Expected statistics, got nil")
	}
	if opponentInfo != "sticky" {
		t.Errorf("Expected 'sticky' opponent info, got %s", opponentInfo)
	}
	if stats.Games != 4 { // 2 games * 2 (duplicate mode)
		t.Errorf("Expected 4 total games, got %d", stats.Games)
	}
}

func TestSimulator_Run_StickyOpponents(t *testing.T) {
	config := Config{
		Games:        3,
		Strategy:     "undercut",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}

	stats, opponentInfo, err := New(config).Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if opponentInfo != "sticky" {
		t.Errorf("Expected 'sticky' opponent info, got %s", opponentInfo)
	}
	if stats.Games != 6 {
		t.Errorf("Expected 6 total games, got %d", stats.Games)
	}
	if !stats.IsLedgerBalanced() {
		t.Error("Expected balanced ledger")
	}
}

func TestSimulator_Run_MixedOpponents(t *testing.T) {
	config := Config{
		Games:        2,
		Players:      3,
		Strategy:     "adaptive",
		OpponentType: "mixed",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}

	stats, opponentInfo, err := New(config).Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	expectedInfo := "mixed(sticky,undercut)"
	if opponentInfo != expectedInfo {
		t.Errorf("Expected '%s' opponent info, got %s", expectedInfo, opponentInfo)
	}
	if stats.Games != 4 {
		t.Errorf("Expected 4 total games, got %d", stats.Games)
	}
}

func TestSimulator_Run_UnknownStrategy(t *testing.T) {
	config := Config{
		Games:        1,
		Strategy:     "bluff",
		OpponentType: "sticky",
		Seed:         1,
		Logger:       testLogger(),
	}
	if _, _, err := New(config).Run(); err == nil {
		t.Error("Expected unknown strategy to fail")
	}

	config.Strategy = "adaptive"
	config.OpponentType = "bluff"
	if _, _, err := New(config).Run(); err == nil {
		t.Error("Expected unknown opponent strategy to fail")
	}
}

func TestCreateMixedOpponentTypes(t *testing.T) {
	mix := createMixedOpponentTypes(5)
	expected := []string{"sticky", "undercut", "premium", "sticky", "undercut"}

	if len(mix) != len(expected) {
		t.Fatalf("Expected %d opponent types, got %d", len(expected), len(mix))
	}
	for i, expectedType := range expected {
		if mix[i] != expectedType {
			t.Errorf("Expected opponent type %d to be %s, got %s", i, expectedType, mix[i])
		}
	}
}

func TestSimulator_PlayGame_Deterministic(t *testing.T) {
	config := Config{
		Games:        1,
		Strategy:     "adaptive",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}
	simulator := New(config)

	result1, err1 := simulator.playGame(nil, 12345, 1)
	result2, err2 := simulator.playGame(nil, 12345, 1)
	if err1 != nil || err2 != nil {
		t.Fatalf("playGame failed: %v %v", err1, err2)
	}

	if result1.NetPnl != result2.NetPnl {
		t.Errorf("Expected identical NetPnl, got %f vs %f", result1.NetPnl, result2.NetPnl)
	}
	if result1.SeatsSold != result2.SeatsSold {
		t.Errorf("Expected identical SeatsSold, got %d vs %d", result1.SeatsSold, result2.SeatsSold)
	}
	if result1.Seed != result2.Seed {
		t.Errorf("Expected identical Seed, got %d vs %d", result1.Seed, result2.Seed)
	}
}

func TestSimulator_PlayGame_ReportsInventory(t *testing.T) {
	config := Config{
		Games:        1,
		Strategy:     "premium",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}
	simulator := New(config)

	result, err := simulator.playGame(nil, 12345, 0)
	if err != nil {
		t.Fatalf("playGame failed: %v", err)
	}
	if result.SeatsBought != 5 {
		t.Errorf("Expected premium seller to buy 5 seats, got %d", result.SeatsBought)
	}
	if result.PeakRoundSales > result.SeatsSold {
		t.Errorf("Peak round sales %d exceeds total %d", result.PeakRoundSales, result.SeatsSold)
	}
}

func TestSimulator_PlayGameWithTimeout_Success(t *testing.T) {
	config := Config{
		Games:        1,
		Strategy:     "adaptive",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}
	simulator := New(config)

	result, err := simulator.playGameWithTimeout(nil, 12345, 0)
	if err != nil {
		t.Fatalf("playGameWithTimeout failed: %v", err)
	}
	if result.Seed != 12345 {
		t.Errorf("Expected seed 12345, got %d", result.Seed)
	}
}

func TestSimulator_PlayGameWithTimeout_VeryShortTimeout(t *testing.T) {
	config := Config{
		Games:        1,
		Strategy:     "adaptive",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      time.Nanosecond,
		Logger:       testLogger(),
	}
	simulator := New(config)

	_, err := simulator.playGameWithTimeout(nil, 12345, 0)
	if err == nil {
		t.Error("Expected timeout error with very short timeout, got nil")
	}
	if err != nil && !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Expected timeout error, got: %v", err)
	}
}

func TestSimulator_Run_SeatRotation(t *testing.T) {
	config := Config{
		Games:        4,
		Strategy:     "adaptive",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}

	stats, _, err := New(config).Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	// 4 games in duplicate mode is 8 results
	if stats.Games != 8 {
		t.Errorf("Expected 8 total games, got %d", stats.Games)
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Statistics should be valid after Run(), got: %v", err)
	}
}

func TestSimulator_Run_DeterministicAcrossRuns(t *testing.T) {
	config := Config{
		Games:        5,
		Strategy:     "undercut",
		OpponentType: "mixed",
		Seed:         777,
		Timeout:      5 * time.Second,
		Workers:      4,
		Logger:       testLogger(),
	}

	stats1, _, err := New(config).Run()
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	stats2, _, err := New(config).Run()
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	// Worker scheduling must not affect the aggregate results
	if stats1.Mean() != stats2.Mean() {
		t.Errorf("Mean diverged across runs: %f vs %f", stats1.Mean(), stats2.Mean())
	}
	if stats1.Median() != stats2.Median() {
		t.Errorf("Median diverged across runs: %f vs %f", stats1.Median(), stats2.Median())
	}
	if stats1.MaxSeatsSold != stats2.MaxSeatsSold {
		t.Errorf("MaxSeatsSold diverged across runs: %d vs %d", stats1.MaxSeatsSold, stats2.MaxSeatsSold)
	}
}

func TestPrintSummary(t *testing.T) {
	config := Config{
		Games:        2,
		Strategy:     "adaptive",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}

	stats, opponentInfo, err := New(config).Run()
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	// PrintSummary should not panic with valid stats
	PrintSummary(stats, opponentInfo)
	PrintSummary(stats, "mixed(sticky,undercut,premium)")
}

func BenchmarkSimulator_PlayGame(b *testing.B) {
	config := Config{
		Games:        1,
		Strategy:     "adaptive",
		OpponentType: "sticky",
		Seed:         12345,
		Timeout:      5 * time.Second,
		Logger:       testLogger(),
	}
	simulator := New(config)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := simulator.playGame(nil, int64(i), 0); err != nil {
			b.Fatalf("playGame failed: %v", err)
		}
	}
}
