package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/seatsforbots/internal/seller"
	"github.com/lox/seatsforbots/internal/statistics"
	"github.com/lox/seatsforbots/seats"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for running simulations
type Config struct {
	Games        int
	Players      int
	Strategy     string // our seller's strategy
	OpponentType string // rival strategy name, or "mixed"
	Seed         int64
	Timeout      time.Duration
	Workers      int // 0 means one per CPU, capped at 8
	Logger       *log.Logger
}

// Simulator runs seat-selling game simulations
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Players == 0 {
		config.Players = seats.DefaultPlayers
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Simulator{config: config}
}

// Run executes the simulation and returns results. Each configured game is
// played twice with our seller in two different seats, so the statistics
// cover 2*Games results.
func (s *Simulator) Run() (*statistics.Statistics, string, error) {
	if err := s.validateStrategies(); err != nil {
		return nil, "", err
	}

	opponentInfo := s.config.OpponentType
	var opponentMix []string
	if s.config.OpponentType == "mixed" {
		opponentMix = createMixedOpponentTypes(s.config.Players - 1)
		opponentInfo = fmt.Sprintf("mixed(%s)", strings.Join(opponentMix, ","))
	}

	workers := s.config.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
		if workers > 8 {
			workers = 8
		}
	}
	if workers > s.config.Games {
		workers = s.config.Games
	}
	if workers < 1 {
		workers = 1
	}

	// Divide games among workers
	gamesPerWorker := s.config.Games / workers
	remainder := s.config.Games % workers

	g, ctx := errgroup.WithContext(context.Background())
	results := make(chan statistics.GameResult, workers)

	start := 0
	for w := 0; w < workers; w++ {
		count := gamesPerWorker
		if w < remainder {
			count++
		}
		workerStart := start
		start += count

		g.Go(func() error {
			for game := workerStart; game < workerStart+count; game++ {
				// Independent seed per game, rotating our seat to
				// cancel draw-order bias
				gameSeed := s.config.Seed + int64(game)
				ourSeat := game % s.config.Players

				result1, err := s.playGameWithTimeout(opponentMix, gameSeed, ourSeat)
				if err != nil {
					return fmt.Errorf("hang detected on game %d: %w", game+1, err)
				}

				// Replay the same market with our seller moved to a
				// different seat
				swappedSeat := 0
				if ourSeat == 0 {
					swappedSeat = 1
				}
				result2, err := s.playGameWithTimeout(opponentMix, gameSeed, swappedSeat)
				if err != nil {
					return fmt.Errorf("hang detected on duplicate game %d: %w", game+1, err)
				}

				for _, result := range []statistics.GameResult{result1, result2} {
					select {
					case results <- result:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			return nil
		})
	}

	go func() {
		defer close(results)
		g.Wait()
	}()

	stats := &statistics.Statistics{}
	for result := range results {
		stats.Add(result)
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	if err := stats.Validate(); err != nil {
		return nil, "", fmt.Errorf("statistics validation failed: %w", err)
	}
	return stats, opponentInfo, nil
}

func (s *Simulator) validateStrategies() error {
	rng := rand.New(rand.NewSource(1))
	if _, err := seller.New(s.config.Strategy, rng, s.config.Logger); err != nil {
		return fmt.Errorf("our strategy: %w", err)
	}
	if s.config.OpponentType == "mixed" {
		return nil
	}
	if _, err := seller.New(s.config.OpponentType, rng, s.config.Logger); err != nil {
		return fmt.Errorf("opponent strategy: %w", err)
	}
	return nil
}

// playGameWithTimeout runs a single game with hang protection
func (s *Simulator) playGameWithTimeout(opponentMix []string, gameSeed int64, ourSeat int) (statistics.GameResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()

	type outcome struct {
		result statistics.GameResult
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		result, err := s.playGame(opponentMix, gameSeed, ourSeat)
		ch <- outcome{result, err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		return statistics.GameResult{}, fmt.Errorf("game timed out after %v (seed: %d, seat: %d)", s.config.Timeout, gameSeed, ourSeat)
	}
}

// playGame simulates a single game and reports it from our seller's seat
func (s *Simulator) playGame(opponentMix []string, gameSeed int64, ourSeat int) (statistics.GameResult, error) {
	gameRng := rand.New(rand.NewSource(gameSeed))

	game, err := seats.NewGame(seats.Config{Players: s.config.Players, Seed: gameSeed})
	if err != nil {
		return statistics.GameResult{}, err
	}

	// Seat agents, ours at ourSeat and opponents everywhere else
	agents := make([]seller.Agent, s.config.Players)
	agents[ourSeat], _ = seller.New(s.config.Strategy, gameRng, s.config.Logger)
	typeIndex := 0
	for i := 0; i < s.config.Players; i++ {
		if i == ourSeat {
			continue
		}
		opponentType := s.config.OpponentType
		if opponentType == "mixed" {
			opponentType = opponentMix[typeIndex]
			typeIndex++
		}
		agents[i], _ = seller.New(opponentType, gameRng, s.config.Logger)
	}

	st := game.NewInitialState()
	for !st.IsTerminal() {
		if st.IsChanceNode() {
			if err := st.Apply(seats.ChanceAction); err != nil {
				return statistics.GameResult{}, fmt.Errorf("chance node failed (seed: %d): %w", gameSeed, err)
			}
			continue
		}
		seat := st.CurrentPlayer()
		decision := agents[seat].Decide(seller.ViewOf(st, seat))
		if err := st.Apply(decision.Action); err != nil {
			return statistics.GameResult{}, fmt.Errorf("agent %s played illegal action %d (seed: %d): %w",
				agents[seat].Name(), decision.Action, gameSeed, err)
		}
	}

	returns := st.Returns()
	sold := st.Sold(ourSeat)
	totalSold := 0
	peak := 0
	for _, units := range sold {
		totalSold += units
		if units > peak {
			peak = units
		}
	}
	bought := st.BoughtSeats(ourSeat)

	return statistics.GameResult{
		NetPnl:         returns[ourSeat],
		Seed:           gameSeed,
		SeatsBought:    bought,
		SeatsSold:      totalSold,
		Oversold:       totalSold > bought,
		PeakRoundSales: peak,
	}, nil
}

// createMixedOpponentTypes returns a fixed mix of opponent types for
// consistent testing, cycling when there are more rivals than entries
func createMixedOpponentTypes(n int) []string {
	base := []string{"sticky", "undercut", "premium"}
	mix := make([]string, n)
	for i := 0; i < n; i++ {
		mix[i] = base[i%len(base)]
	}
	return mix
}

// RunSimulation is a convenience function for running a simulation with basic parameters
func RunSimulation(numGames int, strategy, opponentType string, seed int64, timeout time.Duration, logger *log.Logger) (*statistics.Statistics, string, error) {
	config := Config{
		Games:        numGames,
		Strategy:     strategy,
		OpponentType: opponentType,
		Seed:         seed,
		Timeout:      timeout,
		Logger:       logger,
	}
	return New(config).Run()
}

// PrintSummary prints a comprehensive summary of simulation results
func PrintSummary(stats *statistics.Statistics, opponentInfo string) {
	mean := stats.Mean()
	median := stats.Median()
	stdDev := stats.StdDev()
	stdErr := stats.StdError()
	low, high := stats.ConfidenceInterval95()
	p05 := stats.Percentile(0.05)
	p25 := stats.Percentile(0.25)
	p75 := stats.Percentile(0.75)
	p95 := stats.Percentile(0.95)

	fmt.Printf("\n=== FINAL RESULTS vs %s sellers ===\n", opponentInfo)
	fmt.Printf("Games played: %d\n", stats.Games)

	fmt.Printf("\n=== STATISTICAL RESULTS ===\n")
	fmt.Printf("Mean: %.2f pnl/game\n", mean)
	fmt.Printf("Median: %.2f pnl/game\n", median)
	fmt.Printf("Std Dev: %.2f\n", stdDev)
	fmt.Printf("Std Error: %.2f\n", stdErr)
	fmt.Printf("95%% CI: [%.2f, %.2f] pnl/game\n", low, high)
	fmt.Printf("Percentiles: P5=%.1f, P25=%.1f, P75=%.1f, P95=%.1f\n", p05, p25, p75, p95)

	fmt.Printf("\n=== PROFIT SOURCE ANALYSIS ===\n")
	totalWins := stats.OversoldWins + stats.CoveredWins
	if totalWins > 0 {
		oversoldPct := float64(stats.OversoldWins) / float64(totalWins) * 100
		coveredPct := float64(stats.CoveredWins) / float64(totalWins) * 100
		fmt.Printf("Winning games: %d oversold (%.1f%%), %d covered (%.1f%%)\n",
			stats.OversoldWins, oversoldPct, stats.CoveredWins, coveredPct)
	}
	meanOversold := stats.OversoldPnl / float64(stats.Games)
	meanCovered := stats.CoveredPnl / float64(stats.Games)
	fmt.Printf("Oversold: %.2f pnl/game avg (all games)\n", meanOversold)
	fmt.Printf("Covered: %.2f pnl/game avg (all games)\n", meanCovered)
	fmt.Printf("Sanity check: %.2f + %.2f = %.2f (should equal %.2f)\n",
		meanOversold, meanCovered, meanOversold+meanCovered, mean)

	fmt.Printf("\n=== DEMAND ANALYSIS ===\n")
	fmt.Printf("Max seats sold in one game: %d\n", stats.MaxSeatsSold)
	fmt.Printf("Max seats sold in one round: %d\n", stats.MaxRoundSales)
	fmt.Printf("High-demand games (>=30 sold): %d (%.1f%%), %.2f pnl total\n",
		stats.HighDemandGames, float64(stats.HighDemandGames)/float64(stats.Games)*100, stats.HighDemandPnl)

	fmt.Printf("\n=== INVENTORY ANALYSIS ===\n")
	for bucket := 0; bucket < len(stats.InventoryResults); bucket++ {
		is := stats.InventoryResults[bucket]
		if is.Games > 0 {
			seatsBought := bucket * 5
			fmt.Printf("%d seats: %d games, %.2f pnl/game\n", seatsBought, is.Games, stats.InventoryMean(seatsBought))
		}
	}
}
