package statistics

import (
	"fmt"
	"math"
	"sort"
)

// highDemandSeats is the total-sales threshold above which a game counts as
// a high-demand market.
const highDemandSeats = 30

// GameResult represents the outcome of a single seat-selling game from one
// seller's perspective
type GameResult struct {
	NetPnl         float64 // Final profit and loss for our seller
	Seed           int64   // RNG seed for this game (for replay)
	SeatsBought    int     // Inventory purchased up front (0, 5, 10, 15 or 20)
	SeatsSold      int     // Total seats sold across all rounds
	Oversold       bool    // Sales exceeded inventory at some point
	PeakRoundSales int     // Largest single-round sales count
}

// InventoryStats tracks statistics for one opening-inventory level
type InventoryStats struct {
	Games   int
	SumPnl  float64
	SumPnl2 float64
}

// Statistics tracks comprehensive simulation statistics
type Statistics struct {
	Games   int
	SumPnl  float64
	SumPnl2 float64   // Sum of squares for variance calculation
	Values  []float64 // Store all values for median/percentile calculation

	// Detailed analytics - track ALL results, not just wins
	OversoldWins int     // Profitable games that outsold their inventory
	CoveredWins  int     // Profitable games that stayed within inventory
	OversoldPnl  float64 // Pnl from oversold games (wins AND losses)
	CoveredPnl   float64 // Pnl from covered games (wins AND losses)
	AllPnl       float64 // Total pnl for sanity check

	// Opening inventory analytics, indexed by SeatsBought/5
	InventoryResults [5]InventoryStats

	// Demand analytics
	MaxSeatsSold    int     // Largest total sales observed in one game
	MaxRoundSales   int     // Largest single-round sales observed
	HighDemandGames int     // Games with total sales >= highDemandSeats
	HighDemandPnl   float64 // Pnl from high-demand games
}

// Mean returns the arithmetic mean of all results in pnl per game
func (s *Statistics) Mean() float64 {
	if s.Games == 0 {
		return 0
	}
	return s.SumPnl / float64(s.Games)
}

// Variance returns the sample variance of all results
func (s *Statistics) Variance() float64 {
	if s.Games < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumPnl2 - float64(s.Games)*mean*mean) / float64(s.Games-1)
}

// StdDev returns the sample standard deviation of all results
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Games == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Games))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Add incorporates a new game result into the statistics
func (s *Statistics) Add(result GameResult) {
	pnl := result.NetPnl
	s.Games++
	s.SumPnl += pnl
	s.SumPnl2 += pnl * pnl
	s.Values = append(s.Values, pnl)

	// Track oversold vs covered wins
	if pnl > 0 {
		if result.Oversold {
			s.OversoldWins++
		} else {
			s.CoveredWins++
		}
	}

	// Track ALL results (wins and losses) in the matching bucket
	if result.Oversold {
		s.OversoldPnl += pnl
	} else {
		s.CoveredPnl += pnl
	}
	s.AllPnl += pnl

	// Track by opening inventory
	if result.SeatsBought%5 == 0 {
		bucket := result.SeatsBought / 5
		if bucket >= 0 && bucket < len(s.InventoryResults) {
			s.InventoryResults[bucket].Games++
			s.InventoryResults[bucket].SumPnl += pnl
			s.InventoryResults[bucket].SumPnl2 += pnl * pnl
		}
	}

	// Track demand extremes
	if result.SeatsSold > s.MaxSeatsSold {
		s.MaxSeatsSold = result.SeatsSold
	}
	if result.PeakRoundSales > s.MaxRoundSales {
		s.MaxRoundSales = result.PeakRoundSales
	}
	if result.SeatsSold >= highDemandSeats {
		s.HighDemandGames++
		s.HighDemandPnl += pnl
	}
}

// Median returns the median value of all results
func (s *Statistics) Median() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Percentile returns the value at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// InventoryMean returns the mean result for one opening-inventory level
// (0, 5, 10, 15 or 20 seats)
func (s *Statistics) InventoryMean(seats int) float64 {
	if seats%5 != 0 || seats < 0 || seats/5 >= len(s.InventoryResults) {
		return 0
	}
	is := s.InventoryResults[seats/5]
	if is.Games == 0 {
		return 0
	}
	return is.SumPnl / float64(is.Games)
}

// IsLedgerBalanced checks if the accounting is consistent
func (s *Statistics) IsLedgerBalanced() bool {
	return math.Abs(s.AllPnl-s.OversoldPnl-s.CoveredPnl) <= 1e-6
}

// Validate performs comprehensive validation of statistics data
func (s *Statistics) Validate() error {
	if !s.IsLedgerBalanced() {
		return fmt.Errorf("ledger mismatch: AllPnl=%.6f, OversoldPnl=%.6f, CoveredPnl=%.6f",
			s.AllPnl, s.OversoldPnl, s.CoveredPnl)
	}

	if s.Games <= 0 {
		return fmt.Errorf("invalid games count: %d", s.Games)
	}

	if len(s.Values) != s.Games {
		return fmt.Errorf("values array length (%d) does not match games count (%d)",
			len(s.Values), s.Games)
	}

	totalWins := s.OversoldWins + s.CoveredWins
	if totalWins > s.Games {
		return fmt.Errorf("total wins (%d) exceeds total games (%d)", totalWins, s.Games)
	}

	totalInventoryGames := 0
	for _, is := range s.InventoryResults {
		totalInventoryGames += is.Games
	}
	if totalInventoryGames != s.Games {
		return fmt.Errorf("inventory games total (%d) does not match total games (%d)",
			totalInventoryGames, s.Games)
	}

	return nil
}
