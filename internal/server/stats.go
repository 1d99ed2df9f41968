package server

import (
	"math"
	"sort"
	"sync"
)

// SeatResult is one seat's outcome from a completed match.
type SeatResult struct {
	Bot         string
	Return      float64
	Won         bool
	Timeouts    int
	Substituted int
}

// MatchStats accumulates results for a match block across rematches.
type MatchStats struct {
	mu      sync.RWMutex
	name    string
	matches int
	rounds  int
	seats   map[string]*seatStats
}

// seatStats tracks one bot's aggregate performance in a match block.
type seatStats struct {
	matches     int
	sumReturn   float64
	sumReturn2  float64
	wins        int
	timeouts    int
	substituted int
}

// NewMatchStats creates an empty collector for one match block.
func NewMatchStats(name string) *MatchStats {
	return &MatchStats{
		name:  name,
		seats: make(map[string]*seatStats),
	}
}

// RecordMatch folds one completed match into the aggregates.
func (m *MatchStats) RecordMatch(rounds int, results []SeatResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.matches++
	m.rounds += rounds

	for _, r := range results {
		s, ok := m.seats[r.Bot]
		if !ok {
			s = &seatStats{}
			m.seats[r.Bot] = s
		}
		s.matches++
		s.sumReturn += r.Return
		s.sumReturn2 += r.Return * r.Return
		if r.Won {
			s.wins++
		}
		s.timeouts += r.Timeouts
		s.substituted += r.Substituted
	}
}

// MatchStatsSnapshot is the admin view of a match block.
type MatchStatsSnapshot struct {
	Name    string              `json:"name"`
	Matches int                 `json:"matches"`
	Rounds  int                 `json:"rounds"`
	Seats   []SeatStatsSnapshot `json:"seats"`
}

// SeatStatsSnapshot summarizes one bot, ordered by total return.
type SeatStatsSnapshot struct {
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

// Snapshot returns a copy safe to serve while matches keep running.
func (m *MatchStats) Snapshot() MatchStatsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MatchStatsSnapshot{
		Name:    m.name,
		Matches: m.matches,
		Rounds:  m.rounds,
		Seats:   make([]SeatStatsSnapshot, 0, len(m.seats)),
	}

	for bot, s := range m.seats {
		seat := SeatStatsSnapshot{
			Bot:         bot,
			Matches:     s.matches,
			TotalReturn: s.sumReturn,
			Wins:        s.wins,
			Timeouts:    s.timeouts,
			Substituted: s.substituted,
		}
		if s.matches > 0 {
			seat.MeanReturn = s.sumReturn / float64(s.matches)
			seat.WinRate = float64(s.wins) / float64(s.matches) * 100
			variance := s.sumReturn2/float64(s.matches) - seat.MeanReturn*seat.MeanReturn
			if variance > 0 {
				seat.StdDev = math.Sqrt(variance)
			}
		}
		snap.Seats = append(snap.Seats, seat)
	}

	sort.Slice(snap.Seats, func(i, j int) bool {
		if snap.Seats[i].TotalReturn != snap.Seats[j].TotalReturn {
			return snap.Seats[i].TotalReturn > snap.Seats[j].TotalReturn
		}
		return snap.Seats[i].Bot < snap.Seats[j].Bot
	})

	return snap
}
