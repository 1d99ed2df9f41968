package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/seatsforbots/internal/fileutil"
)

// MatchRecord is the durable trace of one completed match. The State blob is
// the engine's own serialization, so a record replays exactly.
type MatchRecord struct {
	MatchID   string         `json:"match_id"`
	Name      string         `json:"name"`
	Seed      int64          `json:"seed"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Players   []PlayerRecord `json:"players"`
	Rounds    int            `json:"rounds"`
	Returns   []float64      `json:"returns"`
	Actions   []ActionRecord `json:"actions"`
	State     string         `json:"state"`
}

// PlayerRecord identifies who held a seat.
type PlayerRecord struct {
	Seat int    `json:"seat"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ActionRecord is one seat decision in play order.
type ActionRecord struct {
	Seat        int    `json:"seat"`
	Round       int    `json:"round"`
	Phase       string `json:"phase"`
	Action      int    `json:"action"`
	Label       string `json:"label"`
	Reasoning   string `json:"reasoning,omitempty"`
	Substituted bool   `json:"substituted,omitempty"`
}

// HistoryWriter persists completed matches.
type HistoryWriter interface {
	WriteMatch(rec *MatchRecord) error
}

// FileHistoryWriter writes one JSON file per match under a base directory.
type FileHistoryWriter struct {
	dir    string
	logger *log.Logger
}

// NewFileHistoryWriter creates the base directory if needed.
func NewFileHistoryWriter(dir string, logger *log.Logger) (*FileHistoryWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	return &FileHistoryWriter{
		dir:    dir,
		logger: logger.WithPrefix("history"),
	}, nil
}

func (w *FileHistoryWriter) WriteMatch(rec *MatchRecord) error {
	path := filepath.Join(w.dir, fmt.Sprintf("match-%s.json", rec.MatchID))
	if err := fileutil.WriteJSONAtomic(path, rec, 0644); err != nil {
		return fmt.Errorf("writing match record: %w", err)
	}
	w.logger.Debug("wrote match record", "path", path, "rounds", rec.Rounds)
	return nil
}

// NoopHistoryWriter discards match records.
type NoopHistoryWriter struct{}

func (NoopHistoryWriter) WriteMatch(*MatchRecord) error {
	return nil
}

// LoadMatchRecord reads a match record written by FileHistoryWriter.
func LoadMatchRecord(path string) (*MatchRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading match record: %w", err)
	}
	var rec MatchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing match record %s: %w", path, err)
	}
	return &rec, nil
}
