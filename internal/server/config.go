package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/seatsforbots/seats"
)

// Config is the complete server configuration.
type Config struct {
	Server  Settings      `hcl:"server,block"`
	Matches []MatchConfig `hcl:"match,block"`
}

// Settings contains server-level configuration.
type Settings struct {
	Listen          string `hcl:"listen,optional"`
	DecisionTimeout int    `hcl:"decision_timeout,optional"`
	LogLevel        string `hcl:"log_level,optional"`
	HistoryDir      string `hcl:"history_dir,optional"`
	AuthURL         string `hcl:"auth_url,optional"`
	AuthFailOpen    bool   `hcl:"auth_fail_open,optional"`
}

// MatchConfig defines one match block. Seats not covered by npc blocks are
// filled by connecting bots; the match starts when the last one joins.
type MatchConfig struct {
	Name    string    `hcl:"name,label"`
	Players int       `hcl:"players,optional"`
	Seed    int64     `hcl:"seed,optional"`
	Rematch bool      `hcl:"rematch,optional"`
	NPCs    []NPCSpec `hcl:"npc,block"`
}

// NPCSpec attaches built-in opponents to a match.
type NPCSpec struct {
	Strategy string `hcl:"strategy,label"`
	Count    int    `hcl:"count,optional"`
}

// DefaultConfig returns the configuration used when no file is present:
// one two-seat match against a sticky NPC.
func DefaultConfig() *Config {
	return &Config{
		Server: Settings{
			Listen:          ":8080",
			DecisionTimeout: 30,
			LogLevel:        "info",
		},
		Matches: []MatchConfig{
			{
				Name:    "default",
				Players: seats.DefaultPlayers,
				NPCs:    []NPCSpec{{Strategy: "sticky", Count: 1}},
			},
		},
	}
}

// LoadConfig loads configuration from an HCL file. A missing file yields
// the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.DecisionTimeout == 0 {
		c.Server.DecisionTimeout = 30
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	for i := range c.Matches {
		if c.Matches[i].Players == 0 {
			c.Matches[i].Players = seats.DefaultPlayers
		}
		for j := range c.Matches[i].NPCs {
			if c.Matches[i].NPCs[j].Count == 0 {
				c.Matches[i].NPCs[j].Count = 1
			}
		}
	}
}

// NPCCount returns the number of NPC-filled seats in the match.
func (m *MatchConfig) NPCCount() int {
	total := 0
	for _, spec := range m.NPCs {
		total += spec.Count
	}
	return total
}

// NetworkSeats returns the number of seats reserved for connecting bots.
func (m *MatchConfig) NetworkSeats() int {
	return m.Players - m.NPCCount()
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.DecisionTimeout < 1 {
		return fmt.Errorf("decision timeout must be at least 1 second, got %d", c.Server.DecisionTimeout)
	}

	if len(c.Matches) == 0 {
		return fmt.Errorf("at least one match must be configured")
	}

	seen := make(map[string]bool)
	for _, match := range c.Matches {
		if seen[match.Name] {
			return fmt.Errorf("match %s: duplicate name", match.Name)
		}
		seen[match.Name] = true

		if match.Players < seats.MinPlayers || match.Players > seats.MaxPlayers {
			return fmt.Errorf("match %s: players must be between %d and %d, got %d",
				match.Name, seats.MinPlayers, seats.MaxPlayers, match.Players)
		}
		if match.NPCCount() > match.Players {
			return fmt.Errorf("match %s: %d npc seats exceed %d players",
				match.Name, match.NPCCount(), match.Players)
		}
		for _, spec := range match.NPCs {
			if !knownStrategy(spec.Strategy) {
				return fmt.Errorf("match %s: unknown npc strategy %q", match.Name, spec.Strategy)
			}
		}
	}

	return nil
}
