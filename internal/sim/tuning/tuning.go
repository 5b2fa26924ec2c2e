package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"gridsnake.dev/internal/sim/game"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	GridSize         int    `yaml:"grid_size"`
	TickDurationMs   int    `yaml:"tick_duration_ms"`
	Origin           []int  `yaml:"origin"`
	InitialDirection string `yaml:"initial_direction"`

	Leaderboard Leaderboard `yaml:"leaderboard"`
}

type Leaderboard struct {
	SlotKey     string `yaml:"slot_key"`
	MaxEntries  int    `yaml:"max_entries"`
	DefaultName string `yaml:"default_name"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:  "1.0",
		GridSize:         game.DefaultGridSize,
		TickDurationMs:   300,
		Origin:           []int{game.DefaultOrigin.X, game.DefaultOrigin.Y},
		InitialDirection: game.DefaultDirection.String(),
		Leaderboard: Leaderboard{
			SlotKey:     "snake_leaderboard",
			MaxEntries:  10,
			DefaultName: "Anonymous",
		},
	}
}

// Load reads a tuning file on top of Defaults. Fields missing from the file
// keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickDurationMs <= 0 {
		return fmt.Errorf("tick_duration_ms must be > 0")
	}
	if len(t.Origin) != 2 {
		return fmt.Errorf("origin must be [x, y]")
	}
	if t.Leaderboard.MaxEntries <= 0 {
		return fmt.Errorf("leaderboard.max_entries must be > 0")
	}
	if strings.TrimSpace(t.Leaderboard.SlotKey) == "" {
		return fmt.Errorf("leaderboard.slot_key is empty")
	}
	_, err := t.GameConfig()
	return err
}

// GameConfig converts the tuning into engine rules.
func (t Tuning) GameConfig() (game.Config, error) {
	var cfg game.Config
	if len(t.Origin) != 2 {
		return cfg, fmt.Errorf("origin must be [x, y]")
	}
	dir, err := game.ParseDirection(t.InitialDirection)
	if err != nil {
		return cfg, err
	}
	cfg = game.Config{
		GridSize:         t.GridSize,
		Origin:           game.Position{X: t.Origin[0], Y: t.Origin[1]},
		InitialDirection: dir,
	}
	return cfg, cfg.Validate()
}
