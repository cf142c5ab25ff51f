package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickDurationMs int `yaml:"tick_duration_ms"`

	// Consume-until guards.
	StallIterations   int `yaml:"stall_iterations"`
	NoProgressHorizon int `yaml:"no_progress_horizon_ticks"`
	DriveChunkTicks   int `yaml:"drive_chunk_ticks"`

	// Coupled produce/consume loop.
	BufferMinutes        int     `yaml:"buffer_minutes"`
	InventoryPressurePct float64 `yaml:"inventory_pressure_pct"`

	// Replanning guardrails.
	MaxReplans       int    `yaml:"max_replans"`
	MaxTotalTicks    uint64 `yaml:"max_total_ticks"`
	MaxRecoveryTries int    `yaml:"max_recovery_tries"`
}

// Defaults mirrors tuning.yaml so tests and callers without a config dir get
// the same knobs the shipped file carries.
func Defaults() Tuning {
	return Tuning{
		TickDurationMs:       600,
		StallIterations:      3,
		NoProgressHorizon:    60000, // 10h at 600ms ticks
		DriveChunkTicks:      100,
		BufferMinutes:        5,
		InventoryPressurePct: 0.90,
		MaxReplans:           25,
		MaxTotalTicks:        6_000_000,
		MaxRecoveryTries:     3,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
