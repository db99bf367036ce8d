package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	// Per-tick atmosphere processing time budget, in microseconds. A grid
	// pipeline that exceeds it yields at the current stage and resumes next
	// tick.
	MaxProcessTimeUs int `yaml:"max_process_time_us"`

	// Solver toggles. When the full-equalization or depressurization solver
	// is active the diffusion pass skips its own high-pressure-delta
	// bookkeeping to avoid double handling.
	EqualizationEnabled     bool `yaml:"equalization_enabled"`
	DepressurizationEnabled bool `yaml:"depressurization_enabled"`

	ExcitedGroupCooldown int `yaml:"excited_group_cooldown"`

	Workers int `yaml:"workers"` // 0 = GOMAXPROCS
}

func (t Tuning) MaxProcessTime() time.Duration {
	return time.Duration(t.MaxProcessTimeUs) * time.Microsecond
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:      "1.0",
		TickRateHz:           2,
		SnapshotEveryTicks:   1200,
		MaxProcessTimeUs:     3000,
		EqualizationEnabled:  false,
		ExcitedGroupCooldown: 5,
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
	if t.TickRateHz <= 0 {
		return t, fmt.Errorf("tuning.yaml: tick_rate_hz must be > 0")
	}
	// A zero budget would make every tick yield before the first stage.
	if t.MaxProcessTimeUs <= 0 {
		return t, fmt.Errorf("tuning.yaml: max_process_time_us must be > 0")
	}
	return t, nil
}
