package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures the full atmosphere state of a world: every grid's
// tiles and registered subjects, plus the tuning captured for deterministic
// resume. Pipeline scratch (archives, cursors, work items) is rebuilt on
// load; tiles are revalidated on import.
type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRateHz           int  `json:"tick_rate_hz"`
	SnapshotEveryTicks   int  `json:"snapshot_every_ticks,omitempty"`
	MaxProcessTimeUs     int  `json:"max_process_time_us,omitempty"`
	ExcitedGroupCooldown int  `json:"excited_group_cooldown,omitempty"`
	EqualizationEnabled  bool `json:"equalization_enabled,omitempty"`

	GasDigest string `json:"gas_digest"`

	Grids []GridV1 `json:"grids"`
}

type GridV1 struct {
	ID       string      `json:"id"`
	Tiles    []TileV1    `json:"tiles"`
	Subjects []SubjectV1 `json:"subjects,omitempty"`
}

type TileV1 struct {
	X       int   `json:"x"`
	Y       int   `json:"y"`
	Blocked uint8 `json:"blocked,omitempty"`

	HasAir      bool      `json:"has_air"`
	Moles       []float64 `json:"moles,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Volume      float64   `json:"volume,omitempty"`
	Immutable   bool      `json:"immutable,omitempty"`

	Excited bool `json:"excited,omitempty"`
}

type SubjectV1 struct {
	ID                   string  `json:"id"`
	X                    int     `json:"x"`
	Y                    int     `json:"y"`
	MinPressure          float64 `json:"min_pressure"`
	MinPressureDelta     float64 `json:"min_pressure_delta"`
	MaxEffectivePressure float64 `json:"max_effective_pressure"`
	ScalingMode          uint8   `json:"scaling_mode"`
	ScalingPower         float64 `json:"scaling_power,omitempty"`
	BaseDamage           float64 `json:"base_damage"`
	PermeableDirs        uint8   `json:"permeable_dirs,omitempty"`
	TakingDamage         bool    `json:"taking_damage,omitempty"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is informational; the gob body repeats it.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
