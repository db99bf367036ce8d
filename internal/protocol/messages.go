// Package protocol defines the overlay wire messages: what an external
// overlay client is told about the simulation each tick. The feed carries
// which tiles changed, never full mixture contents.
package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "1.0"

const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeOverlay = "OVERLAY"
)

type BaseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

func DecodeBase(b []byte) (BaseMsg, error) {
	var m BaseMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode base: %w", err)
	}
	if m.Type == "" {
		return m, fmt.Errorf("missing type")
	}
	return m, nil
}

type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	Capabilities    struct {
		MaxQueue int `json:"max_queue,omitempty"`
	} `json:"capabilities"`
}

type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientID        string `json:"client_id"`
	WorldID         string `json:"world_id"`
	TickRateHz      int    `json:"tick_rate_hz"`
	GasDigest       string `json:"gas_digest"`
}

// OverlayMsg is one tick's batch of overlay-visible effects.
type OverlayMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Tick            uint64          `json:"tick"`
	Grids           []GridOverlay   `json:"grids,omitempty"`
	Damage          []DamageEvent   `json:"damage,omitempty"`
	Pressure        []PressureEvent `json:"pressure,omitempty"`
}

type GridOverlay struct {
	GridID string   `json:"grid_id"`
	Tiles  [][2]int `json:"tiles"` // positions whose mixtures changed
}

type DamageEvent struct {
	GridID    string  `json:"grid_id"`
	SubjectID string  `json:"subject_id"`
	Pos       [2]int  `json:"pos"`
	Pressure  float64 `json:"pressure"`
	Delta     float64 `json:"delta"`
	Damage    float64 `json:"damage"`
}

type PressureEvent struct {
	GridID     string  `json:"grid_id"`
	Pos        [2]int  `json:"pos"`
	Direction  string  `json:"direction"`
	Difference float64 `json:"difference"`
}
