// Package atmostest is a small black-box helper for driving a grid
// atmosphere via exported APIs: build tiles, fill air, run whole
// macro-cycles and inspect totals. It intentionally avoids touching grid
// internals so tests can live outside the atmos package.
package atmostest

import (
	"testing"
	"time"

	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/gases"
)

// BigBudget makes ProcessTick complete a macro-cycle in one call.
const BigBudget = time.Hour

type Harness struct {
	T    *testing.T
	Cat  *gases.Catalog
	Grid *atmos.GridAtmosphere

	Events *RecordingSink
}

func NewHarness(t *testing.T) *Harness {
	t.Helper()
	cat := gases.Builtin()
	sink := &RecordingSink{}
	ga := atmos.NewGrid(atmos.Config{
		ID:      "test",
		Catalog: cat,
		Workers: 1,
		Events:  sink,
	})
	return &Harness{T: t, Cat: cat, Grid: ga, Events: sink}
}

// OpenRect ensures an open-air rectangle of tiles, airless but ready to
// receive mixtures.
func (h *Harness) OpenRect(x0, y0, x1, y1 int) {
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			h.Grid.EnsureTile(atmos.Pos{X: x, Y: y})
		}
	}
}

// FillStandard puts one atmosphere of 21/79 oxygen-nitrogen at 20C on the
// tile.
func (h *Harness) FillStandard(p atmos.Pos) {
	h.Fill(p, map[gases.Species]float64{
		gases.Oxygen:   atmos.MolesCellStandard * 0.21,
		gases.Nitrogen: atmos.MolesCellStandard * 0.79,
	}, atmos.T20C)
}

// Fill replaces the tile's mixture.
func (h *Harness) Fill(p atmos.Pos, moles map[gases.Species]float64, temperature float64) {
	h.T.Helper()
	t := h.Grid.EnsureTile(p)
	m := atmos.NewMixture(atmos.CellVolume)
	for s, v := range moles {
		m.Moles[s] = v
	}
	m.Temperature = temperature
	t.Air = m
	h.Grid.InvalidateTile(t)
	h.Grid.AddActiveTile(t)
}

// RunCycle drives ProcessTick until one macro-cycle completes.
func (h *Harness) RunCycle() *atmos.CycleStats {
	h.T.Helper()
	for i := 0; i < 1000; i++ {
		if stats := h.Grid.ProcessTick(BigBudget); stats != nil {
			return stats
		}
	}
	h.T.Fatalf("macro-cycle did not complete in 1000 ticks")
	return nil
}

// RunCycles completes n macro-cycles and returns the last stats.
func (h *Harness) RunCycles(n int) *atmos.CycleStats {
	h.T.Helper()
	var stats *atmos.CycleStats
	for i := 0; i < n; i++ {
		stats = h.RunCycle()
	}
	return stats
}

// TotalMoles sums one species over every tile.
func (h *Harness) TotalMoles(s gases.Species) float64 {
	var sum float64
	h.Grid.ForEachTile(func(t *atmos.Tile) {
		if t.Air != nil {
			sum += t.Air.Moles[s]
		}
	})
	return sum
}

// TotalEnergy sums thermal energy over every tile.
func (h *Harness) TotalEnergy() float64 {
	var sum float64
	h.Grid.ForEachTile(func(t *atmos.Tile) {
		if t.Air != nil {
			sum += t.Air.ThermalEnergy(h.Cat)
		}
	})
	return sum
}

// RecordingSink accumulates engine events for assertions.
type RecordingSink struct {
	Changed     []atmos.Pos
	DamageInstr []atmos.DamageInstruction
	Pressure    []PressureRecord
}

type PressureRecord struct {
	Pos        atmos.Pos
	Dir        atmos.Direction
	Difference float64
}

func (r *RecordingSink) TileChanged(_ string, p atmos.Pos) {
	r.Changed = append(r.Changed, p)
}

func (r *RecordingSink) Damage(_ string, instr atmos.DamageInstruction) {
	r.DamageInstr = append(r.DamageInstr, instr)
}

func (r *RecordingSink) PressureEvent(_ string, p atmos.Pos, dir atmos.Direction, diff float64) {
	r.Pressure = append(r.Pressure, PressureRecord{Pos: p, Dir: dir, Difference: diff})
}

func (r *RecordingSink) Reset() {
	r.Changed = r.Changed[:0]
	r.DamageInstr = r.DamageInstr[:0]
	r.Pressure = r.Pressure[:0]
}
