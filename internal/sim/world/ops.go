package world

import (
	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/gases"
)

// EditOp is one externally requested change to the simulation: the
// tile/topology change feed, airtight events, subject registration and
// ignition requests all arrive this way and apply at a tick boundary.
type EditOp struct {
	Kind   EditKind
	GridID string
	Pos    atmos.Pos

	// SetAir
	Moles       [gases.Count]float64
	Temperature float64
	Volume      float64
	Immutable   bool

	// SetBlocked
	Blocked uint8

	// Ignite
	FlameTemperature float64
	FlameVolume      float64

	// Subject ops
	Subject   *atmos.Subject
	SubjectID string
}

type EditKind uint8

const (
	EditSetAir EditKind = iota + 1
	EditClearAir
	EditRemoveTile
	EditSetBlocked
	EditIgnite
	EditAddSubject
	EditRemoveSubject
)

func (w *World) applyEdit(op EditOp) {
	g := w.EnsureGrid(op.GridID)
	ga := g.Atmos
	switch op.Kind {
	case EditSetAir:
		t := ga.EnsureTile(op.Pos)
		vol := op.Volume
		if vol <= 0 {
			vol = atmos.CellVolume
		}
		m := atmos.NewMixture(vol)
		m.Moles = op.Moles
		m.Temperature = op.Temperature
		m.Immutable = op.Immutable
		t.Air = m
		ga.InvalidateTile(t)
	case EditClearAir:
		if t := ga.Tile(op.Pos); t != nil {
			ga.RemoveActiveTile(t, true)
			t.Air = nil
			ga.InvalidateTile(t)
		}
	case EditRemoveTile:
		ga.RemoveTile(op.Pos)
	case EditSetBlocked:
		ga.SetBlocked(op.Pos, op.Blocked)
	case EditIgnite:
		ga.Ignite(op.Pos, op.FlameTemperature, op.FlameVolume)
	case EditAddSubject:
		if op.Subject != nil {
			ga.RegisterSubject(op.Subject)
		}
	case EditRemoveSubject:
		ga.UnregisterSubject(op.SubjectID)
	}
}
