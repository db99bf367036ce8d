package atmos

import "math"

// Superconductivity: very hot tiles keep conducting heat to their neighbors
// even through directions the adjacency mask blocks for moles, so a sealed
// burn chamber still cooks the room next door.

const superconductionCoefficient = 0.1

// considerSuperconductivity queues a tile whose temperature crossed the
// conduction-start threshold. Decided during diffusion finalize.
func (ga *GridAtmosphere) considerSuperconductivity(t *Tile) {
	if t.superconducting {
		return
	}
	t.superconducting = true
	ga.superconducting = append(ga.superconducting, t)
}

// superconductionEligible reports whether a hot tile still has a neighbor
// worth conducting to. A uniformly hot region is in equilibrium and must be
// allowed to settle.
func (ga *GridAtmosphere) superconductionEligible(t *Tile) bool {
	if t.Air.Temperature <= MinimumTemperatureStartSuperConduction {
		return false
	}
	for d := Direction(0); d < DirectionCount; d++ {
		n := t.adjacent[d]
		if n == nil || n.Air == nil {
			continue
		}
		if math.Abs(t.Air.Temperature-n.Air.Temperature) > MinimumTemperatureDeltaToConsider {
			return true
		}
	}
	return false
}

// processSuperconductivity is the superconduction stage: conduct against
// every linked neighbor regardless of the blocked mask, and drop tiles that
// cooled below the sustain threshold.
func (ga *GridAtmosphere) processSuperconductivity() {
	kept := ga.superconducting[:0]
	for _, t := range ga.superconducting {
		if t.Air == nil || t.Air.Temperature < MinimumTemperatureForSuperconduction {
			t.superconducting = false
			continue
		}
		conducted := false
		t.Air.Archive()
		for d := Direction(0); d < DirectionCount; d++ {
			n := t.adjacent[d]
			if n == nil || n.Air == nil {
				continue
			}
			if math.Abs(t.Air.Temperature-n.Air.Temperature) <= MinimumTemperatureDeltaToConsider {
				continue
			}
			conducted = true
			n.Air.Archive()
			t.Air.TemperatureShare(ga.cat, n.Air, superconductionCoefficient)
			ga.AddActiveTile(n)
			ga.events.TileChanged(ga.ID, n.Pos)
		}
		if !conducted {
			// Thermal equilibrium with every linked neighbor. Drop out; the next
			// temperature disturbance re-queues the tile from diffusion finalize.
			t.superconducting = false
			continue
		}
		ga.events.TileChanged(ga.ID, t.Pos)
		ga.AddActiveTile(t)
		if t.Air.Temperature < MinimumTemperatureStartSuperConduction {
			t.superconducting = false
			continue
		}
		kept = append(kept, t)
	}
	ga.superconducting = kept
}
