package atmos

import (
	"math"

	"atmoscape.dev/internal/sim/gases"
)

// Hotspot is an active flame on a tile. It has its own temperature and an
// effective volume inside the tile's cell; each fire stage it exposes the
// tile mixture, reacts it, and may spread to neighbors.
type Hotspot struct {
	Temperature float64
	Volume      float64

	// A hotspot raised mid-cycle skips its first processing pass so ignition
	// and burning never happen in the same cycle.
	skipFirst bool
}

// Ignite requests a hotspot at p from an external ignition source.
func (ga *GridAtmosphere) Ignite(p Pos, temperature, volume float64) {
	t := ga.tiles[p]
	if t == nil {
		return
	}
	ga.exposeHotspot(t, temperature, volume)
}

func (ga *GridAtmosphere) exposeHotspot(t *Tile, temperature, volume float64) {
	if t.Air == nil {
		return
	}
	if t.hotspot != nil {
		h := t.hotspot
		if temperature > h.Temperature {
			h.Temperature = temperature
		}
		if volume > h.Volume {
			h.Volume = volume
		}
		return
	}
	if temperature < FireMinimumTemperatureToExist || volume < MinimumHotspotVolume {
		return
	}
	if !burnable(t.Air) {
		return
	}
	t.hotspot = &Hotspot{Temperature: temperature, Volume: volume, skipFirst: true}
	ga.hotspots = append(ga.hotspots, t)
	ga.AddActiveTile(t)
}

// burnable: fuel and oxidizer both present beyond noise.
func burnable(m *Mixture) bool {
	fuel := m.Moles[gases.Plasma] + m.Moles[gases.Tritium]
	return fuel > GasMinMoles && m.Moles[gases.Oxygen] > GasMinMoles
}

// processHotspots is the fire stage over queued hotspot tiles. Survivors go
// back on the queue; tiles ignited by spread mid-pass land on the fresh
// queue via exposeHotspot and burn next stage pass.
func (ga *GridAtmosphere) processHotspots() {
	queued := ga.hotspots
	ga.hotspots = nil
	for _, t := range queued {
		if ga.processHotspot(t) {
			ga.hotspots = append(ga.hotspots, t)
		}
	}
}

// processHotspot burns one tile. Reports whether the hotspot survives.
func (ga *GridAtmosphere) processHotspot(t *Tile) bool {
	h := t.hotspot
	if h == nil {
		return false
	}
	if t.Air == nil || !burnable(t.Air) || h.Temperature < FireMinimumTemperatureToExist {
		t.hotspot = nil
		return false
	}
	if h.skipFirst {
		h.skipFirst = false
		return true
	}

	// Burn the portion of the cell the flame occupies at flame temperature,
	// then fold it back.
	ratio := math.Min(h.Volume/t.Air.Volume, 1)
	affected := t.Air.RemoveRatio(ga.cat, ratio)
	if affected.TotalMoles() > GasMinMoles {
		affected.Temperature = math.Max(affected.Temperature, h.Temperature)
		released := ReactMixture(ga.cat, affected)
		if released > 0 {
			h.Temperature = affected.Temperature
			h.Volume = math.Min(t.Air.Volume, h.Volume+released/FireGrowthRate)
		} else {
			h.Temperature = affected.Temperature * FireSpreadRadiosityScale
		}
		t.Air.Merge(ga.cat, affected)
	} else {
		t.Air.Merge(ga.cat, affected)
		t.hotspot = nil
		return false
	}

	ga.events.TileChanged(ga.ID, t.Pos)
	ga.AddActiveTile(t)

	// Spread: neighbors hot and rich enough to sustain their own flame.
	if h.Temperature > FireMinimumTemperatureToSpread {
		for d := Direction(0); d < DirectionCount; d++ {
			if !t.PassableTo(d) {
				continue
			}
			n := t.adjacent[d]
			if n.Air == nil || n.hotspot != nil {
				continue
			}
			if n.Air.Temperature > FireMinimumTemperatureToExist && burnable(n.Air) {
				ga.exposeHotspot(n, h.Temperature*FireSpreadRadiosityScale, h.Volume*FireSpreadRadiosityScale)
			}
		}
	}

	if h.Temperature < FireMinimumTemperatureToExist {
		t.hotspot = nil
		return false
	}
	return true
}
