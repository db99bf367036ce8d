package pipenet

import (
	"math"

	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/gases"
)

// Device is an atmos machine processed once per device stage.
type Device interface {
	Process(grid *atmos.GridAtmosphere)
}

func (m *Manager) AddDevice(d Device) { m.devices = append(m.devices, d) }

// Vent releases gas from a pipe net into the tile above it until the tile
// reaches the target pressure.
type Vent struct {
	Pos            atmos.Pos
	Pipe           *Pipe
	TargetPressure float64
}

func (v *Vent) Process(grid *atmos.GridAtmosphere) {
	t := grid.Tile(v.Pos)
	if t == nil || t.Air == nil || v.Pipe == nil {
		return
	}
	net := v.Pipe.Net()
	pressureDelta := v.TargetPressure - t.Air.Pressure()
	if pressureDelta <= 0 || net.Air.Temperature <= 0 {
		return
	}
	wanted := pressureDelta * t.Air.Volume / (net.Air.Temperature * atmos.GasConstant)
	if wanted < atmos.GasMinMoles {
		return
	}
	moved := net.Air.Remove(grid.Catalog(), wanted)
	t.Air.Merge(grid.Catalog(), moved)
	grid.AddActiveTile(t)
}

// Scrubber filters the configured species out of the tile's air into the
// pipe net, up to its volume rate per stage.
type Scrubber struct {
	Pos        atmos.Pos
	Pipe       *Pipe
	Filter     [gases.Count]bool
	VolumeRate float64 // L per processing pass
}

func (s *Scrubber) Process(grid *atmos.GridAtmosphere) {
	t := grid.Tile(s.Pos)
	if t == nil || t.Air == nil || s.Pipe == nil {
		return
	}
	air := t.Air
	ratio := math.Min(1, s.VolumeRate/air.Volume)
	// Carry the filtered moles out at the tile's temperature so their
	// thermal energy rides along into the net.
	moved := atmos.NewMixture(air.Volume)
	moved.Temperature = air.Temperature
	for i := range s.Filter {
		if !s.Filter[i] {
			continue
		}
		take := air.Moles[i] * ratio
		if take < atmos.GasMinMoles {
			continue
		}
		air.AdjustMoles(gases.Species(i), -take)
		moved.Moles[i] = take
	}
	if moved.TotalMoles() <= 0 {
		return
	}
	s.Pipe.Net().Air.Merge(grid.Catalog(), moved)
	grid.AddActiveTile(t)
}

// Pump moves gas from an inlet net to an outlet net until the outlet
// reaches the target pressure.
type Pump struct {
	Inlet          *Pipe
	Outlet         *Pipe
	TargetPressure float64
}

// Process converges in a few top-up passes: the moles needed depend on the
// outlet temperature after mixing, so one transfer computed from the inlet
// temperature undershoots whenever the outlet starts colder.
func (p *Pump) Process(grid *atmos.GridAtmosphere) {
	if p.Inlet == nil || p.Outlet == nil {
		return
	}
	in, out := p.Inlet.Net(), p.Outlet.Net()
	if in == out {
		return
	}
	for pass := 0; pass < 4; pass++ {
		pressureDelta := p.TargetPressure - out.Air.Pressure()
		if pressureDelta <= 0 {
			return
		}
		// Sizing against the warmer side keeps each pass at or under the
		// target; the next pass tops up the shortfall.
		refTemp := math.Max(in.Air.Temperature, out.Air.Temperature)
		if refTemp <= 0 {
			return
		}
		wanted := pressureDelta * out.Air.Volume / (refTemp * atmos.GasConstant)
		if wanted < atmos.GasMinMoles {
			return
		}
		moved := in.Air.Remove(grid.Catalog(), wanted)
		out.Air.Merge(grid.Catalog(), moved)
	}
}
