package atmostest

import (
	"testing"

	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/gases"
)

func TestCombustion_PlasmaFireProducesCO2AndHeat(t *testing.T) {
	h := NewHarness(t)
	p := atmos.Pos{X: 0, Y: 0}
	h.Fill(p, map[gases.Species]float64{
		gases.Plasma: 10,
		gases.Oxygen: 30,
	}, 400)

	stats := h.RunCycle()

	air := h.Grid.Tile(p).Air
	if air.Moles[gases.CarbonDioxide] <= 0 {
		t.Fatalf("no CO2 produced: %v", air.Moles)
	}
	if air.Moles[gases.Plasma] >= 10 {
		t.Fatalf("plasma not consumed: %v", air.Moles[gases.Plasma])
	}
	if air.Temperature <= 400 {
		t.Fatalf("temperature did not rise: %v", air.Temperature)
	}
	if stats.Hotspots < 1 {
		t.Fatalf("combustion did not raise a hotspot")
	}
}

func TestReactMixture_ColdMixtureInert(t *testing.T) {
	cat := gases.Builtin()
	m := atmos.NewMixture(atmos.CellVolume)
	m.Moles[gases.Plasma] = 10
	m.Moles[gases.Oxygen] = 30
	m.Temperature = 300 // below ignition

	if released := atmos.ReactMixture(cat, m); released != 0 {
		t.Fatalf("cold mixture released %v J", released)
	}
	if m.Moles[gases.Plasma] != 10 || m.Moles[gases.Oxygen] != 30 {
		t.Fatalf("cold mixture mutated: %v", m.Moles)
	}
}

func TestIgnite_RequiresFuelAndOxidizer(t *testing.T) {
	h := NewHarness(t)
	p := atmos.Pos{X: 0, Y: 0}
	h.FillStandard(p) // no fuel

	h.Grid.Ignite(p, 1000, atmos.CellVolume)
	if stats := h.RunCycle(); stats.Hotspots != 0 {
		t.Fatalf("hotspot raised on fuelless tile")
	}

	h.Fill(p, map[gases.Species]float64{
		gases.Plasma: 5,
		gases.Oxygen: 20,
	}, atmos.T20C)
	h.Grid.Ignite(p, 1000, atmos.CellVolume)
	if stats := h.RunCycle(); stats.Hotspots != 1 {
		t.Fatalf("ignition of fuel+oxidizer tile did not take")
	}
}

func TestHotspot_BurnsOutWhenFuelExhausted(t *testing.T) {
	h := NewHarness(t)
	p := atmos.Pos{X: 0, Y: 0}
	h.Fill(p, map[gases.Species]float64{
		gases.Plasma: 1,
		gases.Oxygen: 50,
	}, 400)
	h.Grid.Ignite(p, 800, atmos.CellVolume)

	burned := false
	for i := 0; i < 1000; i++ {
		if stats := h.RunCycle(); stats.Hotspots == 0 && i > 1 {
			burned = true
			break
		}
	}
	if !burned {
		t.Fatalf("hotspot never extinguished")
	}
	air := h.Grid.Tile(p).Air
	if got := air.Moles[gases.Plasma]; got >= 1 {
		t.Fatalf("fuel not consumed before burnout: %v", got)
	}
	if air.Moles[gases.WaterVapour]+air.Moles[gases.CarbonDioxide] <= 0 {
		t.Fatalf("no combustion products after burnout: %v", air.Moles)
	}
}

func TestFire_PropagatesToAdjacentFuel(t *testing.T) {
	h := NewHarness(t)
	a := atmos.Pos{X: 0, Y: 0}
	b := atmos.Pos{X: 1, Y: 0}
	mix := map[gases.Species]float64{
		gases.Plasma: 20,
		gases.Oxygen: 60,
	}
	// Both tiles fueled; only the first is lit. Heat carried by diffusion
	// and flame spread must set the second alight.
	h.Fill(a, mix, 450)
	h.Fill(b, mix, atmos.T20C)
	h.Grid.Ignite(a, 1200, atmos.CellVolume)

	spread := false
	for i := 0; i < 200; i++ {
		if stats := h.RunCycle(); stats.Hotspots >= 2 {
			spread = true
			break
		}
	}
	if !spread {
		t.Fatalf("fire never reached the second tile")
	}
	if got := h.Grid.Tile(b).Air.Temperature; got <= atmos.T20C {
		t.Fatalf("second tile never heated: %v K", got)
	}
}

func TestFire_SpreadFiresBurnOutAndSettle(t *testing.T) {
	h := NewHarness(t)
	a := atmos.Pos{X: 0, Y: 0}
	b := atmos.Pos{X: 1, Y: 0}
	mix := map[gases.Species]float64{
		gases.Plasma: 5,
		gases.Oxygen: 60,
	}
	h.Fill(a, mix, 450)
	h.Fill(b, mix, 420)
	h.Grid.Ignite(a, 1200, atmos.CellVolume)

	spread := false
	for i := 0; i < 300; i++ {
		if stats := h.RunCycle(); stats.Hotspots >= 2 {
			spread = true
			break
		}
	}
	if !spread {
		t.Fatalf("fire never spread to the second tile")
	}

	// A spread flame lives on the queue like any other: it burns, exhausts
	// its fuel, extinguishes, and the grid drains to idle.
	settled := false
	for i := 0; i < 3000; i++ {
		stats := h.RunCycle()
		if stats.Hotspots == 0 && stats.ActiveTiles == 0 {
			settled = true
			break
		}
	}
	if !settled {
		t.Fatalf("spread fire never burned out")
	}
	if got := h.Grid.Tile(b).Air.Moles[gases.Plasma]; got >= 5 {
		t.Fatalf("second tile's fuel untouched: %v", got)
	}
}
