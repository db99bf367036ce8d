package pipenet_test

import (
	"math"
	"testing"

	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/atmos/atmostest"
	"atmoscape.dev/internal/sim/gases"
	"atmoscape.dev/internal/sim/pipenet"
)

const (
	east = uint8(1) << atmos.East
	west = uint8(1) << atmos.West
)

func TestAddPipe_MergesConnectedSegments(t *testing.T) {
	h := atmostest.NewHarness(t)
	m := pipenet.NewManager(h.Grid)

	p0, err := m.AddPipe(atmos.Pos{X: 0, Y: 0}, east)
	if err != nil {
		t.Fatalf("AddPipe: %v", err)
	}
	p1, _ := m.AddPipe(atmos.Pos{X: 1, Y: 0}, east|west)
	p2, _ := m.AddPipe(atmos.Pos{X: 2, Y: 0}, west)

	if p0.Net() != p1.Net() || p1.Net() != p2.Net() {
		t.Fatalf("connected segments did not merge")
	}
	if p0.Net().Size() != 3 {
		t.Fatalf("net size = %d, want 3", p0.Net().Size())
	}

	// Facing the pipe but not facing back: stays its own net.
	lone, _ := m.AddPipe(atmos.Pos{X: 3, Y: 0}, east)
	if lone.Net() == p0.Net() {
		t.Fatalf("one-sided connection merged nets")
	}

	if _, err := m.AddPipe(atmos.Pos{X: 0, Y: 0}, east); err == nil {
		t.Fatalf("duplicate placement accepted")
	}
}

func TestAddPipe_MergePoolsGasAndVolume(t *testing.T) {
	h := atmostest.NewHarness(t)
	m := pipenet.NewManager(h.Grid)

	p0, _ := m.AddPipe(atmos.Pos{X: 0, Y: 0}, east)
	p0.Net().Air.AdjustMoles(gases.Oxygen, 30)
	p0.Net().Air.Temperature = atmos.T20C

	p1, _ := m.AddPipe(atmos.Pos{X: 1, Y: 0}, west)
	net := p1.Net()
	if net != p0.Net() {
		t.Fatalf("segments did not merge")
	}
	if got := net.Air.Moles[gases.Oxygen]; got != 30 {
		t.Fatalf("pooled oxygen = %v, want 30", got)
	}
	if got := net.Air.Volume; got != 2*pipenet.PipeVolume {
		t.Fatalf("pooled volume = %v, want %v", got, 2*pipenet.PipeVolume)
	}
}

func TestRemovePipe_VentsShareAndSplitsNet(t *testing.T) {
	h := atmostest.NewHarness(t)
	m := pipenet.NewManager(h.Grid)
	h.FillStandard(atmos.Pos{X: 1, Y: 0})

	p0, _ := m.AddPipe(atmos.Pos{X: 0, Y: 0}, east)
	mid, _ := m.AddPipe(atmos.Pos{X: 1, Y: 0}, east|west)
	p2, _ := m.AddPipe(atmos.Pos{X: 2, Y: 0}, west)

	net := mid.Net()
	net.Air.AdjustMoles(gases.CarbonDioxide, 30)
	net.Air.Temperature = atmos.T20C

	before := h.TotalMoles(gases.CarbonDioxide)
	m.RemovePipe(atmos.Pos{X: 1, Y: 0})

	// The removed segment's even share lands on its tile.
	if got := h.TotalMoles(gases.CarbonDioxide) - before; math.Abs(got-10) > 1e-9 {
		t.Fatalf("vented %v moles, want 10", got)
	}

	// The cut disconnects the ends into separate nets, splitting the rest.
	if p0.Net() == p2.Net() {
		t.Fatalf("disconnected ends share a net")
	}
	for _, p := range []*pipenet.Pipe{p0, p2} {
		if got := p.Net().Air.Moles[gases.CarbonDioxide]; math.Abs(got-10) > 1e-9 {
			t.Fatalf("split share = %v, want 10", got)
		}
		if got := p.Net().Air.Volume; got != pipenet.PipeVolume {
			t.Fatalf("split volume = %v, want %v", got, pipenet.PipeVolume)
		}
	}
}

func TestVent_FillsTileToTargetPressure(t *testing.T) {
	h := atmostest.NewHarness(t)
	m := pipenet.NewManager(h.Grid)
	pos := atmos.Pos{X: 0, Y: 0}
	h.Fill(pos, map[gases.Species]float64{gases.Nitrogen: 1}, atmos.T20C)

	pipe, _ := m.AddPipe(pos, 0)
	pipe.Net().Air.AdjustMoles(gases.Oxygen, 500)
	pipe.Net().Air.Temperature = atmos.T20C
	m.AddDevice(&pipenet.Vent{Pos: pos, Pipe: pipe, TargetPressure: atmos.OneAtmosphere})

	h.RunCycle()

	air := h.Grid.Tile(pos).Air
	if got := air.Pressure(); math.Abs(got-atmos.OneAtmosphere) > 1e-6 {
		t.Fatalf("tile pressure = %v, want %v", got, atmos.OneAtmosphere)
	}

	// At target, further passes move nothing.
	netMoles := pipe.Net().Air.TotalMoles()
	h.RunCycle()
	if got := pipe.Net().Air.TotalMoles(); got != netMoles {
		t.Fatalf("vent kept pushing past target: %v -> %v", netMoles, got)
	}
}

func TestScrubber_FiltersSpeciesIntoNet(t *testing.T) {
	h := atmostest.NewHarness(t)
	m := pipenet.NewManager(h.Grid)
	pos := atmos.Pos{X: 0, Y: 0}
	h.Fill(pos, map[gases.Species]float64{
		gases.Oxygen:        21,
		gases.CarbonDioxide: 4,
	}, atmos.T20C)

	pipe, _ := m.AddPipe(pos, 0)
	var filter [gases.Count]bool
	filter[gases.CarbonDioxide] = true
	m.AddDevice(&pipenet.Scrubber{Pos: pos, Pipe: pipe, Filter: filter, VolumeRate: atmos.CellVolume})

	h.RunCycle()

	air := h.Grid.Tile(pos).Air
	if got := air.Moles[gases.CarbonDioxide]; got != 0 {
		t.Fatalf("CO2 left on tile: %v", got)
	}
	if got := air.Moles[gases.Oxygen]; got != 21 {
		t.Fatalf("unfiltered species touched: %v", got)
	}
	if got := pipe.Net().Air.Moles[gases.CarbonDioxide]; got != 4 {
		t.Fatalf("net CO2 = %v, want 4", got)
	}
}

func TestScrubber_CarriesThermalEnergy(t *testing.T) {
	h := atmostest.NewHarness(t)
	m := pipenet.NewManager(h.Grid)
	pos := atmos.Pos{X: 0, Y: 0}
	h.Fill(pos, map[gases.Species]float64{
		gases.Oxygen:        10,
		gases.CarbonDioxide: 50,
	}, 300)

	pipe, _ := m.AddPipe(pos, 0)
	var filter [gases.Count]bool
	filter[gases.CarbonDioxide] = true
	m.AddDevice(&pipenet.Scrubber{Pos: pos, Pipe: pipe, Filter: filter, VolumeRate: atmos.CellVolume})

	before := h.Grid.Tile(pos).Air.ThermalEnergy(h.Cat)
	h.RunCycle()

	// The filtered moles take their heat with them into the net.
	after := h.Grid.Tile(pos).Air.ThermalEnergy(h.Cat) + pipe.Net().Air.ThermalEnergy(h.Cat)
	if math.Abs(after-before) > 1e-6*before {
		t.Fatalf("scrubbing lost energy: %v J -> %v J", before, after)
	}
	if got := pipe.Net().Air.Temperature; got < 299 {
		t.Fatalf("net stayed cold: %v K", got)
	}
}

func TestPump_RaisesOutletToTargetPressure(t *testing.T) {
	h := atmostest.NewHarness(t)
	m := pipenet.NewManager(h.Grid)

	inlet, _ := m.AddPipe(atmos.Pos{X: 0, Y: 0}, 0)
	outlet, _ := m.AddPipe(atmos.Pos{X: 2, Y: 0}, 0)
	inlet.Net().Air.AdjustMoles(gases.Oxygen, 50)
	inlet.Net().Air.Temperature = atmos.T20C
	m.AddDevice(&pipenet.Pump{Inlet: inlet, Outlet: outlet, TargetPressure: 200})

	h.RunCycle()

	if got := outlet.Net().Air.Pressure(); math.Abs(got-200) > 1e-6 {
		t.Fatalf("outlet pressure = %v, want 200", got)
	}
	if got := inlet.Net().Air.Moles[gases.Oxygen]; got >= 50 {
		t.Fatalf("inlet unchanged: %v", got)
	}
}

func TestNetStage_HotPipeMixtureReacts(t *testing.T) {
	h := atmostest.NewHarness(t)
	m := pipenet.NewManager(h.Grid)

	pipe, _ := m.AddPipe(atmos.Pos{X: 0, Y: 0}, 0)
	pipe.Net().Air.AdjustMoles(gases.Plasma, 5)
	pipe.Net().Air.AdjustMoles(gases.Oxygen, 15)
	pipe.Net().Air.Temperature = 600

	h.RunCycle()

	net := pipe.Net()
	if got := net.Air.Moles[gases.CarbonDioxide]; got <= 0 {
		t.Fatalf("hot pipe mixture did not react: %v", net.Air.Moles)
	}
	if net.Air.Temperature <= 600 {
		t.Fatalf("reaction released no heat: %v", net.Air.Temperature)
	}
}
