package atmos

import (
	"math"
	"testing"

	"atmoscape.dev/internal/sim/gases"
)

func standardMix(o2, n2, temp float64) *Mixture {
	m := NewMixture(CellVolume)
	m.Moles[gases.Oxygen] = o2
	m.Moles[gases.Nitrogen] = n2
	m.Temperature = temp
	return m
}

func TestShare_ConservesMolesAndMovesHalfDelta(t *testing.T) {
	cat := gases.Builtin()
	a := standardMix(100, 0, T20C)
	b := standardMix(0, 0, T20C)
	a.Archive()
	b.Archive()

	before := a.TotalMoles() + b.TotalMoles()
	a.Share(cat, b, 1)
	after := a.TotalMoles() + b.TotalMoles()

	if math.Abs(before-after) > 1e-9 {
		t.Fatalf("moles not conserved: before=%v after=%v", before, after)
	}
	// (mine - theirs) / (neighborCount + 1) = 100/2 = 50 moved.
	if got := b.Moles[gases.Oxygen]; math.Abs(got-50) > 1e-9 {
		t.Fatalf("moved oxygen = %v, want 50", got)
	}
	if got := a.Moles[gases.Oxygen]; math.Abs(got-50) > 1e-9 {
		t.Fatalf("remaining oxygen = %v, want 50", got)
	}
	if a.LastShare != 50 {
		t.Fatalf("LastShare = %v, want 50", a.LastShare)
	}
}

func TestShare_BidirectionalSpeciesFlow(t *testing.T) {
	cat := gases.Builtin()
	a := standardMix(100, 0, T20C)
	b := standardMix(0, 100, T20C)
	a.Archive()
	b.Archive()

	a.Share(cat, b, 1)

	for _, m := range []*Mixture{a, b} {
		if math.Abs(m.Moles[gases.Oxygen]-50) > 1e-9 || math.Abs(m.Moles[gases.Nitrogen]-50) > 1e-9 {
			t.Fatalf("expected 50/50 split, got O2=%v N2=%v", m.Moles[gases.Oxygen], m.Moles[gases.Nitrogen])
		}
	}
}

func TestShare_SpeciesFlowNegatesUnderSwap(t *testing.T) {
	cat := gases.Builtin()

	mk := func() (*Mixture, *Mixture) {
		a := standardMix(120, 30, 480)
		a.Moles[gases.Plasma] = 7
		b := standardMix(10, 90, T20C)
		b.Moles[gases.CarbonDioxide] = 3
		a.Archive()
		b.Archive()
		return a, b
	}

	a1, b1 := mk()
	a1.Share(cat, b1, 2)

	a2, b2 := mk()
	b2.Share(cat, a2, 2)

	// The flow of share(a,b) is the exact negation of share(b,a), so each
	// side's moles land bit-identical no matter which mixture initiates.
	for i := range a1.Moles {
		if a1.Moles[i] != a2.Moles[i] {
			t.Fatalf("species %d on initiator side diverged: %v vs %v", i, a1.Moles[i], a2.Moles[i])
		}
		if b1.Moles[i] != b2.Moles[i] {
			t.Fatalf("species %d on sharer side diverged: %v vs %v", i, b1.Moles[i], b2.Moles[i])
		}
	}
}

func TestShare_ConservesThermalEnergy(t *testing.T) {
	cat := gases.Builtin()
	a := standardMix(100, 0, 500)
	b := standardMix(0, 100, T20C)
	a.Archive()
	b.Archive()

	before := a.ThermalEnergy(cat) + b.ThermalEnergy(cat)
	a.Share(cat, b, 1)
	after := a.ThermalEnergy(cat) + b.ThermalEnergy(cat)

	// Moles plus the post-share conduction remainder both preserve energy.
	if math.Abs(before-after) > before*1e-6 {
		t.Fatalf("energy drifted: before=%v after=%v", before, after)
	}
}

func TestShare_ImmutableReservoirUnchanged(t *testing.T) {
	cat := gases.Builtin()
	space := NewMixture(CellVolume)
	space.Immutable = true
	space.Temperature = TCMB

	room := standardMix(50, 150, T20C)
	room.Archive()
	space.Archive()

	room.Share(cat, space, 1)

	if space.TotalMoles() != 0 {
		t.Fatalf("immutable mixture gained moles: %v", space.TotalMoles())
	}
	if space.Temperature != TCMB {
		t.Fatalf("immutable mixture temperature changed: %v", space.Temperature)
	}
	// The room still vents toward the reservoir.
	if room.TotalMoles() >= 200 {
		t.Fatalf("room lost nothing against reservoir")
	}
}

func TestTemperatureShare_ClampsAtCosmicBackground(t *testing.T) {
	cat := gases.Builtin()
	cold := standardMix(10, 10, TCMB+0.1)
	colder := standardMix(10, 10, TCMB)
	cold.Archive()
	colder.Archive()

	// Huge coefficient would overshoot without the clamp.
	cold.TemperatureShare(cat, colder, 100)

	if cold.Temperature < TCMB || colder.Temperature < TCMB {
		t.Fatalf("temperature below TCMB: %v / %v", cold.Temperature, colder.Temperature)
	}
}

func TestTemperatureShare_HarmonicMeanDirection(t *testing.T) {
	cat := gases.Builtin()
	hot := standardMix(100, 0, 600)
	cool := standardMix(100, 0, 300)
	hot.Archive()
	cool.Archive()

	hot.TemperatureShare(cat, cool, OpenHeatTransferCoefficient)

	if hot.Temperature >= 600 || cool.Temperature <= 300 {
		t.Fatalf("no conduction: hot=%v cool=%v", hot.Temperature, cool.Temperature)
	}
	if hot.Temperature < cool.Temperature {
		t.Fatalf("conduction overshot equilibrium: hot=%v cool=%v", hot.Temperature, cool.Temperature)
	}
}

func TestCompareExchange(t *testing.T) {
	cases := []struct {
		name string
		a, b *Mixture
		want bool
	}{
		{"identical", standardMix(50, 150, T20C), standardMix(50, 150, T20C), false},
		{"large ratio difference", standardMix(100, 0, T20C), standardMix(50, 0, T20C), true},
		{"total moles differ", standardMix(100, 100, T20C), standardMix(50, 50, T20C), true},
		{"temperature only", standardMix(50, 150, T20C + 10), standardMix(50, 150, T20C), true},
		{"sub-threshold temperature", standardMix(50, 150, T20C + 1), standardMix(50, 150, T20C), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.a.Archive()
			tc.b.Archive()
			if got := tc.a.CompareExchange(tc.b); got != tc.want {
				t.Fatalf("CompareExchange = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemoveRatio_ProportionalAndTemperaturePreserving(t *testing.T) {
	cat := gases.Builtin()
	m := standardMix(80, 20, 350)

	out := m.RemoveRatio(cat, 0.25)

	if math.Abs(out.Moles[gases.Oxygen]-20) > 1e-9 || math.Abs(out.Moles[gases.Nitrogen]-5) > 1e-9 {
		t.Fatalf("removed portion wrong: O2=%v N2=%v", out.Moles[gases.Oxygen], out.Moles[gases.Nitrogen])
	}
	if out.Temperature != 350 {
		t.Fatalf("removed portion temperature = %v, want 350", out.Temperature)
	}
	if math.Abs(m.Moles[gases.Oxygen]-60) > 1e-9 {
		t.Fatalf("remaining oxygen = %v, want 60", m.Moles[gases.Oxygen])
	}
}

func TestMerge_MixesTemperatureByHeatCapacity(t *testing.T) {
	cat := gases.Builtin()
	a := standardMix(100, 0, 300)
	giver := standardMix(100, 0, 400)

	a.Merge(cat, giver)

	if math.Abs(a.Temperature-350) > 1e-9 {
		t.Fatalf("merged temperature = %v, want 350", a.Temperature)
	}
	if math.Abs(a.Moles[gases.Oxygen]-200) > 1e-9 {
		t.Fatalf("merged moles = %v, want 200", a.Moles[gases.Oxygen])
	}
}

func TestComputeApplyShare_MatchesDirectShare(t *testing.T) {
	cat := gases.Builtin()

	mk := func() (*Mixture, *Mixture) {
		a := standardMix(120, 30, 480)
		b := standardMix(10, 90, T20C)
		a.Archive()
		b.Archive()
		return a, b
	}

	a1, b1 := mk()
	diff1 := a1.Share(cat, b1, 3)

	a2, b2 := mk()
	d := a2.computeShare(cat, b2, 3)
	diff2 := a2.applyShare(cat, b2, d)

	if diff1 != diff2 {
		t.Fatalf("pressure differential mismatch: %v vs %v", diff1, diff2)
	}
	for i := range a1.Moles {
		if a1.Moles[i] != a2.Moles[i] || b1.Moles[i] != b2.Moles[i] {
			t.Fatalf("species %d mismatch after split share", i)
		}
	}
	if a1.Temperature != a2.Temperature || b1.Temperature != b2.Temperature {
		t.Fatalf("temperature mismatch after split share")
	}
}
