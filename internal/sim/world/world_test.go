package world_test

import (
	"math/rand"
	"reflect"
	"testing"

	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/gases"
	"atmoscape.dev/internal/sim/tuning"
	"atmoscape.dev/internal/sim/world"
)

func testTuning() tuning.Tuning {
	tn := tuning.Defaults()
	// Whole macro-cycles every tick: no budget yields, so state is a pure
	// function of the edit stream.
	tn.MaxProcessTimeUs = 1_000_000_000
	tn.Workers = 1
	return tn
}

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.Config{ID: "test-world", Tuning: testTuning()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

// editScript builds a reproducible stream of edits, one batch per tick.
// Subjects are allocated fresh per call so two worlds never share state.
func editScript(seed int64, ticks int) [][]world.EditOp {
	rng := rand.New(rand.NewSource(seed))
	script := make([][]world.EditOp, ticks)
	for i := range script {
		n := 1 + rng.Intn(3)
		for j := 0; j < n; j++ {
			pos := atmos.Pos{X: rng.Intn(8), Y: rng.Intn(8)}
			switch rng.Intn(6) {
			case 0, 1, 2:
				op := world.EditOp{
					Kind:        world.EditSetAir,
					GridID:      "station",
					Pos:         pos,
					Temperature: 200 + rng.Float64()*400,
				}
				op.Moles[gases.Oxygen] = rng.Float64() * 200
				op.Moles[gases.Nitrogen] = rng.Float64() * 500
				op.Moles[gases.Plasma] = rng.Float64() * 5
				script[i] = append(script[i], op)
			case 3:
				script[i] = append(script[i], world.EditOp{
					Kind:    world.EditSetBlocked,
					GridID:  "station",
					Pos:     pos,
					Blocked: uint8(rng.Intn(16)),
				})
			case 4:
				script[i] = append(script[i], world.EditOp{
					Kind:             world.EditIgnite,
					GridID:           "station",
					Pos:              pos,
					FlameTemperature: 600 + rng.Float64()*600,
					FlameVolume:      atmos.CellVolume,
				})
			case 5:
				script[i] = append(script[i], world.EditOp{
					Kind:   world.EditClearAir,
					GridID: "station",
					Pos:    pos,
				})
			}
		}
	}
	return script
}

func TestStepOnce_IdenticalEditStreamsProduceIdenticalDigests(t *testing.T) {
	a := newTestWorld(t)
	b := newTestWorld(t)

	scriptA := editScript(42, 60)
	scriptB := editScript(42, 60)

	for i := range scriptA {
		tickA, digA := a.StepOnce(scriptA[i])
		tickB, digB := b.StepOnce(scriptB[i])
		if tickA != tickB {
			t.Fatalf("tick skew: %d vs %d", tickA, tickB)
		}
		if digA != digB {
			t.Fatalf("digest diverged at tick %d", tickA)
		}
	}
}

func TestStepOnce_DifferentStreamsDiverge(t *testing.T) {
	a := newTestWorld(t)
	b := newTestWorld(t)

	scriptA := editScript(1, 20)
	scriptB := editScript(2, 20)

	var lastA, lastB string
	for i := 0; i < 20; i++ {
		_, lastA = a.StepOnce(scriptA[i])
		_, lastB = b.StepOnce(scriptB[i])
	}
	if lastA == lastB {
		t.Fatalf("different edit streams reached the same digest")
	}
}

func TestSnapshot_RoundTripPreservesState(t *testing.T) {
	a := newTestWorld(t)
	script := editScript(7, 30)
	for i := range script {
		a.StepOnce(script[i])
	}
	// Let the dynamics settle so the active set is empty on both sides of
	// the round trip. Fire and superconduction keep their tiles active, so
	// an empty active set means fully quiescent.
	settled := false
	for i := 0; i < 3000; i++ {
		a.StepOnce(nil)
		if a.Metrics().ActiveTiles == 0 {
			settled = true
			break
		}
	}
	if !settled {
		t.Fatalf("world never settled; %d tiles still active", a.Metrics().ActiveTiles)
	}

	snap := a.ExportSnapshot()
	if snap.Header.WorldID != "test-world" || snap.Header.Tick != a.CurrentTick() {
		t.Fatalf("snapshot header: %+v", snap.Header)
	}

	b := newTestWorld(t)
	b.ImportSnapshot(snap)
	if b.CurrentTick() != a.CurrentTick() {
		t.Fatalf("tick not restored: %d vs %d", b.CurrentTick(), a.CurrentTick())
	}
	if got := b.ExportSnapshot(); !reflect.DeepEqual(got.Grids, snap.Grids) {
		t.Fatalf("re-exported grids differ from the imported snapshot")
	}

	// After the import-side revalidation churn drains, both worlds step in
	// lockstep.
	var digA, digB string
	for i := 0; i < 10; i++ {
		_, digA = a.StepOnce(nil)
		_, digB = b.StepOnce(nil)
	}
	if digA != digB {
		t.Fatalf("digests diverged after snapshot round trip")
	}
}

func TestEditOps_SubjectLifecycle(t *testing.T) {
	w := newTestWorld(t)
	pos := atmos.Pos{X: 0, Y: 0}
	subj := &atmos.Subject{
		ID:               "door_1",
		Pos:              pos,
		MinPressure:      15000,
		MinPressureDelta: 10000,
		BaseDamage:       50,
	}
	w.StepOnce([]world.EditOp{
		{Kind: world.EditSetAir, GridID: "station", Pos: pos, Temperature: atmos.T20C},
		{Kind: world.EditAddSubject, GridID: "station", Subject: subj},
	})
	if w.GridByID("station").Atmos.Subject("door_1") == nil {
		t.Fatalf("subject not registered through the edit feed")
	}

	w.StepOnce([]world.EditOp{
		{Kind: world.EditRemoveSubject, GridID: "station", SubjectID: "door_1"},
	})
	if w.GridByID("station").Atmos.Subject("door_1") != nil {
		t.Fatalf("subject still present after removal edit")
	}
}

func TestEditOps_ClearAirAndRemoveTile(t *testing.T) {
	w := newTestWorld(t)
	pos := atmos.Pos{X: 3, Y: 3}
	op := world.EditOp{Kind: world.EditSetAir, GridID: "station", Pos: pos, Temperature: atmos.T20C}
	op.Moles[gases.Nitrogen] = 100
	w.StepOnce([]world.EditOp{op})

	ga := w.GridByID("station").Atmos
	if ga.Tile(pos) == nil || ga.Tile(pos).Air == nil {
		t.Fatalf("SetAir did not land")
	}

	w.StepOnce([]world.EditOp{{Kind: world.EditClearAir, GridID: "station", Pos: pos}})
	if ga.Tile(pos).Air != nil {
		t.Fatalf("ClearAir left air behind")
	}

	w.StepOnce([]world.EditOp{{Kind: world.EditRemoveTile, GridID: "station", Pos: pos}})
	if ga.Tile(pos) != nil {
		t.Fatalf("RemoveTile left the tile behind")
	}
}
