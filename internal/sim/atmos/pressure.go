package atmos

import "math"

// Delta-pressure damage: registered subjects (walls, windows, doors) are
// checked in bulk against the pressures around them. The numeric sweep is
// array-oriented and safe to batch; the damage decisions and events stay
// sequential so dirty-notification order is stable.

type ScalingMode uint8

const (
	ScalingThreshold ScalingMode = iota
	ScalingLinear
	ScalingLogarithmic
)

// sentinelPressure stands in for missing or airless neighbors so ratios and
// deltas stay finite.
const sentinelPressure = 1.0

// Subject is an entity opting into pressure-damage evaluation.
type Subject struct {
	ID  string
	Pos Pos

	// Thresholds, kPa.
	MinPressure          float64
	MinPressureDelta     float64
	MaxEffectivePressure float64

	ScalingMode  ScalingMode
	ScalingPower float64
	BaseDamage   float64

	// PermeableDirs: directions blocked for airflow that the subject's own
	// structure nonetheless lets air through; those see the subject's tile
	// pressure instead of the neighbor's.
	PermeableDirs uint8

	TakingDamage bool
}

// DamageInstruction is one deferred damage application, delivered through
// the grid's damage sink.
type DamageInstruction struct {
	SubjectID string
	Pos       Pos
	Pressure  float64
	Delta     float64
	Damage    float64
}

// subjectSet stores subjects in struct-of-arrays layout so the bulk pass
// runs over flat float64 slices.
type subjectSet struct {
	ids      []string
	index    map[string]int
	subjects []*Subject

	// Scratch filled by the bulk pass, one entry per subject.
	maxPressure []float64
	maxDelta    []float64
}

func newSubjectSet() *subjectSet {
	return &subjectSet{index: map[string]int{}}
}

func (s *subjectSet) add(subj *Subject) {
	if _, ok := s.index[subj.ID]; ok {
		return
	}
	s.index[subj.ID] = len(s.subjects)
	s.ids = append(s.ids, subj.ID)
	s.subjects = append(s.subjects, subj)
	s.maxPressure = append(s.maxPressure, 0)
	s.maxDelta = append(s.maxDelta, 0)
}

func (s *subjectSet) remove(id string) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	last := len(s.subjects) - 1
	s.ids[i] = s.ids[last]
	s.subjects[i] = s.subjects[last]
	s.index[s.ids[i]] = i
	s.ids = s.ids[:last]
	s.subjects = s.subjects[:last]
	s.maxPressure = s.maxPressure[:last]
	s.maxDelta = s.maxDelta[:last]
	delete(s.index, id)
}

// RegisterSubject adds a delta-pressure subject to this grid's processing
// list; re-registering an existing id is a no-op.
func (ga *GridAtmosphere) RegisterSubject(subj *Subject) { ga.subjects.add(subj) }

// UnregisterSubject removes a subject; pending damage queue entries for it
// degrade to no-ops.
func (ga *GridAtmosphere) UnregisterSubject(id string) { ga.subjects.remove(id) }

func (ga *GridAtmosphere) Subject(id string) *Subject {
	i, ok := ga.subjects.index[id]
	if !ok {
		return nil
	}
	return ga.subjects.subjects[i]
}

// gatherPressures fills the subject's four directional pressures.
func (ga *GridAtmosphere) gatherPressures(subj *Subject, out *[DirectionCount]float64) {
	t := ga.tiles[subj.Pos]
	var own float64
	if t != nil && t.Air != nil {
		own = t.Air.Pressure()
	} else {
		own = sentinelPressure
	}
	for d := Direction(0); d < DirectionCount; d++ {
		if t == nil {
			out[d] = sentinelPressure
			continue
		}
		n := t.adjacent[d]
		if n == nil || n.Air == nil {
			out[d] = sentinelPressure
			continue
		}
		blocked := t.AirBlocked&(1<<d) != 0 || n.AirBlocked&(1<<d.Opposite()) != 0
		if blocked && subj.PermeableDirs&(1<<d) != 0 {
			out[d] = own
			continue
		}
		out[d] = n.Air.Pressure()
	}
}

// processSubjects is the damage stage: bulk exposure sweep, then sequential
// decisions and deferred damage application.
func (ga *GridAtmosphere) processSubjects() {
	set := ga.subjects
	n := len(set.subjects)
	if n == 0 {
		return
	}

	// Bulk pass: per opposing pair, the max pressure and absolute delta;
	// keep the overall max of each. Read-only on tiles, batchable.
	ga.runner.Run(n, func(start, end int) {
		var p [DirectionCount]float64
		for i := start; i < end; i++ {
			ga.gatherPressures(set.subjects[i], &p)
			maxNS := math.Max(p[North], p[South])
			maxEW := math.Max(p[East], p[West])
			deltaNS := math.Abs(p[North] - p[South])
			deltaEW := math.Abs(p[East] - p[West])
			set.maxPressure[i] = math.Max(maxNS, maxEW)
			set.maxDelta[i] = math.Max(deltaNS, deltaEW)
		}
	})

	// Sequential decisions, in registration order.
	for i := 0; i < n; i++ {
		subj := set.subjects[i]
		pressure := set.maxPressure[i]
		delta := set.maxDelta[i]
		if pressure <= subj.MinPressure && delta <= subj.MinPressureDelta {
			subj.TakingDamage = false
			continue
		}
		ga.applyDamage(subj, pressure, delta)
	}
}

// applyDamage computes the scaled damage and emits the instruction.
func (ga *GridAtmosphere) applyDamage(subj *Subject, pressure, delta float64) {
	excess := math.Max(pressure-subj.MinPressure, delta-subj.MinPressureDelta)
	if span := subj.MaxEffectivePressure - subj.MinPressure; span > 0 && excess > span {
		excess = span
	}

	factor := 1.0
	switch subj.ScalingMode {
	case ScalingLinear:
		factor = excess * subj.ScalingPower
	case ScalingLogarithmic:
		if subj.ScalingPower > 1 && excess > 1 {
			factor = math.Log(excess) / math.Log(subj.ScalingPower)
		}
	}

	subj.TakingDamage = true
	ga.events.Damage(ga.ID, DamageInstruction{
		SubjectID: subj.ID,
		Pos:       subj.Pos,
		Pressure:  pressure,
		Delta:     delta,
		Damage:    subj.BaseDamage * factor,
	})
}
