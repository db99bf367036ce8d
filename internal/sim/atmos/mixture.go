package atmos

import (
	"math"

	"atmoscape.dev/internal/sim/gases"
)

// Mixture is a fixed-species gas container. An immutable mixture (the world
// boundary, infinite reservoirs) never gains or loses moles or heat; sharing
// against one only mutates the other side.
type Mixture struct {
	Moles       [gases.Count]float64
	Temperature float64 // K
	Volume      float64 // L
	Immutable   bool

	// Archived snapshot, refreshed once per processing cycle before any
	// mutation. Shares read archived values so results do not depend on the
	// order tiles are visited in.
	molesArchived       [gases.Count]float64
	temperatureArchived float64

	// LastShare is the absolute moles moved by the most recent Share call,
	// used by excited-group cooldown heuristics.
	LastShare float64
}

func NewMixture(volume float64) *Mixture {
	return &Mixture{Temperature: TCMB, Volume: volume}
}

func (m *Mixture) TotalMoles() float64 {
	var sum float64
	for _, v := range m.Moles {
		sum += v
	}
	return sum
}

func (m *Mixture) Pressure() float64 {
	if m.Volume <= 0 {
		return 0
	}
	return m.TotalMoles() * GasConstant * m.Temperature / m.Volume
}

func (m *Mixture) HeatCapacity(cat *gases.Catalog) float64 {
	return heatCapacityOf(cat, &m.Moles)
}

func (m *Mixture) heatCapacityArchived(cat *gases.Catalog) float64 {
	return heatCapacityOf(cat, &m.molesArchived)
}

func heatCapacityOf(cat *gases.Catalog, moles *[gases.Count]float64) float64 {
	var sum float64
	for i, v := range moles {
		sum += v * cat.Defs[i].SpecificHeat
	}
	return math.Max(sum, MinimumHeatCapacity)
}

// ThermalEnergy is heat capacity times temperature, in joules.
func (m *Mixture) ThermalEnergy(cat *gases.Catalog) float64 {
	return m.HeatCapacity(cat) * m.Temperature
}

// Archive snapshots moles and temperature for this processing cycle.
func (m *Mixture) Archive() {
	m.molesArchived = m.Moles
	m.temperatureArchived = m.Temperature
}

func (m *Mixture) AdjustMoles(s gases.Species, delta float64) {
	if m.Immutable {
		return
	}
	m.Moles[s] += delta
	if m.Moles[s] < 0 {
		m.Moles[s] = 0
	}
}

// Remove takes up to amount moles out of the mixture, split proportionally
// across species, and returns the removed portion at the same temperature.
func (m *Mixture) Remove(cat *gases.Catalog, amount float64) *Mixture {
	return m.RemoveRatio(cat, amount/math.Max(m.TotalMoles(), GasMinMoles))
}

func (m *Mixture) RemoveRatio(cat *gases.Catalog, ratio float64) *Mixture {
	if ratio <= 0 {
		return NewMixture(m.Volume)
	}
	if ratio > 1 {
		ratio = 1
	}
	out := NewMixture(m.Volume)
	out.Temperature = m.Temperature
	for i := range m.Moles {
		moved := m.Moles[i] * ratio
		if moved < GasMinMoles {
			continue
		}
		out.Moles[i] = moved
		if !m.Immutable {
			m.Moles[i] -= moved
		}
	}
	return out
}

// Merge folds giver into m, mixing temperatures by heat capacity. The giver
// is not mutated.
func (m *Mixture) Merge(cat *gases.Catalog, giver *Mixture) {
	if m.Immutable || giver == nil {
		return
	}
	if math.Abs(m.Temperature-giver.Temperature) > MinimumTemperatureDeltaToConsider {
		selfHeat := m.HeatCapacity(cat)
		giverHeat := giver.HeatCapacity(cat)
		combined := selfHeat + giverHeat
		if combined > MinimumHeatCapacity {
			m.Temperature = (giver.Temperature*giverHeat + m.Temperature*selfHeat) / combined
		}
	}
	for i := range m.Moles {
		m.Moles[i] += giver.Moles[i]
	}
}

// shareDelta is the pure outcome of a share computed from archived inputs
// only. It can be produced concurrently for many tile pairs and applied
// later on the owner goroutine.
type shareDelta struct {
	moved                [gases.Count]float64 // positive: from m toward sharer
	movedMoles           float64
	absMoved             float64
	heatCapacityToSharer float64
	heatCapacityToThis   float64
	considerTemp         bool
}

// computeShare derives the per-species flow (mine - theirs)/(neighborCount+1)
// and the accompanying heat-capacity movement. Reads archived state only.
func (m *Mixture) computeShare(cat *gases.Catalog, sharer *Mixture, neighborCount int) shareDelta {
	var d shareDelta
	d.considerTemp = math.Abs(m.temperatureArchived-sharer.temperatureArchived) > MinimumTemperatureDeltaToConsider

	for i := range m.Moles {
		delta := (m.molesArchived[i] - sharer.molesArchived[i]) / float64(neighborCount+1)
		if math.Abs(delta) < GasMinMoles {
			continue
		}
		if d.considerTemp {
			gasHeat := delta * cat.Defs[i].SpecificHeat
			if delta > 0 {
				d.heatCapacityToSharer += gasHeat
			} else {
				d.heatCapacityToThis -= gasHeat
			}
		}
		d.moved[i] = delta
		d.movedMoles += delta
		d.absMoved += math.Abs(delta)
	}
	return d
}

// applyShare mutates both mixtures with a previously computed delta and
// returns the directional pressure differential, or 0 when the movement was
// negligible. Must run on the owner goroutine.
func (m *Mixture) applyShare(cat *gases.Catalog, sharer *Mixture, d shareDelta) float64 {
	var oldHeatCapacity, oldSharerHeatCapacity float64
	if d.considerTemp {
		oldHeatCapacity = m.HeatCapacity(cat)
		oldSharerHeatCapacity = sharer.HeatCapacity(cat)
	}

	for i, delta := range d.moved {
		if delta == 0 {
			continue
		}
		if !m.Immutable {
			m.Moles[i] -= delta
		}
		if !sharer.Immutable {
			sharer.Moles[i] += delta
		}
	}

	m.LastShare = d.absMoved

	if d.considerTemp {
		newHeatCapacity := oldHeatCapacity + d.heatCapacityToThis - d.heatCapacityToSharer
		newSharerHeatCapacity := oldSharerHeatCapacity + d.heatCapacityToSharer - d.heatCapacityToThis

		if !m.Immutable && newHeatCapacity > MinimumHeatCapacity {
			m.Temperature = (oldHeatCapacity*m.Temperature - d.heatCapacityToSharer*m.temperatureArchived + d.heatCapacityToThis*sharer.temperatureArchived) / newHeatCapacity
		}
		if !sharer.Immutable && newSharerHeatCapacity > MinimumHeatCapacity {
			sharer.Temperature = (oldSharerHeatCapacity*sharer.Temperature - d.heatCapacityToThis*sharer.temperatureArchived + d.heatCapacityToSharer*m.temperatureArchived) / newSharerHeatCapacity
		}
		// Conduct the remainder when the mole movement barely changed the
		// sharer's heat capacity (pure thermal imbalance).
		if oldSharerHeatCapacity > MinimumHeatCapacity &&
			math.Abs(newSharerHeatCapacity/oldSharerHeatCapacity-1) < 0.1 {
			m.TemperatureShare(cat, sharer, OpenHeatTransferCoefficient)
		}
	}

	temperatureDelta := m.temperatureArchived - sharer.temperatureArchived
	if temperatureDelta > MinimumTemperatureToMove || math.Abs(d.movedMoles) > MinimumMolesDeltaToMove {
		moles := m.TotalMoles()
		theirMoles := sharer.TotalMoles()
		return (m.temperatureArchived*(moles+d.movedMoles) - sharer.temperatureArchived*(theirMoles-d.movedMoles)) * GasConstant / m.Volume
	}
	return 0
}

// Share equalizes m against sharer using archived values, moving
// (mine - theirs) / (neighborCount + 1) moles per species and the matching
// thermal energy. It returns the directional pressure differential used by
// the high-pressure-delta detector, or 0 when the movement was negligible.
// Immutable mixtures act as infinite reservoirs: the delta is computed
// against them but they are never mutated.
func (m *Mixture) Share(cat *gases.Catalog, sharer *Mixture, neighborCount int) float64 {
	return m.applyShare(cat, sharer, m.computeShare(cat, sharer, neighborCount))
}

// TemperatureShare conducts heat between m and sharer proportionally to the
// harmonic mean of their archived heat capacities. Temperatures never drop
// below the cosmic background floor.
func (m *Mixture) TemperatureShare(cat *gases.Catalog, sharer *Mixture, conductionCoefficient float64) float64 {
	temperatureDelta := m.temperatureArchived - sharer.temperatureArchived
	if math.Abs(temperatureDelta) > MinimumTemperatureDeltaToConsider {
		heatCapacity := m.heatCapacityArchived(cat)
		sharerHeatCapacity := sharer.heatCapacityArchived(cat)
		if heatCapacity > MinimumHeatCapacity && sharerHeatCapacity > MinimumHeatCapacity {
			heat := conductionCoefficient * temperatureDelta *
				(heatCapacity * sharerHeatCapacity / (heatCapacity + sharerHeatCapacity))
			if !m.Immutable {
				m.Temperature = math.Max(m.Temperature-heat/heatCapacity, TCMB)
			}
			if !sharer.Immutable {
				sharer.Temperature = math.Max(sharer.Temperature+heat/sharerHeatCapacity, TCMB)
			}
		}
	}
	return sharer.Temperature
}

// CompareExchange reports whether m and other differ enough, on archived
// values, for a diffusion exchange to be worth performing.
func (m *Mixture) CompareExchange(other *Mixture) bool {
	var molesSelf, molesOther float64
	for i := range m.Moles {
		delta := math.Abs(m.molesArchived[i] - other.molesArchived[i])
		if delta > MinimumMolesToSuspend {
			largest := math.Max(m.molesArchived[i], other.molesArchived[i])
			if largest > 0 && delta/largest > MinimumAirRatioToSuspend {
				return true
			}
		}
		molesSelf += m.molesArchived[i]
		molesOther += other.molesArchived[i]
	}
	if math.Abs(molesSelf-molesOther) > MinimumAirToSuspend {
		return true
	}
	if molesSelf > MinimumMolesToSuspend &&
		math.Abs(m.temperatureArchived-other.temperatureArchived) > MinimumTemperatureDeltaToSuspend {
		return true
	}
	return false
}

// Copy returns a deep copy (archives included) that is never immutable.
func (m *Mixture) Copy() *Mixture {
	out := *m
	out.Immutable = false
	return &out
}
