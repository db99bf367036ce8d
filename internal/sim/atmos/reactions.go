package atmos

import (
	"math"

	"atmoscape.dev/internal/sim/gases"
)

// Combustion chemistry constants.
const (
	PlasmaMinimumBurnTemperature = T0C + 100
	PlasmaUpperTemperature       = T0C + 1370
	PlasmaOxygenFullburn         = 10.0
	PlasmaBurnRateDelta          = 9.0
	OxygenBurnRateBase           = 1.4
	FirePlasmaEnergyReleased     = 3_000_000.0 // J per mole of plasma burnt
	FireGrowthRate               = 40_000.0

	TritiumBurnOxyFactor        = 100.0
	TritiumBurnTritFactor       = 10.0
	FireTritiumEnergyReleased   = 280_000.0 // J per mole of tritium burnt
	MinimumTritiumOxyburnEnergy = 2_000_000.0
)

// react runs the reaction set on a tile's mixture and raises a hotspot when
// combustion released enough energy.
func (ga *GridAtmosphere) react(t *Tile) bool {
	energy := ReactMixture(ga.cat, t.Air)
	if energy > 0 {
		flame := t.Air.Temperature
		if t.hotspot != nil && t.hotspot.Temperature > flame {
			flame = t.hotspot.Temperature
		}
		ga.exposeHotspot(t, flame, t.Air.Volume)
	}
	return energy > 0
}

// ReactMixture runs every applicable reaction once and returns the total
// energy released in joules. Zero means nothing reacted.
func ReactMixture(cat *gases.Catalog, m *Mixture) float64 {
	if m == nil || m.Immutable {
		return 0
	}
	var energy float64
	if m.Temperature >= PlasmaMinimumBurnTemperature {
		energy += tritiumFire(cat, m)
		energy += plasmaFire(cat, m)
	}
	return energy
}

func plasmaFire(cat *gases.Catalog, m *Mixture) float64 {
	plasma := m.Moles[gases.Plasma]
	oxygen := m.Moles[gases.Oxygen]
	if plasma < GasMinMoles || oxygen < GasMinMoles {
		return 0
	}

	// Burn rate scales with how far past ignition the mixture is.
	temperatureScale := (m.Temperature - PlasmaMinimumBurnTemperature) /
		(PlasmaUpperTemperature - PlasmaMinimumBurnTemperature)
	if temperatureScale <= 0 {
		return 0
	}
	if temperatureScale > 1 {
		temperatureScale = 1
	}

	oxygenBurnRate := OxygenBurnRateBase - temperatureScale
	var plasmaBurnRate float64
	if oxygen > plasma*PlasmaOxygenFullburn {
		plasmaBurnRate = plasma * temperatureScale / PlasmaBurnRateDelta
	} else {
		plasmaBurnRate = temperatureScale * (oxygen / PlasmaOxygenFullburn) / PlasmaBurnRateDelta
	}
	if plasmaBurnRate < GasMinMoles {
		return 0
	}
	plasmaBurnRate = math.Min(plasmaBurnRate, math.Min(plasma, oxygen/oxygenBurnRate))

	oldHeat := m.HeatCapacity(cat)
	oldEnergy := oldHeat * m.Temperature

	m.Moles[gases.Plasma] -= plasmaBurnRate
	m.Moles[gases.Oxygen] -= plasmaBurnRate * oxygenBurnRate
	// Oxygen-rich burns super-saturate into tritium instead of CO2.
	if oxygen/plasma > PlasmaOxygenFullburn {
		m.Moles[gases.Tritium] += plasmaBurnRate
	} else {
		m.Moles[gases.CarbonDioxide] += plasmaBurnRate
	}

	released := FirePlasmaEnergyReleased * plasmaBurnRate
	newHeat := m.HeatCapacity(cat)
	if newHeat > MinimumHeatCapacity {
		m.Temperature = (oldEnergy + released) / newHeat
	}
	return released
}

func tritiumFire(cat *gases.Catalog, m *Mixture) float64 {
	tritium := m.Moles[gases.Tritium]
	oxygen := m.Moles[gases.Oxygen]
	if tritium < GasMinMoles || oxygen < GasMinMoles {
		return 0
	}

	var burned float64
	oldHeat := m.HeatCapacity(cat)
	oldEnergy := oldHeat * m.Temperature

	if oxygen < tritium || oldEnergy*oldHeat < MinimumTritiumOxyburnEnergy {
		burned = tritium / TritiumBurnTritFactor
		if burned > oxygen {
			burned = oxygen
		}
		m.Moles[gases.Tritium] -= burned
	} else {
		burned = tritium
		m.Moles[gases.Tritium] = 0
		m.Moles[gases.Oxygen] -= math.Min(oxygen, burned*TritiumBurnOxyFactor-burned)
	}
	if burned < GasMinMoles {
		return 0
	}
	m.Moles[gases.WaterVapour] += burned

	released := FireTritiumEnergyReleased * burned
	newHeat := m.HeatCapacity(cat)
	if newHeat > MinimumHeatCapacity {
		m.Temperature = (oldEnergy + released) / newHeat
	}
	return released
}
