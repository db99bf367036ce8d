package atmos

// Physical constants and numeric guards. The guard thresholds suppress
// floating-point noise from keeping tiles active forever; the engine treats
// values below them as "did not happen".
const (
	// GasConstant is R in L·kPa/(K·mol).
	GasConstant = 8.314462618

	OneAtmosphere = 101.325 // kPa

	TCMB = 2.7    // cosmic background temperature floor, K
	T0C  = 273.15 // K
	T20C = 293.15 // K

	// CellVolume is the standard volume of one open tile, in liters.
	CellVolume = 2500.0

	// MolesCellStandard is the mole count of a standard-pressure tile.
	MolesCellStandard = OneAtmosphere * CellVolume / (T20C * GasConstant)

	// GasMinMoles is the smallest per-species delta worth moving.
	GasMinMoles = 0.00000005

	// MinimumMolesDeltaToMove is the total moved-moles threshold below which
	// a share is not considered a pressure event.
	MinimumMolesDeltaToMove = GasMinMoles * CellVolume

	// MinimumAirToSuspend: archived compositions closer than this ratio do
	// not trigger an exchange on comparison.
	MinimumAirToSuspend      = MolesCellStandard * 0.1
	MinimumMolesToSuspend    = MolesCellStandard * 0.0001
	MinimumAirRatioToSuspend = 0.1

	MinimumHeatCapacity = 0.0003

	// MinimumTemperatureDeltaToConsider gates thermal bookkeeping in Share.
	MinimumTemperatureDeltaToConsider = 0.5
	// MinimumTemperatureDeltaToSuspend gates re-activation on comparison.
	MinimumTemperatureDeltaToSuspend = 4.0
	MinimumTemperatureToMove         = T20C + 100

	OpenHeatTransferCoefficient = 0.4

	// MinimumTemperatureStartSuperConduction: tiles hotter than this are
	// eligible for the superconduction stage.
	MinimumTemperatureStartSuperConduction = T20C + 200
	MinimumTemperatureForSuperconduction   = T20C + 10

	// Combustion.
	FireMinimumTemperatureToExist  = T0C + 100
	FireMinimumTemperatureToSpread = T0C + 150
	FireSpreadRadiosityScale       = 0.85
	MinimumHotspotVolume           = 1.0

	// SpreadFactor divides a mole delta across neighbors; a tile shares with
	// up to four cardinal neighbors plus itself.
	MaxNeighbors = 4
)

// Direction indexes the four cardinal adjacency slots.
type Direction uint8

const (
	North Direction = iota
	South
	East
	West

	DirectionCount
)

func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	default:
		return East
	}
}

func (d Direction) String() string {
	switch d {
	case North:
		return "N"
	case South:
		return "S"
	case East:
		return "E"
	default:
		return "W"
	}
}
