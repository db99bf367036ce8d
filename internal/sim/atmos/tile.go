package atmos

// Pos is a tile coordinate on a grid.
type Pos struct {
	X int
	Y int
}

func (p Pos) Step(d Direction) Pos {
	switch d {
	case North:
		return Pos{p.X, p.Y + 1}
	case South:
		return Pos{p.X, p.Y - 1}
	case East:
		return Pos{p.X + 1, p.Y}
	default:
		return Pos{p.X - 1, p.Y}
	}
}

// GroupHandle indexes a grid's excited-group arena. NoGroup means the tile
// is not part of any group.
type GroupHandle int

const NoGroup GroupHandle = -1

// Tile is one grid cell's atmosphere state. Air is nil for cells with no
// atmosphere (solid walls); such tiles still carry adjacency so neighbors
// can see the blockage.
type Tile struct {
	Pos Pos

	// Air is the owned live mixture. nil means no atmosphere.
	Air *Mixture

	// AirBlocked bits: airflow out of this tile in direction d is blocked
	// when bit d is set. Recomputed on revalidation from airtight state.
	AirBlocked uint8

	adjacent [DirectionCount]*Tile

	// Cycle counters guard single archival per processing cycle.
	currentCycle  int64
	archivedCycle int64

	excited     bool
	activeIndex int // index into the grid's active slice, valid iff excited

	group GroupHandle

	// Invalid tiles are re-linked by the revalidate stage before anything
	// else touches them.
	invalid bool

	hotspot *Hotspot

	superconducting bool

	// Per-cycle scratch written by the diffusion pre-pass.
	shareDirs      uint8 // directions flagged for sharing this cycle
	pressureDelta  [DirectionCount]float64
	pressureMax    float64
	pressureDir    Direction
	pressureQueued bool
}

func NewTile(p Pos) *Tile {
	return &Tile{Pos: p, group: NoGroup, activeIndex: -1}
}

func (t *Tile) Adjacent(d Direction) *Tile { return t.adjacent[d] }

// Excited mirrors membership in the grid's active set.
func (t *Tile) Excited() bool { return t.excited }

// InGroup reports whether the tile belongs to an excited group.
func (t *Tile) InGroup() bool { return t.group != NoGroup }

// Group returns the tile's excited-group handle.
func (t *Tile) Group() GroupHandle { return t.group }

// PassableTo reports whether air can flow from t toward d: the link exists,
// and neither side blocks that direction.
func (t *Tile) PassableTo(d Direction) bool {
	n := t.adjacent[d]
	if n == nil {
		return false
	}
	if t.AirBlocked&(1<<d) != 0 {
		return false
	}
	return n.AirBlocked&(1<<d.Opposite()) == 0
}

// AdjacentCount counts directions open for airflow. Share divides deltas by
// this plus one.
func (t *Tile) AdjacentCount() int {
	n := 0
	for d := Direction(0); d < DirectionCount; d++ {
		if t.PassableTo(d) {
			n++
		}
	}
	return n
}

// archiveIfNeeded archives the tile's mixture at most once per cycle. It
// does not mark the tile processed: a neighbor can be archived long before
// its own turn in the active loop.
func (t *Tile) archiveIfNeeded(cycle int64) {
	if t.Air != nil && t.archivedCycle < cycle {
		t.Air.Archive()
		t.archivedCycle = cycle
	}
}

// considerPressureDifference records a directional pressure differential for
// the high-pressure-delta stage, keeping only the strongest direction.
func (t *Tile) considerPressureDifference(d Direction, difference float64) {
	t.pressureDelta[d] = difference
	if difference > t.pressureMax {
		t.pressureMax = difference
		t.pressureDir = d
	}
}

func (t *Tile) clearPressureScratch() {
	t.shareDirs = 0
	t.pressureMax = 0
	t.pressureQueued = false
	for i := range t.pressureDelta {
		t.pressureDelta[i] = 0
	}
}

// Pressure returns the live mixture pressure, or 0 without air.
func (t *Tile) Pressure() float64 {
	if t.Air == nil {
		return 0
	}
	return t.Air.Pressure()
}
