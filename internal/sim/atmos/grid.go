package atmos

import (
	"atmoscape.dev/internal/sim/gases"
)

// GridAtmosphere owns everything atmosphere for one physical grid: the tile
// map, the active-tile set, the excited-group arena, registered
// delta-pressure subjects, the resumable pipeline state and the scratch
// buffers it uses. All mutation happens on the grid's owner goroutine; the
// only concurrency is the archived-input parallel share pass.
type GridAtmosphere struct {
	ID string

	cat *gases.Catalog

	tiles map[Pos]*Tile

	// Active set: the slice is the membership, tile.excited mirrors it.
	active []*Tile

	groups           []*ExcitedGroup
	groupFree        []GroupHandle
	groupCooldownMax int

	subjects *subjectSet

	// Tiles whose adjacency must be recomputed before the next cycle.
	invalid []*Tile

	// Tiles with a recorded directional pressure differential this cycle.
	highPressureDelta []*Tile

	hotspots        []*Tile
	superconducting []*Tile

	// Solver toggles consulted before high-pressure-delta bookkeeping.
	EqualizationEnabled     bool
	DepressurizationEnabled bool

	sched pipelineState

	equalizeStage StageRunner
	pipeNetStage  StageRunner
	deviceStage   StageRunner

	events EventSink

	// Per-macro-cycle statistics.
	cycle        int64
	tilesShared  int64
	groupsMerged int64

	// Scratch reused across cycles.
	workItems  []shareItem
	activeSnap []*Tile
	runner     *batchRunner
}

// EventSink receives the engine's side effects. Implementations must not
// call back into the grid.
type EventSink interface {
	// TileChanged reports that a tile's mixture changed this cycle.
	TileChanged(gridID string, p Pos)
	// Damage carries one deferred delta-pressure damage instruction.
	Damage(gridID string, instr DamageInstruction)
	// PressureEvent reports a resolved high pressure differential.
	PressureEvent(gridID string, p Pos, dir Direction, difference float64)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) TileChanged(string, Pos)                       {}
func (NopSink) Damage(string, DamageInstruction)              {}
func (NopSink) PressureEvent(string, Pos, Direction, float64) {}

type Config struct {
	ID                      string
	Catalog                 *gases.Catalog
	GroupCooldown           int
	Workers                 int
	EqualizationEnabled     bool
	DepressurizationEnabled bool
	Events                  EventSink
}

func NewGrid(cfg Config) *GridAtmosphere {
	cat := cfg.Catalog
	if cat == nil {
		cat = gases.Builtin()
	}
	cooldown := cfg.GroupCooldown
	if cooldown <= 0 {
		cooldown = 5
	}
	var sink EventSink = NopSink{}
	if cfg.Events != nil {
		sink = cfg.Events
	}
	return &GridAtmosphere{
		ID:                      cfg.ID,
		cat:                     cat,
		tiles:                   map[Pos]*Tile{},
		groupCooldownMax:        cooldown,
		subjects:                newSubjectSet(),
		EqualizationEnabled:     cfg.EqualizationEnabled,
		DepressurizationEnabled: cfg.DepressurizationEnabled,
		events:                  sink,
		runner:                  newBatchRunner(cfg.Workers),
	}
}

func (ga *GridAtmosphere) Catalog() *gases.Catalog { return ga.cat }
func (ga *GridAtmosphere) Cycle() int64            { return ga.cycle }

func (ga *GridAtmosphere) Tile(p Pos) *Tile { return ga.tiles[p] }

// TileCount and ActiveCount are read-model helpers for stats and digests.
func (ga *GridAtmosphere) TileCount() int    { return len(ga.tiles) }
func (ga *GridAtmosphere) ActiveCount() int  { return len(ga.active) }
func (ga *GridAtmosphere) SubjectCount() int { return len(ga.subjects.subjects) }

// EnsureTile creates the tile at p if missing and queues it for
// revalidation.
func (ga *GridAtmosphere) EnsureTile(p Pos) *Tile {
	t := ga.tiles[p]
	if t == nil {
		t = NewTile(p)
		ga.tiles[p] = t
		ga.InvalidateTile(t)
	}
	return t
}

// RemoveTile deletes the cell from the grid, detaching neighbors and every
// by-reference membership the tile may still hold.
func (ga *GridAtmosphere) RemoveTile(p Pos) {
	t := ga.tiles[p]
	if t == nil {
		return
	}
	ga.RemoveActiveTile(t, true)
	for d := Direction(0); d < DirectionCount; d++ {
		if n := t.adjacent[d]; n != nil {
			n.adjacent[d.Opposite()] = nil
			ga.InvalidateTile(n)
		}
		t.adjacent[d] = nil
	}
	t.Air = nil
	t.hotspot = nil
	delete(ga.tiles, p)
}

// InvalidateTile queues a tile for adjacency recomputation next cycle.
func (ga *GridAtmosphere) InvalidateTile(t *Tile) {
	if t.invalid {
		return
	}
	t.invalid = true
	ga.invalid = append(ga.invalid, t)
}

// revalidateTile rebuilds neighbor links from the tile map and reactivates
// the tile and its neighbors so diffusion reconsiders them.
func (ga *GridAtmosphere) revalidateTile(t *Tile) {
	t.invalid = false
	for d := Direction(0); d < DirectionCount; d++ {
		n := ga.tiles[t.Pos.Step(d)]
		t.adjacent[d] = n
		if n != nil {
			n.adjacent[d.Opposite()] = t
			if n.Air != nil {
				ga.AddActiveTile(n)
			}
		}
	}
	if t.Air != nil {
		ga.AddActiveTile(t)
	}
}

// SetBlocked replaces the tile's blocked-direction bitmask (airtight
// structures changed) and invalidates the tile and its neighbors.
func (ga *GridAtmosphere) SetBlocked(p Pos, mask uint8) {
	t := ga.EnsureTile(p)
	if t.AirBlocked == mask {
		return
	}
	t.AirBlocked = mask
	ga.InvalidateTile(t)
	for d := Direction(0); d < DirectionCount; d++ {
		if n := t.adjacent[d]; n != nil {
			ga.InvalidateTile(n)
		}
	}
}

// AddActiveTile marks a tile excited and inserts it into the active set.
// No-op without air or when already excited.
func (ga *GridAtmosphere) AddActiveTile(t *Tile) {
	if t.excited || t.Air == nil {
		return
	}
	t.excited = true
	t.activeIndex = len(ga.active)
	ga.active = append(ga.active, t)
}

// RemoveActiveTile unmarks the tile and removes it from the set. With
// disposeGroup the tile's group (if any) is disposed entirely; without, the
// tile is only detached, for callers dismantling a group member-by-member.
func (ga *GridAtmosphere) RemoveActiveTile(t *Tile, disposeGroup bool) {
	if !t.excited {
		return
	}
	t.excited = false
	i := t.activeIndex
	last := len(ga.active) - 1
	ga.active[i] = ga.active[last]
	ga.active[i].activeIndex = i
	ga.active = ga.active[:last]
	t.activeIndex = -1

	if t.group != NoGroup {
		if disposeGroup {
			ga.disposeGroup(t.group)
		} else {
			ga.detachFromGroup(t)
		}
	}
	assert(t.group == NoGroup, "inactive tile retains group")
}

func (ga *GridAtmosphere) detachFromGroup(t *Tile) {
	g := ga.group(t.group)
	t.group = NoGroup
	if g == nil {
		return
	}
	for i, m := range g.members {
		if m == t {
			g.members[i] = g.members[len(g.members)-1]
			g.members = g.members[:len(g.members)-1]
			break
		}
	}
}

// IsActive reports active-set membership; mirrors tile.excited at all times.
func (ga *GridAtmosphere) IsActive(t *Tile) bool {
	return t.activeIndex >= 0 && t.activeIndex < len(ga.active) && ga.active[t.activeIndex] == t
}

// ForEachTile visits every tile in unspecified order.
func (ga *GridAtmosphere) ForEachTile(fn func(*Tile)) {
	for _, t := range ga.tiles {
		fn(t)
	}
}

// ForEachSubject visits subjects in registration order.
func (ga *GridAtmosphere) ForEachSubject(fn func(*Subject)) {
	for _, s := range ga.subjects.subjects {
		fn(s)
	}
}
