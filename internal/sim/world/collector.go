package world

import (
	"sort"

	"atmoscape.dev/internal/protocol"
	"atmoscape.dev/internal/sim/atmos"
)

// collector receives the engine's side effects during a tick and turns
// them into one overlay batch afterwards. It runs on the loop goroutine
// only; the engine never calls it from parallel phases.
type collector struct {
	changed  map[string]map[atmos.Pos]struct{}
	damage   []protocol.DamageEvent
	pressure []protocol.PressureEvent

	damageInstr []damageRecord
}

type damageRecord struct {
	gridID string
	instr  atmos.DamageInstruction
}

func newCollector() *collector {
	return &collector{changed: map[string]map[atmos.Pos]struct{}{}}
}

func (c *collector) TileChanged(gridID string, p atmos.Pos) {
	set := c.changed[gridID]
	if set == nil {
		set = map[atmos.Pos]struct{}{}
		c.changed[gridID] = set
	}
	set[p] = struct{}{}
}

func (c *collector) Damage(gridID string, instr atmos.DamageInstruction) {
	c.damageInstr = append(c.damageInstr, damageRecord{gridID: gridID, instr: instr})
	c.damage = append(c.damage, protocol.DamageEvent{
		GridID:    gridID,
		SubjectID: instr.SubjectID,
		Pos:       [2]int{instr.Pos.X, instr.Pos.Y},
		Pressure:  instr.Pressure,
		Delta:     instr.Delta,
		Damage:    instr.Damage,
	})
}

func (c *collector) PressureEvent(gridID string, p atmos.Pos, dir atmos.Direction, difference float64) {
	c.pressure = append(c.pressure, protocol.PressureEvent{
		GridID:     gridID,
		Pos:        [2]int{p.X, p.Y},
		Direction:  dir.String(),
		Difference: difference,
	})
}

// drain builds the overlay grid list (positions sorted for determinism)
// and resets the collector for the next tick.
func (c *collector) drain() ([]protocol.GridOverlay, []protocol.DamageEvent, []protocol.PressureEvent, []damageRecord, int) {
	var grids []protocol.GridOverlay
	total := 0
	ids := make([]string, 0, len(c.changed))
	for id := range c.changed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		set := c.changed[id]
		tiles := make([][2]int, 0, len(set))
		for p := range set {
			tiles = append(tiles, [2]int{p.X, p.Y})
		}
		sort.Slice(tiles, func(i, j int) bool {
			if tiles[i][0] != tiles[j][0] {
				return tiles[i][0] < tiles[j][0]
			}
			return tiles[i][1] < tiles[j][1]
		})
		grids = append(grids, protocol.GridOverlay{GridID: id, Tiles: tiles})
		total += len(tiles)
		delete(c.changed, id)
	}

	damage := c.damage
	pressure := c.pressure
	instr := c.damageInstr
	c.damage = nil
	c.pressure = nil
	c.damageInstr = nil
	return grids, damage, pressure, instr, total
}
