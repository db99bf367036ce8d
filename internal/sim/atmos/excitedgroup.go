package atmos

// ExcitedGroup is a transient cluster of tiles considered to be equalizing
// together. Members hold the group's handle, never the group itself; the
// grid owns the arena. A group dissolves when its cooldown runs out without
// any member moving a significant amount of gas.
type ExcitedGroup struct {
	members  []*Tile
	cooldown int
}

func (g *ExcitedGroup) Size() int { return len(g.members) }

// ResetCooldown re-arms the group after a member moved enough gas to matter.
func (g *ExcitedGroup) ResetCooldown(max int) { g.cooldown = max }

// QuickDissolve zeroes the cooldown so the group dies on the next
// maintenance pass; used when remaining imbalance is negligible.
func (g *ExcitedGroup) QuickDissolve() { g.cooldown = 0 }

// newGroup allocates a group slot, reusing freed arena entries.
func (ga *GridAtmosphere) newGroup() GroupHandle {
	g := &ExcitedGroup{cooldown: ga.groupCooldownMax}
	if n := len(ga.groupFree); n > 0 {
		h := ga.groupFree[n-1]
		ga.groupFree = ga.groupFree[:n-1]
		ga.groups[h] = g
		return h
	}
	ga.groups = append(ga.groups, g)
	return GroupHandle(len(ga.groups) - 1)
}

func (ga *GridAtmosphere) group(h GroupHandle) *ExcitedGroup {
	if h == NoGroup || int(h) >= len(ga.groups) {
		return nil
	}
	return ga.groups[h]
}

// addToGroup attaches tile to the group at h. A tile already in another
// group triggers a merge instead.
func (ga *GridAtmosphere) addToGroup(h GroupHandle, tile *Tile) {
	if tile.group == h {
		return
	}
	if tile.group != NoGroup {
		ga.mergeGroups(h, tile.group)
		return
	}
	g := ga.group(h)
	g.members = append(g.members, tile)
	tile.group = h
}

// mergeGroups folds the smaller group into the larger one and frees the
// emptied slot. Merging a group with itself is a no-op.
func (ga *GridAtmosphere) mergeGroups(a, b GroupHandle) GroupHandle {
	if a == b {
		return a
	}
	ga.groupsMerged++
	keep, drop := a, b
	if ga.group(a).Size() < ga.group(b).Size() {
		keep, drop = b, a
	}
	kg, dg := ga.group(keep), ga.group(drop)
	for _, t := range dg.members {
		t.group = keep
		kg.members = append(kg.members, t)
	}
	if dg.cooldown > kg.cooldown {
		kg.cooldown = dg.cooldown
	}
	ga.freeGroup(drop)
	return keep
}

// disposeGroup releases every member's reference and frees the slot.
func (ga *GridAtmosphere) disposeGroup(h GroupHandle) {
	g := ga.group(h)
	if g == nil {
		return
	}
	for _, t := range g.members {
		t.group = NoGroup
	}
	ga.freeGroup(h)
}

// breakdownGroup deactivates every member and disposes the group; used when
// the group's cooldown expires with nothing left to equalize.
func (ga *GridAtmosphere) breakdownGroup(h GroupHandle) {
	g := ga.group(h)
	if g == nil {
		return
	}
	for _, t := range g.members {
		t.group = NoGroup
		ga.RemoveActiveTile(t, false)
	}
	ga.freeGroup(h)
}

func (ga *GridAtmosphere) freeGroup(h GroupHandle) {
	g := ga.groups[h]
	g.members = nil
	ga.groups[h] = nil
	ga.groupFree = append(ga.groupFree, h)
}

// liveGroups iterates occupied arena slots.
func (ga *GridAtmosphere) liveGroups(fn func(GroupHandle, *ExcitedGroup) bool) {
	for i, g := range ga.groups {
		if g == nil {
			continue
		}
		if !fn(GroupHandle(i), g) {
			return
		}
	}
}
