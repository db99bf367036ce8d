package atmos

// Sequential diffusion pass: for one active tile, archive, exchange with
// eligible neighbors, then run reactions and decide whether the tile stays
// active. Mirrored by the three-phase parallel variant in parallel.go.

// processTile runs one tile's diffusion step for the current cycle.
func (ga *GridAtmosphere) processTile(t *Tile) {
	if t.Air == nil {
		// Lost its mixture since activation; prune instead of dereference.
		ga.RemoveActiveTile(t, true)
		return
	}
	cycle := ga.cycle
	t.archiveIfNeeded(cycle)
	t.currentCycle = cycle

	adjacentCount := t.AdjacentCount()

	for d := Direction(0); d < DirectionCount; d++ {
		if !t.PassableTo(d) {
			continue
		}
		n := t.adjacent[d]
		if n.Air == nil || n.currentCycle >= cycle {
			continue
		}
		n.archiveIfNeeded(cycle)

		if !ga.decideShare(t, n) {
			continue
		}
		ga.shareBetween(t, n, d, adjacentCount)
	}

	ga.finishTile(t)
}

// decideShare decides whether t and n exchange air this cycle, merging or
// forming excited groups as a side effect. Exchange is unconditional inside
// one group; otherwise the archived compositions must differ beyond
// tolerance.
func (ga *GridAtmosphere) decideShare(t, n *Tile) bool {
	if t.group != NoGroup && n.group != NoGroup {
		if t.group != n.group {
			ga.mergeGroups(t.group, n.group)
		}
		return true
	}
	if !t.Air.CompareExchange(n.Air) {
		return false
	}
	ga.AddActiveTile(n)
	h := t.group
	if h == NoGroup {
		h = n.group
	}
	if h == NoGroup {
		h = ga.newGroup()
	}
	ga.addToGroup(h, t)
	ga.addToGroup(h, n)
	return true
}

// shareBetween performs the exchange and the post-share bookkeeping:
// pressure-delta routing (unless the full-equalization solver owns it) and
// the group-cooldown heuristics.
func (ga *GridAtmosphere) shareBetween(t, n *Tile, d Direction, adjacentCount int) {
	difference := t.Air.Share(ga.cat, n.Air, adjacentCount)
	ga.tilesShared++

	if difference != 0 && !ga.EqualizationEnabled {
		if difference > 0 {
			t.considerPressureDifference(d, difference)
			ga.queueHighPressureDelta(t)
		} else {
			n.considerPressureDifference(d.Opposite(), -difference)
			ga.queueHighPressureDelta(n)
		}
	}

	ga.lastShareCheck(t)
}

// lastShareCheck applies the cooldown policy: a significant share re-arms
// the group, a trace share fast-dissolves it.
func (ga *GridAtmosphere) lastShareCheck(t *Tile) {
	g := ga.group(t.group)
	if g == nil {
		return
	}
	switch {
	case t.Air.LastShare > MinimumAirToSuspend:
		g.ResetCooldown(ga.groupCooldownMax)
	case t.Air.LastShare > MinimumMolesDeltaToMove:
		g.QuickDissolve()
	}
}

// finishTile runs reactions, emits the changed-tile event, evaluates
// superconduction eligibility and prunes settled tiles from the active set.
func (ga *GridAtmosphere) finishTile(t *Tile) {
	reacted := ga.react(t)

	ga.events.TileChanged(ga.ID, t.Pos)

	if ga.superconductionEligible(t) {
		ga.considerSuperconductivity(t)
	}

	if t.group == NoGroup && !reacted && !t.superconducting && t.hotspot == nil {
		ga.RemoveActiveTile(t, true)
	}
}

func (ga *GridAtmosphere) queueHighPressureDelta(t *Tile) {
	if t.pressureQueued {
		return
	}
	t.pressureQueued = true
	ga.highPressureDelta = append(ga.highPressureDelta, t)
}

// resolveHighPressureDelta emits pressure events for tiles that accumulated
// a directional differential this cycle and clears the scratch.
func (ga *GridAtmosphere) resolveHighPressureDelta() {
	for _, t := range ga.highPressureDelta {
		if t.pressureMax > 0 {
			ga.events.PressureEvent(ga.ID, t.Pos, t.pressureDir, t.pressureMax)
		}
		t.clearPressureScratch()
	}
	ga.highPressureDelta = ga.highPressureDelta[:0]
}

// processGroups is the excited-group maintenance stage: tick cooldowns down
// and break down groups that ran out.
func (ga *GridAtmosphere) processGroups() {
	ga.liveGroups(func(h GroupHandle, g *ExcitedGroup) bool {
		if len(g.members) == 0 {
			ga.freeGroup(h)
			return true
		}
		g.cooldown--
		if g.cooldown <= 0 {
			ga.breakdownGroup(h)
		}
		return true
	})
}
