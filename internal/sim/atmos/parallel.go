package atmos

import (
	"runtime"
	"sync"
)

// Parallel diffusion: the sequential pre-pass archives tiles and decides,
// per direction, whether a share should occur; the parallel pass computes
// every flagged share from archived inputs only; the sequential finalize
// applies the results. Group creation and merging happen in the pre-pass
// because they mutate grid-level state.

// shareItem is one flagged (tile, direction) exchange. No pair is flagged
// twice: the pre-pass marks tiles processed, and later tiles skip already
// processed neighbors.
type shareItem struct {
	tile          *Tile
	neighbor      *Tile
	dir           Direction
	adjacentCount int
	delta         shareDelta
}

// batchRunner fans a half-open index range out to a fixed worker pool and
// joins before returning. Batches receive disjoint slices, so workers never
// contend on an item.
type batchRunner struct {
	workers int
}

func newBatchRunner(workers int) *batchRunner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &batchRunner{workers: workers}
}

func (r *batchRunner) Run(n int, fn func(start, end int)) {
	if n == 0 {
		return
	}
	workers := r.workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// processTilesParallel runs one diffusion cycle over the given tiles using
// the three-phase split. Equivalent in effect to calling processTile on
// each, but order-invariant by construction.
func (ga *GridAtmosphere) processTilesParallel(tiles []*Tile) {
	ga.workItems = ga.workItems[:0]
	for _, t := range tiles {
		ga.prepareTile(t)
	}

	items := ga.workItems
	ga.runner.Run(len(items), func(start, end int) {
		for i := start; i < end; i++ {
			it := &items[i]
			it.delta = it.tile.Air.computeShare(ga.cat, it.neighbor.Air, it.adjacentCount)
		}
	})

	for i := range items {
		it := &items[i]
		difference := it.tile.Air.applyShare(ga.cat, it.neighbor.Air, it.delta)
		ga.tilesShared++
		if difference != 0 && !ga.EqualizationEnabled {
			if difference > 0 {
				it.tile.considerPressureDifference(it.dir, difference)
				ga.queueHighPressureDelta(it.tile)
			} else {
				it.neighbor.considerPressureDifference(it.dir.Opposite(), -difference)
				ga.queueHighPressureDelta(it.neighbor)
			}
		}
		ga.lastShareCheck(it.tile)
	}

	for _, t := range tiles {
		if t.excited && t.Air != nil {
			ga.finishTile(t)
		}
	}
}

// prepareTile is the pre-pass body: archive, mark processed, decide shares.
func (ga *GridAtmosphere) prepareTile(t *Tile) {
	if t.Air == nil {
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
		t.shareDirs |= 1 << d
		ga.workItems = append(ga.workItems, shareItem{
			tile:          t,
			neighbor:      n,
			dir:           d,
			adjacentCount: adjacentCount,
		})
	}
}
