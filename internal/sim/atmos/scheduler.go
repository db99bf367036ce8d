package atmos

import "time"

// The per-grid pipeline is a resumable state machine: stages run in order,
// each in batches, and the whole thing yields mid-stage when the tick's
// processing budget runs out, resuming at the same cursor next tick.

type Stage uint8

const (
	StageRevalidate Stage = iota
	StageEqualize
	StageActiveTiles
	StageExcitedGroups
	StageHighPressureDelta
	StageSubjects
	StageHotspots
	StageSuperconductivity
	StagePipeNets
	StageDevices

	stageCount
)

func (s Stage) String() string {
	switch s {
	case StageRevalidate:
		return "revalidate"
	case StageEqualize:
		return "equalize"
	case StageActiveTiles:
		return "active_tiles"
	case StageExcitedGroups:
		return "excited_groups"
	case StageHighPressureDelta:
		return "high_pressure_delta"
	case StageSubjects:
		return "subjects"
	case StageHotspots:
		return "hotspots"
	case StageSuperconductivity:
		return "superconductivity"
	case StagePipeNets:
		return "pipe_nets"
	default:
		return "devices"
	}
}

// StageRunner is an external processing stage (full equalization, pipe
// nets, devices). Process handles up to limit items and reports whether
// more remain.
type StageRunner interface {
	Process(limit int) (more bool)
}

// stageBatch is how many items run between budget checks.
const stageBatch = 64

type pipelineState struct {
	inCycle bool
	stage   Stage
	cursor  int

	cycleStart   time.Time
	cycleElapsed time.Duration
	yields       int
}

// CycleStats summarizes one completed macro-cycle.
type CycleStats struct {
	Cycle        int64         `json:"cycle"`
	ActiveTiles  int           `json:"active_tiles"`
	TilesShared  int64         `json:"tiles_shared"`
	GroupsMerged int64         `json:"groups_merged"`
	Hotspots     int           `json:"hotspots"`
	Subjects     int           `json:"subjects"`
	Yields       int           `json:"yields"`
	Elapsed      time.Duration `json:"elapsed_ns"`
}

// SetEqualizeStage installs the external full-equalization solver hook. It
// only runs while EqualizationEnabled is set.
func (ga *GridAtmosphere) SetEqualizeStage(r StageRunner) { ga.equalizeStage = r }
func (ga *GridAtmosphere) SetPipeNetStage(r StageRunner)  { ga.pipeNetStage = r }
func (ga *GridAtmosphere) SetDeviceStage(r StageRunner)   { ga.deviceStage = r }

// ProcessTick advances the pipeline under the given time budget. It returns
// the finished macro-cycle's stats when the cycle completed this tick, nil
// when it yielded partway.
func (ga *GridAtmosphere) ProcessTick(budget time.Duration) *CycleStats {
	st := &ga.sched
	start := time.Now()

	if !st.inCycle {
		ga.beginCycle(start)
	}

	for {
		more := ga.runStageBatch(st.stage)
		if more {
			if time.Since(start) > budget {
				st.yields++
				st.cycleElapsed += time.Since(start)
				return nil
			}
			continue
		}
		st.stage++
		st.cursor = 0
		if st.stage == stageCount {
			st.cycleElapsed += time.Since(start)
			return ga.finishCycle()
		}
		if time.Since(start) > budget {
			st.yields++
			st.cycleElapsed += time.Since(start)
			return nil
		}
	}
}

func (ga *GridAtmosphere) beginCycle(now time.Time) {
	st := &ga.sched
	st.inCycle = true
	st.stage = StageRevalidate
	st.cursor = 0
	st.cycleStart = now
	st.cycleElapsed = 0
	st.yields = 0

	ga.cycle++
	ga.tilesShared = 0
	ga.groupsMerged = 0

	// Snapshot the active set: diffusion iterates this cycle's membership
	// even as tiles activate or settle mid-cycle.
	ga.activeSnap = append(ga.activeSnap[:0], ga.active...)
}

func (ga *GridAtmosphere) finishCycle() *CycleStats {
	st := &ga.sched
	st.inCycle = false
	return &CycleStats{
		Cycle:        ga.cycle,
		ActiveTiles:  len(ga.active),
		TilesShared:  ga.tilesShared,
		GroupsMerged: ga.groupsMerged,
		Hotspots:     len(ga.hotspots),
		Subjects:     len(ga.subjects.subjects),
		Yields:       st.yields,
		Elapsed:      st.cycleElapsed,
	}
}

// runStageBatch advances one stage by one batch. Reports whether the stage
// has more work.
func (ga *GridAtmosphere) runStageBatch(s Stage) bool {
	st := &ga.sched
	switch s {
	case StageRevalidate:
		n := 0
		for st.cursor < len(ga.invalid) && n < stageBatch {
			ga.revalidateTile(ga.invalid[st.cursor])
			st.cursor++
			n++
		}
		if st.cursor >= len(ga.invalid) {
			ga.invalid = ga.invalid[:0]
			return false
		}
		return true

	case StageEqualize:
		if !ga.EqualizationEnabled || ga.equalizeStage == nil {
			return false
		}
		return ga.equalizeStage.Process(stageBatch)

	case StageActiveTiles:
		if st.cursor >= len(ga.activeSnap) {
			return false
		}
		end := st.cursor + stageBatch
		if end > len(ga.activeSnap) {
			end = len(ga.activeSnap)
		}
		ga.processTilesParallel(ga.activeSnap[st.cursor:end])
		st.cursor = end
		return st.cursor < len(ga.activeSnap)

	case StageExcitedGroups:
		ga.processGroups()
		return false

	case StageHighPressureDelta:
		ga.resolveHighPressureDelta()
		return false

	case StageSubjects:
		ga.processSubjects()
		return false

	case StageHotspots:
		ga.processHotspots()
		return false

	case StageSuperconductivity:
		ga.processSuperconductivity()
		return false

	case StagePipeNets:
		if ga.pipeNetStage == nil {
			return false
		}
		return ga.pipeNetStage.Process(stageBatch)

	default:
		if ga.deviceStage == nil {
			return false
		}
		return ga.deviceStage.Process(stageBatch)
	}
}
