package world

import (
	"fmt"
	"sync/atomic"

	"atmoscape.dev/internal/persistence/snapshot"
	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/gases"
	"atmoscape.dev/internal/sim/pipenet"
	"atmoscape.dev/internal/sim/tuning"
)

type Config struct {
	ID      string
	Tuning  tuning.Tuning
	Catalog *gases.Catalog
}

// World is the tick driver. It owns every grid's atmosphere pipeline and is
// single-threaded: all state is touched only from the loop goroutine (or
// from StepOnce in tests). Grids are independent; a grid's pipeline state
// is never reentered before it yields.
type World struct {
	cfg Config
	cat *gases.Catalog

	tick atomic.Uint64

	grids map[string]*Grid

	clients      map[string]*clientState
	nextClientID atomic.Uint64

	collector *collector

	edits     chan EditOp
	subscribe chan SubscribeRequest
	leave     chan string
	stop      chan struct{}

	// Optional sinks, all nil-safe.
	tickLogger   TickLogger
	damageSink   DamageSink
	snapshotSink chan<- snapshot.SnapshotV1
	statsSink    StatsSink

	metrics atomic.Pointer[WorldMetrics]
}

// WorldMetrics is a read-only snapshot published after each tick for the
// metrics endpoint. Safe to read from any goroutine.
type WorldMetrics struct {
	Tick        uint64  `json:"tick"`
	Grids       int     `json:"grids"`
	Clients     int     `json:"clients"`
	ActiveTiles int     `json:"active_tiles"`
	Subjects    int     `json:"subjects"`
	StepMS      float64 `json:"step_ms"`
	QueueDepths struct {
		Edits     int `json:"edits"`
		Subscribe int `json:"subscribe"`
		Leave     int `json:"leave"`
	} `json:"queue_depths"`
}

// Grid pairs a grid's atmosphere with its pipe-network manager.
type Grid struct {
	Atmos *atmos.GridAtmosphere
	Pipes *pipenet.Manager
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// DamageSink consumes deferred damage instructions; the engine never
// applies health changes itself.
type DamageSink interface {
	Apply(gridID string, instr atmos.DamageInstruction)
}

// StatsSink receives finished macro-cycle stats (read-model indexing).
type StatsSink interface {
	RecordCycle(gridID string, stats atmos.CycleStats)
}

// TickLogEntry records one tick: the external edits that applied, the
// macro-cycles that finished and the resulting state digest. The edit list
// makes the log replayable from a snapshot.
type TickLogEntry struct {
	Tick         uint64      `json:"tick"`
	Edits        []EditOp    `json:"edits,omitempty"`
	Grids        []GridCycle `json:"grids,omitempty"`
	ChangedTiles int         `json:"changed_tiles"`
	Digest       string      `json:"digest"`
}

type GridCycle struct {
	GridID string           `json:"grid_id"`
	Stats  atmos.CycleStats `json:"stats"`
}

type SubscribeRequest struct {
	Name string
	Out  chan []byte
	Resp chan SubscribeResponse
}

type SubscribeResponse struct {
	ClientID   string
	WorldID    string
	GasDigest  string
	TickRateHz int
}

type clientState struct {
	Out chan []byte
}

func New(cfg Config) (*World, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("world: empty id")
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = gases.Builtin()
	}
	w := &World{
		cfg:       cfg,
		cat:       cat,
		grids:     map[string]*Grid{},
		clients:   map[string]*clientState{},
		collector: newCollector(),
		edits:     make(chan EditOp, 1024),
		subscribe: make(chan SubscribeRequest, 64),
		leave:     make(chan string, 64),
		stop:      make(chan struct{}),
	}
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetDamageSink(s DamageSink)                    { w.damageSink = s }
func (w *World) SetStatsSink(s StatsSink)                      { w.statsSink = s }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Edits() chan<- EditOp                { return w.edits }
func (w *World) Subscribe() chan<- SubscribeRequest  { return w.subscribe }
func (w *World) Leave() chan<- string                { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) Metrics() WorldMetrics {
	if m := w.metrics.Load(); m != nil {
		return *m
	}
	return WorldMetrics{}
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.Tuning.TickRateHz
}

// EnsureGrid creates the grid on first reference. Must run on the loop
// goroutine (or via StepOnce).
func (w *World) EnsureGrid(id string) *Grid {
	g := w.grids[id]
	if g != nil {
		return g
	}
	ga := atmos.NewGrid(atmos.Config{
		ID:                      id,
		Catalog:                 w.cat,
		GroupCooldown:           w.cfg.Tuning.ExcitedGroupCooldown,
		Workers:                 w.cfg.Tuning.Workers,
		EqualizationEnabled:     w.cfg.Tuning.EqualizationEnabled,
		DepressurizationEnabled: w.cfg.Tuning.DepressurizationEnabled,
		Events:                  w.collector,
	})
	g = &Grid{Atmos: ga, Pipes: pipenet.NewManager(ga)}
	w.grids[id] = g
	return g
}

func (w *World) GridByID(id string) *Grid { return w.grids[id] }

func (w *World) newClientID() string {
	return fmt.Sprintf("C%06d", w.nextClientID.Add(1))
}
