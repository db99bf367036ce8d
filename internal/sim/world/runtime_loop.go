package world

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"atmoscape.dev/internal/protocol"
	"atmoscape.dev/internal/sim/atmos"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.Tuning.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingEdits []EditOp
	var pendingSubs []SubscribeRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case op := <-w.edits:
			pendingEdits = append(pendingEdits, op)
		case req := <-w.subscribe:
			pendingSubs = append(pendingSubs, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case <-ticker.C:
			w.step(pendingEdits, pendingSubs, pendingLeaves)
			pendingEdits = pendingEdits[:0]
			pendingSubs = pendingSubs[:0]
			pendingLeaves = pendingLeaves[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick with the same ordering
// semantics as the server loop. Primarily for deterministic tests/replays.
func (w *World) StepOnce(edits []EditOp) (tick uint64, digest string) {
	w.step(edits, nil, nil)
	tick = w.tick.Load()
	return tick, w.stateDigest()
}

func (w *World) step(edits []EditOp, subs []SubscribeRequest, leaves []string) {
	stepStart := time.Now()
	for _, req := range subs {
		w.handleSubscribe(req)
	}
	for _, id := range leaves {
		delete(w.clients, id)
	}
	for _, op := range edits {
		w.applyEdit(op)
	}

	tick := w.tick.Add(1)

	ids := w.sortedGridIDs()
	budget := w.cfg.Tuning.MaxProcessTime()
	remaining := budget
	var cycles []GridCycle

	// Rotate the starting grid so a budget-starved tail does not starve the
	// same grids every tick.
	offset := 0
	if len(ids) > 0 {
		offset = int(tick) % len(ids)
	}
	for i := range ids {
		id := ids[(i+offset)%len(ids)]
		if remaining <= 0 {
			break
		}
		start := time.Now()
		if stats := w.grids[id].Atmos.ProcessTick(remaining); stats != nil {
			cycles = append(cycles, GridCycle{GridID: id, Stats: *stats})
			if w.statsSink != nil {
				w.statsSink.RecordCycle(id, *stats)
			}
		}
		remaining -= time.Since(start)
	}

	grids, damage, pressure, instr, changed := w.collector.drain()

	if w.damageSink != nil {
		for _, r := range instr {
			w.damageSink.Apply(r.gridID, r.instr)
		}
	}

	if len(w.clients) > 0 && (len(grids) > 0 || len(damage) > 0 || len(pressure) > 0) {
		msg := protocol.OverlayMsg{
			Type:            protocol.TypeOverlay,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Grids:           grids,
			Damage:          damage,
			Pressure:        pressure,
		}
		if b, err := json.Marshal(msg); err == nil {
			for _, c := range w.clients {
				sendLatest(c.Out, b)
			}
		}
	}

	if w.tickLogger != nil {
		// Copy: the caller reuses the edits backing array and sinks may
		// hold the entry past this tick.
		var logged []EditOp
		if len(edits) > 0 {
			logged = append(logged, edits...)
		}
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:         tick,
			Edits:        logged,
			Grids:        cycles,
			ChangedTiles: changed,
			Digest:       w.stateDigest(),
		})
	}

	if w.snapshotSink != nil && w.cfg.Tuning.SnapshotEveryTicks > 0 &&
		tick%uint64(w.cfg.Tuning.SnapshotEveryTicks) == 0 {
		select {
		case w.snapshotSink <- w.ExportSnapshot():
		default:
		}
	}

	m := &WorldMetrics{
		Tick:    tick,
		Grids:   len(w.grids),
		Clients: len(w.clients),
		StepMS:  float64(time.Since(stepStart).Microseconds()) / 1000,
	}
	for _, g := range w.grids {
		m.ActiveTiles += g.Atmos.ActiveCount()
		m.Subjects += g.Atmos.SubjectCount()
	}
	m.QueueDepths.Edits = len(w.edits)
	m.QueueDepths.Subscribe = len(w.subscribe)
	m.QueueDepths.Leave = len(w.leave)
	w.metrics.Store(m)
}

func (w *World) handleSubscribe(req SubscribeRequest) {
	id := w.newClientID()
	w.clients[id] = &clientState{Out: req.Out}
	if req.Resp != nil {
		req.Resp <- SubscribeResponse{
			ClientID:   id,
			WorldID:    w.cfg.ID,
			GasDigest:  w.cat.Digest,
			TickRateHz: w.cfg.Tuning.TickRateHz,
		}
	}
}

func (w *World) sortedGridIDs() []string {
	ids := make([]string, 0, len(w.grids))
	for id := range w.grids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sendLatest delivers without blocking; on a full queue it drops the oldest
// message so slow overlay clients see the freshest state.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

// IgniteAt is a loop-goroutine helper for tests and admin tools.
func (w *World) IgniteAt(gridID string, p atmos.Pos, temperature, volume float64) {
	w.EnsureGrid(gridID).Atmos.Ignite(p, temperature, volume)
}
