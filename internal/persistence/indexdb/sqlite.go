// Package indexdb maintains a read-model index of the simulation in
// sqlite: per-tick digests, finished macro-cycle stats and snapshot
// metadata. It never feeds back into the sim and must not affect
// determinism; writes are async and dropped when the indexer falls behind.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"atmoscape.dev/internal/persistence/snapshot"
	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqCycle
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	cycle    cycleRow
	snapshot snapshotRow
}

type cycleRow struct {
	GridID string
	Stats  atmos.CycleStats
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	Grids    int
	Tiles    int
	Subjects int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			changed_tiles INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cycles (
			grid_id TEXT NOT NULL,
			cycle INTEGER NOT NULL,
			active_tiles INTEGER NOT NULL,
			tiles_shared INTEGER NOT NULL,
			groups_merged INTEGER NOT NULL,
			hotspots INTEGER NOT NULL,
			subjects INTEGER NOT NULL,
			yields INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (grid_id, cycle)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_grid ON cycles(grid_id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			grids INTEGER NOT NULL,
			tiles INTEGER NOT NULL,
			subjects INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

func (s *SQLiteIndex) RecordCycle(gridID string, stats atmos.CycleStats) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqCycle, cycle: cycleRow{GridID: gridID, Stats: stats}}:
	default:
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	tiles, subjects := 0, 0
	for _, g := range snap.Grids {
		tiles += len(g.Tiles)
		subjects += len(g.Subjects)
	}
	r := snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		Grids:    len(snap.Grids),
		Tiles:    tiles,
		Subjects: subjects,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// UpsertMeta stores small key/value facts (gas digest, tuning json).
func (s *SQLiteIndex) UpsertMeta(key, value string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO meta(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		switch r.kind {
		case reqTick:
			raw, _ := json.Marshal(r.tick)
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO ticks(tick, digest, changed_tiles, raw_json) VALUES(?,?,?,?)`,
				r.tick.Tick, r.tick.Digest, r.tick.ChangedTiles, string(raw))
		case reqCycle:
			st := r.cycle.Stats
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO cycles(grid_id, cycle, active_tiles, tiles_shared, groups_merged, hotspots, subjects, yields, elapsed_us, recorded_at)
				 VALUES(?,?,?,?,?,?,?,?,?,?)`,
				r.cycle.GridID, st.Cycle, st.ActiveTiles, st.TilesShared, st.GroupsMerged,
				st.Hotspots, st.Subjects, st.Yields, st.Elapsed.Microseconds(),
				time.Now().UTC().Format(time.RFC3339Nano))
		case reqSnapshot:
			_, _ = s.db.Exec(
				`INSERT OR REPLACE INTO snapshots(tick, path, grids, tiles, subjects) VALUES(?,?,?,?,?)`,
				r.snapshot.Tick, r.snapshot.Path, r.snapshot.Grids, r.snapshot.Tiles, r.snapshot.Subjects)
		}
	}
}

// LatestSnapshotPath returns the most recent indexed snapshot path, or "".
func (s *SQLiteIndex) LatestSnapshotPath() string {
	if s == nil {
		return ""
	}
	var path string
	row := s.db.QueryRow(`SELECT path FROM snapshots ORDER BY tick DESC LIMIT 1`)
	if err := row.Scan(&path); err != nil {
		return ""
	}
	return path
}
