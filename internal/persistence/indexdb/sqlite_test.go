package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"atmoscape.dev/internal/persistence/snapshot"
	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/world"
)

func TestSQLiteIndex_WritesSurviveClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	for tick := uint64(1); tick <= 3; tick++ {
		if err := idx.WriteTick(world.TickLogEntry{
			Tick:         tick,
			ChangedTiles: int(tick) * 10,
			Digest:       "digest",
		}); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	idx.RecordCycle("station", atmos.CycleStats{
		Cycle:       7,
		ActiveTiles: 42,
		TilesShared: 100,
		Elapsed:     3 * time.Millisecond,
	})
	idx.RecordSnapshot("/tmp/5.snap.zst", snapshot.SnapshotV1{
		Header: snapshot.Header{Tick: 5},
		Grids: []snapshot.GridV1{
			{ID: "station", Tiles: make([]snapshot.TileV1, 9)},
		},
	})
	if err := idx.UpsertMeta("gas_digest", "abc"); err != nil {
		t.Fatalf("UpsertMeta: %v", err)
	}

	// Close drains the async queue before closing the db.
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen index: %v", err)
	}
	if got := reopened.LatestSnapshotPath(); got != "/tmp/5.snap.zst" {
		t.Fatalf("LatestSnapshotPath = %q", got)
	}
	if err := reopened.Close(); err != nil {
		t.Fatalf("close reopened: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	var ticks int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ticks`).Scan(&ticks); err != nil {
		t.Fatalf("count ticks: %v", err)
	}
	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}

	var elapsedUs int64
	if err := db.QueryRow(`SELECT elapsed_us FROM cycles WHERE grid_id='station' AND cycle=7`).Scan(&elapsedUs); err != nil {
		t.Fatalf("cycle row: %v", err)
	}
	if elapsedUs != 3000 {
		t.Fatalf("elapsed_us = %d, want 3000", elapsedUs)
	}

	var tiles int
	if err := db.QueryRow(`SELECT tiles FROM snapshots WHERE tick=5`).Scan(&tiles); err != nil {
		t.Fatalf("snapshot row: %v", err)
	}
	if tiles != 9 {
		t.Fatalf("snapshot tiles = %d, want 9", tiles)
	}

	var digest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='gas_digest'`).Scan(&digest); err != nil {
		t.Fatalf("meta row: %v", err)
	}
	if digest != "abc" {
		t.Fatalf("meta value = %q", digest)
	}
}

func TestSQLiteIndex_NilReceiverIsSafe(t *testing.T) {
	var idx *SQLiteIndex
	if err := idx.WriteTick(world.TickLogEntry{Tick: 1}); err != nil {
		t.Fatalf("nil WriteTick: %v", err)
	}
	idx.RecordCycle("g", atmos.CycleStats{})
	idx.RecordSnapshot("p", snapshot.SnapshotV1{})
	if got := idx.LatestSnapshotPath(); got != "" {
		t.Fatalf("nil LatestSnapshotPath = %q", got)
	}
}
