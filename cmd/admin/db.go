package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// dbCmd queries the server's read-model index. Query names mirror the
// table names: snapshots (default), ticks, cycles, meta.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	gridID := fs.String("grid", "", "grid_id filter (cycles)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT tick,path,grids,tiles,subjects FROM snapshots ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick     int64  `json:"tick"`
				Path     string `json:"path"`
				Grids    int    `json:"grids"`
				Tiles    int    `json:"tiles"`
				Subjects int    `json:"subjects"`
			}
			if err := rows.Scan(&r.Tick, &r.Path, &r.Grids, &r.Tiles, &r.Subjects); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "ticks":
		rows, err := db.Query(`SELECT tick,digest,changed_tiles FROM ticks ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick         int64  `json:"tick"`
				Digest       string `json:"digest"`
				ChangedTiles int    `json:"changed_tiles"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.ChangedTiles); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "cycles":
		query := `SELECT grid_id,cycle,active_tiles,tiles_shared,groups_merged,hotspots,subjects,yields,elapsed_us,recorded_at FROM cycles`
		var qargs []any
		if *gridID != "" {
			query += ` WHERE grid_id=?`
			qargs = append(qargs, *gridID)
		}
		query += ` ORDER BY cycle DESC LIMIT ?`
		qargs = append(qargs, *limit)
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				GridID       string `json:"grid_id"`
				Cycle        int64  `json:"cycle"`
				ActiveTiles  int    `json:"active_tiles"`
				TilesShared  int64  `json:"tiles_shared"`
				GroupsMerged int64  `json:"groups_merged"`
				Hotspots     int    `json:"hotspots"`
				Subjects     int    `json:"subjects"`
				Yields       int    `json:"yields"`
				ElapsedUs    int64  `json:"elapsed_us"`
				RecordedAt   string `json:"recorded_at"`
			}
			if err := rows.Scan(&r.GridID, &r.Cycle, &r.ActiveTiles, &r.TilesShared, &r.GroupsMerged,
				&r.Hotspots, &r.Subjects, &r.Yields, &r.ElapsedUs, &r.RecordedAt); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	case "meta":
		rows, err := db.Query(`SELECT key,value FROM meta ORDER BY key`)
		if err != nil {
			fail("query", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if err := rows.Scan(&r.Key, &r.Value); err != nil {
				fail("scan", err)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fail("rows", err)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want snapshots|ticks|cycles|meta)")
		os.Exit(2)
	}
}

func fail(what string, err error) {
	fmt.Fprintln(os.Stderr, what+":", err)
	os.Exit(1)
}
