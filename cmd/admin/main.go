// Command admin is the operator's toolbox: list world data directories,
// query the sqlite read-model index and inspect snapshots and grab the
// server's live state over the loopback admin endpoint.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"atmoscape.dev/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// inspectCmd decodes one snapshot file and prints its shape without the
// tile payload.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	tiles := fs.Bool("tiles", false, "also dump per-tile state")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin inspect [-tiles] <snapshot.snap.zst>")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	summary := struct {
		WorldID    string `json:"world_id"`
		Tick       uint64 `json:"tick"`
		GasDigest  string `json:"gas_digest"`
		TickRateHz int    `json:"tick_rate_hz"`
		Grids      []struct {
			ID       string `json:"id"`
			Tiles    int    `json:"tiles"`
			Subjects int    `json:"subjects"`
		} `json:"grids"`
	}{
		WorldID:    snap.Header.WorldID,
		Tick:       snap.Header.Tick,
		GasDigest:  snap.GasDigest,
		TickRateHz: snap.TickRateHz,
	}
	for _, g := range snap.Grids {
		summary.Grids = append(summary.Grids, struct {
			ID       string `json:"id"`
			Tiles    int    `json:"tiles"`
			Subjects int    `json:"subjects"`
		}{ID: g.ID, Tiles: len(g.Tiles), Subjects: len(g.Subjects)})
	}
	printJSON(summary)

	if *tiles {
		for _, g := range snap.Grids {
			for _, t := range g.Tiles {
				printJSON(t)
			}
		}
	}
}

func printJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal:", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}
