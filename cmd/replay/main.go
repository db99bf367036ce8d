// Command replay verifies tick logs against a snapshot: it resumes a world
// from the snapshot, re-applies the logged edits tick by tick and compares
// state digests.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"atmoscape.dev/internal/persistence/snapshot"
	"atmoscape.dev/internal/sim/gases"
	"atmoscape.dev/internal/sim/tuning"
	"atmoscape.dev/internal/sim/world"
)

func main() {
	var (
		snapPath  = flag.String("snapshot", "", "path to .snap.zst")
		ticksDir  = flag.String("ticks", "", "ticks dir containing ticks-*.jsonl.zst (optional)")
		configDir = flag.String("configs", "./configs", "config directory")
		fromTick  = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick    = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	tiles, subjects := 0, 0
	for _, g := range snap.Grids {
		tiles += len(g.Tiles)
		subjects += len(g.Subjects)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d grids=%d tiles=%d subjects=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick,
		len(snap.Grids), tiles, subjects)

	if *ticksDir == "" {
		return
	}

	cat, err := gases.Load(filepath.Join(*configDir, "gases.json"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load gas catalog:", err)
		os.Exit(1)
	}
	if snap.GasDigest != "" && snap.GasDigest != cat.Digest {
		fmt.Fprintln(os.Stderr, "gas catalog mismatch:", cat.Digest, "vs snapshot", snap.GasDigest)
		os.Exit(1)
	}

	// Rebuild the effective tuning from the snapshot so replay uses the
	// same budgets and toggles as the original run.
	tune := tuning.Defaults()
	if snap.TickRateHz > 0 {
		tune.TickRateHz = snap.TickRateHz
	}
	if snap.MaxProcessTimeUs > 0 {
		tune.MaxProcessTimeUs = snap.MaxProcessTimeUs
	}
	if snap.ExcitedGroupCooldown > 0 {
		tune.ExcitedGroupCooldown = snap.ExcitedGroupCooldown
	}
	tune.SnapshotEveryTicks = 0 // no snapshots during replay
	tune.EqualizationEnabled = snap.EqualizationEnabled

	w, err := world.New(world.Config{ID: snap.Header.WorldID, Tuning: tune, Catalog: cat})
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	w.ImportSnapshot(snap)

	startTick := w.CurrentTick()
	verifyFrom := *fromTick
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	files, err := listTickFiles(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	var checked uint64
	for _, path := range files {
		if err := replayFile(w, path, startTick, verifyFrom, *toTick, &checked); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if *toTick != 0 && w.CurrentTick() > *toTick {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", checked, snap.Header.Tick)
}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(w *world.World, path string, startTick, verifyFrom, toTick uint64, checked *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		var entry world.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick <= startTick {
			continue
		}
		if toTick != 0 && entry.Tick > toTick {
			return nil
		}
		if entry.Tick != w.CurrentTick()+1 {
			return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", w.CurrentTick()+1, entry.Tick, filepath.Base(path))
		}

		tick, gotDigest := w.StepOnce(entry.Edits)

		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
		}

		if tick >= verifyFrom {
			*checked++
			if gotDigest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
	}
	return sc.Err()
}
