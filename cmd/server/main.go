package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"atmoscape.dev/internal/persistence/indexdb"
	persistlog "atmoscape.dev/internal/persistence/log"
	"atmoscape.dev/internal/persistence/snapshot"
	"atmoscape.dev/internal/sim/atmos"
	"atmoscape.dev/internal/sim/gases"
	"atmoscape.dev/internal/sim/tuning"
	"atmoscape.dev/internal/sim/world"
	"atmoscape.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cat, err := gases.Load(filepath.Join(*configDir, "gases.json"))
	if err != nil {
		logger.Fatalf("load gas catalog: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	// Tuning is required for a fresh world; on resume the snapshot carries
	// the effective values and a missing file falls back to defaults.
	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	// Read-model index; never feeds back into the sim.
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertMeta("gas_digest", cat.Digest); err != nil {
			logger.Printf("index: upsert meta: %v", err)
		}
		if b, err := json.Marshal(tune); err == nil {
			_ = idx.UpsertMeta("tuning", string(b))
		}
	}

	w, err := world.New(world.Config{ID: *worldID, Tuning: tune, Catalog: cat})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			logger.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if snap.GasDigest != "" && snap.GasDigest != cat.Digest {
			logger.Fatalf("snapshot gas catalog mismatch: have=%s snap=%s", cat.Digest, snap.GasDigest)
		}
		w.ImportSnapshot(snap)
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	defer tickLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	if idx != nil {
		w.SetStatsSink(idx)
	}
	w.SetDamageSink(damageLogger{logger})

	// Snapshot writer.
	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP atmoscape_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE atmoscape_world_tick gauge\n")
		fmt.Fprintf(rw, "atmoscape_world_tick{world=%q} %d\n", *worldID, tick)

		fmt.Fprintf(rw, "# HELP atmoscape_world_grids Grid count.\n")
		fmt.Fprintf(rw, "# TYPE atmoscape_world_grids gauge\n")
		fmt.Fprintf(rw, "atmoscape_world_grids{world=%q} %d\n", *worldID, m.Grids)

		fmt.Fprintf(rw, "# HELP atmoscape_world_clients Connected overlay clients.\n")
		fmt.Fprintf(rw, "# TYPE atmoscape_world_clients gauge\n")
		fmt.Fprintf(rw, "atmoscape_world_clients{world=%q} %d\n", *worldID, m.Clients)

		fmt.Fprintf(rw, "# HELP atmoscape_world_active_tiles Tiles in the active set across all grids.\n")
		fmt.Fprintf(rw, "# TYPE atmoscape_world_active_tiles gauge\n")
		fmt.Fprintf(rw, "atmoscape_world_active_tiles{world=%q} %d\n", *worldID, m.ActiveTiles)

		fmt.Fprintf(rw, "# HELP atmoscape_world_subjects Registered delta-pressure subjects.\n")
		fmt.Fprintf(rw, "# TYPE atmoscape_world_subjects gauge\n")
		fmt.Fprintf(rw, "atmoscape_world_subjects{world=%q} %d\n", *worldID, m.Subjects)

		fmt.Fprintf(rw, "# HELP atmoscape_world_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE atmoscape_world_queue_depth gauge\n")
		fmt.Fprintf(rw, "atmoscape_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "edits", m.QueueDepths.Edits)
		fmt.Fprintf(rw, "atmoscape_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "subscribe", m.QueueDepths.Subscribe)
		fmt.Fprintf(rw, "atmoscape_world_queue_depth{world=%q,queue=%q} %d\n", *worldID, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP atmoscape_world_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE atmoscape_world_step_ms gauge\n")
		fmt.Fprintf(rw, "atmoscape_world_step_ms{world=%q} %.3f\n", *worldID, m.StepMS)
	})

	enableAdminHTTP := envBool("ATMOS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("ATMOS_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string             `json:"world_id"`
				Tick    uint64             `json:"tick"`
				Metrics world.WorldMetrics `json:"metrics"`
			}{
				WorldID: *worldID,
				Tick:    w.CurrentTick(),
				Metrics: w.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (ATMOS_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (ATMOS_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		tick, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

// damageLogger is the default damage sink: the engine only decides damage,
// consumers apply it. With no game attached we log instructions.
type damageLogger struct {
	log *log.Logger
}

func (d damageLogger) Apply(gridID string, instr atmos.DamageInstruction) {
	d.log.Printf("damage grid=%s subject=%s pos=(%d,%d) pressure=%.1f delta=%.1f amount=%.2f",
		gridID, instr.SubjectID, instr.Pos.X, instr.Pos.Y, instr.Pressure, instr.Delta, instr.Damage)
}
