package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "subspace.dev/internal/persistence/log"
	"subspace.dev/internal/persistence/snapshot"
	"subspace.dev/internal/sim/catalogs"
	"subspace.dev/internal/sim/tuning"
	"subspace.dev/internal/sim/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "sector_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (ticks, collisions, catalogs, snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}
	w, err := openWorld(*worldID, tune, cats, snapshotToLoad, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	tickLog := persistlog.NewTickLogger(worldDir)
	collisionLog := persistlog.NewCollisionLogger(worldDir)
	defer tickLog.Close()
	defer collisionLog.Close()
	w.SetTickLogger(multiTickLogger{a: tickLog, b: idx})
	w.SetCollisionLogger(multiCollisionLogger{a: collisionLog, b: idx})

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	go writeSnapshots(ctx, worldDir, snapCh, idx, logger)

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	srv := &http.Server{
		Addr: *addr,
		Handler: newMux(w, idx, muxOptions{
			EnableAdmin: envBool("SS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
			EnablePprof: envBool("SS_ENABLE_PPROF_HTTP", false),
			Logger:      logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s tick_rate=%dHz tick=%d bodies=%d listening on %s",
		w.ID(), w.TickRateHz(), w.CurrentTick(), w.EntityCount(), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// openWorld creates a fresh world, or resumes one from snapPath when it is set.
func openWorld(id string, tune tuning.Tuning, cats *catalogs.Catalogs, snapPath string, logger *log.Logger) (*world.World, error) {
	cfg := world.ConfigFromTuning(id, tune)
	if snapPath == "" {
		return world.New(cfg, cats)
	}

	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, err
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != id {
		return nil, fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", id, snap.Header.WorldID)
	}
	if snap.TickRateHz > 0 {
		cfg.TickRateHz = snap.TickRateHz
	}
	w, err := world.New(cfg, cats)
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, err
	}
	if snap.TuningDigest != "" && snap.TuningDigest != cfg.TuningDigest {
		logger.Printf("tuning changed since snapshot: was=%s now=%s", snap.TuningDigest, cfg.TuningDigest)
	}
	var size string
	if fi, err := os.Stat(snapPath); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	logger.Printf("resumed from snapshot=%s (%s) tick=%d", filepath.Base(snapPath), size, w.CurrentTick())
	return w, nil
}

func writeSnapshots(ctx context.Context, worldDir string, ch <-chan snapshot.SnapshotV1, idx runtimeIndex, logger *log.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-ch:
			path := snapshot.Path(filepath.Join(worldDir, "snapshots"), snap.Header.Tick)
			start := time.Now()
			if err := snapshot.WriteSnapshot(path, snap); err != nil {
				logger.Printf("snapshot write: %v", err)
				continue
			}
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
			if fi, err := os.Stat(path); err == nil {
				logger.Printf("snapshot tick=%d bodies=%d blocks=%s size=%s in %s",
					snap.Header.Tick, snap.Header.Bodies, humanize.Comma(int64(snap.Header.Blocks)),
					humanize.Bytes(uint64(fi.Size())), time.Since(start).Round(time.Millisecond))
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
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
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
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
