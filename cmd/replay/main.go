package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
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
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		eventsDir  = flag.String("events", "", "dir containing events-*.jsonl.zst (optional)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
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
	blocks := 0
	for _, b := range snap.Bodies {
		if b.Structure != nil {
			blocks += len(b.Structure.Blocks)
		}
	}
	fmt.Printf("snapshot v%d world=%s tick=%d rate=%dHz bodies=%d blocks=%s\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.TickRateHz,
		len(snap.Bodies), humanize.Comma(int64(blocks)))

	if *eventsDir == "" {
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	if snap.TuningDigest != "" && snap.TuningDigest != tune.Digest() {
		fmt.Fprintln(os.Stderr, "warning: tuning differs from the run that wrote the snapshot; digests will likely diverge")
	}

	cfg := world.ConfigFromTuning(snap.Header.WorldID, tune)
	cfg.TickRateHz = snap.TickRateHz
	w, err := world.New(cfg, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		fmt.Fprintln(os.Stderr, "import snapshot:", err)
		os.Exit(1)
	}

	files, err := persistlog.ListFiles(*eventsDir, "events")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	start := time.Now()
	res, err := replay(w, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%s ticks commands=%s destroyed=%s (from snapshot tick=%d) in %s\n",
		humanize.Comma(int64(res.Checked)), humanize.Comma(int64(res.Commands)), humanize.Comma(int64(res.Destroyed)),
		snap.Header.Tick, time.Since(start).Round(time.Millisecond))
}

type replayResult struct {
	Checked   uint64
	Commands  int
	Destroyed int
}

var errDone = errors.New("done")

// replay steps w through the logged ticks that follow its current tick and compares digests
// from verifyFrom on (0 means from the first replayed tick). toTick of 0 means to the end.
func replay(w *world.World, files []string, verifyFrom, toTick uint64) (replayResult, error) {
	var res replayResult
	startTick := w.CurrentTick()
	if verifyFrom == 0 {
		verifyFrom = startTick
	}

	for _, path := range files {
		err := persistlog.ReadJSONLZstd(path, func(line []byte) error {
			var entry world.TickLogEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				return fmt.Errorf("unmarshal: %w", err)
			}
			if entry.Tick < startTick {
				return nil
			}
			if toTick != 0 && entry.Tick > toTick {
				return errDone
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick gap: want=%d got=%d", w.CurrentTick(), entry.Tick)
			}

			// Sessions are not simulation state; only commands are replayed.
			cmds := make([]world.CommandEnvelope, 0, len(entry.Commands))
			for _, c := range entry.Commands {
				cmds = append(cmds, world.CommandEnvelope{SessionID: c.SessionID, Cmd: c.Cmd})
			}
			tick, digest := w.StepOnce(nil, nil, cmds)
			if tick != entry.Tick {
				return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
			}
			res.Commands += len(cmds)
			res.Destroyed += len(w.LastStep().Destroyed)
			if tick >= verifyFrom {
				res.Checked++
				if digest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
				}
			}
			return nil
		})
		if errors.Is(err, errDone) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}
