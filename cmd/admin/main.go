package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"subspace.dev/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints worlds, or the snapshots of one world.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID, "snapshots")
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if *worldID == "" {
			fmt.Println(e.Name())
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Printf("%-28s %10s  %s\n", e.Name(), humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (used to find the latest snapshot)")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	asJSON := fs.Bool("json", false, "print bodies as JSON lines")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		path = latestSnapshot(filepath.Join(*dataDir, "worlds", *worldID))
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "no snapshot found")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	rows := summarize(snap)
	if *asJSON {
		for _, r := range rows {
			printJSON(r)
		}
		return
	}
	fmt.Printf("world=%s tick=%d rate=%dHz bodies=%d blocks=%s\n",
		snap.Header.WorldID, snap.Header.Tick, snap.TickRateHz, snap.Header.Bodies, humanize.Comma(int64(snap.Header.Blocks)))
	for _, r := range rows {
		fmt.Printf("  #%-6d blocks=%-5d mass=%-10s integrity=%5.1f%% pos=(%.2f, %.2f, %.2f)",
			r.ID, r.Blocks, humanize.Ftoa(r.Mass), r.Integrity, r.Pos[0], r.Pos[1], r.Pos[2])
		if r.Static {
			fmt.Print(" static")
		}
		fmt.Println()
	}
}

type bodySummary struct {
	ID        uint64     `json:"id"`
	Pos       [3]float64 `json:"pos"`
	Mass      float64    `json:"mass"`
	Static    bool       `json:"static,omitempty"`
	Blocks    int        `json:"blocks"`
	Integrity float64    `json:"integrity"`
}

// summarize reports per-body block counts and integrity (remaining over max durability, in percent).
func summarize(snap snapshot.SnapshotV1) []bodySummary {
	out := make([]bodySummary, 0, len(snap.Bodies))
	for _, b := range snap.Bodies {
		s := bodySummary{ID: b.ID, Pos: b.Pos, Mass: b.Mass, Static: b.Static}
		if b.Structure != nil {
			s.Blocks = len(b.Structure.Blocks)
			var cur, full float64
			for _, blk := range b.Structure.Blocks {
				cur += blk.Durability
				full += blk.MaxDurability
			}
			if full > 0 {
				s.Integrity = cur / full * 100
			}
		}
		out = append(out, s)
	}
	return out
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
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".snap.zst") {
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
