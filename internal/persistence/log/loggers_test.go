package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"subspace.dev/internal/sim/world"
)

func TestJSONLZstdWriter_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	for tick := uint64(0); tick < 3; tick++ {
		if err := w.Write(world.TickLogEntry{Tick: tick, Digest: "d"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(world.TickLogEntry{Tick: 3, Digest: "d"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Reopening the same hour appends a second frame.
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write(world.TickLogEntry{Tick: 4, Digest: "d"}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{
		filepath.Join(dir, "events-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "events-2026-03-01-11.jsonl.zst"),
	}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files: got %v want %v", files, want)
	}

	var ticks []uint64
	for _, f := range files {
		err := ReadJSONLZstd(f, func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			ticks = append(ticks, e.Tick)
			return nil
		})
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(ticks) != 5 {
		t.Fatalf("ticks: got %v want 0..4", ticks)
	}
	for i, tk := range ticks {
		if tk != uint64(i) {
			t.Fatalf("ticks: got %v want 0..4", ticks)
		}
	}
}

func TestListFiles_FiltersPrefix(t *testing.T) {
	dir := t.TempDir()
	ev := NewJSONLZstdWriter(dir, "events")
	co := NewJSONLZstdWriter(dir, "collisions")
	_ = ev.Write(map[string]int{"a": 1})
	_ = co.Write(map[string]int{"b": 2})
	_ = ev.Close()
	_ = co.Close()

	files, err := ListFiles(dir, "collisions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0])[:11] != "collisions-" {
		t.Fatalf("files: got %v", files)
	}
}
