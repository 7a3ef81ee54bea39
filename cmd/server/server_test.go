package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"subspace.dev/internal/persistence/indexdb"
	"subspace.dev/internal/persistence/snapshot"
	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/catalogs"
	"subspace.dev/internal/sim/tuning"
	"subspace.dev/internal/sim/world"
)

func testWorld(t *testing.T) (*world.World, *catalogs.Catalogs) {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.ConfigFromTuning("sector_test", tuning.Defaults()), cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w, cats
}

func spawn(w *world.World, id string, x float64) {
	w.StepOnce(nil, nil, []world.CommandEnvelope{{SessionID: "S1", Cmd: protocol.CmdMsg{
		Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ID: id, Cmd: protocol.CmdSpawn,
		Pos:    [3]float64{x, 0, 0},
		Blocks: []protocol.BlockSpec{{Size: [3]float64{1, 1, 1}, Material: "IRON", BlockType: "HULL"}},
	}}})
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:5555":     true,
		"::1":            true,
		"10.0.0.7:80":    false,
		"192.0.2.1:1234": false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Errorf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}

func TestLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	if got := latestSnapshot(dir); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	snapDir := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"90.snap.zst", "1200.snap.zst", "300.snap.zst", "notes.txt", "x.snap.zst"} {
		if err := os.WriteFile(filepath.Join(snapDir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if got := latestSnapshot(dir); filepath.Base(got) != "1200.snap.zst" {
		t.Fatalf("latest snapshot: got %q", got)
	}
}

func TestWriteMetrics(t *testing.T) {
	w, _ := testWorld(t)
	spawn(w, "a", 0)
	spawn(w, "b", 0.5)

	idx := &fakeIndex{stats: indexdb.Stats{QueueCapacity: 16, DropCollisionTotal: 3}}
	var buf bytes.Buffer
	writeMetrics(&buf, w, idx)
	out := buf.String()

	for _, want := range []string{
		`subspace_world_tick{world="sector_test"} 2`,
		`subspace_world_bodies{world="sector_test"} 2`,
		`subspace_world_blocks{world="sector_test"} 2`,
		`subspace_commands_total{world="sector_test"} 2`,
		`subspace_world_queue_depth{world="sector_test",queue="inbox"} 0`,
		`subspace_index_queue_capacity{world="sector_test"} 16`,
		`subspace_index_dropped_total{world="sector_test",kind="collision"} 3`,
		"# TYPE subspace_collisions_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics missing %q\n%s", want, out)
		}
	}

	buf.Reset()
	writeMetrics(&buf, w, nil)
	if strings.Contains(buf.String(), "subspace_index_") {
		t.Fatalf("index metrics without an index")
	}
}

func TestAdminEndpoints(t *testing.T) {
	w, _ := testWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	mux := newMux(w, nil, muxOptions{EnableAdmin: true, Logger: log.New(io.Discard, "", 0)})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v %v", err, resp)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/admin/v1/state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	var state struct {
		WorldID      string `json:"world_id"`
		TuningDigest string `json:"tuning_digest"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	resp.Body.Close()
	if state.WorldID != "sector_test" || state.TuningDigest != tuning.Defaults().Digest() {
		t.Fatalf("unexpected state %+v", state)
	}

	resp, err = http.Get(srv.URL + "/admin/v1/snapshot")
	if err != nil || resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("snapshot GET: %v %v", err, resp)
	}
	resp.Body.Close()

	// The world has no snapshot sink, so the request fails after reaching the loop.
	resp, err = http.Post(srv.URL+"/admin/v1/snapshot", "application/json", nil)
	if err != nil {
		t.Fatalf("snapshot POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("snapshot without sink: status %d", resp.StatusCode)
	}

	// Remote callers are refused.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote state: status %d", rec.Code)
	}
}

func TestOpenWorld_ResumesFromSnapshot(t *testing.T) {
	w, cats := testWorld(t)
	spawn(w, "a", 0)
	spawn(w, "b", 5)
	for i := 0; i < 10; i++ {
		w.StepOnce(nil, nil, nil)
	}
	tick := w.CurrentTick() - 1
	path := snapshot.Path(t.TempDir(), tick)
	if err := snapshot.WriteSnapshot(path, w.ExportSnapshot(tick)); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	w2, err := openWorld("sector_test", tuning.Defaults(), cats, path, logger)
	if err != nil {
		t.Fatalf("openWorld: %v", err)
	}
	if w2.CurrentTick() != w.CurrentTick() || w2.EntityCount() != 2 {
		t.Fatalf("resume mismatch: tick %d/%d bodies %d", w2.CurrentTick(), w.CurrentTick(), w2.EntityCount())
	}
	if w2.StateDigest() != w.StateDigest() {
		t.Fatalf("digest mismatch after resume")
	}

	if _, err := openWorld("other", tuning.Defaults(), cats, path, logger); err == nil {
		t.Fatalf("expected world id mismatch")
	}
}

func TestMultiLoggers_SkipNil(t *testing.T) {
	idx := &fakeIndex{}
	tl := multiTickLogger{b: idx}
	if err := tl.WriteTick(world.TickLogEntry{Tick: 4}); err != nil {
		t.Fatalf("write tick: %v", err)
	}
	cl := multiCollisionLogger{a: idx}
	if err := cl.WriteCollision(world.CollisionLogEntry{Tick: 4}); err != nil {
		t.Fatalf("write collision: %v", err)
	}
	if idx.ticks != 1 || idx.collisions != 1 {
		t.Fatalf("fan-out counts: ticks=%d collisions=%d", idx.ticks, idx.collisions)
	}
}

type fakeIndex struct {
	stats      indexdb.Stats
	ticks      int
	collisions int
}

func (f *fakeIndex) WriteTick(world.TickLogEntry) error           { f.ticks++; return nil }
func (f *fakeIndex) WriteCollision(world.CollisionLogEntry) error { f.collisions++; return nil }
func (f *fakeIndex) Close() error                                 { return nil }
func (f *fakeIndex) Stats() indexdb.Stats                         { return f.stats }
func (f *fakeIndex) UpsertCatalogs(string, *catalogs.Catalogs, tuning.Tuning) error {
	return nil
}
func (f *fakeIndex) RecordSnapshot(string, snapshot.SnapshotV1) {}
