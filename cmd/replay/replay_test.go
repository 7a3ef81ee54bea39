package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "subspace.dev/internal/persistence/log"
	"subspace.dev/internal/persistence/snapshot"
	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/catalogs"
	"subspace.dev/internal/sim/tuning"
	"subspace.dev/internal/sim/world"
)

func cmd(id, name string, entity uint64) protocol.CmdMsg {
	return protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ID: id, Cmd: name, EntityID: entity}
}

// record runs a short two-ship scenario with a tick log and returns the snapshot taken
// after the first spawn, the log files and the loaded catalogs.
func record(t *testing.T) (snapshot.SnapshotV1, []string, *catalogs.Catalogs) {
	t.Helper()
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	dir := t.TempDir()
	w, err := world.New(world.ConfigFromTuning("replay", tuning.Defaults()), cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	tl := persistlog.NewTickLogger(dir)
	w.SetTickLogger(tl)

	hull := []protocol.BlockSpec{
		{Pos: [3]float64{0, 0, 0}, Size: [3]float64{1, 1, 1}, Material: "IRON", BlockType: "HULL"},
		{Pos: [3]float64{1, 0, 0}, Size: [3]float64{1, 1, 1}, Material: "IRON", BlockType: "HULL"},
	}
	a := cmd("a", protocol.CmdSpawn, 0)
	a.Blocks, a.Vel = hull, [3]float64{4, 0, 0}
	w.StepOnce(nil, nil, []world.CommandEnvelope{{SessionID: "S1", Cmd: a}})

	snapTick := w.CurrentTick() - 1
	snap := w.ExportSnapshot(snapTick)

	b := cmd("b", protocol.CmdSpawn, 0)
	b.Blocks, b.Pos, b.Vel = hull, [3]float64{8, 0, 0}, [3]float64{-4, 0, 0}
	w.StepOnce(nil, nil, []world.CommandEnvelope{{SessionID: "S1", Cmd: b}})
	for i := 0; i < 40; i++ {
		var cmds []world.CommandEnvelope
		if i == 10 {
			d := cmd("d", protocol.CmdDamage, 1)
			d.Radius, d.Damage = 2, 1e6
			cmds = append(cmds, world.CommandEnvelope{SessionID: "S1", Cmd: d})
		}
		w.StepOnce(nil, nil, cmds)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := persistlog.ListFiles(filepath.Join(dir, "events"), "events")
	if err != nil || len(files) == 0 {
		t.Fatalf("list: %v %d", err, len(files))
	}
	return snap, files, cats
}

func restore(t *testing.T, snap snapshot.SnapshotV1, cats *catalogs.Catalogs) *world.World {
	t.Helper()
	w, err := world.New(world.ConfigFromTuning("replay", tuning.Defaults()), cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	return w
}

func TestReplay_VerifiesDigests(t *testing.T) {
	snap, files, cats := record(t)

	res, err := replay(restore(t, snap, cats), files, 0, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Checked != 41 || res.Commands != 2 || res.Destroyed == 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = replay(restore(t, snap, cats), files, 0, snap.Header.Tick+5)
	if err != nil {
		t.Fatalf("bounded replay: %v", err)
	}
	if res.Checked != 5 {
		t.Fatalf("bounded replay checked %d ticks", res.Checked)
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	snap, files, cats := record(t)
	// Drift the first body before replaying.
	snap.Bodies[0].Vel[0] += 0.001

	_, err := replay(restore(t, snap, cats), files, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}
