package worldtest

import (
	"testing"

	"subspace.dev/internal/protocol"
)

func TestDeterminism_SameCommandsSameDigests(t *testing.T) {
	cats := loadCats(t)
	run := func() []string {
		h := NewHarness(t, testConfig(), cats)
		var digests []string
		a := h.Spawn([3]float64{0, 0, 0}, [3]float64{}, ship()...)
		h.Spawn([3]float64{12, 0, 0}, [3]float64{-4, 0, 0}, ship()...)
		for i := 0; i < 120; i++ {
			tm := h.Step(protocol.CmdMsg{Cmd: protocol.CmdThrust, EntityID: a, Direction: [3]float64{1, 0, 0}, Magnitude: 1e6})
			digests = append(digests, tm.Digest)
		}
		return digests
	}
	d1 := run()
	d2 := run()
	if len(d1) != len(d2) {
		t.Fatalf("length mismatch %d vs %d", len(d1), len(d2))
	}
	for i := range d1 {
		if d1[i] != d2[i] {
			t.Fatalf("digest mismatch at step %d: %s vs %s", i, d1[i], d2[i])
		}
	}
}

func TestCollision_ShipsBounceApart(t *testing.T) {
	h := NewHarness(t, testConfig(), loadCats(t))
	a := h.Spawn([3]float64{0, 0, 0}, [3]float64{5, 0, 0}, ship()...)
	b := h.Spawn([3]float64{4, 0, 0}, [3]float64{-5, 0, 0}, ship()...)

	sawCollision := false
	for i := 0; i < 60; i++ {
		tm := h.Step()
		for _, c := range tm.Collisions {
			if c.A == a && c.B == b {
				sawCollision = true
			}
		}
	}
	if !sawCollision {
		t.Fatalf("expected a collision between %d and %d", a, b)
	}
	ba, bb := h.Body(a), h.Body(b)
	if ba.Vel[0] >= 0 || bb.Vel[0] <= 0 {
		t.Fatalf("ships did not bounce: va=%v vb=%v", ba.Vel, bb.Vel)
	}
	// Each ship is 3 units long, so centres at least 3 apart means no overlap on X.
	if gap := bb.Pos[0] - ba.Pos[0]; gap < 3-1e-9 {
		t.Fatalf("ships still overlap: gap=%v", gap)
	}
}

func TestDamage_ReportsDestroyedBlocksInTick(t *testing.T) {
	h := NewHarness(t, testConfig(), loadCats(t))
	id := h.Spawn([3]float64{}, [3]float64{}, ship()...)
	before := h.Body(id)

	tm := h.Step(protocol.CmdMsg{Cmd: protocol.CmdDamage, EntityID: id, Point: [3]float64{-1, 0, 0}, Radius: 1, Damage: 500})
	if len(tm.Destroyed) != 1 || tm.Destroyed[0].BlockType != "ENGINE" {
		t.Fatalf("expected the engine destroyed, got %+v", tm.Destroyed)
	}
	after := h.Body(id)
	if after.Blocks != 2 || after.Mass >= before.Mass {
		t.Fatalf("body not resynced: before=%+v after=%+v", before, after)
	}
	if after.Integrity <= 0 || after.Integrity > 100 {
		t.Fatalf("integrity out of range: %v", after.Integrity)
	}
}
