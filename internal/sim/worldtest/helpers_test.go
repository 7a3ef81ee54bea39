package worldtest

import (
	"testing"

	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/catalogs"
	"subspace.dev/internal/sim/tuning"
	world "subspace.dev/internal/sim/world"
)

func loadCats(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func testConfig() world.WorldConfig {
	return world.ConfigFromTuning("test", tuning.Defaults())
}

func block(x, y, z float64, material, typ string) protocol.BlockSpec {
	return protocol.BlockSpec{Pos: [3]float64{x, y, z}, Size: [3]float64{1, 1, 1}, Material: material, BlockType: typ}
}

// ship is a 3x1x1 iron hull bar with an engine at the back.
func ship() []protocol.BlockSpec {
	return []protocol.BlockSpec{
		block(-1, 0, 0, "IRON", "ENGINE"),
		block(0, 0, 0, "IRON", "HULL"),
		block(1, 0, 0, "TITANIUM", "ARMOR"),
	}
}

// scenario exercises thrust, rotation, partial and destructive damage, block edits and a
// head-on collision.
func scenario(h *Harness) {
	a := h.Spawn([3]float64{0, 0, 0}, [3]float64{}, ship()...)
	b := h.Spawn([3]float64{12, 0, 0}, [3]float64{-4, 0, 0}, ship()...)
	h.Step(protocol.CmdMsg{Cmd: protocol.CmdThrust, EntityID: a, Direction: [3]float64{1, 0, 0}, Magnitude: 1e6})
	h.Step(protocol.CmdMsg{Cmd: protocol.CmdRotate, EntityID: b, Axis: [3]float64{0, 1, 0}, Magnitude: 3})
	h.Step(protocol.CmdMsg{Cmd: protocol.CmdDamage, EntityID: a, Point: [3]float64{1, 0, 0}, Radius: 2, Damage: 60})
	h.Step(protocol.CmdMsg{Cmd: protocol.CmdDamage, EntityID: b, Point: [3]float64{-1, 0, 0}, Radius: 1, Damage: 500})
	add := block(0, 1, 0, "NAONITE", "GYRO_ARRAY")
	h.Step(protocol.CmdMsg{Cmd: protocol.CmdAddBlock, EntityID: a, Block: &add})
	for i := 0; i < 90; i++ {
		h.Step(protocol.CmdMsg{Cmd: protocol.CmdThrust, EntityID: a, Direction: [3]float64{1, 0, 0}, Magnitude: 1e6})
	}
}
