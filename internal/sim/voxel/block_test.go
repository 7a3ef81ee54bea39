package voxel

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestCatalog_NewBlockFormulas(t *testing.T) {
	cat := DefaultCatalog()
	unit := mgl64.Vec3{1, 1, 1}

	cases := []struct {
		name    string
		mat     MaterialID
		typ     BlockType
		shape   Shape
		size    mgl64.Vec3
		mass    float64
		maxDur  float64
		thrust  float64
		torque  float64
		power   float64
		shields float64
	}{
		{name: "iron hull", mat: Iron, typ: Hull, size: unit, mass: 1, maxDur: 100},
		{name: "iron armor", mat: Iron, typ: Armor, size: unit, mass: 1.5, maxDur: 500},
		{name: "iron engine", mat: Iron, typ: Engine, size: mgl64.Vec3{2, 1, 1}, mass: 2, maxDur: 200, thrust: 50 * 2 * 0.8},
		{name: "titanium thruster", mat: Titanium, typ: Thruster, size: unit, mass: 0.9, maxDur: 150, thrust: 30},
		{name: "trinium gyro", mat: Trinium, typ: GyroArray, size: unit, mass: 0.6, maxDur: 250, torque: 20 * 1.5},
		{name: "xanion generator", mat: Xanion, typ: Generator, size: unit, mass: 0.5, maxDur: 300, power: 100 * 1.8},
		{name: "naonite shield", mat: Naonite, typ: ShieldGenerator, size: unit, mass: 0.8, maxDur: 200, shields: 200 * 1.2},
		{name: "wedge halves volume", mat: Iron, typ: Hull, shape: Wedge, size: mgl64.Vec3{2, 2, 2}, mass: 4, maxDur: 400},
		{name: "corner quarters volume", mat: Iron, typ: Hull, shape: Corner, size: mgl64.Vec3{2, 2, 2}, mass: 2, maxDur: 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := cat.NewBlock(mgl64.Vec3{}, tc.size, tc.mat, tc.typ, tc.shape, PosY)
			if !approx(b.Mass, tc.mass) {
				t.Fatalf("mass: got %v want %v", b.Mass, tc.mass)
			}
			if !approx(b.MaxDurability, tc.maxDur) || b.Durability != b.MaxDurability {
				t.Fatalf("durability: got %v/%v want %v", b.Durability, b.MaxDurability, tc.maxDur)
			}
			if !approx(b.Thrust, tc.thrust) || !approx(b.Torque, tc.torque) ||
				!approx(b.PowerGeneration, tc.power) || !approx(b.ShieldCapacity, tc.shields) {
				t.Fatalf("outputs: got thrust=%v torque=%v power=%v shield=%v", b.Thrust, b.Torque, b.PowerGeneration, b.ShieldCapacity)
			}
		})
	}
}

func TestCatalog_UnknownMaterialFallsBackToIron(t *testing.T) {
	cat := DefaultCatalog()
	b := cat.NewBlock(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1}, MaterialID(200), Hull, Cube, PosY)
	if b.Mass != 1 || b.MaxDurability != 100 {
		t.Fatalf("fallback block: got mass=%v maxDur=%v", b.Mass, b.MaxDurability)
	}

	var nilCat *Catalog
	if m := nilCat.Material(Avorion); m.ID != Iron {
		t.Fatalf("nil catalog material: got %v want IRON", m.ID)
	}
}

func TestBlock_TakeDamageClamps(t *testing.T) {
	b := Block{Durability: 10, MaxDurability: 10}
	if b.TakeDamage(4) {
		t.Fatalf("destroyed after 4 damage")
	}
	if !b.TakeDamage(100) || b.Durability != 0 {
		t.Fatalf("durability after overkill: got %v want 0", b.Durability)
	}
}

func TestBlock_Intersects(t *testing.T) {
	a := Block{Position: mgl64.Vec3{0, 0, 0}, Size: mgl64.Vec3{2, 2, 2}}
	b := Block{Position: mgl64.Vec3{1.5, 0, 0}, Size: mgl64.Vec3{2, 2, 2}}
	c := Block{Position: mgl64.Vec3{2, 0, 0}, Size: mgl64.Vec3{2, 2, 2}}
	if !a.Intersects(b) {
		t.Fatalf("overlapping blocks do not intersect")
	}
	if a.Intersects(c) {
		t.Fatalf("touching blocks intersect")
	}
}

func TestParseNames(t *testing.T) {
	if m, ok := ParseMaterial("avorion"); !ok || m != Avorion {
		t.Fatalf("ParseMaterial: got %v %v", m, ok)
	}
	if bt, ok := ParseBlockType("shield_generator"); !ok || bt != ShieldGenerator {
		t.Fatalf("ParseBlockType: got %v %v", bt, ok)
	}
	if _, ok := ParseBlockType("WARP_CORE"); ok {
		t.Fatalf("ParseBlockType accepted unknown type")
	}
}
