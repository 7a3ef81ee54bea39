package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/sim/voxel"
)

func body(pos, vel mgl64.Vec3, mass, radius float64) *RigidBody {
	b := NewRigidBody(pos)
	b.Velocity = vel
	b.Mass = mass
	b.CollisionRadius = radius
	return b
}

func TestCheckAABBCollision_MinimumOverlapAxis(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{4, 4, 4}}
	b := AABB{Min: mgl64.Vec3{1, 3, 0}, Max: mgl64.Vec3{5, 7, 4}}
	cd, ok := CheckAABBCollision(a, b)
	if !ok {
		t.Fatalf("expected overlap")
	}
	if cd.Normal != (mgl64.Vec3{0, 1, 0}) {
		t.Fatalf("normal: got %v want +Y", cd.Normal)
	}
	if !approx(cd.Depth, 1) {
		t.Fatalf("depth: got %v want 1", cd.Depth)
	}
	if want := (mgl64.Vec3{2.5, 3.5, 2}); !cd.Point.ApproxEqualThreshold(want, eps) {
		t.Fatalf("point: got %v want %v", cd.Point, want)
	}

	// Swapping the arguments flips the normal.
	cd, _ = CheckAABBCollision(b, a)
	if cd.Normal != (mgl64.Vec3{0, -1, 0}) {
		t.Fatalf("swapped normal: got %v want -Y", cd.Normal)
	}
}

func TestCheckAABBCollision_TouchingIsNotOverlap(t *testing.T) {
	a := AABB{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	b := AABB{Min: mgl64.Vec3{1, 0, 0}, Max: mgl64.Vec3{2, 1, 1}}
	if _, ok := CheckAABBCollision(a, b); ok {
		t.Fatalf("touching boxes reported as overlapping")
	}
	c := AABB{Min: mgl64.Vec3{0.5, 5, 0}, Max: mgl64.Vec3{2, 6, 1}}
	if _, ok := CheckAABBCollision(a, c); ok {
		t.Fatalf("boxes separated on Y reported as overlapping")
	}
}

func TestResolve_StaticWallBouncesWithRestitution(t *testing.T) {
	reg := NewMapRegistry()
	wall := body(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, 1000, 5)
	wall.Static = true
	ship := body(mgl64.Vec3{9.5, 0, 0}, mgl64.Vec3{-10, 0, 0}, 10, 5)
	reg.Bodies[1] = wall
	reg.Bodies[2] = ship

	var sink EventBuffer
	sys := NewSystem(DefaultCellSize, &sink)
	if n := sys.Update(reg, 0.1); n != 1 {
		t.Fatalf("contacts: got %d want 1", n)
	}

	if !ship.Velocity.ApproxEqualThreshold(mgl64.Vec3{5, 0, 0}, eps) {
		t.Fatalf("ship velocity: got %v want {5 0 0}", ship.Velocity)
	}
	if wall.Position != (mgl64.Vec3{}) || wall.Velocity != (mgl64.Vec3{}) {
		t.Fatalf("static wall moved: pos %v vel %v", wall.Position, wall.Velocity)
	}
	if BodyAABB(ship, nil).Overlaps(BodyAABB(wall, nil)) {
		t.Fatalf("ship still overlaps wall at %v", ship.Position)
	}
	if len(sink.Events) != 1 {
		t.Fatalf("events: got %d want 1", len(sink.Events))
	}
	ev := sink.Events[0]
	if ev.A != 2 || ev.B != 1 {
		t.Fatalf("event ids: got %d/%d want 2/1", ev.A, ev.B)
	}
	if ev.Normal != (mgl64.Vec3{-1, 0, 0}) {
		t.Fatalf("event normal: got %v want -X", ev.Normal)
	}
	if !approx(ev.Impulse, 150) {
		t.Fatalf("impulse: got %v want 150", ev.Impulse)
	}
}

func TestResolve_EqualMassElasticExchange(t *testing.T) {
	reg := NewMapRegistry()
	a := body(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 0, 0}, 3, 1)
	b := body(mgl64.Vec3{1.5, 0, 0}, mgl64.Vec3{-2, 0, 0}, 3, 1)
	reg.Bodies[1] = a
	reg.Bodies[2] = b

	r := NewResolver(10, nil)
	r.Restitution = 1
	r.Resolve(reg)

	if !a.Velocity.ApproxEqualThreshold(mgl64.Vec3{-2, 0, 0}, eps) {
		t.Fatalf("a velocity: got %v want {-2 0 0}", a.Velocity)
	}
	if !b.Velocity.ApproxEqualThreshold(mgl64.Vec3{2, 0, 0}, eps) {
		t.Fatalf("b velocity: got %v want {2 0 0}", b.Velocity)
	}
	// Equal masses split the correction evenly.
	if !approx(a.Position.X(), -0.25) || !approx(b.Position.X(), 1.75) {
		t.Fatalf("positions: got %v %v", a.Position, b.Position)
	}
}

func TestResolve_HeavyShipsSeparateBySumOfRadii(t *testing.T) {
	reg := NewMapRegistry()
	a := body(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, 1000, 5)
	b := body(mgl64.Vec3{8, 0, 0}, mgl64.Vec3{-10, 0, 0}, 1000, 5)
	reg.Bodies[1] = a
	reg.Bodies[2] = b

	var sink EventBuffer
	NewSystem(DefaultCellSize, &sink).Update(reg, 1.0/60)

	if len(sink.Events) != 1 {
		t.Fatalf("events: got %d want 1", len(sink.Events))
	}
	if sink.Events[0].Impulse <= 0 {
		t.Fatalf("impulse: got %v want > 0", sink.Events[0].Impulse)
	}
	if sep := b.Position.X() - a.Position.X(); sep < 10-1e-9 {
		t.Fatalf("separation: got %v want >= 10", sep)
	}
	if a.Velocity.X() >= 0 || b.Velocity.X() <= 0 {
		t.Fatalf("bodies still approaching: %v %v", a.Velocity, b.Velocity)
	}
	// Momentum is conserved.
	if p := a.Velocity.X()*a.Mass + b.Velocity.X()*b.Mass; !approx(p, 0) {
		t.Fatalf("momentum: got %v want 0", p)
	}
}

func TestResolve_SeparatingBodiesGetNoImpulse(t *testing.T) {
	reg := NewMapRegistry()
	a := body(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{-1, 0, 0}, 1, 1)
	b := body(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}, 1, 1)
	reg.Bodies[1] = a
	reg.Bodies[2] = b

	var sink EventBuffer
	NewResolver(10, &sink).Resolve(reg)
	if len(sink.Events) != 1 || sink.Events[0].Impulse != 0 {
		t.Fatalf("events: got %+v want one zero-impulse contact", sink.Events)
	}
	if a.Velocity != (mgl64.Vec3{-1, 0, 0}) || b.Velocity != (mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("velocities changed: %v %v", a.Velocity, b.Velocity)
	}
}

func TestResolve_EachPairOncePerTick(t *testing.T) {
	reg := NewMapRegistry()
	reg.Bodies[5] = body(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 1, 1)
	reg.Bodies[3] = body(mgl64.Vec3{1.2, 0, 0}, mgl64.Vec3{-1, 0, 0}, 1, 1)

	var sink EventBuffer
	NewResolver(10, &sink).Resolve(reg)
	if len(sink.Events) != 1 {
		t.Fatalf("events: got %d want 1", len(sink.Events))
	}
	if sink.Events[0].A != 3 {
		t.Fatalf("first resolver should be the lowest id, got %d", sink.Events[0].A)
	}

}

func TestResolve_ImmovablePairsAreSkipped(t *testing.T) {
	reg := NewMapRegistry()
	a := body(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{}, 0, 1)
	b := body(mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{}, 1, 1)
	b.Static = true
	reg.Bodies[1] = a
	reg.Bodies[2] = b

	var sink EventBuffer
	if n := NewResolver(10, &sink).Resolve(reg); n != 0 {
		t.Fatalf("contacts: got %d want 0", n)
	}
	if a.Position != (mgl64.Vec3{}) || len(sink.Events) != 0 {
		t.Fatalf("zero-mass body against static moved or published: %v %+v", a.Position, sink.Events)
	}
}

func TestBodyAABB_UsesStructureExtents(t *testing.T) {
	s := voxel.NewStructure()
	s.AddBlock(voxel.Block{Position: mgl64.Vec3{2, 0, 0}, Size: mgl64.Vec3{2, 2, 2}, Mass: 1, MaxDurability: 1, Durability: 1})
	b := body(mgl64.Vec3{10, 0, 0}, mgl64.Vec3{}, 1, 50)

	box := BodyAABB(b, s)
	if box.Min != (mgl64.Vec3{11, -1, -1}) || box.Max != (mgl64.Vec3{13, 1, 1}) {
		t.Fatalf("structure box: got %+v", box)
	}

	s.Clear()
	box = BodyAABB(b, s)
	if box.Min != (mgl64.Vec3{-40, -50, -50}) || box.Max != (mgl64.Vec3{60, 50, 50}) {
		t.Fatalf("radius fallback: got %+v", box)
	}
}

func TestResolve_StructureContact(t *testing.T) {
	cat := voxel.DefaultCatalog()
	reg := NewMapRegistry()
	for id, x := range map[EntityID]float64{1: 0, 2: 1.5} {
		s := voxel.NewStructure()
		s.AddBlock(cat.NewBlock(mgl64.Vec3{}, mgl64.Vec3{2, 2, 2}, voxel.Iron, voxel.Hull, voxel.Cube, voxel.PosX))
		b := NewRigidBody(mgl64.Vec3{x, 0, 0})
		b.CollisionRadius = 0.1
		b.SyncFromStructure(s)
		reg.Bodies[id] = b
		reg.Structures[id] = s
	}

	var sink EventBuffer
	NewResolver(DefaultCellSize, &sink).Resolve(reg)
	if len(sink.Events) != 1 {
		t.Fatalf("events: got %d want 1", len(sink.Events))
	}
	if !approx(sink.Events[0].Depth, 0.5) {
		t.Fatalf("depth: got %v want 0.5", sink.Events[0].Depth)
	}
	if sep := reg.Bodies[2].Position.X() - reg.Bodies[1].Position.X(); !approx(sep, 2) {
		t.Fatalf("separation: got %v want 2", sep)
	}
}

func TestResolve_ShipAtFarEndOfLongStation(t *testing.T) {
	cat := voxel.DefaultCatalog()
	reg := NewMapRegistry()
	st := voxel.NewStructure()
	for i := 0; i <= 10; i++ {
		st.AddBlock(cat.NewBlock(mgl64.Vec3{float64(i) * 1000, 0, 0}, mgl64.Vec3{1000, 1000, 1000}, voxel.Iron, voxel.Hull, voxel.Cube, voxel.PosX))
	}
	station := NewRigidBody(mgl64.Vec3{})
	station.SyncFromStructure(st)
	station.Static = true
	reg.Bodies[1] = station
	reg.Structures[1] = st

	// Station spans x in [-500, 10500]; the ship overlaps its far face by 2.
	ship := body(mgl64.Vec3{10503, 0, 0}, mgl64.Vec3{-10, 0, 0}, 10, 5)
	reg.Bodies[2] = ship

	var sink EventBuffer
	if n := NewResolver(DefaultCellSize, &sink).Resolve(reg); n != 1 {
		t.Fatalf("contacts: got %d want 1", n)
	}
	if len(sink.Events) != 1 || !approx(sink.Events[0].Depth, 2) {
		t.Fatalf("events: got %+v want one contact of depth 2", sink.Events)
	}
	if !approx(ship.Position.X(), 10505) {
		t.Fatalf("ship x: got %v want 10505", ship.Position.X())
	}
	if !ship.Velocity.ApproxEqualThreshold(mgl64.Vec3{5, 0, 0}, eps) {
		t.Fatalf("ship velocity: got %v want {5 0 0}", ship.Velocity)
	}
	if station.Position != (mgl64.Vec3{}) {
		t.Fatalf("static station moved to %v", station.Position)
	}
}
