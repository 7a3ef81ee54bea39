package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/sim/voxel"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) <= eps*math.Max(1, math.Abs(b)) }

func vecOK(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func TestApplyThrust_ClampsToMaxThrust(t *testing.T) {
	b := NewRigidBody(mgl64.Vec3{})
	b.MaxThrust = 50
	b.ApplyThrust(mgl64.Vec3{2, 0, 0}, 500)
	if want := (mgl64.Vec3{50, 0, 0}); !b.AppliedForce.ApproxEqualThreshold(want, eps) {
		t.Fatalf("force: got %v want %v", b.AppliedForce, want)
	}
	b.ClearAccumulators()
	b.ApplyThrust(mgl64.Vec3{0, 3, 4}, 10)
	if want := (mgl64.Vec3{0, 6, 8}); !b.AppliedForce.ApproxEqualThreshold(want, eps) {
		t.Fatalf("force: got %v want %v", b.AppliedForce, want)
	}
	b.ClearAccumulators()
	b.ApplyThrust(mgl64.Vec3{1, 0, 0}, -500)
	if want := (mgl64.Vec3{-50, 0, 0}); !b.AppliedForce.ApproxEqualThreshold(want, eps) {
		t.Fatalf("reverse force: got %v want %v", b.AppliedForce, want)
	}
}

func TestApplyRotationalThrust_ZeroAxisYieldsZeroTorque(t *testing.T) {
	b := NewRigidBody(mgl64.Vec3{})
	b.MaxTorque = 100
	b.ApplyRotationalThrust(mgl64.Vec3{}, 100)
	if b.AppliedTorque != (mgl64.Vec3{}) {
		t.Fatalf("torque: got %v want zero", b.AppliedTorque)
	}
	b.ApplyRotationalThrust(mgl64.Vec3{math.NaN(), 0, 0}, 100)
	if b.AppliedTorque != (mgl64.Vec3{}) {
		t.Fatalf("torque from NaN axis: got %v want zero", b.AppliedTorque)
	}
	NewIntegrator().Step(b, 0.5)
	if !vecOK(b.AngularVelocity) || !vecOK(b.Rotation) {
		t.Fatalf("non-finite rotation state: %v %v", b.AngularVelocity, b.Rotation)
	}
	if b.AngularVelocity != (mgl64.Vec3{}) {
		t.Fatalf("angular velocity: got %v want zero", b.AngularVelocity)
	}
}

func TestStep_ZeroDragLeavesVelocity(t *testing.T) {
	in := NewIntegrator()
	for _, dt := range []float64{1.0 / 60, 0.5, 3} {
		b := NewRigidBody(mgl64.Vec3{})
		b.Velocity = mgl64.Vec3{3, -4, 12}
		b.AngularVelocity = mgl64.Vec3{0, 1, 0}
		in.Step(b, dt)
		if b.Velocity != (mgl64.Vec3{3, -4, 12}) {
			t.Fatalf("dt=%v velocity: got %v", dt, b.Velocity)
		}
		if b.AngularVelocity != (mgl64.Vec3{0, 1, 0}) {
			t.Fatalf("dt=%v angular velocity: got %v", dt, b.AngularVelocity)
		}
		if want := (mgl64.Vec3{3 * dt, -4 * dt, 12 * dt}); !b.Position.ApproxEqualThreshold(want, eps) {
			t.Fatalf("dt=%v position: got %v want %v", dt, b.Position, want)
		}
	}
}

func TestStep_ExponentialDrag(t *testing.T) {
	b := NewRigidBody(mgl64.Vec3{})
	b.LinearDrag = 0.5
	b.Velocity = mgl64.Vec3{10, 0, 0}
	NewIntegrator().Step(b, 2)
	if want := 10 * math.Exp(-1); !approx(b.Velocity.X(), want) {
		t.Fatalf("velocity: got %v want %v", b.Velocity.X(), want)
	}
}

func TestStep_ForceAndAccumulatorReset(t *testing.T) {
	b := NewRigidBody(mgl64.Vec3{})
	b.Mass = 4
	b.MomentOfInertia = 2
	b.MaxThrust = 100
	b.MaxTorque = 100
	b.ApplyThrust(mgl64.Vec3{1, 0, 0}, 8)
	b.ApplyRotationalThrust(mgl64.Vec3{0, 0, 1}, 4)
	NewIntegrator().Step(b, 1)

	if !b.Acceleration.ApproxEqualThreshold(mgl64.Vec3{2, 0, 0}, eps) {
		t.Fatalf("acceleration: got %v", b.Acceleration)
	}
	if !b.AngularAcceleration.ApproxEqualThreshold(mgl64.Vec3{0, 0, 2}, eps) {
		t.Fatalf("angular acceleration: got %v", b.AngularAcceleration)
	}
	// Semi-implicit: position uses the updated velocity.
	if !b.Position.ApproxEqualThreshold(mgl64.Vec3{2, 0, 0}, eps) {
		t.Fatalf("position: got %v", b.Position)
	}
	if b.AppliedForce != (mgl64.Vec3{}) || b.AppliedTorque != (mgl64.Vec3{}) {
		t.Fatalf("accumulators not cleared: %v %v", b.AppliedForce, b.AppliedTorque)
	}
}

func TestStep_ZeroMassAndInertiaAreGuarded(t *testing.T) {
	b := NewRigidBody(mgl64.Vec3{})
	b.Mass = 0
	b.MomentOfInertia = 0
	b.ApplyForce(mgl64.Vec3{100, 0, 0})
	b.ApplyTorque(mgl64.Vec3{0, 100, 0})
	NewIntegrator().Step(b, 1)
	if b.Acceleration != (mgl64.Vec3{}) || b.AngularAcceleration != (mgl64.Vec3{}) {
		t.Fatalf("accelerations: got %v %v want zero", b.Acceleration, b.AngularAcceleration)
	}
	if !vecOK(b.Position) || !vecOK(b.Rotation) {
		t.Fatalf("non-finite pose: %v %v", b.Position, b.Rotation)
	}
}

func TestStep_ClampsVelocity(t *testing.T) {
	in := &Integrator{MaxVelocity: 5, MaxAngularVelocity: 1}
	b := NewRigidBody(mgl64.Vec3{})
	b.Velocity = mgl64.Vec3{30, 40, 0}
	b.AngularVelocity = mgl64.Vec3{0, 0, 9}
	in.Step(b, 0.1)
	if !approx(b.Velocity.Len(), 5) {
		t.Fatalf("|v|: got %v want 5", b.Velocity.Len())
	}
	if !b.Velocity.ApproxEqualThreshold(mgl64.Vec3{3, 4, 0}, eps) {
		t.Fatalf("velocity direction changed: %v", b.Velocity)
	}
	if !approx(b.AngularVelocity.Len(), 1) {
		t.Fatalf("|w|: got %v want 1", b.AngularVelocity.Len())
	}
}

func TestStep_StaticBodyNeverIntegrates(t *testing.T) {
	b := NewRigidBody(mgl64.Vec3{1, 2, 3})
	b.Static = true
	b.Velocity = mgl64.Vec3{5, 0, 0}
	b.ApplyForce(mgl64.Vec3{100, 0, 0})

	reg := NewMapRegistry()
	reg.Bodies[1] = b
	NewIntegrator().Update(reg, 1)

	if b.Position != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("static body moved to %v", b.Position)
	}
	if b.AppliedForce != (mgl64.Vec3{}) {
		t.Fatalf("static body kept force %v", b.AppliedForce)
	}
}

func TestInterpolatePhysics_DoesNotFeedBack(t *testing.T) {
	b := NewRigidBody(mgl64.Vec3{})
	b.Velocity = mgl64.Vec3{10, 0, 0}
	in := NewIntegrator()
	in.Step(b, 1)

	before := *b
	tr := InterpolatePhysics(b, 0.25)
	if !tr.Position.ApproxEqualThreshold(mgl64.Vec3{2.5, 0, 0}, eps) {
		t.Fatalf("interpolated position: got %v", tr.Position)
	}
	if *b != before {
		t.Fatalf("body mutated by interpolation")
	}
	if got := InterpolatePhysics(b, 7); got.Position != b.Position {
		t.Fatalf("alpha>1 not clamped: %v", got.Position)
	}
	if got := InterpolatePhysics(b, -1); got.Position != b.PrevPosition {
		t.Fatalf("alpha<0 not clamped: %v", got.Position)
	}
}

func TestSyncFromStructure(t *testing.T) {
	cat := voxel.DefaultCatalog()
	s := voxel.NewStructure()
	engine := cat.NewBlock(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, voxel.Iron, voxel.Engine, voxel.Cube, voxel.PosX)
	gyro := cat.NewBlock(mgl64.Vec3{2, 0, 0}, mgl64.Vec3{1, 1, 1}, voxel.Iron, voxel.GyroArray, voxel.Cube, voxel.PosX)
	engineID := s.AddBlock(engine)
	gyroID := s.AddBlock(gyro)

	b := NewRigidBody(mgl64.Vec3{})
	b.SyncFromStructure(s)
	if !approx(b.Mass, s.TotalMass()) || !approx(b.MomentOfInertia, s.MomentOfInertia()) {
		t.Fatalf("mass/inertia: got %v/%v want %v/%v", b.Mass, b.MomentOfInertia, s.TotalMass(), s.MomentOfInertia())
	}
	if !approx(b.MaxThrust, s.TotalThrust()) || !approx(b.MaxTorque, s.TotalTorque()) {
		t.Fatalf("caps: got %v/%v", b.MaxThrust, b.MaxTorque)
	}

	lastMass := b.Mass
	s.RemoveBlock(engineID)
	s.RemoveBlock(gyroID)
	b.SyncFromStructure(s)
	if b.Mass != lastMass {
		t.Fatalf("empty structure changed mass: got %v want %v", b.Mass, lastMass)
	}
	if b.MaxThrust != 0 || b.MaxTorque != 0 {
		t.Fatalf("caps after destruction: got %v/%v want 0/0", b.MaxThrust, b.MaxTorque)
	}
}
