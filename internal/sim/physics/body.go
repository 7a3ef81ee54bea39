package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/sim/voxel"
)

// EntityID identifies a simulated entity. Iteration order is ascending id.
type EntityID uint64

// RigidBody is the per-entity kinematic and dynamic state. Rotation is an Euler-angle
// vector in radians; inertia is scalar.
type RigidBody struct {
	Position     mgl64.Vec3
	Velocity     mgl64.Vec3
	Acceleration mgl64.Vec3

	Rotation            mgl64.Vec3
	AngularVelocity     mgl64.Vec3
	AngularAcceleration mgl64.Vec3

	Mass            float64
	MomentOfInertia float64
	LinearDrag      float64
	AngularDrag     float64
	MaxThrust       float64
	MaxTorque       float64
	CollisionRadius float64
	Static          bool

	// Transient; cleared every tick and never persisted.
	AppliedForce  mgl64.Vec3
	AppliedTorque mgl64.Vec3

	// Render-only transform from the start of the last integrated tick.
	PrevPosition mgl64.Vec3
	PrevRotation mgl64.Vec3
}

// NewRigidBody returns a dynamic body at pos with unit mass and inertia.
func NewRigidBody(pos mgl64.Vec3) *RigidBody {
	return &RigidBody{
		Position:        pos,
		PrevPosition:    pos,
		Mass:            1,
		MomentOfInertia: 1,
		CollisionRadius: 1,
	}
}

// ApplyThrust adds a force along direction with magnitude clamped to MaxThrust.
// A zero direction contributes nothing.
func (b *RigidBody) ApplyThrust(direction mgl64.Vec3, magnitude float64) {
	dir, ok := normalize(direction)
	if !ok {
		return
	}
	b.AppliedForce = b.AppliedForce.Add(dir.Mul(clampMagnitude(magnitude, b.MaxThrust)))
}

// ApplyRotationalThrust adds torque about axis with magnitude clamped to MaxTorque.
// A zero-length axis yields zero torque.
func (b *RigidBody) ApplyRotationalThrust(axis mgl64.Vec3, magnitude float64) {
	ax, ok := normalize(axis)
	if !ok {
		return
	}
	b.AppliedTorque = b.AppliedTorque.Add(ax.Mul(clampMagnitude(magnitude, b.MaxTorque)))
}

// ApplyForce injects an unclamped force. Reserved for environmental effects.
func (b *RigidBody) ApplyForce(f mgl64.Vec3) {
	b.AppliedForce = b.AppliedForce.Add(f)
}

// ApplyTorque injects an unclamped torque. Reserved for environmental effects.
func (b *RigidBody) ApplyTorque(t mgl64.Vec3) {
	b.AppliedTorque = b.AppliedTorque.Add(t)
}

func (b *RigidBody) ClearAccumulators() {
	b.AppliedForce = mgl64.Vec3{}
	b.AppliedTorque = mgl64.Vec3{}
}

// InverseMass is zero for static bodies and for non-positive mass.
func (b *RigidBody) InverseMass() float64 {
	if b.Static || b.Mass <= 0 {
		return 0
	}
	return 1 / b.Mass
}

// SyncFromStructure copies the structure's mass, inertia and thrust/torque caps.
// An empty structure leaves mass and inertia untouched so the body never reaches zero mass
// through destruction alone.
func (b *RigidBody) SyncFromStructure(s *voxel.Structure) {
	if s == nil {
		return
	}
	st := s.Stats()
	if st.TotalMass > 0 {
		b.Mass = st.TotalMass
	}
	if st.MomentOfInertia > 0 {
		b.MomentOfInertia = st.MomentOfInertia
	}
	b.MaxThrust = st.TotalThrust
	b.MaxTorque = st.TotalTorque
}

func clampMagnitude(m, max float64) float64 {
	if max < 0 {
		max = 0
	}
	if m > max {
		return max
	}
	if m < -max {
		return -max
	}
	return m
}

func normalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	l := v.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / l), true
}
