package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultMaxVelocity        = 1000.0
	DefaultMaxAngularVelocity = 10.0
)

// Integrator advances bodies with semi-implicit Euler and exponential drag.
// Non-positive limits disable the corresponding clamp.
type Integrator struct {
	MaxVelocity        float64
	MaxAngularVelocity float64
}

func NewIntegrator() *Integrator {
	return &Integrator{MaxVelocity: DefaultMaxVelocity, MaxAngularVelocity: DefaultMaxAngularVelocity}
}

// Update integrates every non-static body in ascending id order. Static bodies only have
// their accumulators cleared.
func (in *Integrator) Update(reg Registry, dt float64) {
	for _, id := range reg.BodyIDs() {
		b := reg.Body(id)
		if b == nil {
			continue
		}
		in.Step(b, dt)
	}
}

// Step integrates a single body by dt.
func (in *Integrator) Step(b *RigidBody, dt float64) {
	if b.Static || dt <= 0 {
		b.ClearAccumulators()
		return
	}
	b.PrevPosition = b.Position
	b.PrevRotation = b.Rotation

	b.Acceleration = mgl64.Vec3{}
	if b.Mass > 0 {
		b.Acceleration = b.AppliedForce.Mul(1 / b.Mass)
	}
	b.AngularAcceleration = mgl64.Vec3{}
	if b.MomentOfInertia > 0 {
		b.AngularAcceleration = b.AppliedTorque.Mul(1 / b.MomentOfInertia)
	}

	b.Velocity = b.Velocity.Add(b.Acceleration.Mul(dt))
	b.AngularVelocity = b.AngularVelocity.Add(b.AngularAcceleration.Mul(dt))

	if b.LinearDrag != 0 {
		b.Velocity = b.Velocity.Mul(math.Exp(-b.LinearDrag * dt))
	}
	if b.AngularDrag != 0 {
		b.AngularVelocity = b.AngularVelocity.Mul(math.Exp(-b.AngularDrag * dt))
	}

	b.Velocity = clampLength(b.Velocity, in.MaxVelocity)
	b.AngularVelocity = clampLength(b.AngularVelocity, in.MaxAngularVelocity)

	b.Position = b.Position.Add(b.Velocity.Mul(dt))
	b.Rotation = b.Rotation.Add(b.AngularVelocity.Mul(dt))

	b.ClearAccumulators()
}

// Transform is a render-only pose.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Vec3
}

// InterpolatePhysics blends the previous and current pose by alpha in [0,1].
// The result must not be written back into the body.
func InterpolatePhysics(b *RigidBody, alpha float64) Transform {
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	if b.Static {
		return Transform{Position: b.Position, Rotation: b.Rotation}
	}
	return Transform{
		Position: lerp(b.PrevPosition, b.Position, alpha),
		Rotation: lerp(b.PrevRotation, b.Rotation, alpha),
	}
}

func lerp(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

func clampLength(v mgl64.Vec3, max float64) mgl64.Vec3 {
	if max <= 0 {
		return v
	}
	l2 := v.Dot(v)
	if l2 <= max*max {
		return v
	}
	return v.Mul(max / math.Sqrt(l2))
}
