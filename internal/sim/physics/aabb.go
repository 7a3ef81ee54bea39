package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/sim/voxel"
)

type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func (a AABB) Center() mgl64.Vec3 { return a.Min.Add(a.Max).Mul(0.5) }
func (a AABB) Size() mgl64.Vec3   { return a.Max.Sub(a.Min) }

// Overlaps reports strict overlap on all three axes.
func (a AABB) Overlaps(b AABB) bool {
	for i := 0; i < 3; i++ {
		if a.Max[i] <= b.Min[i] || b.Max[i] <= a.Min[i] {
			return false
		}
	}
	return true
}

// Translate returns the box moved by d.
func (a AABB) Translate(d mgl64.Vec3) AABB {
	return AABB{Min: a.Min.Add(d), Max: a.Max.Add(d)}
}

// RadiusAABB is the fallback shape: a cube of half-extent r around pos.
func RadiusAABB(pos mgl64.Vec3, r float64) AABB {
	if r < 0 {
		r = 0
	}
	h := mgl64.Vec3{r, r, r}
	return AABB{Min: pos.Sub(h), Max: pos.Add(h)}
}

// BodyAABB uses the structure's block extents offset by the body position when the
// structure is present and non-empty, else the collision radius. Rotation is ignored.
func BodyAABB(b *RigidBody, s *voxel.Structure) AABB {
	if s != nil {
		if min, max, ok := s.Bounds(); ok {
			return AABB{Min: b.Position.Add(min), Max: b.Position.Add(max)}
		}
	}
	return RadiusAABB(b.Position, b.CollisionRadius)
}
