package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const DefaultRestitution = 0.5

// CollisionData is the per-pair narrow-phase result. It lives for one resolution only.
type CollisionData struct {
	Normal  mgl64.Vec3 // unit axis pointing from A toward B
	Point   mgl64.Vec3
	Depth   float64
	Impulse float64
}

// CheckAABBCollision tests a against b. The separation axis is the one with the smallest
// overlap; the normal follows the sign of centerB-centerA on that axis.
func CheckAABBCollision(a, b AABB) (CollisionData, bool) {
	var (
		cd      CollisionData
		axis    = -1
		minOver = math.Inf(1)
	)
	for i := 0; i < 3; i++ {
		lo := math.Max(a.Min[i], b.Min[i])
		hi := math.Min(a.Max[i], b.Max[i])
		over := hi - lo
		if over <= 0 {
			return CollisionData{}, false
		}
		cd.Point[i] = (lo + hi) * 0.5
		if over < minOver {
			minOver = over
			axis = i
		}
	}
	sign := 1.0
	if b.Center()[axis] < a.Center()[axis] {
		sign = -1
	}
	cd.Normal[axis] = sign
	cd.Depth = minOver
	return cd, true
}

type pairKey struct{ lo, hi EntityID }

func makePair(a, b EntityID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Resolver runs broad phase, narrow phase and impulse response for one tick.
// Response is applied immediately per pair in ascending entity order, and each unordered
// pair is resolved at most once per call.
type Resolver struct {
	Grid *SpatialGrid
	// Restitution is 0.5 (DefaultRestitution) in every running world; other values exist
	// so tests can exercise perfectly elastic or inelastic contacts.
	Restitution float64
	Sink        EventSink

	done  map[pairKey]struct{}
	boxes map[EntityID]AABB
}

func NewResolver(cellSize float64, sink EventSink) *Resolver {
	return &Resolver{
		Grid:        NewSpatialGrid(cellSize),
		Restitution: DefaultRestitution,
		Sink:        sink,
		done:        map[pairKey]struct{}{},
		boxes:       map[EntityID]AABB{},
	}
}

// Resolve rebuilds the grid from current positions and resolves every overlapping pair
// that involves at least one dynamic body. It returns the number of contacts resolved.
func (r *Resolver) Resolve(reg Registry) int {
	if r.Grid == nil {
		r.Grid = NewSpatialGrid(DefaultCellSize)
	}
	if r.done == nil {
		r.done = map[pairKey]struct{}{}
	}
	if r.boxes == nil {
		r.boxes = map[EntityID]AABB{}
	}
	clear(r.done)
	clear(r.boxes)

	ids := reg.BodyIDs()
	r.Grid.Clear()
	for _, id := range ids {
		b := reg.Body(id)
		if b == nil {
			continue
		}
		box := BodyAABB(b, reg.Structure(id))
		r.boxes[id] = box
		r.Grid.Insert(id, box)
	}

	contacts := 0
	for _, id := range ids {
		body := reg.Body(id)
		if body == nil || body.Static {
			continue
		}
		box, ok := r.boxes[id]
		if !ok {
			continue
		}
		for _, other := range r.Grid.QueryNearby(box) {
			if other == id {
				continue
			}
			key := makePair(id, other)
			if _, seen := r.done[key]; seen {
				continue
			}
			ob := reg.Body(other)
			if ob == nil {
				continue
			}
			// Earlier contacts this tick may have moved either body.
			a := BodyAABB(body, reg.Structure(id))
			b := BodyAABB(ob, reg.Structure(other))
			cd, hit := CheckAABBCollision(a, b)
			if !hit {
				continue
			}
			r.done[key] = struct{}{}
			if !r.respond(body, ob, &cd) {
				continue
			}
			contacts++
			if r.Sink != nil {
				r.Sink.PublishCollision(CollisionEvent{
					A:       id,
					B:       other,
					Point:   cd.Point,
					Normal:  cd.Normal,
					Depth:   cd.Depth,
					Impulse: cd.Impulse,
				})
			}
		}
	}
	return contacts
}

// respond separates the bodies and applies the restitution impulse. It reports false
// when neither body can move.
func (r *Resolver) respond(a, b *RigidBody, cd *CollisionData) bool {
	invA := a.InverseMass()
	invB := b.InverseMass()
	invSum := invA + invB
	if invSum <= 0 {
		return false
	}

	// Each side moves in proportion to the other's mass; a static side does not move.
	a.Position = a.Position.Sub(cd.Normal.Mul(cd.Depth * invA / invSum))
	b.Position = b.Position.Add(cd.Normal.Mul(cd.Depth * invB / invSum))

	vn := b.Velocity.Sub(a.Velocity).Dot(cd.Normal)
	if vn >= 0 {
		cd.Impulse = 0
		return true
	}
	j := -(1 + r.Restitution) * vn / invSum
	cd.Impulse = j
	a.Velocity = a.Velocity.Sub(cd.Normal.Mul(j * invA))
	b.Velocity = b.Velocity.Add(cd.Normal.Mul(j * invB))
	return true
}
