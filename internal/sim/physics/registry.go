package physics

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/sim/voxel"
)

// Registry is the entity lookup the simulation reads from.
// BodyIDs must be ascending; Structure returns nil for entities without one.
type Registry interface {
	BodyIDs() []EntityID
	Body(id EntityID) *RigidBody
	Structure(id EntityID) *voxel.Structure
}

// CollisionEvent is published once per resolved contact.
type CollisionEvent struct {
	A       EntityID
	B       EntityID
	Point   mgl64.Vec3
	Normal  mgl64.Vec3
	Depth   float64
	Impulse float64
}

// EventSink receives collision events. Publishing must not call back into the simulation.
type EventSink interface {
	PublishCollision(ev CollisionEvent)
}

// EventBuffer is an EventSink that keeps events in publish order.
type EventBuffer struct {
	Events []CollisionEvent
}

func (b *EventBuffer) PublishCollision(ev CollisionEvent) { b.Events = append(b.Events, ev) }

func (b *EventBuffer) Reset() { b.Events = b.Events[:0] }

// MapRegistry is a simple Registry backed by maps.
type MapRegistry struct {
	Bodies     map[EntityID]*RigidBody
	Structures map[EntityID]*voxel.Structure
}

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{
		Bodies:     map[EntityID]*RigidBody{},
		Structures: map[EntityID]*voxel.Structure{},
	}
}

func (r *MapRegistry) BodyIDs() []EntityID {
	ids := make([]EntityID, 0, len(r.Bodies))
	for id := range r.Bodies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *MapRegistry) Body(id EntityID) *RigidBody { return r.Bodies[id] }

func (r *MapRegistry) Structure(id EntityID) *voxel.Structure { return r.Structures[id] }
