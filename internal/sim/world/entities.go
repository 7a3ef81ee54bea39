package world

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/physics"
	"subspace.dev/internal/sim/voxel"
)

// physics.Registry

func (w *World) BodyIDs() []physics.EntityID { return w.ids }

func (w *World) Body(id physics.EntityID) *physics.RigidBody {
	if e := w.entities[id]; e != nil {
		return e.Body
	}
	return nil
}

func (w *World) Structure(id physics.EntityID) *voxel.Structure {
	if e := w.entities[id]; e != nil {
		return e.Structure
	}
	return nil
}

// physics.EventSink

func (w *World) PublishCollision(ev physics.CollisionEvent) {
	w.collisions = append(w.collisions, ev)
}

func (w *World) addEntity(e *Entity) {
	w.entities[e.ID] = e
	i := sort.Search(len(w.ids), func(i int) bool { return w.ids[i] >= e.ID })
	if i < len(w.ids) && w.ids[i] == e.ID {
		return
	}
	w.ids = append(w.ids, 0)
	copy(w.ids[i+1:], w.ids[i:])
	w.ids[i] = e.ID
	if uint64(e.ID) >= w.nextEntityID {
		w.nextEntityID = uint64(e.ID) + 1
	}
}

func (w *World) removeEntity(id physics.EntityID) bool {
	if _, ok := w.entities[id]; !ok {
		return false
	}
	delete(w.entities, id)
	i := sort.Search(len(w.ids), func(i int) bool { return w.ids[i] >= id })
	if i < len(w.ids) && w.ids[i] == id {
		w.ids = append(w.ids[:i], w.ids[i+1:]...)
	}
	return true
}

// newBody applies the configured spawn defaults. Bodies without blocks get the inertia of
// a solid cube with half-extent CollisionRadius.
func (w *World) newBody(pos, vel mgl64.Vec3, static bool) *physics.RigidBody {
	d := w.cfg.Defaults
	b := physics.NewRigidBody(pos)
	b.Velocity = vel
	b.Mass = d.Mass
	b.MomentOfInertia = d.Mass * d.CollisionRadius * d.CollisionRadius * 2 / 3
	b.LinearDrag = d.LinearDrag
	b.AngularDrag = d.AngularDrag
	b.MaxThrust = d.MaxThrust
	b.MaxTorque = d.MaxTorque
	b.CollisionRadius = d.CollisionRadius
	b.Static = static
	return b
}

// EntityCount is the number of live entities.
func (w *World) EntityCount() int { return len(w.ids) }

// BlockCount is the number of blocks across all structures.
func (w *World) BlockCount() int {
	n := 0
	for _, e := range w.entities {
		if e.Structure != nil {
			n += e.Structure.Len()
		}
	}
	return n
}

// BodyState returns the wire view of one entity.
// Like all state accessors it must be called from the goroutine that steps the world.
func (w *World) BodyState(id uint64) (protocol.BodyState, bool) {
	e := w.entities[physics.EntityID(id)]
	if e == nil {
		return protocol.BodyState{}, false
	}
	return bodyState(e), true
}

// Bodies returns the wire view of every entity in ascending id order.
func (w *World) Bodies() []protocol.BodyState {
	out := make([]protocol.BodyState, 0, len(w.ids))
	for _, id := range w.ids {
		out = append(out, bodyState(w.entities[id]))
	}
	return out
}

// StructureStats returns the aggregate stats of an entity's structure.
func (w *World) StructureStats(id uint64) (voxel.Stats, bool) {
	e := w.entities[physics.EntityID(id)]
	if e == nil || e.Structure == nil {
		return voxel.Stats{}, false
	}
	return e.Structure.Stats(), true
}

func bodyState(e *Entity) protocol.BodyState {
	b := e.Body
	st := protocol.BodyState{
		ID:     uint64(e.ID),
		Pos:    b.Position,
		Vel:    b.Velocity,
		Rot:    b.Rotation,
		Mass:   b.Mass,
		Static: b.Static,
	}
	if e.Structure != nil {
		st.Blocks = e.Structure.Len()
		st.Integrity = e.Structure.StructuralIntegrity()
	}
	return st
}
