package world

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/persistence/snapshot"
	"subspace.dev/internal/sim/physics"
	"subspace.dev/internal/sim/voxel"
)

// ExportSnapshot captures durable state after tick nowTick. Blocks keep storage order so
// an imported structure aggregates in the same order as the original.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	d := w.catalogDigests()
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		TickRateHz:       w.cfg.TickRateHz,
		MaterialsDigest:  d.MaterialsDigest,
		BlockTypesDigest: d.BlockTypesDigest,
		TuningDigest:     w.cfg.TuningDigest,
		NextEntityID:     w.nextEntityID,
		Bodies:           make([]snapshot.BodyV1, 0, len(w.ids)),
	}
	for _, id := range w.ids {
		e := w.entities[id]
		b := e.Body
		bv := snapshot.BodyV1{
			ID:              uint64(id),
			Pos:             b.Position,
			Vel:             b.Velocity,
			Rot:             b.Rotation,
			AngVel:          b.AngularVelocity,
			Mass:            b.Mass,
			Inertia:         b.MomentOfInertia,
			LinearDrag:      b.LinearDrag,
			AngularDrag:     b.AngularDrag,
			MaxThrust:       b.MaxThrust,
			MaxTorque:       b.MaxTorque,
			CollisionRadius: b.CollisionRadius,
			Static:          b.Static,
		}
		if e.Structure != nil {
			blocks := e.Structure.Blocks()
			sv := &snapshot.StructureV1{
				NextBlockID: uint32(e.Structure.NextID()),
				Blocks:      make([]snapshot.BlockV1, 0, len(blocks)),
			}
			for _, blk := range blocks {
				sv.Blocks = append(sv.Blocks, snapshot.BlockV1{
					ID:            uint32(blk.ID),
					Pos:           blk.Position,
					Size:          blk.Size,
					Material:      uint8(blk.Material),
					Type:          uint8(blk.Type),
					Shape:         uint8(blk.Shape),
					Orientation:   uint8(blk.Orientation),
					Durability:    blk.Durability,
					MaxDurability: blk.MaxDurability,
				})
			}
			bv.Structure = sv
		}
		snap.Bodies = append(snap.Bodies, bv)
	}
	return snap
}

// ImportSnapshot replaces all entities with the snapshot contents. The next step is
// Header.Tick+1. Connected clients are kept.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) error {
	if snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if snap.TickRateHz != 0 && snap.TickRateHz != w.cfg.TickRateHz {
		return fmt.Errorf("snapshot tick rate %d != configured %d", snap.TickRateHz, w.cfg.TickRateHz)
	}
	d := w.catalogDigests()
	if mismatch(snap.MaterialsDigest, d.MaterialsDigest) {
		return errors.New("materials catalog digest mismatch")
	}
	if mismatch(snap.BlockTypesDigest, d.BlockTypesDigest) {
		return errors.New("block types catalog digest mismatch")
	}

	entities := make(map[physics.EntityID]*Entity, len(snap.Bodies))
	for _, bv := range snap.Bodies {
		id := physics.EntityID(bv.ID)
		if id == 0 {
			return errors.New("snapshot body with zero id")
		}
		if _, dup := entities[id]; dup {
			return fmt.Errorf("duplicate body id %d", bv.ID)
		}
		b := physics.NewRigidBody(mgl64.Vec3(bv.Pos))
		b.Velocity = bv.Vel
		b.Rotation = bv.Rot
		b.PrevRotation = bv.Rot
		b.AngularVelocity = bv.AngVel
		b.Mass = bv.Mass
		b.MomentOfInertia = bv.Inertia
		b.LinearDrag = bv.LinearDrag
		b.AngularDrag = bv.AngularDrag
		b.MaxThrust = bv.MaxThrust
		b.MaxTorque = bv.MaxTorque
		b.CollisionRadius = bv.CollisionRadius
		b.Static = bv.Static

		e := &Entity{ID: id, Body: b}
		if bv.Structure != nil {
			e.Structure = w.restoreStructure(*bv.Structure)
		}
		entities[id] = e
	}

	w.entities = map[physics.EntityID]*Entity{}
	w.ids = w.ids[:0]
	w.nextEntityID = 1
	for _, e := range entities {
		w.addEntity(e)
	}
	if snap.NextEntityID > w.nextEntityID {
		w.nextEntityID = snap.NextEntityID
	}
	w.tick.Store(snap.Header.Tick + 1)
	return nil
}

// Derived block fields come from the current catalog; durability is taken from the
// snapshot so partial damage survives.
func (w *World) restoreStructure(sv snapshot.StructureV1) *voxel.Structure {
	blocks := make([]voxel.Block, 0, len(sv.Blocks))
	for _, bv := range sv.Blocks {
		b := voxel.Block{
			ID:          voxel.BlockID(bv.ID),
			Position:    bv.Pos,
			Size:        bv.Size,
			Material:    voxel.MaterialID(bv.Material),
			Type:        voxel.BlockType(bv.Type),
			Shape:       voxel.Shape(bv.Shape),
			Orientation: voxel.Orientation(bv.Orientation),
		}
		w.blocks.Derive(&b)
		b.MaxDurability = bv.MaxDurability
		b.Durability = bv.Durability
		blocks = append(blocks, b)
	}
	s := voxel.NewStructure()
	s.Restore(blocks, voxel.BlockID(sv.NextBlockID))
	return s
}

func mismatch(a, b string) bool { return a != "" && b != "" && a != b }

// StateDigest is the digest of the last completed tick. After ImportSnapshot it matches the
// digest the exporting world logged for the snapshot tick.
func (w *World) StateDigest() string {
	cur := w.tick.Load()
	if cur == 0 {
		return w.stateDigest(0)
	}
	return w.stateDigest(cur - 1)
}

type snapshotRequest struct {
	done chan snapshotReply
}

type snapshotReply struct {
	tick uint64
	err  error
}

// RequestSnapshot asks the loop goroutine to queue a snapshot of the last completed tick.
// Safe to call from any goroutine (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	req := snapshotRequest{done: make(chan snapshotReply, 1)}
	select {
	case w.admin <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-req.done:
		return r.tick, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleSnapshotRequests(reqs []snapshotRequest) {
	if len(reqs) == 0 {
		return
	}
	var r snapshotReply
	if cur := w.tick.Load(); cur > 0 {
		r.tick = cur - 1
	}
	switch {
	case w.snapshotSink == nil:
		r.err = errors.New("snapshot sink not configured")
	default:
		select {
		case w.snapshotSink <- w.ExportSnapshot(r.tick):
		default:
			r.err = errors.New("snapshot sink backpressure")
		}
	}
	for _, req := range reqs {
		select {
		case req.done <- r:
		default:
		}
	}
}
