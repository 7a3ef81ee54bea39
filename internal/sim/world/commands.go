package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/protocol"
	"subspace.dev/internal/sim/physics"
	"subspace.dev/internal/sim/voxel"
)

// Largest accepted block edge, spawn payload and absolute coordinate.
const (
	maxBlockEdge      = 1000.0
	maxBlocksPerSpawn = 4096
	maxCoord          = 1e9
)

// applyCmd executes one command against world state and returns its ACK.
func (w *World) applyCmd(cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	switch cmd.Cmd {
	case protocol.CmdSpawn:
		return w.cmdSpawn(cmd, nowTick)
	case protocol.CmdDespawn:
		if !w.removeEntity(physics.EntityID(cmd.EntityID)) {
			return unknownEntity(cmd, nowTick)
		}
		return protocol.NewAck(cmd.ID, nowTick)
	case protocol.CmdThrust, protocol.CmdRotate:
		return w.cmdThrust(cmd, nowTick)
	case protocol.CmdDamage:
		return w.cmdDamage(cmd, nowTick)
	case protocol.CmdAddBlock:
		return w.cmdAddBlock(cmd, nowTick)
	case protocol.CmdRemoveBlock:
		return w.cmdRemoveBlock(cmd, nowTick)
	default:
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, fmt.Sprintf("unknown cmd %q", cmd.Cmd))
	}
}

func unknownEntity(cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	return protocol.NewReject(cmd.ID, nowTick, protocol.ErrUnknownEntity, fmt.Sprintf("entity %d not found", cmd.EntityID))
}

func (w *World) cmdSpawn(cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	pos, vel := mgl64.Vec3(cmd.Pos), mgl64.Vec3(cmd.Vel)
	if !finiteVec(pos) || !finiteVec(vel) {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, "pos and vel must be finite")
	}
	if !inRange(pos) {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, fmt.Sprintf("pos must be within ±%g", maxCoord))
	}
	if len(cmd.Blocks) > maxBlocksPerSpawn {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, fmt.Sprintf("too many blocks (%d > %d)", len(cmd.Blocks), maxBlocksPerSpawn))
	}
	// Validate everything before touching state so a bad block rejects the whole spawn.
	blocks := make([]voxel.Block, 0, len(cmd.Blocks))
	for i, spec := range cmd.Blocks {
		b, err := w.buildBlock(spec)
		if err != nil {
			return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, fmt.Sprintf("blocks[%d]: %v", i, err))
		}
		blocks = append(blocks, b)
	}

	e := &Entity{
		ID:   physics.EntityID(w.nextEntityID),
		Body: w.newBody(pos, vel, cmd.Static),
	}
	if len(blocks) > 0 {
		e.Structure = voxel.NewStructure()
		for _, b := range blocks {
			e.Structure.AddBlock(b)
		}
		e.Body.SyncFromStructure(e.Structure)
	}
	w.addEntity(e)

	ack := protocol.NewAck(cmd.ID, nowTick)
	ack.EntityID = uint64(e.ID)
	return ack
}

func (w *World) cmdThrust(cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	e := w.entities[physics.EntityID(cmd.EntityID)]
	if e == nil {
		return unknownEntity(cmd, nowTick)
	}
	if e.Body.Static {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrStaticBody, "static bodies cannot be driven")
	}
	if math.IsNaN(cmd.Magnitude) || math.IsInf(cmd.Magnitude, 0) {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, "magnitude must be finite")
	}
	if cmd.Cmd == protocol.CmdThrust {
		e.Body.ApplyThrust(mgl64.Vec3(cmd.Direction), cmd.Magnitude)
	} else {
		e.Body.ApplyRotationalThrust(mgl64.Vec3(cmd.Axis), cmd.Magnitude)
	}
	return protocol.NewAck(cmd.ID, nowTick)
}

func (w *World) cmdDamage(cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	e := w.entities[physics.EntityID(cmd.EntityID)]
	if e == nil {
		return unknownEntity(cmd, nowTick)
	}
	point := mgl64.Vec3(cmd.Point)
	if !finiteVec(point) || !finite(cmd.Radius) || !finite(cmd.Damage) || cmd.Radius < 0 || cmd.Damage < 0 {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, "point, radius and damage must be finite and non-negative")
	}
	if e.Structure == nil {
		return protocol.NewAck(cmd.ID, nowTick)
	}
	destroyed := e.Structure.DamageAtPosition(point, cmd.Radius, cmd.Damage)
	if len(destroyed) > 0 {
		for _, b := range destroyed {
			w.destroyed = append(w.destroyed, DestroyedBlock{
				EntityID:  uint64(e.ID),
				BlockID:   uint32(b.ID),
				BlockType: b.Type.String(),
				Pos:       b.Position,
			})
		}
		e.Body.SyncFromStructure(e.Structure)
	}
	return protocol.NewAck(cmd.ID, nowTick)
}

func (w *World) cmdAddBlock(cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	e := w.entities[physics.EntityID(cmd.EntityID)]
	if e == nil {
		return unknownEntity(cmd, nowTick)
	}
	if cmd.Block == nil {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, "missing block")
	}
	b, err := w.buildBlock(*cmd.Block)
	if err != nil {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrBadRequest, err.Error())
	}
	if e.Structure == nil {
		e.Structure = voxel.NewStructure()
	}
	id := e.Structure.AddBlock(b)
	e.Body.SyncFromStructure(e.Structure)

	ack := protocol.NewAck(cmd.ID, nowTick)
	ack.EntityID = uint64(e.ID)
	ack.BlockID = uint32(id)
	return ack
}

func (w *World) cmdRemoveBlock(cmd protocol.CmdMsg, nowTick uint64) protocol.AckMsg {
	e := w.entities[physics.EntityID(cmd.EntityID)]
	if e == nil {
		return unknownEntity(cmd, nowTick)
	}
	if e.Structure == nil || !e.Structure.RemoveBlock(voxel.BlockID(cmd.BlockID)) {
		return protocol.NewReject(cmd.ID, nowTick, protocol.ErrUnknownBlock, fmt.Sprintf("block %d not found", cmd.BlockID))
	}
	e.Body.SyncFromStructure(e.Structure)
	return protocol.NewAck(cmd.ID, nowTick)
}

func (w *World) buildBlock(spec protocol.BlockSpec) (voxel.Block, error) {
	pos, size := mgl64.Vec3(spec.Pos), mgl64.Vec3(spec.Size)
	if !finiteVec(pos) || !inRange(pos) {
		return voxel.Block{}, fmt.Errorf("pos must be finite and within ±%g", maxCoord)
	}
	for i := 0; i < 3; i++ {
		if !finite(size[i]) || size[i] <= 0 || size[i] > maxBlockEdge {
			return voxel.Block{}, fmt.Errorf("size must be in (0, %g]", maxBlockEdge)
		}
	}
	mat, ok := voxel.ParseMaterial(spec.Material)
	if !ok {
		return voxel.Block{}, fmt.Errorf("unknown material %q", spec.Material)
	}
	typ, ok := voxel.ParseBlockType(spec.BlockType)
	if !ok {
		return voxel.Block{}, fmt.Errorf("unknown block type %q", spec.BlockType)
	}
	if spec.Shape > uint8(voxel.HalfBlock) {
		return voxel.Block{}, fmt.Errorf("unknown shape %d", spec.Shape)
	}
	if spec.Orientation > uint8(voxel.NegZ) {
		return voxel.Block{}, fmt.Errorf("unknown orientation %d", spec.Orientation)
	}
	return w.blocks.NewBlock(pos, size, mat, typ, voxel.Shape(spec.Shape), voxel.Orientation(spec.Orientation)), nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteVec(v mgl64.Vec3) bool { return finite(v[0]) && finite(v[1]) && finite(v[2]) }

func inRange(v mgl64.Vec3) bool {
	return math.Abs(v[0]) <= maxCoord && math.Abs(v[1]) <= maxCoord && math.Abs(v[2]) <= maxCoord
}
