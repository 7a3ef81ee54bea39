package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"subspace.dev/internal/sim/voxel"
)

// stateDigest hashes every durable field in ascending entity and block id order, so two
// worlds that applied the same commands produce the same digest regardless of storage order.
// Render-only and per-tick transient fields are excluded.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, w.nextEntityID)
	digestWriteU64(h, &tmp, uint64(len(w.ids)))

	for _, id := range w.ids {
		e := w.entities[id]
		b := e.Body
		digestWriteU64(h, &tmp, uint64(id))
		digestWriteVec(h, &tmp, b.Position)
		digestWriteVec(h, &tmp, b.Velocity)
		digestWriteVec(h, &tmp, b.Rotation)
		digestWriteVec(h, &tmp, b.AngularVelocity)
		digestWriteF64(h, &tmp, b.Mass)
		digestWriteF64(h, &tmp, b.MomentOfInertia)
		digestWriteF64(h, &tmp, b.LinearDrag)
		digestWriteF64(h, &tmp, b.AngularDrag)
		digestWriteF64(h, &tmp, b.MaxThrust)
		digestWriteF64(h, &tmp, b.MaxTorque)
		digestWriteF64(h, &tmp, b.CollisionRadius)
		h.Write([]byte{boolByte(b.Static), boolByte(e.Structure != nil)})
		if e.Structure != nil {
			digestStructure(h, &tmp, e.Structure)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestStructure(h hashWriter, tmp *[8]byte, s *voxel.Structure) {
	blocks := s.Blocks()
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })
	digestWriteU64(h, tmp, uint64(s.NextID()))
	digestWriteU64(h, tmp, uint64(len(blocks)))
	for _, b := range blocks {
		digestWriteU64(h, tmp, uint64(b.ID))
		digestWriteVec(h, tmp, b.Position)
		digestWriteVec(h, tmp, b.Size)
		h.Write([]byte{byte(b.Material), byte(b.Type), byte(b.Shape), byte(b.Orientation)})
		digestWriteF64(h, tmp, b.Durability)
		digestWriteF64(h, tmp, b.MaxDurability)
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

// Floats hash by bit pattern; -0 and +0 differ, which is fine for replay equality.
func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v mgl64.Vec3) {
	digestWriteF64(h, tmp, v[0])
	digestWriteF64(h, tmp, v[1])
	digestWriteF64(h, tmp, v[2])
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}
