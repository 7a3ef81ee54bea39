package voxel

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// BlockID is a structure-local block identity. Zero is never assigned.
type BlockID uint32

type BlockType uint8

const (
	Hull BlockType = iota
	Armor
	Engine
	Thruster
	GyroArray
	Generator
	ShieldGenerator
	TurretMount
	HyperdriveCore
	Cargo
	CrewQuarters
	PodDocking
	Computer
	Battery
	IntegrityField
)

var blockTypeNames = [...]string{
	Hull:            "HULL",
	Armor:           "ARMOR",
	Engine:          "ENGINE",
	Thruster:        "THRUSTER",
	GyroArray:       "GYRO_ARRAY",
	Generator:       "GENERATOR",
	ShieldGenerator: "SHIELD_GENERATOR",
	TurretMount:     "TURRET_MOUNT",
	HyperdriveCore:  "HYPERDRIVE_CORE",
	Cargo:           "CARGO",
	CrewQuarters:    "CREW_QUARTERS",
	PodDocking:      "POD_DOCKING",
	Computer:        "COMPUTER",
	Battery:         "BATTERY",
	IntegrityField:  "INTEGRITY_FIELD",
}

func (t BlockType) String() string {
	if int(t) < len(blockTypeNames) {
		return blockTypeNames[t]
	}
	return "UNKNOWN"
}

func ParseBlockType(name string) (BlockType, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range blockTypeNames {
		if n == name {
			return BlockType(i), true
		}
	}
	return Hull, false
}

type Shape uint8

const (
	Cube Shape = iota
	Wedge
	Corner
	InnerCorner
	Tetrahedron
	HalfBlock
)

// VolumeFactor is the fraction of the bounding box the shape fills.
func (s Shape) VolumeFactor() float64 {
	switch s {
	case Wedge, HalfBlock:
		return 0.5
	case Corner, Tetrahedron:
		return 0.25
	case InnerCorner:
		return 0.75
	default:
		return 1
	}
}

type Orientation uint8

const (
	PosX Orientation = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

// Block is an axis-aligned box centred on Position (local to the owning structure).
// Derived fields are filled by Catalog.NewBlock; tests and importers may set them directly.
type Block struct {
	ID          BlockID
	Position    mgl64.Vec3
	Size        mgl64.Vec3
	Material    MaterialID
	Type        BlockType
	Shape       Shape
	Orientation Orientation

	Durability    float64
	MaxDurability float64
	Mass          float64

	Thrust          float64
	Torque          float64
	PowerGeneration float64
	ShieldCapacity  float64
}

// Volume is the effective volume after the shape factor.
func (b Block) Volume() float64 {
	return b.Size.X() * b.Size.Y() * b.Size.Z() * b.Shape.VolumeFactor()
}

func (b Block) Min() mgl64.Vec3 { return b.Position.Sub(b.Size.Mul(0.5)) }
func (b Block) Max() mgl64.Vec3 { return b.Position.Add(b.Size.Mul(0.5)) }

// TakeDamage subtracts damage, clamping at zero. Reports whether the block is destroyed.
func (b *Block) TakeDamage(damage float64) bool {
	b.Durability -= damage
	if b.Durability <= 0 {
		b.Durability = 0
		return true
	}
	return false
}

func (b Block) Destroyed() bool { return b.Durability <= 0 }

// Intersects reports strict box overlap; touching faces do not intersect.
func (b Block) Intersects(o Block) bool {
	amin, amax := b.Min(), b.Max()
	bmin, bmax := o.Min(), o.Max()
	for i := 0; i < 3; i++ {
		if amin[i] >= bmax[i] || amax[i] <= bmin[i] {
			return false
		}
	}
	return true
}
