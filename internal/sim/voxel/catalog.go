package voxel

import "github.com/go-gl/mathgl/mgl64"

// BaseDurabilityPerVolume is the max durability of one unit of iron hull.
const BaseDurabilityPerVolume = 100.0

// TypeDef holds the per-volume coefficients of a block type. Thrust, torque and power scale
// with the material's energy efficiency; shield capacity with its shield multiplier.
type TypeDef struct {
	Type             BlockType
	DurabilityFactor float64
	MassFactor       float64
	ThrustPerVolume  float64
	TorquePerVolume  float64
	PowerPerVolume   float64
	ShieldPerVolume  float64
}

// DefaultTypeDefs returns the built-in coefficients. Types not listed behave like hull.
func DefaultTypeDefs() map[BlockType]TypeDef {
	defs := make(map[BlockType]TypeDef, len(blockTypeNames))
	for i := range blockTypeNames {
		t := BlockType(i)
		defs[t] = TypeDef{Type: t, DurabilityFactor: 1, MassFactor: 1}
	}
	defs[Armor] = TypeDef{Type: Armor, DurabilityFactor: 5, MassFactor: 1.5}
	defs[Engine] = TypeDef{Type: Engine, DurabilityFactor: 1, MassFactor: 1, ThrustPerVolume: 50}
	defs[Thruster] = TypeDef{Type: Thruster, DurabilityFactor: 1, MassFactor: 1, ThrustPerVolume: 30}
	defs[GyroArray] = TypeDef{Type: GyroArray, DurabilityFactor: 1, MassFactor: 1, TorquePerVolume: 20}
	defs[Generator] = TypeDef{Type: Generator, DurabilityFactor: 1, MassFactor: 1, PowerPerVolume: 100}
	defs[ShieldGenerator] = TypeDef{Type: ShieldGenerator, DurabilityFactor: 1, MassFactor: 1, ShieldPerVolume: 200}
	return defs
}

// Catalog resolves materials and type coefficients when building blocks.
type Catalog struct {
	Materials map[MaterialID]Material
	Types     map[BlockType]TypeDef
}

func DefaultCatalog() *Catalog {
	return &Catalog{Materials: DefaultMaterials(), Types: DefaultTypeDefs()}
}

// Material returns the material for id, falling back to iron.
func (c *Catalog) Material(id MaterialID) Material {
	if c != nil {
		if m, ok := c.Materials[id]; ok {
			return m
		}
		if m, ok := c.Materials[Iron]; ok {
			return m
		}
	}
	return ironMaterial
}

func (c *Catalog) TypeDef(t BlockType) TypeDef {
	if c != nil {
		if d, ok := c.Types[t]; ok {
			return d
		}
	}
	return TypeDef{Type: t, DurabilityFactor: 1, MassFactor: 1}
}

// NewBlock builds a full-durability block with derived properties filled in.
func (c *Catalog) NewBlock(pos, size mgl64.Vec3, mat MaterialID, typ BlockType, shape Shape, orient Orientation) Block {
	b := Block{
		Position:    pos,
		Size:        size,
		Material:    mat,
		Type:        typ,
		Shape:       shape,
		Orientation: orient,
	}
	c.Derive(&b)
	b.Durability = b.MaxDurability
	return b
}

// Derive recomputes mass, max durability and functional output from the block's geometry,
// material and type. Current durability is clamped to the new maximum but otherwise kept.
func (c *Catalog) Derive(b *Block) {
	m := c.Material(b.Material)
	def := c.TypeDef(b.Type)
	v := b.Volume()

	b.Mass = v * m.Density * def.MassFactor
	b.MaxDurability = BaseDurabilityPerVolume * m.DurabilityMultiplier * v * def.DurabilityFactor
	b.Thrust = def.ThrustPerVolume * v * m.EnergyEfficiency
	b.Torque = def.TorquePerVolume * v * m.EnergyEfficiency
	b.PowerGeneration = def.PowerPerVolume * v * m.EnergyEfficiency
	b.ShieldCapacity = def.ShieldPerVolume * v * m.ShieldMultiplier
	if b.Durability > b.MaxDurability {
		b.Durability = b.MaxDurability
	}
}
