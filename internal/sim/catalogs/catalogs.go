package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"subspace.dev/internal/sim/voxel"
	"subspace.dev/schemas"
)

type Catalogs struct {
	Materials  MaterialCatalog
	BlockTypes BlockTypeCatalog
}

type MaterialCatalog struct {
	// File order.
	Defs   []MaterialDef
	ByID   map[string]MaterialDef
	Digest string
}

type MaterialDef struct {
	ID                   string  `json:"id"`
	Density              float64 `json:"density"`
	DurabilityMultiplier float64 `json:"durability_multiplier"`
	EnergyEfficiency     float64 `json:"energy_efficiency"`
	ShieldMultiplier     float64 `json:"shield_multiplier"`
	TechLevel            int     `json:"tech_level"`
}

type BlockTypeCatalog struct {
	Defs   []BlockTypeDef
	ByID   map[string]BlockTypeDef
	Digest string
}

type BlockTypeDef struct {
	ID               string  `json:"id"`
	DurabilityFactor float64 `json:"durability_factor"`
	MassFactor       float64 `json:"mass_factor"`
	ThrustPerVolume  float64 `json:"thrust_per_volume,omitempty"`
	TorquePerVolume  float64 `json:"torque_per_volume,omitempty"`
	PowerPerVolume   float64 `json:"power_per_volume,omitempty"`
	ShieldPerVolume  float64 `json:"shield_per_volume,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadMaterials(filepath.Join(configDir, "materials.json"), &c.Materials); err != nil {
		return nil, err
	}
	if err := loadBlockTypes(filepath.Join(configDir, "block_types.json"), &c.BlockTypes); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// readValidated reads path, validates it against the named embedded schema and decodes it
// into out. It returns the raw bytes for digesting.
func readValidated(path, schema string, out any) ([]byte, error) {
	name := filepath.Base(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := schemas.Validate(schema, doc); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return raw, nil
}

func loadMaterials(path string, out *MaterialCatalog) error {
	var defs []MaterialDef
	raw, err := readValidated(path, "materials.schema.json", &defs)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	out.Defs = defs
	out.ByID = make(map[string]MaterialDef, len(defs))
	for _, d := range defs {
		if _, ok := voxel.ParseMaterial(d.ID); !ok {
			return fmt.Errorf("materials.json: unknown material %q", d.ID)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("materials.json: duplicate material %q", d.ID)
		}
		out.ByID[d.ID] = d
	}
	// Unknown material ids fall back to iron, so it must exist.
	if _, ok := out.ByID[voxel.Iron.String()]; !ok {
		return fmt.Errorf("materials.json: missing %s", voxel.Iron)
	}
	return nil
}

func loadBlockTypes(path string, out *BlockTypeCatalog) error {
	var defs []BlockTypeDef
	raw, err := readValidated(path, "block_types.schema.json", &defs)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	out.Defs = defs
	out.ByID = make(map[string]BlockTypeDef, len(defs))
	for _, d := range defs {
		if _, ok := voxel.ParseBlockType(d.ID); !ok {
			return fmt.Errorf("block_types.json: unknown block type %q", d.ID)
		}
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("block_types.json: duplicate block type %q", d.ID)
		}
		out.ByID[d.ID] = d
	}
	return nil
}

// Voxel converts the loaded definitions into the catalog used to build blocks.
// Block types missing from the file keep their built-in coefficients.
func (c *Catalogs) Voxel() *voxel.Catalog {
	vc := &voxel.Catalog{
		Materials: make(map[voxel.MaterialID]voxel.Material, len(c.Materials.Defs)),
		Types:     voxel.DefaultTypeDefs(),
	}
	for _, d := range c.Materials.Defs {
		id, _ := voxel.ParseMaterial(d.ID)
		vc.Materials[id] = voxel.Material{
			ID:                   id,
			Name:                 id.String(),
			Density:              d.Density,
			DurabilityMultiplier: d.DurabilityMultiplier,
			EnergyEfficiency:     d.EnergyEfficiency,
			ShieldMultiplier:     d.ShieldMultiplier,
			TechLevel:            d.TechLevel,
		}
	}
	for _, d := range c.BlockTypes.Defs {
		t, _ := voxel.ParseBlockType(d.ID)
		vc.Types[t] = voxel.TypeDef{
			Type:             t,
			DurabilityFactor: d.DurabilityFactor,
			MassFactor:       d.MassFactor,
			ThrustPerVolume:  d.ThrustPerVolume,
			TorquePerVolume:  d.TorquePerVolume,
			PowerPerVolume:   d.PowerPerVolume,
			ShieldPerVolume:  d.ShieldPerVolume,
		}
	}
	return vc
}
