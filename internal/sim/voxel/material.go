package voxel

import "strings"

// MaterialID identifies a material tier. Values are persisted in snapshots.
type MaterialID uint8

const (
	Iron MaterialID = iota
	Titanium
	Naonite
	Trinium
	Xanion
	Ogonite
	Avorion
)

var materialNames = [...]string{
	Iron:     "IRON",
	Titanium: "TITANIUM",
	Naonite:  "NAONITE",
	Trinium:  "TRINIUM",
	Xanion:   "XANION",
	Ogonite:  "OGONITE",
	Avorion:  "AVORION",
}

func (m MaterialID) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return "UNKNOWN"
}

// ParseMaterial maps a catalog name to its id. Matching is case-insensitive.
func ParseMaterial(name string) (MaterialID, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range materialNames {
		if n == name {
			return MaterialID(i), true
		}
	}
	return Iron, false
}

// Material holds the physical multipliers of a tier. Density is mass per unit volume.
type Material struct {
	ID                   MaterialID
	Name                 string
	Density              float64
	DurabilityMultiplier float64
	EnergyEfficiency     float64
	ShieldMultiplier     float64
	TechLevel            int
}

var ironMaterial = Material{
	ID:                   Iron,
	Name:                 "IRON",
	Density:              1.0,
	DurabilityMultiplier: 1.0,
	EnergyEfficiency:     0.8,
	ShieldMultiplier:     0.5,
	TechLevel:            1,
}

// DefaultMaterials returns the built-in material tiers.
func DefaultMaterials() map[MaterialID]Material {
	return map[MaterialID]Material{
		Iron:     ironMaterial,
		Titanium: {ID: Titanium, Name: "TITANIUM", Density: 0.9, DurabilityMultiplier: 1.5, EnergyEfficiency: 1.0, ShieldMultiplier: 0.8, TechLevel: 2},
		Naonite:  {ID: Naonite, Name: "NAONITE", Density: 0.8, DurabilityMultiplier: 2.0, EnergyEfficiency: 1.2, ShieldMultiplier: 1.2, TechLevel: 3},
		Trinium:  {ID: Trinium, Name: "TRINIUM", Density: 0.6, DurabilityMultiplier: 2.5, EnergyEfficiency: 1.5, ShieldMultiplier: 1.5, TechLevel: 4},
		Xanion:   {ID: Xanion, Name: "XANION", Density: 0.5, DurabilityMultiplier: 3.0, EnergyEfficiency: 1.8, ShieldMultiplier: 2.0, TechLevel: 5},
		Ogonite:  {ID: Ogonite, Name: "OGONITE", Density: 0.4, DurabilityMultiplier: 4.0, EnergyEfficiency: 2.2, ShieldMultiplier: 2.5, TechLevel: 6},
		Avorion:  {ID: Avorion, Name: "AVORION", Density: 0.3, DurabilityMultiplier: 5.0, EnergyEfficiency: 3.0, ShieldMultiplier: 3.5, TechLevel: 7},
	}
}
