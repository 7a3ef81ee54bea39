package voxel

import "github.com/go-gl/mathgl/mgl64"

// Stats are the aggregate properties of a structure. All fields are zero for an empty one.
type Stats struct {
	TotalMass       float64
	CenterOfMass    mgl64.Vec3
	MomentOfInertia float64
	TotalThrust     float64
	TotalTorque     float64
	PowerGeneration float64
	ShieldCapacity  float64
	Durability      float64
	MaxDurability   float64

	// Local-space extents of all blocks.
	BoundsMin mgl64.Vec3
	BoundsMax mgl64.Vec3
}

// StructuralIntegrity is summed durability over summed max durability, in percent.
func (s Stats) StructuralIntegrity() float64 {
	if s.MaxDurability <= 0 {
		return 0
	}
	return s.Durability / s.MaxDurability * 100
}

// Structure owns a set of blocks stored densely. Membership is by BlockID; removal is
// swap-and-pop, so slice order is not stable across removals but ids are.
// The zero value is an empty structure ready for use.
type Structure struct {
	blocks []Block
	slots  map[BlockID]int
	nextID BlockID

	stats      Stats
	recomputes uint64
}

func NewStructure() *Structure {
	return &Structure{slots: map[BlockID]int{}}
}

func (s *Structure) Len() int { return len(s.blocks) }

func (s *Structure) Stats() Stats { return s.stats }

func (s *Structure) TotalMass() float64           { return s.stats.TotalMass }
func (s *Structure) CenterOfMass() mgl64.Vec3     { return s.stats.CenterOfMass }
func (s *Structure) MomentOfInertia() float64     { return s.stats.MomentOfInertia }
func (s *Structure) TotalThrust() float64         { return s.stats.TotalThrust }
func (s *Structure) TotalTorque() float64         { return s.stats.TotalTorque }
func (s *Structure) PowerGeneration() float64     { return s.stats.PowerGeneration }
func (s *Structure) ShieldCapacity() float64      { return s.stats.ShieldCapacity }
func (s *Structure) StructuralIntegrity() float64 { return s.stats.StructuralIntegrity() }

// Bounds returns the local-space extents. ok is false for an empty structure.
func (s *Structure) Bounds() (min, max mgl64.Vec3, ok bool) {
	if len(s.blocks) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}
	return s.stats.BoundsMin, s.stats.BoundsMax, true
}

// Recomputes counts full aggregate recomputations since construction.
func (s *Structure) Recomputes() uint64 { return s.recomputes }

// Blocks returns a copy of the blocks in storage order.
func (s *Structure) Blocks() []Block {
	out := make([]Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

func (s *Structure) Block(id BlockID) (Block, bool) {
	i, ok := s.slots[id]
	if !ok {
		return Block{}, false
	}
	return s.blocks[i], true
}

// AddBlock appends b under a freshly assigned id and recomputes.
func (s *Structure) AddBlock(b Block) BlockID {
	if s.slots == nil {
		s.slots = map[BlockID]int{}
	}
	s.nextID++
	b.ID = s.nextID
	s.slots[b.ID] = len(s.blocks)
	s.blocks = append(s.blocks, b)
	s.recompute()
	return b.ID
}

// RemoveBlock removes the block with id. Recomputes only when something was removed.
func (s *Structure) RemoveBlock(id BlockID) bool {
	if !s.removeSlot(id) {
		return false
	}
	s.recompute()
	return true
}

// Clear drops every block. Ids are not reused.
func (s *Structure) Clear() {
	s.blocks = s.blocks[:0]
	s.slots = map[BlockID]int{}
	s.recompute()
}

// NextID is the last id handed out. Persist it with the blocks so restored structures keep
// assigning the same ids as the original.
func (s *Structure) NextID() BlockID { return s.nextID }

// Restore replaces the contents with blocks, keeping their ids (snapshot import).
// The id counter resumes at the larger of nextID and the highest block id.
// Blocks with a zero or duplicate id get a fresh one.
func (s *Structure) Restore(blocks []Block, nextID BlockID) {
	s.blocks = make([]Block, 0, len(blocks))
	s.slots = make(map[BlockID]int, len(blocks))
	s.nextID = nextID
	for _, b := range blocks {
		if b.ID > s.nextID {
			s.nextID = b.ID
		}
	}
	for _, b := range blocks {
		if _, dup := s.slots[b.ID]; b.ID == 0 || dup {
			s.nextID++
			b.ID = s.nextID
		}
		s.slots[b.ID] = len(s.blocks)
		s.blocks = append(s.blocks, b)
	}
	s.recompute()
}

// DamageAtPosition applies damage*(1-dist/radius) to every block whose position lies within
// radius of point. Distance is measured to the block position only, not its volume, so big
// blocks near the edge take less than their nearest face would suggest.
// Destroyed blocks are removed with a single recompute and returned to the caller.
func (s *Structure) DamageAtPosition(point mgl64.Vec3, radius, damage float64) []Block {
	if radius <= 0 || damage <= 0 || len(s.blocks) == 0 {
		return nil
	}
	var destroyed []Block
	for i := range s.blocks {
		b := &s.blocks[i]
		dist := b.Position.Sub(point).Len()
		if dist > radius {
			continue
		}
		before := b.Durability
		if b.TakeDamage(damage * (1 - dist/radius)) {
			destroyed = append(destroyed, *b)
		}
		// Integrity tracks partial damage without a full recompute.
		s.stats.Durability -= before - b.Durability
	}
	if len(destroyed) == 0 {
		return nil
	}
	for _, b := range destroyed {
		s.removeSlot(b.ID)
	}
	s.recompute()
	return destroyed
}

func (s *Structure) removeSlot(id BlockID) bool {
	i, ok := s.slots[id]
	if !ok {
		return false
	}
	last := len(s.blocks) - 1
	if i != last {
		s.blocks[i] = s.blocks[last]
		s.slots[s.blocks[i].ID] = i
	}
	s.blocks[last] = Block{}
	s.blocks = s.blocks[:last]
	delete(s.slots, id)
	return true
}

func (s *Structure) recompute() {
	s.recomputes++
	s.stats = Stats{}
	if len(s.blocks) == 0 {
		return
	}

	// Pass 1: mass and centre of mass.
	var mass float64
	var weighted mgl64.Vec3
	for i := range s.blocks {
		b := &s.blocks[i]
		mass += b.Mass
		weighted = weighted.Add(b.Position.Mul(b.Mass))
	}
	st := Stats{TotalMass: mass}
	if mass > 0 {
		st.CenterOfMass = weighted.Mul(1 / mass)
	}

	// Pass 2: inertia about the COM, functional totals, durability and bounds.
	st.BoundsMin = s.blocks[0].Min()
	st.BoundsMax = s.blocks[0].Max()
	for i := range s.blocks {
		b := &s.blocks[i]
		d := b.Position.Sub(st.CenterOfMass)
		st.MomentOfInertia += b.Mass * d.Dot(d)

		switch b.Type {
		case Engine, Thruster:
			st.TotalThrust += b.Thrust
		case GyroArray:
			st.TotalTorque += b.Torque
		case Generator:
			st.PowerGeneration += b.PowerGeneration
		case ShieldGenerator:
			st.ShieldCapacity += b.ShieldCapacity
		}
		st.Durability += b.Durability
		st.MaxDurability += b.MaxDurability

		lo, hi := b.Min(), b.Max()
		for k := 0; k < 3; k++ {
			if lo[k] < st.BoundsMin[k] {
				st.BoundsMin[k] = lo[k]
			}
			if hi[k] > st.BoundsMax[k] {
				st.BoundsMax[k] = hi[k]
			}
		}
	}
	s.stats = st
}
