package physics

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultCellSize = 50.0

	// Boxes spanning more cells than this on any axis, or lying outside the int32 cell
	// range, are kept in an overflow list that every query returns.
	maxCellsPerAxis = 64
)

// CellKey is floor(worldPos / cellSize) per axis.
type CellKey struct {
	X, Y, Z int32
}

// SpatialGrid is a uniform-grid broad phase rebuilt from scratch every tick.
type SpatialGrid struct {
	cellSize float64
	cells    map[CellKey][]EntityID

	// overflow holds boxes too large or too far out to bucket. all holds every inserted id
	// so an overflow-sized query can still answer without walking cells.
	overflow []EntityID
	all      []EntityID

	seen map[EntityID]struct{}
}

func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if cellSize <= 0 || math.IsNaN(cellSize) {
		cellSize = DefaultCellSize
	}
	return &SpatialGrid{
		cellSize: cellSize,
		cells:    map[CellKey][]EntityID{},
		seen:     map[EntityID]struct{}{},
	}
}

func (g *SpatialGrid) CellSize() float64 { return g.cellSize }

// Clear empties every bucket.
func (g *SpatialGrid) Clear() {
	clear(g.cells)
	g.overflow = g.overflow[:0]
	g.all = g.all[:0]
}

// KeyOf returns the cell containing p.
func (g *SpatialGrid) KeyOf(p mgl64.Vec3) CellKey {
	return CellKey{
		X: floorCell(p[0], g.cellSize),
		Y: floorCell(p[1], g.cellSize),
		Z: floorCell(p[2], g.cellSize),
	}
}

// Insert adds id to every cell the box overlaps.
func (g *SpatialGrid) Insert(id EntityID, box AABB) {
	g.all = append(g.all, id)
	lo, hi, ok := g.cellRange(box)
	if !ok {
		g.overflow = append(g.overflow, id)
		return
	}
	forEachCell(lo, hi, func(k CellKey) {
		g.cells[k] = append(g.cells[k], id)
	})
}

// QueryNearby returns the ascending, de-duplicated union of ids in every cell the box
// overlaps, plus every overflow entry. The result may include the querying entity and
// entities that do not overlap, but never misses one that does.
func (g *SpatialGrid) QueryNearby(box AABB) []EntityID {
	clear(g.seen)
	var out []EntityID
	add := func(id EntityID) {
		if _, dup := g.seen[id]; dup {
			return
		}
		g.seen[id] = struct{}{}
		out = append(out, id)
	}
	lo, hi, ok := g.cellRange(box)
	if !ok {
		for _, id := range g.all {
			add(id)
		}
	} else {
		forEachCell(lo, hi, func(k CellKey) {
			for _, id := range g.cells[k] {
				add(id)
			}
		})
		for _, id := range g.overflow {
			add(id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// cellRange reports the inclusive cell range of box, or ok=false when the box cannot be
// bucketed: non-finite bounds, cells outside int32, or more than maxCellsPerAxis cells on
// an axis.
func (g *SpatialGrid) cellRange(box AABB) (lo, hi [3]int64, ok bool) {
	for i := 0; i < 3; i++ {
		l := math.Floor(box.Min[i] / g.cellSize)
		h := math.Floor(box.Max[i] / g.cellSize)
		if math.IsNaN(l) || math.IsNaN(h) || l < math.MinInt32 || h > math.MaxInt32 {
			return lo, hi, false
		}
		if h < l {
			h = l
		}
		if h-l >= maxCellsPerAxis {
			return lo, hi, false
		}
		lo[i], hi[i] = int64(l), int64(h)
	}
	return lo, hi, true
}

func forEachCell(lo, hi [3]int64, fn func(CellKey)) {
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				fn(CellKey{X: int32(x), Y: int32(y), Z: int32(z)})
			}
		}
	}
}

func floorCell(v, size float64) int32 {
	c := math.Floor(v / size)
	switch {
	case math.IsNaN(c):
		return 0
	case c > math.MaxInt32:
		return math.MaxInt32
	case c < math.MinInt32:
		return math.MinInt32
	}
	return int32(c)
}
