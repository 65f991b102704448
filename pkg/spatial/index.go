// Package spatial provides nearest-neighbour lookup over a fixed point set.
package spatial

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// ErrEmptyIndex is returned when an index is built from no points.
var ErrEmptyIndex = errors.New("spatial index needs at least one point")

// entry is an indexed position. seq is the insertion order and breaks
// distance ties so the first-inserted point wins.
type entry struct {
	pos [3]float64
	id  int
	seq int
}

func (e *entry) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return e.pos[d] - c.(*entry).pos[d]
}

func (e *entry) Dims() int { return 3 }

func (e *entry) Distance(c kdtree.Comparable) float64 {
	q := c.(*entry)
	dx := e.pos[0] - q.pos[0]
	dy := e.pos[1] - q.pos[1]
	dz := e.pos[2] - q.pos[2]
	return dx*dx + dy*dy + dz*dz
}

// entries implements kdtree.Interface.
type entries []*entry

func (e entries) Index(i int) kdtree.Comparable         { return e[i] }
func (e entries) Len() int                              { return len(e) }
func (e entries) Slice(start, end int) kdtree.Interface { return e[start:end] }
func (e entries) Pivot(d kdtree.Dim) int {
	return plane{entries: e, Dim: d}.Pivot()
}

// plane sorts entries along one dimension for median selection.
type plane struct {
	entries
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	a, b := p.entries[i], p.entries[j]
	if a.pos[p.Dim] != b.pos[p.Dim] {
		return a.pos[p.Dim] < b.pos[p.Dim]
	}
	return a.seq < b.seq
}
func (p plane) Swap(i, j int) { p.entries[i], p.entries[j] = p.entries[j], p.entries[i] }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{entries: p.entries[start:end], Dim: p.Dim}
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

var _ sort.Interface = plane{}

// Index answers nearest-point queries over positions fixed at build time.
type Index struct {
	tree *kdtree.Tree
}

// Build indexes positions. ids[i] is reported for positions[i]; when ids is
// nil the position's slice index is used.
func Build(positions []pmath.Vec3, ids []int) (*Index, error) {
	if len(positions) == 0 {
		return nil, ErrEmptyIndex
	}

	all := make([]*entry, len(positions))
	for i, p := range positions {
		id := i
		if ids != nil {
			id = ids[i]
		}
		all[i] = &entry{
			pos: [3]float64{float64(p.X), float64(p.Y), float64(p.Z)},
			id:  id,
			seq: i,
		}
	}

	return &Index{tree: kdtree.New(entries(all), false)}, nil
}

// Nearest returns the id of the indexed position closest to q and the
// Euclidean distance to it. Equidistant positions resolve to the one
// inserted first.
func (x *Index) Nearest(q pmath.Vec3) (id int, dist float32) {
	query := &entry{pos: [3]float64{float64(q.X), float64(q.Y), float64(q.Z)}}

	c, d := x.tree.Nearest(query)
	best := c.(*entry)

	// Collect every point at the nearest distance so ties resolve by
	// insertion order rather than tree layout.
	keeper := kdtree.NewDistKeeper(d)
	x.tree.NearestSet(keeper, query)
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		if e := cd.Comparable.(*entry); cd.Dist == d && e.seq < best.seq {
			best = e
		}
	}

	return best.id, float32(math.Sqrt(d))
}
