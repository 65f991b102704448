// Package sampler scatters points over a surface with a minimum spacing
// between them (Poisson-disk sampling by dart throwing).
//
// Candidates are drawn per triangle from a generator seeded by the sampler
// seed and the triangle's position in the mesh, so the same surface and
// parameters always give the same points.
package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"

	"github.com/Faultbox/pointbake/internal/mesh"
	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// DefaultMaxCandidates bounds the number of candidates drawn per resample.
const DefaultMaxCandidates = 2_000_000

var (
	ErrInvalidDensity = errors.New("density must be positive")
	ErrInvalidSpacing = errors.New("minimum spacing must be positive")
)

// Options configures a Poisson sampler.
type Options struct {
	Seed          uint64
	MaxCandidates int
}

// Poisson samples one surface. It implements placement.Sampler.
type Poisson struct {
	surface *mesh.Surface
	opts    Options

	density    float32
	spacing    float32
	configured bool
	points     []mesh.SurfacePoint
}

// New returns a sampler for s. The surface must have faces.
func New(s *mesh.Surface, opts Options) (*Poisson, error) {
	if len(s.Faces) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Name, mesh.ErrNoFaces)
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	return &Poisson{surface: s, opts: opts}, nil
}

// Name returns the surface name.
func (p *Poisson) Name() string { return p.surface.Name }

// Dimensions returns the surface's world-space bounding box size.
func (p *Poisson) Dimensions() pmath.Vec3 { return p.surface.Dimensions() }

// Configure sets the sampling parameters and regenerates the points.
// Reapplying the current parameters does not resample.
func (p *Poisson) Configure(maxDensity, minSpacing float32) error {
	if !(maxDensity > 0) {
		return ErrInvalidDensity
	}
	if !(minSpacing > 0) {
		return ErrInvalidSpacing
	}
	if p.configured && p.density == maxDensity && p.spacing == minSpacing {
		return nil
	}
	p.density, p.spacing = maxDensity, minSpacing
	p.points = p.generate()
	p.configured = true
	return nil
}

// Count returns the number of points for the current parameters.
func (p *Poisson) Count() (int, error) {
	if !p.configured {
		return 0, errors.New("sampler not configured")
	}
	return len(p.points), nil
}

// Positions returns the accepted point positions in object space.
func (p *Poisson) Positions() []pmath.Vec3 {
	out := make([]pmath.Vec3, len(p.points))
	for i, sp := range p.points {
		out[i] = sp.Position
	}
	return out
}

type triangle struct {
	face    int
	a, b, c int
	stream  uint64
	area    float32
}

func (p *Poisson) triangles() ([]triangle, float32) {
	s := p.surface
	var tris []triangle
	var total float32
	for fi, f := range s.Faces {
		wa := s.WorldVertex(f[0])
		for i := 1; i+1 < len(f); i++ {
			wb := s.WorldVertex(f[i])
			wc := s.WorldVertex(f[i+1])
			area := wb.Sub(wa).Cross(wc.Sub(wa)).Length() / 2
			if area <= 0 {
				continue
			}
			tris = append(tris, triangle{
				face:   fi,
				a:      f[0],
				b:      f[i],
				c:      f[i+1],
				stream: uint64(fi)<<16 | uint64(i),
				area:   area,
			})
			total += area
		}
	}
	return tris, total
}

func (p *Poisson) generate() []mesh.SurfacePoint {
	s := p.surface
	tris, total := p.triangles()
	if total == 0 {
		return nil
	}

	density := p.density
	if expected := float64(total) * float64(density); expected > float64(p.opts.MaxCandidates) {
		density = float32(float64(p.opts.MaxCandidates) / float64(total))
	}

	g := newGrid(p.spacing)
	var out []mesh.SurfacePoint

	for _, t := range tris {
		rng := rand.New(rand.NewPCG(p.opts.Seed, t.stream))
		n := int(math32.Floor(t.area*density + rng.Float32()))

		va, vb, vc := s.Vertices[t.a], s.Vertices[t.b], s.Vertices[t.c]
		for k := 0; k < n; k++ {
			u, v := rng.Float32(), rng.Float32()
			if u+v > 1 {
				u, v = 1-u, 1-v
			}
			local := va.Add(vb.Sub(va).Scale(u)).Add(vc.Sub(va).Scale(v))
			if g.insert(s.World.TransformPoint(local)) {
				out = append(out, mesh.SurfacePoint{Position: local, Face: t.face})
			}
		}
	}
	return out
}

// grid is a uniform hash grid with cells one spacing wide, so any point
// closer than the spacing lies in one of the 27 surrounding cells.
type grid struct {
	cell    float32
	limit   float32
	buckets map[[3]int64][]pmath.Vec3
}

func newGrid(spacing float32) *grid {
	return &grid{
		cell:    spacing,
		limit:   spacing * spacing,
		buckets: make(map[[3]int64][]pmath.Vec3),
	}
}

func (g *grid) key(p pmath.Vec3) [3]int64 {
	return [3]int64{
		int64(math32.Floor(p.X / g.cell)),
		int64(math32.Floor(p.Y / g.cell)),
		int64(math32.Floor(p.Z / g.cell)),
	}
}

// insert adds p unless an accepted point lies closer than the spacing.
func (g *grid) insert(p pmath.Vec3) bool {
	k := g.key(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, q := range g.buckets[[3]int64{k[0] + dx, k[1] + dy, k[2] + dz}] {
					if q.DistanceSquared(p) < g.limit {
						return false
					}
				}
			}
		}
	}
	g.buckets[k] = append(g.buckets[k], p)
	return true
}
