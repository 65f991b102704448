// Package mesh holds the surface geometry read from a scene: vertex
// positions, polygon faces, optional per-vertex colors and the object's
// world transform.
package mesh

import (
	"errors"
	"fmt"

	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// Surface validation errors.
var (
	ErrNoVertices       = errors.New("surface has no vertices")
	ErrNoFaces          = errors.New("surface has no faces")
	ErrFaceIndex        = errors.New("face references a missing vertex")
	ErrDegenerateFace   = errors.New("face has fewer than 3 vertices")
	ErrColorCount       = errors.New("color attribute length does not match vertex count")
	ErrTopologyMismatch = errors.New("surface topology changed between frames")
)

// Face is an ordered polygon of vertex indices.
type Face []int

// SurfacePoint is a point produced on a surface, tagged with the face it
// was placed on.
type SurfacePoint struct {
	Position pmath.Vec3
	Face     int
}

// Surface is a mesh evaluated at one animation frame.
// Vertices are in object space; World maps them into world space.
type Surface struct {
	Name     string
	Vertices []pmath.Vec3
	Faces    []Face
	// Colors is the per-vertex color attribute; nil when the mesh has none.
	Colors []Color
	World  pmath.Mat4
}

// New returns a surface with an identity world transform.
func New(name string, vertices []pmath.Vec3, faces []Face) *Surface {
	return &Surface{
		Name:     name,
		Vertices: vertices,
		Faces:    faces,
		World:    pmath.Identity(),
	}
}

// HasColors reports whether the surface carries a usable color attribute.
func (s *Surface) HasColors() bool {
	return s.Colors != nil && len(s.Colors) == len(s.Vertices)
}

// Validate checks that every face references existing vertices.
func (s *Surface) Validate() error {
	if len(s.Vertices) == 0 {
		return fmt.Errorf("%s: %w", s.Name, ErrNoVertices)
	}
	for fi, f := range s.Faces {
		if len(f) < 3 {
			return fmt.Errorf("%s: face %d: %w", s.Name, fi, ErrDegenerateFace)
		}
		for _, vi := range f {
			if vi < 0 || vi >= len(s.Vertices) {
				return fmt.Errorf("%s: face %d vertex %d: %w", s.Name, fi, vi, ErrFaceIndex)
			}
		}
	}
	if s.Colors != nil && len(s.Colors) != len(s.Vertices) {
		return fmt.Errorf("%s: %d colors for %d vertices: %w", s.Name, len(s.Colors), len(s.Vertices), ErrColorCount)
	}
	return nil
}

// SameTopology reports an error when other does not share s's vertex count
// and face list.
func (s *Surface) SameTopology(other *Surface) error {
	if len(s.Vertices) != len(other.Vertices) || len(s.Faces) != len(other.Faces) {
		return fmt.Errorf("%s: %d/%d vertices, %d/%d faces: %w", s.Name,
			len(s.Vertices), len(other.Vertices), len(s.Faces), len(other.Faces), ErrTopologyMismatch)
	}
	return nil
}

// WorldVertex returns vertex i in world space.
func (s *Surface) WorldVertex(i int) pmath.Vec3 {
	return s.World.TransformPoint(s.Vertices[i])
}

// FaceCenter returns the mean of the face's vertex positions in object space.
func (s *Surface) FaceCenter(fi int) pmath.Vec3 {
	var sum pmath.Vec3
	f := s.Faces[fi]
	for _, vi := range f {
		sum = sum.Add(s.Vertices[vi])
	}
	return sum.Scale(1 / float32(len(f)))
}

// FaceNormal returns the unit normal of the face in object space using
// Newell's method, which also handles non-planar polygons.
func (s *Surface) FaceNormal(fi int) pmath.Vec3 {
	var n pmath.Vec3
	f := s.Faces[fi]
	for i, vi := range f {
		a := s.Vertices[vi]
		b := s.Vertices[f[(i+1)%len(f)]]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return n.Normalize()
}

// FaceArea returns the world-space area of the face, fan-triangulated.
func (s *Surface) FaceArea(fi int) float32 {
	f := s.Faces[fi]
	a := s.WorldVertex(f[0])
	var area float32
	for i := 1; i+1 < len(f); i++ {
		b := s.WorldVertex(f[i])
		c := s.WorldVertex(f[i+1])
		area += b.Sub(a).Cross(c.Sub(a)).Length() / 2
	}
	return area
}

// WorldFaceCenters returns every face center in world space, in face order.
func (s *Surface) WorldFaceCenters() []pmath.Vec3 {
	centers := make([]pmath.Vec3, len(s.Faces))
	for fi := range s.Faces {
		centers[fi] = s.World.TransformPoint(s.FaceCenter(fi))
	}
	return centers
}

// Bounds returns the world-space axis-aligned bounding box.
func (s *Surface) Bounds() (min, max pmath.Vec3) {
	if len(s.Vertices) == 0 {
		return pmath.Vec3{}, pmath.Vec3{}
	}
	min = s.WorldVertex(0)
	max = min
	for i := 1; i < len(s.Vertices); i++ {
		p := s.WorldVertex(i)
		min = min.Min(p)
		max = max.Max(p)
	}
	return min, max
}

// Dimensions returns the size of the world-space bounding box.
func (s *Surface) Dimensions() pmath.Vec3 {
	min, max := s.Bounds()
	return max.Sub(min)
}

// WithVertices returns a shallow copy of s whose vertex positions are
// replaced. Faces and colors are shared.
func (s *Surface) WithVertices(vertices []pmath.Vec3) *Surface {
	c := *s
	c.Vertices = vertices
	return &c
}
