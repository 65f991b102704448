// Package track glues sparse points to a detailed animated surface.
//
// At the reference frame every sparse point is matched to the nearest face
// of the detailed surface (by face center) and then to the nearest vertex on
// that face. The point's offset from that vertex is stored together with the
// face's orientation. Later frames rebuild the point from the vertex's new
// position and the face's change in orientation, without searching again.
package track

import (
	"errors"
	"fmt"

	"github.com/Faultbox/pointbake/internal/mesh"
	pmath "github.com/Faultbox/pointbake/pkg/math"
	"github.com/Faultbox/pointbake/pkg/spatial"
)

// Correspondence errors.
var (
	ErrMissingColorAttribute = errors.New("color surface has no per-vertex color attribute")
	ErrNoFaces               = errors.New("color surface has no faces")
)

// Up is the fixed world axis used to disambiguate a face's roll.
var Up = pmath.UnitY

// Record binds one sparse point to a vertex and face of the detailed surface.
type Record struct {
	VertexID int
	FaceID   int
	// Offset from the tracked vertex to the point, in the detailed
	// surface's object space at the reference frame.
	Offset pmath.Vec3
	// Reference is the tracked face's orientation at the reference frame.
	Reference pmath.Quat
	Color     [3]byte
}

// Orientation returns the face's orientation: +Z along the face normal,
// roll fixed by Up. Build and Reconstruct must both derive it this way.
func Orientation(s *mesh.Surface, face int) pmath.Quat {
	return pmath.TrackQuat(s.FaceNormal(face), Up)
}

// CheckColorSurface reports the precondition failures that must stop an
// export before any processing starts.
func CheckColorSurface(detailed *mesh.Surface) error {
	if len(detailed.Faces) == 0 {
		return fmt.Errorf("%s: %w", detailed.Name, ErrNoFaces)
	}
	if !detailed.HasColors() {
		return fmt.Errorf("%s: %w", detailed.Name, ErrMissingColorAttribute)
	}
	return nil
}

// Build creates one record per sparse vertex, in vertex order, and returns
// the matching color bytes (3 per record, same order).
func Build(sparse, detailed *mesh.Surface) ([]Record, []byte, error) {
	if err := CheckColorSurface(detailed); err != nil {
		return nil, nil, err
	}

	index, err := spatial.Build(detailed.WorldFaceCenters(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("indexing %s faces: %w", detailed.Name, err)
	}

	toDetailed := detailed.World.Inverse()
	records := make([]Record, len(sparse.Vertices))
	colors := make([]byte, 0, 3*len(sparse.Vertices))

	for i := range sparse.Vertices {
		world := sparse.WorldVertex(i)

		faceID, _ := index.Nearest(world)
		vertexID := nearestVertexOnFace(detailed, faceID, world)

		local := toDetailed.TransformPoint(world)
		rgb := detailed.Colors[vertexID].RGB8()

		records[i] = Record{
			VertexID:  vertexID,
			FaceID:    faceID,
			Offset:    local.Sub(detailed.Vertices[vertexID]),
			Reference: Orientation(detailed, faceID),
			Color:     rgb,
		}
		colors = append(colors, rgb[:]...)
	}

	return records, colors, nil
}

// nearestVertexOnFace picks the face vertex closest to p in world space.
// The first vertex in face order wins ties.
func nearestVertexOnFace(s *mesh.Surface, face int, p pmath.Vec3) int {
	verts := s.Faces[face]
	best := verts[0]
	bestDist := s.WorldVertex(best).DistanceSquared(p)
	for _, vi := range verts[1:] {
		if d := s.WorldVertex(vi).DistanceSquared(p); d < bestDist {
			best, bestDist = vi, d
		}
	}
	return best
}
