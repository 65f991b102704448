package track

import (
	"github.com/Faultbox/pointbake/internal/mesh"
	"github.com/Faultbox/pointbake/pkg/formats"
	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// Reconstruct returns the record's world position on the detailed surface
// as evaluated at the current frame. The stored offset is turned by the
// rotation difference from the face's current orientation to its reference
// orientation, added to the tracked vertex and mapped to world space.
func Reconstruct(rec Record, detailed *mesh.Surface) pmath.Vec3 {
	current := Orientation(detailed, rec.FaceID)
	delta := current.RotationDifference(rec.Reference)
	offset := delta.Rotate(rec.Offset)
	return detailed.World.TransformPoint(detailed.Vertices[rec.VertexID].Add(offset))
}

// AppendFrame reconstructs every record against detailed and appends the
// encoded positions to buf in record order.
func AppendFrame(buf []byte, records []Record, detailed *mesh.Surface) []byte {
	for _, rec := range records {
		buf = formats.AppendCPFPosition(buf, Reconstruct(rec, detailed))
	}
	return buf
}
