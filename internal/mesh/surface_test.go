package mesh

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// quad returns a unit square in the XY plane split into two triangles that
// share the edge (1,0)-(0,1).
func quad() *Surface {
	return New("quad", []pmath.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 1, Y: 1, Z: 0},
	}, []Face{{0, 1, 2}, {1, 3, 2}})
}

func TestFaceCenterAndNormal(t *testing.T) {
	s := quad()

	c := s.FaceCenter(0)
	assert.InDelta(t, 1.0/3, c.X, 1e-6)
	assert.InDelta(t, 1.0/3, c.Y, 1e-6)

	assert.Equal(t, pmath.Vec3{X: 0, Y: 0, Z: 1}, s.FaceNormal(0))
	assert.Equal(t, pmath.Vec3{X: 0, Y: 0, Z: 1}, s.FaceNormal(1))
}

func TestFaceNormalPolygon(t *testing.T) {
	s := New("square", []pmath.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 0, Y: 0, Z: 1},
		{X: 0, Y: 1, Z: 1},
		{X: 0, Y: 1, Z: 0},
	}, []Face{{0, 3, 2, 1}})

	n := s.FaceNormal(0)
	assert.InDelta(t, 1, n.X, 1e-6)
	assert.InDelta(t, 0, n.Y, 1e-6)
	assert.InDelta(t, 0, n.Z, 1e-6)
	assert.InDelta(t, 1, s.FaceArea(0), 1e-6)
}

func TestWorldTransform(t *testing.T) {
	s := quad()
	s.World = pmath.Compose(pmath.Vec3{X: 10}, pmath.Vec3{}, pmath.Vec3{X: 2, Y: 2, Z: 2})

	assert.Equal(t, pmath.Vec3{X: 12, Y: 2}, s.WorldVertex(3))
	assert.InDelta(t, 2.0, s.FaceArea(0), 1e-6)

	dims := s.Dimensions()
	assert.Equal(t, pmath.Vec3{X: 2, Y: 2, Z: 0}, dims)

	centers := s.WorldFaceCenters()
	require.Len(t, centers, 2)
	assert.InDelta(t, 10+2.0/3, centers[0].X, 1e-5)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, quad().Validate())

	bad := quad()
	bad.Faces = append(bad.Faces, Face{0, 1, 9})
	assert.True(t, errors.Is(bad.Validate(), ErrFaceIndex))

	degenerate := quad()
	degenerate.Faces = []Face{{0, 1}}
	assert.True(t, errors.Is(degenerate.Validate(), ErrDegenerateFace))

	empty := New("empty", nil, nil)
	assert.True(t, errors.Is(empty.Validate(), ErrNoVertices))

	colors := quad()
	colors.Colors = []Color{{R: 1}}
	assert.True(t, errors.Is(colors.Validate(), ErrColorCount))
	assert.False(t, colors.HasColors())
}

func TestSameTopology(t *testing.T) {
	a := quad()
	b := a.WithVertices(append([]pmath.Vec3(nil), a.Vertices...))
	assert.NoError(t, a.SameTopology(b))

	c := a.WithVertices(a.Vertices[:3])
	assert.ErrorIs(t, a.SameTopology(c), ErrTopologyMismatch)
}

func TestColorRGB8(t *testing.T) {
	tests := []struct {
		in   float32
		want byte
	}{
		{0, 0},
		{1, 255},
		{0.999, 254},
		{0.5, 127},
		{-0.2, 0},
		{1.5, 255},
	}

	for _, tc := range tests {
		got := Color{R: tc.in, G: tc.in, B: tc.in}.RGB8()
		assert.Equal(t, [3]byte{tc.want, tc.want, tc.want}, got, "channel %v", tc.in)
	}
}

func TestPointsPLYRoundTrip(t *testing.T) {
	points := []pmath.Vec3{
		{X: 1, Y: 2, Z: 3},
		{X: -0.5, Y: 0, Z: 4.25},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePointsPLY(&buf, points))

	s, err := ReadPLY(&buf, "cloud")
	require.NoError(t, err)
	require.Len(t, s.Vertices, 2)
	assert.Empty(t, s.Faces)
	for i := range points {
		assert.InDelta(t, 0, s.Vertices[i].Distance(points[i]), 1e-6)
	}
}

func TestPointsPLYFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "body_points.ply")
	require.NoError(t, WritePointsPLYFile(path, []pmath.Vec3{{X: 1}}))

	s, err := ReadPLYFile(path)
	require.NoError(t, err)
	assert.Equal(t, "body_points", s.Name)
	assert.Len(t, s.Vertices, 1)

	_, err = ReadPLYFile(filepath.Join(t.TempDir(), "missing.ply"))
	assert.Error(t, err)
}

func TestMeshPLYRoundTrip(t *testing.T) {
	s := quad()
	s.Colors = []Color{{R: 1}, {G: 1}, {B: 1}, {R: 1, G: 1, B: 1}}

	var buf bytes.Buffer
	require.NoError(t, WritePLY(&buf, s))

	got, err := ReadPLY(&buf, "quad")
	require.NoError(t, err)
	require.Len(t, got.Vertices, 4)
	assert.Equal(t, s.Faces, got.Faces)
	require.True(t, got.HasColors())
	assert.Equal(t, [3]byte{255, 0, 0}, got.Colors[0].RGB8())
	assert.Equal(t, [3]byte{255, 255, 255}, got.Colors[3].RGB8())
}

func TestPLYColorPropertyType(t *testing.T) {
	header := func(colorType string) []byte {
		return []byte("ply\nformat ascii 1.0\n" +
			"element vertex 1\n" +
			"property float x\nproperty float y\nproperty float z\n" +
			"property " + colorType + " red\nproperty " + colorType + " green\nproperty " + colorType + " blue\n" +
			"element face 0\nproperty list uchar int vertex_indices\n" +
			"end_header\n0 0 0 2.5 1 0\n")
	}

	tests := []struct {
		colorType string
		scaled    bool
	}{
		{"uchar", true},
		{"uint8", true},
		{"float", false},
		{"double", false},
	}
	for _, tt := range tests {
		t.Run(tt.colorType, func(t *testing.T) {
			got := plyVertexPropertyType(header(tt.colorType), "red")
			assert.Equal(t, tt.colorType, got)
			assert.Equal(t, tt.scaled, isByteType(got))
		})
	}

	// A red property on another element is not a vertex color.
	other := []byte("ply\nformat ascii 1.0\nelement vertex 0\nproperty float x\n" +
		"element material 1\nproperty uchar red\nend_header\n")
	assert.Empty(t, plyVertexPropertyType(other, "red"))
	assert.Empty(t, plyVertexPropertyType([]byte("ply\nend_header\nproperty uchar red\n"), "red"))
}
