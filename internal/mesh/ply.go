package mesh

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/EliCDavis/polyform/formats/ply"
	"github.com/EliCDavis/polyform/modeling"
	"github.com/EliCDavis/vector/vector3"

	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// ReadPLY reads a triangle mesh or point cloud. Vertex colors, when present,
// become the surface's color attribute. Float color channels are kept as
// stored, so HDR values above 1 survive; 8-bit channels end up in [0, 1].
func ReadPLY(r io.Reader, name string) (*Surface, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading PLY: %w", err)
	}
	colorType := plyVertexPropertyType(data, "red")

	m, err := ply.ReadMesh(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading PLY: %w", err)
	}

	view := m.View()
	positions := view.Float3Data[modeling.PositionAttribute]

	s := New(name, make([]pmath.Vec3, len(positions)), nil)
	for i, p := range positions {
		s.Vertices[i] = pmath.Vec3{X: float32(p.X()), Y: float32(p.Y()), Z: float32(p.Z())}
	}

	switch m.Topology() {
	case modeling.TriangleTopology:
		s.Faces = make([]Face, 0, len(view.Indices)/3)
		for i := 0; i+2 < len(view.Indices); i += 3 {
			s.Faces = append(s.Faces, Face{view.Indices[i], view.Indices[i+1], view.Indices[i+2]})
		}
	case modeling.PointTopology:
	default:
		return nil, fmt.Errorf("unsupported PLY topology: %d", m.Topology())
	}

	if colors, ok := view.Float3Data[modeling.ColorAttribute]; ok && len(colors) == len(positions) {
		s.Colors = make([]Color, len(colors))
		scale := float32(1)
		if isByteType(colorType) {
			// 8-bit channels may come through unscaled.
			for _, c := range colors {
				if c.X() > 1 || c.Y() > 1 || c.Z() > 1 {
					scale = 1.0 / 255
					break
				}
			}
		}
		for i, c := range colors {
			s.Colors[i] = Color{R: float32(c.X()) * scale, G: float32(c.Y()) * scale, B: float32(c.Z()) * scale}
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// plyVertexPropertyType returns the declared type of the named vertex
// property, or "" when the header does not declare it.
func plyVertexPropertyType(data []byte, property string) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	element := ""
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "end_header":
			return ""
		case "element":
			if len(fields) > 1 {
				element = fields[1]
			}
		case "property":
			if element == "vertex" && len(fields) == 3 && fields[2] == property {
				return fields[1]
			}
		}
	}
	return ""
}

func isByteType(t string) bool {
	switch t {
	case "char", "uchar", "int8", "uint8":
		return true
	}
	return false
}

// ReadPLYFile reads a PLY file from disk. The surface is named after the
// file's base name without extension.
func ReadPLYFile(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mesh: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := ReadPLY(f, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WritePointsPLY writes object-space positions as a binary PLY point cloud.
func WritePointsPLY(w io.Writer, points []pmath.Vec3) error {
	positions := make([]vector3.Float64, len(points))
	for i, p := range points {
		positions[i] = vector3.New(float64(p.X), float64(p.Y), float64(p.Z))
	}

	cloud := modeling.NewPointCloud(map[string][]vector3.Vector[float64]{
		modeling.PositionAttribute: positions,
	}, nil, nil, nil)

	return ply.WriteBinary(w, cloud)
}

// WritePLY writes s in object space as a binary PLY triangle mesh,
// fan-triangulating polygons. Colors are written when present.
func WritePLY(w io.Writer, s *Surface) error {
	positions := make([]vector3.Float64, len(s.Vertices))
	for i, p := range s.Vertices {
		positions[i] = vector3.New(float64(p.X), float64(p.Y), float64(p.Z))
	}

	var indices []int
	for _, f := range s.Faces {
		for i := 1; i+1 < len(f); i++ {
			indices = append(indices, f[0], f[i], f[i+1])
		}
	}

	m := modeling.NewTriangleMesh(indices).
		SetFloat3Attribute(modeling.PositionAttribute, positions)
	if s.HasColors() {
		colors := make([]vector3.Float64, len(s.Colors))
		for i, c := range s.Colors {
			colors[i] = vector3.New(float64(c.R), float64(c.G), float64(c.B))
		}
		m = m.SetFloat3Attribute(modeling.ColorAttribute, colors)
	}

	return ply.WriteBinary(w, m)
}

// WritePLYFile writes s to path, replacing any existing file.
func WritePLYFile(path string, s *Surface) error {
	return writeFile(path, func(w io.Writer) error { return WritePLY(w, s) })
}

// WritePointsPLYFile writes a point cloud to path, replacing any existing file.
func WritePointsPLYFile(path string, points []pmath.Vec3) error {
	return writeFile(path, func(w io.Writer) error { return WritePointsPLY(w, points) })
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
