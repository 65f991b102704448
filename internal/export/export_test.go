package export

import (
	"context"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/pointbake/internal/job"
	"github.com/Faultbox/pointbake/internal/mesh"
	"github.com/Faultbox/pointbake/internal/scene"
	"github.com/Faultbox/pointbake/internal/track"
	"github.com/Faultbox/pointbake/pkg/formats"
	pmath "github.com/Faultbox/pointbake/pkg/math"
)

func colorQuad(name string) *mesh.Surface {
	s := mesh.New(name, []pmath.Vec3{
		{X: 0, Y: 0},
		{X: 1, Y: 0},
		{X: 0, Y: 1},
		{X: 1, Y: 1},
	}, []mesh.Face{{0, 1, 2}, {1, 3, 2}})
	s.Colors = []mesh.Color{{R: 1}, {G: 1}, {B: 1}, {R: 1, G: 1, B: 1}}
	return s
}

// slide moves every vertex along +X by one unit per frame.
func slide(frame int, rest []pmath.Vec3) []pmath.Vec3 {
	out := make([]pmath.Vec3, len(rest))
	for i, v := range rest {
		out[i] = v.Add(pmath.Vec3{X: float32(frame)})
	}
	return out
}

func newScene(t *testing.T, r scene.FrameRange, points ...pmath.Vec3) *scene.Memory {
	t.Helper()
	m := scene.NewMemory(r)
	require.NoError(t, m.Add(colorQuad("body_colors"), slide))
	require.NoError(t, m.Add(mesh.New("body_points", points, nil), slide))
	return m
}

func runJob(t *testing.T, j *Job, p Progress) Progress {
	t.Helper()
	p, err := job.Run[Progress](context.Background(), j, p, job.Options[Progress]{})
	require.NoError(t, err)
	require.NoError(t, j.Close())
	return p
}

func TestResolvePairs(t *testing.T) {
	sc := newScene(t, scene.FrameRange{Start: 0, End: 0, Step: 1}, pmath.Vec3{})

	pairs, err := ResolvePairs(sc, []string{"body_points"})
	require.NoError(t, err)
	assert.Equal(t, []Pair{{Points: "body_points", Colors: "body_colors"}}, pairs)

	_, err = ResolvePairs(sc, nil)
	assert.ErrorIs(t, err, ErrNoObjects)

	require.NoError(t, sc.Add(mesh.New("hair_points", nil, nil), nil))
	_, err = ResolvePairs(sc, []string{"hair_points"})
	assert.ErrorIs(t, err, ErrMissingColorMesh)

	_, err = ResolvePairs(sc, []string{"nothing_points"})
	assert.ErrorIs(t, err, scene.ErrUnknownObject)
}

func TestNames(t *testing.T) {
	assert.Equal(t, "body", BaseName("body_points"))
	assert.Equal(t, "body_colors", ColorsName("body_points"))
	assert.Equal(t, "body_points", PointsName("body"))
}

func TestSinglePointSingleFrame(t *testing.T) {
	sc := newScene(t, scene.FrameRange{Start: 0, End: 0, Step: 1}, pmath.Vec3{X: 0.1, Y: 0.1, Z: 0.2})
	path := filepath.Join(t.TempDir(), "out.3cpf")

	j, p, err := Prepare(sc, []Pair{{Points: "body_points", Colors: "body_colors"}}, Options{Path: path})
	require.NoError(t, err)
	p = runJob(t, j, p)

	assert.Equal(t, int64(35), p.Size)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 35)

	cpf, err := formats.ParseCPF(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cpf.Header.PointCount)
	assert.Equal(t, uint32(1), cpf.Header.FrameCount)
	assert.Equal(t, [3]byte{255, 0, 0}, cpf.Color(0))
	assert.InDelta(t, 0, cpf.Position(0, 0).Distance(pmath.Vec3{X: 0.1, Y: 0.1, Z: 0.2}), 1e-5)
	assert.Equal(t, crc32.ChecksumIEEE(data[20:]), cpf.Header.Checksum)
	assert.Contains(t, j.Status(p), "Successfully exported 3cpf data to "+path)
}

func TestPointsFollowSurface(t *testing.T) {
	r := scene.FrameRange{Start: 1, End: 4, Step: 1}
	start := pmath.Vec3{X: 1.9, Y: 0.9, Z: 0.1}
	sc := newScene(t, r, start.Sub(pmath.Vec3{X: 1}), pmath.Vec3{X: 1.2, Y: 0.3})
	path := filepath.Join(t.TempDir(), "out.3cpf")

	pairs, err := ResolvePairs(sc, []string{"body_points"})
	require.NoError(t, err)
	j, p, err := Prepare(sc, pairs, Options{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, j.Points())
	assert.Len(t, j.Colors(), 6)

	p = runJob(t, j, p)
	assert.Equal(t, 4, p.Written)

	cpf, err := formats.ParseCPFFile(path)
	require.NoError(t, err)
	require.Equal(t, uint32(4), cpf.Header.FrameCount)

	// A rigid slide of the surface carries the point along unchanged.
	for f := 0; f < 4; f++ {
		want := start.Add(pmath.Vec3{X: float32(f)})
		assert.InDelta(t, 0, cpf.Position(f, 0).Distance(want), 1e-5, "frame %d", f+1)
	}
	assert.Len(t, p.Positions, 2*4*formats.CPFPositionStride)
	assert.Equal(t, int64(formats.CPFSize(2, 4)), p.Size)
}

func TestStepSkipsFrames(t *testing.T) {
	sc := newScene(t, scene.FrameRange{Start: 0, End: 10, Step: 1}, pmath.Vec3{X: 0.5, Y: 0.5})
	path := filepath.Join(t.TempDir(), "out.3cpf")

	j, p, err := Prepare(sc, []Pair{{Points: "body_points", Colors: "body_colors"}},
		Options{Path: path, Range: scene.FrameRange{Start: 0, End: 7, Step: 3}})
	require.NoError(t, err)

	var visited []int
	p, err = job.Run[Progress](context.Background(), j, p, job.Options[Progress]{
		Observe: func(p Progress) {
			if p.Phase != PhaseDone {
				visited = append(visited, p.Frame)
			}
		},
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, 3, p.Written) // frames 0, 3, 6
	assert.Equal(t, []int{3, 6, 9}, visited)

	cpf, err := formats.ParseCPFFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), cpf.Header.FrameCount)
	assert.InDelta(t, 6.5, cpf.Position(2, 0).X, 1e-5)
}

func TestPrepareRestoresSceneAndFreeze(t *testing.T) {
	sc := newScene(t, scene.FrameRange{Start: 2, End: 5, Step: 1}, pmath.Vec3{X: 0.5, Y: 0.5})
	require.NoError(t, sc.SetFrame(4))

	j, p, err := Prepare(sc, []Pair{{Points: "body_points", Colors: "body_colors"}},
		Options{Path: filepath.Join(t.TempDir(), "out.3cpf")})
	require.NoError(t, err)
	assert.Equal(t, 2, sc.Frame())
	assert.True(t, sc.Frozen("body_points"))

	p, err = j.Step(p)
	require.NoError(t, err)
	assert.Contains(t, j.Status(p), "Processing frame: 3 / 5")

	require.NoError(t, j.Close())
	require.NoError(t, j.Close())
	assert.Equal(t, 4, sc.Frame())
	assert.False(t, sc.Frozen("body_points"))
}

func TestPreconditions(t *testing.T) {
	pair := []Pair{{Points: "body_points", Colors: "body_colors"}}
	path := filepath.Join(t.TempDir(), "out.3cpf")

	tests := []struct {
		name  string
		setup func(*testing.T, *scene.Memory)
		pairs []Pair
		opts  Options
		want  error
	}{
		{name: "no objects", opts: Options{Path: path}, want: ErrNoObjects},
		{name: "empty path", pairs: pair, want: ErrEmptyOutputPath},
		{
			name:  "missing color surface",
			pairs: []Pair{{Points: "body_points", Colors: "hair_colors"}},
			opts:  Options{Path: path},
			want:  ErrMissingColorMesh,
		},
		{
			name:  "bad range",
			pairs: pair,
			opts:  Options{Path: path, Range: scene.FrameRange{Start: 5, End: 1, Step: 1}},
			want:  scene.ErrInvalidRange,
		},
		{
			name: "no color attribute",
			setup: func(t *testing.T, m *scene.Memory) {
				plain := colorQuad("bare_colors")
				plain.Colors = nil
				require.NoError(t, m.Add(plain, nil))
				require.NoError(t, m.Add(mesh.New("bare_points", []pmath.Vec3{{}}, nil), nil))
			},
			pairs: []Pair{pair[0], {Points: "bare_points", Colors: "bare_colors"}},
			opts:  Options{Path: path},
			want:  track.ErrMissingColorAttribute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := newScene(t, scene.FrameRange{Start: 1, End: 3, Step: 1}, pmath.Vec3{})
			require.NoError(t, sc.SetFrame(3))
			if tt.setup != nil {
				tt.setup(t, sc)
			}

			j, _, err := Prepare(sc, tt.pairs, tt.opts)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, j)
			assert.Equal(t, 3, sc.Frame())
			assert.False(t, sc.Frozen("body_points"))
			assert.NoFileExists(t, path)
		})
	}
}

func TestWriteFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	sc := newScene(t, scene.FrameRange{Start: 0, End: 0, Step: 1}, pmath.Vec3{})
	j, p, err := Prepare(sc, []Pair{{Points: "body_points", Colors: "body_colors"}},
		Options{Path: filepath.Join(blocker, "out.3cpf")})
	require.NoError(t, err)
	defer j.Close()

	_, err = job.Run[Progress](context.Background(), j, p, job.Options[Progress]{})
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(blocker, "out.3cpf"))
}
