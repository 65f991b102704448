package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/pointbake/internal/mesh"
	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// Transform places an object in the world. Rotation is XYZ Euler in degrees.
type Transform struct {
	Translate [3]float32 `yaml:"translate"`
	Rotate    [3]float32 `yaml:"rotate"`
	Scale     [3]float32 `yaml:"scale"`
}

// Matrix returns the object's world matrix. A zero scale means unit scale.
func (t Transform) Matrix() pmath.Mat4 {
	scale := t.Scale
	if scale == [3]float32{} {
		scale = [3]float32{1, 1, 1}
	}
	deg := math32.Pi / 180
	return pmath.Compose(
		pmath.Vec3{X: t.Translate[0], Y: t.Translate[1], Z: t.Translate[2]},
		pmath.Vec3{X: t.Rotate[0] * deg, Y: t.Rotate[1] * deg, Z: t.Rotate[2] * deg},
		pmath.Vec3{X: scale[0], Y: scale[1], Z: scale[2]},
	)
}

// Object is one entry of a manifest. Mesh is a PLY path relative to the
// manifest; a printf verb (e.g. body_%04d.ply) makes it per-frame.
type Object struct {
	Name      string    `yaml:"name"`
	Mesh      string    `yaml:"mesh"`
	Transform Transform `yaml:"transform"`
}

// Animated reports whether the mesh path changes with the frame.
func (o Object) Animated() bool {
	return strings.Contains(o.Mesh, "%")
}

type cacheKey struct {
	name  string
	frame int
}

// Manifest is a Scene described by a YAML file and backed by PLY meshes.
type Manifest struct {
	FPS     int        `yaml:"fps"`
	Frames  FrameRange `yaml:"frames"`
	Current int        `yaml:"current"`
	Objects []Object   `yaml:"objects"`

	dir    string
	mu     sync.Mutex
	cache  map[cacheKey]*mesh.Surface
	frozen map[string]int
}

// NewManifest returns an empty manifest whose mesh paths resolve against dir.
func NewManifest(dir string, fps int, r FrameRange) *Manifest {
	return &Manifest{FPS: fps, Frames: r, Current: r.Start, dir: dir}
}

// LoadManifest reads a manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if m.Frames.Step == 0 {
		m.Frames.Step = 1
	}
	if err := m.Frames.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Dir returns the directory mesh paths resolve against.
func (m *Manifest) Dir() string { return m.dir }

// SaveTo writes the manifest to path. Mesh paths are kept as written.
func (m *Manifest) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (m *Manifest) Frame() int        { return m.Current }
func (m *Manifest) Range() FrameRange { return m.Frames }

func (m *Manifest) SetFrame(frame int) error {
	if !m.Frames.Contains(frame) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrFrameOutside, frame, m.Frames.Start, m.Frames.End)
	}
	m.Current = frame
	return nil
}

// Object returns the named object.
func (m *Manifest) Object(name string) (Object, bool) {
	i := m.indexOf(name)
	if i < 0 {
		return Object{}, false
	}
	return m.Objects[i], true
}

func (m *Manifest) indexOf(name string) int {
	return slices.IndexFunc(m.Objects, func(o Object) bool { return o.Name == name })
}

func (m *Manifest) Has(name string) bool { return m.indexOf(name) >= 0 }

// AddObject appends o.
func (m *Manifest) AddObject(o Object) error {
	if m.Has(o.Name) {
		return fmt.Errorf("%s: %w", o.Name, ErrObjectExists)
	}
	m.Objects = append(m.Objects, o)
	return nil
}

// RemoveObject deletes the named object and drops its cached meshes.
func (m *Manifest) RemoveObject(name string) error {
	i := m.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%s: %w", name, ErrUnknownObject)
	}
	m.Objects = slices.Delete(m.Objects, i, i+1)
	m.invalidate(name)
	return nil
}

// RenameObject renames an object.
func (m *Manifest) RenameObject(from, to string) error {
	i := m.indexOf(from)
	if i < 0 {
		return fmt.Errorf("%s: %w", from, ErrUnknownObject)
	}
	if from != to && m.Has(to) {
		return fmt.Errorf("%s: %w", to, ErrObjectExists)
	}
	m.Objects[i].Name = to
	m.invalidate(from)
	return nil
}

func (m *Manifest) invalidate(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.cache {
		if k.name == name {
			delete(m.cache, k)
		}
	}
}

// MeshPath returns the file an object's mesh is read from at frame.
func (m *Manifest) MeshPath(o Object, frame int) string {
	p := o.Mesh
	if o.Animated() {
		p = fmt.Sprintf(p, frame)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.dir, p)
}

// Evaluate loads the named object at the current frame. Frozen objects
// and single-file meshes always evaluate the start-frame shape.
func (m *Manifest) Evaluate(name string) (*mesh.Surface, error) {
	o, ok := m.Object(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownObject)
	}
	frame := m.Current
	m.mu.Lock()
	frozen := m.frozen[name] > 0
	m.mu.Unlock()
	if frozen || !o.Animated() {
		frame = m.Frames.Start
	}
	return m.load(o, frame)
}

func (m *Manifest) load(o Object, frame int) (*mesh.Surface, error) {
	key := cacheKey{o.Name, frame}
	m.mu.Lock()
	if s, ok := m.cache[key]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := mesh.ReadPLYFile(m.MeshPath(o, frame))
	if err != nil {
		return nil, fmt.Errorf("%s frame %d: %w", o.Name, frame, err)
	}
	s.Name = o.Name
	s.World = o.Transform.Matrix()

	if o.Animated() && frame != m.Frames.Start {
		base, err := m.load(o, m.Frames.Start)
		if err != nil {
			return nil, err
		}
		if err := base.SameTopology(s); err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache == nil {
		m.cache = make(map[cacheKey]*mesh.Surface)
	}
	m.cache[key] = s
	return s, nil
}

// Preload reads the named objects for every frame in r concurrently, so
// later Evaluate calls hit the cache.
func (m *Manifest) Preload(r FrameRange, names ...string) error {
	var g errgroup.Group
	g.SetLimit(8)
	for _, name := range names {
		o, ok := m.Object(name)
		if !ok {
			return fmt.Errorf("%s: %w", name, ErrUnknownObject)
		}
		frames := []int{m.Frames.Start}
		if o.Animated() {
			frames = r.Frames()
		}
		for _, f := range frames {
			g.Go(func() error {
				_, err := m.load(o, f)
				return err
			})
		}
	}
	return g.Wait()
}

// FreezeDeformation holds the named objects in their start-frame shape.
func (m *Manifest) FreezeDeformation(names ...string) (func(), error) {
	for _, n := range names {
		if !m.Has(n) {
			return nil, fmt.Errorf("%s: %w", n, ErrUnknownObject)
		}
	}
	m.mu.Lock()
	if m.frozen == nil {
		m.frozen = make(map[string]int)
	}
	for _, n := range names {
		m.frozen[n]++
	}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, n := range names {
			if m.frozen[n]--; m.frozen[n] <= 0 {
				delete(m.frozen, n)
			}
		}
	}, nil
}
