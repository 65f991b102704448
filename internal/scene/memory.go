package scene

import (
	"fmt"

	"github.com/Faultbox/pointbake/internal/mesh"
	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// Animator returns an object's object-space vertex positions at frame.
type Animator func(frame int, rest []pmath.Vec3) []pmath.Vec3

// Memory is a Scene held entirely in memory.
type Memory struct {
	frame   int
	frames  FrameRange
	objects map[string]*memoryObject
}

type memoryObject struct {
	rest    *mesh.Surface
	animate Animator
	frozen  int
}

// NewMemory returns an empty scene positioned at r.Start.
func NewMemory(r FrameRange) *Memory {
	return &Memory{
		frame:   r.Start,
		frames:  r,
		objects: make(map[string]*memoryObject),
	}
}

// Add registers s under s.Name. animate may be nil for a static object.
func (m *Memory) Add(s *mesh.Surface, animate Animator) error {
	if _, ok := m.objects[s.Name]; ok {
		return fmt.Errorf("%s: %w", s.Name, ErrObjectExists)
	}
	m.objects[s.Name] = &memoryObject{rest: s, animate: animate}
	return nil
}

func (m *Memory) Frame() int        { return m.frame }
func (m *Memory) Range() FrameRange { return m.frames }

func (m *Memory) SetFrame(frame int) error {
	m.frame = frame
	return nil
}

func (m *Memory) Has(name string) bool {
	_, ok := m.objects[name]
	return ok
}

func (m *Memory) Evaluate(name string) (*mesh.Surface, error) {
	o, ok := m.objects[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownObject)
	}
	if o.animate == nil || o.frozen > 0 {
		return o.rest, nil
	}
	return o.rest.WithVertices(o.animate(m.frame, o.rest.Vertices)), nil
}

// FreezeDeformation holds the named objects in their rest shape.
// Freezes nest; each restore undoes one.
func (m *Memory) FreezeDeformation(names ...string) (func(), error) {
	for _, n := range names {
		if !m.Has(n) {
			return nil, fmt.Errorf("%s: %w", n, ErrUnknownObject)
		}
	}
	for _, n := range names {
		m.objects[n].frozen++
	}
	return func() {
		for _, n := range names {
			m.objects[n].frozen--
		}
	}, nil
}

// Frozen reports whether name is currently frozen.
func (m *Memory) Frozen(name string) bool {
	o, ok := m.objects[name]
	return ok && o.frozen > 0
}
