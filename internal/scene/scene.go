// Package scene models the host an export runs against: a timeline with a
// current frame and named objects that evaluate to surfaces.
package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/pointbake/internal/mesh"
)

var (
	ErrInvalidRange  = errors.New("invalid frame range")
	ErrFrameOutside  = errors.New("frame outside scene range")
	ErrUnknownObject = errors.New("unknown object")
	ErrObjectExists  = errors.New("object already exists")
)

// FrameRange is an inclusive frame range walked by Step.
type FrameRange struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
	Step  int `yaml:"step"`
}

// Validate checks start <= end and step >= 1.
func (r FrameRange) Validate() error {
	if r.Step < 1 {
		return fmt.Errorf("%w: step %d", ErrInvalidRange, r.Step)
	}
	if r.End < r.Start {
		return fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Count returns how many frames the range visits.
func (r FrameRange) Count() int {
	if r.Validate() != nil {
		return 0
	}
	return (r.End-r.Start)/r.Step + 1
}

// Frames returns every frame the range visits, in order.
func (r FrameRange) Frames() []int {
	n := r.Count()
	frames := make([]int, n)
	for i := range frames {
		frames[i] = r.Start + i*r.Step
	}
	return frames
}

// Contains reports whether f lies within [Start, End].
func (r FrameRange) Contains(f int) bool {
	return f >= r.Start && f <= r.End
}

// Scene is the timeline and object source an export reads from.
type Scene interface {
	Frame() int
	SetFrame(frame int) error
	Range() FrameRange
	Has(name string) bool
	// Evaluate returns the named object at the current frame.
	Evaluate(name string) (*mesh.Surface, error)
}

// DeformationFreezer is implemented by scenes that can hold named objects
// in their rest shape. The returned function undoes the freeze.
type DeformationFreezer interface {
	FreezeDeformation(names ...string) (restore func(), err error)
}

// Acquire records the scene's current frame and returns a function that
// restores it.
func Acquire(s Scene) (release func() error) {
	frame := s.Frame()
	return func() error {
		return s.SetFrame(frame)
	}
}
