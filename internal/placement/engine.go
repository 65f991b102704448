// Package placement tunes a surface sampler's minimum spacing until it
// produces roughly a target number of points.
//
// The count a Poisson-disk sampler produces for a given spacing cannot be
// predicted on an arbitrary surface, so the spacing is found by bisection.
// The search runs as a state machine: each Step performs one resample and
// returns the updated Progress, leaving the driving loop to the caller.
package placement

import (
	"errors"
	"fmt"

	pmath "github.com/Faultbox/pointbake/pkg/math"
)

// Search bounds and defaults.
const (
	MinSpacing        = 0.0001
	DefaultThreshold  = 10
	DefaultIterations = 16

	densityPerUnit = 10000
	minDensity     = 1000
)

// Precondition errors.
var (
	ErrNoSurfaces        = errors.New("no surfaces selected for point distribution")
	ErrInvalidTarget     = errors.New("target point count must be at least 1")
	ErrInvalidThreshold  = errors.New("threshold must not be negative")
	ErrInvalidIterations = errors.New("iteration budget must be at least 1")
	ErrDegenerateSurface = errors.New("surface has no extent")
)

// Sampler scatters points on one surface. Configure replaces its live
// parameters; Count reports how many points the current parameters produce.
type Sampler interface {
	Name() string
	Dimensions() pmath.Vec3
	Configure(maxDensity, minSpacing float32) error
	Count() (int, error)
}

// Options controls the bisection.
type Options struct {
	Target        int
	Threshold     int
	MaxIterations int
}

// DefaultOptions returns the default threshold and iteration budget for target.
func DefaultOptions(target int) Options {
	return Options{
		Target:        target,
		Threshold:     DefaultThreshold,
		MaxIterations: DefaultIterations,
	}
}

// Validate checks the options before any sampler is touched.
func (o Options) Validate() error {
	if o.Target < 1 {
		return ErrInvalidTarget
	}
	if o.Threshold < 0 {
		return ErrInvalidThreshold
	}
	if o.MaxIterations < 1 {
		return ErrInvalidIterations
	}
	return nil
}

// Phase is the stage a placement job is in.
type Phase int

// Placement phases.
const (
	PhaseSearch Phase = iota
	PhasePropagate
	PhaseDone
)

// String returns a human-readable phase name.
func (p Phase) String() string {
	switch p {
	case PhaseSearch:
		return "search"
	case PhasePropagate:
		return "propagate"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Progress is the complete state of a placement job between steps.
type Progress struct {
	Phase     Phase
	Iteration int
	Lower     float32
	Upper     float32
	// Spacing is the last spacing applied to the reference surface.
	Spacing float32
	// Count is the reference surface's count for Spacing.
	Count     int
	Converged bool
	// Next is the index of the next additional surface to configure.
	Next int
	// Total sums the counts of every configured surface.
	Total int
}

// Engine drives the reference sampler and then the remaining samplers.
type Engine struct {
	opts      Options
	reference Sampler
	others    []Sampler
	density   float32
}

// MaxDensity returns the sampler density used for a surface whose largest
// dimension is largest.
func MaxDensity(largest float32) float32 {
	d := largest * densityPerUnit
	if d < minDensity {
		return minDensity
	}
	return d
}

// New validates the job and picks the reference surface: the sampler with
// the largest bounding-box dimension, first one winning ties.
func New(samplers []Sampler, opts Options) (*Engine, Progress, error) {
	if len(samplers) == 0 {
		return nil, Progress{}, ErrNoSurfaces
	}
	if err := opts.Validate(); err != nil {
		return nil, Progress{}, err
	}

	ref := 0
	largest := samplers[0].Dimensions().MaxComponent()
	for i := 1; i < len(samplers); i++ {
		if d := samplers[i].Dimensions().MaxComponent(); d > largest {
			ref, largest = i, d
		}
	}
	if !(largest > MinSpacing) {
		return nil, Progress{}, fmt.Errorf("%s: %w", samplers[ref].Name(), ErrDegenerateSurface)
	}
	// Non-reference densities scale with extent; zero cannot be configured.
	for _, s := range samplers {
		if !(s.Dimensions().MaxComponent() > 0) {
			return nil, Progress{}, fmt.Errorf("%s: %w", s.Name(), ErrDegenerateSurface)
		}
	}

	others := make([]Sampler, 0, len(samplers)-1)
	others = append(others, samplers[:ref]...)
	others = append(others, samplers[ref+1:]...)

	e := &Engine{
		opts:      opts,
		reference: samplers[ref],
		others:    others,
		density:   MaxDensity(largest),
	}
	start := Progress{
		Phase:   PhaseSearch,
		Lower:   MinSpacing,
		Upper:   largest,
		Spacing: largest,
	}
	return e, start, nil
}

// Reference returns the sampler the spacing is tuned on.
func (e *Engine) Reference() Sampler { return e.reference }

// Others returns the samplers that receive the discovered spacing.
func (e *Engine) Others() []Sampler { return e.others }

// Done reports whether p is final.
func (e *Engine) Done(p Progress) bool { return p.Phase == PhaseDone }

// Step advances the job by one resample.
func (e *Engine) Step(p Progress) (Progress, error) {
	switch p.Phase {
	case PhaseSearch:
		return e.search(p)
	case PhasePropagate:
		return e.propagate(p)
	default:
		return p, nil
	}
}

func (e *Engine) search(p Progress) (Progress, error) {
	if p.Iteration >= e.opts.MaxIterations {
		return e.finishSearch(p), nil
	}

	s := (p.Lower + p.Upper) / 2
	if err := e.reference.Configure(e.density, s); err != nil {
		return p, fmt.Errorf("configuring %s: %w", e.reference.Name(), err)
	}
	c, err := e.reference.Count()
	if err != nil {
		return p, fmt.Errorf("sampling %s: %w", e.reference.Name(), err)
	}

	p.Iteration++
	p.Spacing = s
	p.Count = c

	if abs(c-e.opts.Target) <= e.opts.Threshold {
		p.Converged = true
		return e.finishSearch(p), nil
	}

	// Too many points means the spacing must grow.
	if c > e.opts.Target {
		p.Lower = s
	} else {
		p.Upper = s
	}

	if p.Iteration >= e.opts.MaxIterations {
		return e.finishSearch(p), nil
	}
	return p, nil
}

func (e *Engine) finishSearch(p Progress) Progress {
	p.Total = p.Count
	p.Phase = PhasePropagate
	if len(e.others) == 0 {
		p.Phase = PhaseDone
	}
	return p
}

func (e *Engine) propagate(p Progress) (Progress, error) {
	if p.Next >= len(e.others) {
		p.Phase = PhaseDone
		return p, nil
	}

	o := e.others[p.Next]
	density := o.Dimensions().MaxComponent() * densityPerUnit
	if err := o.Configure(density, p.Spacing); err != nil {
		return p, fmt.Errorf("configuring %s: %w", o.Name(), err)
	}
	c, err := o.Count()
	if err != nil {
		return p, fmt.Errorf("sampling %s: %w", o.Name(), err)
	}

	p.Total += c
	p.Next++
	if p.Next >= len(e.others) {
		p.Phase = PhaseDone
	}
	return p, nil
}

// Status returns the user-facing message for p.
func (e *Engine) Status(p Progress) string {
	switch p.Phase {
	case PhaseSearch:
		return fmt.Sprintf("Approximating point amount. Iteration: %d - Current point amount for control mesh: %d", p.Iteration, p.Count)
	case PhasePropagate:
		return fmt.Sprintf("Distributing to remaining meshes: %d / %d", p.Next, len(e.others))
	default:
		msg := fmt.Sprintf("Point distribution complete. Total point count for all selected meshes: %d", p.Total)
		if !p.Converged {
			msg += fmt.Sprintf(" (target %d±%d not reached in %d iterations; using closest spacing)",
				e.opts.Target, e.opts.Threshold, e.opts.MaxIterations)
		}
		return msg
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
