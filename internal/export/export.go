// Package export bakes tracked point motion into a 3CPF file.
//
// Prepare checks every precondition, builds the correspondence records at
// the first frame and returns the starting Progress. Each Step then
// reconstructs one frame; the step after the last frame writes the file.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Faultbox/pointbake/internal/logger"
	"github.com/Faultbox/pointbake/internal/mesh"
	"github.com/Faultbox/pointbake/internal/scene"
	"github.com/Faultbox/pointbake/internal/track"
	"github.com/Faultbox/pointbake/pkg/formats"
)

// Precondition errors.
var (
	ErrNoObjects        = errors.New("no point objects selected")
	ErrMissingColorMesh = errors.New("point object has no paired color surface")
	ErrEmptyOutputPath  = errors.New("output path is empty")
)

// Options configures an export.
type Options struct {
	Path string
	// Range overrides the scene's frame range when Step is non-zero.
	Range scene.FrameRange
}

// Phase is the stage an export is in.
type Phase int

// Export phases.
const (
	PhaseFrames Phase = iota
	PhaseWrite
	PhaseDone
)

// Progress is the complete state of an export between steps.
type Progress struct {
	Phase Phase
	// Frame is the next frame to reconstruct.
	Frame int
	// Written counts the frames reconstructed so far.
	Written int
	// Positions holds the encoded positions of every written frame.
	Positions []byte
	// Size is the output file size once written.
	Size int64
}

type tracked struct {
	pair    Pair
	records []track.Record
	rest    *mesh.Surface
}

// Job is a prepared export. Close must be called once the job ends,
// whether it completed or not.
type Job struct {
	ID     string
	scene  scene.Scene
	opts   Options
	frames scene.FrameRange

	tracks []tracked
	colors []byte
	points int

	release func() error
	restore func()
	log     *zap.Logger
}

// Prepare validates the export and builds the correspondence records at the
// range's start frame. On error the scene is left as it was found.
func Prepare(sc scene.Scene, pairs []Pair, opts Options) (job *Job, start Progress, err error) {
	if len(pairs) == 0 {
		return nil, Progress{}, ErrNoObjects
	}
	if opts.Path == "" {
		return nil, Progress{}, ErrEmptyOutputPath
	}
	frames := opts.Range
	if frames.Step == 0 {
		frames = sc.Range()
	}
	if err := frames.Validate(); err != nil {
		return nil, Progress{}, err
	}
	for _, p := range pairs {
		if !sc.Has(p.Points) {
			return nil, Progress{}, fmt.Errorf("%s: %w", p.Points, scene.ErrUnknownObject)
		}
		if !sc.Has(p.Colors) {
			return nil, Progress{}, fmt.Errorf("%s needs %s: %w", p.Points, p.Colors, ErrMissingColorMesh)
		}
	}

	log, id := logger.ForJob("export")
	j := &Job{
		ID:      id,
		scene:   sc,
		opts:    opts,
		frames:  frames,
		release: scene.Acquire(sc),
		log:     log,
	}
	defer func() {
		if err != nil {
			j.Close()
			job = nil
		}
	}()

	if err := sc.SetFrame(frames.Start); err != nil {
		return nil, Progress{}, err
	}

	// All color surfaces are checked before any records are built.
	rest := make([]*mesh.Surface, len(pairs))
	for i, p := range pairs {
		s, err := sc.Evaluate(p.Colors)
		if err != nil {
			return nil, Progress{}, err
		}
		if err := track.CheckColorSurface(s); err != nil {
			return nil, Progress{}, err
		}
		rest[i] = s
	}

	for i, p := range pairs {
		sparse, err := sc.Evaluate(p.Points)
		if err != nil {
			return nil, Progress{}, err
		}
		records, colors, err := track.Build(sparse, rest[i])
		if err != nil {
			return nil, Progress{}, fmt.Errorf("tracking %s: %w", p.Points, err)
		}
		j.tracks = append(j.tracks, tracked{pair: p, records: records, rest: rest[i]})
		j.colors = append(j.colors, colors...)
		j.points += len(records)
		log.Debug("tracked points", zap.String("object", p.Points), zap.Int("points", len(records)))
	}

	if f, ok := sc.(scene.DeformationFreezer); ok {
		names := make([]string, len(pairs))
		for i, p := range pairs {
			names[i] = p.Points
		}
		if j.restore, err = f.FreezeDeformation(names...); err != nil {
			return nil, Progress{}, err
		}
	}

	log.Info("export prepared",
		zap.String("path", opts.Path),
		zap.Int("points", j.points),
		zap.Int("frames", frames.Count()),
	)

	start = Progress{
		Phase:     PhaseFrames,
		Frame:     frames.Start,
		Positions: make([]byte, 0, formats.CPFPositionStride*j.points*frames.Count()),
	}
	return j, start, nil
}

// Points returns the number of tracked points.
func (j *Job) Points() int { return j.points }

// Colors returns the color bytes, 3 per point.
func (j *Job) Colors() []byte { return j.colors }

// Range returns the frames the job visits.
func (j *Job) Range() scene.FrameRange { return j.frames }

// Done reports whether p is final.
func (j *Job) Done(p Progress) bool { return p.Phase == PhaseDone }

// Step reconstructs one frame, or writes the file after the last frame.
func (j *Job) Step(p Progress) (Progress, error) {
	switch p.Phase {
	case PhaseFrames:
		return j.frame(p)
	case PhaseWrite:
		return j.write(p)
	default:
		return p, nil
	}
}

func (j *Job) frame(p Progress) (Progress, error) {
	if err := j.scene.SetFrame(p.Frame); err != nil {
		return p, err
	}
	buf := p.Positions
	for _, t := range j.tracks {
		s, err := j.scene.Evaluate(t.pair.Colors)
		if err != nil {
			return p, err
		}
		if err := t.rest.SameTopology(s); err != nil {
			return p, fmt.Errorf("frame %d: %w", p.Frame, err)
		}
		buf = track.AppendFrame(buf, t.records, s)
	}
	j.log.Debug("frame reconstructed", zap.Int("frame", p.Frame))

	p.Positions = buf
	p.Written++
	p.Frame += j.frames.Step
	if p.Frame > j.frames.End {
		p.Phase = PhaseWrite
	}
	return p, nil
}

func (j *Job) write(p Progress) (Progress, error) {
	size, err := writeAtomic(j.opts.Path, func(w *bufio.Writer) error {
		return formats.WriteCPF(w, j.colors, p.Positions, uint32(j.points), uint32(p.Written))
	})
	if err != nil {
		return p, fmt.Errorf("writing %s: %w", j.opts.Path, err)
	}
	p.Size = size
	p.Phase = PhaseDone
	j.log.Info("export written",
		zap.String("path", j.opts.Path),
		zap.Int("frames", p.Written),
		zap.String("size", humanize.Bytes(uint64(size))),
	)
	return p, nil
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, write func(*bufio.Writer) error) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, ".pointbake-*.tmp")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return 0, err
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close lifts the deformation freeze and restores the scene's frame.
// It is safe to call more than once.
func (j *Job) Close() error {
	if j.restore != nil {
		j.restore()
		j.restore = nil
	}
	if j.release == nil {
		return nil
	}
	err := j.release()
	j.release = nil
	return err
}

// Status returns the user-facing message for p.
func (j *Job) Status(p Progress) string {
	switch p.Phase {
	case PhaseFrames:
		return fmt.Sprintf("Processing frame: %d / %d", p.Frame, j.frames.End)
	case PhaseWrite:
		return fmt.Sprintf("Writing %s", humanize.Bytes(uint64(formats.CPFSize(j.points, p.Written))))
	default:
		return fmt.Sprintf("Successfully exported 3cpf data to %s (%s)", j.opts.Path, humanize.Bytes(uint64(p.Size)))
	}
}
