// Package distribute turns surfaces of a manifest scene into sampled point
// objects and back.
//
// Distributing X samples its surface at the scene's start frame, writes the
// points to a PLY file, renames X to X_colors and adds X_points with X's
// transform. Undistribute reverses this.
package distribute

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/pointbake/internal/export"
	"github.com/Faultbox/pointbake/internal/logger"
	"github.com/Faultbox/pointbake/internal/mesh"
	"github.com/Faultbox/pointbake/internal/placement"
	"github.com/Faultbox/pointbake/internal/sampler"
	"github.com/Faultbox/pointbake/internal/scene"
)

// PointsDir is where generated point clouds are written, relative to the
// manifest.
const PointsDir = "points"

var ErrAlreadyDistributed = errors.New("object is already part of a points/colors pair")

// Options configures a distribution.
type Options struct {
	Placement placement.Options
	Sampler   sampler.Options
}

// Job tunes the samplers for every selected surface. It forwards Step and
// Done to the placement engine; Apply commits the result to the manifest.
type Job struct {
	*placement.Engine

	ID       string
	manifest *scene.Manifest
	samplers []*sampler.Poisson
	log      *zap.Logger
}

// Prepare samples nothing yet: it validates the selection, evaluates each
// surface at the start frame and builds the placement engine.
func Prepare(m *scene.Manifest, names []string, opts Options) (*Job, placement.Progress, error) {
	if len(names) == 0 {
		return nil, placement.Progress{}, placement.ErrNoSurfaces
	}
	if err := opts.Placement.Validate(); err != nil {
		return nil, placement.Progress{}, err
	}
	for _, n := range names {
		if !m.Has(n) {
			return nil, placement.Progress{}, fmt.Errorf("%s: %w", n, scene.ErrUnknownObject)
		}
		if strings.HasSuffix(n, export.PointsSuffix) || strings.HasSuffix(n, export.ColorsSuffix) ||
			m.Has(export.PointsName(n)) || m.Has(n+export.ColorsSuffix) {
			return nil, placement.Progress{}, fmt.Errorf("%s: %w", n, ErrAlreadyDistributed)
		}
	}

	release := scene.Acquire(m)
	defer release()
	if err := m.SetFrame(m.Range().Start); err != nil {
		return nil, placement.Progress{}, err
	}

	samplers := make([]*sampler.Poisson, len(names))
	generic := make([]placement.Sampler, len(names))
	for i, n := range names {
		s, err := m.Evaluate(n)
		if err != nil {
			return nil, placement.Progress{}, err
		}
		if samplers[i], err = sampler.New(s, opts.Sampler); err != nil {
			return nil, placement.Progress{}, err
		}
		generic[i] = samplers[i]
	}

	engine, start, err := placement.New(generic, opts.Placement)
	if err != nil {
		return nil, placement.Progress{}, err
	}

	log, id := logger.ForJob("distribute")
	log.Info("distribution prepared",
		zap.Strings("objects", names),
		zap.String("reference", engine.Reference().Name()),
		zap.Int("target", opts.Placement.Target),
	)
	return &Job{
		Engine:   engine,
		ID:       id,
		manifest: m,
		samplers: samplers,
		log:      log,
	}, start, nil
}

// Result describes one distributed object.
type Result struct {
	Points string
	Colors string
	File   string
	Count  int
}

// Apply writes the sampled points of a finished job and rewires the
// manifest. The manifest is not saved.
func (j *Job) Apply(p placement.Progress) ([]Result, error) {
	if !j.Done(p) {
		return nil, errors.New("distribution has not finished")
	}
	results := make([]Result, 0, len(j.samplers))
	for _, s := range j.samplers {
		base := s.Name()
		obj, _ := j.manifest.Object(base)

		rel := filepath.Join(PointsDir, export.PointsName(base)+".ply")
		if err := mesh.WritePointsPLYFile(filepath.Join(j.manifest.Dir(), rel), s.Positions()); err != nil {
			return results, err
		}
		colors := base + export.ColorsSuffix
		if err := j.manifest.RenameObject(base, colors); err != nil {
			return results, err
		}
		points := scene.Object{Name: export.PointsName(base), Mesh: filepath.ToSlash(rel), Transform: obj.Transform}
		if err := j.manifest.AddObject(points); err != nil {
			return results, err
		}

		n, _ := s.Count()
		results = append(results, Result{Points: points.Name, Colors: colors, File: rel, Count: n})
		j.log.Debug("object distributed", zap.String("object", base), zap.Int("points", n))
	}
	j.log.Info(j.Status(p))
	return results, nil
}

// Undistribute restores every selected pair: X_points is removed along with
// its generated file and X_colors is renamed back to X. Names may be given
// as X, X_points or X_colors; objects without a partner are skipped.
func Undistribute(m *scene.Manifest, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, placement.ErrNoSurfaces
	}
	var restored []string
	for _, n := range names {
		base := strings.TrimSuffix(export.BaseName(n), export.ColorsSuffix)
		points := export.PointsName(base)
		colors := export.ColorsName(points)
		obj, ok := m.Object(points)
		if !ok || !m.Has(colors) {
			logger.Debug("skipping unpaired object", zap.String("object", n))
			continue
		}
		if err := m.RemoveObject(points); err != nil {
			return restored, err
		}
		if generated(obj.Mesh) {
			path := m.MeshPath(obj, m.Range().Start)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return restored, err
			}
		}
		if err := m.RenameObject(colors, base); err != nil {
			return restored, err
		}
		restored = append(restored, base)
	}
	return restored, nil
}

func generated(meshPath string) bool {
	return filepath.Dir(filepath.FromSlash(meshPath)) == PointsDir
}

// Count evaluates each points object and returns the total vertex count.
func Count(sc scene.Scene, names []string) (int, error) {
	if len(names) == 0 {
		return 0, placement.ErrNoSurfaces
	}
	total := 0
	for _, n := range names {
		s, err := sc.Evaluate(n)
		if err != nil {
			return 0, err
		}
		total += len(s.Vertices)
	}
	return total, nil
}
