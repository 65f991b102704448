// pointbake samples animated surfaces into point sets and bakes their
// motion into 3CPF files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Faultbox/pointbake/internal/config"
	"github.com/Faultbox/pointbake/internal/distribute"
	"github.com/Faultbox/pointbake/internal/export"
	"github.com/Faultbox/pointbake/internal/job"
	"github.com/Faultbox/pointbake/internal/logger"
	"github.com/Faultbox/pointbake/internal/placement"
	"github.com/Faultbox/pointbake/internal/sampler"
	"github.com/Faultbox/pointbake/internal/scene"
	"github.com/Faultbox/pointbake/pkg/formats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "distribute", "dist":
		err = cmdDistribute(args)
	case "undistribute", "undist":
		err = cmdUndistribute(args)
	case "export":
		err = cmdExport(args)
	case "count":
		err = cmdCount(args)
	case "retime":
		err = cmdRetime(args)
	case "info":
		err = cmdInfo(args)
	case "config":
		err = cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pointbake - animated surface to 3CPF point baker

Usage:
  pointbake <command> [options] [args]

Commands:
  distribute <object>...     Sample objects into <object>_points at the target count
  undistribute <object>...   Remove generated points and restore the original objects
  export <object>_points...  Bake tracked point motion into a 3CPF file
  count <object>_points...   Report the number of points
  retime <fps>               Change the scene frame rate, keeping its duration
  info <file.3cpf>           Verify a 3CPF file and show its header
  config [-global]           Write the effective settings to a config file

Common options:
  -scene <path>    Scene manifest (default scene.yaml)
  -config <path>   Config file (default ./pointbake.yaml)
  -debug           Enable debug logging

Examples:
  pointbake distribute -target 2000 body
  pointbake export -o body.3cpf -step 2 body_points
  pointbake info body.3cpf`)
}

// setup parses args, loads config and logging, and opens the manifest.
func setup(fs *flag.FlagSet, args []string) (*config.Config, *scene.Manifest, error) {
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, nil, err
	}
	m, err := scene.LoadManifest(cfg.Scene.Manifest)
	if err != nil {
		return nil, nil, fmt.Errorf("opening scene: %w", err)
	}
	return cfg, m, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func cmdDistribute(args []string) error {
	fs := flag.NewFlagSet("distribute", flag.ExitOnError)
	cfg, m, err := setup(fs, args)
	if err != nil {
		return err
	}

	opts := distribute.Options{
		Placement: placement.Options{
			Target:        cfg.Placement.Target,
			Threshold:     cfg.Placement.Threshold,
			MaxIterations: cfg.Placement.Iterations,
		},
		Sampler: sampler.Options{
			Seed:          cfg.Placement.Seed,
			MaxCandidates: cfg.Placement.MaxCandidates,
		},
	}
	j, p, err := distribute.Prepare(m, fs.Args(), opts)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	p, err = job.Run(ctx, j, p, job.Options[placement.Progress]{
		Interval: cfg.Runner.Interval,
		Observe: func(p placement.Progress) {
			logger.Debug(j.Status(p), zap.String("job", j.ID), zap.Float32("spacing", p.Spacing))
		},
	})
	if err != nil {
		return err
	}

	results, err := j.Apply(p)
	if err != nil {
		return err
	}
	if err := m.SaveTo(cfg.Scene.Manifest); err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("  %-24s %8d points  %s\n", r.Points, r.Count, r.File)
	}
	fmt.Println(j.Status(p))
	return nil
}

func cmdUndistribute(args []string) error {
	fs := flag.NewFlagSet("undistribute", flag.ExitOnError)
	cfg, m, err := setup(fs, args)
	if err != nil {
		return err
	}

	restored, err := distribute.Undistribute(m, fs.Args())
	if err != nil {
		return err
	}
	if err := m.SaveTo(cfg.Scene.Manifest); err != nil {
		return err
	}
	fmt.Printf("Restored %d object(s)\n", len(restored))
	for _, name := range restored {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	start := fs.Int("start", 0, "First frame (default: scene start)")
	end := fs.Int("end", 0, "Last frame (default: scene end)")
	step := fs.Int("step", 0, "Frame step (default: scene step)")
	preload := fs.Bool("preload", false, "Load every frame's mesh before exporting")
	cfg, m, err := setup(fs, args)
	if err != nil {
		return err
	}

	r, err := overrideRange(fs, m.Range(), *start, *end, *step)
	if err != nil {
		return err
	}

	pairs, err := export.ResolvePairs(m, fs.Args())
	if err != nil {
		return err
	}
	if *preload {
		names := make([]string, len(pairs))
		for i, p := range pairs {
			names[i] = p.Colors
		}
		if err := m.Preload(r, names...); err != nil {
			return err
		}
	}

	j, p, err := export.Prepare(m, pairs, export.Options{Path: cfg.Export.Output, Range: r})
	if err != nil {
		return err
	}
	defer j.Close()

	ctx, cancel := signalContext()
	defer cancel()
	p, err = job.Run(ctx, j, p, job.Options[export.Progress]{
		Interval: cfg.Runner.Interval,
		Observe: func(p export.Progress) {
			logger.Debug(j.Status(p), zap.String("job", j.ID))
		},
	})
	if err != nil {
		return err
	}
	fmt.Println(j.Status(p))
	return j.Close()
}

// overrideRange replaces the parts of r whose -start, -end or -step flag
// was given on the command line.
func overrideRange(fs *flag.FlagSet, r scene.FrameRange, start, end, step int) (scene.FrameRange, error) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "start":
			r.Start = start
		case "end":
			r.End = end
		case "step":
			r.Step = step
		}
	})
	if err := r.Validate(); err != nil {
		return scene.FrameRange{}, err
	}
	return r, nil
}

func cmdCount(args []string) error {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	_, m, err := setup(fs, args)
	if err != nil {
		return err
	}
	total, err := distribute.Count(m, fs.Args())
	if err != nil {
		return err
	}
	fmt.Printf("Total point count for %d object(s): %s\n", fs.NArg(), humanize.Comma(int64(total)))
	return nil
}

func cmdRetime(args []string) error {
	fs := flag.NewFlagSet("retime", flag.ExitOnError)
	cfg, m, err := setup(fs, args)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: pointbake retime <fps>")
	}
	fps, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid fps %q: %w", fs.Arg(0), err)
	}

	old := m.FPS
	if err := m.Retime(fps); err != nil {
		return err
	}
	if err := m.SaveTo(cfg.Scene.Manifest); err != nil {
		return err
	}
	fmt.Printf("Frame rate %d -> %d, frames %d-%d, current %d\n", old, fps, m.Frames.Start, m.Frames.End, m.Current)
	return nil
}

func cmdConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	global := fs.Bool("global", false, "Write to the user config directory instead of ./"+config.FileName)
	flags := config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	path := config.FileName
	if flags.Config != "" {
		path = flags.Config
	}
	if *global {
		path = filepath.Join(config.ConfigDir(), config.FileName)
		err = cfg.Save()
	} else {
		err = cfg.SaveTo(path)
	}
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pointbake info <file.3cpf>")
	}

	cpf, err := formats.ParseCPFFile(args[0])
	if err != nil {
		return err
	}

	h := cpf.Header
	min, max := cpf.Bounds()
	fmt.Printf("File:     %s\n", args[0])
	fmt.Printf("Version:  %d\n", h.Version)
	fmt.Printf("Checksum: %08x (ok)\n", h.Checksum)
	fmt.Printf("Points:   %s\n", humanize.Comma(int64(h.PointCount)))
	fmt.Printf("Frames:   %d\n", h.FrameCount)
	fmt.Printf("Size:     %s\n", humanize.Bytes(uint64(cpf.Size())))
	if h.PointCount > 0 && h.FrameCount > 0 {
		fmt.Printf("Bounds:   (%.3f, %.3f, %.3f) - (%.3f, %.3f, %.3f)\n", min.X, min.Y, min.Z, max.X, max.Y, max.Z)
	}
	return nil
}
