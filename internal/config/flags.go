package config

import (
	"flag"
	"time"
)

// Flags holds the command-line overrides registered on a FlagSet.
type Flags struct {
	Config     string
	Debug      bool
	Manifest   string
	Output     string
	Target     int
	Threshold  int
	Iterations int
	Seed       uint64
	Interval   time.Duration

	fs *flag.FlagSet
}

// RegisterFlags adds the shared flags to fs. Call Load after fs.Parse.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Manifest, "scene", "", "Path to scene manifest")
	fs.StringVar(&f.Output, "o", "", "Output file path")
	fs.IntVar(&f.Target, "target", 0, "Target point count")
	fs.IntVar(&f.Threshold, "threshold", 0, "Accepted distance from the target count")
	fs.IntVar(&f.Iterations, "iterations", 0, "Maximum bisection iterations")
	fs.Uint64Var(&f.Seed, "seed", 0, "Sampler seed")
	fs.DurationVar(&f.Interval, "interval", 0, "Pause between job steps")
	return f
}

// given reports whether the named flag was set on the command line.
func (f *Flags) given(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, f *Flags) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Manifest != "" {
		cfg.Scene.Manifest = f.Manifest
	}
	if f.Output != "" {
		cfg.Export.Output = f.Output
	}
	if f.Target > 0 {
		cfg.Placement.Target = f.Target
	}
	if f.given("threshold") {
		cfg.Placement.Threshold = f.Threshold
	}
	if f.Iterations > 0 {
		cfg.Placement.Iterations = f.Iterations
	}
	if f.given("seed") {
		cfg.Placement.Seed = f.Seed
	}
	if f.given("interval") {
		cfg.Runner.Interval = f.Interval
	}
}
