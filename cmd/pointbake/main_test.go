package main

import (
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/pointbake/internal/scene"
)

func TestOverrideRange(t *testing.T) {
	base := scene.FrameRange{Start: 1, End: 250, Step: 1}

	tests := []struct {
		name string
		args []string
		want scene.FrameRange
	}{
		{"no flags keeps scene range", nil, base},
		{"start at frame zero", []string{"-start", "0"}, scene.FrameRange{Start: 0, End: 250, Step: 1}},
		{"negative start", []string{"-start", "-10", "-end", "0"}, scene.FrameRange{Start: -10, End: 0, Step: 1}},
		{"step only", []string{"-step", "5"}, scene.FrameRange{Start: 1, End: 250, Step: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("export", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			start := fs.Int("start", 0, "")
			end := fs.Int("end", 0, "")
			step := fs.Int("step", 0, "")
			require.NoError(t, fs.Parse(tt.args))

			got, err := overrideRange(fs, base, *start, *end, *step)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOverrideRangeRejectsInvalid(t *testing.T) {
	for _, args := range [][]string{
		{"-step", "0"},
		{"-start", "10", "-end", "5"},
	} {
		fs := flag.NewFlagSet("export", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		start := fs.Int("start", 0, "")
		end := fs.Int("end", 0, "")
		step := fs.Int("step", 0, "")
		require.NoError(t, fs.Parse(args))

		_, err := overrideRange(fs, scene.FrameRange{Start: 1, End: 250, Step: 1}, *start, *end, *step)
		assert.ErrorIs(t, err, scene.ErrInvalidRange, "args %v", args)
	}
}
