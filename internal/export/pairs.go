package export

import (
	"fmt"
	"strings"

	"github.com/Faultbox/pointbake/internal/scene"
)

// Object name suffixes linking a sampled point object to the surface it
// was sampled from.
const (
	PointsSuffix = "_points"
	ColorsSuffix = "_colors"
)

// Pair names a sparse point object and the detailed color surface it
// tracks.
type Pair struct {
	Points string
	Colors string
}

// BaseName strips the points suffix from name.
func BaseName(name string) string {
	return strings.TrimSuffix(name, PointsSuffix)
}

// ColorsName returns the color surface paired with a points object.
func ColorsName(points string) string {
	return BaseName(points) + ColorsSuffix
}

// PointsName returns the points object generated from base.
func PointsName(base string) string {
	return base + PointsSuffix
}

// ResolvePairs pairs every selected points object with its color surface.
func ResolvePairs(sc scene.Scene, selected []string) ([]Pair, error) {
	if len(selected) == 0 {
		return nil, ErrNoObjects
	}
	pairs := make([]Pair, 0, len(selected))
	for _, name := range selected {
		if !sc.Has(name) {
			return nil, fmt.Errorf("%s: %w", name, scene.ErrUnknownObject)
		}
		colors := ColorsName(name)
		if !sc.Has(colors) {
			return nil, fmt.Errorf("%s needs %s: %w", name, colors, ErrMissingColorMesh)
		}
		pairs = append(pairs, Pair{Points: name, Colors: colors})
	}
	return pairs, nil
}
