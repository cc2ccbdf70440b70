package domain

import "fmt"

// canonicalRatios lists the aspect ratio descriptors the remote renderer
// understands, keyed by their numeric value. Order matters: the first match
// within tolerance wins.
var canonicalRatios = []struct {
	label string
	value float64
}{
	{"16:9", 16.0 / 9.0},
	{"9:16", 9.0 / 16.0},
	{"1:1", 1.0},
	{"4:3", 4.0 / 3.0},
	{"3:4", 3.0 / 4.0},
	{"21:9", 21.0 / 9.0},
}

// aspectRatioTolerance is the tolerance for matching a canonical ratio.
const aspectRatioTolerance = 0.01

// AspectRatio derives the aspect ratio descriptor embedded in a remote job
// spec from the source image's pixel dimensions. Dimensions matching a
// canonical ratio within tolerance map to its label; anything else falls back to the
// literal "width:height". Missing dimensions default to "16:9". The result
// only affects remote rendering, never local state.
func AspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "16:9"
	}

	ratio := float64(width) / float64(height)
	for _, c := range canonicalRatios {
		if diff := ratio - c.value; diff < aspectRatioTolerance && diff > -aspectRatioTolerance {
			return c.label
		}
	}

	return fmt.Sprintf("%d:%d", width, height)
}
