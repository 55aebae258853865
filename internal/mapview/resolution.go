package mapview

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultResolution is the resolution that shows the whole extent in the
// viewport with some margin.
func DefaultResolution(extent orb.Bound, viewportWidth, viewportHeight float64) float64 {
	if viewportWidth <= 0 || viewportHeight <= 0 {
		return 1
	}
	w := extent.Max[0] - extent.Min[0]
	h := extent.Max[1] - extent.Min[1]
	return math.Max(w/viewportWidth, h/viewportHeight) * 1.25
}

// ExpandResolutions adds zoom levels around a descending resolution list:
// maxSteps-1 doublings above the largest and minSteps-1 halvings below the
// smallest.
func ExpandResolutions(resolutions []float64, maxSteps, minSteps int) []float64 {
	if len(resolutions) == 0 {
		return nil
	}

	out := make([]float64, 0, len(resolutions)+maxSteps+minSteps)

	maxRes := resolutions[0]
	for i := maxSteps - 1; i >= 1; i-- {
		out = append(out, maxRes*math.Pow(2, float64(i)))
	}

	out = append(out, resolutions...)

	minRes := resolutions[len(resolutions)-1]
	for i := 1; i < minSteps; i++ {
		out = append(out, minRes/math.Pow(2, float64(i)))
	}

	return out
}

// Overviews returns the descending power-of-two resolutions of a tiled image
// pyramid, from the level where the extent fits one tile down to full
// resolution.
func Overviews(extent orb.Bound, tileSize float64) []float64 {
	if tileSize <= 0 {
		tileSize = 256
	}
	size := math.Max(extent.Max[0]-extent.Min[0], extent.Max[1]-extent.Min[1])

	levels := 0
	for r := 1.0; size/r > tileSize; r *= 2 {
		levels++
	}

	out := make([]float64, 0, levels+1)
	for i := levels; i >= 0; i-- {
		out = append(out, math.Pow(2, float64(i)))
	}
	return out
}
