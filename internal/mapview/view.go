// Package mapview models the raster map viewport of a review session: center,
// resolution, the zoom levels of the COG, and the zoom anchor that keeps the
// feature under review fixed on screen while the user zooms.
package mapview

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// ZoomResolution is the resolution used when a review session first zooms
// to a point.
const ZoomResolution = 0.1

// FitPadding is the padding, in pixels, used when fitting a line on screen.
const FitPadding = 350

// View is the viewport state of one map.
type View struct {
	Extent      orb.Bound  `json:"extent"`
	Width       float64    `json:"width"`
	Height      float64    `json:"height"`
	Resolutions []float64  `json:"resolutions"`
	Center      orb.Point  `json:"center"`
	Resolution  float64    `json:"resolution"`
	Anchor      *orb.Point `json:"anchor,omitempty"`
	Interacting bool       `json:"interacting"`
}

// New creates a view over extent, reset to the default view. Its resolutions
// are the native ones, coarsest first, followed by six zoom-in levels; there
// is no zoom-out level beyond the coarsest native resolution.
func New(extent orb.Bound, width, height float64, native []float64) *View {
	if len(native) == 0 {
		native = Overviews(extent, 256)
	}
	res := append([]float64(nil), native...)
	sort.Sort(sort.Reverse(sort.Float64Slice(res)))

	v := &View{
		Extent:      extent,
		Width:       width,
		Height:      height,
		Resolutions: ExpandResolutions(res, 1, 7),
	}
	v.Reset()
	return v
}

// Reset centers on the extent at the default resolution.
func (v *View) Reset() {
	v.Center = v.Extent.Center()
	v.Resolution = v.clampResolution(DefaultResolution(v.Extent, v.Width, v.Height))
}

// SetViewport updates the viewport size in pixels.
func (v *View) SetViewport(width, height float64) {
	if width > 0 {
		v.Width = width
	}
	if height > 0 {
		v.Height = height
	}
}

// SetAnchor pins the zoom anchor; nil releases it.
func (v *View) SetAnchor(anchor *orb.Point) {
	if anchor == nil {
		v.Anchor = nil
		return
	}
	a := *anchor
	v.Anchor = &a
}

// CenterOn moves the center, constrained to the extent.
func (v *View) CenterOn(p orb.Point) {
	v.Center = v.constrain(p)
}

// SetResolution sets the resolution, clamped to the zoom levels.
func (v *View) SetResolution(r float64) {
	v.Resolution = v.clampResolution(r)
}

// Fit centers on b with a resolution that shows it whole inside the
// viewport minus padding on every side.
func (v *View) Fit(b orb.Bound, padding float64) {
	w := v.Width - 2*padding
	h := v.Height - 2*padding
	if w <= 0 {
		w = v.Width
	}
	if h <= 0 {
		h = v.Height
	}

	bw := b.Max[0] - b.Min[0]
	bh := b.Max[1] - b.Min[1]
	r := math.Max(bw/w, bh/h)
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		r = v.Resolution
	}

	v.SetResolution(r)
	v.CenterOn(b.Center())
}

// MouseWheel zooms one level in (deltaY < 0) or out (deltaY > 0), keeping the
// anchor stationary if one is pinned and the pointer otherwise.
func (v *View) MouseWheel(deltaY float64, pointer orb.Point) {
	switch {
	case deltaY > 0:
		v.zoomBy(-1, pointer)
	case deltaY < 0:
		v.zoomBy(1, pointer)
	}
}

// DoubleClick zooms one level in, or out when zoomOut is set (shift held).
func (v *View) DoubleClick(pointer orb.Point, zoomOut bool) {
	if zoomOut {
		v.zoomBy(-1, pointer)
		return
	}
	v.zoomBy(1, pointer)
}

// Visible is the map area currently on screen.
func (v *View) Visible() orb.Bound {
	hw := v.Width * v.Resolution / 2
	hh := v.Height * v.Resolution / 2
	return orb.Bound{
		Min: orb.Point{v.Center[0] - hw, v.Center[1] - hh},
		Max: orb.Point{v.Center[0] + hw, v.Center[1] + hh},
	}
}

// Level is the index of the zoom level closest to the current resolution.
func (v *View) Level() int {
	best, bestDiff := 0, math.Inf(1)
	for i, r := range v.Resolutions {
		if d := math.Abs(math.Log2(r) - math.Log2(v.Resolution)); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// zoomBy moves delta levels (positive zooms in) around the anchor or pointer.
func (v *View) zoomBy(delta int, pointer orb.Point) {
	if len(v.Resolutions) == 0 {
		return
	}

	level := v.Level() + delta
	if level < 0 {
		level = 0
	}
	if level >= len(v.Resolutions) {
		level = len(v.Resolutions) - 1
	}

	old := v.Resolution
	next := v.Resolutions[level]
	if next == old {
		return
	}

	fixed := pointer
	if v.Anchor != nil {
		fixed = *v.Anchor
	}

	scale := next / old
	v.Resolution = next
	v.Center = v.constrain(orb.Point{
		fixed[0] + (v.Center[0]-fixed[0])*scale,
		fixed[1] + (v.Center[1]-fixed[1])*scale,
	})
}

func (v *View) clampResolution(r float64) float64 {
	if len(v.Resolutions) == 0 {
		return r
	}
	maxRes := v.Resolutions[0]
	minRes := v.Resolutions[len(v.Resolutions)-1]
	return math.Min(maxRes, math.Max(minRes, r))
}

// constrain keeps only the center inside the extent.
func (v *View) constrain(p orb.Point) orb.Point {
	if v.Extent.IsZero() {
		return p
	}
	return orb.Point{
		math.Min(v.Extent.Max[0], math.Max(v.Extent.Min[0], p[0])),
		math.Min(v.Extent.Max[1], math.Max(v.Extent.Min[1], p[1])),
	}
}
