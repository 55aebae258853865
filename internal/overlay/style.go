package overlay

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-polymer/internal/color"
	"github.com/joeblew999/plat-polymer/internal/feature"
)

// Symbol is one drawing pass. A point symbol has a radius; a line symbol is
// a stroke only.
type Symbol struct {
	Radius      float64   `json:"radius,omitempty"`
	Fill        string    `json:"fill,omitempty"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	LineDash    []float64 `json:"lineDash,omitempty"`
}

// Style is a stack of symbols drawn first to last.
type Style []Symbol

// Dimensions are the base sizes of a feature type.
type Dimensions struct {
	Width  float64
	Border float64
	Alpha  float64
}

var (
	PointStyle = Dimensions{Width: 10, Border: 1, Alpha: 0.85}
	LineStyle  = Dimensions{Width: 5, Border: 2, Alpha: 1}
)

// DimensionsFor returns the base sizes of a feature type.
func DimensionsFor(ftype feature.FType) Dimensions {
	if ftype == feature.Line {
		return LineStyle
	}
	return PointStyle
}

// MarkOptions style a feature by its validation state.
type MarkOptions struct {
	Dimensions
	IsValidated *bool
	Bold        bool
	LineDash    []float64
}

// groupPointStyle is the shared style of a point layer in view mode.
func groupPointStyle(legendID string) Style {
	hsl := color.LegendColor(legendID)
	d := PointStyle
	return Style{{
		Radius:      d.Width / 2,
		Fill:        hsl.Alpha(d.Alpha),
		Stroke:      color.Outer(hsl),
		StrokeWidth: d.Border,
	}}
}

// groupLineStyle is the per-feature style of a line in view mode: an outline
// stroke under a narrower coloured stroke.
func groupLineStyle(legendID string, lineDash []float64) Style {
	hsl := color.LegendColor(legendID)
	d := LineStyle
	return Style{
		{Stroke: color.Outer(hsl), StrokeWidth: d.Width, LineDash: lineDash},
		{Stroke: hsl.Alpha(d.Alpha), StrokeWidth: d.Width - d.Border, LineDash: lineDash},
	}
}

// markedStyle colours a feature by validation state. Bold features get
// bigger symbols and a halo in the opposite outline colour.
func markedStyle(g orb.Geometry, opts MarkOptions) (Style, error) {
	hsl := color.ValidationColor(opts.IsValidated)
	fill := hsl.Alpha(opts.Alpha)
	outer := color.Outer(hsl)
	halo := color.Opposite(outer)

	scale := func(bold float64) float64 {
		if opts.Bold {
			return bold
		}
		return 1
	}

	switch g.(type) {
	case orb.Point:
		radius := opts.Width / 2 * scale(1.5)
		return Style{
			{Radius: radius, Fill: fill, Stroke: halo, StrokeWidth: opts.Border * scale(4)},
			{Radius: radius, Fill: fill, Stroke: outer, StrokeWidth: opts.Border * scale(2)},
		}, nil
	case orb.LineString:
		return Style{
			{Stroke: halo, StrokeWidth: opts.Width * scale(2), LineDash: opts.LineDash},
			{Stroke: outer, StrokeWidth: opts.Width * scale(1.5), LineDash: opts.LineDash},
			{Stroke: fill, StrokeWidth: (opts.Width - opts.Border) * scale(1.5), LineDash: opts.LineDash},
		}, nil
	}
	return nil, feature.ErrUnsupportedGeometry
}
