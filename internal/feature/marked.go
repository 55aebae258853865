package feature

import "github.com/paulmach/orb"

// Marked wraps a feature under review with the geometry it had when the
// session started and whether it has received a terminal decision.
type Marked struct {
	Feature             *Feature
	OriginalCoordinates orb.Geometry
	IsComplete          bool
}

// NewMarked captures a deep copy of the feature's geometry.
func NewMarked(f *Feature) *Marked {
	return &Marked{
		Feature:             f,
		OriginalCoordinates: orb.Clone(f.Geometry),
	}
}

// MarkAll wraps features in load order.
func MarkAll(fs []*Feature) []*Marked {
	out := make([]*Marked, len(fs))
	for i, f := range fs {
		out[i] = NewMarked(f)
	}
	return out
}

// AtOriginalPosition reports whether the geometry still matches the copy
// taken at session start.
func (m *Marked) AtOriginalPosition() bool {
	return orb.Equal(m.OriginalCoordinates, m.Feature.Geometry)
}

// ResetPosition restores the original geometry.
func (m *Marked) ResetPosition() {
	m.Feature.Geometry = orb.Clone(m.OriginalCoordinates)
	m.Feature.BBox = m.Feature.Geometry.Bound()
}
