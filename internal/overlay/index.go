package overlay

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/rtree"
)

// hit identifies one indexed overlay feature.
type hit struct {
	legendID  string
	featureID string
}

// index is a spatial index over overlay feature bounds. It is rebuilt from
// scratch whenever geometry changes; review sessions hold at most a few
// thousand features.
type index struct {
	tree  *rtree.RTreeG[hit]
	dirty bool
}

func (x *index) invalidate() { x.dirty = true }

func (x *index) rebuild(r *Registry) {
	x.tree = &rtree.RTreeG[hit]{}
	for _, id := range r.order {
		layer := r.layers[id]
		for _, item := range layer.items {
			b := item.Geometry.Bound()
			x.tree.Insert(b.Min, b.Max, hit{legendID: id, featureID: item.FeatureID})
		}
	}
	x.dirty = false
}

// FeatureAt returns the visible feature nearest to p within tolerance map
// units. Later layers win ties, matching draw order. A non-nil accept limits
// the candidates, so a grabbable feature is found under one that is not.
func (r *Registry) FeatureAt(p orb.Point, tolerance float64, accept func(legendID, featureID string) bool) (legendID, featureID string, ok bool) {
	if !r.vectorsVisible {
		return "", "", false
	}
	if r.idx.tree == nil || r.idx.dirty {
		r.idx.rebuild(r)
	}

	best := math.Inf(1)
	r.idx.tree.Search(
		[2]float64{p[0] - tolerance, p[1] - tolerance},
		[2]float64{p[0] + tolerance, p[1] + tolerance},
		func(min, max [2]float64, h hit) bool {
			layer := r.layers[h.legendID]
			if layer == nil || !layer.Visible {
				return true
			}
			if accept != nil && !accept(h.legendID, h.featureID) {
				return true
			}
			item := layer.byID[h.featureID]
			if item == nil {
				return true
			}
			d := planar.DistanceFrom(item.Geometry, p)
			if d <= tolerance && (d < best || (d == best && r.position(h.legendID) > r.position(legendID))) {
				best = d
				legendID, featureID, ok = h.legendID, h.featureID, true
			}
			return true
		},
	)
	return legendID, featureID, ok
}
