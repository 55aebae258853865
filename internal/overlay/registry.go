// Package overlay materialises feature groups as vector overlay layers, one
// layer per legend group, and styles features by legend colour or validation
// state. Layers are kept in an explicit legend-ID registry.
package overlay

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-polymer/internal/feature"
)

// Item is one feature drawn on a layer. A nil Style falls back to the
// layer's style.
type Item struct {
	FeatureID string       `json:"featureID"`
	Geometry  orb.Geometry `json:"-"`
	Style     Style        `json:"style,omitempty"`
}

// Layer is the overlay of one legend group.
type Layer struct {
	LegendID string `json:"legendID"`
	Visible  bool   `json:"visible"`
	Style    Style  `json:"style,omitempty"`

	items []*Item
	byID  map[string]*Item
}

// Items returns the layer's features in insertion order.
func (l *Layer) Items() []*Item { return l.items }

// Len is the number of features on the layer.
func (l *Layer) Len() int { return len(l.items) }

func (l *Layer) add(item *Item) {
	if _, ok := l.byID[item.FeatureID]; ok {
		for i, old := range l.items {
			if old.FeatureID == item.FeatureID {
				l.items[i] = item
			}
		}
	} else {
		l.items = append(l.items, item)
	}
	l.byID[item.FeatureID] = item
}

// Visibility is the tri-state of the master group toggle.
type Visibility string

const (
	AllVisible  Visibility = "all"
	SomeVisible Visibility = "some"
	NoneVisible Visibility = "none"
)

// Registry holds the overlay layers of one map, in the order they were added.
type Registry struct {
	layers map[string]*Layer
	order  []string

	rasterVisible  bool
	vectorsVisible bool

	idx index
}

// NewRegistry returns an empty registry with the raster and overlays shown.
func NewRegistry() *Registry {
	return &Registry{
		layers:         make(map[string]*Layer),
		rasterVisible:  true,
		vectorsVisible: true,
	}
}

// AddFeatures adds one layer per group, or extends an existing layer with the
// same legend ID. In validate mode every feature is coloured by its
// validation state; otherwise by its legend colour. Types other than point
// and line are drawn as bounding boxes.
func (r *Registry) AddFeatures(validate bool, ftype feature.FType, groups feature.Groups) error {
	for _, g := range groups {
		var err error
		switch ftype {
		case feature.Line:
			err = r.addLines(validate, g)
		case feature.Point:
			err = r.addPoints(validate, g)
		default:
			r.addBBoxes(g)
		}
		if err != nil {
			return fmt.Errorf("add %s layer %s: %w", ftype, g.LegendID, err)
		}
	}
	r.idx.invalidate()
	return nil
}

func (r *Registry) layer(legendID string) *Layer {
	if l, ok := r.layers[legendID]; ok {
		return l
	}
	l := &Layer{LegendID: legendID, Visible: true, byID: make(map[string]*Item)}
	r.layers[legendID] = l
	r.order = append(r.order, legendID)
	return l
}

func (r *Registry) addPoints(validate bool, g feature.Group) error {
	layer := r.layer(g.LegendID)
	if layer.Style == nil {
		layer.Style = groupPointStyle(g.LegendID)
	}

	for _, f := range g.Features {
		item := &Item{FeatureID: f.FeatureID, Geometry: orb.Clone(f.Geometry)}
		if validate {
			style, err := markedStyle(item.Geometry, MarkOptions{
				Dimensions:  PointStyle,
				IsValidated: f.IsValidated,
			})
			if err != nil {
				return err
			}
			item.Style = style
		}
		layer.add(item)
	}
	return nil
}

func (r *Registry) addLines(validate bool, g feature.Group) error {
	layer := r.layer(g.LegendID)

	for _, f := range g.Features {
		item := &Item{FeatureID: f.FeatureID, Geometry: orb.Clone(f.Geometry)}
		dash := f.DashPattern.LineDash()
		if validate {
			style, err := markedStyle(item.Geometry, MarkOptions{
				Dimensions:  LineStyle,
				IsValidated: f.IsValidated,
				LineDash:    dash,
			})
			if err != nil {
				return err
			}
			item.Style = style
		} else {
			item.Style = groupLineStyle(g.LegendID, dash)
		}
		layer.add(item)
	}
	return nil
}

func (r *Registry) addBBoxes(g feature.Group) {
	layer := r.layer(g.LegendID)
	for _, f := range g.Features {
		layer.add(&Item{FeatureID: f.FeatureID, Geometry: f.BBox.ToPolygon()})
	}
}

// RemoveAll drops every layer.
func (r *Registry) RemoveAll() {
	r.layers = make(map[string]*Layer)
	r.order = nil
	r.idx.invalidate()
}

// Layer returns the layer of a legend group.
func (r *Registry) Layer(legendID string) (*Layer, bool) {
	l, ok := r.layers[legendID]
	return l, ok
}

// Layers returns all layers in draw order.
func (r *Registry) Layers() []*Layer {
	out := make([]*Layer, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.layers[id])
	}
	return out
}

func (r *Registry) position(legendID string) int {
	for i, id := range r.order {
		if id == legendID {
			return i
		}
	}
	return -1
}

// Feature looks up a drawn feature.
func (r *Registry) Feature(legendID, featureID string) (*Item, error) {
	if l, ok := r.layers[legendID]; ok {
		if item, ok := l.byID[featureID]; ok {
			return item, nil
		}
	}
	return nil, fmt.Errorf("feature not found for feature ID: %s", featureID)
}

// SetGeometry replaces a drawn feature's geometry.
func (r *Registry) SetGeometry(legendID, featureID string, g orb.Geometry) error {
	item, err := r.Feature(legendID, featureID)
	if err != nil {
		return err
	}
	item.Geometry = orb.Clone(g)
	r.idx.invalidate()
	return nil
}

// SetMarked styles a feature by its validation state.
func (r *Registry) SetMarked(legendID, featureID string, opts MarkOptions) error {
	item, err := r.Feature(legendID, featureID)
	if err != nil {
		return err
	}
	style, err := markedStyle(item.Geometry, opts)
	if err != nil {
		return fmt.Errorf("style feature %s: %w", featureID, err)
	}
	item.Style = style
	return nil
}

// SetBold toggles the focus styling of the feature under review.
func (r *Registry) SetBold(f *feature.Feature, bold bool) error {
	ftype, err := f.Kind()
	if err != nil {
		return err
	}
	return r.SetMarked(f.LegendID, f.FeatureID, MarkOptions{
		Dimensions:  DimensionsFor(ftype),
		IsValidated: f.IsValidated,
		Bold:        bold,
		LineDash:    f.DashPattern.LineDash(),
	})
}

// SetVisible shows or hides one group's layer.
func (r *Registry) SetVisible(legendID string, visible bool) bool {
	l, ok := r.layers[legendID]
	if ok {
		l.Visible = visible
	}
	return ok
}

// SetAllVisible shows or hides every group's layer.
func (r *Registry) SetAllVisible(visible bool) {
	for _, l := range r.layers {
		l.Visible = visible
	}
}

// Master reports whether all, some or none of the group layers are shown.
func (r *Registry) Master() Visibility {
	shown := 0
	for _, l := range r.layers {
		if l.Visible {
			shown++
		}
	}
	switch {
	case len(r.layers) > 0 && shown == len(r.layers):
		return AllVisible
	case shown == 0:
		return NoneVisible
	}
	return SomeVisible
}

// SetRasterVisible is the hold-to-hide toggle of the map image.
func (r *Registry) SetRasterVisible(visible bool) { r.rasterVisible = visible }

// RasterVisible reports whether the map image is shown.
func (r *Registry) RasterVisible() bool { return r.rasterVisible }

// SetVectorsVisible is the hold-to-hide toggle of all overlays. It does not
// change the per-group toggles.
func (r *Registry) SetVectorsVisible(visible bool) { r.vectorsVisible = visible }

// VectorsVisible reports whether overlays are shown.
func (r *Registry) VectorsVisible() bool { return r.vectorsVisible }

// FeatureCollection exports what is on screen as GeoJSON. Each feature
// carries its legend ID, feature ID and resolved style.
func (r *Registry) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if !r.vectorsVisible {
		return fc
	}

	for _, id := range r.order {
		layer := r.layers[id]
		if !layer.Visible {
			continue
		}
		for _, item := range layer.items {
			f := geojson.NewFeature(item.Geometry)
			f.ID = item.FeatureID
			f.Properties["legendID"] = layer.LegendID
			f.Properties["featureID"] = item.FeatureID
			style := item.Style
			if style == nil {
				style = layer.Style
			}
			f.Properties["style"] = style
			fc.Append(f)
		}
	}
	return fc
}
