// Package feature defines the point and line features under review, their
// wire shape and the ordered legend groups they are delivered in.
package feature

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FType is the feature type of a review session.
type FType string

const (
	Point FType = "point"
	Line  FType = "line"
)

// ParseFType validates a feature type string.
func ParseFType(s string) (FType, error) {
	switch FType(s) {
	case Point, Line:
		return FType(s), nil
	}
	return "", fmt.Errorf("unknown feature type %q", s)
}

// DashPattern is the stroke pattern of a line.
type DashPattern string

const (
	Solid  DashPattern = "solid"
	Dash   DashPattern = "dash"
	Dotted DashPattern = "dotted"
)

var lineDash = map[DashPattern][]float64{
	Solid:  {},
	Dash:   {10, 10},
	Dotted: {2, 10},
}

// LineDash returns the canvas dash array for the pattern. Unknown and empty
// patterns render solid.
func (d DashPattern) LineDash() []float64 {
	if v, ok := lineDash[d]; ok {
		return v
	}
	return lineDash[Solid]
}

// Valid reports whether d is one of the known patterns.
func (d DashPattern) Valid() bool {
	_, ok := lineDash[d]
	return ok
}

// ErrUnsupportedGeometry is returned for geometries other than points and
// line strings.
var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

// Feature is a point or line extracted from a map, in map-layer (pixel)
// coordinates. The geometry kind never changes after creation.
type Feature struct {
	FeatureID   string
	LegendID    string
	Name        string
	Geometry    orb.Geometry
	BBox        orb.Bound
	IsValidated *bool
	DashPattern DashPattern
}

// Kind returns the feature type implied by the geometry.
func (f *Feature) Kind() (FType, error) {
	switch f.Geometry.(type) {
	case orb.Point:
		return Point, nil
	case orb.LineString:
		return Line, nil
	}
	return "", ErrUnsupportedGeometry
}

// IsPoint reports whether the feature is a point.
func (f *Feature) IsPoint() bool {
	_, ok := f.Geometry.(orb.Point)
	return ok
}

// IsLine reports whether the feature is a line.
func (f *Feature) IsLine() bool {
	_, ok := f.Geometry.(orb.LineString)
	return ok
}

// Anchor is the coordinate zoom gestures are pinned to while the feature is
// under review: the point itself, or the centre of a line's bounding box.
func (f *Feature) Anchor() orb.Point {
	if p, ok := f.Geometry.(orb.Point); ok {
		return p
	}
	return f.BBox.Center()
}

// SetPoint moves a point feature. It fails for any other geometry.
func (f *Feature) SetPoint(p orb.Point) error {
	if !f.IsPoint() {
		return fmt.Errorf("feature %s: %w", f.FeatureID, ErrUnsupportedGeometry)
	}
	f.Geometry = p
	f.BBox = p.Bound()
	return nil
}

// RawFeature is the wire shape returned by the features endpoints.
type RawFeature struct {
	FeatureID   string            `json:"feature_id"`
	Geometry    *geojson.Geometry `json:"geometry"`
	Name        string            `json:"name"`
	LegendID    string            `json:"legend_id"`
	BBox        []float64         `json:"bbox"`
	IsValidated *bool             `json:"is_validated"`
	DashPattern *DashPattern      `json:"dash_pattern"`
}

// Normalize converts a wire feature to the internal shape. A missing bbox is
// derived from the geometry.
func (r RawFeature) Normalize() (*Feature, error) {
	if r.Geometry == nil {
		return nil, fmt.Errorf("feature %s: missing geometry", r.FeatureID)
	}

	g := r.Geometry.Geometry()
	switch g.(type) {
	case orb.Point, orb.LineString:
	default:
		return nil, fmt.Errorf("feature %s: %w: %s", r.FeatureID, ErrUnsupportedGeometry, r.Geometry.Type)
	}

	f := &Feature{
		FeatureID:   r.FeatureID,
		LegendID:    r.LegendID,
		Name:        r.Name,
		Geometry:    orb.Clone(g),
		IsValidated: r.IsValidated,
	}

	if len(r.BBox) == 4 {
		f.BBox = orb.Bound{
			Min: orb.Point{r.BBox[0], r.BBox[1]},
			Max: orb.Point{r.BBox[2], r.BBox[3]},
		}
	} else {
		f.BBox = g.Bound()
	}

	if r.DashPattern != nil {
		f.DashPattern = *r.DashPattern
	}

	return f, nil
}

// Raw converts a feature back to its wire shape.
func Raw(f *Feature) RawFeature {
	r := RawFeature{
		FeatureID:   f.FeatureID,
		Geometry:    geojson.NewGeometry(f.Geometry),
		Name:        f.Name,
		LegendID:    f.LegendID,
		BBox:        []float64{f.BBox.Min[0], f.BBox.Min[1], f.BBox.Max[0], f.BBox.Max[1]},
		IsValidated: f.IsValidated,
	}
	if f.DashPattern != "" {
		d := f.DashPattern
		r.DashPattern = &d
	}
	return r
}

// MarshalJSON encodes the feature in its wire shape.
func (f *Feature) MarshalJSON() ([]byte, error) {
	return json.Marshal(Raw(f))
}

// UnmarshalJSON decodes the wire shape.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var r RawFeature
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	n, err := r.Normalize()
	if err != nil {
		return err
	}
	*f = *n
	return nil
}

// Group is one legend group: its features in review order.
type Group struct {
	LegendID string
	Name     string
	Features []*Feature
}

// Groups is the ordered legend-ID to features mapping, sorted by legend ID.
type Groups []Group

// FromRaw normalizes raw features grouped by legend ID.
func FromRaw(raw map[string][]RawFeature) (Groups, error) {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	groups := make(Groups, 0, len(ids))
	for _, id := range ids {
		g := Group{LegendID: id}
		for _, r := range raw[id] {
			f, err := r.Normalize()
			if err != nil {
				return nil, err
			}
			if g.Name == "" {
				g.Name = f.Name
			}
			g.Features = append(g.Features, f)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// ToRaw converts groups back to the wire mapping.
func (gs Groups) ToRaw() map[string][]RawFeature {
	out := make(map[string][]RawFeature, len(gs))
	for _, g := range gs {
		fs := make([]RawFeature, 0, len(g.Features))
		for _, f := range g.Features {
			fs = append(fs, Raw(f))
		}
		out[g.LegendID] = fs
	}
	return out
}

// Get returns the group with the given legend ID.
func (gs Groups) Get(legendID string) (Group, bool) {
	for _, g := range gs {
		if g.LegendID == legendID {
			return g, true
		}
	}
	return Group{}, false
}

// LegendIDs lists the legend IDs in order.
func (gs Groups) LegendIDs() []string {
	ids := make([]string, len(gs))
	for i, g := range gs {
		ids[i] = g.LegendID
	}
	return ids
}

// Len is the total number of features across all groups.
func (gs Groups) Len() int {
	n := 0
	for _, g := range gs {
		n += len(g.Features)
	}
	return n
}

// Association records which extracted group is validated against which
// reference legend. Publish reads the legend.
type Association struct {
	Group  string `json:"group"`
	Legend string `json:"legend"`
}
