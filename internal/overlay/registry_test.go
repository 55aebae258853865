package overlay

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-polymer/internal/color"
	"github.com/joeblew999/plat-polymer/internal/feature"
)

func pointGroup(legendID string, pts ...orb.Point) feature.Group {
	g := feature.Group{LegendID: legendID}
	for i, p := range pts {
		g.Features = append(g.Features, &feature.Feature{
			FeatureID: legendID + "-" + string(rune('a'+i)),
			LegendID:  legendID,
			Geometry:  p,
			BBox:      p.Bound(),
		})
	}
	return g
}

func TestViewModeTwoPointsOneLayer(t *testing.T) {
	r := NewRegistry()
	groups := feature.Groups{
		pointGroup("sample_site", orb.Point{1, 1}, orb.Point{5, 5}),
		pointGroup("fault", orb.Point{9, 9}),
	}

	if err := r.AddFeatures(false, feature.Point, groups); err != nil {
		t.Fatalf("AddFeatures: %v", err)
	}

	layer, ok := r.Layer("sample_site")
	if !ok {
		t.Fatal("layer not registered under its legend ID")
	}
	if layer.Len() != 2 {
		t.Fatalf("layer has %d features, want 2", layer.Len())
	}
	if layer.LegendID != "sample_site" {
		t.Errorf("layer tagged %q", layer.LegendID)
	}

	wantFill := color.LegendColor("sample_site").Alpha(PointStyle.Alpha)
	if len(layer.Style) != 1 || layer.Style[0].Fill != wantFill {
		t.Errorf("layer style = %+v, want fill %s", layer.Style, wantFill)
	}

	if !r.SetVisible("sample_site", false) {
		t.Fatal("SetVisible on existing layer returned false")
	}
	if layer.Visible {
		t.Error("layer still visible")
	}
	other, _ := r.Layer("fault")
	if !other.Visible {
		t.Error("other group's layer was hidden")
	}
	if r.Master() != SomeVisible {
		t.Errorf("Master() = %s", r.Master())
	}

	r.SetAllVisible(false)
	if r.Master() != NoneVisible {
		t.Errorf("Master() = %s", r.Master())
	}
	r.SetAllVisible(true)
	if r.Master() != AllVisible {
		t.Errorf("Master() = %s", r.Master())
	}
}

func TestValidateModeColoursByState(t *testing.T) {
	yes := true
	g := pointGroup("a", orb.Point{0, 0}, orb.Point{1, 1})
	g.Features[0].IsValidated = &yes

	r := NewRegistry()
	if err := r.AddFeatures(true, feature.Point, feature.Groups{g}); err != nil {
		t.Fatal(err)
	}

	good, _ := r.Feature("a", "a-a")
	unset, _ := r.Feature("a", "a-b")
	if good.Style[1].Fill != color.Valid.Alpha(PointStyle.Alpha) {
		t.Errorf("validated fill = %s", good.Style[1].Fill)
	}
	if unset.Style[1].Fill != color.Unchecked.Alpha(PointStyle.Alpha) {
		t.Errorf("unset fill = %s", unset.Style[1].Fill)
	}
}

func TestSetBoldPoint(t *testing.T) {
	g := pointGroup("a", orb.Point{0, 0})
	r := NewRegistry()
	if err := r.AddFeatures(true, feature.Point, feature.Groups{g}); err != nil {
		t.Fatal(err)
	}

	if err := r.SetBold(g.Features[0], true); err != nil {
		t.Fatal(err)
	}
	item, _ := r.Feature("a", "a-a")
	halo, body := item.Style[0], item.Style[1]
	if halo.Radius != 7.5 || halo.StrokeWidth != 4 || body.StrokeWidth != 2 {
		t.Errorf("bold style = %+v", item.Style)
	}
	if halo.Stroke != color.Opposite(body.Stroke) {
		t.Errorf("halo %s should oppose outline %s", halo.Stroke, body.Stroke)
	}

	if err := r.SetBold(g.Features[0], false); err != nil {
		t.Fatal(err)
	}
	if item.Style[0].Radius != 5 || item.Style[1].StrokeWidth != 1 {
		t.Errorf("plain style = %+v", item.Style)
	}
}

func TestLineStyles(t *testing.T) {
	line := &feature.Feature{
		FeatureID:   "l",
		LegendID:    "fault",
		Geometry:    orb.LineString{{0, 0}, {10, 0}},
		BBox:        orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 0}},
		DashPattern: feature.Dotted,
	}
	r := NewRegistry()
	if err := r.AddFeatures(false, feature.Line, feature.Groups{{LegendID: "fault", Features: []*feature.Feature{line}}}); err != nil {
		t.Fatal(err)
	}

	item, err := r.Feature("fault", "l")
	if err != nil {
		t.Fatal(err)
	}
	if len(item.Style) != 2 || item.Style[0].StrokeWidth != 5 || item.Style[1].StrokeWidth != 3 {
		t.Errorf("view line style = %+v", item.Style)
	}
	if len(item.Style[0].LineDash) != 2 || item.Style[0].LineDash[0] != 2 {
		t.Errorf("line dash = %v", item.Style[0].LineDash)
	}

	if err := r.SetBold(line, true); err != nil {
		t.Fatal(err)
	}
	if item.Style[0].StrokeWidth != 10 || item.Style[1].StrokeWidth != 7.5 || item.Style[2].StrokeWidth != 4.5 {
		t.Errorf("bold line style = %+v", item.Style)
	}
}

func TestBBoxFallback(t *testing.T) {
	f := &feature.Feature{FeatureID: "x", LegendID: "p", Geometry: orb.Point{1, 1},
		BBox: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}}
	r := NewRegistry()
	if err := r.AddFeatures(false, feature.FType("polygon"), feature.Groups{{LegendID: "p", Features: []*feature.Feature{f}}}); err != nil {
		t.Fatal(err)
	}
	item, _ := r.Feature("p", "x")
	if _, ok := item.Geometry.(orb.Polygon); !ok {
		t.Fatalf("bbox geometry = %T", item.Geometry)
	}
}

func TestFeatureNotFound(t *testing.T) {
	r := NewRegistry()
	_, err := r.Feature("a", "missing")
	if err == nil || err.Error() != "feature not found for feature ID: missing" {
		t.Fatalf("err = %v", err)
	}
}

func TestFeatureAt(t *testing.T) {
	r := NewRegistry()
	groups := feature.Groups{
		pointGroup("a", orb.Point{0, 0}, orb.Point{10, 10}),
		pointGroup("b", orb.Point{10.5, 10}),
	}
	if err := r.AddFeatures(true, feature.Point, groups); err != nil {
		t.Fatal(err)
	}

	_, id, ok := r.FeatureAt(orb.Point{10.1, 10}, 1, nil)
	if !ok || id != "a-b" {
		t.Fatalf("FeatureAt = %s, %v", id, ok)
	}

	if _, _, ok := r.FeatureAt(orb.Point{50, 50}, 1, nil); ok {
		t.Fatal("FeatureAt far away should miss")
	}

	if err := r.SetGeometry("a", "a-a", orb.Point{50, 50}); err != nil {
		t.Fatal(err)
	}
	if _, id, ok := r.FeatureAt(orb.Point{50, 50}, 1, nil); !ok || id != "a-a" {
		t.Fatalf("moved feature not found: %s %v", id, ok)
	}

	onlyA := func(legendID, _ string) bool { return legendID == "a" }
	if _, id, ok := r.FeatureAt(orb.Point{10.4, 10}, 1, onlyA); !ok || id != "a-b" {
		t.Fatalf("filtered FeatureAt = %s, %v", id, ok)
	}

	r.SetVisible("a", false)
	if _, id, _ := r.FeatureAt(orb.Point{10.1, 10}, 1, nil); id != "b-a" {
		t.Fatalf("hidden layer still hit: %s", id)
	}

	r.SetVectorsVisible(false)
	if _, _, ok := r.FeatureAt(orb.Point{10.5, 10}, 1, nil); ok {
		t.Fatal("hidden overlays should not be hit")
	}
}

func TestFeatureCollectionRespectsVisibility(t *testing.T) {
	r := NewRegistry()
	groups := feature.Groups{
		pointGroup("a", orb.Point{0, 0}, orb.Point{1, 1}),
		pointGroup("b", orb.Point{2, 2}),
	}
	if err := r.AddFeatures(false, feature.Point, groups); err != nil {
		t.Fatal(err)
	}

	if n := len(r.FeatureCollection().Features); n != 3 {
		t.Fatalf("features = %d", n)
	}

	r.SetVisible("a", false)
	fc := r.FeatureCollection()
	if len(fc.Features) != 1 || fc.Features[0].Properties["legendID"] != "b" {
		t.Fatalf("visible features = %v", fc.Features)
	}

	r.SetVectorsVisible(false)
	if n := len(r.FeatureCollection().Features); n != 0 {
		t.Fatalf("features with overlays held hidden = %d", n)
	}

	r.RemoveAll()
	if len(r.Layers()) != 0 {
		t.Fatal("RemoveAll left layers")
	}
}
