package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/db"
	"github.com/joeblew999/plat-polymer/internal/feature"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(db.Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	s, err := New(context.Background(), conn, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func pointFeature(id, legend, label string, x, y float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{x, y})
	f.Properties["feature_id"] = id
	f.Properties["legend_id"] = legend
	if label != "" {
		f.Properties["label"] = label
	}
	return f
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	extracted := geojson.NewFeatureCollection()
	extracted.Append(pointFeature("p2", "b", "strike_dip", 30, 40))
	extracted.Append(pointFeature("p1", "a", "", 10, 20))
	extracted.Append(pointFeature("p3", "b", "strike_dip", 50, 60))

	runs := []struct {
		system, version string
		fc              *geojson.FeatureCollection
	}{
		{"uncharted", "0.1.0", extracted},
		{backend.Polymer, "1.0.0", geojson.NewFeatureCollection().Append(pointFeature("r1", "L1", "Mine Shaft", 12, 22))},
		{backend.Polymer, "2.0.0", geojson.NewFeatureCollection().Append(pointFeature("r2", "L1", "Mine Shaft", 14, 24))},
	}
	for _, r := range runs {
		req := ImportRequest{CogID: "cog1", FType: feature.Point, System: r.system, Version: r.version}
		if _, err := s.ImportGeoJSON(ctx, req, r.fc); err != nil {
			t.Fatalf("import %s %s: %v", r.system, r.version, err)
		}
	}
}

func TestImportRejectsWrongGeometry(t *testing.T) {
	s := newTestStore(t)

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}))
	req := ImportRequest{CogID: "cog1", FType: feature.Point, System: "x", Version: "1"}
	if _, err := s.ImportGeoJSON(context.Background(), req, fc); err == nil {
		t.Fatal("expected error")
	}

	fc = geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))
	if _, err := s.ImportGeoJSON(context.Background(), req, fc); !errors.Is(err, feature.ErrUnsupportedGeometry) {
		t.Fatalf("err = %v", err)
	}
}

func TestViewFeatures(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	l, err := s.ViewFeatures(context.Background(), backend.FeaturesRequest{
		CogID: "cog1", FType: feature.Point, System: "uncharted", Version: "0.1.0",
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(l.Groups) != 2 || l.Groups[0].LegendID != "a" || l.Groups[1].LegendID != "b" {
		t.Fatalf("groups = %+v", l.Groups)
	}
	if l.Groups[0].Name != "Unknown" || l.Groups[1].Name != "Strike Dip" {
		t.Errorf("names = %q %q", l.Groups[0].Name, l.Groups[1].Name)
	}
	b := l.Features["b"]
	if len(b) != 2 || b[0].FeatureID != "p2" || b[1].FeatureID != "p3" {
		t.Fatalf("group b = %+v", b)
	}
	if len(b[0].BBox) != 4 || b[0].BBox[0] != 30 {
		t.Errorf("bbox = %v", b[0].BBox)
	}

	groups, err := feature.FromRaw(l.Features)
	if err != nil {
		t.Fatal(err)
	}
	if groups.Len() != 3 {
		t.Errorf("normalized %d features", groups.Len())
	}
}

func TestSystems(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	sys, err := s.Systems(context.Background(), "cog1", feature.Point)
	if err != nil {
		t.Fatal(err)
	}
	if got := sys["polymer"]; len(got) != 2 || got[0] != "2.0.0" {
		t.Errorf("polymer versions = %v", got)
	}
	if _, ok := sys["uncharted"]; !ok {
		t.Errorf("systems = %v", sys)
	}
}

func TestValidateAndPublish(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	l, err := s.ValidateFeatures(ctx, backend.FeaturesRequest{
		CogID: "cog1", FType: feature.Point, System: "uncharted", Version: "0.1.0",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(l.LegendItems) != 1 || l.LegendItems[0].LegendID != "L1" {
		t.Fatalf("legend items = %+v", l.LegendItems)
	}
	if pf := l.PolymerFeatures["L1"]; len(pf) != 1 || pf[0].FeatureID != "r2" {
		t.Fatalf("polymer features come from the latest version: %+v", pf)
	}

	g := geojson.NewGeometry(orb.Point{11, 21})
	err = s.Publish(ctx, backend.PublishRequest{CogID: "cog1", Geometry: g, FeatureID: "p1", LegendID: "L1"})
	if err != nil {
		t.Fatal(err)
	}

	id, _ := PublishID("cog1", "2.0.0", g)
	if !strings.HasPrefix(id, "cog1_polymer_2.0.0_") || len(id) != len("cog1_polymer_2.0.0_")+64 {
		t.Errorf("publish id = %s", id)
	}

	var ref string
	var validated bool
	err = s.DB().QueryRowContext(ctx,
		`SELECT reference_id, is_validated FROM features WHERE feature_id = ?`, id).Scan(&ref, &validated)
	if err != nil || ref != "p1" || !validated {
		t.Errorf("published row: ref=%s validated=%v err=%v", ref, validated, err)
	}

	err = s.Publish(ctx, backend.PublishRequest{CogID: "cog1", Geometry: g, FeatureID: "p1", LegendID: "nope"})
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("unknown legend: %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	req := backend.FeaturesRequest{CogID: "cog1", FType: feature.Point, System: "uncharted", Version: "0.1.0"}

	bad := false
	if err := s.UpdateStatus(ctx, backend.UpdateStatusRequest{FeatureID: "p1", FType: feature.Point, IsValidated: &bad}); err != nil {
		t.Fatal(err)
	}
	l, _ := s.ViewFeatures(ctx, req)
	if v := l.Features["a"][0].IsValidated; v == nil || *v {
		t.Fatalf("is_validated = %v", v)
	}

	if err := s.UpdateStatus(ctx, backend.UpdateStatusRequest{FeatureID: "p1", FType: feature.Point}); err != nil {
		t.Fatal(err)
	}
	l, _ = s.ViewFeatures(ctx, req)
	if v := l.Features["a"][0].IsValidated; v != nil {
		t.Errorf("unset left %v", *v)
	}

	err := s.UpdateStatus(ctx, backend.UpdateStatusRequest{FeatureID: "missing", FType: feature.Point})
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("missing feature: %v", err)
	}
}

func TestTables(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	tables, err := s.Tables(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int64{}
	for _, tb := range tables {
		counts[tb.Name] = tb.Rows
	}
	if counts["features"] != 5 || counts["legend_items"] != 4 {
		t.Errorf("counts = %v", counts)
	}
}
