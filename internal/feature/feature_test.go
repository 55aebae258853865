package feature

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
)

const rawListing = `{
	"b": [
		{"feature_id": "p2", "legend_id": "b", "name": "Sample Site",
		 "geometry": {"type": "Point", "coordinates": [3, 4]}, "bbox": [3, 4, 3, 4], "is_validated": true}
	],
	"a": [
		{"feature_id": "l1", "legend_id": "a", "name": "Fault Line",
		 "geometry": {"type": "LineString", "coordinates": [[0, 0], [10, 5]]}, "is_validated": null,
		 "dash_pattern": "dash"}
	]
}`

func TestFromRawOrdersByLegend(t *testing.T) {
	var raw map[string][]RawFeature
	if err := json.Unmarshal([]byte(rawListing), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	groups, err := FromRaw(raw)
	if err != nil {
		t.Fatalf("FromRaw: %v", err)
	}

	if got := groups.LegendIDs(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("legend order = %v", got)
	}
	if groups.Len() != 2 {
		t.Errorf("Len() = %d", groups.Len())
	}

	line := groups[0].Features[0]
	if !line.IsLine() {
		t.Fatal("expected a line")
	}
	if line.IsValidated != nil {
		t.Error("null is_validated should stay unset")
	}
	if line.DashPattern != Dash {
		t.Errorf("dash pattern = %q", line.DashPattern)
	}
	if line.BBox != (orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 5}}) {
		t.Errorf("derived bbox = %v", line.BBox)
	}
	if line.Anchor() != (orb.Point{5, 2.5}) {
		t.Errorf("line anchor = %v", line.Anchor())
	}

	point := groups[1].Features[0]
	if point.IsValidated == nil || !*point.IsValidated {
		t.Error("is_validated true was lost")
	}
	if groups[1].Name != "Sample Site" {
		t.Errorf("group name = %q", groups[1].Name)
	}
}

func TestNormalizeRejectsPolygon(t *testing.T) {
	data := `{"feature_id": "x", "legend_id": "a",
		"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}}`

	var r RawFeature
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, err := r.Normalize(); err == nil {
		t.Fatal("expected error for polygon")
	}
}

func TestMarkedResetPosition(t *testing.T) {
	f := &Feature{FeatureID: "p", Geometry: orb.Point{10, 20}}
	m := NewMarked(f)

	if err := f.SetPoint(orb.Point{15, 25}); err != nil {
		t.Fatalf("SetPoint: %v", err)
	}
	if m.AtOriginalPosition() {
		t.Fatal("moved feature reports original position")
	}
	if m.OriginalCoordinates.(orb.Point) != (orb.Point{10, 20}) {
		t.Fatalf("original coordinates changed: %v", m.OriginalCoordinates)
	}

	m.ResetPosition()
	if !m.AtOriginalPosition() {
		t.Fatal("reset did not restore position")
	}
	if f.Geometry.(orb.Point) != (orb.Point{10, 20}) {
		t.Fatalf("geometry = %v", f.Geometry)
	}
}

func TestSetPointOnLine(t *testing.T) {
	f := &Feature{FeatureID: "l", Geometry: orb.LineString{{0, 0}, {1, 1}}}
	if err := f.SetPoint(orb.Point{1, 1}); err == nil {
		t.Fatal("expected error moving a line as a point")
	}
}

func TestRawRoundTripKeepsKind(t *testing.T) {
	yes := true
	f := &Feature{FeatureID: "p", LegendID: "a", Geometry: orb.Point{1, 2}, BBox: orb.Point{1, 2}.Bound(), IsValidated: &yes}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Feature
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.IsPoint() || back.FeatureID != "p" || back.IsValidated == nil || !*back.IsValidated {
		t.Fatalf("round trip = %+v", back)
	}
}
