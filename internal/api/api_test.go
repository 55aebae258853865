package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/db"
	"github.com/joeblew999/plat-polymer/internal/review"
	"github.com/joeblew999/plat-polymer/internal/service"
	"github.com/joeblew999/plat-polymer/internal/store"
)

const pointsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [10, 20]},
     "properties": {"feature_id": "p1", "legend_id": "sd", "label": "strike_dip"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [30, 40]},
     "properties": {"feature_id": "p2", "legend_id": "sd", "label": "strike_dip"}}
  ]
}`

type fixture struct {
	api      humatest.TestAPI
	svc      *Services
	sessions *review.MemoryStore
}

func setup(t *testing.T, local bool) *fixture {
	t.Helper()
	dataDir := t.TempDir()

	svc := &Services{
		Source: service.NewSourceService(dataDir),
		Cog:    service.NewCogService(dataDir),
		Bus:    service.NewEventBus(),
	}
	sessions := review.NewMemoryStore(nil, nil)
	svc.Sessions = sessions

	if local {
		conn, err := db.Open(db.Config{})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { conn.Close() })
		st, err := store.New(context.Background(), conn, nil)
		if err != nil {
			t.Fatal(err)
		}
		svc.Store = st
		svc.Backend = st
	}

	_, api := humatest.New(t)
	huma.AutoRegister(api, NewAPIHandler(svc, nil))
	return &fixture{api: api, svc: svc, sessions: sessions}
}

func (f *fixture) writeSource(t *testing.T, name, body string) {
	t.Helper()
	dir := f.svc.Source.SourcesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) importPoints(t *testing.T) {
	t.Helper()
	f.writeSource(t, "points.geojson", pointsGeoJSON)
	resp := f.api.Post("/api/v1/sources/points.geojson/import", map[string]any{
		"cog_id":  "cog1",
		"ftype":   "point",
		"system":  "uncharted",
		"version": "0.1.0",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("import: status = %d: %s", resp.Code, resp.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := setup(t, false)

	resp := f.api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var body HealthBody
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Version != Version {
		t.Errorf("body = %+v", body)
	}
}

func TestInfoReportsBackend(t *testing.T) {
	for _, local := range []bool{false, true} {
		f := setup(t, local)
		resp := f.api.Get("/api/v1/info")
		var body InfoBody
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.DB != local {
			t.Errorf("local=%v: db = %v", local, body.DB)
		}
	}
}

func TestImportAndList(t *testing.T) {
	f := setup(t, true)

	sub := f.svc.Bus.Subscribe()
	defer f.svc.Bus.Unsubscribe(sub)

	f.importPoints(t)

	select {
	case ev := <-sub:
		if ev.Resource != "features" || ev.ID != "cog1" {
			t.Errorf("event = %+v", ev)
		}
	default:
		t.Error("import published no event")
	}

	resp := f.api.Get("/lines/systems?cog_id=cog1&ftype=point")
	if resp.Code != http.StatusOK {
		t.Fatalf("systems: status = %d: %s", resp.Code, resp.Body.String())
	}
	var systems backend.SystemsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &systems); err != nil {
		t.Fatal(err)
	}
	if v := systems.Systems["uncharted"]; len(v) != 1 || v[0] != "0.1.0" {
		t.Errorf("systems = %v", systems.Systems)
	}

	resp = f.api.Get("/lines/view-features?cog_id=cog1&ftype=point&system=uncharted&version=0.1.0")
	if resp.Code != http.StatusOK {
		t.Fatalf("view: status = %d: %s", resp.Code, resp.Body.String())
	}
	var l backend.Listing
	if err := json.Unmarshal(resp.Body.Bytes(), &l); err != nil {
		t.Fatal(err)
	}
	if len(l.Features["sd"]) != 2 {
		t.Errorf("features = %+v", l.Features)
	}

	resp = f.api.Get("/api/v1/tables")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "features") {
		t.Errorf("tables: %d %s", resp.Code, resp.Body.String())
	}
}

func TestImportErrors(t *testing.T) {
	f := setup(t, true)
	f.writeSource(t, "bad.geojson", `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}, "properties": {}}]}`)

	body := map[string]any{"cog_id": "cog1", "ftype": "point", "system": "s", "version": "1"}
	cases := []struct {
		name string
		file string
		want int
	}{
		{"missing", "nope.geojson", http.StatusNotFound},
		{"hidden", ".env", http.StatusBadRequest},
		{"wrong geometry", "bad.geojson", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.api.Post("/api/v1/sources/"+tc.file+"/import", body)
			if resp.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", resp.Code, tc.want, resp.Body.String())
			}
		})
	}
}

func TestRemoteBackendHasNoStore(t *testing.T) {
	f := setup(t, false)

	if resp := f.api.Get("/api/v1/tables"); resp.Code != http.StatusServiceUnavailable {
		t.Errorf("tables: status = %d", resp.Code)
	}
	f.writeSource(t, "points.geojson", pointsGeoJSON)
	resp := f.api.Post("/api/v1/sources/points.geojson/import", map[string]any{
		"cog_id": "cog1", "ftype": "point", "system": "s", "version": "1",
	})
	if resp.Code != http.StatusServiceUnavailable {
		t.Errorf("import: status = %d", resp.Code)
	}
}

func TestUpdateStatusUnknownFeature(t *testing.T) {
	f := setup(t, true)

	resp := f.api.Post("/lines/update-status", map[string]any{
		"feature_id":   "missing",
		"ftype":        "point",
		"is_validated": true,
	})
	if resp.Code != http.StatusNotFound {
		t.Errorf("status = %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUpdateStatus(t *testing.T) {
	f := setup(t, true)
	f.importPoints(t)

	resp := f.api.Post("/lines/update-status", map[string]any{
		"feature_id":   "p1",
		"ftype":        "point",
		"is_validated": false,
	})
	if resp.Code != http.StatusNoContent {
		t.Errorf("status = %d: %s", resp.Code, resp.Body.String())
	}
}

func TestSession(t *testing.T) {
	f := setup(t, false)
	s, err := f.sessions.Create(context.Background(), "cog1")
	if err != nil {
		t.Fatal(err)
	}

	resp := f.api.Get("/api/v1/sessions/" + s.ID)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	var st SessionStatus
	if err := json.Unmarshal(resp.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.CogID != "cog1" || st.State != review.StateStart {
		t.Errorf("session = %+v", st)
	}

	resp = f.api.Get("/api/v1/sessions/" + s.ID + "/features")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"total":0`) {
		t.Errorf("features: %d %s", resp.Code, resp.Body.String())
	}

	if resp := f.api.Delete("/api/v1/sessions/" + s.ID); resp.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", resp.Code)
	}
	if resp := f.api.Get("/api/v1/sessions/" + s.ID); resp.Code != http.StatusNotFound {
		t.Errorf("after delete: status = %d", resp.Code)
	}
}

func TestSessionLinks(t *testing.T) {
	st := SessionStatus{ID: "s1", State: review.StateSkip, Buttons: review.Buttons{GoodEnabled: true}}

	rels := map[string]string{}
	for _, l := range st.Links("/api/v1/sessions/s1") {
		rels[l.Rel] = l.Href
	}
	if rels["features"] != "/api/v1/sessions/s1/features" || rels["delete"] != "/api/v1/sessions/s1" {
		t.Errorf("links = %v", rels)
	}
	for _, want := range []string{"mark-good", "misc"} {
		if _, ok := rels[want]; !ok {
			t.Errorf("missing %q link", want)
		}
	}
	if _, ok := rels["mark-bad"]; ok {
		t.Error("mark-bad offered while disabled")
	}
}

func TestPageLinks(t *testing.T) {
	items := make([]int, 25)
	p := paginate(items, 10, 10)
	if len(p.Data) != 10 || p.Total != 25 {
		t.Fatalf("page = %+v", p)
	}

	rels := map[string]string{}
	for _, l := range p.Links("/items") {
		rels[l.Rel] = l.Href
	}
	want := map[string]string{
		"first": "/items?offset=0&limit=10",
		"prev":  "/items?offset=0&limit=10",
		"next":  "/items?offset=20&limit=10",
		"last":  "/items?offset=20&limit=10",
	}
	for rel, href := range want {
		if rels[rel] != href {
			t.Errorf("%s = %q, want %q", rel, rels[rel], href)
		}
	}

	empty := paginate([]int(nil), 0, 10)
	if empty.Data == nil || len(empty.Data) != 0 {
		t.Errorf("empty data = %v", empty.Data)
	}
	for _, l := range empty.Links("/items") {
		if l.Rel == "next" || l.Rel == "prev" {
			t.Errorf("empty page links to %s", l.Rel)
		}
	}
	if tail := paginate(items, 40, 10); len(tail.Data) != 0 {
		t.Errorf("past the end = %v", tail.Data)
	}
}
