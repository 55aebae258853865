package pointslines

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/review"
	"github.com/joeblew999/plat-polymer/internal/service"
	"github.com/joeblew999/plat-polymer/internal/templates"
	"github.com/joeblew999/plat-polymer/web"
)

type stubBackend struct {
	published int
}

func point(id, legend string, x, y float64) feature.RawFeature {
	return feature.RawFeature{FeatureID: id, LegendID: legend, Geometry: geojson.NewGeometry(orb.Point{x, y})}
}

func (b *stubBackend) listing() *backend.Listing {
	return &backend.Listing{
		System:  "uncharted",
		Version: "0.1.0",
		Groups:  []backend.GroupInfo{{Name: "Strike Dip", LegendID: "sd"}},
		Features: map[string][]feature.RawFeature{
			"sd": {point("p1", "sd", 10, 20), point("p2", "sd", 30, 40)},
		},
		PolymerFeatures: map[string][]feature.RawFeature{"L1": {point("r1", "L1", 11, 21)}},
		LegendItems:     []backend.LegendItem{{LegendID: "L1", Label: "Strike and dip"}},
	}
}

func (b *stubBackend) Systems(ctx context.Context, cogID string, ftype feature.FType) (map[string][]string, error) {
	if ftype == feature.Line {
		return map[string][]string{}, nil
	}
	return map[string][]string{"uncharted": {"0.1.0"}}, nil
}

func (b *stubBackend) ViewFeatures(ctx context.Context, req backend.FeaturesRequest) (*backend.Listing, error) {
	return b.listing(), nil
}

func (b *stubBackend) ValidateFeatures(ctx context.Context, req backend.FeaturesRequest) (*backend.Listing, error) {
	return b.listing(), nil
}

func (b *stubBackend) Publish(ctx context.Context, req backend.PublishRequest) error {
	b.published++
	return nil
}

func (b *stubBackend) UpdateStatus(ctx context.Context, req backend.UpdateStatusRequest) error {
	return nil
}

type fixture struct {
	api      humatest.TestAPI
	mux      *http.ServeMux
	sessions *review.MemoryStore
	backend  *stubBackend
}

func setup(t *testing.T) *fixture {
	t.Helper()

	renderer, err := templates.New(web.FS)
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("test", "1.0.0"))

	sb := &stubBackend{}
	sessions := review.NewMemoryStore(nil, nil)
	bus := service.NewEventBus()
	ctrl := review.NewController(sb, sessions, bus, review.DefaultConfig(), nil)

	h := NewHandler(ctrl, sessions, bus, service.NewCogService(t.TempDir()), renderer, nil)
	h.RegisterRoutes(api)
	mux.HandleFunc("GET /points-lines/{cog_id}", h.Page)

	return &fixture{api: humatest.Wrap(t, api), mux: mux, sessions: sessions, backend: sb}
}

func (f *fixture) session(t *testing.T) *review.Session {
	t.Helper()
	s, err := f.sessions.Create(context.Background(), "cog1")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPage(t *testing.T) {
	f := setup(t)

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/points-lines/cog1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"sessionid", "point__uncharted__0.1.0", "keys", "session-form"} {
		if !strings.Contains(body, want) {
			t.Errorf("page is missing %q", want)
		}
	}
}

func TestSubmitSessionView(t *testing.T) {
	f := setup(t)
	s := f.session(t)

	resp := f.api.Post(BasePath+"/session", map[string]any{
		"sessionid": s.ID,
		"mode":      "view",
		"system":    "point__uncharted__0.1.0",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}

	body := resp.Body.String()
	for _, want := range []string{"datastar-patch-signals", "selector #groups", "Strike Dip", "_overlays"} {
		if !strings.Contains(body, want) {
			t.Errorf("response is missing %q", want)
		}
	}
	if s.Mode != review.ModeView {
		t.Errorf("mode = %q", s.Mode)
	}
}

func TestSubmitSessionInvalidForm(t *testing.T) {
	f := setup(t)
	s := f.session(t)

	resp := f.api.Post(BasePath+"/session", map[string]any{"sessionid": s.ID, "mode": "view"})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), review.ErrorRing) {
		t.Error("system select is not flagged")
	}
}

func TestValidateAndMark(t *testing.T) {
	f := setup(t)
	s := f.session(t)

	steps := []struct {
		path string
		body map[string]any
	}{
		{"/session", map[string]any{"mode": "validate", "system": "point__uncharted__0.1.0"}},
		{"/validate", map[string]any{"group": "sd", "legend": "L1"}},
		{"/misc", nil},
		{"/mark/good", nil},
	}
	for _, step := range steps {
		body := map[string]any{"sessionid": s.ID}
		for k, v := range step.body {
			body[k] = v
		}
		resp := f.api.Post(BasePath+step.path, body)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: status = %d: %s", step.path, resp.Code, resp.Body.String())
		}
	}

	if f.backend.published != 1 {
		t.Errorf("published %d features, want 1", f.backend.published)
	}
	if s.Progress.Value != 1 || s.Progress.Max != 2 {
		t.Errorf("progress = %+v", s.Progress)
	}
}

func TestMarkRejectsUnknownType(t *testing.T) {
	f := setup(t)
	s := f.session(t)

	resp := f.api.Post(BasePath+"/mark/maybe", map[string]any{"sessionid": s.ID})
	if resp.Code < 400 {
		t.Errorf("status = %d, want a client error", resp.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	f := setup(t)

	resp := f.api.Post(BasePath+"/misc", map[string]any{"sessionid": "gone"})
	if resp.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.Code)
	}
}
