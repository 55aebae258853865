// Package pointslines contains the Datastar SSE handlers behind the points
// and lines review page. Every action loads the tab's session, runs one
// controller transition and streams back signal and fragment patches.
package pointslines

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/humastar"
	"github.com/joeblew999/plat-polymer/internal/review"
	"github.com/joeblew999/plat-polymer/internal/service"
	"github.com/joeblew999/plat-polymer/internal/templates"
)

// BasePath is the prefix of the page's action routes.
const BasePath = "/api/v1/review"

// Handler serves the review page and its actions.
type Handler struct {
	humastar.Handler
	ctrl     *review.Controller
	sessions review.Store
	bus      *service.EventBus
	cogs     *service.CogService
	log      *slog.Logger

	api      huma.API
	once     sync.Once
	pageBase humastar.PageData
}

// NewHandler creates the review page handler.
func NewHandler(ctrl *review.Controller, sessions review.Store, bus *service.EventBus, cogs *service.CogService, renderer *templates.Renderer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		ctrl:     ctrl,
		sessions: sessions,
		bus:      bus,
		cogs:     cogs,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	h.api = api
	tags := huma.OperationTags(humastar.PageTag)

	huma.Post(api, BasePath+"/session", h.SubmitSession, tags)
	huma.Post(api, BasePath+"/validate", h.SubmitValidate, tags)
	huma.Post(api, BasePath+"/misc", h.Misc, tags)
	huma.Post(api, BasePath+"/mark/{type}", h.Mark, tags)
	huma.Post(api, BasePath+"/dismiss", h.Dismiss, tags)
	huma.Post(api, BasePath+"/dash", h.Dash, tags)
	huma.Post(api, BasePath+"/translate/start", h.TranslateStart, tags)
	huma.Post(api, BasePath+"/translate/end", h.TranslateEnd, tags)
	huma.Post(api, BasePath+"/move", h.Move, tags)
	huma.Post(api, BasePath+"/wheel", h.Wheel, tags)
	huma.Post(api, BasePath+"/dblclick", h.DoubleClick, tags)
	huma.Post(api, BasePath+"/viewport", h.Viewport, tags)
	huma.Post(api, BasePath+"/keys/down", h.KeyDown, tags)
	huma.Post(api, BasePath+"/keys/up", h.KeyUp, tags)
	huma.Post(api, BasePath+"/group/{legend}", h.ToggleGroup, tags)
	huma.Post(api, BasePath+"/groups", h.ToggleAll, tags)
	huma.Get(api, BasePath+"/events", h.Events, tags)
}

// page returns the discovered routes, built on first use once every
// operation is registered.
func (h *Handler) page(signals map[string]any, data any) humastar.PageData {
	h.once.Do(func() {
		h.pageBase = humastar.BuildPageData(h.api, BasePath, nil, nil)
	})
	pd := h.pageBase
	pd.Data = data
	if signals != nil {
		b, err := json.Marshal(signals)
		if err != nil {
			h.log.Error("signals_encode_error", "err", err)
		}
		pd.Signals = string(b)
	}
	return pd
}

// load parses the request signals and finds the tab's session.
func (h *Handler) load(ctx context.Context, body []byte) (humastar.Signals, *review.Session, error) {
	in := humastar.SignalsInput{RawBody: body}
	sig, err := in.MustParse()
	if err != nil {
		return nil, nil, err
	}
	s, err := h.session(ctx, sig)
	return sig, s, err
}

func (h *Handler) session(ctx context.Context, sig humastar.Signals) (*review.Session, error) {
	id := sig.String("sessionid")
	if id == "" {
		return nil, huma.Error400BadRequest("sessionid signal is required")
	}
	s, err := h.sessions.Get(ctx, id)
	if errors.Is(err, review.ErrNoSession) {
		return nil, huma.Error404NotFound("Session expired, reload the page")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("load session", err)
	}
	return s, nil
}

// systemOptions lists every system and version the backend has for the COG,
// encoded as the session form expects.
func (h *Handler) systemOptions(ctx context.Context, cogID string) []humastar.SelectOptionData {
	var opts []humastar.SelectOptionData
	for _, ftype := range []feature.FType{feature.Point, feature.Line} {
		systems, err := h.ctrl.Backend().Systems(ctx, cogID, ftype)
		if err != nil {
			h.log.Warn("systems_error", "cog_id", cogID, "ftype", ftype, "err", err)
			continue
		}
		names := make([]string, 0, len(systems))
		for name := range systems {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			for _, version := range systems[name] {
				opts = append(opts, humastar.SelectOptionData{
					Value: review.SystemValue(ftype, name, version),
					Label: string(ftype) + " · " + name + " " + version,
				})
			}
		}
	}
	return opts
}
