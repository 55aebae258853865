package pointslines

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-polymer/internal/humastar"
	"github.com/joeblew999/plat-polymer/internal/service"
)

// Page serves GET /points-lines/{cog_id}. Every load opens a new session, so
// each browser tab reviews independently.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	cogID := r.PathValue("cog_id")
	if cogID == "" {
		http.Error(w, "cog_id is required", http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Create(r.Context(), cogID)
	if err != nil {
		h.log.Error("session_create_error", "cog_id", cogID, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	snap := h.capture(s, h.systemOptions(r.Context(), cogID))
	if snap.view.CogURL == "" {
		h.log.Warn("cog_not_found", "cog_id", cogID)
	}

	pd := h.page(initialSignals(s, snap), snap.view)
	var buf bytes.Buffer
	if err := h.Renderer.RenderToBuffer(&buf, "points-lines", pd); err != nil {
		h.log.Error("page_render_error", "cog_id", cogID, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.log.Info("session_opened", "session", s.ID, "cog_id", cogID)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// Events streams changes relevant to the tab: its own session and feature
// imports for its COG, which refresh the system list.
func (h *Handler) Events(ctx context.Context, in *humastar.QuerySignalsInput) (*huma.StreamResponse, error) {
	sig, err := in.MustParse()
	if err != nil {
		return nil, err
	}
	s, err := h.session(ctx, sig)
	if err != nil {
		return nil, err
	}
	s.Lock()
	id, cogID := s.ID, s.CogID
	s.Unlock()

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.bus.SubscribeFunc(func(ev service.Event) bool {
				return (ev.Resource == "sessions" && ev.ID == id) ||
					(ev.Resource == "features" && ev.ID == cogID)
			})
			defer h.bus.Unsubscribe(ch)

			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-ch:
					if ev.Resource == "features" {
						snap := h.capture(s, h.systemOptions(ctx, cogID))
						sse.Fragment(h.Renderer, "session-form", h.page(nil, snap.view), "#session-form")
						sse.Success("New features are available for " + cogID)
					}
					sse.DispatchCustomEvent("resource-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		},
	}, nil
}
