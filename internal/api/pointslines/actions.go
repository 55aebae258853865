package pointslines

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/humastar"
	"github.com/joeblew999/plat-polymer/internal/review"
)

type MarkInput struct {
	Type    string `path:"type" enum:"good,bad,skip,unset" doc:"Decision on the current feature"`
	RawBody []byte
}

type GroupInput struct {
	Legend  string `path:"legend" doc:"Legend ID of the group"`
	RawBody []byte
}

// pointer reads a map coordinate from a gesture.
func pointer(g humastar.Signals) orb.Point {
	return orb.Point{g.Float("x"), g.Float("y")}
}

func (h *Handler) SubmitSession(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}

	form := review.SessionForm{Mode: sig.String("mode"), System: sig.String("system")}
	err = h.ctrl.SubmitSession(ctx, s, form)

	var extra map[string]any
	var fe *review.FormError
	if err != nil && !errors.As(err, &fe) {
		extra = map[string]any{"mode": ""}
	}
	return h.respond(ctx, s, err, partAll, extra)
}

func (h *Handler) SubmitValidate(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}

	form := review.ValidateForm{Group: sig.String("group"), Legend: sig.String("legend")}
	err = h.ctrl.SubmitValidate(ctx, s, form)
	return h.respond(ctx, s, err, partValidate|partControls|partNotice, nil)
}

func (h *Handler) Misc(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	_, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	err = h.ctrl.Misc(ctx, s)
	return h.respond(ctx, s, err, partControls|partNotice, nil)
}

func (h *Handler) Mark(ctx context.Context, in *MarkInput) (*huma.StreamResponse, error) {
	kind, err := review.ParseMarkKind(in.Type)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	_, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	err = h.ctrl.Mark(ctx, s, kind)
	return h.respond(ctx, s, err, partControls|partNotice, nil)
}

func (h *Handler) Dismiss(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	_, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	err = h.ctrl.Dismiss(ctx, s)
	return h.respond(ctx, s, err, partNotice, nil)
}

func (h *Handler) Dash(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	err = h.ctrl.SetDashPattern(ctx, s, feature.DashPattern(sig.String("dash")))
	return h.respond(ctx, s, err, partControls, nil)
}

func (h *Handler) TranslateStart(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	g := sig.Object("gesture")
	id, _ := h.ctrl.TranslateStart(ctx, s, pointer(g), g.Float("tol"))
	return h.respond(ctx, s, nil, 0, map[string]any{"_dragging": id})
}

func (h *Handler) TranslateEnd(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	g := sig.Object("gesture")
	err = h.ctrl.TranslateEnd(ctx, s, g.String("featureid"), pointer(g))
	return h.respond(ctx, s, err, partControls, map[string]any{"_dragging": ""})
}

func (h *Handler) Move(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	g := sig.Object("gesture")
	err = h.ctrl.MapMoved(ctx, s, review.Move{
		Center:      orb.Point{g.Float("cx"), g.Float("cy")},
		Resolution:  g.Float("res"),
		Interacting: g.Bool("interacting"),
	})
	return h.respond(ctx, s, err, partControls, nil)
}

func (h *Handler) Wheel(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	g := sig.Object("gesture")
	err = h.ctrl.Wheel(ctx, s, g.Float("dy"), pointer(g))
	return h.respond(ctx, s, err, partControls, nil)
}

func (h *Handler) DoubleClick(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	g := sig.Object("gesture")
	err = h.ctrl.DoubleClick(ctx, s, pointer(g), g.Bool("shift"))
	return h.respond(ctx, s, err, partControls, nil)
}

func (h *Handler) Viewport(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	g := sig.Object("gesture")
	extent := orb.Bound{
		Min: orb.Point{g.Float("minx"), g.Float("miny")},
		Max: orb.Point{g.Float("maxx"), g.Float("maxy")},
	}
	err = h.ctrl.Viewport(ctx, s, extent, g.Float("width"), g.Float("height"), g.Floats("resolutions"))
	return h.respond(ctx, s, err, 0, nil)
}

func (h *Handler) KeyDown(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	g := sig.Object("gesture")
	err = h.ctrl.KeyDown(ctx, s, g.String("key"), g.String("code"))
	return h.respond(ctx, s, err, partControls, nil)
}

func (h *Handler) KeyUp(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	g := sig.Object("gesture")
	err = h.ctrl.KeyUp(ctx, s, g.String("key"), g.String("code"))
	return h.respond(ctx, s, err, partControls, nil)
}

func (h *Handler) ToggleGroup(ctx context.Context, in *GroupInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	_, err = h.ctrl.ToggleGroup(ctx, s, in.Legend, sig.Object("gesture").Bool("visible"))
	return h.respond(ctx, s, err, partGroups, nil)
}

func (h *Handler) ToggleAll(ctx context.Context, in *humastar.SignalsInput) (*huma.StreamResponse, error) {
	sig, s, err := h.load(ctx, in.RawBody)
	if err != nil {
		return nil, err
	}
	_, err = h.ctrl.ToggleAll(ctx, s, sig.Object("gesture").Bool("visible"))
	return h.respond(ctx, s, err, partGroups, nil)
}
