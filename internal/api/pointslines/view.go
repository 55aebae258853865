package pointslines

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/humastar"
	"github.com/joeblew999/plat-polymer/internal/review"
)

type sessionFormView struct {
	Mode       string
	System     string
	ModeRing   string
	SystemRing string
	Error      string
	Systems    []humastar.SelectOptionData
}

type groupRow struct {
	LegendID string
	Name     string
	Visible  bool
	Count    int
	Toggle   string
}

type groupsView struct {
	Master    string
	Rows      []groupRow
	ToggleAll string
}

type validateFormView struct {
	GroupRing  string
	LegendRing string
	Groups     []humastar.SelectOptionData
	Legends    []humastar.SelectOptionData
}

type controlsView struct {
	Buttons     review.Buttons
	Progress    review.Progress
	Lines       bool
	DashOptions []humastar.SelectOptionData
	Good        string
	Bad         string
	Misc        string
	Dash        string
}

type noticeView struct {
	Level   string
	Message string
	Retry   string
}

// pageView is everything the page and its fragments show for one session.
type pageView struct {
	CogID        string
	CogURL       string
	SessionForm  sessionFormView
	Groups       groupsView
	ValidateForm validateFormView
	Controls     controlsView
	Notice       *noticeView
}

// parts selects the fragments a response patches.
type parts uint8

const (
	partForm parts = 1 << iota
	partGroups
	partValidate
	partControls
	partNotice

	partAll = partForm | partGroups | partValidate | partControls | partNotice
)

// snapshot is a consistent copy of a session taken under its lock.
type snapshot struct {
	view    pageView
	signals map[string]any
}

// capture reads the session under its lock. The system options are fetched
// by the caller beforehand since they need a backend round trip.
func (h *Handler) capture(s *review.Session, systems []humastar.SelectOptionData) snapshot {
	pd := h.page(nil, nil)

	s.Lock()
	defer s.Unlock()

	v := pageView{CogID: s.CogID}
	if h.cogs != nil {
		if cog, ok := h.cogs.Find(s.CogID); ok {
			v.CogURL = cog.URL
		}
	}

	v.SessionForm = sessionFormView{
		Mode:       string(s.Mode),
		ModeRing:   s.SessionForm.Ring("mode"),
		SystemRing: s.SessionForm.Ring("system"),
		Error:      s.SessionForm.Error,
		Systems:    systems,
	}
	if s.FType != "" {
		v.SessionForm.System = review.SystemValue(s.FType, s.System, s.Version)
	}
	for i := range v.SessionForm.Systems {
		opt := &v.SessionForm.Systems[i]
		opt.Selected = opt.Value == v.SessionForm.System
	}

	v.Groups = groupsView{
		Master:    string(s.Overlays.Master()),
		ToggleAll: pd.Route("groups"),
	}
	if s.Mode == review.ModeView {
		for _, g := range s.Groups {
			row := groupRow{LegendID: g.LegendID, Name: g.Name, Toggle: pd.Route("group", g.LegendID)}
			if l, ok := s.Overlays.Layer(g.LegendID); ok {
				row.Visible = l.Visible
				row.Count = l.Len()
			}
			v.Groups.Rows = append(v.Groups.Rows, row)
		}
	}

	v.ValidateForm = validateFormView{
		GroupRing:  s.ValidateForm.Ring("group"),
		LegendRing: s.ValidateForm.Ring("legend"),
		Groups:     []humastar.SelectOptionData{{Label: "Extracted group"}},
		Legends:    []humastar.SelectOptionData{{Label: "Reference legend"}},
	}
	for _, g := range s.Groups {
		v.ValidateForm.Groups = append(v.ValidateForm.Groups, humastar.SelectOptionData{
			Value:    g.LegendID,
			Label:    g.Name,
			Selected: s.Association != nil && s.Association.Group == g.LegendID,
		})
	}
	for _, li := range s.LegendItems {
		label := li.Label
		if li.Abbreviation != "" {
			label += " (" + li.Abbreviation + ")"
		}
		v.ValidateForm.Legends = append(v.ValidateForm.Legends, humastar.SelectOptionData{
			Value:    li.LegendID,
			Label:    label,
			Selected: s.Association != nil && s.Association.Legend == li.LegendID,
		})
	}

	v.Controls = controlsView{
		Buttons:  s.Button.Buttons(),
		Progress: s.Progress,
		Lines:    s.FType == feature.Line,
		Good:     pd.Route("mark", string(review.MarkGood)),
		Bad:      pd.Route("mark", string(review.MarkBad)),
		Misc:     pd.Route("misc"),
		Dash:     pd.Route("dash"),
	}
	for _, d := range []feature.DashPattern{feature.Solid, feature.Dash, feature.Dotted} {
		v.Controls.DashOptions = append(v.Controls.DashOptions, humastar.SelectOptionData{
			Value:    string(d),
			Label:    string(d),
			Selected: s.DashPattern == d,
		})
	}

	if n := s.Notice; n != nil {
		v.Notice = &noticeView{Level: n.Level, Message: n.Message, Retry: string(n.Retry)}
	}

	return snapshot{view: v, signals: stateSignals(s)}
}

// stateSignals are the underscore (client-only) signals the map and the
// page chrome follow. Geometry is encoded here, while the lock is held.
func stateSignals(s *review.Session) map[string]any {
	return map[string]any{
		"_mode":     string(s.Mode),
		"_followup": string(s.FollowUp),
		"_overlays": encode(s.Overlays.FeatureCollection()),
		"_view":     encode(s.MapView()),
		"_raster":   s.Overlays.RasterVisible(),
		"_vectors":  s.Overlays.VectorsVisible(),
		"_canmark":  s.CanMark,
	}
}

func encode(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

// initialSignals seed data-signals on page load.
func initialSignals(s *review.Session, snap snapshot) map[string]any {
	sig := map[string]any{
		"sessionid": s.ID,
		"mode":      snap.view.SessionForm.Mode,
		"system":    snap.view.SessionForm.System,
		"group":     "",
		"legend":    "",
		"dash":      string(feature.Solid),
		"gesture":   map[string]any{},
		"_dragging": "",
		"error":     "",
		"success":   "",
	}
	for k, v := range snap.signals {
		sig[k] = v
	}
	return sig
}

// respond streams the patches for a finished transition. err is the
// controller's result: form and mark failures are already part of the
// session state, anything else is shown as an error signal.
func (h *Handler) respond(ctx context.Context, s *review.Session, err error, p parts, extra map[string]any) (*huma.StreamResponse, error) {
	var systems []humastar.SelectOptionData
	if p&partForm != 0 {
		s.Lock()
		cogID := s.CogID
		s.Unlock()
		systems = h.systemOptions(ctx, cogID)
	}

	snap := h.capture(s, systems)
	signals := snap.signals
	for k, v := range extra {
		signals[k] = v
	}
	signals["error"] = ""
	if err != nil {
		h.log.Debug("review_action_error", "session", s.ID, "err", err)
		if shown := errorMessage(err, snap.view); shown != "" {
			signals["error"] = shown
		}
	}

	pd := h.page(nil, snap.view)
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(signals)
		if p&partForm != 0 {
			sse.Fragment(h.Renderer, "session-form", pd, "#session-form")
		}
		if p&partGroups != 0 {
			sse.Fragment(h.Renderer, "groups", snap.view.Groups, "#groups")
		}
		if p&partValidate != 0 {
			sse.Fragment(h.Renderer, "validate-form", pd, "#validate-form")
		}
		if p&partControls != 0 {
			sse.Fragment(h.Renderer, "controls", snap.view.Controls, "#controls")
		}
		if p&partNotice != 0 {
			sse.Fragment(h.Renderer, "notice", pd, "#notice")
		}
	}), nil
}

// errorMessage is the toast text for err, or "" when a fragment already
// shows it.
func errorMessage(err error, v pageView) string {
	var fe *review.FormError
	if errors.As(err, &fe) {
		return ""
	}
	if v.SessionForm.Error != "" || v.Notice != nil {
		return ""
	}
	return review.UserMessage(err)
}
