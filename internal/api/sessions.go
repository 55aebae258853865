package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-polymer/internal/humastar"
	"github.com/joeblew999/plat-polymer/internal/review"
	"github.com/joeblew999/plat-polymer/internal/service"
)

// SessionStatus is a read-only view of a review session.
type SessionStatus struct {
	ID          string           `json:"id" doc:"Session ID"`
	CogID       string           `json:"cog_id" doc:"COG identifier"`
	Mode        string           `json:"mode" doc:"Review mode, empty until the session form is submitted"`
	FType       string           `json:"ftype,omitempty" doc:"Feature type"`
	System      string           `json:"system,omitempty" doc:"Extraction system"`
	Version     string           `json:"version,omitempty" doc:"System version"`
	State       review.State     `json:"state" doc:"Review button state"`
	Progress    review.Progress  `json:"progress" doc:"Validation progress"`
	Buttons     review.Buttons   `json:"buttons" doc:"Control button state"`
	Notice      *review.Notice   `json:"notice,omitempty" doc:"Pending notice"`
	Association *AssociationInfo `json:"association,omitempty" doc:"Group to legend association"`
}

type AssociationInfo struct {
	Group       string `json:"group"`
	Legend      string `json:"legend"`
	LegendLabel string `json:"legend_label,omitempty"`
}

// Links implements humastar.Linker. Besides the worklist and close links it
// offers the decisions the review controls currently allow.
func (s SessionStatus) Links(self string) []humastar.Link {
	links := []humastar.Link{
		{Href: self + "/features", Rel: "features", Method: "GET", Title: "Review worklist"},
		{Href: self, Rel: "delete", Method: "DELETE", Title: "Close session"},
	}
	if s.Buttons.GoodEnabled {
		links = append(links, humastar.Link{Href: "/api/v1/review/mark/good", Rel: "mark-good", Method: "POST", Title: "Mark good"})
	}
	if s.Buttons.BadEnabled {
		links = append(links, humastar.Link{Href: "/api/v1/review/mark/bad", Rel: "mark-bad", Method: "POST", Title: "Mark bad"})
	}
	if !s.Buttons.Locked && s.State != review.StateStart {
		links = append(links, humastar.Link{Href: "/api/v1/review/misc", Rel: "misc", Method: "POST", Title: s.State.Label()})
	}
	return links
}

// SessionFeature is one entry of a session's review worklist.
type SessionFeature struct {
	FeatureID   string `json:"feature_id"`
	LegendID    string `json:"legend_id"`
	Name        string `json:"name,omitempty"`
	IsValidated *bool  `json:"is_validated"`
	Complete    bool   `json:"complete" doc:"Whether the feature has been decided"`
	Moved       bool   `json:"moved" doc:"Whether the feature was dragged from its extracted position"`
	Current     bool   `json:"current" doc:"Whether the feature is under review"`
}

type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type SessionFeaturesInput struct {
	ID     string `path:"id" doc:"Session ID"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Items to skip"`
	Limit  int    `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Page size"`
}

// RegisterSessions registers the session inspection routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	tags := huma.OperationTags("sessions")
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, tags)
	huma.Get(api, "/api/v1/sessions/{id}/features", h.ListSessionFeatures, tags)
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, tags, noContent)
}

func (h *APIHandler) lookup(ctx context.Context, id string) (*review.Session, error) {
	s, err := h.svc.Sessions.Get(ctx, id)
	if errors.Is(err, review.ErrNoSession) {
		return nil, huma.Error404NotFound("Session not found")
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to load session", err)
	}
	return s, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*struct{ Body SessionStatus }, error) {
	s, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	s.Lock()
	defer s.Unlock()
	st := SessionStatus{
		ID:       s.ID,
		CogID:    s.CogID,
		Mode:     string(s.Mode),
		FType:    string(s.FType),
		System:   s.System,
		Version:  s.Version,
		State:    s.Button.State(),
		Progress: s.Progress,
		Buttons:  s.Button.Buttons(),
		Notice:   s.Notice,
	}
	if a := s.Association; a != nil {
		st.Association = &AssociationInfo{Group: a.Group, Legend: a.Legend, LegendLabel: s.LegendLabel(a.Legend)}
	}
	return &struct{ Body SessionStatus }{Body: st}, nil
}

func (h *APIHandler) ListSessionFeatures(ctx context.Context, input *SessionFeaturesInput) (*struct{ Body Page[SessionFeature] }, error) {
	s, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	s.Lock()
	var all []SessionFeature
	if s.Marker != nil {
		cur := s.Current()
		for _, m := range s.Marker.Items() {
			f := m.Feature
			all = append(all, SessionFeature{
				FeatureID:   f.FeatureID,
				LegendID:    f.LegendID,
				Name:        f.Name,
				IsValidated: f.IsValidated,
				Complete:    m.IsComplete,
				Moved:       !m.AtOriginalPosition(),
				Current:     m == cur,
			})
		}
	}
	s.Unlock()

	return &struct{ Body Page[SessionFeature] }{Body: paginate(all, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionInput) (*struct{}, error) {
	if _, err := h.lookup(ctx, input.ID); err != nil {
		return nil, err
	}
	if err := h.svc.Sessions.Delete(ctx, input.ID); err != nil {
		return nil, huma.Error500InternalServerError("Failed to delete session", err)
	}
	if h.svc.Bus != nil {
		h.svc.Bus.Publish(service.Event{Resource: "sessions", Action: "deleted", ID: input.ID})
	}
	h.log.Info("session_deleted", "session", input.ID)
	return &struct{}{}, nil
}
