package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/feature"
)

// The /lines routes serve the feature backend contract as JSON, from
// whichever backend the service is configured with.

type SystemsInput struct {
	CogID string        `query:"cog_id" required:"true" doc:"COG identifier"`
	FType feature.FType `query:"ftype" required:"true" enum:"point,line" doc:"Feature type"`
}

type FeaturesInput struct {
	backend.FeaturesRequest
}

type ListingOutput struct {
	Body *backend.Listing
}

// RegisterLines registers the feature backend routes.
func (h *APIHandler) RegisterLines(api huma.API) {
	tags := huma.OperationTags("lines")
	huma.Get(api, "/lines/systems", h.GetSystems, tags)
	huma.Get(api, "/lines/view-features", h.GetViewFeatures, tags)
	huma.Get(api, "/lines/validate-features", h.GetValidateFeatures, tags)
	huma.Post(api, "/lines/publish", h.Publish, tags, noContent)
	huma.Post(api, "/lines/update-status", h.UpdateStatus, tags, noContent)
}

func (h *APIHandler) GetSystems(ctx context.Context, input *SystemsInput) (*struct{ Body backend.SystemsResponse }, error) {
	systems, err := h.svc.Backend.Systems(ctx, input.CogID, input.FType)
	if err != nil {
		return nil, backendError("Failed to list systems", err)
	}
	if systems == nil {
		systems = map[string][]string{}
	}
	return &struct{ Body backend.SystemsResponse }{Body: backend.SystemsResponse{Systems: systems}}, nil
}

func (h *APIHandler) GetViewFeatures(ctx context.Context, input *FeaturesInput) (*ListingOutput, error) {
	l, err := h.svc.Backend.ViewFeatures(ctx, input.FeaturesRequest)
	if err != nil {
		return nil, backendError("Failed to load features", err)
	}
	return &ListingOutput{Body: l}, nil
}

func (h *APIHandler) GetValidateFeatures(ctx context.Context, input *FeaturesInput) (*ListingOutput, error) {
	l, err := h.svc.Backend.ValidateFeatures(ctx, input.FeaturesRequest)
	if err != nil {
		return nil, backendError("Failed to load features", err)
	}
	return &ListingOutput{Body: l}, nil
}

func (h *APIHandler) Publish(ctx context.Context, input *struct{ Body backend.PublishRequest }) (*struct{}, error) {
	if input.Body.DashPattern != nil && !input.Body.DashPattern.Valid() {
		return nil, huma.Error422UnprocessableEntity("unknown dash pattern " + string(*input.Body.DashPattern))
	}
	if err := h.svc.Backend.Publish(ctx, input.Body); err != nil {
		return nil, backendError("Failed to publish feature", err)
	}
	return &struct{}{}, nil
}

func (h *APIHandler) UpdateStatus(ctx context.Context, input *struct{ Body backend.UpdateStatusRequest }) (*struct{}, error) {
	if err := h.svc.Backend.UpdateStatus(ctx, input.Body); err != nil {
		return nil, backendError("Failed to update feature status", err)
	}
	return &struct{}{}, nil
}
