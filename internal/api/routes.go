// Package api defines the Huma REST routes and handlers.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/review"
	"github.com/joeblew999/plat-polymer/internal/service"
	"github.com/joeblew999/plat-polymer/internal/store"
	"github.com/joeblew999/plat-polymer/pkg/linesclient"
)

// Version is reported by /health and /api/v1/info.
const Version = "1.0.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Backend  backend.Backend
	Store    *store.Store // nil when features come from a remote service
	Sessions review.Store
	Source   *service.SourceService
	Cog      *service.CogService
	Bus      *service.EventBus
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
	log *slog.Logger
}

func NewAPIHandler(svc *Services, log *slog.Logger) *APIHandler {
	if log == nil {
		log = slog.Default()
	}
	return &APIHandler{svc: svc, log: log}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterCogs registers COG listing routes.
func (h *APIHandler) RegisterCogs(api huma.API) {
	huma.Get(api, "/api/v1/cogs", h.GetCogs, huma.OperationTags("cogs"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetCogs(ctx context.Context, input *struct{}) (*struct{ Body []service.CogFile }, error) {
	if h.svc == nil || h.svc.Cog == nil {
		return &struct{ Body []service.CogFile }{Body: []service.CogFile{}}, nil
	}
	cogs, err := h.svc.Cog.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list COGs", err)
	}
	return &struct{ Body []service.CogFile }{Body: cogs}, nil
}

// backendError maps a feature backend failure to an HTTP error. Remote
// status codes pass through.
func backendError(msg string, err error) error {
	var se *linesclient.StatusError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return huma.Error404NotFound(msg, err)
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		return huma.NewError(se.Code, msg, err)
	case errors.As(err, &se):
		return huma.Error502BadGateway(msg, err)
	default:
		return huma.Error500InternalServerError(msg, err)
	}
}

// noContent sets a 204 default status on an operation.
func noContent(o *huma.Operation) {
	o.DefaultStatus = http.StatusNoContent
}
