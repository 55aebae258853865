package api

import (
	"context"
	"errors"
	"io/fs"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/service"
	"github.com/joeblew999/plat-polymer/internal/store"
)

type ImportInput struct {
	Filename string `path:"filename" doc:"Source file name" example:"GEO_0001_points.geojson"`
	Body     store.ImportRequest
}

type ImportOutput struct {
	Body store.ImportResult
}

// RegisterSources registers the GeoJSON source routes.
func (h *APIHandler) RegisterSources(api huma.API) {
	tags := huma.OperationTags("sources")
	huma.Get(api, "/api/v1/sources", h.ListSources, tags)
	huma.Post(api, "/api/v1/sources/{filename}/import", h.ImportSource, tags)
}

func (h *APIHandler) ListSources(ctx context.Context, input *struct{}) (*struct{ Body []service.SourceFile }, error) {
	if h.svc.Source == nil {
		return &struct{ Body []service.SourceFile }{Body: []service.SourceFile{}}, nil
	}
	files, err := h.svc.Source.List()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list sources", err)
	}
	return &struct{ Body []service.SourceFile }{Body: files}, nil
}

// ImportSource loads a GeoJSON source into the local store as one extraction
// run, then tells open pages their system list changed.
func (h *APIHandler) ImportSource(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
	if h.svc.Store == nil {
		return nil, huma.Error503ServiceUnavailable("Features are served by a remote backend")
	}
	if _, err := feature.ParseFType(string(input.Body.FType)); err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	path, err := h.svc.Source.Path(input.Filename)
	switch {
	case errors.Is(err, service.ErrBadName):
		return nil, huma.Error400BadRequest("Invalid file name", err)
	case errors.Is(err, fs.ErrNotExist):
		return nil, huma.Error404NotFound("Source not found: " + input.Filename)
	case err != nil:
		return nil, huma.Error500InternalServerError("Failed to open source", err)
	}
	fc, err := store.ReadFeatureCollection(path)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("Failed to read source", err)
	}

	res, err := h.svc.Store.ImportGeoJSON(ctx, input.Body, fc)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("Import failed", err)
	}

	h.log.Info("source_imported",
		"file", input.Filename,
		"cog_id", input.Body.CogID,
		"ftype", input.Body.FType,
		"system", input.Body.System,
		"version", input.Body.Version,
		"features", res.Features,
		"legend_items", res.LegendItems,
	)
	if h.svc.Bus != nil {
		h.svc.Bus.Publish(service.Event{Resource: "features", Action: "imported", ID: input.Body.CogID})
	}
	return &ImportOutput{Body: res}, nil
}
