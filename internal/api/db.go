package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-polymer/internal/store"
)

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []store.TableInfo `json:"tables" doc:"Store tables with row counts"`
	}
}

// RegisterTables registers the store inspection route.
func (h *APIHandler) RegisterTables(api huma.API) {
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("health"))
}

// ListTables returns the DuckDB tables backing the local store.
func (h *APIHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.svc.Store == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	tables, err := h.svc.Store.Tables(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}

	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}
