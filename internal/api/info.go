package api

import (
	"context"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
)

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	Backend  string   `json:"backend" doc:"Feature backend" enum:"local,remote"`
	DB       bool     `json:"db" doc:"Whether the local store is available"`
	Features []string `json:"features" doc:"Available features"`
}

// RegisterInfo registers the service info route.
func (h *APIHandler) RegisterInfo(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-polymer",
		Version:  Version,
		Backend:  "remote",
		Features: []string{"view", "validate", "cog", "datastar"},
	}
	if h.svc.Source != nil {
		body.DataDir = filepath.Dir(h.svc.Source.SourcesDir())
	}
	if h.svc.Store != nil {
		body.Backend = "local"
		body.DB = true
		body.Features = append(body.Features, "duckdb", "import")
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
