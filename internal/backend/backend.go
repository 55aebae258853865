// Package backend defines the feature service the review workflow talks to:
// listing systems, loading features for viewing or validation, publishing
// accepted features and recording validation status.
package backend

import (
	"context"
	"errors"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-polymer/internal/feature"
)

// Polymer is the system name under which reviewed features are published.
const Polymer = "polymer"

// ErrNotFound is returned when a cog, system or legend item does not exist.
var ErrNotFound = errors.New("not found")

// FeaturesRequest selects the features of one extraction run.
type FeaturesRequest struct {
	CogID   string        `json:"cog_id" query:"cog_id" required:"true"`
	FType   feature.FType `json:"ftype" query:"ftype" required:"true" enum:"point,line"`
	System  string        `json:"system" query:"system" required:"true"`
	Version string        `json:"version" query:"version" required:"true"`
	MaxNum  int           `json:"max_num,omitempty" query:"max_num" minimum:"0"`
}

// GroupInfo names one legend group of a listing.
type GroupInfo struct {
	Name     string `json:"name"`
	LegendID string `json:"legend_id"`
}

// LegendItem is a reference legend entry features can be validated against.
type LegendItem struct {
	LegendID     string `json:"legend_id"`
	Label        string `json:"label"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Description  string `json:"description,omitempty"`
}

// Listing is the result of a view or validate load. Polymer features and
// legend items are only filled for validation.
type Listing struct {
	System          string                          `json:"system"`
	Version         string                          `json:"version"`
	Groups          []GroupInfo                     `json:"groups"`
	Features        map[string][]feature.RawFeature `json:"features"`
	PolymerFeatures map[string][]feature.RawFeature `json:"polymer_features,omitempty"`
	LegendItems     []LegendItem                    `json:"legend_items,omitempty"`
}

// SystemsResponse is the wire shape of a systems listing.
type SystemsResponse struct {
	Systems map[string][]string `json:"systems" doc:"Versions per system, newest first"`
}

// PublishRequest publishes an accepted feature under the reference legend.
type PublishRequest struct {
	CogID       string               `json:"cog_id" required:"true"`
	Geometry    *geojson.Geometry    `json:"geometry" required:"true"`
	FeatureID   string               `json:"feature_id" required:"true"`
	LegendID    string               `json:"legend_id" required:"true"`
	DashPattern *feature.DashPattern `json:"dash_pattern,omitempty"`
}

// UpdateStatusRequest records a validation decision. A nil IsValidated
// clears it.
type UpdateStatusRequest struct {
	FeatureID   string        `json:"feature_id" required:"true"`
	FType       feature.FType `json:"ftype" required:"true"`
	IsValidated *bool         `json:"is_validated" required:"false"`
}

// Backend is the feature service.
type Backend interface {
	// Systems maps each extraction system to its versions, newest first.
	Systems(ctx context.Context, cogID string, ftype feature.FType) (map[string][]string, error)
	ViewFeatures(ctx context.Context, req FeaturesRequest) (*Listing, error)
	ValidateFeatures(ctx context.Context, req FeaturesRequest) (*Listing, error)
	Publish(ctx context.Context, req PublishRequest) error
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) error
}
