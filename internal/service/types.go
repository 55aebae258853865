// Package service manages the files the review service works from: GeoJSON
// feature sources waiting to be imported and the COG rasters features are
// reviewed against.
package service

// SourceFile is a GeoJSON feature file in the sources directory.
type SourceFile struct {
	Name     string `json:"name" doc:"File name" example:"GEO_0001_points.geojson"`
	Size     string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	FileType string `json:"fileType" doc:"File type" example:"GeoJSON"`
}

// CogFile is a cloud optimized GeoTIFF in the COG directory.
type CogFile struct {
	ID   string `json:"id" doc:"COG identifier (file name without extension)" example:"GEO_0001"`
	Name string `json:"name" doc:"File name" example:"GEO_0001.cog.tif"`
	Size string `json:"size" doc:"Human-readable file size" example:"54.2 MB"`
	URL  string `json:"url" doc:"Range-enabled download URL" example:"/cogs/GEO_0001.cog.tif"`
}
