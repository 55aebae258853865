package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-polymer/internal/feature"
)

// ImportRequest names the extraction run a GeoJSON file belongs to.
type ImportRequest struct {
	CogID   string        `json:"cog_id" required:"true" doc:"COG identifier" example:"GEO_0001"`
	FType   feature.FType `json:"ftype" required:"true" enum:"point,line" doc:"Feature type"`
	System  string        `json:"system" required:"true" doc:"Extraction system" example:"uncharted"`
	Version string        `json:"version" required:"true" doc:"System version" example:"0.1.0"`
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Features    int `json:"features" doc:"Features imported"`
	LegendItems int `json:"legendItems" doc:"Legend items imported"`
}

func stringProp(p geojson.Properties, keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ReadFeatureCollection reads a GeoJSON feature collection file.
func ReadFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fc, nil
}

// ImportGeoJSON loads a feature collection for one extraction run. Features
// whose geometry does not match the feature type are rejected. Properties
// read: feature_id (or the feature id), legend_id, label, abbreviation,
// description, is_validated and dash_pattern.
func (s *Store) ImportGeoJSON(ctx context.Context, req ImportRequest, fc *geojson.FeatureCollection) (ImportResult, error) {
	var res ImportResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	legends := make(map[string]bool)
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return res, fmt.Errorf("feature %d: missing geometry", i)
		}
		switch f.Geometry.(type) {
		case orb.Point:
			if req.FType != feature.Point {
				return res, fmt.Errorf("feature %d: point in a %s import", i, req.FType)
			}
		case orb.LineString:
			if req.FType != feature.Line {
				return res, fmt.Errorf("feature %d: line in a %s import", i, req.FType)
			}
		default:
			return res, fmt.Errorf("feature %d: %w: %s", i, feature.ErrUnsupportedGeometry, f.Geometry.GeoJSONType())
		}

		id := stringProp(f.Properties, "feature_id")
		if id == "" {
			if fid, ok := f.ID.(string); ok {
				id = fid
			}
		}
		if id == "" {
			id = uuid.NewString()
		}

		legendID := stringProp(f.Properties, "legend_id")
		label := stringProp(f.Properties, "label", "legend_label", "name")
		abbr := stringProp(f.Properties, "abbreviation")

		var validated any
		if v, ok := f.Properties["is_validated"].(bool); ok {
			validated = v
		}
		var dash any
		if d := feature.DashPattern(stringProp(f.Properties, "dash_pattern")); d != "" && d.Valid() {
			dash = string(d)
		}

		b := f.Geometry.Bound()
		if len(f.BBox) == 4 {
			b = orb.Bound{Min: orb.Point{f.BBox[0], f.BBox[1]}, Max: orb.Point{f.BBox[2], f.BBox[3]}}
		}

		geom, err := json.Marshal(geojson.NewGeometry(f.Geometry))
		if err != nil {
			return res, err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO features (feature_id, cog_id, ftype, system, system_version,
				legend_id, legend_label, legend_abbreviation, geometry, min_x, min_y, max_x, max_y,
				is_validated, dash_pattern)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, req.CogID, string(req.FType), req.System, req.Version,
			legendID, label, abbr, string(geom), b.Min[0], b.Min[1], b.Max[0], b.Max[1],
			validated, dash)
		if err != nil {
			return res, fmt.Errorf("insert feature %s: %w", id, err)
		}
		res.Features++

		if legends[legendID] {
			continue
		}
		legends[legendID] = true

		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO legend_items (cog_id, system, system_version, ftype, legend_id, label, abbreviation, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			req.CogID, req.System, req.Version, string(req.FType), legendID, label, abbr,
			stringProp(f.Properties, "description"))
		if err != nil {
			return res, fmt.Errorf("insert legend item %s: %w", legendID, err)
		}
		res.LegendItems++
	}

	if err := tx.Commit(); err != nil {
		return res, err
	}
	s.log.Info("geojson_imported", "cog_id", req.CogID, "system", req.System, "version", req.Version,
		"features", res.Features, "legend_items", res.LegendItems)
	return res, nil
}
