// Package store is the local feature backend: extracted and published
// features, reference legend items and validation status kept in DuckDB.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/feature"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS feature_seq;

CREATE TABLE IF NOT EXISTS features (
	feature_id          VARCHAR PRIMARY KEY,
	seq                 BIGINT DEFAULT nextval('feature_seq'),
	cog_id              VARCHAR NOT NULL,
	ftype               VARCHAR NOT NULL,
	system              VARCHAR NOT NULL,
	system_version      VARCHAR NOT NULL,
	legend_id           VARCHAR NOT NULL,
	legend_label        VARCHAR,
	legend_abbreviation VARCHAR,
	geometry            VARCHAR NOT NULL,
	min_x               DOUBLE,
	min_y               DOUBLE,
	max_x               DOUBLE,
	max_y               DOUBLE,
	is_validated        BOOLEAN,
	dash_pattern        VARCHAR,
	reference_id        VARCHAR,
	created_at          TIMESTAMP DEFAULT current_timestamp
);

CREATE TABLE IF NOT EXISTS legend_items (
	cog_id         VARCHAR NOT NULL,
	system         VARCHAR NOT NULL,
	system_version VARCHAR NOT NULL,
	ftype          VARCHAR NOT NULL,
	legend_id      VARCHAR NOT NULL,
	label          VARCHAR,
	abbreviation   VARCHAR,
	description    VARCHAR,
	PRIMARY KEY (cog_id, system, system_version, legend_id)
);
`

// Store implements backend.Backend on DuckDB.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

var _ backend.Backend = (*Store)(nil)

// New creates the schema if needed.
func New(ctx context.Context, db *sql.DB, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &Store{db: db, log: log}, nil
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB { return s.db }

// Systems maps each system with features of ftype on the COG to its versions.
func (s *Store) Systems(ctx context.Context, cogID string, ftype feature.FType) (map[string][]string, error) {
	return s.systems(ctx,
		`SELECT DISTINCT system, system_version FROM features WHERE cog_id = ? AND ftype = ?`,
		cogID, string(ftype))
}

func (s *Store) systems(ctx context.Context, query string, args ...any) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query systems: %w", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var p [2]string
		if err := rows.Scan(&p[0], &p[1]); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return backend.GroupSystems(pairs), nil
}

// latestPolymer is the newest polymer legend version of the COG.
func (s *Store) latestPolymer(ctx context.Context, cogID string) (string, error) {
	systems, err := s.systems(ctx,
		`SELECT DISTINCT system, system_version FROM legend_items WHERE cog_id = ? AND system = ?`,
		cogID, backend.Polymer)
	if err != nil {
		return "", err
	}
	v, ok := backend.Latest(systems, backend.Polymer)
	if !ok {
		return "", fmt.Errorf("no %s legend for %s: %w", backend.Polymer, cogID, backend.ErrNotFound)
	}
	return v, nil
}

func (s *Store) ViewFeatures(ctx context.Context, req backend.FeaturesRequest) (*backend.Listing, error) {
	features, groups, err := s.features(ctx, req)
	if err != nil {
		return nil, err
	}
	return &backend.Listing{
		System:   req.System,
		Version:  req.Version,
		Groups:   groups,
		Features: features,
	}, nil
}

func (s *Store) ValidateFeatures(ctx context.Context, req backend.FeaturesRequest) (*backend.Listing, error) {
	latest, err := s.latestPolymer(ctx, req.CogID)
	if err != nil {
		return nil, err
	}

	legend, err := s.legendItems(ctx, req.CogID, req.FType, backend.Polymer, latest)
	if err != nil {
		return nil, err
	}

	features, groups, err := s.features(ctx, req)
	if err != nil {
		return nil, err
	}

	preq := req
	preq.System, preq.Version = backend.Polymer, latest
	polymer, _, err := s.features(ctx, preq)
	if err != nil {
		return nil, err
	}

	return &backend.Listing{
		System:          req.System,
		Version:         req.Version,
		Groups:          groups,
		Features:        features,
		PolymerFeatures: polymer,
		LegendItems:     legend,
	}, nil
}

// features loads features grouped by legend ID, groups ordered by legend ID
// and features in import order.
func (s *Store) features(ctx context.Context, req backend.FeaturesRequest) (map[string][]feature.RawFeature, []backend.GroupInfo, error) {
	query := `SELECT feature_id, legend_id, legend_label, legend_abbreviation, geometry,
		min_x, min_y, max_x, max_y, is_validated, dash_pattern
		FROM features
		WHERE cog_id = ? AND ftype = ? AND system = ? AND system_version = ?
		ORDER BY legend_id, seq`
	args := []any{req.CogID, string(req.FType), req.System, req.Version}
	if req.MaxNum > 0 {
		query += ` LIMIT ?`
		args = append(args, req.MaxNum)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	features := make(map[string][]feature.RawFeature)
	groups := []backend.GroupInfo{}
	for rows.Next() {
		var (
			r           feature.RawFeature
			label, abbr sql.NullString
			geom        string
			bbox        [4]float64
			validated   sql.NullBool
			dash        sql.NullString
		)
		if err := rows.Scan(&r.FeatureID, &r.LegendID, &label, &abbr, &geom,
			&bbox[0], &bbox[1], &bbox[2], &bbox[3], &validated, &dash); err != nil {
			return nil, nil, err
		}

		r.Geometry, err = geojson.UnmarshalGeometry([]byte(geom))
		if err != nil {
			return nil, nil, fmt.Errorf("feature %s: %w", r.FeatureID, err)
		}
		r.Name = backend.DisplayName(label.String, abbr.String)
		r.BBox = bbox[:]
		if validated.Valid {
			v := validated.Bool
			r.IsValidated = &v
		}
		if dash.Valid && dash.String != "" {
			d := feature.DashPattern(dash.String)
			r.DashPattern = &d
		}

		if _, ok := features[r.LegendID]; !ok {
			groups = append(groups, backend.GroupInfo{Name: r.Name, LegendID: r.LegendID})
		}
		features[r.LegendID] = append(features[r.LegendID], r)
	}
	return features, groups, rows.Err()
}

func (s *Store) legendItems(ctx context.Context, cogID string, ftype feature.FType, system, version string) ([]backend.LegendItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT legend_id, label, abbreviation, description FROM legend_items
		WHERE cog_id = ? AND system = ? AND system_version = ? AND (ftype = ? OR ftype = '')
		ORDER BY legend_id`,
		cogID, system, version, string(ftype))
	if err != nil {
		return nil, fmt.Errorf("query legend items: %w", err)
	}
	defer rows.Close()

	items := []backend.LegendItem{}
	for rows.Next() {
		var (
			li                       backend.LegendItem
			label, abbr, description sql.NullString
		)
		if err := rows.Scan(&li.LegendID, &label, &abbr, &description); err != nil {
			return nil, err
		}
		li.Label, li.Abbreviation, li.Description = label.String, abbr.String, description.String
		items = append(items, li)
	}
	return items, rows.Err()
}

// PublishID is the ID a published copy of geometry gets:
// {cog}_polymer_{version}_{sha256 of the GeoJSON geometry}.
func PublishID(cogID, version string, g *geojson.Geometry) (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s_%s_%s_%s", cogID, backend.Polymer, version, hex.EncodeToString(sum[:])), nil
}

// Publish stores an accepted feature as a validated polymer feature under the
// reference legend, pointing back at the source feature.
func (s *Store) Publish(ctx context.Context, req backend.PublishRequest) error {
	if req.Geometry == nil {
		return errors.New("publish: missing geometry")
	}
	g := req.Geometry.Geometry()

	var ftype feature.FType
	switch g.(type) {
	case orb.Point:
		ftype = feature.Point
	case orb.LineString:
		ftype = feature.Line
	default:
		return fmt.Errorf("publish: %w: %s", feature.ErrUnsupportedGeometry, req.Geometry.Type)
	}

	latest, err := s.latestPolymer(ctx, req.CogID)
	if err != nil {
		return err
	}

	var label, abbr sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT label, abbreviation FROM legend_items
		WHERE cog_id = ? AND system = ? AND system_version = ? AND legend_id = ?`,
		req.CogID, backend.Polymer, latest, req.LegendID).Scan(&label, &abbr)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("legend item %s: %w", req.LegendID, backend.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query legend item: %w", err)
	}

	id, err := PublishID(req.CogID, latest, req.Geometry)
	if err != nil {
		return err
	}
	geom, err := json.Marshal(req.Geometry)
	if err != nil {
		return err
	}

	var dash any
	if req.DashPattern != nil && ftype == feature.Line {
		dash = string(*req.DashPattern)
	}

	b := g.Bound()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO features (feature_id, cog_id, ftype, system, system_version,
			legend_id, legend_label, legend_abbreviation, geometry, min_x, min_y, max_x, max_y,
			is_validated, dash_pattern, reference_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, true, ?, ?)`,
		id, req.CogID, string(ftype), backend.Polymer, latest,
		req.LegendID, label, abbr, string(geom), b.Min[0], b.Min[1], b.Max[0], b.Max[1],
		dash, req.FeatureID)
	if err != nil {
		return fmt.Errorf("insert published feature: %w", err)
	}

	s.log.Info("feature_published", "id", id, "reference_id", req.FeatureID, "legend_id", req.LegendID)
	return nil
}

// UpdateStatus sets or clears the validation status of a feature.
func (s *Store) UpdateStatus(ctx context.Context, req backend.UpdateStatusRequest) error {
	var validated any
	if req.IsValidated != nil {
		validated = *req.IsValidated
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE features SET is_validated = ? WHERE feature_id = ? AND ftype = ?`,
		validated, req.FeatureID, string(req.FType))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("feature %s: %w", req.FeatureID, backend.ErrNotFound)
	}
	return nil
}

// TableInfo describes one table of the store.
type TableInfo struct {
	Name string `json:"name" doc:"Table name" example:"features"`
	Rows int64  `json:"rows" doc:"Row count" example:"1024"`
}

// Tables lists the store tables with their row counts.
func (s *Store) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			names = append(names, name)
		}
	}
	rows.Close()

	tables := []TableInfo{}
	for _, name := range names {
		t := TableInfo{Name: name}
		if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM "`+name+`"`).Scan(&t.Rows); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}
