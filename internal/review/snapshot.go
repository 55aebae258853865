package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/redis/go-redis/v9"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/mapview"
	"github.com/joeblew999/plat-polymer/internal/marker"
	"github.com/joeblew999/plat-polymer/internal/overlay"
)

// WorkItem is one worklist entry of a snapshot.
type WorkItem struct {
	FeatureID  string            `json:"feature_id"`
	Original   *geojson.Geometry `json:"original"`
	IsComplete bool              `json:"is_complete"`
}

// Snapshot is the serialisable state of a session. Overlays are not stored;
// they are rebuilt from the features on restore.
type Snapshot struct {
	ID      string        `json:"id"`
	CogID   string        `json:"cog_id"`
	Mode    Mode          `json:"mode"`
	FType   feature.FType `json:"ftype"`
	System  string        `json:"system"`
	Version string        `json:"version"`

	Features        map[string][]feature.RawFeature `json:"features,omitempty"`
	PolymerFeatures map[string][]feature.RawFeature `json:"polymer_features,omitempty"`
	Groups          []backend.GroupInfo             `json:"groups,omitempty"`
	LegendItems     []backend.LegendItem            `json:"legend_items,omitempty"`
	Association     *feature.Association            `json:"association,omitempty"`

	Worklist []WorkItem `json:"worklist,omitempty"`
	Cursor   int        `json:"cursor"`
	Pass     int        `json:"pass"`

	CanMark     bool                `json:"can_mark"`
	State       State               `json:"state"`
	Progress    Progress            `json:"progress"`
	DashPattern feature.DashPattern `json:"dash_pattern,omitempty"`
	Hidden      []string            `json:"hidden,omitempty"`

	View         *mapview.View `json:"view,omitempty"`
	ViewReported bool          `json:"view_reported"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewSnapshot captures s. The caller holds the session lock.
func NewSnapshot(s *Session) *Snapshot {
	snap := &Snapshot{
		ID:           s.ID,
		CogID:        s.CogID,
		Mode:         s.Mode,
		FType:        s.FType,
		System:       s.System,
		Version:      s.Version,
		Groups:       s.Groups,
		LegendItems:  s.LegendItems,
		Association:  s.Association,
		CanMark:      s.CanMark,
		State:        s.Button.State(),
		Progress:     s.Progress,
		DashPattern:  s.DashPattern,
		View:         s.View,
		ViewReported: s.viewReported,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Features != nil {
		snap.Features = s.Features.ToRaw()
	}
	if s.PolymerFeatures != nil {
		snap.PolymerFeatures = s.PolymerFeatures.ToRaw()
	}
	if s.Marker != nil {
		for _, m := range s.Marker.Items() {
			snap.Worklist = append(snap.Worklist, WorkItem{
				FeatureID:  m.Feature.FeatureID,
				Original:   geojson.NewGeometry(m.OriginalCoordinates),
				IsComplete: m.IsComplete,
			})
		}
		snap.Cursor = s.Marker.Cursor()
		snap.Pass = s.Marker.Pass()
	}
	for _, l := range s.Overlays.Layers() {
		if !l.Visible {
			snap.Hidden = append(snap.Hidden, l.LegendID)
		}
	}
	return snap
}

// Restore rebuilds a session, its worklist and its overlays.
func (snap *Snapshot) Restore() (*Session, error) {
	s := NewSession(snap.CogID)
	s.ID = snap.ID
	s.Mode = snap.Mode
	s.FType = snap.FType
	s.System = snap.System
	s.Version = snap.Version
	s.Groups = snap.Groups
	s.LegendItems = snap.LegendItems
	s.Association = snap.Association
	s.CanMark = snap.CanMark
	s.Progress = snap.Progress
	s.DashPattern = snap.DashPattern
	s.View = snap.View
	s.viewReported = snap.ViewReported
	s.UpdatedAt = snap.UpdatedAt
	if snap.State.Valid() {
		s.Button.Set(snap.State, true)
	}

	var err error
	if snap.Features != nil {
		if s.Features, err = feature.FromRaw(snap.Features); err != nil {
			return nil, fmt.Errorf("restore features: %w", err)
		}
	}
	if snap.PolymerFeatures != nil {
		if s.PolymerFeatures, err = feature.FromRaw(snap.PolymerFeatures); err != nil {
			return nil, fmt.Errorf("restore polymer features: %w", err)
		}
	}

	if len(snap.Worklist) > 0 {
		if err := restoreWorklist(s, snap); err != nil {
			return nil, err
		}
	}
	if err := restoreOverlays(s, snap); err != nil {
		return nil, err
	}
	return s, nil
}

func restoreWorklist(s *Session, snap *Snapshot) error {
	if s.Association == nil {
		return ErrNoAssociation
	}
	group, ok := s.Features.Get(s.Association.Group)
	if !ok {
		return fmt.Errorf("restore worklist: group %s not found", s.Association.Group)
	}
	byID := make(map[string]*feature.Feature, len(group.Features))
	for _, f := range group.Features {
		byID[f.FeatureID] = f
	}

	items := make([]*feature.Marked, 0, len(snap.Worklist))
	for _, w := range snap.Worklist {
		f, ok := byID[w.FeatureID]
		if !ok {
			return fmt.Errorf("restore worklist: feature %s not found", w.FeatureID)
		}
		m := feature.NewMarked(f)
		if w.Original != nil {
			m.OriginalCoordinates = w.Original.Geometry()
		}
		m.IsComplete = w.IsComplete
		items = append(items, m)
	}
	s.Marker = marker.Restore(items, snap.Cursor, snap.Pass)
	return nil
}

func restoreOverlays(s *Session, snap *Snapshot) error {
	switch {
	case s.Mode == ModeView && s.Features != nil:
		if err := s.Overlays.AddFeatures(false, s.FType, s.Features); err != nil {
			return err
		}
	case s.Mode == ModeValidate && s.Association != nil:
		if g, ok := s.Features.Get(s.Association.Group); ok {
			if err := s.Overlays.AddFeatures(true, s.FType, feature.Groups{g}); err != nil {
				return err
			}
		}
		if g, ok := s.PolymerFeatures.Get(s.Association.Legend); ok {
			if err := s.Overlays.AddFeatures(true, s.FType, feature.Groups{g}); err != nil {
				return err
			}
		}
		for _, m := range s.Marker.Items() {
			if !m.IsComplete {
				continue
			}
			_ = s.Overlays.SetMarked(m.Feature.LegendID, m.Feature.FeatureID, overlay.MarkOptions{
				Dimensions:  overlay.DimensionsFor(s.FType),
				IsValidated: m.Feature.IsValidated,
				LineDash:    m.Feature.DashPattern.LineDash(),
			})
		}
		if st := s.Button.State(); st != StateStart && st != StateComplete {
			if cur := s.Current(); cur != nil {
				_ = s.Overlays.SetBold(cur.Feature, true)
			}
		}
	}

	for _, id := range snap.Hidden {
		s.Overlays.SetVisible(id, false)
	}
	return nil
}

// RedisSnapshots keeps snapshots in Redis as JSON with a TTL.
type RedisSnapshots struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSnapshots stores snapshots under prefix+id.
func NewRedisSnapshots(rc *redis.Client, prefix string, ttl time.Duration) *RedisSnapshots {
	if prefix == "" {
		prefix = "polymer:session:"
	}
	return &RedisSnapshots{rc: rc, prefix: prefix, ttl: ttl}
}

func (r *RedisSnapshots) key(id string) string { return r.prefix + id }

// Load returns nil without error when no snapshot exists.
func (r *RedisSnapshots) Load(ctx context.Context, id string) (*Snapshot, error) {
	data, err := r.rc.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisSnapshots) Store(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.rc.Set(ctx, r.key(snap.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (r *RedisSnapshots) Delete(ctx context.Context, id string) error {
	return r.rc.Del(ctx, r.key(id)).Err()
}
