// Package review runs the points and lines review workflow: session setup in
// view or validate mode, the skip/mark/reset button state machine, drag to
// correct, auto-recentering and persistence of validation decisions.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/mapview"
	"github.com/joeblew999/plat-polymer/internal/marker"
	"github.com/joeblew999/plat-polymer/internal/metrics"
	"github.com/joeblew999/plat-polymer/internal/overlay"
	"github.com/joeblew999/plat-polymer/internal/service"
)

// MarkKind is a review decision.
type MarkKind string

const (
	MarkGood  MarkKind = "good"
	MarkBad   MarkKind = "bad"
	MarkSkip  MarkKind = "skip"
	MarkUnset MarkKind = "unset"
)

// ParseMarkKind validates a decision name.
func ParseMarkKind(s string) (MarkKind, error) {
	switch k := MarkKind(s); k {
	case MarkGood, MarkBad, MarkSkip, MarkUnset:
		return k, nil
	}
	return "", fmt.Errorf("unknown mark %q", s)
}

// validation is the status recorded for a decision.
func (k MarkKind) validation() *bool {
	switch k {
	case MarkGood:
		v := true
		return &v
	case MarkBad:
		v := false
		return &v
	}
	return nil
}

// ErrActionDisabled is returned for a decision the controls do not offer in
// the current state.
var ErrActionDisabled = Userf("Action is not available right now")

// ErrNotDraggable is returned when a drag targets anything but the point
// under review.
var ErrNotDraggable = errors.New("only the current point feature can be moved")

// Config tunes the workflow.
type Config struct {
	// AutoRecenter recenters on a feature as soon as it is dragged or reset,
	// as long as the user has not navigated away.
	AutoRecenter bool
	// MaxPasses bounds the sweeps over the worklist; skipped features are
	// offered again on each later sweep.
	MaxPasses int
}

// DefaultConfig recenters automatically and retries skipped features once.
func DefaultConfig() Config {
	return Config{AutoRecenter: true, MaxPasses: 2}
}

// Controller applies user actions to sessions.
type Controller struct {
	backend backend.Backend
	store   Store
	bus     *service.EventBus
	cfg     Config
	log     *slog.Logger
}

// NewController wires a controller. store and bus may be nil.
func NewController(b backend.Backend, store Store, bus *service.EventBus, cfg Config, log *slog.Logger) *Controller {
	if cfg.MaxPasses < 1 {
		cfg.MaxPasses = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{backend: b, store: store, bus: bus, cfg: cfg, log: log}
}

// Config returns the workflow configuration.
func (c *Controller) Config() Config { return c.cfg }

// Backend returns the feature backend.
func (c *Controller) Backend() backend.Backend { return c.backend }

// do runs fn under the session lock and persists the result.
func (c *Controller) do(ctx context.Context, s *Session, action string, fn func() error) error {
	s.Lock()
	defer s.Unlock()

	err := fn()
	s.UpdatedAt = time.Now()

	if c.store != nil {
		if serr := c.store.Save(ctx, s); serr != nil {
			c.log.Warn("session_save_error", "session", s.ID, "err", serr)
		}
	}
	if c.bus != nil {
		c.bus.Publish(service.Event{Resource: "sessions", Action: action, ID: s.ID})
	}
	return err
}

// ---------------------------------------------------------------------------
// Session setup
// ---------------------------------------------------------------------------

// SubmitSession handles the mode and system form. Invalid fields are flagged
// without any backend call. On failure the mode is unset and the form shows
// the error; on success FollowUp says what the page does next.
func (c *Controller) SubmitSession(ctx context.Context, s *Session, form SessionForm) error {
	return c.do(ctx, s, "session", func() error {
		if err := form.Validate(); err != nil {
			s.SessionForm = formState(err)
			return err
		}

		mode := Mode(form.Mode)
		s.Reset(mode)

		err := c.onMode(ctx, s, mode, form)
		metrics.SessionsStartedTotal.WithLabelValues(form.Mode, metrics.Outcome(err)).Inc()
		if err != nil {
			c.log.Error("session_start_error", "session", s.ID, "mode", form.Mode, "system", form.System, "err", err)
			s.Reset(ModeUnset)
			s.SessionForm = FormState{Error: UserMessage(err)}
			return err
		}

		c.log.Info("session_start_ok", "session", s.ID, "mode", mode, "ftype", s.FType, "system", s.System, "version", s.Version)
		return nil
	})
}

func (c *Controller) onMode(ctx context.Context, s *Session, mode Mode, form SessionForm) error {
	sel, err := form.Parse()
	if err != nil {
		return err
	}

	switch mode {
	case ModeView:
		err = c.onView(ctx, s, sel)
	case ModeValidate:
		err = c.onValidate(ctx, s, sel)
	default:
		return ErrInvalidMode
	}
	if err != nil {
		return err
	}

	s.System = sel.System
	s.Version = sel.Version
	return nil
}

func (c *Controller) request(s *Session, sel Selection) backend.FeaturesRequest {
	return backend.FeaturesRequest{CogID: s.CogID, FType: sel.FType, System: sel.System, Version: sel.Version}
}

// onView loads a listing and shows every group as its own overlay layer.
func (c *Controller) onView(ctx context.Context, s *Session, sel Selection) error {
	listing, err := c.backend.ViewFeatures(ctx, c.request(s, sel))
	if err != nil {
		return fmt.Errorf("view features: %w", err)
	}

	groups, err := feature.FromRaw(listing.Features)
	if err != nil {
		return fmt.Errorf("normalize features: %w", err)
	}

	s.FType = sel.FType
	s.Features = groups
	s.Groups = listing.Groups

	s.Overlays.RemoveAll()
	if err := s.Overlays.AddFeatures(false, sel.FType, groups); err != nil {
		return err
	}
	s.refreshView()
	s.FollowUp = FollowNone
	return nil
}

// onValidate loads the features to validate, the latest polymer features and
// the reference legend. Lines are rejected before any request.
func (c *Controller) onValidate(ctx context.Context, s *Session, sel Selection) error {
	if sel.FType == feature.Line {
		return ErrLinesUnsupported
	}

	listing, err := c.backend.ValidateFeatures(ctx, c.request(s, sel))
	if err != nil {
		return fmt.Errorf("validate features: %w", err)
	}
	if listing.Features == nil || listing.PolymerFeatures == nil {
		return errors.New("validation listing is missing features")
	}

	features, err := feature.FromRaw(listing.Features)
	if err != nil {
		return fmt.Errorf("normalize features: %w", err)
	}
	polymer, err := feature.FromRaw(listing.PolymerFeatures)
	if err != nil {
		return fmt.Errorf("normalize polymer features: %w", err)
	}

	s.FType = sel.FType
	s.Features = features
	s.PolymerFeatures = polymer
	s.Groups = listing.Groups
	s.LegendItems = listing.LegendItems

	s.Overlays.RemoveAll()
	s.refreshView()
	s.FollowUp = FollowShowValidateModal
	return nil
}

// SubmitValidate starts a validation session pairing an extracted group with
// a reference legend.
func (c *Controller) SubmitValidate(ctx context.Context, s *Session, form ValidateForm) error {
	return c.do(ctx, s, "validate", func() error {
		if s.Mode != ModeValidate || s.Features == nil || s.PolymerFeatures == nil {
			return errors.New("features or polymer features are not loaded")
		}

		if err := form.Validate(s.Features.LegendIDs(), s.LegendOptions()); err != nil {
			s.ValidateForm = formState(err)
			return err
		}
		s.ValidateForm = FormState{}

		group, _ := s.Features.Get(form.Group)
		if len(group.Features) == 0 {
			return fmt.Errorf("features are undefined for group: %s", form.Group)
		}

		s.Association = &feature.Association{Group: form.Group, Legend: form.Legend}
		s.Marker = marker.New(feature.MarkAll(group.Features))

		s.Overlays.RemoveAll()
		if err := s.Overlays.AddFeatures(true, s.FType, feature.Groups{group}); err != nil {
			return err
		}
		if ref, ok := s.PolymerFeatures.Get(form.Legend); ok {
			if err := s.Overlays.AddFeatures(true, s.FType, feature.Groups{ref}); err != nil {
				return err
			}
		}

		s.MapView().Reset()
		s.Progress = Progress{Value: 0, Max: s.Marker.Len()}
		s.Button.Set(StateStart, true)
		s.FollowUp = FollowNone

		c.log.Info("validate_start", "session", s.ID, "group", form.Group, "legend", form.Legend, "features", s.Marker.Len())
		return nil
	})
}

// ---------------------------------------------------------------------------
// State machine
// ---------------------------------------------------------------------------

// Misc presses the misc button in its current state.
func (c *Controller) Misc(ctx context.Context, s *Session) error {
	return c.do(ctx, s, "misc", func() error {
		return c.misc(ctx, s, s.Button.State())
	})
}

func (c *Controller) misc(ctx context.Context, s *Session, state State) error {
	if state == StateComplete {
		return nil
	}

	if state == StateStart {
		return c.showNextFeature(s, true)
	}

	cur := s.Marker.Current()
	if !cur.OK() {
		c.log.Debug("misc_no_feature", "session", s.ID, "state", state, "err", cur.Err())
		return nil
	}
	m := cur.Value()

	switch state {
	case StateRecenter:
		c.showFeature(s, m.Feature, false)
		c.setCanMark(s, true)
		return nil

	case StateReset:
		if !m.Feature.IsPoint() {
			return fmt.Errorf("feature is not a point: %s", m.Feature.FeatureID)
		}
		if err := s.Overlays.SetGeometry(m.Feature.LegendID, m.Feature.FeatureID, m.OriginalCoordinates); err != nil {
			return err
		}
		m.ResetPosition()

		if c.cfg.AutoRecenter && s.CanMark {
			return c.misc(ctx, s, StateRecenter)
		}
		s.Button.Set(StateRecenter, false)
		return nil

	case StateSkip, StateUnset:
		return c.mark(ctx, s, MarkKind(state))
	}
	return nil
}

// showNextFeature advances to the next incomplete feature, starting another
// sweep over skipped features while passes remain. An exhausted worklist
// resets the view and locks the controls in complete.
func (c *Controller) showNextFeature(s *Session, zoom bool) error {
	old := s.Marker.Current()

	r := s.Marker.Next(true)
	if !r.OK() {
		c.log.Error("show_next_error", "session", s.ID, "err", r.Err())
		return r.Err()
	}

	if old.OK() {
		if err := s.Overlays.SetBold(old.Value().Feature, false); err != nil {
			c.log.Warn("unbold_error", "session", s.ID, "err", err)
		}
	}

	next := r.Value()
	if next == nil && s.Marker.Pass() < c.cfg.MaxPasses && s.Marker.Requeue() {
		c.log.Info("worklist_requeue", "session", s.ID, "pass", s.Marker.Pass(), "remaining", s.Marker.Remaining())
		next = s.Marker.Next(true).Value()
	}

	if next == nil {
		c.log.Info("worklist_complete", "session", s.ID, "completed", s.Marker.Completed(), "total", s.Marker.Len())
		metrics.WorklistsCompletedTotal.Inc()

		s.Teardown()
		s.CanMark = false
		view := s.MapView()
		view.SetAnchor(nil)
		view.Reset()
		s.Button.Set(StateComplete, true)
		return nil
	}

	c.showFeature(s, next.Feature, zoom)
	c.setCanMark(s, true)
	if s.FType == feature.Line {
		s.DashPattern = next.Feature.DashPattern
		if s.DashPattern == "" {
			s.DashPattern = feature.Solid
		}
	}
	return nil
}

// showFeature centers a point, zooming in at the start of a session, or fits
// a line, and draws it bold.
func (c *Controller) showFeature(s *Session, f *feature.Feature, zoom bool) {
	view := s.MapView()
	switch g := f.Geometry.(type) {
	case orb.Point:
		view.CenterOn(g)
		if zoom {
			view.SetResolution(mapview.ZoomResolution)
		}
	case orb.LineString:
		view.Fit(f.BBox, mapview.FitPadding)
	}

	if err := s.Overlays.SetBold(f, true); err != nil {
		c.log.Warn("bold_error", "session", s.ID, "feature", f.FeatureID, "err", err)
	}
}

// setCanMark enables or disables marking, pins or releases the zoom anchor
// and picks the misc state: unset while a modifier is held, skip or reset
// when marking is allowed, recenter otherwise.
func (c *Controller) setCanMark(s *Session, canMark bool) {
	m := s.Current()
	if m == nil {
		return
	}

	s.CanMark = canMark

	view := s.MapView()
	if canMark {
		anchor := m.Feature.Anchor()
		view.SetAnchor(&anchor)
	} else {
		view.SetAnchor(nil)
	}

	if s.Mode != ModeValidate {
		return
	}

	state := StateRecenter
	switch {
	case s.ModifierHeld:
		state = StateUnset
	case canMark && m.AtOriginalPosition():
		state = StateSkip
	case canMark:
		state = StateReset
	}
	s.Button.Set(state, false)
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

// Mark records a decision on the current feature. Good publishes the feature
// under the associated legend first. Any failed request leaves the feature
// current and incomplete and sets a notice offering a retry.
func (c *Controller) Mark(ctx context.Context, s *Session, kind MarkKind) error {
	return c.do(ctx, s, "mark", func() error {
		if !s.CanMark || !markEnabled(s.Button.Buttons(), kind) {
			return ErrActionDisabled
		}
		return c.mark(ctx, s, kind)
	})
}

// markEnabled reports whether the controls offer kind. Skip and unset are the
// misc button's own actions, so they need its matching state.
func markEnabled(b Buttons, kind MarkKind) bool {
	switch kind {
	case MarkGood:
		return b.GoodEnabled
	case MarkBad:
		return b.BadEnabled
	case MarkSkip:
		return b.State == StateSkip
	case MarkUnset:
		return b.State == StateUnset
	}
	return false
}

func (c *Controller) mark(ctx context.Context, s *Session, kind MarkKind) (err error) {
	defer func() {
		metrics.MarksTotal.WithLabelValues(string(kind), metrics.Outcome(err)).Inc()
	}()

	cur := s.Marker.Current()
	if !cur.OK() {
		return cur.Err()
	}
	m := cur.Value()
	f := m.Feature

	if kind == MarkGood {
		if s.Association == nil {
			return ErrNoAssociation
		}
		dash := f.DashPattern
		if s.FType == feature.Line && s.DashPattern != "" {
			dash = s.DashPattern
		}

		req := backend.PublishRequest{
			CogID:     s.CogID,
			Geometry:  geojson.NewGeometry(f.Geometry),
			FeatureID: f.FeatureID,
			LegendID:  s.Association.Legend,
		}
		if dash != "" {
			req.DashPattern = &dash
		}
		if err := c.backend.Publish(ctx, req); err != nil {
			return c.markFailed(s, kind, "Failed to validate feature", err)
		}
		f.DashPattern = dash
	}

	if kind != MarkSkip {
		prev := f.IsValidated
		f.IsValidated = kind.validation()

		err := c.backend.UpdateStatus(ctx, backend.UpdateStatusRequest{
			FeatureID:   f.FeatureID,
			FType:       s.FType,
			IsValidated: f.IsValidated,
		})
		if err != nil {
			f.IsValidated = prev
			return c.markFailed(s, kind, "Failed to update feature status", err)
		}

		if err := s.Overlays.SetMarked(f.LegendID, f.FeatureID, overlay.MarkOptions{
			Dimensions:  overlay.DimensionsFor(s.FType),
			IsValidated: f.IsValidated,
			LineDash:    f.DashPattern.LineDash(),
		}); err != nil {
			c.log.Warn("restyle_error", "session", s.ID, "feature", f.FeatureID, "err", err)
		}
		s.Progress.Value++
	}

	m.IsComplete = kind != MarkSkip
	s.Notice = nil
	c.log.Info("feature_marked", "session", s.ID, "feature", f.FeatureID, "kind", kind)

	if s.Mode == ModeValidate {
		return c.showNextFeature(s, false)
	}
	return nil
}

func (c *Controller) markFailed(s *Session, kind MarkKind, msg string, err error) error {
	c.log.Error("mark_error", "session", s.ID, "kind", kind, "err", err)
	s.Notice = &Notice{Level: "error", Message: msg, Retry: kind}
	return fmt.Errorf("%s: %w", msg, err)
}

// Dismiss clears the notice.
func (c *Controller) Dismiss(ctx context.Context, s *Session) error {
	return c.do(ctx, s, "dismiss", func() error {
		s.Notice = nil
		return nil
	})
}

// ---------------------------------------------------------------------------
// Map gestures
// ---------------------------------------------------------------------------

// CanTranslate reports whether a feature may be dragged: only the point
// currently under review.
func (s *Session) CanTranslate(featureID string) bool {
	m := s.Current()
	return m != nil && m.Feature.IsPoint() && m.Feature.FeatureID == featureID
}

// TranslateStart hit-tests a drag start and returns the feature it grabs.
func (c *Controller) TranslateStart(ctx context.Context, s *Session, p orb.Point, tolerance float64) (string, bool) {
	s.Lock()
	defer s.Unlock()

	_, id, ok := s.Overlays.FeatureAt(p, tolerance, func(_, featureID string) bool {
		return s.CanTranslate(featureID)
	})
	if !ok {
		return "", false
	}
	return id, true
}

// TranslateEnd moves the dragged point. With auto-recenter and marking
// allowed the view follows it; otherwise marking is disabled until the user
// recenters.
func (c *Controller) TranslateEnd(ctx context.Context, s *Session, featureID string, p orb.Point) error {
	return c.do(ctx, s, "translate", func() error {
		r := s.Marker.Find(featureID)
		if !r.OK() {
			return r.Err()
		}
		m := r.Value()
		if !s.CanTranslate(featureID) {
			return ErrNotDraggable
		}

		if err := m.Feature.SetPoint(p); err != nil {
			return err
		}
		if err := s.Overlays.SetGeometry(m.Feature.LegendID, featureID, p); err != nil {
			return err
		}

		if s.Mode != ModeValidate {
			return nil
		}
		if c.cfg.AutoRecenter && s.CanMark {
			return c.misc(ctx, s, StateRecenter)
		}
		c.setCanMark(s, false)
		s.Button.Set(StateRecenter, false)
		return nil
	})
}

// Move is a view change reported by the map.
type Move struct {
	Center      orb.Point
	Resolution  float64
	Interacting bool
}

// MapMoved records a pan or zoom. A user-driven move while reviewing
// disables marking until the next recenter.
func (c *Controller) MapMoved(ctx context.Context, s *Session, mv Move) error {
	return c.do(ctx, s, "move", func() error {
		view := s.MapView()
		view.Interacting = mv.Interacting
		if mv.Resolution > 0 {
			view.SetResolution(mv.Resolution)
		}
		view.CenterOn(mv.Center)
		c.userMoved(s, mv.Interacting)
		return nil
	})
}

func (c *Controller) userMoved(s *Session, interacting bool) {
	if !interacting || s.Mode != ModeValidate {
		return
	}
	if st := s.Button.State(); st != StateStart && st != StateComplete {
		c.setCanMark(s, false)
	}
}

// Wheel zooms one level around the anchor or the pointer.
func (c *Controller) Wheel(ctx context.Context, s *Session, deltaY float64, pointer orb.Point) error {
	return c.do(ctx, s, "wheel", func() error {
		s.MapView().MouseWheel(deltaY, pointer)
		c.userMoved(s, true)
		return nil
	})
}

// DoubleClick zooms one level in, or out with shift.
func (c *Controller) DoubleClick(ctx context.Context, s *Session, pointer orb.Point, shift bool) error {
	return c.do(ctx, s, "dblclick", func() error {
		s.MapView().DoubleClick(pointer, shift)
		c.userMoved(s, true)
		return nil
	})
}

// Viewport sets the map extent, size and native resolutions reported by the
// page, keeping the center and resolution when the extent is unchanged.
func (c *Controller) Viewport(ctx context.Context, s *Session, extent orb.Bound, width, height float64, resolutions []float64) error {
	return c.do(ctx, s, "viewport", func() error {
		if s.View != nil && s.viewReported && s.View.Extent == extent {
			s.View.SetViewport(width, height)
			return nil
		}
		anchor := (*orb.Point)(nil)
		if s.View != nil {
			anchor = s.View.Anchor
		}
		s.View = mapview.New(extent, width, height, resolutions)
		s.View.SetAnchor(anchor)
		s.viewReported = true
		return nil
	})
}

// ---------------------------------------------------------------------------
// Keyboard and toggles
// ---------------------------------------------------------------------------

func isModifier(key string) bool { return key == "Control" || key == "Meta" }

// KeyDown handles held keys: period hides the map image, comma hides the
// overlays and Control or Meta turns skip into unset.
func (c *Controller) KeyDown(ctx context.Context, s *Session, key, code string) error {
	return c.do(ctx, s, "key", func() error {
		c.key(s, key, code, true)
		return nil
	})
}

// KeyUp undoes KeyDown.
func (c *Controller) KeyUp(ctx context.Context, s *Session, key, code string) error {
	return c.do(ctx, s, "key", func() error {
		c.key(s, key, code, false)
		return nil
	})
}

func (c *Controller) key(s *Session, key, code string, down bool) {
	switch code {
	case "Period":
		s.Overlays.SetRasterVisible(!down)
	case "Comma":
		s.Overlays.SetVectorsVisible(!down)
	}

	if !isModifier(key) {
		return
	}
	s.ModifierHeld = down

	st := s.Button.State()
	if st != StateSkip && st != StateUnset {
		return
	}
	if down {
		s.Button.Set(StateUnset, false)
	} else {
		s.Button.Set(StateSkip, false)
	}
}

// ToggleGroup shows or hides one group and returns the master tri-state.
func (c *Controller) ToggleGroup(ctx context.Context, s *Session, legendID string, visible bool) (overlay.Visibility, error) {
	var v overlay.Visibility
	err := c.do(ctx, s, "toggle", func() error {
		if !s.Overlays.SetVisible(legendID, visible) {
			return fmt.Errorf("no layer for legend %s", legendID)
		}
		v = s.Overlays.Master()
		return nil
	})
	return v, err
}

// ToggleAll applies the master toggle to every group.
func (c *Controller) ToggleAll(ctx context.Context, s *Session, visible bool) (overlay.Visibility, error) {
	var v overlay.Visibility
	err := c.do(ctx, s, "toggle", func() error {
		s.Overlays.SetAllVisible(visible)
		v = s.Overlays.Master()
		return nil
	})
	return v, err
}

// SetDashPattern sets the line pattern published with the next good mark.
func (c *Controller) SetDashPattern(ctx context.Context, s *Session, d feature.DashPattern) error {
	return c.do(ctx, s, "dash", func() error {
		if !d.Valid() {
			return fmt.Errorf("unknown dash pattern %q", d)
		}
		s.DashPattern = d
		return nil
	})
}
