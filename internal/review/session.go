package review

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/feature"
	"github.com/joeblew999/plat-polymer/internal/mapview"
	"github.com/joeblew999/plat-polymer/internal/marker"
	"github.com/joeblew999/plat-polymer/internal/overlay"
)

// Progress is the validation progress bar.
type Progress struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

// Notice is a message shown after a failed action. Retry names the mark
// that can be re-sent; empty for notices without a retry.
type Notice struct {
	Level   string   `json:"level"`
	Message string   `json:"message"`
	Retry   MarkKind `json:"retry,omitempty"`
}

// FollowUp is what the page does after a successful session submission.
type FollowUp string

const (
	FollowNone              FollowUp = ""
	FollowShowValidateModal FollowUp = "show-validate-modal"
)

// Session is the review context of one browser tab on one COG. All access
// goes through Lock/Unlock; the controller holds the lock for a whole
// transition.
type Session struct {
	mu sync.Mutex

	ID    string
	CogID string

	Mode    Mode
	FType   feature.FType
	System  string
	Version string

	Features        feature.Groups
	PolymerFeatures feature.Groups
	Groups          []backend.GroupInfo
	LegendItems     []backend.LegendItem
	Association     *feature.Association

	Marker      *marker.Marker
	CanMark     bool
	Button      Machine
	Progress    Progress
	DashPattern feature.DashPattern

	ModifierHeld bool

	Overlays     *overlay.Registry
	View         *mapview.View
	viewReported bool

	SessionForm  FormState
	ValidateForm FormState
	FollowUp     FollowUp
	Notice       *Notice

	UpdatedAt time.Time
}

// NewSession creates an unset session for a COG.
func NewSession(cogID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CogID:     cogID,
		Button:    NewMachine(),
		Overlays:  overlay.NewRegistry(),
		UpdatedAt: time.Now(),
	}
}

// Lock serialises transitions on the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// TryLock locks the session unless a transition already holds it.
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// Reset clears everything a new session-form submission replaces and sets
// the mode. Overlays stay until the new features are loaded.
func (s *Session) Reset(mode Mode) {
	s.Mode = mode
	s.FType = ""
	s.System = ""
	s.Version = ""
	s.Features = nil
	s.PolymerFeatures = nil
	s.Groups = nil
	s.LegendItems = nil
	s.Association = nil
	s.Marker = nil
	s.CanMark = false
	s.Button = NewMachine()
	s.Progress = Progress{}
	s.DashPattern = ""
	s.SessionForm = FormState{}
	s.ValidateForm = FormState{}
	s.FollowUp = FollowNone
	s.Notice = nil
	if s.View != nil {
		s.View.SetAnchor(nil)
	}
}

// Teardown drops the worklist once it is exhausted.
func (s *Session) Teardown() {
	s.Marker = nil
}

// MapView returns the map view, creating one over the loaded features if the
// page has not reported its viewport yet.
func (s *Session) MapView() *mapview.View {
	if s.View == nil {
		s.View = mapview.New(s.extent(), 1280, 800, nil)
	}
	return s.View
}

// refreshView resets the view after new features are loaded. A view the page
// has not sized yet is rebuilt over the new features.
func (s *Session) refreshView() {
	if !s.viewReported {
		s.View = nil
	}
	s.MapView().Reset()
}

func (s *Session) extent() orb.Bound {
	var b orb.Bound
	first := true
	for _, groups := range []feature.Groups{s.Features, s.PolymerFeatures} {
		for _, g := range groups {
			for _, f := range g.Features {
				if first {
					b = f.BBox
					first = false
					continue
				}
				b = b.Union(f.BBox)
			}
		}
	}
	if first {
		return orb.Bound{Max: orb.Point{1, 1}}
	}
	return b
}

// LegendOptions lists the legend IDs features can be validated against.
func (s *Session) LegendOptions() []string {
	out := make([]string, 0, len(s.LegendItems))
	for _, li := range s.LegendItems {
		out = append(out, li.LegendID)
	}
	return out
}

// LegendLabel returns the label of a reference legend item.
func (s *Session) LegendLabel(legendID string) string {
	for _, li := range s.LegendItems {
		if li.LegendID == legendID {
			return li.Label
		}
	}
	return ""
}

// Current is the feature under review, or nil.
func (s *Session) Current() *feature.Marked {
	r := s.Marker.Current()
	if !r.OK() {
		return nil
	}
	return r.Value()
}
