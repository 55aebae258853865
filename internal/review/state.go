package review

// State is the state of the validation misc button. It decides the button's
// label and icon and which decision buttons are enabled.
type State string

const (
	StateStart    State = "start"
	StateSkip     State = "skip"
	StateUnset    State = "unset"
	StateRecenter State = "recenter"
	StateReset    State = "reset"
	StateComplete State = "complete"
)

type stateInfo struct {
	label string
	icon  string
}

var states = map[State]stateInfo{
	StateStart:    {"Start", "fa-play"},
	StateSkip:     {"Skip", "fa-forward"},
	StateUnset:    {"Unset Validation", "fa-backward-step"},
	StateRecenter: {"Recenter", "fa-arrows-to-dot"},
	StateReset:    {"Reset Position", "fa-rotate-left"},
	StateComplete: {"Complete", "fa-check"},
}

// Label is the button text.
func (s State) Label() string { return states[s].label }

// Icon is the Font Awesome class of the button icon.
func (s State) Icon() string { return states[s].icon }

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := states[s]
	return ok
}

// Buttons is the derived enablement of the validate controls.
type Buttons struct {
	State       State  `json:"state"`
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	GoodEnabled bool   `json:"goodEnabled"`
	BadEnabled  bool   `json:"badEnabled"`
	Locked      bool   `json:"locked"`
}

// Machine holds the misc button state. Complete is terminal: only a forced
// transition leaves it.
type Machine struct {
	state State
}

// NewMachine starts in the start state.
func NewMachine() Machine { return Machine{state: StateStart} }

// State returns the current state.
func (m *Machine) State() State {
	if m.state == "" {
		return StateStart
	}
	return m.state
}

// Set moves to s and reports whether it did. Transitions out of complete are
// ignored unless forced.
func (m *Machine) Set(s State, force bool) bool {
	if m.State() == StateComplete && !force {
		return false
	}
	m.state = s
	return true
}

// Buttons derives the control enablement for the current state.
func (m *Machine) Buttons() Buttons {
	s := m.State()
	b := Buttons{State: s, Label: s.Label(), Icon: s.Icon()}

	switch s {
	case StateRecenter, StateStart, StateComplete:
	case StateReset:
		b.GoodEnabled = true
	default:
		b.GoodEnabled = true
		b.BadEnabled = true
	}
	b.Locked = s == StateComplete
	return b
}
