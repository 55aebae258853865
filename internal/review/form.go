package review

import (
	"strings"

	"github.com/joeblew999/plat-polymer/internal/feature"
)

// ErrorRing is the class list applied to an invalid form control.
const ErrorRing = "ring-2 ring-error ring-offset-2 ring-offset-base-100"

// Mode is the page mode.
type Mode string

const (
	ModeUnset    Mode = ""
	ModeView     Mode = "view"
	ModeValidate Mode = "validate"
)

// SessionForm is the mode and system selection. System is encoded as
// "ftype__system__version".
type SessionForm struct {
	Mode   string `json:"mode"`
	System string `json:"system"`
}

// Validate checks the required fields are present.
func (f SessionForm) Validate() error {
	var missing []string
	if f.Mode == "" {
		missing = append(missing, "mode")
	}
	if f.System == "" {
		missing = append(missing, "system")
	}
	if len(missing) > 0 {
		return &FormError{Fields: missing}
	}
	return nil
}

// Selection is a parsed system value.
type Selection struct {
	FType   feature.FType
	System  string
	Version string
}

// Parse splits the system value.
func (f SessionForm) Parse() (Selection, error) {
	parts := strings.Split(f.System, "__")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Selection{}, ErrInvalidFormData
	}
	ftype, err := feature.ParseFType(parts[0])
	if err != nil {
		return Selection{}, ErrInvalidFormData
	}
	return Selection{FType: ftype, System: parts[1], Version: parts[2]}, nil
}

// SystemValue encodes a selection as the session form expects it.
func SystemValue(ftype feature.FType, system, version string) string {
	return string(ftype) + "__" + system + "__" + version
}

// ValidateForm pairs an extracted group with a reference legend.
type ValidateForm struct {
	Group  string `json:"group"`
	Legend string `json:"legend"`
}

// Validate checks both values are among the offered options.
func (f ValidateForm) Validate(groups, legends []string) error {
	var invalid []string
	if !contains(groups, f.Group) {
		invalid = append(invalid, "group")
	}
	if !contains(legends, f.Legend) {
		invalid = append(invalid, "legend")
	}
	if len(invalid) > 0 {
		return &FormError{Fields: invalid}
	}
	return nil
}

func contains(options []string, v string) bool {
	if v == "" {
		return false
	}
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

// FormState is what the session form shows after a submission.
type FormState struct {
	Invalid map[string]bool `json:"invalid,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Ring returns the error ring classes for a field, or "".
func (s FormState) Ring(field string) string {
	if s.Invalid[field] {
		return ErrorRing
	}
	return ""
}

func formState(err error) FormState {
	if fe, ok := err.(*FormError); ok {
		st := FormState{Invalid: make(map[string]bool, len(fe.Fields))}
		for _, f := range fe.Fields {
			st.Invalid[f] = true
		}
		return st
	}
	return FormState{}
}
