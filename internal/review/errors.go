package review

import (
	"errors"
	"strings"
)

// GenericMessage is shown for failures whose text is not meant for users.
const GenericMessage = "Internal server error"

// UserError carries a message that is safe to show as is.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Userf wraps a user-facing message.
func Userf(msg string) error { return &UserError{Message: msg} }

var (
	ErrLinesUnsupported = Userf("Validation is Not Available for Lines")
	ErrInvalidFormData  = Userf("Invalid form data")
	ErrInvalidMode      = Userf("Invalid mode")
	ErrNoAssociation    = errors.New("group and legend association is undefined")
	ErrNoSession        = errors.New("session not found")
)

// UserMessage is the text shown for err: the message of a UserError, or the
// generic message for anything else.
func UserMessage(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return GenericMessage
}

// FormError lists the form fields that failed validation.
type FormError struct {
	Fields []string
}

func (e *FormError) Error() string {
	return "invalid form fields: " + strings.Join(e.Fields, ", ")
}

// Has reports whether a field is invalid.
func (e *FormError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}
