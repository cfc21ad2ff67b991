package dashboard

import (
	"errors"

	"ecmdash/internal/remote"
)

var (
	// ErrForbidden means the signed-in role may not use the control.
	ErrForbidden        = errors.New("not allowed for this role")
	ErrNothingExpanded  = errors.New("no case is expanded")
	ErrNotEditing       = errors.New("not in edit mode")
	ErrCreateFormClosed = errors.New("create form is not open")
)

// ValidationError is a client-side check that failed before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// UserMessage is the text to show inline for a login or registration
// failure.
func UserMessage(err error, fallback string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var rej *remote.RejectionError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return fallback
}
