package appointment

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the error taxonomy so callers can branch without
// inspecting message text.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindSlotConflict      Kind = "slot_conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal"
)

// Store-level sentinels. Repositories return these; the controller turns them
// into the typed errors below.
var (
	ErrNotFound      = errors.New("appointment not found")
	ErrSlotTaken     = errors.New("doctor already has an active appointment in this interval")
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// ValidationError reports missing or invalid input for a single field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() Kind { return KindValidation }

// SlotConflictError is raised at commit time when the requested interval is
// no longer free.
type SlotConflictError struct {
	DoctorID string    `json:"doctorId"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot no longer available for doctor %s at %s", e.DoctorID, e.Start.Format(time.RFC3339))
}

func (e *SlotConflictError) Kind() Kind { return KindSlotConflict }

func (e *SlotConflictError) Unwrap() error { return ErrSlotTaken }

// InvalidTransitionError reports an action that is not an edge of the
// lifecycle table from the current status.
type InvalidTransitionError struct {
	From   Status `json:"from"`
	Action Action `json:"action"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in status %s", e.Action, e.From)
}

func (e *InvalidTransitionError) Kind() Kind { return KindInvalidTransition }

// AuthorizationError reports a caller acting outside its role or scope.
type AuthorizationError struct {
	Reason string `json:"reason"`
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}

func (e *AuthorizationError) Kind() Kind { return KindAuthorization }

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }

// KindOf returns the taxonomy kind of err, or KindInternal for anything that
// is not one of the typed errors.
func KindOf(err error) Kind {
	var k interface{ Kind() Kind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
