package attendance

import (
	"errors"
	"fmt"
)

// Storage sentinels returned by a Store.
var (
	ErrDuplicate      = errors.New("attendance record already exists for user and date")
	ErrRecordNotFound = errors.New("attendance record not found")
	ErrNotOpen        = errors.New("attendance record already closed")
)

// Kind classifies a failed operation.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindDuplicate    Kind = "duplicate"
	KindGeofence     Kind = "geofence"
	KindTemporal     Kind = "temporal"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindPersistence  Kind = "persistence"
)

// Geofence rejection reasons.
const (
	ReasonAccuracyTooLow  = "accuracy_too_low"
	ReasonOutsideGeofence = "outside_geofence"
)

// Error is the failure half of every engine operation.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	// Distance is set when a geofence rejection computed one.
	Distance *int
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies err. Errors that did not come from the engine are
// persistence failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

func invalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func duplicate(msg string) *Error {
	return &Error{Kind: KindDuplicate, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: op + " failed", Err: err}
}

func accuracyTooLow(accuracy, max float64) *Error {
	return &Error{
		Kind:    KindGeofence,
		Reason:  ReasonAccuracyTooLow,
		Message: fmt.Sprintf("GPS accuracy too low (%.0fm); the maximum allowed is %.0fm, try again in an open area", accuracy, max),
	}
}

func outsideGeofence(distance int, radius float64) *Error {
	return &Error{
		Kind:     KindGeofence,
		Reason:   ReasonOutsideGeofence,
		Message:  fmt.Sprintf("outside the attendance area (%dm from school); the allowed radius is %.0fm", distance, radius),
		Distance: &distance,
	}
}

// ErrUnauthenticated is returned when an operation has no user identity.
var ErrUnauthenticated = &Error{Kind: KindUnauthorized, Message: "unauthorized"}

const (
	msgAlreadyCheckedIn  = "already checked in today"
	msgNoCheckIn         = "no check-in today"
	msgAlreadyCheckedOut = "already checked out today"
)
