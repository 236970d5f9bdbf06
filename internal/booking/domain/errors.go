package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job id does not resolve to a booking.
	ErrJobNotFound = errors.New("job not found")

	// ErrUserNotFound is returned when a user id does not resolve to an account.
	ErrUserNotFound = errors.New("user not found")

	// ErrAssignmentNotFound is returned when a job has no active assignment
	// but the operation requires one.
	ErrAssignmentNotFound = errors.New("no active assignment for job")
)

// Stable reason codes carried by StateError so callers can branch on the
// policy rule that blocked an action.
const (
	ReasonTransitionNotAllowed = "transition_not_allowed"
	ReasonUnrecognizedStatus   = "unrecognized_status"
	ReasonJobNotPending        = "job_not_pending"
	ReasonJobNotStarted        = "job_not_started"
	ReasonCancelWindowClosed   = "cancel_window_closed"
)

// ValidationError marks a transition request that is missing a required
// field, e.g. admin comments for a timedout transition.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s is required", e.Field)
}

// StateError marks an action the current workflow state or a policy rule
// does not permit. It is an expected business failure, not a fault.
type StateError struct {
	Reason  string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// ConflictError marks a lost race: the job was taken by a concurrent
// acceptance, or the translator is already booked at an overlapping time.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStateError reports whether err is (or wraps) a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrAssignmentNotFound)
}
