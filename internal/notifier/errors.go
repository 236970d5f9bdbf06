package notifier

import "errors"

var (
	// ErrUnknownChannel is returned when an envelope names a channel no
	// sender is registered for
	ErrUnknownChannel = errors.New("unknown notification channel")

	// ErrMalformedEnvelope is returned when a message body cannot be parsed
	ErrMalformedEnvelope = errors.New("malformed notification envelope")

	// ErrGatewayRejected is returned when a delivery gateway refuses the
	// request with a client error
	ErrGatewayRejected = errors.New("gateway rejected notification")
)

// RetryableError wraps transient delivery failures that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
