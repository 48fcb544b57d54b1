package domain

import "errors"

var (
	// ErrUnknownConditionKind is returned when a condition uses a kind
	// outside the closed set.
	ErrUnknownConditionKind = errors.New("unknown condition kind")

	// ErrMissingContextField is returned when an evaluated context lacks
	// the field a condition names.
	ErrMissingContextField = errors.New("context field missing")

	// ErrValueNotComparable is returned when a greater_than comparison
	// meets a value that cannot be read as a number.
	ErrValueNotComparable = errors.New("value is not numeric")

	// ErrPatternNotFound is returned when a pattern id does not exist.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrMissionNotFound is returned when a mission id does not exist.
	ErrMissionNotFound = errors.New("mission not found")

	// ErrFineNotFound is returned when a fine id does not exist.
	ErrFineNotFound = errors.New("fine not found")

	// ErrNotificationNotFound is returned when a notification id does not exist.
	ErrNotificationNotFound = errors.New("notification not found")
)

// RetryableError wraps transient errors that should trigger a requeue
// on the message transport.
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
