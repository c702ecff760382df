package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized marks credential or scope failures. Fatal to the
	// current operation: never retried, bubbles up for re-authentication.
	ErrUnauthorized = errors.New("remote authorization failed")

	// ErrConflict marks a version token mismatch on write or delete. The
	// remote content moved under us; callers must not blindly retry.
	ErrConflict = errors.New("remote version conflict")

	// ErrNotFound marks an absent remote resource on operations where
	// absence is a failure (delete with a token). Reads surface absence as
	// a nil result instead.
	ErrNotFound = errors.New("remote resource not found")
)

// StatusError carries the HTTP status of a failed remote call. Transient
// failures wrap one of these; taxonomy failures wrap the sentinels above.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote store returned status %d", e.Status)
	}
	return fmt.Sprintf("remote store returned status %d: %s", e.Status, e.Body)
}

// classifyStatus maps a non-2xx response to the error taxonomy. Anything
// not mapped to a sentinel is transient and eligible for retry.
func classifyStatus(status int, body string) error {
	se := &StatusError{Status: status, Body: body}
	switch status {
	case 401, 403:
		return fmt.Errorf("%w: %s", ErrUnauthorized, se)
	case 404:
		return fmt.Errorf("%w: %s", ErrNotFound, se)
	case 409, 412, 422:
		return fmt.Errorf("%w: %s", ErrConflict, se)
	default:
		return se
	}
}

// IsFatal reports whether an error must not be retried: authorization,
// not-found, and conflict outcomes are facts about the remote state, not
// transient conditions.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict)
}
