package warehance

import (
	"errors"
	"fmt"
)

// APIError means the upstream answered but the response is unusable: an error
// payload status, a non-retryable HTTP status, or JSON that does not match the
// documented shape. It is fatal for a sync run; retrying would return the same
// answer.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("warehance api error (http %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("warehance api error (status %q): %s", e.Status, e.Message)
}

// TransientError is a connectivity-level failure (network error, 5xx, 429)
// that survived every retry attempt. The orchestrator treats it as fatal for
// the run, but a later run may succeed.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("warehance request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retries-exhausted connectivity failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
