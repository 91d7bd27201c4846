package engine

import (
	"errors"
	"fmt"
)

// Fatal conditions abort a phase immediately and require operator
// intervention. Everything else is absorbed into the error ledger and
// converted into forward progress.
var (
	// ErrSessionInvalid is returned when the portal session has expired or
	// bounced back to the login page. Re-authentication is manual.
	ErrSessionInvalid = errors.New("portal session is no longer valid")

	// ErrCheckpointSave wraps a checkpoint persistence failure. The engine
	// must not proceed in a state it cannot durably record.
	ErrCheckpointSave = errors.New("checkpoint save failed")

	// ErrMissingPrerequisite is returned when a detail phase is started
	// without a harvested master list for its category.
	ErrMissingPrerequisite = errors.New("master list missing: run the harvest stage first")

	// ErrStoreWrite wraps an output-store persistence failure.
	ErrStoreWrite = errors.New("record store write failed")
)

// IsFatal reports whether an error belongs to the fatal category of the
// taxonomy (session loss, persistence failure, missing prerequisite).
func IsFatal(err error) bool {
	return errors.Is(err, ErrSessionInvalid) ||
		errors.Is(err, ErrCheckpointSave) ||
		errors.Is(err, ErrMissingPrerequisite) ||
		errors.Is(err, ErrStoreWrite)
}

// TransientError marks a fetch failure the collaborator judged momentary
// (timeout, render failure, rate-limited response). Transient failures are
// retried with backoff up to the policy's attempt cap.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}
