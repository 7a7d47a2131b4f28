package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrUnreachable means the AnkiConnect endpoint did not answer the
	// initial version probe. It aborts a run before any deck is touched.
	ErrUnreachable = errors.New("remote store unreachable")

	// ErrDeckCreationDisabled is returned when a target deck is missing
	// and automatic deck creation is turned off in the config.
	ErrDeckCreationDisabled = errors.New("deck does not exist and deck creation is disabled")
)
