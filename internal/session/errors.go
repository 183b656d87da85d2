package session

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotStarted is returned by operations that need a started session
	ErrNotStarted = errors.New("session not started")

	// ErrNotFinalized is returned by Export before Stop has frozen the
	// terminal statistics
	ErrNotFinalized = errors.New("session not finalized")
)
