package generation

import "errors"

var (
	// ErrTaskCancelled is the synthetic failure attached by an explicit cancel.
	ErrTaskCancelled = errors.New("generation cancelled")
	// ErrNoAttempts is recorded when the retry loop exits before a single
	// attempt ran, e.g. when its context is already done at startup.
	ErrNoAttempts = errors.New("no attempts produced a result")
	// ErrTaskNotFound is returned by registry queries for unknown task ids.
	ErrTaskNotFound = errors.New("object task not found")
	// ErrNoSnapshot is returned when no succeeded result exists to render.
	ErrNoSnapshot = errors.New("no snapshot available")
)
