package scoring

import "errors"

var (
	// ErrStoreUnavailable wraps any failure of the score store.
	ErrStoreUnavailable = errors.New("score store unavailable")
	// ErrUnknownCandidate is returned when an answer's opinion has no candidate.
	ErrUnknownCandidate = errors.New("opinion has no candidate")
)
