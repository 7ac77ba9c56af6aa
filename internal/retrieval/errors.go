package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResult means a fetch succeeded but parsing found nothing usable.
	// It is never retried and never cached.
	ErrEmptyResult = errors.New("no results found")

	// ErrInvalidTarget is returned for empty queries and unusable URLs.
	ErrInvalidTarget = errors.New("invalid retrieval target")
)

// TransientError wraps a network or browser failure of one attempt.
type TransientError struct {
	Strategy string
	Attempt  int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s attempt %d: %v", e.Strategy, e.Attempt, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
