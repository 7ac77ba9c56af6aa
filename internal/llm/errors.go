package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProvider is returned by NewClient for unknown providers.
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
	// ErrMissingAPIKey is returned when a hosted provider has no key.
	ErrMissingAPIKey = errors.New("API key is required")
	// ErrNoChoices is returned when a provider answers with no candidates.
	ErrNoChoices = errors.New("response contained no choices")
)

// TransportError reports a failed chat-completion call: network failure,
// non-success status, or an undecodable body.
type TransportError struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether the status warrants another attempt.
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// IsTransportError reports whether err is a model transport failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
