package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider failures for callers that must decide whether a
// retry could help. Both kinds are compensated the same way by the chat path.
type Kind int

const (
	// Transient covers rate limits, 5xx responses, timeouts and transport errors.
	Transient Kind = iota + 1
	// Permanent covers rejected requests, blocked prompts, malformed responses
	// and missing configuration.
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	}
	return "unknown"
}

// ProviderError is the only error shape the client returns. Fallback always
// holds a canned reply for the message that failed.
type ProviderError struct {
	Kind     Kind
	Status   int // HTTP status from the provider, 0 for transport failures
	Model    string
	Fallback string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("llm %s error (model=%s status=%d): %v", e.Kind, e.Model, e.Status, e.Err)
	}
	return fmt.Sprintf("llm %s error (model=%s): %v", e.Kind, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RateLimited reports whether the final failure was an HTTP 429.
func (e *ProviderError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

// AsProviderError extracts a *ProviderError from err.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ErrNotConfigured is wrapped when no API key is set.
var ErrNotConfigured = errors.New("llm: api key not configured")

func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return Transient
	default:
		return Permanent
	}
}
