package imagegen

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"spellforge/poll"
)

var (
	// ErrUnsupported is returned for an operation a backend cannot perform.
	ErrUnsupported = errors.New("imagegen: operation not supported by provider")

	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("imagegen: invalid request")

	// ErrTimeout matches every wait that ran past Options.Timeout.
	ErrTimeout = poll.ErrTimeout

	// ErrNoImages is returned when a backend reports success without images.
	ErrNoImages = errors.New("imagegen: backend returned no images")
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// APIError is a non-2xx response from a backend.
type APIError struct {
	Provider   ProviderID
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("imagegen: %s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("imagegen: %s returned status %d: %s", e.Provider, e.StatusCode, body)
}

// Retryable reports whether the status suggests a later retry may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CheckResponse returns an *APIError for a non-2xx response. The body is
// read (bounded) but not closed.
func CheckResponse(provider ProviderID, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(body)}
}
