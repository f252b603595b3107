package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrInvalidPayload   = fmt.Errorf("invalid event payload")
	ErrTokenMalformed   = fmt.Errorf("token malformed")
	ErrTokenExpired     = fmt.Errorf("token expired")
	ErrEmptyMessage     = fmt.Errorf("message is empty")
	ErrMessageTooLong   = fmt.Errorf("message too long")
	ErrIneligibleDomain = fmt.Errorf("email domain not eligible")
	ErrInvalidEventCode = fmt.Errorf("invalid event code")
	ErrTermsNotAccepted = fmt.Errorf("terms must be accepted")
	ErrPersistence      = fmt.Errorf("message store unavailable")
)

// RateLimited rejects a post made before the identity's cooldown elapsed.
// Remaining is non-negative and never exceeds the configured cooldown.
type RateLimited struct {
	Remaining time.Duration
}

func (e RateLimited) Error() string {
	return fmt.Sprintf("cooldown active, retry in %s", e.Remaining)
}

// DisallowedLink rejects a message containing a URL outside the whitelist.
// The offending URL is carried so the caller can correct its input.
type DisallowedLink struct {
	URL string
}

func (e DisallowedLink) Error() string {
	return fmt.Sprintf("link not allowed: %s", e.URL)
}

// Is lets errors.Is match any DisallowedLink regardless of the URL.
func (e DisallowedLink) Is(target error) bool {
	_, ok := target.(DisallowedLink)
	return ok
}

// HTTPStatus maps admission errors to HTTP status codes at the transport edge.
// Every rejection here is an expected outcome, not a server fault; only
// ErrPersistence surfaces as a retryable 5xx.
func HTTPStatus(err error) int {
	var rateLimited RateLimited
	var disallowed DisallowedLink
	switch {
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrTokenExpired):
		return 401
	case errors.As(err, &rateLimited):
		return 429
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMessageTooLong), errors.As(err, &disallowed):
		return 422
	case errors.Is(err, ErrIneligibleDomain), errors.Is(err, ErrInvalidEventCode),
		errors.Is(err, ErrTermsNotAccepted), errors.Is(err, ErrInvalidPayload):
		return 400
	case errors.Is(err, ErrPersistence):
		return 500
	default:
		return 500
	}
}
