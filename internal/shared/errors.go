package shared

import (
	"fmt"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")

	// API and provider errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrRateLimited      = fmt.Errorf("rate limited")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrCardNotFound     = fmt.Errorf("card not found")

	// Per-track errors
	ErrTrackNotFound    = fmt.Errorf("track not found")
	ErrAcquisition      = fmt.Errorf("acquisition failed")
	ErrUploadFailed     = fmt.Errorf("upload failed")
	ErrTranscodeFailed  = fmt.Errorf("transcode failed")
	ErrTranscodeTimeout = fmt.Errorf("transcode timed out")

	// Card-level aggregate error
	ErrSyncFailed = fmt.Errorf("sync failed")
)

// APIKind classifies a remote API failure for retry policy decisions.
type APIKind int

const (
	// KindPermanent covers 4xx responses other than 429. Never retried.
	KindPermanent APIKind = iota
	// KindTransient covers 5xx and network failures. Retried up to a bounded attempt count.
	KindTransient
	// KindRateLimited covers 429 responses. Retried with capped backoff, never surfaced.
	KindRateLimited
)

// APIError is a remote API failure carrying its status classification and retry hint.
//
// Matched with [errors.As] to drive the retry policy, rather than a type per status code.
type APIError struct {
	Kind       APIKind
	StatusCode int
	RetryAfter time.Duration // only meaningful when Kind is KindRateLimited
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

// Unwrap maps the error onto its sentinel so callers can use [errors.Is].
func (e *APIError) Unwrap() error {
	if e.Kind == KindRateLimited {
		return ErrRateLimited
	}
	return ErrAPIRequest
}

// ClassifyStatus buckets an HTTP status code into an [APIKind].
func ClassifyStatus(status int) APIKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// NewAPIError builds an [APIError] from a status code and message.
func NewAPIError(status int, message string) *APIError {
	return &APIError{Kind: ClassifyStatus(status), StatusCode: status, Message: message}
}
