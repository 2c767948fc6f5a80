package b2middleware

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrNotConfigured indicates required credentials are missing. No network
	// call was attempted.
	ErrNotConfigured = errors.New("credentials not configured")

	// ErrNotAuthorized indicates the provider rejected the account
	// credentials or could not be reached to authorize them.
	ErrNotAuthorized = errors.New("account not authorized")

	// ErrBucketNotFound indicates the target bucket could not be resolved
	// to a bucket id.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrTokenNotIssued indicates the provider did not issue a download
	// authorization token.
	ErrTokenNotIssued = errors.New("download authorization not issued")

	// ErrMalformedURL indicates the target URL lacks a part the authorizer
	// needs, such as a host or a bucket segment.
	ErrMalformedURL = errors.New("malformed target url")
)

// AuthorizationError represents a failed authorization attempt
type AuthorizationError struct {
	Provider string
	Op       string
	URL      string
	Err      error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s authorization %s failed for %s: %v", e.Provider, e.Op, e.URL, e.Err)
}

func (e *AuthorizationError) Unwrap() error {
	return e.Err
}
