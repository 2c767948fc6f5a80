package b2middleware

import (
	"context"
	"net/url"
)

// Authorizer decides whether a target URL belongs to its provider and, if so,
// produces the rewritten URL and headers that authorize fetching it.
type Authorizer interface {
	// Name identifies the provider in logs, e.g. "b2" or "s3".
	Name() string

	// Matches reports whether target is handled by this authorizer.
	Matches(target *url.URL) bool

	// Authorize returns the authorization for target. Implementations must
	// not mutate target.
	Authorize(ctx context.Context, target *url.URL) (*Result, error)
}

// PreferenceStore is a keyed, durable settings store scoped to one
// configuration domain. Get reports ok=false for absent keys.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error

	// GetAll reads keys as one unit and returns the ones present. A
	// concurrent SetAll is observed entirely or not at all.
	GetAll(ctx context.Context, keys ...string) (map[string]string, error)

	// SetAll writes every pair as one unit: readers observe either all of
	// the new values or none of them.
	SetAll(ctx context.Context, values map[string]string) error
}
