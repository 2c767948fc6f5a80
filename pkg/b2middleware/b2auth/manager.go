// Package b2auth manages the lifecycle of B2 download authorization tokens.
//
// A Manager serves the token cached in a PreferenceStore while it is valid
// and otherwise runs the refresh sequence: authorize the account, resolve
// the bucket name to an id (unless the key is restricted to one bucket),
// issue a download authorization for the whole bucket, and persist the
// result. A stale cache triggers exactly one refresh attempt per call;
// failures are returned, not retried.
package b2auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/b2"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/urlref"
)

// ProviderName is reported by Manager.Name.
const ProviderName = "b2"

// DefaultValidDuration is used when no validity duration is configured.
const DefaultValidDuration = b2middleware.DefaultValidDurationSeconds * time.Second

// refreshTimeout bounds one shared refresh sequence.
const refreshTimeout = time.Minute

// Credentials are the account credentials a refresh authorizes with.
type Credentials struct {
	AccountID      string
	ApplicationKey string
}

// Configured reports whether both fields are set.
func (c Credentials) Configured() bool {
	return c.AccountID != "" && c.ApplicationKey != ""
}

// Manager is the B2 token lifecycle manager. It implements
// b2middleware.Authorizer for b2 marker URLs.
type Manager struct {
	client *b2.Client
	store  b2middleware.PreferenceStore
	creds  Credentials
	valid  time.Duration
	now    func() time.Time
	logger *slog.Logger

	flight singleflight.Group
}

// Option represents a functional option for configuring the manager
type Option func(*Manager)

// WithClient sets the B2 API client
func WithClient(c *b2.Client) Option {
	return func(m *Manager) {
		m.client = c
	}
}

// WithValidDuration sets how long issued tokens stay valid.
// Non-positive durations select DefaultValidDuration.
func WithValidDuration(d time.Duration) Option {
	return func(m *Manager) {
		m.valid = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a manager caching tokens in store.
func New(store b2middleware.PreferenceStore, creds Credentials, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		creds: creds,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.client == nil {
		m.client = &b2.Client{}
	}
	if m.valid <= 0 {
		m.valid = DefaultValidDuration
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

var _ b2middleware.Authorizer = (*Manager)(nil)

// Name implements b2middleware.Authorizer
func (m *Manager) Name() string { return ProviderName }

// Matches implements b2middleware.Authorizer. It accepts b2 marker URLs.
func (m *Manager) Matches(target *url.URL) bool {
	return urlref.IsB2(target)
}

// Authorize implements b2middleware.Authorizer. It rewrites target to
// <download url>/file/<bucket><object path> and returns the download token
// as the Authorization header.
func (m *Manager) Authorize(ctx context.Context, target *url.URL) (*b2middleware.Result, error) {
	ref, err := urlref.FromURL(target)
	if err != nil {
		return nil, &b2middleware.AuthorizationError{Provider: ProviderName, Op: "parse", URL: target.Redacted(), Err: err}
	}
	c, err := m.Grant(ctx, ref.Bucket)
	if err != nil {
		return nil, &b2middleware.AuthorizationError{Provider: ProviderName, Op: "grant", URL: target.Redacted(), Err: err}
	}
	return &b2middleware.Result{
		URL:     urlref.DownloadURL(c.DownloadURL, ref.Bucket, ref.ObjectPath),
		Headers: map[string]string{"Authorization": c.Token},
	}, nil
}

// Grant returns a usable cache for bucket, refreshing it if the stored one
// is not usable.
func (m *Manager) Grant(ctx context.Context, bucket string) (Cache, error) {
	if !m.creds.Configured() {
		return Cache{}, fmt.Errorf("%w: need %s and %s", b2middleware.ErrNotConfigured,
			b2middleware.KeyB2AccountID, b2middleware.KeyB2ApplicationKey)
	}

	c, err := LoadCache(ctx, m.store)
	if err != nil {
		return Cache{}, fmt.Errorf("loading cached token: %w", err)
	}
	if c.Usable(m.now()) {
		return c, nil
	}

	// Concurrent callers in this process share one refresh. It runs
	// detached from any one caller's cancellation and first re-reads the
	// cache, which a refresh finishing meanwhile may have filled.
	ch := m.flight.DoChan(bucket, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		if c, err := LoadCache(fctx, m.store); err == nil && c.Usable(m.now()) {
			return c, nil
		}
		return m.refresh(fctx, bucket)
	})

	select {
	case <-ctx.Done():
		return Cache{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Cache{}, r.Err
		}
		return r.Val.(Cache), nil
	}
}

func (m *Manager) refresh(ctx context.Context, bucket string) (Cache, error) {
	start := m.now()
	m.logger.InfoContext(ctx, "Refreshing B2 download authorization", "bucket", bucket)

	acct, err := m.client.AuthorizeAccount(ctx, m.creds.AccountID, m.creds.ApplicationKey)
	if err != nil {
		return Cache{}, fmt.Errorf("%w: %w", b2middleware.ErrNotAuthorized, err)
	}

	bucketID, err := m.resolveBucket(ctx, acct, bucket)
	if err != nil {
		return Cache{}, err
	}

	if caps := acct.Allowed.Capabilities; caps != 0 && !caps.Has(b2.CapShareFiles) {
		return Cache{}, fmt.Errorf("%w: key capabilities %q lack shareFiles", b2middleware.ErrTokenNotIssued, caps.String())
	}

	auth, err := acct.GetDownloadAuthorization(ctx, bucketID, "", m.valid)
	if err != nil {
		return Cache{}, fmt.Errorf("%w: %w", b2middleware.ErrTokenNotIssued, err)
	}
	if auth.AuthorizationToken == "" {
		return Cache{}, fmt.Errorf("%w: empty token for bucket %q", b2middleware.ErrTokenNotIssued, bucket)
	}

	c := Cache{
		Token:       auth.AuthorizationToken,
		Expiration:  start.Add(m.valid),
		DownloadURL: acct.DownloadURL,
	}
	if err := SaveCache(ctx, m.store, c); err != nil {
		// The token is still good for this call.
		m.logger.ErrorContext(ctx, "Failed to persist B2 download authorization", "bucket", bucket, "error", err)
	}
	return c, nil
}

func (m *Manager) resolveBucket(ctx context.Context, acct *b2.Account, bucket string) (string, error) {
	allowed := acct.Allowed
	if allowed.BucketID != "" {
		if allowed.BucketName != "" && allowed.BucketName != bucket {
			return "", fmt.Errorf("%w: key is restricted to bucket %q, not %q",
				b2middleware.ErrBucketNotFound, allowed.BucketName, bucket)
		}
		return allowed.BucketID, nil
	}

	b, err := acct.FindBucket(ctx, bucket)
	if err != nil {
		if errors.Is(err, b2middleware.ErrBucketNotFound) {
			return "", err
		}
		return "", fmt.Errorf("listing buckets: %w", err)
	}
	return b.ID, nil
}
