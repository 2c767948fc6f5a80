package b2auth

import (
	"context"
	"fmt"
	"time"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

// Cache is the cached download authorization. Its three fields are only
// ever written together, by SaveCache.
type Cache struct {
	Token       string
	Expiration  time.Time
	DownloadURL string
}

// Usable reports whether the token may be served at now: it must be present
// and now must be strictly before the expiration.
func (c Cache) Usable(now time.Time) bool {
	return c.Token != "" && now.Before(c.Expiration)
}

// LoadCache reads the cache from store in one GetAll, so a concurrent
// SaveCache is seen entirely or not at all. An absent or unparseable
// expiration yields a zero Expiration, which is never usable.
func LoadCache(ctx context.Context, store b2middleware.PreferenceStore) (Cache, error) {
	values, err := store.GetAll(ctx,
		b2middleware.KeyB2DownloadAuthorizationToken,
		b2middleware.KeyB2DownloadURL,
		b2middleware.KeyB2ExpirationDate,
	)
	if err != nil {
		return Cache{}, fmt.Errorf("reading cached authorization: %w", err)
	}

	c := Cache{
		Token:       values[b2middleware.KeyB2DownloadAuthorizationToken],
		DownloadURL: values[b2middleware.KeyB2DownloadURL],
	}
	if exp, ok := values[b2middleware.KeyB2ExpirationDate]; ok {
		if t, perr := time.Parse(time.RFC3339Nano, exp); perr == nil {
			c.Expiration = t
		}
	}
	return c, nil
}

// SaveCache writes all three fields of c in one SetAll call.
func SaveCache(ctx context.Context, store b2middleware.PreferenceStore, c Cache) error {
	return store.SetAll(ctx, map[string]string{
		b2middleware.KeyB2ExpirationDate:             c.Expiration.UTC().Format(time.RFC3339Nano),
		b2middleware.KeyB2DownloadURL:                c.DownloadURL,
		b2middleware.KeyB2DownloadAuthorizationToken: c.Token,
	})
}
