package b2auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/prefs/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheUsable(t *testing.T) {
	exp := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		cache Cache
		now   time.Time
		want  bool
	}{
		{"before expiration", Cache{Token: "D1", Expiration: exp}, exp.Add(-time.Nanosecond), true},
		{"well before expiration", Cache{Token: "D1", Expiration: exp}, exp.Add(-time.Hour), true},
		{"at expiration", Cache{Token: "D1", Expiration: exp}, exp, false},
		{"after expiration", Cache{Token: "D1", Expiration: exp}, exp.Add(time.Nanosecond), false},
		{"no token", Cache{Expiration: exp}, exp.Add(-time.Hour), false},
		{"no expiration", Cache{Token: "D1"}, exp, false},
		{"download url alone", Cache{DownloadURL: "https://f002.example.com", Expiration: exp}, exp.Add(-time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cache.Usable(tt.now))
		})
	}
}

func TestSaveAndLoadCache(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	want := Cache{
		Token:       "D1",
		Expiration:  time.Date(2026, 10, 19, 12, 30, 0, 123, time.UTC),
		DownloadURL: "https://f002.example.com",
	}

	require.NoError(t, SaveCache(ctx, store, want))
	got, err := LoadCache(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.DownloadURL, got.DownloadURL)
	assert.True(t, want.Expiration.Equal(got.Expiration))
}

func TestLoadCacheEmptyStore(t *testing.T) {
	got, err := LoadCache(context.Background(), memory.New())
	require.NoError(t, err)
	assert.Equal(t, Cache{}, got)
	assert.False(t, got.Usable(time.Now()))
}

func TestLoadCacheBadExpiration(t *testing.T) {
	store := memory.NewWithValues(map[string]string{
		b2middleware.KeyB2DownloadAuthorizationToken: "D1",
		b2middleware.KeyB2ExpirationDate:             "2026-10-19 12:00:00 +0000",
	})
	got, err := LoadCache(context.Background(), store)
	require.NoError(t, err)
	assert.True(t, got.Expiration.IsZero())
	assert.False(t, got.Usable(time.Time{}))
}

type failingStore struct {
	b2middleware.PreferenceStore
	err error
}

func (s failingStore) GetAll(ctx context.Context, keys ...string) (map[string]string, error) {
	return nil, s.err
}

func TestLoadCacheStoreError(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := LoadCache(context.Background(), failingStore{err: boom})
	assert.ErrorIs(t, err, boom)
}
