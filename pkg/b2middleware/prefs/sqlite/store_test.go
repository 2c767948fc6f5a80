package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

func openTestStore(t *testing.T, path, domain string) *Store {
	t.Helper()
	s, err := Open(path, domain)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "prefs.db"), "")
	assert.Equal(t, b2middleware.DefaultDomain, s.Domain())

	_, ok, err := s.Get(ctx, b2middleware.KeyB2AccountID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, b2middleware.KeyB2AccountID, "acct1"))
	require.NoError(t, s.Set(ctx, b2middleware.KeyB2AccountID, "acct2"))

	v, ok, err := s.Get(ctx, b2middleware.KeyB2AccountID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "acct2", v)
}

func TestStoreSetAllDurable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")

	s, err := Open(path, "ManagedInstalls")
	require.NoError(t, err)
	require.NoError(t, s.SetAll(ctx, map[string]string{
		b2middleware.KeyB2DownloadAuthorizationToken: "D1",
		b2middleware.KeyB2DownloadURL:                "https://f002.example.com",
		b2middleware.KeyB2ExpirationDate:             "2026-10-19T12:30:00Z",
	}))
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path, "ManagedInstalls")
	for key, want := range map[string]string{
		b2middleware.KeyB2DownloadAuthorizationToken: "D1",
		b2middleware.KeyB2DownloadURL:                "https://f002.example.com",
		b2middleware.KeyB2ExpirationDate:             "2026-10-19T12:30:00Z",
	} {
		got, ok, err := reopened.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
}

func TestStoreDomainsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")
	a := openTestStore(t, path, "ManagedInstalls")
	b := openTestStore(t, path, "com.example.other")

	require.NoError(t, a.Set(ctx, "Region", "us-east-1"))
	_, ok, err := b.Get(ctx, "Region")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreSetAllCanceled(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "prefs.db"), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SetAll(ctx, map[string]string{b2middleware.KeyB2DownloadAuthorizationToken: "D1"})
	assert.Error(t, err)

	_, ok, err := s.Get(context.Background(), b2middleware.KeyB2DownloadAuthorizationToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", "")
	assert.Error(t, err)
}

func TestStoreGetAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "prefs.db"), "ManagedInstalls")
	other := openTestStore(t, filepath.Join(t.TempDir(), "other.db"), "ManagedInstalls")

	require.NoError(t, s.SetAll(ctx, map[string]string{
		b2middleware.KeyB2DownloadAuthorizationToken: "D1",
		b2middleware.KeyB2DownloadURL:                "https://f002.example.com",
	}))
	require.NoError(t, other.Set(ctx, b2middleware.KeyB2ExpirationDate, "2026-10-19T12:30:00Z"))

	got, err := s.GetAll(ctx,
		b2middleware.KeyB2DownloadAuthorizationToken,
		b2middleware.KeyB2DownloadURL,
		b2middleware.KeyB2ExpirationDate,
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		b2middleware.KeyB2DownloadAuthorizationToken: "D1",
		b2middleware.KeyB2DownloadURL:                "https://f002.example.com",
	}, got)

	empty, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStoreGetAllDomainScoped(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")
	a := openTestStore(t, path, "ManagedInstalls")
	b := openTestStore(t, path, "com.example.other")

	require.NoError(t, a.Set(ctx, b2middleware.KeyS3Region, "us-east-1"))
	require.NoError(t, b.Set(ctx, b2middleware.KeyS3Region, "eu-west-1"))

	got, err := b.GetAll(ctx, b2middleware.KeyS3Region)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{b2middleware.KeyS3Region: "eu-west-1"}, got)
}
