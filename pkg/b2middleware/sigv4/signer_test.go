package sigv4

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestSignerMatches(t *testing.T) {
	s := NewSigner()
	assert.Equal(t, "s3.amazonaws.com", s.Endpoint())

	assert.True(t, s.Matches(mustURL(t, "https://s3.amazonaws.com/repo/app.pkg")))
	assert.True(t, s.Matches(mustURL(t, "https://repo.s3.amazonaws.com/app.pkg")))
	assert.True(t, s.Matches(mustURL(t, "https://S3.AmazonAWS.com:443/repo/app.pkg")))
	assert.False(t, s.Matches(mustURL(t, "https://b2/repo/app.pkg")))
	assert.False(t, s.Matches(mustURL(t, "https://evils3.amazonaws.com.example.org/app.pkg")))
	assert.False(t, s.Matches(mustURL(t, "/relative/path")))

	custom := NewSigner(WithEndpoint("minio.internal:9000"))
	assert.True(t, custom.Matches(mustURL(t, "http://minio.internal:9000/repo/app.pkg")))
	assert.False(t, custom.Matches(mustURL(t, "http://minio.internal:9001/repo/app.pkg")))
}

func TestSignerAuthorize(t *testing.T) {
	s := NewSigner(
		WithStaticCredentials(exampleAccessKey, exampleSecretKey),
		WithRegion("us-east-1"),
		WithClock(func() time.Time { return exampleTime }),
	)

	res, err := s.Authorize(context.Background(), mustURL(t, "https://examplebucket.s3.amazonaws.com/test.txt"))
	require.NoError(t, err)
	assert.Empty(t, res.URL)
	assert.Equal(t, Sign(exampleInput()), res.Headers)
}

func TestSignerSessionCredentials(t *testing.T) {
	s := NewSigner(
		WithCredentials(credentials.NewStaticCredentialsProvider(exampleAccessKey, exampleSecretKey, "SESSIONTOKEN")),
		WithRegion("us-east-1"),
		WithClock(func() time.Time { return exampleTime }),
	)

	res, err := s.Authorize(context.Background(), mustURL(t, "https://examplebucket.s3.amazonaws.com/test.txt"))
	require.NoError(t, err)
	assert.Equal(t, "SESSIONTOKEN", res.Headers[HeaderSecurityToken])
	assert.Contains(t, res.Headers[HeaderAuthorization], "SignedHeaders="+SignedHeadersWithToken+",")

	in := exampleInput()
	in.SessionToken = "SESSIONTOKEN"
	assert.Equal(t, Sign(in), res.Headers)
}

func TestSignerNotConfigured(t *testing.T) {
	target := "https://examplebucket.s3.amazonaws.com/test.txt"
	tests := []struct {
		name string
		opts []Option
	}{
		{"no credentials", []Option{WithRegion("us-east-1")}},
		{"no region", []Option{WithStaticCredentials(exampleAccessKey, exampleSecretKey)}},
		{"empty secret", []Option{WithStaticCredentials(exampleAccessKey, ""), WithRegion("us-east-1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSigner(tt.opts...).Authorize(context.Background(), mustURL(t, target))
			assert.ErrorIs(t, err, b2middleware.ErrNotConfigured)
		})
	}
}

func TestSignerCredentialsError(t *testing.T) {
	boom := errors.New("metadata service unavailable")
	s := NewSigner(
		WithCredentials(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{}, boom
		})),
		WithRegion("us-east-1"),
	)
	_, err := s.Authorize(context.Background(), mustURL(t, "https://s3.amazonaws.com/repo/app.pkg"))
	assert.ErrorIs(t, err, boom)

	var authErr *b2middleware.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "s3", authErr.Provider)
}

func TestSignerMissingHost(t *testing.T) {
	s := NewSigner(WithStaticCredentials(exampleAccessKey, exampleSecretKey), WithRegion("us-east-1"))
	_, err := s.Authorize(context.Background(), mustURL(t, "/repo/app.pkg"))
	assert.ErrorIs(t, err, b2middleware.ErrMalformedURL)
}
