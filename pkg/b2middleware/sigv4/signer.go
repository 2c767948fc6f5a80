package sigv4

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/urlref"
)

// ProviderName is reported by Signer.Name.
const ProviderName = "s3"

// Signer adds SigV4 headers to requests for hosts under its endpoint.
// It implements b2middleware.Authorizer.
type Signer struct {
	creds    aws.CredentialsProvider
	region   string
	endpoint string
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Signer
type Option func(*Signer)

// WithCredentials sets the credentials provider. It is consulted on every
// Authorize call.
func WithCredentials(p aws.CredentialsProvider) Option {
	return func(s *Signer) {
		s.creds = p
	}
}

// WithStaticCredentials signs with a fixed access key pair. A pair with an
// empty half leaves the signer unconfigured.
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(s *Signer) {
		if accessKey == "" || secretKey == "" {
			s.creds = nil
			return
		}
		s.creds = credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
	}
}

// WithRegion sets the signing region
func WithRegion(region string) Option {
	return func(s *Signer) {
		s.region = region
	}
}

// WithEndpoint sets the host whose requests are signed
func WithEndpoint(endpoint string) Option {
	return func(s *Signer) {
		s.endpoint = endpoint
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Signer) {
		s.logger = logger
	}
}

// NewSigner creates a signer. The endpoint defaults to s3.amazonaws.com.
func NewSigner(opts ...Option) *Signer {
	s := &Signer{endpoint: b2middleware.DefaultS3Endpoint}
	for _, opt := range opts {
		opt(s)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

var _ b2middleware.Authorizer = (*Signer)(nil)

// Name implements b2middleware.Authorizer
func (s *Signer) Name() string { return ProviderName }

// Endpoint returns the host the signer matches
func (s *Signer) Endpoint() string { return s.endpoint }

// Matches implements b2middleware.Authorizer. Hosts equal to the endpoint or
// under it match.
func (s *Signer) Matches(target *url.URL) bool {
	return target != nil && urlref.HostMatches(target.Host, s.endpoint)
}

// Authorize implements b2middleware.Authorizer. The URL is left unchanged.
func (s *Signer) Authorize(ctx context.Context, target *url.URL) (*b2middleware.Result, error) {
	fail := func(op string, err error) error {
		return &b2middleware.AuthorizationError{Provider: ProviderName, Op: op, URL: target.Redacted(), Err: err}
	}

	if s.creds == nil || s.region == "" {
		return nil, fail("sign", fmt.Errorf("%w: need %s, %s and %s", b2middleware.ErrNotConfigured,
			b2middleware.KeyS3AccessKey, b2middleware.KeyS3SecretKey, b2middleware.KeyS3Region))
	}
	creds, err := s.creds.Retrieve(ctx)
	if err != nil {
		return nil, fail("credentials", err)
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, fail("credentials", fmt.Errorf("%w: empty access key pair", b2middleware.ErrNotConfigured))
	}
	if target.Host == "" {
		return nil, fail("sign", fmt.Errorf("%w: no host", b2middleware.ErrMalformedURL))
	}

	headers := Sign(Input{
		AccessKey:    creds.AccessKeyID,
		SecretKey:    creds.SecretAccessKey,
		SessionToken: creds.SessionToken,
		Region:       s.region,
		Host:         target.Host,
		Path:         target.EscapedPath(),
		Time:         s.now(),
	})
	s.logger.DebugContext(ctx, "Signed S3 request", "host", target.Host, "region", s.region)
	return &b2middleware.Result{Headers: headers}, nil
}
