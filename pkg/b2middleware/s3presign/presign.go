// Package s3presign authorizes S3 object URLs by rewriting them to
// query-signed (presigned) GET URLs. It is the alternative to header
// signing for fetchers that cannot send extra headers.
package s3presign

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/urlref"
)

// ProviderName is reported by Authorizer.Name.
const ProviderName = "s3-presign"

// DefaultExpires is how long presigned URLs stay valid by default.
const DefaultExpires = 15 * time.Minute

// Authorizer rewrites URLs under its endpoint to presigned GET URLs.
type Authorizer struct {
	creds    aws.CredentialsProvider
	region   string
	endpoint string
	expires  time.Duration
	logger   *slog.Logger
}

// Option configures an Authorizer
type Option func(*Authorizer)

// WithCredentials sets the credentials provider
func WithCredentials(p aws.CredentialsProvider) Option {
	return func(a *Authorizer) {
		a.creds = p
	}
}

// WithStaticCredentials presigns with a fixed access key pair
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(a *Authorizer) {
		if accessKey == "" || secretKey == "" {
			a.creds = nil
			return
		}
		a.creds = credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
	}
}

// WithRegion sets the signing region
func WithRegion(region string) Option {
	return func(a *Authorizer) {
		a.region = region
	}
}

// WithEndpoint sets the S3 endpoint host
func WithEndpoint(endpoint string) Option {
	return func(a *Authorizer) {
		a.endpoint = endpoint
	}
}

// WithExpires sets the lifetime of presigned URLs
func WithExpires(d time.Duration) Option {
	return func(a *Authorizer) {
		a.expires = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) {
		a.logger = logger
	}
}

// New creates a presigning authorizer
func New(opts ...Option) *Authorizer {
	a := &Authorizer{endpoint: b2middleware.DefaultS3Endpoint}
	for _, opt := range opts {
		opt(a)
	}
	if a.expires <= 0 {
		a.expires = DefaultExpires
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

var _ b2middleware.Authorizer = (*Authorizer)(nil)

// Name implements b2middleware.Authorizer
func (a *Authorizer) Name() string { return ProviderName }

// Matches implements b2middleware.Authorizer
func (a *Authorizer) Matches(target *url.URL) bool {
	return target != nil && urlref.HostMatches(target.Host, a.endpoint)
}

// Object identifies an S3 object addressed by a URL.
type Object struct {
	Bucket    string
	Key       string
	PathStyle bool
}

// ObjectFromURL extracts bucket and key from a path-style
// (endpoint/bucket/key) or virtual-hosted (bucket.endpoint/key) URL.
func ObjectFromURL(target *url.URL, endpoint string) (Object, error) {
	host := strings.ToLower(target.Hostname())
	ep := strings.ToLower(endpoint)
	if h, _, found := strings.Cut(ep, ":"); found {
		ep = h
	}

	if host == ep {
		bucket, key, _ := strings.Cut(strings.TrimPrefix(target.Path, "/"), "/")
		if bucket == "" || key == "" {
			return Object{}, fmt.Errorf("%w: need /<bucket>/<key> in %q", b2middleware.ErrMalformedURL, target.Redacted())
		}
		return Object{Bucket: bucket, Key: key, PathStyle: true}, nil
	}

	bucket, ok := strings.CutSuffix(host, "."+ep)
	key := strings.TrimPrefix(target.Path, "/")
	if !ok || bucket == "" || key == "" {
		return Object{}, fmt.Errorf("%w: need <bucket>.%s/<key> in %q", b2middleware.ErrMalformedURL, endpoint, target.Redacted())
	}
	return Object{Bucket: bucket, Key: key}, nil
}

// Authorize implements b2middleware.Authorizer. The result carries the
// presigned URL and any headers the signature covers besides Host.
func (a *Authorizer) Authorize(ctx context.Context, target *url.URL) (*b2middleware.Result, error) {
	fail := func(op string, err error) error {
		return &b2middleware.AuthorizationError{Provider: ProviderName, Op: op, URL: target.Redacted(), Err: err}
	}
	if a.creds == nil || a.region == "" {
		return nil, fail("presign", fmt.Errorf("%w: need %s, %s and %s", b2middleware.ErrNotConfigured,
			b2middleware.KeyS3AccessKey, b2middleware.KeyS3SecretKey, b2middleware.KeyS3Region))
	}

	obj, err := ObjectFromURL(target, a.endpoint)
	if err != nil {
		return nil, fail("parse", err)
	}

	scheme := target.Scheme
	if scheme == "" {
		scheme = "https"
	}
	endpointHost := a.endpoint
	if _, port, found := strings.Cut(target.Host, ":"); found && !strings.Contains(endpointHost, ":") {
		endpointHost += ":" + port
	}

	client := s3.New(s3.Options{
		Region:       a.region,
		Credentials:  a.creds,
		BaseEndpoint: aws.String(scheme + "://" + endpointHost),
		UsePathStyle: obj.PathStyle,
	})
	presigner := s3.NewPresignClient(client, s3.WithPresignExpires(a.expires))

	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return nil, fail("presign", err)
	}

	headers := make(map[string]string)
	for name, values := range req.SignedHeader {
		if strings.EqualFold(name, "Host") || len(values) == 0 {
			continue
		}
		headers[name] = values[0]
	}
	a.logger.DebugContext(ctx, "Presigned S3 request", "bucket", obj.Bucket, "expires", a.expires)
	return &b2middleware.Result{URL: req.URL, Headers: headers}, nil
}
