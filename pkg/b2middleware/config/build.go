package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/b2"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/b2auth"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/prefs/memory"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/prefs/postgres"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/prefs/sqlite"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/s3presign"
	"github.com/sphen13/B2-Middleware/pkg/b2middleware/sigv4"
)

// BuildStore opens the configured preference store. The returned function
// releases it.
func (c *Config) BuildStore(ctx context.Context) (b2middleware.PreferenceStore, func(), error) {
	switch c.Store.Type {
	case StoreMemory:
		return memory.New(), func() {}, nil
	case StoreSQLite:
		s, err := sqlite.Open(c.Store.URL, c.Domain)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, func() { s.Close() }, nil
	case StorePostgres:
		s, pool, err := postgres.Connect(ctx, c.Store.URL, c.Domain)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return s, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}
}

// BuildDispatcher creates a dispatcher running the B2 manager and then the
// configured S3 authorizer, both caching or reading through store.
func (c *Config) BuildDispatcher(ctx context.Context, store b2middleware.PreferenceStore, logger *slog.Logger) (*b2middleware.Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	manager := b2auth.New(store,
		b2auth.Credentials{AccountID: c.B2.AccountID, ApplicationKey: c.B2.ApplicationKey},
		b2auth.WithClient(&b2.Client{APIURL: c.B2.APIURL}),
		b2auth.WithValidDuration(c.B2.ValidDuration),
		b2auth.WithLogger(logger),
	)

	s3Auth, err := c.buildS3Authorizer(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build s3 authorizer: %w", err)
	}

	return b2middleware.New(
		b2middleware.WithAuthorizer(manager),
		b2middleware.WithAuthorizer(s3Auth),
		b2middleware.WithLogger(logger),
	), nil
}

func (c *Config) buildS3Authorizer(ctx context.Context, logger *slog.Logger) (b2middleware.Authorizer, error) {
	if c.S3.Mode != S3ModePresign {
		return c.BuildSigner(ctx, logger)
	}

	creds, region, err := c.s3Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return s3presign.New(
		s3presign.WithCredentials(creds),
		s3presign.WithRegion(region),
		s3presign.WithEndpoint(c.S3.Endpoint),
		s3presign.WithExpires(c.S3.PresignExpires),
		s3presign.WithLogger(logger),
	), nil
}

// BuildSigner creates the SigV4 header signer for the configured endpoint,
// resolving credentials the same way BuildDispatcher does.
func (c *Config) BuildSigner(ctx context.Context, logger *slog.Logger) (*sigv4.Signer, error) {
	creds, region, err := c.s3Credentials(ctx)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return sigv4.NewSigner(
		sigv4.WithCredentials(creds),
		sigv4.WithRegion(region),
		sigv4.WithEndpoint(c.S3.Endpoint),
		sigv4.WithLogger(logger),
	), nil
}

// s3Credentials returns a nil provider when no key pair is configured.
func (c *Config) s3Credentials(ctx context.Context) (aws.CredentialsProvider, string, error) {
	if !c.S3.UseDefaultCredentials {
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return nil, c.S3.Region, nil
		}
		return credentials.NewStaticCredentialsProvider(c.S3.AccessKey, c.S3.SecretKey, ""), c.S3.Region, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if c.S3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.S3.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg.Credentials, awsCfg.Region, nil
}
