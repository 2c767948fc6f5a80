package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

// Store types
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// S3 authorization modes
const (
	S3ModeHeaders = "headers"
	S3ModePresign = "presign"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Domain: b2middleware.DefaultDomain,
		B2: B2Config{
			ValidDuration: b2middleware.DefaultValidDurationSeconds * time.Second,
		},
		S3: S3Config{
			Endpoint: b2middleware.DefaultS3Endpoint,
			Mode:     S3ModeHeaders,
		},
		Store:      StoreConfig{Type: StoreMemory},
		ListenAddr: ":8080",
	}
}

// Config is the middleware configuration. Missing credentials are not a
// configuration error: the affected authorizer reports ErrNotConfigured
// per request and the request passes through.
type Config struct {
	// Domain scopes preference keys, as in ManagedInstalls.
	Domain string

	B2    B2Config
	S3    S3Config
	Store StoreConfig

	// HTTP adapter
	ListenAddr string
	JWTSecret  string // empty disables bearer authentication
}

// B2Config configures the B2 token lifecycle manager
type B2Config struct {
	AccountID      string
	ApplicationKey string
	ValidDuration  time.Duration
	APIURL         string // empty means the public B2 API
}

// S3Config configures S3 request authorization
type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Mode      string // "headers", "presign"

	// UseDefaultCredentials resolves credentials through the AWS SDK
	// default chain instead of AccessKey/SecretKey.
	UseDefaultCredentials bool
	PresignExpires        time.Duration
}

// StoreConfig selects the preference store backend
type StoreConfig struct {
	Type string // "memory", "sqlite", "postgres"
	URL  string // sqlite file path or postgres connection string
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Domain == "" {
		return errors.New("domain is required")
	}
	if c.B2.ValidDuration <= 0 {
		return fmt.Errorf("b2 valid duration must be positive, got %s", c.B2.ValidDuration)
	}
	if c.S3.Endpoint == "" {
		return errors.New("s3 endpoint is required")
	}
	if c.S3.Mode != S3ModeHeaders && c.S3.Mode != S3ModePresign {
		return fmt.Errorf("s3 mode must be '%s' or '%s', got: %s", S3ModeHeaders, S3ModePresign, c.S3.Mode)
	}
	switch c.Store.Type {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.Store.URL == "" {
			return fmt.Errorf("store url is required when using %s", c.Store.Type)
		}
	default:
		return fmt.Errorf("store type must be 'memory', 'sqlite' or 'postgres', got: %s", c.Store.Type)
	}
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	return nil
}
