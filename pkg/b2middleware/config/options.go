package config

import (
	"fmt"
	"time"
)

// WithDomain sets the preference domain
func WithDomain(domain string) Option {
	return func(c *Config) error {
		if domain == "" {
			return fmt.Errorf("domain cannot be empty")
		}
		c.Domain = domain
		return nil
	}
}

// WithB2Credentials sets the B2 account id and application key
func WithB2Credentials(accountID, applicationKey string) Option {
	return func(c *Config) error {
		c.B2.AccountID = accountID
		c.B2.ApplicationKey = applicationKey
		return nil
	}
}

// WithB2APIURL redirects B2 account authorization
func WithB2APIURL(apiURL string) Option {
	return func(c *Config) error {
		c.B2.APIURL = apiURL
		return nil
	}
}

// WithValidDuration sets how long B2 download tokens are requested for
func WithValidDuration(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("valid duration must be positive, got: %s", d)
		}
		c.B2.ValidDuration = d
		return nil
	}
}

// WithS3Credentials sets the S3 access key pair and region
func WithS3Credentials(accessKey, secretKey, region string) Option {
	return func(c *Config) error {
		c.S3.AccessKey = accessKey
		c.S3.SecretKey = secretKey
		c.S3.Region = region
		return nil
	}
}

// WithS3DefaultCredentials resolves S3 credentials through the AWS SDK
// default chain (environment, shared config, instance role).
func WithS3DefaultCredentials(enabled bool) Option {
	return func(c *Config) error {
		c.S3.UseDefaultCredentials = enabled
		return nil
	}
}

// WithS3Endpoint sets the host whose requests are signed
func WithS3Endpoint(endpoint string) Option {
	return func(c *Config) error {
		if endpoint == "" {
			return fmt.Errorf("s3 endpoint cannot be empty")
		}
		c.S3.Endpoint = endpoint
		return nil
	}
}

// WithS3Mode selects header signing or URL presigning
func WithS3Mode(mode string) Option {
	return func(c *Config) error {
		if mode != S3ModeHeaders && mode != S3ModePresign {
			return fmt.Errorf("s3 mode must be '%s' or '%s', got: %s", S3ModeHeaders, S3ModePresign, mode)
		}
		c.S3.Mode = mode
		return nil
	}
}

// WithPresignExpires sets the lifetime of presigned URLs
func WithPresignExpires(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("presign expiry must be positive, got: %s", d)
		}
		c.S3.PresignExpires = d
		return nil
	}
}

// WithStore configures the preference store backend
func WithStore(storeType, url string) Option {
	return func(c *Config) error {
		switch storeType {
		case StoreMemory:
			url = ""
		case StoreSQLite, StorePostgres:
			if url == "" {
				return fmt.Errorf("store URL is required for %s", storeType)
			}
		default:
			return fmt.Errorf("store type must be 'memory', 'sqlite' or 'postgres', got: %s", storeType)
		}
		c.Store = StoreConfig{Type: storeType, URL: url}
		return nil
	}
}

// WithListenAddr sets the HTTP listen address
func WithListenAddr(addr string) Option {
	return func(c *Config) error {
		if addr == "" {
			return fmt.Errorf("listen address cannot be empty")
		}
		c.ListenAddr = addr
		return nil
	}
}

// WithJWTSecret enables HS256 bearer authentication on the HTTP adapter
func WithJWTSecret(secret string) Option {
	return func(c *Config) error {
		c.JWTSecret = secret
		return nil
	}
}
