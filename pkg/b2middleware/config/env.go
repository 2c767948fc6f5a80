package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/sphen13/B2-Middleware/pkg/b2middleware"
)

// Settings is the flat form of Config read from files and the environment.
// Zero fields leave the corresponding Config value untouched.
//
// Environment variables:
//
//	PREFS_DOMAIN               preference domain (default "ManagedInstalls")
//	B2_ACCOUNT_ID              B2 account or application key id
//	B2_APPLICATION_KEY         B2 application key
//	B2_VALID_DURATION          download token validity in seconds (default 1800)
//	B2_API_URL                 B2 account authorization base URL
//	S3_ACCESS_KEY              S3 access key id
//	S3_SECRET_KEY              S3 secret key
//	S3_REGION                  S3 signing region
//	S3_ENDPOINT                S3 endpoint host (default "s3.amazonaws.com")
//	S3_MODE                    "headers" or "presign"
//	S3_USE_DEFAULT_CREDENTIALS use the AWS SDK credential chain
//	S3_PRESIGN_EXPIRES         presigned URL lifetime in seconds
//	STORE_URL                  "memory", "sqlite:///path/prefs.db" or "postgres://..."
//	LISTEN_ADDR                HTTP listen address (default ":8080")
//	JWT_SECRET                 HS256 secret guarding the HTTP adapter
type Settings struct {
	Domain string `yaml:"domain" json:"domain" toml:"domain" env:"PREFS_DOMAIN"`

	B2AccountID      string `yaml:"b2_account_id" json:"b2_account_id" toml:"b2_account_id" env:"B2_ACCOUNT_ID"`
	B2ApplicationKey string `yaml:"b2_application_key" json:"b2_application_key" toml:"b2_application_key" env:"B2_APPLICATION_KEY"`
	B2ValidDuration  int    `yaml:"b2_valid_duration" json:"b2_valid_duration" toml:"b2_valid_duration" env:"B2_VALID_DURATION"`
	B2APIURL         string `yaml:"b2_api_url" json:"b2_api_url" toml:"b2_api_url" env:"B2_API_URL"`

	S3AccessKey             string `yaml:"s3_access_key" json:"s3_access_key" toml:"s3_access_key" env:"S3_ACCESS_KEY"`
	S3SecretKey             string `yaml:"s3_secret_key" json:"s3_secret_key" toml:"s3_secret_key" env:"S3_SECRET_KEY"`
	S3Region                string `yaml:"s3_region" json:"s3_region" toml:"s3_region" env:"S3_REGION"`
	S3Endpoint              string `yaml:"s3_endpoint" json:"s3_endpoint" toml:"s3_endpoint" env:"S3_ENDPOINT"`
	S3Mode                  string `yaml:"s3_mode" json:"s3_mode" toml:"s3_mode" env:"S3_MODE"`
	S3UseDefaultCredentials bool   `yaml:"s3_use_default_credentials" json:"s3_use_default_credentials" toml:"s3_use_default_credentials" env:"S3_USE_DEFAULT_CREDENTIALS"`
	S3PresignExpires        int    `yaml:"s3_presign_expires" json:"s3_presign_expires" toml:"s3_presign_expires" env:"S3_PRESIGN_EXPIRES"`

	StoreURL   string `yaml:"store_url" json:"store_url" toml:"store_url" env:"STORE_URL"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr" toml:"listen_addr" env:"LISTEN_ADDR"`
	JWTSecret  string `yaml:"jwt_secret" json:"jwt_secret" toml:"jwt_secret" env:"JWT_SECRET"`
}

// WithEnv applies environment variable overrides. See Settings for the
// variable names.
func WithEnv() Option {
	return func(c *Config) error {
		var s Settings
		if err := cleanenv.ReadEnv(&s); err != nil {
			return fmt.Errorf("reading environment: %w", err)
		}
		return s.apply(c)
	}
}

// WithFile applies settings from a YAML, JSON, TOML or .env file. As with
// cleanenv.ReadConfig, environment variables override the file.
func WithFile(path string) Option {
	return func(c *Config) error {
		var s Settings
		if err := cleanenv.ReadConfig(path, &s); err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		return s.apply(c)
	}
}

// WithPreferences applies the credential and endpoint keys found in store.
func WithPreferences(ctx context.Context, store b2middleware.PreferenceStore) Option {
	return func(c *Config) error {
		values, err := store.GetAll(ctx,
			b2middleware.KeyB2AccountID,
			b2middleware.KeyB2ApplicationKey,
			b2middleware.KeyB2ValidDuration,
			b2middleware.KeyS3AccessKey,
			b2middleware.KeyS3SecretKey,
			b2middleware.KeyS3Region,
			b2middleware.KeyS3Endpoint,
		)
		if err != nil {
			return fmt.Errorf("reading preferences: %w", err)
		}

		s := Settings{
			B2AccountID:      values[b2middleware.KeyB2AccountID],
			B2ApplicationKey: values[b2middleware.KeyB2ApplicationKey],
			S3AccessKey:      values[b2middleware.KeyS3AccessKey],
			S3SecretKey:      values[b2middleware.KeyS3SecretKey],
			S3Region:         values[b2middleware.KeyS3Region],
			S3Endpoint:       values[b2middleware.KeyS3Endpoint],
		}
		if v := values[b2middleware.KeyB2ValidDuration]; v != "" {
			if s.B2ValidDuration, err = strconv.Atoi(v); err != nil {
				return fmt.Errorf("invalid integer for preference %s: %w", b2middleware.KeyB2ValidDuration, err)
			}
		}
		return s.apply(c)
	}
}

func (s Settings) apply(c *Config) error {
	setString(&c.Domain, s.Domain)
	setString(&c.B2.AccountID, s.B2AccountID)
	setString(&c.B2.ApplicationKey, s.B2ApplicationKey)
	setString(&c.B2.APIURL, s.B2APIURL)
	if s.B2ValidDuration != 0 {
		if s.B2ValidDuration < 0 {
			return fmt.Errorf("b2 valid duration must be positive, got: %d", s.B2ValidDuration)
		}
		c.B2.ValidDuration = time.Duration(s.B2ValidDuration) * time.Second
	}

	setString(&c.S3.AccessKey, s.S3AccessKey)
	setString(&c.S3.SecretKey, s.S3SecretKey)
	setString(&c.S3.Region, s.S3Region)
	setString(&c.S3.Endpoint, s.S3Endpoint)
	setString(&c.S3.Mode, s.S3Mode)
	if s.S3UseDefaultCredentials {
		c.S3.UseDefaultCredentials = true
	}
	if s.S3PresignExpires > 0 {
		c.S3.PresignExpires = time.Duration(s.S3PresignExpires) * time.Second
	}

	if s.StoreURL != "" {
		store, err := parseStoreURL(s.StoreURL)
		if err != nil {
			return err
		}
		c.Store = store
	}
	setString(&c.ListenAddr, s.ListenAddr)
	setString(&c.JWTSecret, s.JWTSecret)
	return nil
}

// parseStoreURL infers the store type from its URL.
func parseStoreURL(raw string) (StoreConfig, error) {
	switch {
	case raw == "memory" || raw == "memory://":
		return StoreConfig{Type: StoreMemory}, nil
	case strings.HasPrefix(raw, "postgresql://"), strings.HasPrefix(raw, "postgres://"):
		return StoreConfig{Type: StorePostgres, URL: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return StoreConfig{}, fmt.Errorf("sqlite path cannot be empty in STORE_URL")
		}
		return StoreConfig{Type: StoreSQLite, URL: path}, nil
	}
	return StoreConfig{}, fmt.Errorf("unsupported STORE_URL format: %s (use 'memory', 'sqlite:///path' or 'postgres://...')", raw)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
