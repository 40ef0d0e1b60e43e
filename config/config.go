package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Minio  MinioConfig
	Auth   AuthConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int `envconfig:"PORT" default:"8080"`
}

// DBConfig holds database configuration. When URL is set the service runs
// against Postgres; otherwise it uses a local SQLite file.
type DBConfig struct {
	URL  string `envconfig:"DATABASE_URL"`
	Path string `envconfig:"DB_PATH" default:"/data/vidtube.db"`
}

// MinioConfig holds object-storage configuration.
type MinioConfig struct {
	Endpoint      string        `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey     string        `envconfig:"MINIO_ACCESS_KEY" default:"vidtube"`
	SecretKey     string        `envconfig:"MINIO_SECRET_KEY" required:"true"`
	Bucket        string        `envconfig:"MINIO_BUCKET" default:"media"`
	UseSSL        bool          `envconfig:"MINIO_USE_SSL" default:"false"`
	PublicBaseURL string        `envconfig:"MEDIA_PUBLIC_BASE_URL" default:"/storage"`
	UploadTimeout time.Duration `envconfig:"MEDIA_UPLOAD_TIMEOUT" default:"60s"`
}

// AuthConfig holds token signing configuration.
type AuthConfig struct {
	AccessSecret  string        `envconfig:"ACCESS_TOKEN_SECRET" required:"true"`
	RefreshSecret string        `envconfig:"REFRESH_TOKEN_SECRET" required:"true"`
	AccessTTL     time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTTL    time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Minio); err != nil {
		return nil, fmt.Errorf("failed to load minio config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.DB.URL == "" && c.DB.Path == "" {
		return fmt.Errorf("either DATABASE_URL or DB_PATH is required")
	}
	if len(c.Auth.AccessSecret) < 16 || len(c.Auth.RefreshSecret) < 16 {
		return fmt.Errorf("token secrets must be at least 16 characters")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= c.Auth.AccessTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}
	if c.Minio.UploadTimeout <= 0 {
		return fmt.Errorf("MEDIA_UPLOAD_TIMEOUT must be positive")
	}
	return nil
}
