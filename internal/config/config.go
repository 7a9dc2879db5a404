package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port          int      `yaml:"port" env:"PORT"`
		PublicBaseURL string   `yaml:"publicBaseURL" env:"PUBLIC_BASE_URL"`
		CORSOrigins   []string `yaml:"corsOrigins" env:"CORS_ORIGINS"`
		APIKeys       []string `yaml:"apiKeys" env:"API_KEYS"`
	} `yaml:"server" envPrefix:"SERVER_"`

	Database struct {
		Driver   string `yaml:"driver" env:"DRIVER"` // sqlite | mysql | postgres | none
		Host     string `yaml:"host" env:"HOST"`
		Port     int    `yaml:"port" env:"PORT"`
		User     string `yaml:"user" env:"USER"`
		Password string `yaml:"password" env:"PASSWORD"`
		Name     string `yaml:"name" env:"NAME"`
		Path     string `yaml:"path" env:"PATH"`
		SSLMode  string `yaml:"sslMode" env:"SSL_MODE"`
	} `yaml:"database" envPrefix:"DB_"`

	Minio struct {
		Enabled       bool   `yaml:"enabled" env:"ENABLED"`
		Endpoint      string `yaml:"endpoint" env:"ENDPOINT"`
		AccessKey     string `yaml:"accessKey" env:"ACCESS_KEY"`
		SecretKey     string `yaml:"secretKey" env:"SECRET_KEY"`
		BucketName    string `yaml:"bucketName" env:"BUCKET"`
		Region        string `yaml:"region" env:"REGION"`
		UseSSL        bool   `yaml:"useSSL" env:"USE_SSL"`
		Prefix        string `yaml:"prefix" env:"PREFIX"`
		PresignExpiry int    `yaml:"presignExpirySeconds" env:"PRESIGN_EXPIRY_SECONDS"`
	} `yaml:"minio" envPrefix:"MINIO_"`

	AI struct {
		Provider string `yaml:"provider" env:"PROVIDER"` // mock | openai
		APIKey   string `yaml:"apiKey" env:"API_KEY"`
		Model    string `yaml:"model" env:"MODEL"`
		BaseURL  string `yaml:"baseURL" env:"BASE_URL"`
	} `yaml:"ai" envPrefix:"AI_"`

	Detection struct {
		TickMS            int `yaml:"tickMs" env:"TICK_MS"`
		SettleMS          int `yaml:"settleMs" env:"SETTLE_MS"`
		SessionTTLMinutes int `yaml:"sessionTTLMinutes" env:"SESSION_TTL_MINUTES"`
	} `yaml:"detection" envPrefix:"DETECTION_"`

	RateLimit struct {
		RequestsPerMinute int `yaml:"requestsPerMinute" env:"REQUESTS_PER_MINUTE"`
	} `yaml:"rateLimit" envPrefix:"RATE_LIMIT_"`
}

// Default returns a config that runs locally without external services.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = "data/detector.db"
	cfg.Database.SSLMode = "disable"
	cfg.Minio.Region = "us-east-1"
	cfg.Minio.Prefix = "previews"
	cfg.Minio.PresignExpiry = 3600
	cfg.AI.Provider = "mock"
	cfg.Detection.TickMS = 200
	cfg.Detection.SettleMS = 500
	cfg.Detection.SessionTTLMinutes = 30
	cfg.RateLimit.RequestsPerMinute = 120
	return &cfg
}

// Load baca file config.yaml, lalu override dari env DETECTOR_*.
// File yang tidak ada bukan error; default dipakai.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "DETECTOR_"}); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.PublicBaseURL != "" {
		if u, err := url.Parse(c.Server.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server.publicBaseURL %q is not an absolute URL", c.Server.PublicBaseURL))
		}
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path required for sqlite"))
		}
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.host and database.name required for %s", c.Database.Driver))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q not supported", c.Database.Driver))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucketName required when minio is enabled"))
	}
	switch c.AI.Provider {
	case "mock":
	case "openai":
		if c.AI.APIKey == "" {
			errs = append(errs, errors.New("ai.apiKey required for openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q not supported", c.AI.Provider))
	}
	if c.Detection.TickMS <= 0 || c.Detection.SettleMS < 0 {
		errs = append(errs, errors.New("detection.tickMs must be > 0 and detection.settleMs >= 0"))
	}
	if c.Detection.SessionTTLMinutes <= 0 {
		errs = append(errs, errors.New("detection.sessionTTLMinutes must be > 0"))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("rateLimit.requestsPerMinute must be >= 0"))
	}
	return errors.Join(errs...)
}

func (c *Config) Tick() time.Duration {
	return time.Duration(c.Detection.TickMS) * time.Millisecond
}

func (c *Config) Settle() time.Duration {
	return time.Duration(c.Detection.SettleMS) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Detection.SessionTTLMinutes) * time.Minute
}

func (c *Config) PresignExpiry() time.Duration {
	return time.Duration(c.Minio.PresignExpiry) * time.Second
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.Name,
	}
	q := url.Values{}
	q.Set("sslmode", strings.TrimSpace(c.Database.SSLMode))
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
