package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alkime/consults/internal/keyring"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
	// EnvDevelopment enables debug logging.
	EnvDevelopment = "development"
)

// Config holds the portal backend configuration.
type Config struct {
	// Server settings
	Env       string `envconfig:"ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8080"`
	PublicDir string `envconfig:"PUBLIC_DIR" default:""`

	// Security settings
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode    string `envconfig:"CSP_MODE" default:"relaxed"`
	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string `envconfig:"API_TOKEN" default:""`

	// DatabaseURL selects Postgres; empty keeps records in memory.
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// StorageConfig locates the S3-compatible bucket recordings are stored in.
type StorageConfig struct {
	Endpoint      string `envconfig:"ENDPOINT" default:"localhost:9000"`
	AccessKey     string `envconfig:"ACCESS_KEY" default:""`
	SecretKey     string `envconfig:"SECRET_KEY" default:""`
	UseSSL        bool   `envconfig:"USE_SSL" default:"false"`
	Region        string `envconfig:"REGION" default:"us-east-1"`
	Bucket        string `envconfig:"BUCKET" default:"consultations"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:""`
	// PresignTTL is how long a URL presigned at fetch time stays valid.
	PresignTTL time.Duration `envconfig:"PRESIGN_TTL" default:"1h"`
}

// ClientConfig holds the consult CLI configuration.
type ClientConfig struct {
	BackendURL   string        `envconfig:"BACKEND_URL" default:"http://localhost:8080"`
	BackendToken string        `envconfig:"BACKEND_TOKEN" default:""`
	HTTPTimeout  time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`

	Storage StorageConfig `envconfig:"S3"`

	SampleRate       int           `envconfig:"SAMPLE_RATE" default:"16000"`
	ChunkInterval    time.Duration `envconfig:"CHUNK_INTERVAL" default:"1s"`
	ProgressInterval time.Duration `envconfig:"PROGRESS_INTERVAL" default:"100ms"`

	WorkDir  string `envconfig:"WORK_DIR" default:""`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads server configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	loadDotEnv()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	return &config, nil
}

// LoadClientConfig loads client configuration. Secrets missing from the
// environment are looked up in the system keychain.
func LoadClientConfig() (*ClientConfig, error) {
	loadDotEnv()

	var config ClientConfig
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if config.BackendToken == "" {
		config.BackendToken = keyring.Lookup(keyring.BackendToken)
	}
	if config.Storage.SecretKey == "" {
		config.Storage.SecretKey = keyring.Lookup(keyring.StorageSecretKey)
	}

	if config.ChunkInterval <= 0 {
		return nil, fmt.Errorf("CHUNK_INTERVAL must be positive, got %s", config.ChunkInterval)
	}
	if config.ProgressInterval <= 0 {
		return nil, fmt.Errorf("PROGRESS_INTERVAL must be positive, got %s", config.ProgressInterval)
	}

	return &config, nil
}

func loadDotEnv() {
	// Not an error if the file doesn't exist (expected in production)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}
}

// BuildCSP constructs Content Security Policy based on mode.
func BuildCSP(mode string) string {
	if mode == "strict" {
		return "default-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"script-src 'self'; " +
			"media-src 'self' https:; " +
			"object-src 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'"
	}

	return "default-src 'self'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"script-src 'self' 'unsafe-inline'; " +
		"media-src 'self' http: https:; " +
		"img-src 'self' data:"
}
