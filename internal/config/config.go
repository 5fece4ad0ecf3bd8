// Package config loads application settings.
//
// Sources are applied in increasing precedence: built-in defaults, the YAML
// file named by CONFIG_FILE, then environment variables. A .env file in the
// working directory is loaded into the environment first without overriding
// variables that are already set.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr                   string `yaml:"app_addr" env:"APP_ADDR" validate:"required"`
	UploadsDir             string `yaml:"uploads_dir" env:"UPLOADS_DIR" validate:"required"`
	MaxUploadBytes         int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	CleanupIntervalMinutes int    `yaml:"cleanup_interval_minutes" env:"CLEANUP_INTERVAL_MINUTES" validate:"gt=0"`
	UploadTTLHours         int    `yaml:"upload_ttl_hours" env:"UPLOAD_TTL_HOURS" validate:"gt=0"`
	FFProbeBin             string `yaml:"ffprobe_bin" env:"FFPROBE_BIN"`

	LogLevel      string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFile       string `yaml:"log_file" env:"LOG_FILE"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" env:"LOG_MAX_SIZE_MB" validate:"gte=0"`
	LogMaxBackups int    `yaml:"log_max_backups" env:"LOG_MAX_BACKUPS" validate:"gte=0"`
	LogMaxAgeDays int    `yaml:"log_max_age_days" env:"LOG_MAX_AGE_DAYS" validate:"gte=0"`
	LogCompress   bool   `yaml:"log_compress" env:"LOG_COMPRESS"`

	// ProcessingPolicy has no default; deployments must choose.
	ProcessingPolicy         string `yaml:"processing_policy" env:"PROCESSING_POLICY" validate:"required,oneof=strict lenient"`
	PollIntervalSeconds      int    `yaml:"poll_interval_seconds" env:"POLL_INTERVAL_SECONDS" validate:"gt=0"`
	PollMaxAttempts          int    `yaml:"poll_max_attempts" env:"POLL_MAX_ATTEMPTS" validate:"gte=0"`
	PollMaxRetries           int    `yaml:"poll_max_retries" env:"POLL_MAX_RETRIES" validate:"gte=0"`
	ProcessingTimeoutSeconds int    `yaml:"processing_timeout_seconds" env:"PROCESSING_TIMEOUT_SECONDS" validate:"gte=0"`

	AnalysisEndpoint   string `yaml:"analysis_endpoint" env:"ANALYSIS_ENDPOINT" validate:"required,url"`
	AnalysisAPIKey     string `yaml:"analysis_api_key" env:"ANALYSIS_API_KEY" validate:"required"`
	AnalysisAnalyzerID string `yaml:"analysis_analyzer_id" env:"ANALYSIS_ANALYZER_ID" validate:"required"`
	AnalysisAPIVersion string `yaml:"analysis_api_version" env:"ANALYSIS_API_VERSION"`

	BlobBackend  string `yaml:"blob_backend" env:"BLOB_BACKEND" validate:"oneof=s3 local"`
	S3BucketName string `yaml:"s3_bucket_name" env:"S3_BUCKET_NAME" validate:"required_if=BlobBackend s3"`
	AWSRegion    string `yaml:"aws_region" env:"AWS_REGION"`

	DocstoreBackend string `yaml:"docstore_backend" env:"DOCSTORE_BACKEND" validate:"oneof=none mongo dynamodb postgres sqlite"`
	MongoURI        string `yaml:"mongodb_uri" env:"MONGODB_URI" validate:"required_if=DocstoreBackend mongo"`
	MongoDatabase   string `yaml:"mongodb_database" env:"MONGODB_DATABASE"`
	MongoCollection string `yaml:"mongodb_collection" env:"MONGODB_COLLECTION"`
	DynamoDBTable   string `yaml:"dynamodb_table" env:"DYNAMODB_TABLE" validate:"required_if=DocstoreBackend dynamodb"`
	PostgresDSN     string `yaml:"postgres_dsn" env:"POSTGRES_DSN" validate:"required_if=DocstoreBackend postgres"`
	SQLitePath      string `yaml:"sqlite_path" env:"SQLITE_PATH" validate:"required_if=DocstoreBackend sqlite"`

	SQSQueueURL string `yaml:"sqs_queue_url" env:"SQS_QUEUE_URL"`
}

// Default returns the built-in settings. ProcessingPolicy and the analysis
// service credentials are left empty.
func Default() Config {
	return Config{
		Addr:                     ":8080",
		UploadsDir:               "uploads",
		MaxUploadBytes:           500 * 1024 * 1024,
		CleanupIntervalMinutes:   30,
		UploadTTLHours:           24,
		FFProbeBin:               "ffprobe",
		LogLevel:                 "info",
		LogMaxSizeMB:             100,
		LogMaxBackups:            5,
		LogMaxAgeDays:            30,
		PollIntervalSeconds:      5,
		PollMaxAttempts:          720,
		PollMaxRetries:           3,
		ProcessingTimeoutSeconds: 3600,
		BlobBackend:              "s3",
		DocstoreBackend:          "none",
		MongoDatabase:            "transcripts",
		MongoCollection:          "transcripts",
	}
}

// Load reads configuration from envFiles (".env" when none are given), the
// optional CONFIG_FILE and the environment, then validates it.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeYAML(path); err != nil {
			return nil, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) ProcessingTimeout() time.Duration {
	return time.Duration(c.ProcessingTimeoutSeconds) * time.Second
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func (c *Config) UploadTTL() time.Duration {
	return time.Duration(c.UploadTTLHours) * time.Hour
}
