// Package config loads curvegraph settings from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration.
type Config struct {
	Remote  Remote  `envPrefix:"CURVEGRAPH_REMOTE_"`
	Archive Archive `envPrefix:"CURVEGRAPH_ARCHIVE_"`
	Blob    Blob    `envPrefix:"CURVEGRAPH_BLOB_"`
	Metrics Metrics `envPrefix:"CURVEGRAPH_METRICS_"`
}

// Remote addresses the remote spreadsheet instance.
type Remote struct {
	BaseURL string `env:"BASE_URL"`
	Token   string `env:"TOKEN"`
}

// Archive selects the snapshot archive backend.
//
//	CURVEGRAPH_ARCHIVE_DRIVER: none|memory|sqlite|postgres (default none)
//	CURVEGRAPH_ARCHIVE_SQLITE_PATH: sqlite file (default ./curvegraph.db)
//	CURVEGRAPH_ARCHIVE_POSTGRES_DSN: postgres DSN
type Archive struct {
	Driver      string `env:"DRIVER" envDefault:"none"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"curvegraph.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

// Blob selects the view export backend.
//
//	CURVEGRAPH_BLOB_DRIVER: none|fs|memory|s3 (default none)
type Blob struct {
	Driver string `env:"DRIVER" envDefault:"none"`
	FSRoot string `env:"FS_ROOT" envDefault:"./blobdata"`
	S3     S3     `envPrefix:"S3_"`
}

// S3 configures the S3 / MinIO export backend. Credentials fall back to the
// default AWS chain when unset.
type S3 struct {
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"ENDPOINT"`
	PathStyle       bool   `env:"PATH_STYLE"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

// Metrics selects the metrics backend.
//
//	CURVEGRAPH_METRICS_DRIVER: none|expvar|prometheus (default none)
type Metrics struct {
	Driver    string `env:"DRIVER" envDefault:"none"`
	Namespace string `env:"NAMESPACE" envDefault:"curvegraph"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
