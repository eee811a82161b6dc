package storage

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Config — параметры подключения к S3-совместимому хранилищу.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool

	// Buckets областей lake.
	BucketRaw     string
	BucketCleaned string
	BucketCurated string
}

// ConfigFromEnv читает конфигурацию хранилища из окружения.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Endpoint:      envOr("LAKE_S3_ENDPOINT", "localhost:9000"),
		AccessKey:     envOr("LAKE_S3_ACCESS_KEY", "lakerunner"),
		SecretKey:     envOr("LAKE_S3_SECRET_KEY", "lakerunner"),
		Region:        envOr("LAKE_S3_REGION", "us-east-1"),
		UseSSL:        os.Getenv("LAKE_S3_USE_SSL") == "true",
		BucketRaw:     envOr("LAKE_BUCKET_RAW", "lake-raw"),
		BucketCleaned: envOr("LAKE_BUCKET_CLEANED", "lake-cleaned"),
		BucketCurated: envOr("LAKE_BUCKET_CURATED", "lake-curated"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет корректность конфигурации.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	for _, b := range []string{c.BucketRaw, c.BucketCleaned, c.BucketCurated} {
		if strings.TrimSpace(b) == "" {
			return errors.New("all area buckets are required")
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
