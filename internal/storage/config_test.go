package storage

import "testing"

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Endpoint != "localhost:9000" {
		t.Errorf("default endpoint = %s", cfg.Endpoint)
	}
	if cfg.BucketRaw != "lake-raw" || cfg.BucketCleaned != "lake-cleaned" || cfg.BucketCurated != "lake-curated" {
		t.Errorf("default buckets = %s/%s/%s", cfg.BucketRaw, cfg.BucketCleaned, cfg.BucketCurated)
	}
}

func TestConfigFromEnv_Override(t *testing.T) {
	t.Setenv("LAKE_S3_ENDPOINT", "minio.internal:9000")
	t.Setenv("LAKE_BUCKET_RAW", "prod-raw")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Endpoint != "minio.internal:9000" {
		t.Errorf("endpoint = %s", cfg.Endpoint)
	}
	if cfg.BucketRaw != "prod-raw" {
		t.Errorf("raw bucket = %s", cfg.BucketRaw)
	}
}

func TestConfigValidate_SchemeRejected(t *testing.T) {
	cfg := Config{
		Endpoint:      "http://localhost:9000",
		AccessKey:     "k",
		SecretKey:     "s",
		Region:        "us-east-1",
		BucketRaw:     "raw",
		BucketCleaned: "cleaned",
		BucketCurated: "curated",
	}
	if err := cfg.Validate(); err == nil {
		t.Error("endpoint with scheme must be rejected")
	}
}

func TestConfigValidate_MissingBucket(t *testing.T) {
	cfg := Config{
		Endpoint:  "localhost:9000",
		AccessKey: "k",
		SecretKey: "s",
		Region:    "us-east-1",
		BucketRaw: "raw",
	}
	if err := cfg.Validate(); err == nil {
		t.Error("missing area bucket must be rejected")
	}
}
