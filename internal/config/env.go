package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables read by applyEnv.
const (
	EnvToken       = "STATS_FM_TOKEN"
	EnvUserID      = "STATS_FM_USER_ID"
	EnvBaseURL     = "STATS_FM_BASE_URL"
	EnvDataDir     = "MUSICSNAP_DATA_DIR"
	EnvPublicDir   = "MUSICSNAP_PUBLIC_DIR"
	EnvRanges      = "MUSICSNAP_RANGES"
	EnvTimeout     = "MUSICSNAP_TIMEOUT"
	EnvPacing      = "MUSICSNAP_PACING"
	EnvLedger      = "MUSICSNAP_LEDGER"
	EnvMetrics     = "MUSICSNAP_METRICS_TEXTFILE"
	EnvLogLevel    = "LOG_LEVEL"
	EnvLogFormat   = "LOG_FORMAT"
	EnvS3Bucket    = "S3_BUCKET"
	EnvS3Region    = "S3_REGION"
	EnvS3Endpoint  = "S3_ENDPOINT"
	EnvS3Prefix    = "S3_PREFIX"
	EnvS3AccessKey = "S3_ACCESS_KEY"
	EnvS3SecretKey = "S3_SECRET_KEY"
	EnvS3UseSSL    = "S3_USE_SSL"
)

func applyEnv(cfg *Config) {
	cfg.Credential = strings.TrimSpace(os.Getenv(EnvToken))

	cfg.API.UserID = getEnv(EnvUserID, cfg.API.UserID)
	cfg.API.BaseURL = getEnv(EnvBaseURL, cfg.API.BaseURL)
	cfg.API.Timeout = Duration(parseDuration(os.Getenv(EnvTimeout), cfg.API.Timeout.Std()))
	cfg.API.Pacing = Duration(parseDuration(os.Getenv(EnvPacing), cfg.API.Pacing.Std()))

	cfg.Storage.DataDir = getEnv(EnvDataDir, cfg.Storage.DataDir)
	cfg.Storage.PublicDir = getEnv(EnvPublicDir, cfg.Storage.PublicDir)
	if raw := os.Getenv(EnvRanges); raw != "" {
		cfg.Ranges = splitList(raw)
	}

	cfg.Ledger.Path = getEnv(EnvLedger, cfg.Ledger.Path)
	cfg.Metrics.Textfile = getEnv(EnvMetrics, cfg.Metrics.Textfile)
	cfg.Logging.Level = getEnv(EnvLogLevel, cfg.Logging.Level)
	cfg.Logging.Format = getEnv(EnvLogFormat, cfg.Logging.Format)

	s3 := &cfg.Mirror.S3
	s3.Bucket = getEnv(EnvS3Bucket, s3.Bucket)
	s3.Region = getEnv(EnvS3Region, s3.Region)
	s3.Endpoint = getEnv(EnvS3Endpoint, s3.Endpoint)
	s3.Prefix = getEnv(EnvS3Prefix, s3.Prefix)
	s3.AccessKey = getEnv(EnvS3AccessKey, s3.AccessKey)
	s3.SecretKey = getEnv(EnvS3SecretKey, s3.SecretKey)
	if raw := os.Getenv(EnvS3UseSSL); raw != "" {
		useSSL := raw == "true"
		s3.UseSSL = &useSSL
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration string or returns a default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
		return duration
	}
	return defaultValue
}

func parseDurationStrict(value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
