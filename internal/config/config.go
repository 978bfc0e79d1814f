// Package config loads musicsnap settings from an optional YAML file, the
// environment and an optional .env file.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables. The YAML document is checked against an embedded CUE schema
// before it is decoded.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/musicsnap/internal/fetcher"
	"github.com/roach88/musicsnap/internal/logging"
	"github.com/roach88/musicsnap/internal/model"
	"github.com/roach88/musicsnap/internal/pipeline"
	"github.com/roach88/musicsnap/internal/snapshot/s3mirror"
)

// DefaultFile is read when no --config flag is given and it exists.
const DefaultFile = "musicsnap.yaml"

// DefaultUserID is the stats.fm account the portfolio shows.
const DefaultUserID = "tm2zrwndrp4mc7bhl3ewe94bn"

// ErrMissingCredential means STATS_FM_TOKEN is unset or blank.
var ErrMissingCredential = errors.New("STATS_FM_TOKEN environment variable is not set")

// Config is the resolved configuration.
type Config struct {
	API     APIConfig      `yaml:"api"`
	Storage StorageConfig  `yaml:"storage"`
	Ranges  []string       `yaml:"ranges"`
	Ledger  LedgerConfig   `yaml:"ledger"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Mirror  MirrorConfig   `yaml:"mirror"`
	Logging logging.Config `yaml:"logging"`

	// Credential is only ever read from the environment.
	Credential string `yaml:"-"`
}

// APIConfig configures the stats.fm client.
type APIConfig struct {
	BaseURL   string   `yaml:"base_url"`
	UserID    string   `yaml:"user_id"`
	Timeout   Duration `yaml:"timeout"`
	Pacing    Duration `yaml:"pacing"`
	UserAgent string   `yaml:"user_agent"`
}

// StorageConfig holds the snapshot roots.
type StorageConfig struct {
	DataDir   string `yaml:"data_dir"`
	PublicDir string `yaml:"public_dir"`
}

// LedgerConfig enables the SQLite run ledger when Path is set.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig enables the Prometheus textfile when Textfile is set.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// MirrorConfig holds optional remote mirrors of the public tree.
type MirrorConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config enables the S3 mirror when Bucket is set.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    *bool  `yaml:"use_ssl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   model.DefaultBaseURL,
			UserID:    DefaultUserID,
			Timeout:   Duration(fetcher.DefaultTimeout),
			Pacing:    Duration(pipeline.DefaultPacing),
			UserAgent: fetcher.DefaultUserAgent,
		},
		Storage: StorageConfig{
			DataDir:   "data/music",
			PublicDir: "portfolio/public/data/music",
		},
		Ranges:  []string{"weeks", "months", "lifetime"},
		Logging: logging.Config{Level: "info", Format: "text"},
	}
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.UserID) == "" {
		return fmt.Errorf("api.user_id cannot be empty")
	}
	if c.API.Timeout.Std() <= 0 {
		return fmt.Errorf("api.timeout must be greater than 0")
	}
	if c.API.Pacing.Std() < 0 {
		return fmt.Errorf("api.pacing cannot be negative")
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("storage.data_dir cannot be empty")
	}
	if strings.TrimSpace(c.Storage.PublicDir) == "" {
		return fmt.Errorf("storage.public_dir cannot be empty")
	}
	if _, err := c.RangeList(); err != nil {
		return err
	}
	return nil
}

// RangeList parses Ranges into canonical order. An empty list means all ranges.
func (c *Config) RangeList() ([]model.Range, error) {
	if len(c.Ranges) == 0 {
		return model.AllRanges, nil
	}
	ranges := make([]model.Range, 0, len(c.Ranges))
	for _, raw := range c.Ranges {
		r, err := model.ParseRange(raw)
		if err != nil {
			return nil, fmt.Errorf("ranges: %w", err)
		}
		ranges = append(ranges, r)
	}
	return model.OrderRanges(ranges), nil
}

// RequireCredential returns ErrMissingCredential when no token is configured.
func (c *Config) RequireCredential() error {
	if strings.TrimSpace(c.Credential) == "" {
		return ErrMissingCredential
	}
	return nil
}

// Catalog builds the endpoint catalog.
func (c *Config) Catalog() model.Catalog {
	return model.NewCatalog(c.API.BaseURL, c.API.UserID)
}

// FetcherOptions builds the HTTP fetcher options.
func (c *Config) FetcherOptions() fetcher.Options {
	return fetcher.Options{Timeout: c.API.Timeout.Std(), UserAgent: c.API.UserAgent}
}

// S3 returns the S3 mirror settings and whether the mirror is enabled.
func (c *Config) S3() (s3mirror.Config, bool) {
	s := c.Mirror.S3
	if strings.TrimSpace(s.Bucket) == "" {
		return s3mirror.Config{}, false
	}
	useSSL := true
	if s.UseSSL != nil {
		useSSL = *s.UseSSL
	}
	return s3mirror.Config{
		Bucket:    s.Bucket,
		Region:    s.Region,
		Endpoint:  s.Endpoint,
		Prefix:    s.Prefix,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		UseSSL:    useSSL,
	}, true
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}
