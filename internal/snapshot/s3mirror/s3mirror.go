// Package s3mirror publishes a range's public snapshot directory to an
// S3-compatible bucket (AWS S3, MinIO, R2).
package s3mirror

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/roach88/musicsnap/internal/model"
)

// Config holds connection settings for the bucket.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // custom endpoint for MinIO / R2; empty for AWS
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Mirror uploads snapshot files to a bucket.
type Mirror struct {
	client *s3.Client
	cfg    Config
}

// New builds a Mirror. Static credentials are used when both keys are set,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
			o.UsePathStyle = true
		}
	})

	return &Mirror{client: client, cfg: cfg}, nil
}

// Key returns the object key for a snapshot file of r.
func (m *Mirror) Key(r model.Range, filename string) string {
	return path.Join(strings.Trim(m.cfg.Prefix, "/"), string(r), "latest", filename)
}

// PublishRange uploads every regular file in dir. Upload failures are
// logged per file; the returned error only reports that dir was unreadable
// or how many uploads failed.
func (m *Mirror) PublishRange(ctx context.Context, r model.Range, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read public dir: %w", err)
	}

	failed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Error("s3 mirror read failed", "range", r, "file", name, "error", err)
			failed++
			continue
		}
		key := m.Key(r, name)
		_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(m.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			slog.Error("s3 mirror upload failed", "range", r, "key", key, "error", err)
			failed++
			continue
		}
		slog.Debug("s3 mirror uploaded", "range", r, "key", key)
	}
	if failed > 0 {
		return fmt.Errorf("s3 mirror: %d file(s) failed for range %s", failed, r)
	}
	return nil
}

func endpointURL(endpoint string, useSSL bool) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
