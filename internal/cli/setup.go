package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/musicsnap/internal/config"
	"github.com/roach88/musicsnap/internal/logging"
	"github.com/roach88/musicsnap/internal/pipeline"
	"github.com/roach88/musicsnap/internal/snapshot/s3mirror"
)

// loadConfig loads .env, then the config file and environment, and
// installs the logger. Failures are reported through the formatter and
// returned as ExitCommandError.
func loadConfig(cmd *cobra.Command, opts *RootOptions, formatter *OutputFormatter) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.EnvFile); err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load env file", err)
	}

	cfg, err := config.Load(config.ResolvePath(opts.ConfigPath))
	if err != nil {
		var details interface{}
		var schemaErr *config.SchemaError
		if errors.As(err, &schemaErr) {
			details = schemaErr.Problems
		}
		_ = formatter.Error(ErrCodeConfig, err.Error(), details)
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logging.Install(cmd.ErrOrStderr(), cfg.Logging, opts.Verbose)
	return cfg, nil
}

// newFormatter builds the formatter for cmd's writers.
func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// buildPublishers returns the configured remote mirrors. A mirror that
// cannot be set up is logged and skipped.
func buildPublishers(ctx context.Context, cfg *config.Config) []pipeline.Publisher {
	s3cfg, ok := cfg.S3()
	if !ok {
		return nil
	}
	mirror, err := s3mirror.New(ctx, s3cfg)
	if err != nil {
		slog.Warn("s3 mirror disabled", "bucket", s3cfg.Bucket, "error", err)
		return nil
	}
	slog.Debug("s3 mirror enabled", "bucket", s3cfg.Bucket)
	return []pipeline.Publisher{mirror}
}
