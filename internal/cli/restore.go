package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/musicsnap/internal/model"
	"github.com/roach88/musicsnap/internal/pipeline"
	"github.com/roach88/musicsnap/internal/snapshot"
)

// RestoreOptions holds flags for the restore command.
type RestoreOptions struct {
	*RootOptions
	Ranges []string
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RestoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore latest from the old backup without fetching",
		Long: `Copy the backed-up snapshot files from old/ into latest/ and mirror
them to the public directory. No network requests are made.

Exits 1 when no range had anything to restore.

Example:
  musicsnap restore --range weeks`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Ranges, "range", nil, "ranges to restore; default all")

	return cmd
}

func runRestore(cmd *cobra.Command, opts *RestoreOptions) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	cfg, err := loadConfig(cmd, opts.RootOptions, formatter)
	if err != nil {
		return err
	}
	if len(opts.Ranges) > 0 {
		cfg.Ranges = opts.Ranges
	}
	ranges, err := cfg.RangeList()
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid range", err)
	}

	ctx := cmd.Context()
	store := snapshot.NewStore(cfg.Storage.DataDir, cfg.Storage.PublicDir)
	for _, r := range ranges {
		if err := store.EnsureDirectories(r); err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitFailure, "failed to prepare directories", err)
		}
	}

	coord := pipeline.NewCoordinator(nil, store, ranges, buildPublishers(ctx, cfg)...)
	report := RestoreReport{Ranges: coord.FallbackAll(ctx)}

	restored := 0
	for _, rr := range report.Ranges {
		formatter.VerboseLog("%s: %s", rr.Range, rr.State)
		if rr.State == model.StateFallbackRestored {
			restored++
		}
	}

	var cliErr *CLIError
	var exitErr error
	if restored == 0 {
		cliErr = &CLIError{Code: ErrCodeNothingRestored, Message: "no backup data found to restore"}
		exitErr = NewExitError(ExitFailure, cliErr.Message)
	}

	if opts.Format == "json" {
		if err := formatter.Result(report, "", cliErr); err != nil {
			return WrapExitError(ExitFailure, "failed to write output", err)
		}
	} else {
		writeRestoreText(cmd.OutOrStdout(), report)
	}
	return exitErr
}
