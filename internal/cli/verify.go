package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/musicsnap/internal/snapshot"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Ranges []string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the snapshot directories and files",
		Long: `Check that every range has its latest, old and public directories,
report which snapshot files are present in each, and parse the latest files.

Exits 1 when a directory is missing or a latest file is not valid JSON.
A missing STATS_FM_TOKEN is reported but is not a failure.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Ranges, "range", nil, "ranges to verify; default all")

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions) error {
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

	store := snapshot.NewStore(cfg.Storage.DataDir, cfg.Storage.PublicDir)
	report := VerifyReport{
		CredentialSet: cfg.RequireCredential() == nil,
		Problems:      []string{},
	}
	for _, r := range ranges {
		rr := store.Inspect(r)
		report.Ranges = append(report.Ranges, rr)

		dirs := store.Dirs(r)
		for _, d := range []struct {
			ok   bool
			path string
		}{{rr.LatestExists, dirs.Latest}, {rr.OldExists, dirs.Old}, {rr.PublicExists, dirs.Public}} {
			if !d.ok {
				report.Problems = append(report.Problems, fmt.Sprintf("%s: missing directory %s", r, d.path))
			}
		}
		for _, f := range rr.Files {
			if f.Latest.Present && !f.ValidJSON {
				report.Problems = append(report.Problems, fmt.Sprintf("%s: %s is not valid JSON: %s", r, f.Filename, f.JSONError))
			}
		}
	}

	var cliErr *CLIError
	var exitErr error
	if len(report.Problems) > 0 {
		cliErr = &CLIError{Code: ErrCodeVerifyFailed, Message: fmt.Sprintf("%d problem(s) found", len(report.Problems))}
		exitErr = NewExitError(ExitFailure, cliErr.Message)
	}

	if opts.Format == "json" {
		if err := formatter.Result(report, "", cliErr); err != nil {
			return WrapExitError(ExitFailure, "failed to write output", err)
		}
	} else {
		writeVerifyText(cmd.OutOrStdout(), report)
	}
	return exitErr
}
