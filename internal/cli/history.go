package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/musicsnap/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit  int
	RunID  string
	Latest bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded fetch runs",
		Long: `List recent fetch runs from the run ledger (ledger.path or
MUSICSNAP_LEDGER), newest first. With --run or --latest, show one run
per endpoint.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the details of one run")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "show the details of the most recent run")
	cmd.MarkFlagsMutuallyExclusive("run", "latest")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	cfg, err := loadConfig(cmd, opts.RootOptions, formatter)
	if err != nil {
		return err
	}

	if cfg.Ledger.Path == "" {
		msg := "no ledger configured (set ledger.path or MUSICSNAP_LEDGER)"
		_ = formatter.Error(ErrCodeLedger, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	if _, err := os.Stat(cfg.Ledger.Path); err != nil {
		_ = formatter.Error(ErrCodeLedger, fmt.Sprintf("ledger not found: %s", cfg.Ledger.Path), nil)
		return WrapExitError(ExitCommandError, "ledger not found", err)
	}

	l, err := ledger.Open(cfg.Ledger.Path, nil)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer l.Close()

	ctx := cmd.Context()
	if opts.RunID != "" || opts.Latest {
		var run ledger.Run
		if opts.Latest {
			run, err = l.LatestRun(ctx)
		} else {
			run, err = l.GetRun(ctx, opts.RunID)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
			if errors.Is(err, ledger.ErrRunNotFound) {
				return WrapExitError(ExitFailure, "run not found", err)
			}
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		if opts.Format == "json" {
			return formatter.Result(run, run.ID, nil)
		}
		writeRunText(cmd.OutOrStdout(), run)
		return nil
	}

	runs, err := l.ListRuns(ctx, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	writeHistoryText(cmd.OutOrStdout(), runs)
	return nil
}
