package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/musicsnap/internal/config"
	"github.com/roach88/musicsnap/internal/fetcher"
	"github.com/roach88/musicsnap/internal/ledger"
	"github.com/roach88/musicsnap/internal/metrics"
	"github.com/roach88/musicsnap/internal/model"
	"github.com/roach88/musicsnap/internal/pipeline"
	"github.com/roach88/musicsnap/internal/snapshot"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Ranges []string

	// Test hooks. Nil values select the production implementations.
	HTTPClient *http.Client
	Sleeper    pipeline.Sleeper
	IDs        ledger.IDGenerator
	Now        func() time.Time
}

// FetchReport is what the fetch command prints.
type FetchReport struct {
	RunID      string              `json:"run_id,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Outcome    model.RunOutcome    `json:"outcome"`
	Summary    model.RunSummary    `json:"summary"`
	Error      string              `json:"error,omitempty"`
	Fallback   []model.RangeResult `json:"fallback,omitempty"`
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	return newFetchCommand(&FetchOptions{RootOptions: rootOpts})
}

func newFetchCommand(opts *FetchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch stats.fm data and refresh the snapshots",
		Long: `Fetch every endpoint for each configured range, save the responses
under latest/, back them up to old/ and mirror them to the public directory.

A range where every request fails is restored from old/ instead. The
command exits 0 when fresh or fallback data is in place, 1 when nothing
usable is left, and 3 when STATS_FM_TOKEN is not set.

Example:
  STATS_FM_TOKEN=... musicsnap fetch
  musicsnap fetch --range weeks --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Ranges, "range", nil, "ranges to fetch (weeks|months|lifetime); default all")

	return cmd
}

func runFetch(cmd *cobra.Command, opts *FetchOptions) error {
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

	if err := cfg.RequireCredential(); err != nil {
		slog.Error("missing credential", "env", config.EnvToken)
		_ = formatter.Error(ErrCodeMissingCredential, err.Error(), nil)
		return WrapExitError(ExitConfigError, "missing credential", err)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx := cmd.Context()

	fetchOpts := cfg.FetcherOptions()
	fetchOpts.Client = opts.HTTPClient
	store := snapshot.NewStore(cfg.Storage.DataDir, cfg.Storage.PublicDir)
	orch := pipeline.NewOrchestrator(cfg.Catalog(), fetcher.New(fetchOpts), store, opts.Sleeper, cfg.API.Pacing.Std())
	coord := pipeline.NewCoordinator(orch, store, ranges, buildPublishers(ctx, cfg)...)

	slog.Info("starting music data fetch", "ranges", ranges, "user", cfg.API.UserID)
	report := FetchReport{StartedAt: now()}

	summary, runErr := coord.RunAll(ctx, cfg.Credential)
	report.Summary = summary
	if runErr != nil {
		slog.Error("fatal error, attempting fallback for all ranges", "error", runErr)
		report.Error = runErr.Error()
		report.Fallback = coord.FallbackAll(ctx)
		report.Outcome = model.OutcomeFailed
	} else {
		report.Outcome = summary.Outcome()
	}
	report.FinishedAt = now()
	for _, rr := range report.Summary.Ranges {
		formatter.VerboseLog("%s: %s, %d/%d endpoints", rr.Range, rr.State, rr.SuccessCount, rr.TotalCount)
	}
	for _, rr := range report.Fallback {
		formatter.VerboseLog("%s: %s (fallback)", rr.Range, rr.State)
	}

	report.RunID = recordRun(ctx, cfg, opts.IDs, report)
	writeMetrics(cfg, report)

	var cliErr *CLIError
	var exitErr error
	switch {
	case runErr != nil:
		cliErr = &CLIError{Code: ErrCodeRunFailed, Message: "run aborted: " + runErr.Error()}
		exitErr = WrapExitError(ExitFailure, "run aborted", runErr)
	case report.Outcome == model.OutcomeFailed:
		cliErr = &CLIError{Code: ErrCodeRunFailed, Message: "no data fetched and no fallback data available"}
		exitErr = NewExitError(ExitFailure, cliErr.Message)
	}

	if opts.Format == "json" {
		if err := formatter.Result(report, report.RunID, cliErr); err != nil {
			return WrapExitError(ExitFailure, "failed to write output", err)
		}
	} else {
		writeFetchText(cmd.OutOrStdout(), report)
	}
	return exitErr
}

// recordRun stores the run in the ledger when one is configured. Ledger
// failures are logged and never change the command result.
func recordRun(ctx context.Context, cfg *config.Config, ids ledger.IDGenerator, report FetchReport) string {
	if cfg.Ledger.Path == "" {
		return ""
	}
	if dir := filepath.Dir(cfg.Ledger.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("ledger unavailable", "path", cfg.Ledger.Path, "error", err)
			return ""
		}
	}
	l, err := ledger.Open(cfg.Ledger.Path, ids)
	if err != nil {
		slog.Warn("ledger unavailable", "path", cfg.Ledger.Path, "error", err)
		return ""
	}
	defer func() {
		if closeErr := l.Close(); closeErr != nil {
			slog.Error("error closing ledger", "error", closeErr)
		}
	}()

	id, err := l.RecordRun(ctx, ledger.Run{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Outcome:    report.Outcome,
		Summary:    report.Summary,
		Error:      report.Error,
		Fallback:   report.Fallback,
	})
	if err != nil {
		slog.Warn("failed to record run", "error", err)
		return ""
	}
	slog.Debug("run recorded", "run_id", id)
	return id
}

// writeMetrics writes the Prometheus textfile when one is configured.
func writeMetrics(cfg *config.Config, report FetchReport) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	rec := metrics.New()
	summary := report.Summary
	summary.Ranges = append(append([]model.RangeResult{}, summary.Ranges...), report.Fallback...)
	rec.Observe(summary, report.Outcome, report.FinishedAt)
	if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		slog.Warn("failed to write metrics", "path", cfg.Metrics.Textfile, "error", err)
	}
}
