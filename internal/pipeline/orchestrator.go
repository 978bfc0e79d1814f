package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/musicsnap/internal/fetcher"
	"github.com/roach88/musicsnap/internal/model"
	"github.com/roach88/musicsnap/internal/snapshot"
)

// SnapshotStore is the persistence the pipeline needs.
// *snapshot.Store implements it.
type SnapshotStore interface {
	EnsureDirectories(r model.Range) error
	WriteLatest(r model.Range, filename string, payload []byte) error
	BackupLatestToOld(r model.Range)
	RestoreOldToLatest(r model.Range) bool
	MirrorLatestToPublic(r model.Range)
	Dirs(r model.Range) snapshot.Dirs
}

// Orchestrator fetches all endpoints of one range.
type Orchestrator struct {
	catalog model.Catalog
	fetcher fetcher.Fetcher
	store   SnapshotStore
	sleeper Sleeper
	pacing  time.Duration
}

// NewOrchestrator creates an Orchestrator. A nil sleeper uses TimerSleeper;
// a pacing of zero or less disables the delay.
func NewOrchestrator(catalog model.Catalog, f fetcher.Fetcher, store SnapshotStore, sleeper Sleeper, pacing time.Duration) *Orchestrator {
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	return &Orchestrator{
		catalog: catalog,
		fetcher: f,
		store:   store,
		sleeper: sleeper,
		pacing:  pacing,
	}
}

// RunForRange fetches every endpoint of r. A failed endpoint is recorded
// and the next one is attempted; the result is returned however many
// endpoints succeeded.
func (o *Orchestrator) RunForRange(ctx context.Context, r model.Range, credential string) model.RangeResult {
	endpoints := o.catalog.Resolve(r)
	result := model.RangeResult{
		Range:      r,
		TotalCount: len(endpoints),
		Results:    make([]model.FetchOutcome, 0, len(endpoints)),
		State:      model.StateFetching,
	}
	slog.Info("fetching range", "range", r, "endpoints", len(endpoints))

	for i, ep := range endpoints {
		outcome := o.fetchOne(ctx, r, ep, credential)
		result.Results = append(result.Results, outcome)
		if outcome.Success {
			result.SuccessCount++
		}

		if i < len(endpoints)-1 && o.pacing > 0 {
			if err := o.sleeper.Sleep(ctx, o.pacing); err != nil {
				slog.Warn("pacing interrupted", "range", r, "error", err)
			}
		}
	}

	if result.SuccessCount > 0 {
		result.State = model.StateSucceeded
	} else {
		result.State = model.StateFailed
	}
	slog.Info("range fetched", "range", r, "success", result.SuccessCount, "total", result.TotalCount)
	return result
}

func (o *Orchestrator) fetchOne(ctx context.Context, r model.Range, ep model.ResolvedEndpoint, credential string) model.FetchOutcome {
	start := time.Now()
	outcome := model.FetchOutcome{Endpoint: ep.Name}
	slog.Info("fetching endpoint", "range", r, "endpoint", ep.Name)

	payload, err := o.fetcher.Fetch(ctx, ep.URL, credential)
	if err != nil {
		outcome.Duration = time.Since(start)
		outcome.Error = err.Error()
		outcome.ErrorKind = fetcher.ErrorKind(err)
		slog.Error("fetch failed", "range", r, "endpoint", ep.Name, "kind", outcome.ErrorKind, "error", err)
		if fetcher.IsStatus(err, http.StatusUnauthorized) || fetcher.IsStatus(err, http.StatusForbidden) {
			slog.Warn("stats.fm rejected the credential", "range", r, "endpoint", ep.Name)
		}
		return outcome
	}

	if err := o.store.WriteLatest(r, ep.Filename, payload); err != nil {
		outcome.Duration = time.Since(start)
		outcome.Error = err.Error()
		outcome.ErrorKind = model.ErrorKindFilesystem
		slog.Error("save failed", "range", r, "endpoint", ep.Name, "file", ep.Filename, "error", err)
		return outcome
	}

	outcome.Duration = time.Since(start)
	outcome.Success = true
	outcome.Bytes = len(payload)
	if digest, err := model.PayloadDigest(payload); err == nil {
		outcome.Digest = digest
	}
	slog.Info("saved snapshot", "range", r, "endpoint", ep.Name, "file", ep.Filename, "bytes", outcome.Bytes)
	return outcome
}
