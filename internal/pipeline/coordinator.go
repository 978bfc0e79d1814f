package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/musicsnap/internal/model"
)

// Publisher mirrors a range's public directory somewhere else (e.g. a bucket).
type Publisher interface {
	PublishRange(ctx context.Context, r model.Range, dir string) error
}

// Coordinator runs every configured range and decides promotion or fallback.
type Coordinator struct {
	orchestrator *Orchestrator
	store        SnapshotStore
	ranges       []model.Range
	publishers   []Publisher
}

// NewCoordinator creates a Coordinator over ranges, processed in canonical
// order. An empty list means every range.
func NewCoordinator(o *Orchestrator, store SnapshotStore, ranges []model.Range, publishers ...Publisher) *Coordinator {
	if len(ranges) == 0 {
		ranges = model.AllRanges
	}
	return &Coordinator{
		orchestrator: o,
		store:        store,
		ranges:       model.OrderRanges(ranges),
		publishers:   publishers,
	}
}

// Ranges returns the ranges the coordinator processes, in order.
func (c *Coordinator) Ranges() []model.Range {
	return c.ranges
}

// RunAll runs every range and aggregates the summary.
//
// The returned error is reserved for an unusable environment (directories
// cannot be created) or an unexpected panic; callers should then run
// FallbackAll. Endpoint and per-file failures are part of the summary.
func (c *Coordinator) RunAll(ctx context.Context, credential string) (model.RunSummary, error) {
	var summary model.RunSummary

	for _, r := range c.ranges {
		if err := c.store.EnsureDirectories(r); err != nil {
			return summary, fmt.Errorf("prepare directories for %s: %w", r, err)
		}
	}

	for _, r := range c.ranges {
		result, err := c.runRange(ctx, r, credential)
		if err != nil {
			return summary, err
		}
		summary.Add(result)
	}

	slog.Info("run complete", "success", summary.TotalSuccess, "requests", summary.TotalRequests, "outcome", summary.Outcome())
	return summary, nil
}

func (c *Coordinator) runRange(ctx context.Context, r model.Range, credential string) (result model.RangeResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("range %s: unexpected panic: %v", r, p)
		}
	}()

	result = c.orchestrator.RunForRange(ctx, r, credential)

	if result.SuccessCount > 0 {
		c.store.BackupLatestToOld(r)
		c.store.MirrorLatestToPublic(r)
		c.publish(ctx, r)
		result.State = model.StatePromoted
		slog.Info("range promoted", "range", r, "state", result.State, "success", result.SuccessCount, "total", result.TotalCount)
		return result, nil
	}

	slog.Warn("all requests failed, attempting fallback", "range", r)
	result.State = c.fallback(ctx, r)
	return result, nil
}

// FallbackAll restores old data into latest for every range and mirrors
// whatever was restored. It is the recovery pass after RunAll errors.
func (c *Coordinator) FallbackAll(ctx context.Context) []model.RangeResult {
	results := make([]model.RangeResult, 0, len(c.ranges))
	for _, r := range c.ranges {
		results = append(results, model.RangeResult{
			Range:      r,
			TotalCount: len(model.Endpoints),
			State:      c.safeFallback(ctx, r),
		})
	}
	return results
}

func (c *Coordinator) safeFallback(ctx context.Context, r model.Range) (state model.RangeState) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("fallback panicked", "range", r, "error", p)
			state = model.StateFallbackUnavailable
		}
	}()
	return c.fallback(ctx, r)
}

// fallback restores old into latest. A restored range is mirrored; old is
// left as it was.
func (c *Coordinator) fallback(ctx context.Context, r model.Range) model.RangeState {
	if !c.store.RestoreOldToLatest(r) {
		slog.Error("no fallback data available", "range", r, "state", model.StateFallbackUnavailable)
		return model.StateFallbackUnavailable
	}
	c.store.MirrorLatestToPublic(r)
	c.publish(ctx, r)
	slog.Info("fallback data restored", "range", r, "state", model.StateFallbackRestored)
	return model.StateFallbackRestored
}

func (c *Coordinator) publish(ctx context.Context, r model.Range) {
	dir := c.store.Dirs(r).Public
	for _, p := range c.publishers {
		if err := p.PublishRange(ctx, r, dir); err != nil {
			slog.Error("publish failed", "range", r, "error", err)
		}
	}
}
