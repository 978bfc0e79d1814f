package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/musicsnap/internal/fetcher"
	"github.com/roach88/musicsnap/internal/model"
	"github.com/roach88/musicsnap/internal/snapshot"
	"github.com/roach88/musicsnap/internal/testutil"
)

const testUser = "user-1"

type harness struct {
	api     *testutil.StatsAPI
	sleeper *testutil.RecordingSleeper
	store   *snapshot.Store
	orch    *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := testutil.NewStatsAPI(t)
	root := t.TempDir()
	store := snapshot.NewStore(filepath.Join(root, "data", "music"), filepath.Join(root, "public"))
	sleeper := testutil.NewRecordingSleeper()
	f := fetcher.New(fetcher.Options{Timeout: 5 * time.Second, Client: api.Server.Client()})
	orch := NewOrchestrator(model.NewCatalog(api.URL(), testUser), f, store, sleeper, DefaultPacing)
	return &harness{api: api, sleeper: sleeper, store: store, orch: orch}
}

func (h *harness) coordinator(ranges ...model.Range) *Coordinator {
	return NewCoordinator(h.orch, h.store, ranges)
}

// readDir returns filename -> content for every regular file in dir.
func readDir(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}
	}
	require.NoError(t, err)
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(data)
	}
	return out
}

func seed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestRunForRange_AllEndpointsSucceed(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.EnsureDirectories(model.RangeWeeks))
	h.api.Set("weeks/top-tracks", testutil.Response{Status: http.StatusOK, Body: `{"items":[{"position":1}]}`})

	result := h.orch.RunForRange(context.Background(), model.RangeWeeks, "tok")

	assert.Equal(t, model.RangeWeeks, result.Range)
	assert.Equal(t, 5, result.SuccessCount)
	assert.Equal(t, 5, result.TotalCount)
	assert.Equal(t, model.StateSucceeded, result.State)
	require.Len(t, result.Results, 5)
	for i, outcome := range result.Results {
		assert.Equal(t, model.Endpoints[i].Name, outcome.Endpoint)
		assert.True(t, outcome.Success)
		assert.NotEmpty(t, outcome.Digest)
		assert.Positive(t, outcome.Bytes)
	}

	latest := readDir(t, h.store.Dirs(model.RangeWeeks).Latest)
	assert.Len(t, latest, 5)
	assert.Equal(t, "{\n  \"items\": [\n    {\n      \"position\": 1\n    }\n  ]\n}", latest["top-tracks.json"])

	for _, auth := range h.api.AuthHeaders() {
		assert.Equal(t, "Bearer tok", auth)
	}
}

func TestRunForRange_PacesBetweenRequestsOnly(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.EnsureDirectories(model.RangeWeeks))

	h.orch.RunForRange(context.Background(), model.RangeWeeks, "tok")

	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second, time.Second}, h.sleeper.Pauses())
}

func TestRunForRange_PartialSuccess(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.EnsureDirectories(model.RangeWeeks))
	h.api.Set("weeks/top-tracks", testutil.Response{Status: http.StatusInternalServerError, Body: "boom"})

	result := h.orch.RunForRange(context.Background(), model.RangeWeeks, "tok")

	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, 5, result.TotalCount)
	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "top-tracks", failures[0].Endpoint)
	assert.Equal(t, model.ErrorKindHTTPStatus, failures[0].ErrorKind)
	assert.Equal(t, "HTTP 500: boom", failures[0].Error)

	latest := readDir(t, h.store.Dirs(model.RangeWeeks).Latest)
	assert.Contains(t, latest, "top-genres.json")
	assert.NotContains(t, latest, "top-tracks.json")

	// every endpoint was still attempted, in order
	assert.Equal(t, []string{
		"weeks/top-genres", "weeks/streams-stats", "weeks/top-albums", "weeks/top-tracks", "weeks/top-artists",
	}, h.api.Requests())
}

func TestRunForRange_ParseFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.EnsureDirectories(model.RangeWeeks))
	h.api.Set("weeks/top-genres", testutil.Response{Status: http.StatusOK, Body: "<html>"})

	result := h.orch.RunForRange(context.Background(), model.RangeWeeks, "tok")

	require.Len(t, result.Failures(), 1)
	assert.Equal(t, model.ErrorKindParse, result.Failures()[0].ErrorKind)
}

func TestRunForRange_LogsRejectedCredential(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := newHarness(t)
	require.NoError(t, h.store.EnsureDirectories(model.RangeWeeks))
	h.api.Set("weeks/top-genres", testutil.Response{Status: http.StatusUnauthorized, Body: `{"message":"invalid token"}`})
	h.api.Set("weeks/top-albums", testutil.Response{Status: http.StatusInternalServerError, Body: "down"})

	result := h.orch.RunForRange(context.Background(), model.RangeWeeks, "tok")

	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 1, strings.Count(logs.String(), "stats.fm rejected the credential"))
	assert.Contains(t, logs.String(), "endpoint=top-genres")
}

type failingWrites struct {
	*snapshot.Store
	filename string
}

func (f failingWrites) WriteLatest(r model.Range, filename string, payload []byte) error {
	if filename == f.filename {
		return &snapshot.FilesystemError{Op: "write", Path: filename, Err: os.ErrPermission}
	}
	return f.Store.WriteLatest(r, filename, payload)
}

func TestRunForRange_WriteFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.EnsureDirectories(model.RangeWeeks))
	store := failingWrites{Store: h.store, filename: "top-albums.json"}
	f := fetcher.New(fetcher.Options{Client: h.api.Server.Client()})
	orch := NewOrchestrator(model.NewCatalog(h.api.URL(), testUser), f, store, h.sleeper, DefaultPacing)

	result := orch.RunForRange(context.Background(), model.RangeWeeks, "tok")

	assert.Equal(t, 4, result.SuccessCount)
	require.Len(t, result.Failures(), 1)
	assert.Equal(t, "top-albums", result.Failures()[0].Endpoint)
	assert.Equal(t, model.ErrorKindFilesystem, result.Failures()[0].ErrorKind)
}

func TestRunAll_PromotesEveryRange(t *testing.T) {
	h := newHarness(t)

	summary, err := h.coordinator().RunAll(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, 15, summary.TotalSuccess)
	assert.Equal(t, 15, summary.TotalRequests)
	assert.Equal(t, model.OutcomeSuccess, summary.Outcome())
	require.Len(t, summary.Ranges, 3)
	for i, r := range model.AllRanges {
		assert.Equal(t, r, summary.Ranges[i].Range)
		assert.Equal(t, model.StatePromoted, summary.Ranges[i].State)

		dirs := h.store.Dirs(r)
		latest := readDir(t, dirs.Latest)
		assert.Len(t, latest, 5)
		assert.Equal(t, latest, readDir(t, dirs.Old))
		assert.Equal(t, latest, readDir(t, dirs.Public))
	}

	requests := h.api.Requests()
	require.Len(t, requests, 15)
	assert.Equal(t, "weeks/top-genres", requests[0])
	assert.Equal(t, "months/top-genres", requests[5])
	assert.Equal(t, "lifetime/top-artists", requests[14])
}

func TestRunAll_MonthsScenario(t *testing.T) {
	h := newHarness(t)
	dirs := h.store.Dirs(model.RangeMonths)
	seed(t, dirs.Latest, map[string]string{"top-genres.json": `{"items":["stale"]}`})
	seed(t, dirs.Old, map[string]string{"top-genres.json": `{"items":["older"]}`})
	h.api.Set("months/top-genres", testutil.Response{Status: http.StatusOK, Body: `{"items":["fresh"]}`})

	summary, err := h.coordinator(model.RangeMonths).RunAll(context.Background(), "tok")
	require.NoError(t, err)

	require.Len(t, summary.Ranges, 1)
	result := summary.Ranges[0]
	assert.Equal(t, 5, result.SuccessCount)
	assert.Equal(t, 5, result.TotalCount)

	latest := readDir(t, dirs.Latest)
	assert.Equal(t, "{\n  \"items\": [\n    \"fresh\"\n  ]\n}", latest["top-genres.json"])
	// Backup runs after the fetch, so old holds the new latest, not the stale one.
	assert.Equal(t, latest, readDir(t, dirs.Old))
	assert.Equal(t, latest, readDir(t, dirs.Public))
}

func TestRunAll_PartialSuccessIsPromoted(t *testing.T) {
	h := newHarness(t)
	h.api.Set("weeks/top-tracks", testutil.Response{Status: http.StatusBadGateway, Body: "bad gateway"})
	dirs := h.store.Dirs(model.RangeWeeks)
	seed(t, dirs.Old, map[string]string{"top-tracks.json": `{"items":["backup"]}`})

	summary, err := h.coordinator(model.RangeWeeks).RunAll(context.Background(), "tok")
	require.NoError(t, err)

	result := summary.Ranges[0]
	assert.Equal(t, model.StatePromoted, result.State)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Contains(t, readDir(t, dirs.Public), "top-genres.json")
	// the failed file keeps its previous backup
	assert.Equal(t, `{"items":["backup"]}`, readDir(t, dirs.Old)["top-tracks.json"])
}

func TestRunAll_FallbackRestoresOldData(t *testing.T) {
	h := newHarness(t)
	h.api.FailAll(http.StatusServiceUnavailable)
	dirs := h.store.Dirs(model.RangeLifetime)
	backup := map[string]string{
		"top-genres.json":  "{\n  \"items\": []\n}",
		"top-artists.json": `{"items":[{"artist":{"name":"x"}}]}`,
	}
	seed(t, dirs.Old, backup)

	summary, err := h.coordinator(model.RangeLifetime).RunAll(context.Background(), "tok")
	require.NoError(t, err)

	result := summary.Ranges[0]
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 5, result.TotalCount)
	assert.Len(t, result.Failures(), 5)
	assert.Equal(t, model.StateFallbackRestored, result.State)
	assert.Equal(t, model.OutcomeDegraded, summary.Outcome())

	assert.Equal(t, backup, readDir(t, dirs.Latest))
	assert.Equal(t, backup, readDir(t, dirs.Public))
	assert.Equal(t, backup, readDir(t, dirs.Old))
}

func TestRunAll_FallbackUnavailableLeavesLatestUntouched(t *testing.T) {
	h := newHarness(t)
	h.api.FailAll(http.StatusUnauthorized)
	dirs := h.store.Dirs(model.RangeWeeks)
	existing := map[string]string{"top-genres.json": `{"items":["kept"]}`}
	seed(t, dirs.Latest, existing)

	summary, err := h.coordinator(model.RangeWeeks).RunAll(context.Background(), "bad")
	require.NoError(t, err)

	assert.Equal(t, model.StateFallbackUnavailable, summary.Ranges[0].State)
	assert.Equal(t, model.OutcomeFailed, summary.Outcome())
	assert.Equal(t, existing, readDir(t, dirs.Latest))
	assert.Empty(t, readDir(t, dirs.Public))
}

func TestRunAll_MixedRanges(t *testing.T) {
	h := newHarness(t)
	for _, ep := range model.Endpoints {
		h.api.Set("weeks/"+ep.Name, testutil.Response{Status: http.StatusInternalServerError, Body: "down"})
		h.api.Set("lifetime/"+ep.Name, testutil.Response{Status: http.StatusInternalServerError, Body: "down"})
	}
	seed(t, h.store.Dirs(model.RangeWeeks).Old, map[string]string{"top-genres.json": `{"items":[]}`})

	summary, err := h.coordinator().RunAll(context.Background(), "tok")
	require.NoError(t, err)

	states := make([]model.RangeState, 0, 3)
	for _, r := range summary.Ranges {
		states = append(states, r.State)
	}
	assert.Equal(t, []model.RangeState{
		model.StateFallbackRestored, model.StatePromoted, model.StateFallbackUnavailable,
	}, states)
	assert.Equal(t, 5, summary.TotalSuccess)
	assert.Equal(t, 15, summary.TotalRequests)
	assert.Equal(t, model.OutcomeSuccess, summary.Outcome())
}

func TestRunAll_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.api.Set("weeks/streams-stats", testutil.Response{Status: http.StatusOK, Body: `{"items":{"count":42}}`})
	c := h.coordinator(model.RangeWeeks)
	dirs := h.store.Dirs(model.RangeWeeks)

	_, err := c.RunAll(context.Background(), "tok")
	require.NoError(t, err)
	firstLatest := readDir(t, dirs.Latest)
	firstPublic := readDir(t, dirs.Public)

	_, err = c.RunAll(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, firstLatest, readDir(t, dirs.Latest))
	assert.Equal(t, firstPublic, readDir(t, dirs.Public))
	assert.Equal(t, firstLatest, readDir(t, dirs.Old))
}

func TestRunAll_DirectoryFailureStopsBeforeFetching(t *testing.T) {
	h := newHarness(t)
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	store := snapshot.NewStore(filepath.Join(blocker, "data"), filepath.Join(root, "public"))
	f := fetcher.New(fetcher.Options{Client: h.api.Server.Client()})
	orch := NewOrchestrator(model.NewCatalog(h.api.URL(), testUser), f, store, h.sleeper, DefaultPacing)

	_, err := NewCoordinator(orch, store, nil).RunAll(context.Background(), "tok")

	require.Error(t, err)
	assert.True(t, snapshot.IsFilesystemError(err))
	assert.Empty(t, h.api.Requests())
}

func TestRunAll_FileInPlaceOfLatestStopsBeforeFetching(t *testing.T) {
	h := newHarness(t)
	latest := h.store.Dirs(model.RangeWeeks).Latest
	require.NoError(t, os.MkdirAll(filepath.Dir(latest), 0o755))
	require.NoError(t, os.WriteFile(latest, []byte("x"), 0o644))

	_, err := h.coordinator().RunAll(context.Background(), "tok")

	require.Error(t, err)
	assert.True(t, snapshot.IsFilesystemError(err))
	assert.Contains(t, err.Error(), latest)
	assert.Empty(t, h.api.Requests())
}

type panickingFetcher struct{}

func (panickingFetcher) Fetch(context.Context, string, string) (json.RawMessage, error) {
	panic("unexpected")
}

func TestRunAll_RecoversPanicAndFallbackAllRestores(t *testing.T) {
	h := newHarness(t)
	orch := NewOrchestrator(model.NewCatalog(h.api.URL(), testUser), panickingFetcher{}, h.store, h.sleeper, DefaultPacing)
	c := NewCoordinator(orch, h.store, nil)
	seed(t, h.store.Dirs(model.RangeMonths).Old, map[string]string{"top-albums.json": `{"items":[]}`})

	_, err := c.RunAll(context.Background(), "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	results := c.FallbackAll(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, model.StateFallbackUnavailable, results[0].State)
	assert.Equal(t, model.StateFallbackRestored, results[1].State)
	assert.Equal(t, model.StateFallbackUnavailable, results[2].State)
	assert.Equal(t, `{"items":[]}`, readDir(t, h.store.Dirs(model.RangeMonths).Public)["top-albums.json"])
}

type recordingPublisher struct {
	calls []string
	err   error
}

func (p *recordingPublisher) PublishRange(_ context.Context, r model.Range, dir string) error {
	p.calls = append(p.calls, r.String()+":"+filepath.Base(filepath.Dir(dir)))
	return p.err
}

func TestRunAll_PublishesPromotedAndRestoredRanges(t *testing.T) {
	h := newHarness(t)
	for _, ep := range model.Endpoints {
		h.api.Set("months/"+ep.Name, testutil.Response{Status: http.StatusInternalServerError, Body: "down"})
		h.api.Set("lifetime/"+ep.Name, testutil.Response{Status: http.StatusInternalServerError, Body: "down"})
	}
	seed(t, h.store.Dirs(model.RangeMonths).Old, map[string]string{"top-genres.json": `{"items":[]}`})
	pub := &recordingPublisher{err: errors.New("bucket unavailable")}

	summary, err := NewCoordinator(h.orch, h.store, nil, pub).RunAll(context.Background(), "tok")
	require.NoError(t, err)

	// publisher errors never change range state
	assert.Equal(t, model.StatePromoted, summary.Ranges[0].State)
	assert.Equal(t, model.StateFallbackRestored, summary.Ranges[1].State)
	assert.Equal(t, []string{"weeks:weeks", "months:months"}, pub.calls)
}

func TestNewCoordinator_OrdersRanges(t *testing.T) {
	h := newHarness(t)
	c := NewCoordinator(h.orch, h.store, []model.Range{model.RangeLifetime, model.RangeWeeks, model.RangeLifetime})
	assert.Equal(t, []model.Range{model.RangeWeeks, model.RangeLifetime}, c.Ranges())
}

func TestTimerSleeper_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := TimerSleeper{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, TimerSleeper{}.Sleep(context.Background(), 0))
}
