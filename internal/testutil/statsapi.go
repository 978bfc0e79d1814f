package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Response is a canned reply of the fake stats API.
type Response struct {
	Status int
	Body   string
}

// StatsAPI is an httptest server that answers stats.fm-shaped requests.
//
// Responses are keyed by "<range>/<kind>", e.g. "weeks/top-tracks", where
// kind is the endpoint name derived from the request path. Unknown keys get
// the Default response.
type StatsAPI struct {
	Server  *httptest.Server
	Default Response

	mu        sync.Mutex
	responses map[string]Response
	requests  []string
	auth      []string
}

// NewStatsAPI starts a fake API that returns Default ({"items":[]}) for every request.
// The server is closed when the test ends.
func NewStatsAPI(t testing.TB) *StatsAPI {
	t.Helper()
	api := &StatsAPI{
		Default:   Response{Status: http.StatusOK, Body: `{"items":[]}`},
		responses: map[string]Response{},
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Server.Close)
	return api
}

// URL is the API root to hand to model.NewCatalog.
func (a *StatsAPI) URL() string {
	return a.Server.URL + "/api/v1"
}

// Set configures the reply for key ("<range>/<kind>").
func (a *StatsAPI) Set(key string, resp Response) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.responses[key] = resp
}

// FailAll makes every request answer with status.
func (a *StatsAPI) FailAll(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Default = Response{Status: status, Body: `{"message":"unavailable"}`}
	a.responses = map[string]Response{}
}

// Requests returns the keys requested so far, in order.
func (a *StatsAPI) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.requests))
	copy(out, a.requests)
	return out
}

// AuthHeaders returns the Authorization headers received, in order.
func (a *StatsAPI) AuthHeaders() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.auth))
	copy(out, a.auth)
	return out
}

func (a *StatsAPI) serve(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("range") + "/" + kindFromPath(r.URL.Path)

	a.mu.Lock()
	a.requests = append(a.requests, key)
	a.auth = append(a.auth, r.Header.Get("Authorization"))
	resp, ok := a.responses[key]
	if !ok {
		resp = a.Default
	}
	a.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	_, _ = w.Write([]byte(resp.Body))
}

// kindFromPath maps ".../top/genres" to "top-genres" and ".../streams/stats"
// to "streams-stats".
func kindFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return path
	}
	return parts[len(parts)-2] + "-" + parts[len(parts)-1]
}
