package model

import "time"

// RangeState tracks a range through a single run.
//
//	pending -> fetching -> {succeeded, failed}
//	succeeded -> promoted
//	failed -> {fallback_restored, fallback_unavailable}
type RangeState string

const (
	StatePending             RangeState = "pending"
	StateFetching            RangeState = "fetching"
	StateSucceeded           RangeState = "succeeded"
	StateFailed              RangeState = "failed"
	StatePromoted            RangeState = "promoted"
	StateFallbackRestored    RangeState = "fallback_restored"
	StateFallbackUnavailable RangeState = "fallback_unavailable"
)

// Terminal reports whether s ends the range state machine.
func (s RangeState) Terminal() bool {
	switch s {
	case StatePromoted, StateFallbackRestored, StateFallbackUnavailable:
		return true
	default:
		return false
	}
}

// ErrorKind classifies a failed outcome.
const (
	ErrorKindNetwork    = "network"
	ErrorKindTimeout    = "timeout"
	ErrorKindHTTPStatus = "http_status"
	ErrorKindParse      = "parse"
	ErrorKindFilesystem = "filesystem"
)

// FetchOutcome records the result of one (range, endpoint) fetch.
type FetchOutcome struct {
	Endpoint  string        `json:"endpoint"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Bytes     int           `json:"bytes,omitempty"`
	Digest    string        `json:"digest,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// RangeResult folds the outcomes of one range pass.
type RangeResult struct {
	Range        Range          `json:"range"`
	SuccessCount int            `json:"success_count"`
	TotalCount   int            `json:"total_count"`
	Results      []FetchOutcome `json:"results"`
	State        RangeState     `json:"state"`
}

// Failures returns the failed outcomes in catalog order.
func (r RangeResult) Failures() []FetchOutcome {
	var failed []FetchOutcome
	for _, outcome := range r.Results {
		if !outcome.Success {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// RunOutcome is the overall verdict of a run.
type RunOutcome string

const (
	OutcomeSuccess  RunOutcome = "success"
	OutcomeDegraded RunOutcome = "degraded"
	OutcomeFailed   RunOutcome = "failed"
)

// RunSummary aggregates every RangeResult of a run.
type RunSummary struct {
	Ranges        []RangeResult `json:"ranges"`
	TotalSuccess  int           `json:"total_success"`
	TotalRequests int           `json:"total_requests"`
}

// Add appends a range result and updates the counters.
func (s *RunSummary) Add(result RangeResult) {
	s.Ranges = append(s.Ranges, result)
	s.TotalSuccess += result.SuccessCount
	s.TotalRequests += result.TotalCount
}

// Outcome decides the run verdict: any fresh data is a success, restored
// fallback data with no fresh data is degraded, anything else failed.
func (s RunSummary) Outcome() RunOutcome {
	if s.TotalSuccess > 0 {
		return OutcomeSuccess
	}
	for _, r := range s.Ranges {
		if r.State == StateFallbackRestored {
			return OutcomeDegraded
		}
	}
	return OutcomeFailed
}
