package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/musicsnap/internal/ledger"
	"github.com/roach88/musicsnap/internal/model"
	"github.com/roach88/musicsnap/internal/snapshot"
)

func writeFetchText(w io.Writer, r FetchReport) {
	fmt.Fprintln(w, "Range     State                 Fetched")
	for _, rr := range r.Summary.Ranges {
		fmt.Fprintf(w, "%-9s %-21s %d/%d\n", rr.Range, rr.State, rr.SuccessCount, rr.TotalCount)
		for _, f := range rr.Failures() {
			fmt.Fprintf(w, "  ✗ %s: %s\n", f.Endpoint, f.Error)
		}
	}

	if r.Error != "" {
		fmt.Fprintf(w, "\nRun aborted: %s\n", r.Error)
		fmt.Fprintln(w, "Fallback:")
		for _, fb := range r.Fallback {
			fmt.Fprintf(w, "  %-9s %s\n", fb.Range, fb.State)
		}
	}

	fmt.Fprintf(w, "\nSummary: %d/%d requests successful\n", r.Summary.TotalSuccess, r.Summary.TotalRequests)
	fmt.Fprintf(w, "Outcome: %s\n", r.Outcome)
	if r.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", r.RunID)
	}
}

// VerifyReport is what the verify command prints.
type VerifyReport struct {
	Ranges        []snapshot.RangeReport `json:"ranges"`
	CredentialSet bool                   `json:"credential_set"`
	Problems      []string               `json:"problems"`
}

func writeVerifyText(w io.Writer, r VerifyReport) {
	for _, rr := range r.Ranges {
		fmt.Fprintf(w, "== %s ==\n", rr.Range)
		fmt.Fprintf(w, "  latest dir: %s\n", okOrMissing(rr.LatestExists))
		fmt.Fprintf(w, "  old dir:    %s\n", okOrMissing(rr.OldExists))
		fmt.Fprintf(w, "  public dir: %s\n", okOrMissing(rr.PublicExists))
		for _, f := range rr.Files {
			fmt.Fprintf(w, "  %-20s %s\n", f.Filename, describeFile(f))
		}
	}

	if r.CredentialSet {
		fmt.Fprintln(w, "\nCredential: STATS_FM_TOKEN is set")
	} else {
		fmt.Fprintln(w, "\nCredential: STATS_FM_TOKEN is not set")
	}

	if len(r.Problems) == 0 {
		fmt.Fprintln(w, "✓ Snapshot tree is healthy")
		return
	}
	fmt.Fprintf(w, "✗ %d problem(s) found:\n", len(r.Problems))
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}

func describeFile(f snapshot.FileReport) string {
	if !f.Latest.Present {
		return fmt.Sprintf("latest=missing old=%s public=%s", yesNo(f.Old.Present), yesNo(f.Public.Present))
	}
	parts := []string{
		fmt.Sprintf("latest=%dB", f.Latest.Size),
		"old=" + yesNo(f.Old.Present),
		"public=" + yesNo(f.Public.Present),
	}
	if !f.ValidJSON {
		parts = append(parts, "invalid JSON: "+f.JSONError)
		return strings.Join(parts, " ")
	}
	if f.ItemCount >= 0 {
		parts = append(parts, fmt.Sprintf("items=%d", f.ItemCount))
	}
	if f.StreamCount >= 0 {
		parts = append(parts, fmt.Sprintf("streams=%d", f.StreamCount))
	}
	if f.TopLabel != "" {
		parts = append(parts, fmt.Sprintf("top=%q", f.TopLabel))
	}
	return strings.Join(parts, " ")
}

// RestoreReport is what the restore command prints.
type RestoreReport struct {
	Ranges []model.RangeResult `json:"ranges"`
}

func writeRestoreText(w io.Writer, r RestoreReport) {
	for _, rr := range r.Ranges {
		fmt.Fprintf(w, "%-9s %s\n", rr.Range, rr.State)
	}
}

func writeHistoryText(w io.Writer, runs []ledger.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	fmt.Fprintln(w, "Run                                   Started               Outcome   Fetched")
	for _, run := range runs {
		fmt.Fprintf(w, "%-37s %-21s %-9s %d/%d\n",
			run.ID,
			run.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			run.Outcome,
			run.Summary.TotalSuccess,
			run.Summary.TotalRequests,
		)
	}
}

func writeRunText(w io.Writer, run ledger.Run) {
	fmt.Fprintf(w, "Run:      %s\n", run.ID)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.UTC().Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt))
	fmt.Fprintf(w, "Outcome:  %s\n", run.Outcome)
	if run.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", run.Error)
	}
	for _, rr := range run.Summary.Ranges {
		fmt.Fprintf(w, "\n%-9s %-21s %d/%d\n", rr.Range, rr.State, rr.SuccessCount, rr.TotalCount)
		for _, o := range rr.Results {
			if o.Success {
				fmt.Fprintf(w, "  ✓ %-14s %6dB %s\n", o.Endpoint, o.Bytes, o.Digest)
			} else {
				fmt.Fprintf(w, "  ✗ %-14s %s (%s)\n", o.Endpoint, o.Error, o.ErrorKind)
			}
		}
	}
	if len(run.Fallback) > 0 {
		fmt.Fprintln(w, "\nFallback:")
		for _, fb := range run.Fallback {
			fmt.Fprintf(w, "  %-9s %s\n", fb.Range, fb.State)
		}
	}
}

func okOrMissing(ok bool) string {
	if ok {
		return "ok"
	}
	return "missing"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
