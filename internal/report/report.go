// Package report computes summary statistics over execution outcomes and
// renders them. Aggregation is a pure function of its input snapshot;
// rendering is a separate, explicitly side-effecting step so the statistics
// stay independently testable.
package report

import (
	"fmt"
	"sort"
	"time"

	"testforge/internal/track"
)

// Detail is one outcome as it appears in a report, carrying everything the
// renderers need.
type Detail struct {
	TestCaseID   string           `json:"test_case_id"`
	Attempt      int              `json:"attempt"`
	Status       track.Status     `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Logs         []track.LogEntry `json:"logs,omitempty"`
	ArtifactRefs []string         `json:"artifact_refs,omitempty"`
	RecordedAt   string           `json:"recorded_at"`
}

// Report is the derived aggregate of an outcome snapshot. The same snapshot
// always yields an identical report.
type Report struct {
	Total    int      `json:"total"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Errored  int      `json:"errored"`
	PassRate float64  `json:"pass_rate"`
	Details  []Detail `json:"details"`
}

// Aggregate computes a Report from an outcome snapshot. Pure: no I/O, no
// hidden state, invariant to the order of the input sequence. An empty
// snapshot yields total 0 and pass rate 0, never a division error.
func Aggregate(outcomes []track.Outcome) Report {
	r := Report{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case track.StatusPassed:
			r.Passed++
		case track.StatusFailed:
			r.Failed++
		default:
			r.Errored++
		}
		r.Details = append(r.Details, Detail{
			TestCaseID:   o.TestCaseID,
			Attempt:      o.Attempt,
			Status:       o.Status,
			ErrorMessage: o.ErrorMessage,
			Logs:         o.Logs,
			ArtifactRefs: o.ArtifactRefs,
			RecordedAt:   o.RecordedAt,
		})
	}

	if r.Total > 0 {
		r.PassRate = float64(r.Passed) / float64(r.Total)
	}

	// Canonical detail order makes the report identical regardless of the
	// input sequence order.
	sort.Slice(r.Details, func(i, j int) bool {
		if r.Details[i].TestCaseID != r.Details[j].TestCaseID {
			return r.Details[i].TestCaseID < r.Details[j].TestCaseID
		}
		return r.Details[i].Attempt < r.Details[j].Attempt
	})

	return r
}

// AllPassed reports whether every outcome in the snapshot passed. An empty
// report has nothing passing.
func (r Report) AllPassed() bool {
	return r.Total > 0 && r.Passed == r.Total
}

// DefaultFilename returns a timestamped report filename with the given
// extension (without dot), matching the persisted report naming scheme.
func DefaultFilename(ext string) string {
	return fmt.Sprintf("execution_report_%s.%s", time.Now().Format("20060102_150405"), ext)
}
