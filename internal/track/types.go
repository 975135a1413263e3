package track

import (
	"fmt"
	"strings"
)

// Status is the closed result enum for one execution attempt.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
	StatusError  Status = "ERROR"
)

// ParseStatus maps a case-insensitive status string onto the closed enum.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASSED":
		return StatusPassed, nil
	case "FAILED":
		return StatusFailed, nil
	case "ERROR":
		return StatusError, nil
	default:
		return "", fmt.Errorf("unknown status %q, want PASSED, FAILED, or ERROR", s)
	}
}

// LogEntry is one timestamped line captured during an execution attempt.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Outcome is one immutable record of a single execution attempt. Keyed by
// (TestCaseID, Attempt); corrections are new attempts, never edits.
type Outcome struct {
	TestCaseID   string     `json:"test_case_id"`
	Attempt      int        `json:"attempt"`
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Logs         []LogEntry `json:"logs,omitempty"`
	ArtifactRefs []string   `json:"artifact_refs,omitempty"`
	RecordedAt   string     `json:"recorded_at"`
}

// Filter narrows an Outcomes query. Zero values match everything.
type Filter struct {
	TestCaseID string
	Status     Status
}

// DuplicateOutcomeError means an outcome under the same (test_case_id,
// attempt) key already exists. Outcomes are append-only; re-execution must
// use a fresh attempt number.
type DuplicateOutcomeError struct {
	TestCaseID string
	Attempt    int
}

func (e *DuplicateOutcomeError) Error() string {
	return fmt.Sprintf("outcome for %s attempt %d already recorded", e.TestCaseID, e.Attempt)
}
