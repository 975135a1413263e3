package generate

import (
	"errors"
	"fmt"
	"strings"
)

// Priority is the closed severity enum for a test case.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// normalizePriority maps case-insensitive variants onto the canonical enum.
// Anything else fails validation.
func normalizePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, true
	case "medium", "med":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	default:
		return "", false
	}
}

// TestCase is one structured test case. Immutable after validation passes;
// IDs are assigned by the engine, never by the backend.
type TestCase struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Preconditions  []string `json:"preconditions"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	Priority       Priority `json:"priority"`
	Tags           []string `json:"tags"`
}

// Script is one executable artifact for exactly one test case.
// Regeneration produces a new artifact; the old one is superseded, not
// mutated.
type Script struct {
	TestCaseID string `json:"test_case_id"`
	Tool       string `json:"tool"`
	Target     string `json:"target"`
	SourceText string `json:"source_text"`
}

// Mode names one of the engine's generation modes.
type Mode string

const (
	ModePrompt Mode = "prompt"
	ModeCases  Mode = "test-case"
	ModeScript Mode = "script"
)

// State is one step of the bounded generation state machine.
type State string

const (
	StateDrafting   State = "DRAFTING"
	StateValidating State = "VALIDATING"
	StateRepairing  State = "REPAIRING"
	StateAccepted   State = "ACCEPTED"
	StateRejected   State = "REJECTED"
)

// ValidationError flags structurally invalid backend output. It triggers
// the repair loop; the whole batch is invalid, never a partial subset.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// GenerationFailedError is the REJECTED terminal state: repairs were
// exhausted (or the backend timed out) and nothing was produced. It always
// carries the last validation failure so callers can distinguish "nothing
// produced" from "produced but failed".
type GenerationFailedError struct {
	Mode       Mode
	Attempts   int
	LastReason string
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("%s generation failed after %d attempt(s): %s", e.Mode, e.Attempts, e.LastReason)
}

// IsGenerationFailed reports whether err wraps a GenerationFailedError.
func IsGenerationFailed(err error) bool {
	var ge *GenerationFailedError
	return errors.As(err, &ge)
}
