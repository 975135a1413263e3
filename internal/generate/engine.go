// Package generate drives a generation backend through three typed modes
// (prompt, test-case set, script) behind one bounded validate/repair state
// machine: DRAFTING -> VALIDATING -> {ACCEPTED | REPAIRING -> DRAFTING |
// REJECTED}. Untyped backend text never escapes past VALIDATING.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"testforge/internal/logging"
)

// Backend is the generation capability the engine drives. Output may be
// malformed or non-deterministic between calls; the engine's validation
// loop is the only defense.
type Backend interface {
	Generate(ctx context.Context, instruction, contextText string) (string, error)
	Name() string
}

// CaseOptions shapes a test-case batch.
type CaseOptions struct {
	Count    int
	Level    string // smoke, regression, full
	CaseType string // functional, negative, boundary
}

// ScriptOptions selects the automation tool and target for script mode.
type ScriptOptions struct {
	Tool   string
	Target string
}

// Engine runs generation requests. It holds no per-request state, so
// independent requests may run concurrently up to the caller's limit.
type Engine struct {
	general    Backend // prompt and test-case modes
	code       Backend // script mode
	maxRepairs int
	logger     *slog.Logger
}

// NewEngine builds an engine. code may equal general when no dedicated
// code model is configured. maxRepairs bounds re-drafting per request.
func NewEngine(general, code Backend, maxRepairs int) *Engine {
	if code == nil {
		code = general
	}
	if maxRepairs < 0 {
		maxRepairs = 0
	}
	return &Engine{
		general:    general,
		code:       code,
		maxRepairs: maxRepairs,
		logger:     logging.New("generate"),
	}
}

// GeneratePrompt turns a raw query into a reusable generation prompt
// (prompt mode). Validation is structural: the output must be non-empty.
func (e *Engine) GeneratePrompt(ctx context.Context, query, contextText string, opts CaseOptions) (string, error) {
	instruction, err := fillInstruction("prompt", promptInstructionTmpl, instructionParams{
		Count:    opts.Count,
		Level:    opts.Level,
		CaseType: opts.CaseType,
		Query:    query,
	})
	if err != nil {
		return "", err
	}

	return run(ctx, e, e.general, ModePrompt, instruction, contextText, func(raw string) (string, error) {
		out := strings.TrimSpace(raw)
		if out == "" {
			return "", &ValidationError{Reason: "empty prompt output"}
		}
		return out, nil
	})
}

// GenerateCases produces a validated, renumbered test-case batch
// (test-case mode). Acceptance is all-or-nothing: one bad record rejects
// the whole batch into repair.
func (e *Engine) GenerateCases(ctx context.Context, prompt, contextText string, opts CaseOptions) ([]TestCase, error) {
	instruction, err := fillInstruction("cases", casesInstructionTmpl, instructionParams{
		Count:    opts.Count,
		Level:    opts.Level,
		CaseType: opts.CaseType,
		Prompt:   prompt,
	})
	if err != nil {
		return nil, err
	}

	cases, err := run(ctx, e, e.general, ModeCases, instruction, contextText, validateCaseBatch)
	if err != nil {
		return nil, err
	}

	// Sequential ids within the batch; backend-proposed ids are discarded.
	for i := range cases {
		cases[i].ID = fmt.Sprintf("TC_%03d", i+1)
	}
	return cases, nil
}

// GenerateScript produces one executable script for one accepted test case
// (script mode). Validation is structural only: non-empty source. Whether
// the script semantically covers the expected result is not checked.
func (e *Engine) GenerateScript(ctx context.Context, tc TestCase, contextText string, opts ScriptOptions) (*Script, error) {
	caseJSON, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal test case %s: %w", tc.ID, err)
	}

	instruction, err := fillInstruction("script", scriptInstructionTmpl, instructionParams{
		Tool:     opts.Tool,
		Target:   opts.Target,
		CaseJSON: string(caseJSON),
	})
	if err != nil {
		return nil, err
	}

	source, err := run(ctx, e, e.code, ModeScript, instruction, contextText, func(raw string) (string, error) {
		out := cleanCode(raw)
		if out == "" {
			return "", &ValidationError{Reason: "empty script output"}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &Script{
		TestCaseID: tc.ID,
		Tool:       opts.Tool,
		Target:     opts.Target,
		SourceText: source,
	}, nil
}

// run drives one request through the state machine. Every repair is a
// fresh DRAFTING call carrying the failure reason; after maxRepairs
// re-drafts the request terminates REJECTED with the last reason. Backend
// timeouts also terminate REJECTED; other backend errors (including
// unavailability and caller cancellation) propagate unchanged.
func run[T any](ctx context.Context, e *Engine, b Backend, mode Mode, instruction, contextText string, validate func(string) (T, error)) (T, error) {
	var zero T
	lastReason := ""

	for attempt := 0; attempt <= e.maxRepairs; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		state := StateDrafting
		inst := instruction
		if attempt > 0 {
			state = StateRepairing
			inst = repairInstruction(instruction, lastReason)
		}
		e.logger.Debug("drafting", "mode", string(mode), "state", string(state), "attempt", attempt+1, "backend", b.Name())

		raw, err := b.Generate(ctx, inst, contextText)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				e.logger.Warn("backend timeout", "mode", string(mode), "attempt", attempt+1)
				return zero, &GenerationFailedError{
					Mode:       mode,
					Attempts:   attempt + 1,
					LastReason: "backend timeout: " + err.Error(),
				}
			}
			return zero, fmt.Errorf("%s generation: %w", mode, err)
		}

		e.logger.Debug("validating", "mode", string(mode), "state", string(StateValidating), "attempt", attempt+1)
		payload, verr := validate(raw)
		if verr == nil {
			e.logger.Info("generation accepted", "mode", string(mode), "state", string(StateAccepted), "attempts", attempt+1)
			return payload, nil
		}

		lastReason = verr.Error()
		e.logger.Warn("validation failed", "mode", string(mode), "attempt", attempt+1, "reason", lastReason)
	}

	e.logger.Error("generation rejected", "mode", string(mode), "state", string(StateRejected), "attempts", e.maxRepairs+1, "reason", lastReason)
	return zero, &GenerationFailedError{
		Mode:       mode,
		Attempts:   e.maxRepairs + 1,
		LastReason: lastReason,
	}
}

// validateCaseBatch parses backend output into test cases and checks every
// record. Any violation invalidates the whole batch.
func validateCaseBatch(raw string) ([]TestCase, error) {
	arr, ok := extractArray(string(cleanJSON([]byte(raw))))
	if !ok {
		return nil, &ValidationError{Reason: "output contains no JSON array"}
	}

	parsed, err := parseJSON[[]TestCase]([]byte(arr))
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("output is not a JSON array of test cases: %v", err)}
	}

	cases := *parsed
	if len(cases) == 0 {
		return nil, &ValidationError{Reason: "output array is empty"}
	}

	for i, tc := range cases {
		if strings.TrimSpace(tc.Title) == "" {
			return nil, &ValidationError{Reason: fmt.Sprintf("test case %d has an empty title", i+1)}
		}
		if len(tc.Steps) == 0 {
			return nil, &ValidationError{Reason: fmt.Sprintf("test case %d (%s) has no steps", i+1, tc.Title)}
		}
		p, ok := normalizePriority(string(tc.Priority))
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("test case %d (%s) has priority %q, want Low, Medium, or High", i+1, tc.Title, tc.Priority)}
		}
		cases[i].Priority = p
	}
	return cases, nil
}
