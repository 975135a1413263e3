package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"testforge/internal/generate"
	"testforge/internal/logging"
	"testforge/internal/track"
)

// CommandExecutor runs a script through an external interpreter and
// maps the exit code onto the outcome status: zero exit PASSED,
// non-zero FAILED, anything that prevents a verdict ERROR.
type CommandExecutor struct {
	Interpreter string        // e.g. "python3", "node"
	Args        []string      // extra interpreter args, placed before the script path
	WorkDir     string        // inherited from the process when empty
	Timeout     time.Duration // per-script wall clock limit; 0 means no limit

	logger *slog.Logger
}

func NewCommandExecutor(interpreter string, timeout time.Duration) *CommandExecutor {
	return &CommandExecutor{
		Interpreter: interpreter,
		Timeout:     timeout,
		logger:      logging.New("execute"),
	}
}

// Execute materializes the script source in a scratch directory, runs
// it, and folds both output streams into the outcome log.
func (e *CommandExecutor) Execute(ctx context.Context, script generate.Script) track.Outcome {
	logs := []track.LogEntry{logLine("INFO",
		fmt.Sprintf("running %s script for %s via %s", script.Tool, script.TestCaseID, e.Interpreter))}

	dir, err := os.MkdirTemp("", "testforge-run-")
	if err != nil {
		return errorOutcome(script, logs, fmt.Errorf("scratch dir: %w", err))
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, generate.ScriptFilename(script))
	if err := os.WriteFile(path, []byte(script.SourceText), 0o644); err != nil {
		return errorOutcome(script, logs, fmt.Errorf("materialize script: %w", err))
	}

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, e.Args...), path)
	cmd := exec.CommandContext(runCtx, e.Interpreter, args...)
	cmd.Dir = e.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	logs = appendLines(logs, "INFO", stdout.String())
	logs = appendLines(logs, "ERROR", stderr.String())

	out := track.Outcome{TestCaseID: script.TestCaseID}
	switch {
	case runErr != nil && runCtx.Err() != nil:
		out.Status = track.StatusError
		out.ErrorMessage = fmt.Sprintf("execution aborted after %s: %v", elapsed.Round(time.Millisecond), runCtx.Err())
		logs = append(logs, logLine("ERROR", out.ErrorMessage))
	case runErr == nil:
		out.Status = track.StatusPassed
		logs = append(logs, logLine("INFO", fmt.Sprintf("completed in %s", elapsed.Round(time.Millisecond))))
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			out.Status = track.StatusFailed
			out.ErrorMessage = failureMessage(stderr.String(), exitErr)
		} else {
			out.Status = track.StatusError
			out.ErrorMessage = runErr.Error()
		}
		logs = append(logs, logLine("ERROR", out.ErrorMessage))
	}
	out.Logs = logs

	e.logger.Info("script executed",
		"case", script.TestCaseID, "status", string(out.Status), "elapsed", elapsed.Round(time.Millisecond))
	return out
}

// failureMessage prefers the script's own last stderr line over the
// bare exit status.
func failureMessage(stderr string, exitErr *exec.ExitError) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		return last
	}
	return exitErr.Error()
}
