// Package execute runs generated scripts and reduces each attempt to a
// single trackable outcome. Executors never return errors: anything
// that prevents a verdict is encoded as an ERROR outcome so one bad
// script cannot take down a run.
package execute

import (
	"context"
	"fmt"
	"strings"
	"time"

	"testforge/internal/generate"
	"testforge/internal/track"
)

// Executor turns one script into one execution outcome.
type Executor interface {
	Execute(ctx context.Context, script generate.Script) track.Outcome
}

// maxLogLines caps captured output per stream so a chatty script cannot
// bloat the outcome log.
const maxLogLines = 500

func logLine(level, msg string) track.LogEntry {
	return track.LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   msg,
	}
}

// appendLines folds one output stream into the log, one entry per line.
func appendLines(logs []track.LogEntry, level, text string) []track.LogEntry {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return logs
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxLogLines {
		dropped := len(lines) - maxLogLines
		lines = append(lines[:maxLogLines], fmt.Sprintf("... %d lines dropped", dropped))
	}
	for _, line := range lines {
		logs = append(logs, logLine(level, line))
	}
	return logs
}

func errorOutcome(script generate.Script, logs []track.LogEntry, err error) track.Outcome {
	return track.Outcome{
		TestCaseID:   script.TestCaseID,
		Status:       track.StatusError,
		ErrorMessage: err.Error(),
		Logs:         append(logs, logLine("ERROR", err.Error())),
	}
}
