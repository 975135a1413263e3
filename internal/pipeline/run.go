package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"testforge/internal/config"
	"testforge/internal/execute"
	"testforge/internal/generate"
	"testforge/internal/gitops"
	"testforge/internal/report"
	"testforge/internal/track"
)

// RunResult carries everything a caller needs after an execution pass.
// CommitID is empty unless auto-commit fired.
type RunResult struct {
	Report      report.Report
	ReportPaths []string
	CommitID    string
}

// Run pushes scripts through the executor pool, records one outcome per
// script under a fresh attempt number, aggregates this run's outcomes,
// writes report artifacts, and auto-commits when configured and green.
// Recording happens outside the pool's serialized section.
func (p *Pipeline) Run(ctx context.Context, scripts []generate.Script, exec execute.Executor) (*RunResult, error) {
	if len(scripts) == 0 {
		return nil, fmt.Errorf("run: no scripts to execute")
	}

	pool := execute.NewPool(exec, p.Cfg.Execute.Workers)
	outcomes := make([]track.Outcome, len(scripts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Cfg.Execute.Workers)
	for i, sc := range scripts {
		g.Go(func() error {
			out := pool.Execute(gctx, sc)
			if err := p.RecordOutcome(gctx, &out); err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := report.Aggregate(outcomes)

	paths, err := p.writeReports(rep)
	if err != nil {
		return nil, err
	}

	commitID, err := gitops.AutoCommit(ctx, p.Cfg.Git, ".", rep, artifactPaths(p.Cfg))
	if err != nil {
		// The run itself succeeded and is durably recorded.
		p.logger.Warn("auto-commit failed", "err", err)
	}

	p.logger.Info("run finished",
		"total", rep.Total, "passed", rep.Passed, "failed", rep.Failed, "errored", rep.Errored)
	return &RunResult{Report: rep, ReportPaths: paths, CommitID: commitID}, nil
}

// RecordOutcome assigns a fresh attempt number and appends the outcome,
// filling RecordedAt if the caller left it empty. Concurrent executions
// of the same case can race on the number; the loser retries against the
// log's duplicate check.
func (p *Pipeline) RecordOutcome(ctx context.Context, out *track.Outcome) error {
	for tries := 0; tries < 5; tries++ {
		attempt, err := p.Tracker.NextAttempt(ctx, out.TestCaseID)
		if err != nil {
			return err
		}
		out.Attempt = attempt
		if out.RecordedAt == "" {
			out.RecordedAt = time.Now().UTC().Format(time.RFC3339)
		}
		err = p.Tracker.Record(ctx, *out)
		if err == nil {
			return nil
		}
		if !track.IsDuplicateOutcome(err) {
			return err
		}
	}
	return fmt.Errorf("record %s: could not allocate a fresh attempt", out.TestCaseID)
}

// Snapshot re-aggregates the full outcome log, optionally narrowed by
// the filter. This is the report command's path: pure over whatever the
// tracker holds at call time.
func (p *Pipeline) Snapshot(ctx context.Context, f track.Filter) (report.Report, error) {
	outcomes, err := p.Tracker.Outcomes(ctx, f)
	if err != nil {
		return report.Report{}, err
	}
	return report.Aggregate(outcomes), nil
}

// writeReports persists the report as JSON and HTML under
// paths.reports_dir with the timestamped naming convention.
func (p *Pipeline) writeReports(rep report.Report) ([]string, error) {
	dir := p.Cfg.Paths.ReportsDir
	jsonPath := filepath.Join(dir, report.DefaultFilename("json"))
	if err := report.WriteJSON(rep, jsonPath); err != nil {
		return nil, err
	}
	htmlPath := filepath.Join(dir, report.DefaultFilename("html"))
	if err := report.WriteHTML(rep, htmlPath); err != nil {
		return nil, err
	}
	return []string{jsonPath, htmlPath}, nil
}

// artifactPaths lists the artifact directories that exist right now;
// git add rejects pathspecs with no matches.
func artifactPaths(cfg *config.Config) []string {
	var paths []string
	for _, dir := range []string{cfg.Paths.CasesDir, cfg.Paths.ScriptsDir, cfg.Paths.ReportsDir} {
		if _, err := os.Stat(dir); err == nil {
			paths = append(paths, dir)
		}
	}
	return paths
}
