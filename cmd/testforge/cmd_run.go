package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"testforge/internal/execute"
	"testforge/internal/format"
	"testforge/internal/generate"
	"testforge/internal/report"
)

var runFlags struct {
	caseID  string
	browser bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute generated scripts and record outcomes",
	Long: "Executes every saved script through the worker pool, records one outcome\n" +
		"per script under a fresh attempt number, writes JSON and HTML reports, and\n" +
		"auto-commits artifacts when configured and the run is green.",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.caseID, "case-id", "", "Run only the script for one case")
	f.BoolVar(&runFlags.browser, "browser", false, "Check script targets with headless Chrome instead of running the interpreter")
}

func runRun(cmd *cobra.Command, _ []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	scripts, err := generate.LoadScripts(p.Cfg.Paths.ScriptsDir)
	if err != nil {
		return err
	}
	if runFlags.caseID != "" {
		var picked []generate.Script
		for _, sc := range scripts {
			if sc.TestCaseID == runFlags.caseID {
				picked = append(picked, sc)
				break
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("no script for case %s in %s", runFlags.caseID, p.Cfg.Paths.ScriptsDir)
		}
		scripts = picked
	}
	if len(scripts) == 0 {
		return fmt.Errorf("no scripts in %s: generate scripts first", p.Cfg.Paths.ScriptsDir)
	}

	// Saved scripts carry case id, tool, and source; the target comes
	// from config at run time.
	for i := range scripts {
		if scripts[i].Target == "" {
			scripts[i].Target = p.Cfg.Execute.Target
		}
	}

	timeout := time.Duration(p.Cfg.Execute.TimeoutSeconds) * time.Second
	var exec execute.Executor
	if runFlags.browser {
		exec = execute.NewChromeExecutor(p.Cfg.Execute.Headless, p.Cfg.Execute.ScreenshotDir, timeout)
	} else {
		exec = execute.NewCommandExecutor(p.Cfg.Execute.Interpreter, timeout)
	}

	res, err := p.Run(cmd.Context(), scripts, exec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, report.RenderTable(res.Report, format.ASCII))
	for _, path := range res.ReportPaths {
		fmt.Fprintf(out, "report written: %s\n", path)
	}
	if res.CommitID != "" {
		fmt.Fprintf(out, "artifacts committed: %s\n", res.CommitID)
	}

	if !res.Report.AllPassed() {
		return fmt.Errorf("%d of %d checks did not pass",
			res.Report.Failed+res.Report.Errored, res.Report.Total)
	}
	return nil
}
