package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"testforge/internal/format"
	"testforge/internal/report"
	"testforge/internal/track"
)

var reportFlags struct {
	format string
	caseID string
	status string
	output string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate recorded outcomes into a report",
	Long: "Re-aggregates the full outcome log (optionally narrowed to one case or\n" +
		"status) and renders it as a table, JSON, or a self-contained HTML page.",
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.format, "format", "table", "Output format (table, json, html)")
	f.StringVar(&reportFlags.caseID, "case-id", "", "Limit to one test case")
	f.StringVar(&reportFlags.status, "status", "", "Limit to one status (PASSED, FAILED, ERROR)")
	f.StringVarP(&reportFlags.output, "output", "o", "", "Write to file instead of stdout (html defaults under paths.reports_dir)")
}

func runReport(cmd *cobra.Command, _ []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	filter := track.Filter{TestCaseID: reportFlags.caseID}
	if reportFlags.status != "" {
		status, err := track.ParseStatus(reportFlags.status)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	rep, err := p.Snapshot(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch reportFlags.format {
	case "table":
		fmt.Fprint(out, report.RenderTable(rep, format.ASCII))
	case "json":
		if reportFlags.output != "" {
			if err := report.WriteJSON(rep, reportFlags.output); err != nil {
				return err
			}
			fmt.Fprintf(out, "report written: %s\n", reportFlags.output)
			return nil
		}
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "html":
		path := reportFlags.output
		if path == "" {
			path = filepath.Join(p.Cfg.Paths.ReportsDir, report.DefaultFilename("html"))
		}
		if err := report.WriteHTML(rep, path); err != nil {
			return err
		}
		fmt.Fprintf(out, "report written: %s\n", path)
	default:
		return fmt.Errorf("unknown format %q, want table, json, or html", reportFlags.format)
	}
	return nil
}
