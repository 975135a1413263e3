package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"testforge/internal/format"
)

// RenderTable renders the report as a terminal summary: one row per
// outcome plus a totals footer.
func RenderTable(r Report, mode format.Mode) string {
	var b strings.Builder

	tb := format.NewTable(mode)
	tb.Header("Case", "Attempt", "Status", "", "Error")
	for _, d := range r.Details {
		tb.Row(d.TestCaseID, d.Attempt, string(d.Status), format.StatusMark(string(d.Status)), format.Truncate(d.ErrorMessage, 60))
	}
	tb.Footer("TOTAL", r.Total, fmt.Sprintf("%d passed", r.Passed), "", format.FmtPassRate(r.PassRate))
	tb.Columns(
		format.ColumnConfig{Number: 2, Align: format.AlignRight},
		format.ColumnConfig{Number: 5, MaxWidth: 60},
	)

	b.WriteString(tb.String())
	b.WriteString("\n")
	fmt.Fprintf(&b, "passed %d  failed %d  errored %d  pass rate %s\n",
		r.Passed, r.Failed, r.Errored, format.FmtPassRate(r.PassRate))
	return b.String()
}

// WriteJSON persists the report as pretty-printed JSON at path, creating
// parent directories as needed.
func WriteJSON(r Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// htmlReport is the self-contained report document: summary cards up top,
// one collapsible section per outcome with its log entries below.
const htmlReport = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Test Execution Report</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0; background: #f5f6fa; color: #2f3640; }
  .container { max-width: 960px; margin: 0 auto; padding: 24px; }
  h1 { font-size: 22px; }
  .cards { display: flex; gap: 16px; flex-wrap: wrap; margin: 24px 0; }
  .card { flex: 1; min-width: 140px; background: #fff; border-radius: 8px; padding: 16px; box-shadow: 0 1px 3px rgba(0,0,0,.1); text-align: center; }
  .card .num { font-size: 28px; font-weight: 700; }
  .card .label { font-size: 12px; text-transform: uppercase; letter-spacing: .06em; color: #718093; }
  .passed .num { color: #44bd32; }
  .failed .num { color: #e84118; }
  .errored .num { color: #e1b12c; }
  .outcome { background: #fff; border-radius: 8px; margin-bottom: 12px; padding: 14px 16px; box-shadow: 0 1px 3px rgba(0,0,0,.08); }
  .outcome h3 { margin: 0 0 6px; font-size: 15px; }
  .badge { display: inline-block; padding: 2px 10px; border-radius: 10px; font-size: 12px; font-weight: 600; color: #fff; }
  .badge.PASSED { background: #44bd32; }
  .badge.FAILED { background: #e84118; }
  .badge.ERROR  { background: #e1b12c; }
  .error-message { color: #e84118; font-size: 13px; margin: 6px 0; }
  .logs { background: #2f3640; color: #dcdde1; border-radius: 6px; padding: 10px; font-family: ui-monospace, monospace; font-size: 12px; overflow-x: auto; margin-top: 8px; }
  .logs div { white-space: pre-wrap; }
  .artifacts { font-size: 12px; color: #718093; margin-top: 6px; }
  .meta { font-size: 12px; color: #718093; }
</style>
</head>
<body>
<div class="container">
  <h1>Test Execution Report</h1>
  <div class="cards">
    <div class="card"><div class="num">{{.Total}}</div><div class="label">Total</div></div>
    <div class="card passed"><div class="num">{{.Passed}}</div><div class="label">Passed</div></div>
    <div class="card failed"><div class="num">{{.Failed}}</div><div class="label">Failed</div></div>
    <div class="card errored"><div class="num">{{.Errored}}</div><div class="label">Errored</div></div>
    <div class="card"><div class="num">{{passrate .PassRate}}</div><div class="label">Pass Rate</div></div>
  </div>
  {{range .Details}}
  <div class="outcome">
    <h3>{{.TestCaseID}} <span class="badge {{.Status}}">{{.Status}}</span> <span class="meta">attempt {{.Attempt}} · {{.RecordedAt}}</span></h3>
    {{if .ErrorMessage}}<div class="error-message">{{.ErrorMessage}}</div>{{end}}
    {{if .Logs}}<div class="logs">{{range .Logs}}<div>[{{.Timestamp}}] {{.Level}} {{.Message}}</div>{{end}}</div>{{end}}
    {{if .ArtifactRefs}}<div class="artifacts">artifacts: {{range $i, $a := .ArtifactRefs}}{{if $i}}, {{end}}{{$a}}{{end}}</div>{{end}}
  </div>
  {{else}}
  <p>No outcomes recorded.</p>
  {{end}}
</div>
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"passrate": func(rate float64) string { return fmt.Sprintf("%.1f%%", rate*100) },
}).Parse(htmlReport))

// WriteHTML persists the report as a self-contained HTML document at path,
// creating parent directories as needed.
func WriteHTML(r Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := htmlTmpl.Execute(f, r); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
