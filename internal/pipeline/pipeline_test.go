package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"testforge/internal/config"
	"testforge/internal/extract"
	"testforge/internal/generate"
	"testforge/internal/track"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Backend.EmbedProvider = "hash"
	cfg.Store.Dimension = 32
	cfg.Store.KBPath = filepath.Join(dir, "kb.db")
	cfg.Store.OutcomesPath = filepath.Join(dir, "outcomes.db")
	cfg.Paths.CasesDir = filepath.Join(dir, "cases")
	cfg.Paths.ScriptsDir = filepath.Join(dir, "scripts")
	cfg.Paths.ReportsDir = filepath.Join(dir, "reports")
	cfg.Execute.Workers = 2
	cfg.Chunking.MaxChars = 200
	cfg.Chunking.OverlapChars = 40

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// cannedBackend replays responses in call order and can be told to fail
// any request whose instruction contains failOn.
type cannedBackend struct {
	mu        sync.Mutex
	responses []string
	idx       int
	failOn    string
}

func (c *cannedBackend) Generate(_ context.Context, instruction, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn != "" && strings.Contains(instruction, c.failOn) {
		return "", errors.New("backend exploded")
	}
	if c.idx < len(c.responses) {
		r := c.responses[c.idx]
		c.idx++
		return r, nil
	}
	return c.responses[len(c.responses)-1], nil
}

func (c *cannedBackend) Name() string { return "canned" }

const twoCaseBatch = `[
	{"id":"X1","title":"Valid login","steps":["open page","sign in"],"expected_result":"dashboard","priority":"High"},
	{"id":"X2","title":"Bad password","steps":["open page","sign in wrong"],"expected_result":"error","priority":"Medium"}
]`

func TestIngest_MixedBatch(t *testing.T) {
	p := newTestPipeline(t)
	dir := t.TempDir()

	paths := []string{
		writeDoc(t, dir, "login.txt", strings.Repeat("The login page accepts a user name and password. ", 20)),
		writeDoc(t, dir, "plan.md", "# Checkout\n\nThe cart total must match the order summary.\n"),
		writeDoc(t, dir, "spec.pdf", "%PDF"),
	}

	results, err := p.Ingest(context.Background(), paths, 4)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[0].Err != nil || results[0].Chunks == 0 {
		t.Errorf("login.txt not ingested: %+v", results[0])
	}
	if results[1].Err != nil || results[1].Chunks == 0 {
		t.Errorf("plan.md not ingested: %+v", results[1])
	}
	if !extract.IsUnsupported(results[2].Err) {
		t.Errorf("spec.pdf err = %v, want unsupported format", results[2].Err)
	}

	count, err := p.Store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if want := results[0].Chunks + results[1].Chunks; count != want {
		t.Errorf("store holds %d chunks, want %d", count, want)
	}

	aug, err := p.Augment(context.Background(), "login page password")
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if len(aug.Retrieved) == 0 || aug.JoinedContext == "" {
		t.Error("ingested content not retrievable")
	}
}

func TestIngest_MissingFileSkippedOthersProceed(t *testing.T) {
	p := newTestPipeline(t)
	dir := t.TempDir()

	good := writeDoc(t, dir, "notes.txt", "Password reset sends an email within one minute.")
	missing := filepath.Join(dir, "gone.txt")

	results, err := p.Ingest(context.Background(), []string{missing, good}, 2)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if results[0].Err == nil {
		t.Error("missing file produced no error")
	}
	if results[1].Err != nil || results[1].Chunks == 0 {
		t.Errorf("good file not ingested: %+v", results[1])
	}
}

func TestGenerateCases_PersistsBatch(t *testing.T) {
	p := newTestPipeline(t)
	p.Engine = generate.NewEngine(&cannedBackend{responses: []string{
		"Write functional regression test cases for the login flow.",
		twoCaseBatch,
	}}, nil, 2)

	cases, err := p.GenerateCases(context.Background(), "login flow")
	if err != nil {
		t.Fatalf("GenerateCases: %v", err)
	}
	if len(cases) != 2 || cases[0].ID != "TC_001" || cases[1].ID != "TC_002" {
		t.Fatalf("unexpected batch: %+v", cases)
	}

	loaded, err := p.LoadCases()
	if err != nil {
		t.Fatalf("LoadCases: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Title != "Valid login" {
		t.Errorf("persisted batch mismatch: %+v", loaded)
	}
}

func TestLoadCases_EmptyDirErrors(t *testing.T) {
	p := newTestPipeline(t)
	if _, err := p.LoadCases(); err == nil {
		t.Error("LoadCases on empty dir should error")
	}
}

func TestGenerateScripts_FailureStaysPerCase(t *testing.T) {
	p := newTestPipeline(t)
	code := &cannedBackend{responses: []string{"print('ok')"}, failOn: `"TC_002"`}
	p.Engine = generate.NewEngine(&cannedBackend{responses: []string{"unused"}}, code, 1)

	cases := []generate.TestCase{
		{ID: "TC_001", Title: "Valid login", Steps: []string{"s"}, Priority: generate.PriorityHigh},
		{ID: "TC_002", Title: "Bad password", Steps: []string{"s"}, Priority: generate.PriorityLow},
	}

	results := p.GenerateScripts(context.Background(), cases, 2)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Err != nil || results[0].Script == nil {
		t.Errorf("TC_001 failed: %+v", results[0])
	}
	if results[0].Path == "" {
		t.Error("TC_001 script not saved")
	}
	if results[1].Err == nil {
		t.Error("TC_002 should carry the backend failure")
	}

	saved, err := generate.LoadScripts(p.Cfg.Paths.ScriptsDir)
	if err != nil {
		t.Fatalf("LoadScripts: %v", err)
	}
	if len(saved) != 1 || saved[0].TestCaseID != "TC_001" {
		t.Errorf("scripts dir holds %+v, want only TC_001", saved)
	}
}

// verdictExecutor returns a fixed status per case id.
type verdictExecutor struct {
	verdicts map[string]track.Status
}

func (v *verdictExecutor) Execute(_ context.Context, sc generate.Script) track.Outcome {
	st, ok := v.verdicts[sc.TestCaseID]
	if !ok {
		st = track.StatusPassed
	}
	out := track.Outcome{TestCaseID: sc.TestCaseID, Status: st}
	if st != track.StatusPassed {
		out.ErrorMessage = "assertion failed"
	}
	return out
}

func TestRun_RecordsAggregatesAndWritesReports(t *testing.T) {
	p := newTestPipeline(t)
	scripts := []generate.Script{
		{TestCaseID: "TC_001", Tool: "selenium", SourceText: "a"},
		{TestCaseID: "TC_002", Tool: "selenium", SourceText: "b"},
	}
	exec := &verdictExecutor{verdicts: map[string]track.Status{
		"TC_001": track.StatusPassed,
		"TC_002": track.StatusFailed,
	}}

	res, err := p.Run(context.Background(), scripts, exec)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Report.Total != 2 || res.Report.Passed != 1 || res.Report.Failed != 1 {
		t.Errorf("report = %+v", res.Report)
	}
	if len(res.ReportPaths) != 2 {
		t.Fatalf("ReportPaths = %v, want json and html", res.ReportPaths)
	}
	for _, path := range res.ReportPaths {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("report artifact missing: %v", err)
		}
	}

	outcomes, err := p.Tracker.Outcomes(context.Background(), track.Filter{})
	if err != nil {
		t.Fatalf("Outcomes: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("tracker holds %d outcomes, want 2", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Attempt != 1 {
			t.Errorf("%s attempt = %d, want 1", o.TestCaseID, o.Attempt)
		}
	}

	// Re-running the same scripts appends attempt 2, never overwrites.
	if _, err := p.Run(context.Background(), scripts, exec); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	snap, err := p.Snapshot(context.Background(), track.Filter{TestCaseID: "TC_001"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Total != 2 || snap.Details[1].Attempt != 2 {
		t.Errorf("history for TC_001 = %+v", snap)
	}
}

func TestRun_NoScriptsIsError(t *testing.T) {
	p := newTestPipeline(t)
	if _, err := p.Run(context.Background(), nil, &verdictExecutor{}); err == nil {
		t.Error("Run with no scripts should error")
	}
}

func TestSnapshot_FiltersByStatus(t *testing.T) {
	p := newTestPipeline(t)
	scripts := []generate.Script{
		{TestCaseID: "TC_001", Tool: "selenium", SourceText: "a"},
		{TestCaseID: "TC_002", Tool: "selenium", SourceText: "b"},
		{TestCaseID: "TC_003", Tool: "selenium", SourceText: "c"},
	}
	exec := &verdictExecutor{verdicts: map[string]track.Status{
		"TC_002": track.StatusError,
	}}
	if _, err := p.Run(context.Background(), scripts, exec); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, err := p.Snapshot(context.Background(), track.Filter{Status: track.StatusError})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Total != 1 || snap.Details[0].TestCaseID != "TC_002" {
		t.Errorf("filtered snapshot = %+v", snap)
	}
}

func TestSourceID(t *testing.T) {
	cases := map[string]string{
		"/docs/login spec.txt": "login spec",
		"plan.md":              "plan",
		"noext":                "noext",
	}
	for in, want := range cases {
		if got := SourceID(in); got != want {
			t.Errorf("SourceID(%q) = %q, want %q", in, got, want)
		}
	}
}
