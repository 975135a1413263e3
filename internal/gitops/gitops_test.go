package gitops

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"testforge/internal/config"
	"testforge/internal/report"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "forge@example.com"},
		{"config", "user.name", "forge"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	return dir
}

func writeArtifact(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func gitOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

var commitIDRe = regexp.MustCompile(`^[0-9a-f]{40}$`)

func TestCommit_ReturnsCommitID(t *testing.T) {
	dir := initRepo(t)
	writeArtifact(t, dir, "cases.json", `[{"id":"TC_001"}]`)
	c := New(dir)

	id, err := c.Commit(context.Background(), []string{"cases.json"}, "add generated cases")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !commitIDRe.MatchString(id) {
		t.Errorf("commit id = %q, want 40-char sha", id)
	}

	dirty, err := c.HasChanges(context.Background())
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if dirty {
		t.Error("tree still dirty after commit")
	}
}

func TestCommit_EmptyPathsStagesEverything(t *testing.T) {
	dir := initRepo(t)
	writeArtifact(t, dir, "a.py", "print('a')")
	writeArtifact(t, dir, "b.py", "print('b')")
	c := New(dir)

	if _, err := c.Commit(context.Background(), nil, "add scripts"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if out := gitOutput(t, dir, "show", "--stat", "--format=", "HEAD"); !strings.Contains(out, "a.py") || !strings.Contains(out, "b.py") {
		t.Errorf("commit missing files:\n%s", out)
	}
}

func TestIsRepo(t *testing.T) {
	dir := initRepo(t)
	if !New(dir).IsRepo(context.Background()) {
		t.Error("IsRepo = false inside a repository")
	}
	if New(t.TempDir()).IsRepo(context.Background()) {
		t.Error("IsRepo = true outside a repository")
	}
}

func TestHasChanges(t *testing.T) {
	dir := initRepo(t)
	c := New(dir)

	dirty, err := c.HasChanges(context.Background())
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if dirty {
		t.Error("fresh repo reported dirty")
	}

	writeArtifact(t, dir, "report.json", "{}")
	dirty, err = c.HasChanges(context.Background())
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if !dirty {
		t.Error("untracked artifact not reported")
	}
}

func TestRenderMessage(t *testing.T) {
	rep := report.Report{Total: 5, Passed: 5}
	got := RenderMessage("test: artifacts ({passed}/{total} passed, {failed} failed, {errored} errored)", rep)
	want := "test: artifacts (5/5 passed, 0 failed, 0 errored)"
	if got != want {
		t.Errorf("RenderMessage = %q, want %q", got, want)
	}
}

func TestAutoCommit_DisabledIsNoOp(t *testing.T) {
	cfg := config.GitConfig{AutoCommit: false}
	id, err := AutoCommit(context.Background(), cfg, t.TempDir(), report.Report{Total: 1, Passed: 1}, nil)
	if err != nil || id != "" {
		t.Errorf("AutoCommit(disabled) = (%q, %v), want no-op", id, err)
	}
}

func TestAutoCommit_SkipsRedRun(t *testing.T) {
	cfg := config.GitConfig{AutoCommit: true, MessageTemplate: "x"}
	rep := report.Report{Total: 2, Passed: 1, Failed: 1}
	id, err := AutoCommit(context.Background(), cfg, t.TempDir(), rep, nil)
	if err != nil || id != "" {
		t.Errorf("AutoCommit(red run) = (%q, %v), want no-op", id, err)
	}
}

func TestAutoCommit_CommitsGreenRun(t *testing.T) {
	dir := initRepo(t)
	writeArtifact(t, dir, "execution_report.json", `{"total":3}`)

	cfg := config.GitConfig{AutoCommit: true, MessageTemplate: "test: update artifacts ({passed}/{total} passed)"}
	rep := report.Report{Total: 3, Passed: 3, PassRate: 1}

	id, err := AutoCommit(context.Background(), cfg, dir, rep, nil)
	if err != nil {
		t.Fatalf("AutoCommit: %v", err)
	}
	if !commitIDRe.MatchString(id) {
		t.Fatalf("commit id = %q, want 40-char sha", id)
	}
	if subject := gitOutput(t, dir, "log", "-1", "--format=%s"); subject != "test: update artifacts (3/3 passed)" {
		t.Errorf("commit subject = %q", subject)
	}
}

func TestAutoCommit_CleanTreeIsNoOp(t *testing.T) {
	dir := initRepo(t)
	cfg := config.GitConfig{AutoCommit: true, MessageTemplate: "x"}
	id, err := AutoCommit(context.Background(), cfg, dir, report.Report{Total: 1, Passed: 1}, nil)
	if err != nil || id != "" {
		t.Errorf("AutoCommit(clean tree) = (%q, %v), want no-op", id, err)
	}
}
