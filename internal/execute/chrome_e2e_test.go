//go:build e2e

package execute

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"testforge/internal/generate"
	"testforge/internal/track"
)

func TestChromeExecutor_PageCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Login</title></head><body><form id="login"></form></body></html>`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	e := NewChromeExecutor(true, dir, 30*time.Second)

	out := e.Execute(context.Background(), generate.Script{
		TestCaseID: "TC_001",
		Tool:       "selenium",
		Target:     srv.URL,
	})

	if out.Status != track.StatusPassed {
		t.Fatalf("status = %s, want PASSED (error: %s)", out.Status, out.ErrorMessage)
	}
	if len(out.ArtifactRefs) != 1 {
		t.Fatalf("ArtifactRefs = %v, want one screenshot", out.ArtifactRefs)
	}
	if !strings.Contains(out.ArtifactRefs[0], "screenshot_TC_001_") {
		t.Errorf("screenshot ref %q missing case prefix", out.ArtifactRefs[0])
	}
	if _, err := os.Stat(out.ArtifactRefs[0]); err != nil {
		t.Errorf("screenshot file not written: %v", err)
	}
}
