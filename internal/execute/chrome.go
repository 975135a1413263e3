package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"testforge/internal/generate"
	"testforge/internal/logging"
	"testforge/internal/track"
)

// ChromeExecutor smoke-checks a browser script's target page in a
// headless Chrome session: navigate, wait for the body, capture the
// title and a screenshot. It verifies the target is reachable and
// rendering, not the script's own assertions.
type ChromeExecutor struct {
	Headless      bool
	ScreenshotDir string        // screenshots skipped when empty
	Timeout       time.Duration // whole-session limit

	logger *slog.Logger
}

func NewChromeExecutor(headless bool, screenshotDir string, timeout time.Duration) *ChromeExecutor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChromeExecutor{
		Headless:      headless,
		ScreenshotDir: screenshotDir,
		Timeout:       timeout,
		logger:        logging.New("execute"),
	}
}

func (e *ChromeExecutor) Execute(ctx context.Context, script generate.Script) track.Outcome {
	logs := []track.LogEntry{logLine("INFO",
		fmt.Sprintf("page check for %s at %s", script.TestCaseID, script.Target))}
	if script.Target == "" {
		return errorOutcome(script, logs, errors.New("script has no target URL"))
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(runCtx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var title string
	var shot []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(script.Target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.CaptureScreenshot(&shot),
	)

	out := track.Outcome{TestCaseID: script.TestCaseID}
	switch {
	case err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		out.Status = track.StatusError
		out.ErrorMessage = fmt.Sprintf("page check timed out after %s", e.Timeout)
	case err != nil:
		out.Status = track.StatusFailed
		out.ErrorMessage = err.Error()
	default:
		out.Status = track.StatusPassed
		logs = append(logs, logLine("INFO", fmt.Sprintf("page loaded, title %q", title)))
	}

	if out.Status == track.StatusPassed && e.ScreenshotDir != "" && len(shot) > 0 {
		ref, serr := e.saveScreenshot(script.TestCaseID, shot)
		if serr != nil {
			logs = append(logs, logLine("WARN", fmt.Sprintf("screenshot not saved: %v", serr)))
		} else {
			out.ArtifactRefs = append(out.ArtifactRefs, ref)
			logs = append(logs, logLine("INFO", "screenshot captured: "+ref))
		}
	}
	if out.ErrorMessage != "" {
		logs = append(logs, logLine("ERROR", out.ErrorMessage))
	}
	out.Logs = logs

	e.logger.Info("page check done", "case", script.TestCaseID, "status", string(out.Status))
	return out
}

func (e *ChromeExecutor) saveScreenshot(caseID string, png []byte) (string, error) {
	if err := os.MkdirAll(e.ScreenshotDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("screenshot_%s_%s.png", caseID, time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(e.ScreenshotDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
