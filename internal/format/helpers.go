package format

import (
	"fmt"
	"time"
)

// FmtPassRate formats a 0..1 pass rate as a percentage (e.g. "66.7%").
func FmtPassRate(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// FmtDuration formats a duration as "Xm Ys" or "Ys".
func FmtDuration(d time.Duration) string {
	s := int(d.Seconds())
	if s >= 60 {
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%ds", s)
}

// Truncate shortens s to maxLen characters, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// StatusMark maps an execution status to its terminal symbol:
// "✓" for PASSED, "✗" for FAILED, "!" for anything else (ERROR).
func StatusMark(status string) string {
	switch status {
	case "PASSED":
		return "✓"
	case "FAILED":
		return "✗"
	default:
		return "!"
	}
}
