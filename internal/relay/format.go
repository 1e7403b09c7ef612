package relay

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antigravity-dev/taskrelay/internal/executor"
)

// Slack rejects oversized messages; these limits keep a result inside one post.
const (
	MaxStdoutChars = 3000
	MaxStderrChars = 2000

	truncatedSuffix = "...\n\n(Output truncated)"
)

// FormatResult renders a terminal task status as a callback message.
// It never fails; unrecognised statuses are echoed back.
func FormatResult(st executor.TaskStatus) string {
	switch st.Status {
	case executor.StatusCompleted:
		output := strings.TrimSpace(st.Stdout)
		if output == "" {
			return "✅ Task completed successfully! (no output)"
		}
		if cut, ok := truncateRunes(output, MaxStdoutChars); ok {
			output = cut + truncatedSuffix
		}
		return "✅ Task completed successfully!\n\n" + output

	case executor.StatusFailed:
		exitCode := "unknown"
		if st.ExitCode != nil {
			exitCode = strconv.Itoa(*st.ExitCode)
		}
		errText := st.Error
		if errText == "" {
			errText = "Unknown error"
		}
		msg := fmt.Sprintf("❌ Task failed (exit code: %s)\n\nError: %s", exitCode, errText)
		if stderr := strings.TrimSpace(st.Stderr); stderr != "" {
			cut, _ := truncateRunes(stderr, MaxStderrChars)
			msg += "\n\nStderr:\n" + cut
		}
		return msg

	case executor.StatusTimeout:
		return "⏰ Task timed out. The operation took too long to complete."

	default:
		status := string(st.Status)
		if status == "" {
			status = "unknown"
		}
		return "❓ Unknown status: " + status
	}
}

// truncateRunes cuts s to at most n characters and reports whether it cut.
func truncateRunes(s string, n int) (string, bool) {
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
