package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-runewidth"
)

const titleWidth = 60

// homeDir returns the user home directory, or the temp directory when the
// home cannot be determined (an absolute path is still required so store
// resolution stays deterministic).
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "agentdeck-home")
	}
	return home
}

// relativeTime renders a human-readable "updated" marker for session lists.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// sessionTitle derives a display title from the first user message,
// truncated to a fixed display width.
func sessionTitle(firstUserText string) string {
	if firstUserText == "" {
		return "(untitled)"
	}
	return runewidth.Truncate(firstUserText, titleWidth, "...")
}
