package backend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// writeGeminiFixture lays down one project hash directory with a recorded
// workspace and a logs.json containing the given entries.
func writeGeminiFixture(t *testing.T, root, hash, projectPath string, entries []geminiLogEntry) {
	t.Helper()
	dir := filepath.Join(root, "tmp", hash)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if projectPath != "" {
		meta, _ := json.Marshal(geminiProjectMeta{ProjectPath: projectPath})
		if err := os.WriteFile(filepath.Join(dir, "session.json"), meta, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	data, _ := json.Marshal(entries)
	if err := os.WriteFile(filepath.Join(dir, "logs.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGemini_ListSessions_FiltersByRecordedWorkspace(t *testing.T) {
	root := t.TempDir()
	project := t.TempDir()

	writeGeminiFixture(t, root, "aaa", project, []geminiLogEntry{
		{SessionID: "ses-1", MessageID: 0, Type: "user", Message: "fix the build", Timestamp: "2024-05-01T10:30:00Z"},
		{SessionID: "ses-1", MessageID: 1, Type: "gemini", Message: "on it", Timestamp: "2024-05-01T10:30:05Z"},
	})
	writeGeminiFixture(t, root, "bbb", "/somewhere/else", []geminiLogEntry{
		{SessionID: "ses-2", MessageID: 0, Type: "user", Message: "other project", Timestamp: "2024-05-01T11:00:00Z"},
	})

	g := NewGemini(root)

	t.Run("matching workspace", func(t *testing.T) {
		res := g.ListSessions(project)
		if !res.Success {
			t.Fatalf("ListSessions failed: %s", res.Error)
		}
		if len(res.Sessions) != 1 || res.Sessions[0].ID != "ses-1" {
			t.Fatalf("expected only ses-1, got %+v", res.Sessions)
		}
		if res.Sessions[0].Title != "fix the build" {
			t.Errorf("title = %q", res.Sessions[0].Title)
		}
	})

	t.Run("descendant workspace matches", func(t *testing.T) {
		sub := filepath.Join(project, "pkg", "parser")
		res := g.ListSessions(sub)
		if len(res.Sessions) != 1 {
			t.Fatalf("descendant dir should match, got %+v", res.Sessions)
		}
	})

	t.Run("unrelated workspace", func(t *testing.T) {
		res := g.ListSessions(t.TempDir())
		if len(res.Sessions) != 0 {
			t.Fatalf("expected no sessions, got %+v", res.Sessions)
		}
	})

	t.Run("no filter lists everything", func(t *testing.T) {
		res := g.ListSessions("")
		if len(res.Sessions) != 2 {
			t.Fatalf("expected 2 sessions, got %+v", res.Sessions)
		}
	})
}

func TestGemini_ListSessions_UnreadableRecordExcluded(t *testing.T) {
	root := t.TempDir()
	// No session.json at all: the recorded workspace cannot be read, so the
	// sessions must be excluded from any directory-scoped listing.
	writeGeminiFixture(t, root, "ccc", "", []geminiLogEntry{
		{SessionID: "ses-3", Type: "user", Message: "hello", Timestamp: "2024-05-01T10:30:00Z"},
	})

	g := NewGemini(root)
	res := g.ListSessions(t.TempDir())
	if !res.Success {
		t.Fatalf("ListSessions failed: %s", res.Error)
	}
	if len(res.Sessions) != 0 {
		t.Errorf("session with unreadable record must be excluded, got %+v", res.Sessions)
	}
}

func TestGemini_ListSessions_StoreAbsent(t *testing.T) {
	g := NewGemini(filepath.Join(t.TempDir(), "nope"))
	res := g.ListSessions("")
	if res.Success {
		t.Error("expected typed failure for absent store")
	}
	if res.Error == "" {
		t.Error("failure must carry a description")
	}
}

func TestGemini_Export(t *testing.T) {
	root := t.TempDir()
	project := t.TempDir()
	writeGeminiFixture(t, root, "aaa", project, []geminiLogEntry{
		{SessionID: "ses-1", MessageID: 0, Type: "user", Message: `"Okey, commit and push"`, Timestamp: "2024-05-01T10:30:00Z"},
		{SessionID: "ses-1", MessageID: 1, Type: "gemini", Message: "\x1b[32mdone\x1b[0m", Timestamp: "2024-05-01T10:31:00Z"},
		{SessionID: "ses-9", MessageID: 0, Type: "user", Message: "unrelated", Timestamp: "2024-05-01T10:32:00Z"},
	})

	g := NewGemini(root)
	res := g.Export("ses-1", project)
	if !res.Success {
		t.Fatalf("Export failed: %s", res.Error)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(res.Messages))
	}
	if res.Messages[0].Content != "Okey, commit and push" {
		t.Errorf("quote layer not stripped: %q", res.Messages[0].Content)
	}
	if res.Messages[1].Content != "done" {
		t.Errorf("ANSI not stripped: %q", res.Messages[1].Content)
	}
	if res.Messages[0].TimestampMS == nil {
		t.Error("timestamp not coerced")
	}

	if miss := g.Export("ses-missing", project); miss.Success {
		t.Error("expected failure for unknown session")
	}
}

func TestGemini_Run_RejectsPersona(t *testing.T) {
	g := NewGemini(t.TempDir())
	g.bin = "agentdeck-no-such-binary" // the refusal must come before any spawn
	res := g.Run(context.Background(), "hello", RunOptions{Persona: "reviewer", WorkDir: t.TempDir()})
	if res.Success {
		t.Fatal("expected typed failure for persona selection")
	}
	if res.Error == "" || res.Error == g.MissingCommandError() {
		t.Errorf("error = %q, want a persona-specific description", res.Error)
	}
}

func TestGemini_Run_MissingExecutable(t *testing.T) {
	g := NewGemini(t.TempDir())
	g.bin = "agentdeck-no-such-binary"
	res := g.Run(context.Background(), "hello", RunOptions{WorkDir: t.TempDir()})
	if res.Success {
		t.Fatal("expected failure when executable is absent")
	}
	want := "'agentdeck-no-such-binary' command not found. Please ensure it is installed and in PATH."
	if res.Error != want {
		t.Errorf("error = %q, want %q", res.Error, want)
	}
}
