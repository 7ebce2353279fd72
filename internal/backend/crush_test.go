package backend

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

// newCrushFixture creates a database with the crush schema subset the
// adapter reads and returns an adapter pointed at it.
func newCrushFixture(t *testing.T) (*Crush, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crush.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE sessions (id TEXT PRIMARY KEY, title TEXT, directory TEXT, updated_at INTEGER)`,
		`CREATE TABLE messages (id TEXT PRIMARY KEY, session_id TEXT, role TEXT, parts TEXT, created_at INTEGER)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatal(err)
		}
	}
	return NewCrush(path), db
}

func TestCrush_Export(t *testing.T) {
	c, db := newCrushFixture(t)

	insert := func(id, session, role, parts string, created int64) {
		t.Helper()
		_, err := db.Exec(
			`INSERT INTO messages (id, session_id, role, parts, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, session, role, parts, created)
		if err != nil {
			t.Fatal(err)
		}
	}
	insert("m1", "ses-1", "user",
		`[{"type":"text","text":"“fix the tests”"}]`, 1714559000000)
	insert("m2", "ses-1", "assistant",
		`[{"type":"tool_call","name":"bash","input":{"command":"go test ./..."}},{"type":"text","text":"done"}]`, 1714559100000)
	insert("m3", "ses-1", "assistant", `not json`, 1714559200000)
	insert("m4", "ses-2", "user", `[{"type":"text","text":"other session"}]`, 1714559300000)

	res := c.Export("ses-1", "")
	if !res.Success {
		t.Fatalf("Export failed: %s", res.Error)
	}
	if len(res.Messages) != 3 {
		t.Fatalf("expected 3 messages (malformed row skipped), got %d: %+v", len(res.Messages), res.Messages)
	}
	if res.Messages[0].Content != "fix the tests" {
		t.Errorf("quotes not unwrapped: %q", res.Messages[0].Content)
	}
	if res.Messages[0].TimestampMS == nil || *res.Messages[0].TimestampMS != 1714559000000 {
		t.Errorf("created_at not carried: %+v", res.Messages[0].TimestampMS)
	}
	tool := res.Messages[1]
	if !strings.Contains(tool.Content, "bash(") || !strings.Contains(tool.Content, "go test") {
		t.Errorf("tool call rendering wrong: %q", tool.Content)
	}
}

func TestCrush_Export_UnknownSession(t *testing.T) {
	c, _ := newCrushFixture(t)
	res := c.Export("nope", "")
	if res.Success {
		t.Error("expected failure for unknown session id")
	}
}

func TestCrush_ListSessions(t *testing.T) {
	c, db := newCrushFixture(t)
	project := t.TempDir()

	insert := func(id, title, dir string, updated int64) {
		t.Helper()
		_, err := db.Exec(
			`INSERT INTO sessions (id, title, directory, updated_at) VALUES (?, ?, ?, ?)`,
			id, title, dir, updated)
		if err != nil {
			t.Fatal(err)
		}
	}
	insert("ses-1", "older here", project, 1714559000000)
	insert("ses-2", "newer here", filepath.Join(project, "sub"), 1714559400000)
	insert("ses-3", "elsewhere", "/somewhere/else", 1714559500000)
	insert("ses-4", "no directory", "", 1714559600000)

	res := c.ListSessions(project)
	if !res.Success {
		t.Fatalf("ListSessions failed: %s", res.Error)
	}
	if len(res.Sessions) != 2 {
		t.Fatalf("expected 2 matching sessions, got %+v", res.Sessions)
	}
	// Newest first.
	if res.Sessions[0].ID != "ses-2" || res.Sessions[1].ID != "ses-1" {
		t.Errorf("ordering wrong: %+v", res.Sessions)
	}

	all := c.ListSessions("")
	if len(all.Sessions) != 4 {
		t.Errorf("unfiltered listing should include every row, got %+v", all.Sessions)
	}
}

func TestCrush_DatabaseAbsent(t *testing.T) {
	t.Setenv("HOME", t.TempDir()) // keep resolution away from any real store
	c := NewCrush(filepath.Join(t.TempDir(), "missing.db"))
	if res := c.ListSessions(""); res.Success {
		t.Error("expected failure when no database exists")
	}
	if res := c.Export("ses-1", ""); res.Success {
		t.Error("expected failure when no database exists")
	}
}

func TestCrush_Run_MissingExecutable(t *testing.T) {
	c := NewCrush("")
	c.bin = "agentdeck-no-such-binary"
	res := c.Run(context.Background(), "hello", RunOptions{WorkDir: t.TempDir()})
	if res.Success {
		t.Fatal("expected failure when executable is absent")
	}
	if res.Error != missingCommandError("agentdeck-no-such-binary") {
		t.Errorf("error = %q", res.Error)
	}
}
