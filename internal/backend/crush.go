package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentdeck/agentdeck/internal/result"
	"github.com/agentdeck/agentdeck/internal/textnorm"
	"github.com/agentdeck/agentdeck/internal/workspace"
)

// Crush adapts the Crush CLI. Session history lives in the backend's SQLite
// database, which this adapter opens read-only per call. Crush itself writes
// the database as a side effect of Run; the adapter never does.
type Crush struct {
	bin        string
	dbOverride string
}

// NewCrush builds the adapter. db overrides database resolution when non-empty.
func NewCrush(db string) *Crush {
	return &Crush{bin: "crush", dbOverride: db}
}

func (c *Crush) CLIName() string { return c.bin }

func (c *Crush) MissingCommandError() string { return missingCommandError(c.bin) }

func (c *Crush) Run(ctx context.Context, message string, opts RunOptions) result.RunResult {
	args := []string{"run", "--quiet", "--yolo"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.Persona != "" {
		args = append(args, "--agent", opts.Persona)
	}
	if opts.SessionID != "" {
		args = append(args, "--session", opts.SessionID)
	}
	args = append(args, message)

	stdout, stderr, err := runProcess(ctx, c.bin, args, "", opts.WorkDir, opts.OnProcessStarted)
	switch {
	case err == errCanceled:
		return result.RunFailure(cancelMessage)
	case isMissingExecutable(err):
		return result.RunFailure(c.MissingCommandError())
	}
	if err != nil {
		desc := textnorm.Normalize(stderr)
		if desc == "" {
			desc = err.Error()
		}
		return result.RunFailure(desc)
	}

	return result.RunResult{
		Success:   true,
		SessionID: opts.SessionID,
		Parts: []result.ResponsePart{
			{Text: textnorm.Normalize(stdout), Kind: result.PartFinal},
		},
	}
}

// resolveDB locates the crush database: explicit override first, then the
// per-project database, then the global one. First existing wins.
func (c *Crush) resolveDB(workDir string) (string, bool) {
	var candidates []string
	if c.dbOverride != "" {
		candidates = append(candidates, c.dbOverride)
	}
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	if workDir != "" {
		candidates = append(candidates, filepath.Join(workDir, ".crush", "crush.db"))
	}
	candidates = append(candidates, filepath.Join(homeDir(), ".local", "share", "crush", "crush.db"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// openDB opens the database read-only. Connections are per call; the
// adapter keeps nothing open between operations.
func (c *Crush) openDB(workDir string) (*sql.DB, string, error) {
	path, ok := c.resolveDB(workDir)
	if !ok {
		return nil, "", fmt.Errorf("crush database not found (set AGENTDECK_CRUSH_DB or run crush once)")
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=2000")
	if err != nil {
		return nil, "", fmt.Errorf("opening crush database: %w", err)
	}
	return db, path, nil
}

// crushPart is one block of a message's parts JSON column.
type crushPart struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (c *Crush) Export(sessionID, workDir string) result.ExportResult {
	db, _, err := c.openDB(workDir)
	if err != nil {
		return result.ExportFailure(err.Error())
	}
	defer db.Close()

	rows, err := db.Query(
		`SELECT id, role, parts, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID)
	if err != nil {
		return result.ExportFailure("querying crush messages: " + err.Error())
	}
	defer rows.Close()

	var messages []result.HistoryMessage
	for rows.Next() {
		var (
			id, role  string
			partsJSON sql.NullString
			createdAt sql.NullInt64
		)
		if err := rows.Scan(&id, &role, &partsJSON, &createdAt); err != nil {
			continue // malformed row, skip
		}
		var ts *int64
		if createdAt.Valid {
			ts = textnorm.CoerceTimestamp(createdAt.Int64)
		}
		msgRole := result.RoleAssistant
		if role == "user" {
			msgRole = result.RoleUser
		}

		var parts []crushPart
		if partsJSON.Valid {
			if err := json.Unmarshal([]byte(partsJSON.String), &parts); err != nil {
				continue // malformed parts column, skip the row
			}
		}
		for _, p := range parts {
			switch p.Type {
			case "text", "reasoning":
				messages = append(messages, result.HistoryMessage{
					ID:          id,
					Role:        msgRole,
					ContentKind: result.ContentText,
					Content:     textnorm.Normalize(p.Text),
					TimestampMS: ts,
				})
			case "tool_call":
				messages = append(messages, result.HistoryMessage{
					ID:          id,
					Role:        msgRole,
					ContentKind: result.ContentTool,
					Content:     renderInvocation(p.Name, p.Input),
					TimestampMS: ts,
				})
			}
		}
	}
	if err := rows.Err(); err != nil {
		return result.ExportFailure("reading crush messages: " + err.Error())
	}
	if len(messages) == 0 {
		return result.ExportFailure("session " + sessionID + " not found in crush database")
	}
	return result.ExportResult{Success: true, Messages: messages}
}

func (c *Crush) ListSessions(workDir string) result.SessionListResult {
	db, _, err := c.openDB(workDir)
	if err != nil {
		return result.SessionListFailure(err.Error())
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, title, directory, updated_at FROM sessions`)
	if err != nil {
		return result.SessionListFailure("querying crush sessions: " + err.Error())
	}
	defer rows.Close()

	type entry struct {
		info    result.SessionInfo
		updated time.Time
	}
	var sessions []entry
	for rows.Next() {
		var (
			id        string
			title     sql.NullString
			directory sql.NullString
			updatedAt sql.NullInt64
		)
		if err := rows.Scan(&id, &title, &directory, &updatedAt); err != nil {
			continue
		}
		// The directory column is the session's recorded workspace; rows
		// without one are excluded whenever a directory filter applies.
		if workDir != "" && !workspace.Matches(directory.String, workDir) {
			continue
		}
		var updated time.Time
		if updatedAt.Valid {
			if ms := textnorm.CoerceTimestamp(updatedAt.Int64); ms != nil {
				updated = time.UnixMilli(*ms)
			}
		}
		sessions = append(sessions, entry{
			info: result.SessionInfo{
				ID:      id,
				Title:   sessionTitle(textnorm.Normalize(title.String)),
				Updated: relativeTime(updated),
			},
			updated: updated,
		})
	}
	if err := rows.Err(); err != nil {
		return result.SessionListFailure("reading crush sessions: " + err.Error())
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].updated.After(sessions[j].updated)
	})
	out := make([]result.SessionInfo, 0, len(sessions))
	for _, e := range sessions {
		out = append(out, e.info)
	}
	return result.SessionListResult{Success: true, Sessions: out}
}

// crushAgentConfig is one agent entry of the crush JSON config.
type crushAgentConfig struct {
	Model       string `json:"model"`
	Description string `json:"description"`
}

func (c *Crush) ListAgents() result.AgentListResult {
	candidates := []string{}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, ".crush.json"))
	}
	candidates = append(candidates, filepath.Join(homeDir(), ".config", "crush", "crush.json"))

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg struct {
			Agents map[string]crushAgentConfig `json:"agents"`
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			continue // malformed config, try the next location
		}
		names := make([]string, 0, len(cfg.Agents))
		for name := range cfg.Agents {
			names = append(names, name)
		}
		sort.Strings(names)
		agents := make([]result.AgentInfo, 0, len(names))
		for _, name := range names {
			a := cfg.Agents[name]
			var details []string
			if a.Description != "" {
				details = append(details, a.Description)
			}
			if a.Model != "" {
				details = append(details, "model: "+a.Model)
			}
			agents = append(agents, result.AgentInfo{Name: name, Kind: "agent", Details: details})
		}
		return result.AgentListResult{Success: true, Agents: agents}
	}
	return result.AgentListResult{Success: true}
}

// StorePath locates the database for watching.
func (c *Crush) StorePath(workDir string) string {
	path, ok := c.resolveDB(workDir)
	if !ok {
		return ""
	}
	return path
}
