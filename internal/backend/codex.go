package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/agentdeck/agentdeck/internal/result"
	"github.com/agentdeck/agentdeck/internal/textnorm"
	"github.com/agentdeck/agentdeck/internal/workspace"
)

// Codex adapts the Codex CLI. Runs use the machine-readable streaming flag
// and demultiplex newline-delimited JSON events from stdout. Persisted
// sessions are roll-out files: append-only JSONL records, one file per
// session, partitioned on disk by creation date and named by session id.
type Codex struct {
	bin string
	dir string // storage root, default ~/.codex
}

// NewCodex builds the adapter. dir overrides the storage root when non-empty.
func NewCodex(dir string) *Codex {
	if dir == "" {
		dir = filepath.Join(homeDir(), ".codex")
	}
	return &Codex{bin: "codex", dir: dir}
}

func (c *Codex) CLIName() string { return c.bin }

func (c *Codex) MissingCommandError() string { return missingCommandError(c.bin) }

// codexEvent is one stdout stream line. Only session.created and
// item.completed matter; every other event type is ignored.
type codexEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Item      codexItem `json:"item"`
}

type codexItem struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Command     string `json:"command"`
	CompletedAt string `json:"completed_at"`
}

// Run streams the backend's event output. Malformed lines are skipped, never
// fatal; cancellation kills the process and discards partial output.
func (c *Codex) Run(ctx context.Context, message string, opts RunOptions) result.RunResult {
	args := []string{"exec", "--json"}
	if opts.SessionID != "" {
		// Codex resumes only its most recently created session. Anything
		// else has ambiguous behavior upstream, so refuse with a
		// description instead of guessing.
		latest, ok := c.latestSessionID()
		if !ok || latest != opts.SessionID {
			return result.RunFailure("codex can only resume its most recent session; " +
				opts.SessionID + " is not the latest")
		}
		args = []string{"exec", "resume", opts.SessionID, "--json"}
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	args = append(args, message)

	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = opts.WorkDir
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = 5 * time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return result.RunFailure("starting codex: " + err.Error())
	}
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return result.RunFailure(cancelMessage)
		}
		if isMissingExecutable(err) {
			return result.RunFailure(c.MissingCommandError())
		}
		return result.RunFailure("starting codex: " + err.Error())
	}
	if opts.OnProcessStarted != nil {
		opts.OnProcessStarted(cmd.Process)
	}

	var (
		parts     []result.ResponsePart
		sessionID = opts.SessionID
	)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev codexEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue // malformed line, keep reading
		}
		switch ev.Type {
		case "session.created":
			sessionID = ev.SessionID
		case "item.completed":
			if p, ok := partFromItem(ev.Item); ok {
				parts = append(parts, p)
			}
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return result.RunFailure(cancelMessage)
	}
	if waitErr != nil {
		desc := textnorm.Normalize(stderr.String())
		if desc == "" {
			desc = waitErr.Error()
		}
		return result.RunFailure(desc)
	}

	return result.RunResult{Success: true, SessionID: sessionID, Parts: parts}
}

// partFromItem maps a completed stream item to a response part.
func partFromItem(item codexItem) (result.ResponsePart, bool) {
	p := result.ResponsePart{
		ID:          item.ID,
		TimestampMS: textnorm.CoerceTimestamp(item.CompletedAt),
	}
	switch item.Type {
	case "agent_message":
		p.Kind = result.PartFinal
		p.Text = textnorm.Normalize(item.Text)
	case "reasoning":
		p.Kind = result.PartThinking
		p.Text = textnorm.Normalize(item.Text)
	case "command_execution":
		p.Kind = result.PartTool
		p.Text = item.Command
	default:
		return result.ResponsePart{}, false
	}
	return p, true
}

// Roll-out file records. The first record in every file is session metadata
// carrying the creating workspace; later records carry turn content.

type rolloutRecord struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type rolloutMeta struct {
	ID        string `json:"id"`
	CWD       string `json:"cwd"`
	Timestamp string `json:"timestamp"`
}

type rolloutItem struct {
	Type      string `json:"type"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	CallID    string `json:"call_id"`
	Text      string `json:"text"`
	Content   []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// rolloutFiles lists every roll-out file under the date-partitioned tree,
// sorted ascending; both the date directories and the timestamped filenames
// sort chronologically.
func (c *Codex) rolloutFiles() []string {
	var files []string
	root := filepath.Join(c.dir, "sessions")
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasPrefix(d.Name(), "rollout-") && strings.HasSuffix(d.Name(), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files
}

// sessionIDFromFilename extracts the trailing session uuid from a roll-out
// filename like rollout-2025-08-29T10-15-30-<uuid>.jsonl.
func sessionIDFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), ".jsonl")
	if len(base) < 36 {
		return ""
	}
	id := base[len(base)-36:]
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

func (c *Codex) latestSessionID() (string, bool) {
	files := c.rolloutFiles()
	for i := len(files) - 1; i >= 0; i-- {
		if id := sessionIDFromFilename(files[i]); id != "" {
			return id, true
		}
	}
	return "", false
}

// readRollout parses one roll-out file. Malformed records are skipped; an
// unreadable file yields a nil meta so callers exclude the session.
func readRollout(path string) (*rolloutMeta, []result.HistoryMessage) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer f.Close()

	var (
		meta     *rolloutMeta
		messages []result.HistoryMessage
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec rolloutRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		switch rec.Type {
		case "session_meta":
			var m rolloutMeta
			if err := json.Unmarshal(rec.Payload, &m); err == nil && meta == nil {
				meta = &m
			}
		case "response_item", "event_msg":
			var item rolloutItem
			if err := json.Unmarshal(rec.Payload, &item); err != nil {
				continue
			}
			if msg, ok := messageFromRollout(rec, item); ok {
				messages = append(messages, msg)
			}
		}
	}
	return meta, messages
}

func messageFromRollout(rec rolloutRecord, item rolloutItem) (result.HistoryMessage, bool) {
	ts := textnorm.CoerceTimestamp(rec.Timestamp)
	switch item.Type {
	case "message":
		role := result.RoleAssistant
		if item.Role == "user" {
			role = result.RoleUser
		}
		var texts []string
		for _, block := range item.Content {
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		}
		return result.HistoryMessage{
			Role:        role,
			ContentKind: result.ContentText,
			Content:     textnorm.Normalize(strings.Join(texts, "\n")),
			TimestampMS: ts,
		}, true
	case "function_call":
		return result.HistoryMessage{
			Role:        result.RoleAssistant,
			ContentKind: result.ContentTool,
			Content:     renderInvocation(item.Name, json.RawMessage(item.Arguments)),
			TimestampMS: ts,
			PartID:      item.CallID,
		}, true
	case "reasoning", "agent_reasoning":
		if item.Text == "" {
			return result.HistoryMessage{}, false
		}
		return result.HistoryMessage{
			Role:        result.RoleAssistant,
			ContentKind: result.ContentText,
			Content:     textnorm.Normalize(item.Text),
			TimestampMS: ts,
		}, true
	}
	return result.HistoryMessage{}, false
}

// findRollout locates the roll-out file for a session id.
func (c *Codex) findRollout(sessionID string) (string, bool) {
	suffix := "-" + sessionID + ".jsonl"
	for _, path := range c.rolloutFiles() {
		if strings.HasSuffix(path, suffix) {
			return path, true
		}
	}
	return "", false
}

func (c *Codex) Export(sessionID, workDir string) result.ExportResult {
	path, ok := c.findRollout(sessionID)
	if !ok {
		return result.ExportFailure("session " + sessionID + " not found under " + filepath.Join(c.dir, "sessions"))
	}
	meta, messages := readRollout(path)
	if meta == nil && messages == nil {
		return result.ExportFailure("roll-out file for session " + sessionID + " could not be read")
	}
	if workDir != "" && (meta == nil || !workspace.Matches(meta.CWD, workDir)) {
		return result.ExportFailure("session " + sessionID + " does not belong to " + workDir)
	}
	return result.ExportResult{Success: true, Messages: messages}
}

func (c *Codex) ListSessions(workDir string) result.SessionListResult {
	files := c.rolloutFiles()
	if files == nil {
		if _, err := os.Stat(filepath.Join(c.dir, "sessions")); err != nil {
			return result.SessionListFailure("codex session store not found under " + c.dir)
		}
	}

	type entry struct {
		info    result.SessionInfo
		updated time.Time
	}
	var sessions []entry
	for _, path := range files {
		id := sessionIDFromFilename(path)
		if id == "" {
			continue
		}
		meta, messages := readRollout(path)
		if meta == nil {
			continue // no readable session metadata: excluded, not defaulted in
		}
		if workDir != "" && !workspace.Matches(meta.CWD, workDir) {
			continue
		}
		title := "(untitled)"
		for _, m := range messages {
			if m.Role == result.RoleUser && m.Content != "" {
				title = sessionTitle(m.Content)
				break
			}
		}
		var updated time.Time
		if fi, err := os.Stat(path); err == nil {
			updated = fi.ModTime()
		}
		sessions = append(sessions, entry{
			info:    result.SessionInfo{ID: id, Title: title, Updated: relativeTime(updated)},
			updated: updated,
		})
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

// codexProfiles is the profile section of the codex config file.
type codexProfiles struct {
	Profiles map[string]codexProfile `toml:"profiles"`
}

type codexProfile struct {
	Model          string `toml:"model"`
	ApprovalPolicy string `toml:"approval_policy"`
	Sandbox        string `toml:"sandbox_mode"`
}

func (c *Codex) ListAgents() result.AgentListResult {
	path := filepath.Join(c.dir, "config.toml")
	if _, err := os.Stat(path); err != nil {
		return result.AgentListResult{Success: true}
	}
	var cfg codexProfiles
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return result.AgentListFailure("parsing codex config: " + err.Error())
	}

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	agents := make([]result.AgentInfo, 0, len(names))
	for _, name := range names {
		p := cfg.Profiles[name]
		var details []string
		if p.Model != "" {
			details = append(details, "model: "+p.Model)
		}
		if p.ApprovalPolicy != "" {
			details = append(details, "approval: "+p.ApprovalPolicy)
		}
		if p.Sandbox != "" {
			details = append(details, "sandbox: "+p.Sandbox)
		}
		agents = append(agents, result.AgentInfo{Name: name, Kind: "profile", Details: details})
	}
	return result.AgentListResult{Success: true, Agents: agents}
}

// StorePath locates the roll-out tree for watching.
func (c *Codex) StorePath(string) string {
	p := filepath.Join(c.dir, "sessions")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}
