package backend

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/agentdeck/agentdeck/internal/result"
	"github.com/agentdeck/agentdeck/internal/textnorm"
	"github.com/agentdeck/agentdeck/internal/workspace"
)

// Gemini adapts the Gemini CLI. Runs are plain subprocess transcripts: the
// prompt goes in on stdin and whatever the CLI printed comes back as one
// final response part. Persisted sessions live as logs.json files under
// per-project hash directories.
type Gemini struct {
	bin string
	dir string // storage root, default ~/.gemini
}

// NewGemini builds the adapter. dir overrides the storage root when non-empty.
func NewGemini(dir string) *Gemini {
	if dir == "" {
		dir = filepath.Join(homeDir(), ".gemini")
	}
	return &Gemini{bin: "gemini", dir: dir}
}

func (g *Gemini) CLIName() string { return g.bin }

func (g *Gemini) MissingCommandError() string { return missingCommandError(g.bin) }

// sessionMarkerPattern matches the session id the CLI prints at the end of a
// non-interactive run, when it prints one at all.
var sessionMarkerPattern = regexp.MustCompile(`(?m)^Session(?: ID)?:\s*([A-Za-z0-9._-]+)\s*$`)

// Run invokes the CLI non-interactively with auto-trust enabled and the
// message on stdin.
func (g *Gemini) Run(ctx context.Context, message string, opts RunOptions) result.RunResult {
	// The CLI has no persona selection; extensions load on their own.
	if opts.Persona != "" {
		return result.RunFailure("the gemini backend does not support selecting an agent persona")
	}

	args := []string{"--yolo"}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.SessionID != "" {
		args = append(args, "--resume", opts.SessionID)
	}

	stdout, stderr, err := runProcess(ctx, g.bin, args, message, opts.WorkDir, opts.OnProcessStarted)
	switch {
	case err == errCanceled:
		return result.RunFailure(cancelMessage)
	case isMissingExecutable(err):
		return result.RunFailure(g.MissingCommandError())
	}

	text := textnorm.Normalize(stdout)
	if err != nil {
		desc := textnorm.Normalize(stderr)
		if desc == "" {
			desc = err.Error()
		}
		return result.RunFailure(desc)
	}

	res := result.RunResult{
		Success: true,
		Parts:   []result.ResponsePart{{Text: text, Kind: result.PartFinal}},
	}
	if m := sessionMarkerPattern.FindStringSubmatch(stdout + "\n" + stderr); m != nil {
		res.SessionID = m[1]
	} else if opts.SessionID != "" {
		res.SessionID = opts.SessionID
	}
	return res
}

// geminiLogEntry matches the structure of entries in logs.json.
type geminiLogEntry struct {
	SessionID string `json:"sessionId"`
	MessageID int    `json:"messageId"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// geminiProjectMeta is the sidecar record naming the workspace a project
// hash directory was created for.
type geminiProjectMeta struct {
	ProjectPath string `json:"projectPath"`
}

// projectDirs lists the per-project hash directories under the storage root.
func (g *Gemini) projectDirs() []string {
	entries, err := os.ReadDir(filepath.Join(g.dir, "tmp"))
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(g.dir, "tmp", e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs
}

// projectPath reads the recorded workspace for a project directory. Empty
// means the record is missing or unreadable; callers must exclude such
// sessions when matching against a workspace.
func projectPath(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "session.json"))
	if err != nil {
		return ""
	}
	var meta geminiProjectMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return meta.ProjectPath
}

func readGeminiLog(dir string) []geminiLogEntry {
	data, err := os.ReadFile(filepath.Join(dir, "logs.json"))
	if err != nil {
		return nil
	}
	var entries []geminiLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

func (g *Gemini) Export(sessionID, workDir string) result.ExportResult {
	for _, dir := range g.projectDirs() {
		if workDir != "" && !workspace.Matches(projectPath(dir), workDir) {
			continue
		}
		var messages []result.HistoryMessage
		for _, e := range readGeminiLog(dir) {
			if e.SessionID != sessionID {
				continue
			}
			role := result.RoleAssistant
			if e.Type == "user" {
				role = result.RoleUser
			}
			messages = append(messages, result.HistoryMessage{
				Role:        role,
				ContentKind: result.ContentText,
				Content:     textnorm.Normalize(e.Message),
				TimestampMS: textnorm.CoerceTimestamp(e.Timestamp),
			})
		}
		if len(messages) > 0 {
			return result.ExportResult{Success: true, Messages: messages}
		}
	}
	return result.ExportFailure("session " + sessionID + " not found in gemini logs")
}

func (g *Gemini) ListSessions(workDir string) result.SessionListResult {
	type agg struct {
		info   result.SessionInfo
		latest time.Time
	}
	var sessions []agg

	dirs := g.projectDirs()
	if dirs == nil {
		if _, err := os.Stat(filepath.Join(g.dir, "tmp")); err != nil {
			return result.SessionListFailure("gemini session store not found under " + g.dir)
		}
	}

	for _, dir := range dirs {
		if workDir != "" && !workspace.Matches(projectPath(dir), workDir) {
			continue
		}
		byID := map[string]*agg{}
		var order []string
		for _, e := range readGeminiLog(dir) {
			a, ok := byID[e.SessionID]
			if !ok {
				a = &agg{info: result.SessionInfo{ID: e.SessionID}}
				byID[e.SessionID] = a
				order = append(order, e.SessionID)
			}
			if a.info.Title == "" && e.Type == "user" {
				a.info.Title = sessionTitle(textnorm.Normalize(e.Message))
			}
			if ms := textnorm.CoerceTimestamp(e.Timestamp); ms != nil {
				if t := time.UnixMilli(*ms); t.After(a.latest) {
					a.latest = t
				}
			}
		}
		for _, id := range order {
			a := byID[id]
			if a.info.Title == "" {
				a.info.Title = "(untitled)"
			}
			a.info.Updated = relativeTime(a.latest)
			sessions = append(sessions, *a)
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].latest.After(sessions[j].latest)
	})
	out := make([]result.SessionInfo, 0, len(sessions))
	for _, a := range sessions {
		out = append(out, a.info)
	}
	return result.SessionListResult{Success: true, Sessions: out}
}

// geminiExtension is the manifest of an installed extension.
type geminiExtension struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

func (g *Gemini) ListAgents() result.AgentListResult {
	extDir := filepath.Join(g.dir, "extensions")
	entries, err := os.ReadDir(extDir)
	if err != nil {
		if os.IsNotExist(err) {
			return result.AgentListResult{Success: true}
		}
		return result.AgentListFailure("reading gemini extensions: " + err.Error())
	}

	var agents []result.AgentInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(extDir, e.Name(), "gemini-extension.json"))
		if err != nil {
			continue
		}
		var ext geminiExtension
		if err := json.Unmarshal(data, &ext); err != nil {
			continue // malformed manifest, skip
		}
		name := ext.Name
		if name == "" {
			name = e.Name()
		}
		var details []string
		if ext.Version != "" {
			details = append(details, "version: "+ext.Version)
		}
		if ext.Description != "" {
			details = append(details, ext.Description)
		}
		agents = append(agents, result.AgentInfo{Name: name, Kind: "extension", Details: details})
	}
	return result.AgentListResult{Success: true, Agents: agents}
}

// StorePath locates the session store for watching.
func (g *Gemini) StorePath(string) string {
	p := filepath.Join(g.dir, "tmp")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}
