package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentdeck/agentdeck/internal/result"
	"github.com/agentdeck/agentdeck/internal/textnorm"
	"github.com/agentdeck/agentdeck/internal/workspace"
)

// Opencode adapts the opencode CLI. History comes from the backend's own
// export subcommand, which prints authoritative session JSON; the adapter
// walks that JSON into typed messages, rendering per-turn tool invocations
// alongside the thinking text and recovering assistant timestamps from the
// request/response metadata when parts carry none inline.
type Opencode struct {
	bin string
	dir string // storage root, default ~/.local/share/opencode
}

// NewOpencode builds the adapter. dir overrides the storage root when non-empty.
func NewOpencode(dir string) *Opencode {
	if dir == "" {
		dir = filepath.Join(homeDir(), ".local", "share", "opencode")
	}
	return &Opencode{bin: "opencode", dir: dir}
}

func (o *Opencode) CLIName() string { return o.bin }

func (o *Opencode) MissingCommandError() string { return missingCommandError(o.bin) }

func (o *Opencode) Run(ctx context.Context, message string, opts RunOptions) result.RunResult {
	args := []string{"run", "--print-logs=false"}
	if opts.SessionID != "" {
		args = append(args, "--session", opts.SessionID)
	}
	if opts.Persona != "" {
		args = append(args, "--agent", opts.Persona)
	}
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	args = append(args, message)

	stdout, stderr, err := runProcess(ctx, o.bin, args, "", opts.WorkDir, opts.OnProcessStarted)
	switch {
	case err == errCanceled:
		return result.RunFailure(cancelMessage)
	case isMissingExecutable(err):
		return result.RunFailure(o.MissingCommandError())
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

// Shapes of the `opencode export` JSON document.

type opencodeExport struct {
	Info     opencodeSessionInfo `json:"info"`
	Messages []opencodeMessage   `json:"messages"`
}

type opencodeSessionInfo struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Directory string       `json:"directory"`
	Time      opencodeTime `json:"time"`
}

type opencodeTime struct {
	Created   float64 `json:"created"`
	Updated   float64 `json:"updated"`
	Completed float64 `json:"completed"`
}

type opencodeMessage struct {
	ID       string           `json:"id"`
	Role     string           `json:"role"`
	Metadata opencodeMetadata `json:"metadata"`
	Parts    []opencodePart   `json:"parts"`
}

type opencodeMetadata struct {
	Time opencodeTime                `json:"time"`
	Tool map[string]opencodeToolMeta `json:"tool"`
}

type opencodeToolMeta struct {
	Title string       `json:"title"`
	Time  opencodeTime `json:"time"`
}

type opencodePart struct {
	Type           string              `json:"type"`
	Text           string              `json:"text"`
	ToolInvocation *opencodeInvocation `json:"toolInvocation"`
}

type opencodeInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

func (o *Opencode) Export(sessionID, workDir string) result.ExportResult {
	ctx := context.Background()
	stdout, stderr, err := runProcess(ctx, o.bin, []string{"export", sessionID}, "", workDir, nil)
	if isMissingExecutable(err) {
		return result.ExportFailure(o.MissingCommandError())
	}
	if err != nil {
		desc := textnorm.Normalize(stderr)
		if desc == "" {
			desc = err.Error()
		}
		return result.ExportFailure(desc)
	}
	return parseOpencodeExport([]byte(stdout))
}

// parseOpencodeExport walks an export document into history messages.
// Assistant turns that invoked tools render as a single tool_use message
// combining the thinking text with one "name(args)" line per invocation;
// the timestamp comes from the turn's response metadata (completed, else
// created) rather than any inline part field.
func parseOpencodeExport(data []byte) result.ExportResult {
	var doc opencodeExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return result.ExportFailure("parsing opencode export: " + err.Error())
	}

	var messages []result.HistoryMessage
	for _, m := range doc.Messages {
		role := result.RoleAssistant
		if m.Role == "user" {
			role = result.RoleUser
		}
		ts := textnorm.CoerceTimestamp(m.Metadata.Time.Completed)
		if ts == nil {
			ts = textnorm.CoerceTimestamp(m.Metadata.Time.Created)
		}

		var thinking, texts, toolLines []string
		firstCallID := ""
		for _, p := range m.Parts {
			switch p.Type {
			case "text":
				texts = append(texts, p.Text)
			case "reasoning":
				thinking = append(thinking, p.Text)
			case "tool-invocation":
				if p.ToolInvocation == nil {
					continue
				}
				toolLines = append(toolLines, renderInvocation(p.ToolInvocation.ToolName, p.ToolInvocation.Args))
				if firstCallID == "" {
					firstCallID = p.ToolInvocation.ToolCallID
				}
			}
		}
		// An export written before tool parts were inlined only carries
		// tool titles in the turn metadata.
		if len(toolLines) == 0 {
			toolLines = append(toolLines, toolMetaTitles(m.Metadata.Tool)...)
		}

		if len(toolLines) > 0 || len(thinking) > 0 {
			content := strings.TrimSpace(strings.Join(thinking, "\n"))
			if len(toolLines) > 0 {
				if content != "" {
					content += "\n\n"
				}
				content += strings.Join(toolLines, "\n")
			}
			messages = append(messages, result.HistoryMessage{
				ID:          m.ID,
				Role:        role,
				ContentKind: result.ContentToolUse,
				Content:     content,
				TimestampMS: ts,
				PartID:      firstCallID,
			})
		}
		if text := textnorm.Normalize(strings.Join(texts, "\n")); text != "" || (len(toolLines) == 0 && len(thinking) == 0) {
			messages = append(messages, result.HistoryMessage{
				ID:          m.ID,
				Role:        role,
				ContentKind: result.ContentText,
				Content:     text,
				TimestampMS: ts,
			})
		}
	}

	return result.ExportResult{Success: true, Messages: messages}
}

// renderInvocation renders a tool call as "name(args)" with the raw JSON
// arguments inline.
func renderInvocation(name string, args json.RawMessage) string {
	rendered := strings.TrimSpace(string(args))
	if rendered == "" || rendered == "null" {
		return name + "()"
	}
	return fmt.Sprintf("%s(%s)", name, rendered)
}

// toolMetaTitles yields tool titles in deterministic call-id order.
func toolMetaTitles(tools map[string]opencodeToolMeta) []string {
	ids := make([]string, 0, len(tools))
	for id := range tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	titles := make([]string, 0, len(ids))
	for _, id := range ids {
		if t := tools[id].Title; t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

func (o *Opencode) ListSessions(workDir string) result.SessionListResult {
	projectRoot := filepath.Join(o.dir, "project")
	projects, err := os.ReadDir(projectRoot)
	if err != nil {
		return result.SessionListFailure("opencode session store not found under " + o.dir)
	}

	type entry struct {
		info    result.SessionInfo
		updated time.Time
	}
	var sessions []entry

	for _, proj := range projects {
		if !proj.IsDir() {
			continue
		}
		infoDir := filepath.Join(projectRoot, proj.Name(), "storage", "session", "info")
		files, err := os.ReadDir(infoDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(infoDir, f.Name()))
			if err != nil {
				continue
			}
			var info opencodeSessionInfo
			if err := json.Unmarshal(data, &info); err != nil {
				continue // malformed record, skip
			}
			if workDir != "" && !workspace.Matches(info.Directory, workDir) {
				continue
			}
			title := info.Title
			if title == "" {
				title = "(untitled)"
			}
			var updated time.Time
			if ms := textnorm.CoerceTimestamp(info.Time.Updated); ms != nil {
				updated = time.UnixMilli(*ms)
			}
			sessions = append(sessions, entry{
				info: result.SessionInfo{
					ID:      info.ID,
					Title:   sessionTitle(title),
					Updated: relativeTime(updated),
				},
				updated: updated,
			})
		}
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

// opencodeAgentFrontmatter is the YAML frontmatter of an agent definition.
type opencodeAgentFrontmatter struct {
	Description string `yaml:"description"`
	Model       string `yaml:"model"`
	Mode        string `yaml:"mode"`
}

func (o *Opencode) ListAgents() result.AgentListResult {
	dirs := []string{
		filepath.Join(homeDir(), ".config", "opencode", "agent"),
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, ".opencode", "agent"))
	}

	var agents []result.AgentInfo
	for _, dir := range dirs {
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, f.Name()))
			if err != nil {
				continue
			}
			name := strings.TrimSuffix(f.Name(), ".md")
			fm := parseFrontmatter(data)
			kind := "agent"
			if fm.Mode != "" {
				kind = fm.Mode
			}
			var details []string
			if fm.Description != "" {
				details = append(details, fm.Description)
			}
			if fm.Model != "" {
				details = append(details, "model: "+fm.Model)
			}
			agents = append(agents, result.AgentInfo{Name: name, Kind: kind, Details: details})
		}
	}
	return result.AgentListResult{Success: true, Agents: agents}
}

// parseFrontmatter extracts the YAML block between leading "---" fences.
// Files without a fence, or with YAML that does not parse, yield the zero
// value; a broken agent file should not fail the listing.
func parseFrontmatter(data []byte) opencodeAgentFrontmatter {
	var fm opencodeAgentFrontmatter
	text := string(data)
	if !strings.HasPrefix(text, "---") {
		return fm
	}
	rest := text[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return fm
	}
	_ = yaml.Unmarshal([]byte(rest[:end]), &fm)
	return fm
}

// StorePath locates the session store for watching.
func (o *Opencode) StorePath(string) string {
	p := filepath.Join(o.dir, "project")
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}
