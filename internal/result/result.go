// Package result defines the typed contract every backend adapter produces.
// All values are immutable snapshots built per call; nothing here caches or
// mutates backend state.
package result

import (
	"encoding/json"
	"time"
)

// PartKind classifies a response fragment emitted while a backend runs.
type PartKind string

const (
	PartThinking PartKind = "thinking"
	PartTool     PartKind = "tool"
	PartFinal    PartKind = "final"
)

// Role identifies the author of a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentKind classifies the content of a history message.
type ContentKind string

const (
	ContentText    ContentKind = "text"
	ContentTool    ContentKind = "tool"
	ContentToolUse ContentKind = "tool_use"
)

// ResponsePart is one fragment of a live run, in emission order.
// Text may legitimately be empty. TimestampMS is epoch milliseconds, nil when
// the backend supplied none.
type ResponsePart struct {
	Text        string
	TimestampMS *int64
	Kind        PartKind
	// ID is an optional backend-assigned part or tool-call id used for dedup.
	ID string
}

// HistoryMessage is one entry of a persisted transcript.
type HistoryMessage struct {
	// ID is the backend-assigned message id, empty when the backend has none.
	ID          string
	Role        Role
	ContentKind ContentKind
	Content     string
	TimestampMS *int64
	// PartID is an optional part/call id carried through for dedup.
	PartID string
}

// SessionInfo summarizes one stored conversation.
type SessionInfo struct {
	// ID is stable and scoped to the backend that owns the session.
	ID      string
	Title   string
	Updated string // human-readable updated marker, e.g. "5m ago"
}

// AgentInfo describes one installed persona/agent of a backend.
type AgentInfo struct {
	Name    string
	Kind    string
	Details []string
}

// RunResult is the outcome of running a message through a backend.
// Invariant: Success implies Error is empty.
type RunResult struct {
	Success   bool
	SessionID string // empty when the backend reported no session id
	Parts     []ResponsePart
	Error     string
}

// ExportResult wraps an exported transcript.
type ExportResult struct {
	Success  bool
	Messages []HistoryMessage
	Error    string
}

// SessionListResult wraps a session listing.
type SessionListResult struct {
	Success  bool
	Sessions []SessionInfo
	Error    string
}

// AgentListResult wraps an agent listing.
type AgentListResult struct {
	Success bool
	Agents  []AgentInfo
	Error   string
}

// RunFailure builds a failed RunResult with the given description.
func RunFailure(desc string) RunResult {
	return RunResult{Success: false, Error: desc}
}

// ExportFailure builds a failed ExportResult with the given description.
func ExportFailure(desc string) ExportResult {
	return ExportResult{Success: false, Error: desc}
}

// SessionListFailure builds a failed SessionListResult with the given description.
func SessionListFailure(desc string) SessionListResult {
	return SessionListResult{Success: false, Error: desc}
}

// AgentListFailure builds a failed AgentListResult with the given description.
func AgentListFailure(desc string) AgentListResult {
	return AgentListResult{Success: false, Error: desc}
}

// FormatTimestamp renders epoch milliseconds as ISO-8601 UTC with millisecond
// precision, the only timestamp form that crosses the wire.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Wire projection rules:
//   - timestamps render as ISO-8601 UTC with millisecond precision
//   - history message timestamps render explicit null when absent
//   - response part timestamps are omitted when absent
//   - nullable identifiers render as null, never as ""

func (p ResponsePart) MarshalJSON() ([]byte, error) {
	wire := struct {
		Text      string   `json:"text"`
		Timestamp *string  `json:"timestamp,omitempty"`
		Kind      PartKind `json:"kind"`
		ID        *string  `json:"id,omitempty"`
	}{Text: p.Text, Kind: p.Kind}
	if p.TimestampMS != nil {
		ts := FormatTimestamp(*p.TimestampMS)
		wire.Timestamp = &ts
	}
	if p.ID != "" {
		wire.ID = &p.ID
	}
	return json.Marshal(wire)
}

func (m HistoryMessage) MarshalJSON() ([]byte, error) {
	wire := struct {
		ID          *string     `json:"id"`
		Role        Role        `json:"role"`
		ContentKind ContentKind `json:"content_kind"`
		Content     string      `json:"content"`
		Timestamp   *string     `json:"timestamp"`
		PartID      *string     `json:"part_id,omitempty"`
	}{Role: m.Role, ContentKind: m.ContentKind, Content: m.Content}
	if m.ID != "" {
		wire.ID = &m.ID
	}
	if m.TimestampMS != nil {
		ts := FormatTimestamp(*m.TimestampMS)
		wire.Timestamp = &ts
	}
	if m.PartID != "" {
		wire.PartID = &m.PartID
	}
	return json.Marshal(wire)
}

func (r RunResult) MarshalJSON() ([]byte, error) {
	wire := struct {
		Success   bool           `json:"success"`
		SessionID *string        `json:"session_id"`
		Parts     []ResponsePart `json:"parts"`
		Error     string         `json:"error,omitempty"`
	}{Success: r.Success, Parts: r.Parts, Error: r.Error}
	if wire.Parts == nil {
		wire.Parts = []ResponsePart{}
	}
	if r.SessionID != "" {
		wire.SessionID = &r.SessionID
	}
	return json.Marshal(wire)
}

func (r ExportResult) MarshalJSON() ([]byte, error) {
	wire := struct {
		Success  bool             `json:"success"`
		Messages []HistoryMessage `json:"messages"`
		Error    string           `json:"error,omitempty"`
	}{Success: r.Success, Messages: r.Messages, Error: r.Error}
	if wire.Messages == nil {
		wire.Messages = []HistoryMessage{}
	}
	return json.Marshal(wire)
}

func (r SessionListResult) MarshalJSON() ([]byte, error) {
	wire := struct {
		Success  bool          `json:"success"`
		Sessions []SessionInfo `json:"sessions"`
		Error    string        `json:"error,omitempty"`
	}{Success: r.Success, Sessions: r.Sessions, Error: r.Error}
	if wire.Sessions == nil {
		wire.Sessions = []SessionInfo{}
	}
	return json.Marshal(wire)
}

func (r AgentListResult) MarshalJSON() ([]byte, error) {
	wire := struct {
		Success bool        `json:"success"`
		Agents  []AgentInfo `json:"agents"`
		Error   string      `json:"error,omitempty"`
	}{Success: r.Success, Agents: r.Agents, Error: r.Error}
	if wire.Agents == nil {
		wire.Agents = []AgentInfo{}
	}
	return json.Marshal(wire)
}

func (s SessionInfo) MarshalJSON() ([]byte, error) {
	wire := struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Updated string `json:"updated"`
	}{s.ID, s.Title, s.Updated}
	return json.Marshal(wire)
}

func (a AgentInfo) MarshalJSON() ([]byte, error) {
	wire := struct {
		Name    string   `json:"name"`
		Kind    string   `json:"kind"`
		Details []string `json:"details"`
	}{a.Name, a.Kind, a.Details}
	if wire.Details == nil {
		wire.Details = []string{}
	}
	return json.Marshal(wire)
}
