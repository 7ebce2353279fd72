// Package backend adapts heterogeneous coding-assistant CLIs to one typed
// capability contract. Each adapter owns one backend's invocation flags and
// session-storage conventions; callers only ever see the result types.
//
// Adapters hold no shared mutable state. Subprocess handles and store
// connections are created per call, so callers may drive several adapters
// from their own goroutines without coordination. Backend failures of any
// kind resolve to a failed result, never to a raised error: Go errors out of
// this package mean caller-side misuse (for example an unknown backend name).
package backend

import (
	"context"
	"fmt"
	"os"

	"github.com/agentdeck/agentdeck/internal/result"
)

// RunOptions carries the optional knobs of a run.
type RunOptions struct {
	// SessionID resumes an existing backend session when non-empty.
	SessionID string
	// Persona selects an installed agent/persona when the backend has them.
	Persona string
	// Model overrides the backend's default model.
	Model string
	// WorkDir is the directory the backend runs in. Required.
	WorkDir string
	// OnProcessStarted, when set, receives the live process handle before
	// Run blocks on it, so external cancellation bookkeeping can track it.
	OnProcessStarted func(*os.Process)
}

// Adapter is the capability contract a backend integration satisfies.
//
// Run observes ctx cooperatively: once ctx is done any live subprocess is
// terminated and a failed result returned promptly, discarding partial
// output. No adapter-internal timeout exists beyond that; an unresponsive
// backend blocks the caller until it cancels.
type Adapter interface {
	// CLIName returns the backend executable name, e.g. "codex".
	CLIName() string

	// Run sends one message through the backend and captures its response.
	Run(ctx context.Context, message string, opts RunOptions) result.RunResult

	// Export returns the persisted history of one session.
	Export(sessionID, workDir string) result.ExportResult

	// ListSessions lists stored sessions, filtered to workDir when workDir
	// is non-empty. The filter uses only workspace paths the backend itself
	// recorded in its session metadata.
	ListSessions(workDir string) result.SessionListResult

	// ListAgents lists the backend's installed personas/agents.
	ListAgents() result.AgentListResult

	// MissingCommandError returns the error text used verbatim when the
	// backend executable is absent.
	MissingCommandError() string
}

// StoreLocator is implemented by adapters whose session store lives at a
// resolvable filesystem path, enabling callers to watch it for changes.
type StoreLocator interface {
	// StorePath returns the store location for workDir, or "" when the
	// store does not exist yet.
	StorePath(workDir string) string
}

// missingCommandError renders the canonical backend-absent message.
func missingCommandError(cliName string) string {
	return fmt.Sprintf("'%s' command not found. Please ensure it is installed and in PATH.", cliName)
}
