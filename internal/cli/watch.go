package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/agentdeck/agentdeck/internal/backend"
	"github.com/agentdeck/agentdeck/internal/merge"
	"github.com/agentdeck/agentdeck/internal/result"
)

// watchDebounce coalesces bursts of store writes into one refetch.
const watchDebounce = 300 * time.Millisecond

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session's store and print new messages as they land",
		Long: `Watch the active backend's session store and print messages as the
backend persists them.

On every store change the session is re-exported and reconciled against the
transcript already shown, so messages are never printed twice and a grown
revision of a message replaces its earlier fragment. Ctrl-C stops watching.

Examples:
  agentdeck watch ses_abc123
  agentdeck --backend codex watch 0193e6f3-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, _, err := activeAdapter()
			if err != nil {
				return err
			}
			loc, ok := adapter.(backend.StoreLocator)
			if !ok {
				return fmt.Errorf("backend %s has no watchable store", adapter.CLIName())
			}
			storePath := loc.StorePath(workDir())
			if storePath == "" {
				return fmt.Errorf("no session store found for %s", adapter.CLIName())
			}
			return watchSession(adapter, args[0], storePath)
		},
	}
	return cmd
}

func watchSession(adapter backend.Adapter, sessionID, storePath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()
	if err := addRecursive(watcher, storePath); err != nil {
		return err
	}

	f := formatter()

	var transcript []result.HistoryMessage
	if res := adapter.Export(sessionID, workDir()); res.Success {
		transcript = res.Messages
		printMessages(f, transcript)
	} else {
		f.Dim("waiting for session " + sessionID + " (" + res.Error + ")")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New date partitions appear as the backend rolls over.
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = watcher.Add(ev.Name)
				}
			}
			debounce.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.Dim("watch error: " + err.Error())
		case <-debounce.C:
			res := adapter.Export(sessionID, workDir())
			if !res.Success {
				continue
			}
			merged := merge.Merge(transcript, res.Messages)
			printMessages(f, changedMessages(transcript, merged))
			transcript = merged
		}
	}
}

// changedMessages returns the messages of merged that are new or were
// revised in place relative to old. merge.Merge replaces a grown message at
// its original index, so an index-wise comparison finds both kinds.
func changedMessages(old, merged []result.HistoryMessage) []result.HistoryMessage {
	var out []result.HistoryMessage
	for i, m := range merged {
		if i >= len(old) || old[i].Content != m.Content || old[i].ContentKind != m.ContentKind {
			out = append(out, m)
		}
	}
	return out
}

// addRecursive watches path and every directory below it; fsnotify does not
// descend on its own.
func addRecursive(watcher *fsnotify.Watcher, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return watcher.Add(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = watcher.Add(p)
		}
		return nil
	})
}

