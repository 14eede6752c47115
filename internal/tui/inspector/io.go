package inspector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-inspect/pkg/inspect"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

// actionTimeout bounds a single request to the session. Dumps of large
// subtrees are the slowest requests.
const actionTimeout = 30 * time.Second

// SnapshotMsg carries a published session snapshot into the program.
type SnapshotMsg inspect.Snapshot

// statusMsg replaces the status line.
type statusMsg struct {
	text string
	err  error
}

func fetchSnapshotCmd(s Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return statusMsg{err: fmt.Errorf("read tree: %w", err)}
		}
		return SnapshotMsg(snap)
	}
}

// nodeCmd runs a node operation. The resulting change arrives as a
// published snapshot; only failures produce a message.
func nodeCmd(action string, id tree.NodeID, fn func(context.Context, tree.NodeID) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := fn(ctx, id); err != nil {
			return statusMsg{err: fmt.Errorf("%s: %w", action, err)}
		}
		return nil
	}
}

// selector runs cursor selects one at a time. A select superseded by a later
// cursor move is skipped, so the session always ends on the last row moved to.
type selector struct {
	mu     sync.Mutex
	latest atomic.Uint64
}

func (sel *selector) selectCmd(s Session, id tree.NodeID) tea.Cmd {
	seq := sel.latest.Add(1)
	return func() tea.Msg {
		sel.mu.Lock()
		defer sel.mu.Unlock()
		if sel.latest.Load() != seq {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := s.Select(ctx, id); err != nil {
			return statusMsg{err: fmt.Errorf("select: %w", err)}
		}
		return nil
	}
}

func refreshCmd(s Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := s.Refresh(ctx); err != nil {
			return statusMsg{err: fmt.Errorf("refresh: %w", err)}
		}
		return statusMsg{text: "Tree reloaded"}
	}
}

func toggleTrackingCmd(s Session, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		on, err := s.ToggleTracking(ctx, name)
		if err != nil {
			return statusMsg{err: fmt.Errorf("%s tracking: %w", name, err)}
		}
		state := "off"
		if on {
			state = "on"
		}
		return statusMsg{text: fmt.Sprintf("%s tracking %s", titleCase(name), state)}
	}
}

func toggleXPathCmd(s Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		on, err := s.ToggleXPath(ctx)
		if err != nil {
			return statusMsg{err: fmt.Errorf("xpath: %w", err)}
		}
		if on {
			return statusMsg{text: "XPath shown"}
		}
		return statusMsg{text: "XPath hidden"}
	}
}

func dumpCmd(s Session, dir string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		path, doc, err := s.ExportSelected(ctx, dir)
		if err != nil {
			return statusMsg{err: fmt.Errorf("dump: %w", err)}
		}
		return statusMsg{text: fmt.Sprintf("Dumped %d element(s) to %s", doc.Count(), path)}
	}
}

func copyDetailsCmd(text string) tea.Cmd {
	return func() tea.Msg {
		if text == "" {
			return statusMsg{text: "Nothing selected"}
		}
		if err := clipboard.WriteAll(text); err != nil {
			return statusMsg{err: fmt.Errorf("copy to clipboard: %w", err)}
		}
		return statusMsg{text: "Details copied to clipboard"}
	}
}
