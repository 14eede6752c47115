// Package inspector is the interactive tree view of an inspection session.
package inspector

import (
	"context"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattsolo1/grove-core/tui/components/help"

	"github.com/mattsolo1/grove-inspect/pkg/export"
	"github.com/mattsolo1/grove-inspect/pkg/inspect"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

// Session is the part of an inspection session the TUI drives.
type Session interface {
	Snapshot(ctx context.Context) (inspect.Snapshot, error)
	Toggle(ctx context.Context, id tree.NodeID) error
	Expand(ctx context.Context, id tree.NodeID) error
	Collapse(ctx context.Context, id tree.NodeID) error
	Select(ctx context.Context, id tree.NodeID) error
	Refresh(ctx context.Context) error
	ToggleTracking(ctx context.Context, name string) (bool, error)
	ToggleXPath(ctx context.Context) (bool, error)
	ExportSelected(ctx context.Context, dir string) (string, *export.UIElement, error)
}

// Model is the main model for the inspector TUI
type Model struct {
	session   Session
	exportDir string

	snap         inspect.Snapshot
	loaded       bool
	cursor       int
	scrollOffset int

	selects *selector

	keys    KeyMap
	help    help.Model
	details viewport.Model
	width   int
	height  int

	statusMessage string
}

// New creates the TUI for a running session. Exports are written to
// exportDir.
func New(session Session, exportDir string) Model {
	helpModel := help.NewBuilder().
		WithKeys(keys).
		WithTitle("Inspector - Help").
		Build()

	return Model{
		session:   session,
		exportDir: exportDir,
		selects:   &selector{},
		keys:      keys,
		help:      helpModel,
		details:   viewport.New(40, 10),
	}
}

func (m Model) Init() tea.Cmd {
	return fetchSnapshotCmd(m.session)
}

// rowIndex returns the index of the visible row for id, or -1.
func (m Model) rowIndex(id tree.NodeID) int {
	for i, r := range m.snap.Rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// currentRow returns the row under the cursor.
func (m Model) currentRow() (inspect.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Rows) {
		return inspect.Row{}, false
	}
	return m.snap.Rows[m.cursor], true
}

// parentIndex returns the index of the closest row above i with a smaller
// depth, or -1 for the root.
func (m Model) parentIndex(i int) int {
	depth := m.snap.Rows[i].Depth
	for j := i - 1; j >= 0; j-- {
		if m.snap.Rows[j].Depth < depth {
			return j
		}
	}
	return -1
}

// applySnapshot takes a newer snapshot and moves the cursor onto the
// selected row when it is visible.
func (m *Model) applySnapshot(snap inspect.Snapshot) {
	if m.loaded && snap.Version <= m.snap.Version {
		return
	}
	previous := m.snap.SelectedID
	m.snap = snap
	m.loaded = true

	if i := m.rowIndex(snap.SelectedID); i >= 0 {
		m.cursor = i
	}
	if m.cursor >= len(snap.Rows) {
		m.cursor = len(snap.Rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.details.SetContent(renderDetails(snap))
	if snap.SelectedID != previous {
		m.details.GotoTop()
	}
	m.ensureCursorVisible()
}

func (m *Model) ensureCursorVisible() {
	height := m.getViewportHeight()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	} else if m.cursor >= m.scrollOffset+height {
		m.scrollOffset = m.cursor - height + 1
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

func (m *Model) getViewportHeight() int {
	// Account for:
	// - Top margin: 1 line
	// - Header: 1 line
	// - Blank line after header: 1 line
	// - Blank line before footer: 1 line
	// - Status bar: 2 lines
	// - Footer (help): 1 line
	const fixedLines = 7
	availableHeight := m.height - fixedLines
	if availableHeight < 1 {
		return 1
	}
	return availableHeight
}

func (m *Model) treeWidth() int {
	if m.width <= 0 {
		return 60
	}
	return m.width * 55 / 100
}
