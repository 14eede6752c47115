package inspector

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-inspect/pkg/inspect"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.SetSize(msg.Width, msg.Height)
		m.details.Width = m.width - m.treeWidth() - 3
		m.details.Height = m.getViewportHeight()
		m.ensureCursorVisible()
		return m, nil

	case SnapshotMsg:
		m.applySnapshot(inspect.Snapshot(msg))
		return m, nil

	case statusMsg:
		if msg.err != nil {
			m.statusMessage = "Error: " + msg.err.Error()
		} else {
			m.statusMessage = msg.text
		}
		return m, nil

	case tea.KeyMsg:
		if m.help.ShowAll {
			m.help.Toggle()
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.Toggle()
		return m, nil

	case key.Matches(msg, m.keys.Hover):
		return m, toggleTrackingCmd(m.session, "hover")

	case key.Matches(msg, m.keys.Focus):
		return m, toggleTrackingCmd(m.session, "focus")

	case key.Matches(msg, m.keys.XPath):
		return m, toggleXPathCmd(m.session)

	case key.Matches(msg, m.keys.Refresh):
		m.statusMessage = "Reloading..."
		return m, refreshCmd(m.session)

	case key.Matches(msg, m.keys.Dump):
		m.statusMessage = "Dumping..."
		return m, dumpCmd(m.session, m.exportDir)

	case key.Matches(msg, m.keys.Copy):
		return m, copyDetailsCmd(detailsText(m.snap))

	case key.Matches(msg, m.keys.Up):
		return m.moveTo(m.cursor - 1)

	case key.Matches(msg, m.keys.Down):
		return m.moveTo(m.cursor + 1)

	case key.Matches(msg, m.keys.PageUp):
		return m.moveTo(m.cursor - m.getViewportHeight()/2)

	case key.Matches(msg, m.keys.PageDown):
		return m.moveTo(m.cursor + m.getViewportHeight()/2)

	case key.Matches(msg, m.keys.Toggle):
		row, ok := m.currentRow()
		if !ok || !row.Expandable {
			return m, nil
		}
		return m, nodeCmd("toggle", row.ID, m.session.Toggle)

	case key.Matches(msg, m.keys.Collapse):
		row, ok := m.currentRow()
		if !ok {
			return m, nil
		}
		if row.Expanded {
			return m, nodeCmd("collapse", row.ID, m.session.Collapse)
		}
		if parent := m.parentIndex(m.cursor); parent >= 0 {
			return m.moveTo(parent)
		}
		return m, nil

	case key.Matches(msg, m.keys.Expand):
		row, ok := m.currentRow()
		if !ok {
			return m, nil
		}
		if !row.Expanded && row.Expandable {
			return m, nodeCmd("expand", row.ID, m.session.Expand)
		}
		next := m.cursor + 1
		if row.Expanded && next < len(m.snap.Rows) && m.snap.Rows[next].Depth == row.Depth+1 {
			return m.moveTo(next)
		}
		return m, nil
	}
	return m, nil
}

// moveTo puts the cursor on row i, clamped to the visible rows, and makes
// that row the selection.
func (m Model) moveTo(i int) (tea.Model, tea.Cmd) {
	if len(m.snap.Rows) == 0 {
		return m, nil
	}
	if i < 0 {
		i = 0
	}
	if i >= len(m.snap.Rows) {
		i = len(m.snap.Rows) - 1
	}
	if i == m.cursor && m.snap.Rows[i].Selected {
		return m, nil
	}
	m.cursor = i
	m.ensureCursorVisible()
	return m, m.selects.selectCmd(m.session, m.snap.Rows[i].ID)
}
