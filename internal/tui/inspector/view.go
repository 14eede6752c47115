package inspector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mattsolo1/grove-inspect/pkg/inspect"
	"github.com/mattsolo1/grove-inspect/pkg/tree"
)

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func (m Model) View() string {
	if !m.loaded {
		return "Loading..."
	}

	if m.help.ShowAll {
		return m.help.View()
	}

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		theme.DefaultTheme.Header.Render("Inspector"),
		"  ",
		m.renderTracking(),
	)

	treeView := lipgloss.NewStyle().Width(m.treeWidth()).Render(m.renderTree())
	separator := theme.DefaultTheme.Muted.Render(strings.Repeat("│\n", m.getViewportHeight()))
	content := lipgloss.JoinHorizontal(lipgloss.Top, treeView, " ", separator, " ", m.details.View())

	fullView := lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		content,
		"",
		m.renderStatus(),
		m.help.View(),
	)

	// Add top margin to prevent border cutoff
	return "\n" + fullView
}

func (m Model) renderTracking() string {
	names := make([]string, 0, len(m.snap.Tracking))
	for name := range m.snap.Tracking {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		if m.snap.Tracking[name] {
			parts = append(parts, theme.DefaultTheme.Info.Render("● "+name))
		} else {
			parts = append(parts, theme.DefaultTheme.Muted.Render("○ "+name))
		}
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderTree() string {
	var b strings.Builder

	viewportHeight := m.getViewportHeight()
	start := m.scrollOffset
	end := start + viewportHeight
	if end > len(m.snap.Rows) {
		end = len(m.snap.Rows)
	}

	for i := start; i < end; i++ {
		row := m.snap.Rows[i]
		cursor := "  "
		if i == m.cursor {
			cursor = theme.DefaultTheme.Highlight.Render("▶ ")
		}

		foldIndicator := "  "
		if row.Expandable {
			if row.Expanded {
				foldIndicator = "▼ "
			} else {
				foldIndicator = "▶ "
			}
		}

		line := fmt.Sprintf("%s%s%s%s", cursor, strings.Repeat("  ", row.Depth), foldIndicator, row.Label)
		switch {
		case row.Selected:
			line = theme.DefaultTheme.Selected.Render(line)
		case row.State == tree.LoadFailed:
			line += theme.DefaultTheme.Muted.Render(" (children unavailable)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.snap.Rows) > viewportHeight {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf(" (%d-%d of %d)", start+1, end, len(m.snap.Rows))))
	}

	return b.String()
}

func (m Model) renderStatus() string {
	var line string
	if last := m.snap.LastSync; last != nil {
		line = fmt.Sprintf("%s → %s", last.Source, last.Selected)
		if last.ForcedReloads > 0 {
			line += fmt.Sprintf(" (%d reload(s))", last.ForcedReloads)
		}
		if last.Err != "" {
			line += " · " + last.Err
		}
	}
	stats := fmt.Sprintf("nodes %d · syncs %d · not found %d", m.snap.Nodes, m.snap.Stats.Syncs, m.snap.Stats.NotFound)
	status := theme.DefaultTheme.Muted.Render(stats)
	if line != "" {
		status = theme.DefaultTheme.Info.Render(line) + "  " + status
	}
	if m.statusMessage != "" {
		return status + "\n" + m.statusMessage
	}
	return status + "\n"
}

// renderDetails formats the detail groups of the selected element for the
// details panel.
func renderDetails(snap inspect.Snapshot) string {
	if snap.SelectedID == 0 {
		return theme.DefaultTheme.Muted.Render("No element selected.")
	}
	var b strings.Builder
	b.WriteString(theme.DefaultTheme.Highlight.Render(snap.SelectedPath))
	b.WriteString("\n")
	if snap.XPath != "" {
		b.WriteString(theme.DefaultTheme.Muted.Render(snap.XPath))
		b.WriteString("\n")
	}
	for _, group := range snap.Details {
		b.WriteString("\n")
		b.WriteString(theme.DefaultTheme.TableHeader.Render(group.Name))
		b.WriteString("\n")
		for _, d := range group.Details {
			value := d.Value
			if d.Important {
				value = theme.DefaultTheme.Highlight.Render(value)
			}
			fmt.Fprintf(&b, "  %s: %s\n", d.Key, value)
		}
	}
	return b.String()
}

// detailsText is the plain-text form of the details panel used for the
// clipboard.
func detailsText(snap inspect.Snapshot) string {
	if snap.SelectedID == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(snap.SelectedPath)
	b.WriteString("\n")
	if snap.XPath != "" {
		b.WriteString(snap.XPath)
		b.WriteString("\n")
	}
	for _, group := range snap.Details {
		fmt.Fprintf(&b, "\n%s\n", group.Name)
		for _, d := range group.Details {
			fmt.Fprintf(&b, "  %s: %s\n", d.Key, d.Value)
		}
	}
	return b.String()
}
