package inspector

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/mattsolo1/grove-core/tui/keymap"
)

// KeyMap defines the keybindings for the inspector TUI
type KeyMap struct {
	keymap.Base
	Toggle   key.Binding
	Collapse key.Binding
	Expand   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Hover    key.Binding
	Focus    key.Binding
	XPath    key.Binding
	Refresh  key.Binding
	Dump     key.Binding
	Copy     key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Hover, k.Focus, k.Dump, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	baseHelp := k.Base.FullHelp()
	return append(baseHelp, []key.Binding{
		k.Toggle,
		k.Collapse,
		k.Expand,
		k.PageUp,
		k.PageDown,
	}, []key.Binding{
		k.Hover,
		k.Focus,
		k.XPath,
		k.Refresh,
		k.Dump,
		k.Copy,
	})
}

var keys = KeyMap{
	Base: keymap.NewBase(),
	Toggle: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter/space", "expand/collapse"),
	),
	Collapse: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "collapse / parent"),
	),
	Expand: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "expand / first child"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("ctrl+u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("ctrl+d", "page down"),
	),
	Hover: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "toggle hover tracking"),
	),
	Focus: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "toggle focus tracking"),
	),
	XPath: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "toggle xpath"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh tree"),
	),
	Dump: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "dump subtree to JSON"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy details"),
	),
}
