package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the explorer's key bindings.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	ExtendUp    key.Binding
	ExtendDown  key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	Home        key.Binding
	End         key.Binding
	Toggle      key.Binding
	Expand      key.Binding
	Collapse    key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding
	Open        key.Binding
	Back        key.Binding
	MoveUp      key.Binding
	MoveDown    key.Binding
	Drag        key.Binding
	Cancel      key.Binding
	Copy        key.Binding
	Refresh     key.Binding
	Tab         key.Binding
	SwapView    key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("k/↑", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("j/↓", "down")),
		ExtendUp:    key.NewBinding(key.WithKeys("shift+up"), key.WithHelp("shift+↑", "extend up")),
		ExtendDown:  key.NewBinding(key.WithKeys("shift+down"), key.WithHelp("shift+↓", "extend down")),
		PageUp:      key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
		PageDown:    key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
		Home:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first")),
		End:         key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last")),
		Toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle selection")),
		Expand:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "expand")),
		Collapse:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "collapse")),
		ExpandAll:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "expand below")),
		CollapseAll: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "collapse all")),
		Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open folder")),
		Back:        key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "parent folder")),
		MoveUp:      key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
		MoveDown:    key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
		Drag:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "drag selection")),
		Cancel:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Copy:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy paths")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Tab:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
		SwapView:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "list/table")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// bindings lists every binding in help order.
func (k KeyMap) bindings() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.ExtendUp, k.ExtendDown, k.PageUp, k.PageDown, k.Home, k.End,
		k.Toggle, k.Expand, k.Collapse, k.ExpandAll, k.CollapseAll, k.Open, k.Back,
		k.MoveUp, k.MoveDown, k.Drag, k.Cancel, k.Copy, k.Refresh, k.Tab, k.SwapView,
		k.Help, k.Quit,
	}
}
