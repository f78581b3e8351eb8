package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the checklist view.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding
	Top  key.Binding
	End  key.Binding

	// Quantities
	Increment key.Binding
	Decrement key.Binding
	Complete  key.Binding
	ResetItem key.Binding
	ResetAll  key.Binding

	// View
	CycleMode   key.Binding
	CycleFilter key.Binding
	Narrow      key.Binding
	Toggle      key.Binding
	Detail      key.Binding
	GroupDown   key.Binding
	GroupUp     key.Binding

	// Actions
	Open      key.Binding
	Reconnect key.Binding
	Help      key.Binding
	Quit      key.Binding
	Confirm   key.Binding
	Cancel    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous row"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next row"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		End: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		Increment: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "found one"),
		),
		Decrement: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "unfind one"),
		),
		Complete: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "mark complete"),
		),
		ResetItem: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "reset item"),
		),
		ResetAll: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reset session"),
		),
		CycleMode: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "group by"),
		),
		CycleFilter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "filter"),
		),
		Narrow: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all colors of part"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "space", "enter"),
			key.WithHelp("space", "collapse group"),
		),
		Detail: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "part details"),
		),
		GroupDown: key.NewBinding(
			key.WithKeys("J"),
			key.WithHelp("J", "move group down"),
		),
		GroupUp: key.NewBinding(
			key.WithKeys("K"),
			key.WithHelp("K", "move group up"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "Y"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "n", "N"),
		),
	}
}

// ShortHelp returns key bindings to be shown in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Increment, k.Decrement, k.CycleMode, k.CycleFilter, k.Help, k.Quit}
}

// FullHelp returns key bindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.End, k.Toggle, k.Detail},
		{k.Increment, k.Decrement, k.Complete, k.ResetItem, k.ResetAll},
		{k.CycleMode, k.CycleFilter, k.Narrow, k.GroupDown, k.GroupUp},
		{k.Open, k.Reconnect, k.Help, k.Quit},
	}
}
