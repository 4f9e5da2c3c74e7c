package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NewGame key.Binding
	Hit     key.Binding
	Stand   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		NewGame: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new game"),
		),
		Hit: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "hit"),
		),
		Stand: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stand"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NewGame, k.Hit, k.Stand, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NewGame, k.Hit, k.Stand},
		{k.Help, k.Quit},
	}
}
