package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Toggle key.Binding
	Retry  key.Binding
	More   key.Binding
	Open   key.Binding
	Export key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Top:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Toggle: key.NewBinding(key.WithKeys("enter", " ", "space"), key.WithHelp("enter", "expand")),
	Retry:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	More:   key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", "more")),
	Open:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open link")),
	Export: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Down, k.Toggle, k.Retry, k.More, k.Open, k.Export, k.Quit}
}
