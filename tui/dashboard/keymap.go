package dashboard

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Clear    key.Binding
	ShowData key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
		Up:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear counts")),
		ShowData: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "toggle data")),
	}
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Quit, k.Down, k.Up, k.Clear, k.ShowData}
}
