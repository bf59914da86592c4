package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the dock's key bindings.
type KeyMap struct {
	Enter        key.Binding
	Up           key.Binding
	Down         key.Binding
	NextSurface  key.Binding
	PrevSurface  key.Binding
	SwitchFocus  key.Binding
	ToggleDock   key.Binding
	CloseSurface key.Binding
	Reconnect    key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Enter:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/send")),
		Up:           key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "up")),
		Down:         key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "down")),
		NextSurface:  key.NewBinding(key.WithKeys("ctrl+right", "alt+l"), key.WithHelp("ctrl+→", "next")),
		PrevSurface:  key.NewBinding(key.WithKeys("ctrl+left", "alt+h"), key.WithHelp("ctrl+←", "prev")),
		SwitchFocus:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "contacts")),
		ToggleDock:   key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "dock")),
		CloseSurface: key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("ctrl+w", "close")),
		Reconnect:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reconnect")),
		Quit:         key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SwitchFocus, k.Enter, k.CloseSurface, k.ToggleDock, k.Reconnect, k.Quit}
}
