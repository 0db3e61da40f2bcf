package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Connect key.Binding
	Refresh key.Binding
	Copy    key.Binding
	Switch  key.Binding
	Submit  key.Binding
	Help    key.Binding
	Quit    key.Binding

	Approve key.Binding
	Decline key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Connect: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Copy:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy address")),
		Switch:  key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "deposit/withdraw")),
		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Approve: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "approve")),
		Decline: key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "reject")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Submit, k.Switch, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Refresh, k.Copy},
		{k.Submit, k.Switch},
		{k.Help, k.Quit},
	}
}

// modalKeys is the help shown while a wallet request is pending.
type modalKeys struct {
	keyMap
}

func (k modalKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Approve, k.Decline}
}

func (k modalKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
