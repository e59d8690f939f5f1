package ui

import (
	"github.com/bborn/taskform/internal/config"
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the dialog's key bindings.
type KeyMap struct {
	Submit          key.Binding
	Cancel          key.Binding
	ToggleAutoStart key.Binding
	NextField       key.Binding
	PrevField       key.Binding
	Preview         key.Binding
	RemoveImage     key.Binding
	Left            key.Binding
	Right           key.Binding
}

// ShortHelp returns key bindings to show in the help line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Left, k.Submit, k.ToggleAutoStart, k.Preview, k.Cancel}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextField, k.PrevField, k.Left, k.Right},
		{k.Submit, k.ToggleAutoStart, k.Preview},
		{k.RemoveImage, k.Cancel},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "submit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "cancel"),
		),
		ToggleAutoStart: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("ctrl+a", "auto-start"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev field"),
		),
		Preview: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "preview"),
		),
		RemoveImage: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "remove image"),
		),
		Left: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←→", "select"),
		),
		Right: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "next option"),
		),
	}
}

// ApplyKeybindingsConfig overrides km with the bindings set in cfg.
// A nil cfg or an entry without keys leaves the default in place.
func ApplyKeybindingsConfig(km KeyMap, cfg *config.KeybindingsConfig) KeyMap {
	if cfg == nil {
		return km
	}
	km.Submit = applyBinding(km.Submit, cfg.Submit)
	km.Cancel = applyBinding(km.Cancel, cfg.Cancel)
	km.ToggleAutoStart = applyBinding(km.ToggleAutoStart, cfg.ToggleAutoStart)
	km.NextField = applyBinding(km.NextField, cfg.NextField)
	km.PrevField = applyBinding(km.PrevField, cfg.PrevField)
	km.Preview = applyBinding(km.Preview, cfg.Preview)
	km.RemoveImage = applyBinding(km.RemoveImage, cfg.RemoveImage)
	return km
}

func applyBinding(b key.Binding, kc *config.KeybindingConfig) key.Binding {
	if kc == nil || len(kc.Keys) == 0 {
		return b
	}
	help := kc.Help
	if help == "" {
		help = b.Help().Desc
	}
	return key.NewBinding(
		key.WithKeys(kc.Keys...),
		key.WithHelp(kc.Keys[0], help),
	)
}
