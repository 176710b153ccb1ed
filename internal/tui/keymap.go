package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	toggleHelp key.Binding
	deleteCard key.Binding
	copyCard   key.Binding
	yankText   key.Binding
	agenda     key.Binding
	closeMenu  key.Binding
	commitEdit key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		deleteCard: key.NewBinding(key.WithKeys("delete"), key.WithHelp("delete", "delete card")),
		copyCard:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "copy card")),
		yankText:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yank text")),
		agenda:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "week agenda")),
		closeMenu:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		commitEdit: key.NewBinding(key.WithKeys("enter", "esc"), key.WithHelp("enter/esc", "finish edit")),
	}
}

// applyConfig overrides configurable bindings.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.deleteCard, cfg.Delete, "delete", "delete card")
	configureBinding(&k.copyCard, cfg.Copy, "ctrl+c", "copy card")
	configureBinding(&k.yankText, cfg.Yank, "y", "yank text")
	configureBinding(&k.agenda, cfg.Agenda, "a", "week agenda")
	configureBinding(&k.quit, cfg.Quit, "q", "quit")
	configureBinding(&k.toggleHelp, cfg.Help, "?", "toggle help")
}

// configureBinding replaces a binding's keys and help from a configured value.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys parses a comma-separated binding into key matchers and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	keys := make([]string, 0, 2)
	helps := make([]string, 0, 1)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		helps = append(helps, part)
		switch {
		case strings.EqualFold(part, "space"):
			keys = append(keys, " ", "space")
		case utf8.RuneCountInString(part) == 1:
			r, _ := utf8.DecodeRuneInString(part)
			keys = append(keys, part)
			if unicode.IsUpper(r) {
				keys = append(keys, "shift+"+string(unicode.ToLower(r)))
			}
		default:
			keys = append(keys, strings.ToLower(part))
		}
	}
	if len(keys) == 0 {
		return []string{fallback}, fallback
	}
	return keys, strings.Join(helps, "/")
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.deleteCard, k.copyCard, k.yankText, k.agenda, k.toggleHelp, k.quit}
}

// FullHelp returns the bindings shown in the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.deleteCard, k.copyCard, k.yankText},
		{k.agenda, k.closeMenu, k.commitEdit},
		{k.toggleHelp, k.quit},
	}
}
