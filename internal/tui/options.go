package tui

import (
	"time"

	"github.com/evanschultz/weekgrid/internal/app"
)

type KeyConfig struct {
	Delete string
	Copy   string
	Yank   string
	Agenda string
	Quit   string
	Help   string
}

type Option func(*Model)

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

// WithDragThreshold sets how many cells the pointer travels before a press becomes a drag.
func WithDragThreshold(cells float64) Option {
	return func(m *Model) {
		if cells > 0 {
			m.dragThreshold = cells
		}
	}
}

// WithEditDelay sets the pause between creating a card and opening its editor.
func WithEditDelay(d time.Duration) Option {
	return func(m *Model) {
		if d >= 0 {
			m.editDelay = d
		}
	}
}

func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.writeClipboard = write
		}
	}
}

func WithLogger(logger app.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithTitle(title string) Option {
	return func(m *Model) {
		m.title = title
	}
}
