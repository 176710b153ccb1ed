package interact

import "context"

// Shortcut names a view-scoped keyboard action.
type Shortcut int

// Shortcut values.
const (
	ShortcutDelete Shortcut = iota + 1
	ShortcutCopy
)

// String returns the shortcut name.
func (s Shortcut) String() string {
	switch s {
	case ShortcutDelete:
		return "delete"
	case ShortcutCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// Handler runs one shortcut.
type Handler func(ctx context.Context) error

// Subscriptions owns the handlers a view registers while it is open.
// Nothing dispatches once the view detaches.
type Subscriptions struct {
	handlers map[Shortcut]Handler
}

// NewSubscriptions returns a detached subscription set.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{}
}

// Attach registers handlers, replacing any previous registration.
func (s *Subscriptions) Attach(handlers map[Shortcut]Handler) {
	s.handlers = make(map[Shortcut]Handler, len(handlers))
	for sc, h := range handlers {
		if h != nil {
			s.handlers[sc] = h
		}
	}
}

// Detach drops every handler.
func (s *Subscriptions) Detach() {
	s.handlers = nil
}

// Attached reports whether handlers are registered.
func (s *Subscriptions) Attached() bool {
	return s.handlers != nil
}

// Dispatch runs the handler bound to sc. It reports false when detached or unbound.
func (s *Subscriptions) Dispatch(ctx context.Context, sc Shortcut) (bool, error) {
	h, ok := s.handlers[sc]
	if !ok {
		return false, nil
	}
	return true, h(ctx)
}
