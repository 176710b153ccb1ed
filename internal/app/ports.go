package app

import "context"

// BlobStore persists one opaque blob per key.
type BlobStore interface {
	// Load returns ErrNotFound when nothing has been saved under key.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
}

// Logger receives store lifecycle and mutation events.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
}

// nopLogger discards all events.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
