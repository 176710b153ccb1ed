package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound = errors.New("not found")
	ErrPersist  = errors.New("persist cards")
)
