package storage

import "errors"

var (
	ErrNotFound       = errors.New("storage: not found")
	ErrConflict       = errors.New("storage: register was modified concurrently")
	ErrDuplicateEntry = errors.New("storage: entry with this idempotency key already exists")
)
