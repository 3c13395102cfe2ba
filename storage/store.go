package storage

import "context"

// Store persists small string values across process restarts. Courage uses it
// to remember the identity of this device.
type Store interface {
	// Get returns the value stored under key. ok is false if there is none.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error

	Restore(values []byte) error
	Backup() ([]byte, error)

	Close() error
}
