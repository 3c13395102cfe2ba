package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrStoreClosed   = errors.New("Store is closed")
	ErrInvalidBackup = errors.New("Backup is not a valid JSON object")
)

// InmemoryStore keeps values in a single JSON document. Keys are used verbatim,
// dots in a key do not create nested objects.
type InmemoryStore struct {
	mu     sync.RWMutex
	values []byte

	// stop willl be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: []byte("{}"),
		stop:   make(chan struct{}),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.isRunning() {
		close(i.stop)
	}

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key string, value string) (err error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return ErrStoreClosed
	}

	values, err := sjson.SetBytes(i.values, escapeKey(key), value)
	if err != nil {
		return err
	}

	i.values = values
	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if !i.isRunning() {
		return "", false, ErrStoreClosed
	}

	result := gjson.GetBytes(i.values, escapeKey(key))
	if !result.Exists() {
		return "", false, nil
	}

	return result.String(), true, nil
}

func (i *InmemoryStore) Restore(values []byte) error {
	if len(values) == 0 {
		values = []byte("{}")
	}

	if !gjson.ValidBytes(values) || !gjson.ParseBytes(values).IsObject() {
		return ErrInvalidBackup
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

// escapeKey stops gjson/sjson from treating path syntax in key as nesting.
func escapeKey(key string) string {
	var b strings.Builder

	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteRune('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}

var _ Store = (*InmemoryStore)(nil)
