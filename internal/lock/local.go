package lock

import (
	"context"
	"sync"
)

// KeyedMutex is an in-process Locker. Entries are reference counted and
// removed once no goroutine holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	m.mu.Lock()
	entry, ok := m.locks[key]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, entry, false)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(key, entry, true) })
	}, nil
}

func (m *KeyedMutex) release(key string, entry *keyedEntry, held bool) {
	if held {
		<-entry.ch
	}
	m.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

func (m *KeyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
