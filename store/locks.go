package store

import (
	"sort"
	"sync"
)

// keyLocks serializes mutations per record key. Locks are created on first
// use and dropped once no caller holds or waits on them, so the registry
// stays proportional to in-flight work rather than total keys ever seen.
type keyLocks struct {
	mu   sync.Mutex
	held map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{held: make(map[string]*keyLock)}
}

// lock acquires the lock for id and returns its release func.
func (l *keyLocks) lock(id string) func() {
	l.mu.Lock()
	kl, ok := l.held[id]
	if !ok {
		kl = &keyLock{}
		l.held[id] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}

// lockAll acquires every id in sorted order, which keeps concurrent
// multi-key mutations (opposing transfers, most commonly) from deadlocking.
func (l *keyLocks) lockAll(ids []string) func() {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	releases := make([]func(), 0, len(sorted))
	for _, id := range sorted {
		releases = append(releases, l.lock(id))
	}
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}
