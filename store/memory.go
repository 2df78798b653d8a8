package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store. It backs unit tests and doubles as the
// reference semantics for the durable media.
type Memory struct {
	mu    sync.RWMutex
	data  map[string]map[string][]byte // kind -> id -> value
	locks *keyLocks

	failWrite error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:  make(map[string]map[string][]byte),
		locks: newKeyLocks(),
	}
}

func (m *Memory) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, found := m.data[key.Kind][key.ID()]
	if !found {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *Memory) Put(ctx context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return opError("put", key, m.failWrite)
	}
	m.set(key, value)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return opError("delete", key, m.failWrite)
	}
	delete(m.data[key.Kind], key.ID())
	return nil
}

func (m *Memory) Mutate(ctx context.Context, key Key, fn MutateFunc) error {
	release := m.locks.lock(key.String())
	defer release()

	current, found, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(current, found)
	if err == Skip {
		return nil
	}
	if err != nil {
		return err
	}
	if next == nil {
		return m.Delete(ctx, key)
	}
	return m.Put(ctx, key, next)
}

func (m *Memory) MutateMany(ctx context.Context, keys []Key, fn MutateManyFunc) error {
	if err := distinctKeys(keys); err != nil {
		return opError("mutate-many", Key{}, err)
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.String()
	}
	release := m.locks.lockAll(ids)
	defer release()

	current := make([][]byte, len(keys))
	found := make([]bool, len(keys))
	for i, k := range keys {
		current[i], found[i], _ = m.Get(ctx, k)
	}
	next, err := fn(current, found)
	if err == Skip {
		return nil
	}
	if err != nil {
		return err
	}

	// All writes land under one lock so readers never see a partial batch.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite != nil {
		return opError("mutate-many", keys[0], m.failWrite)
	}
	for i, k := range keys {
		if next[i] == nil {
			delete(m.data[k.Kind], k.ID())
			continue
		}
		m.set(k, next[i])
	}
	return nil
}

func (m *Memory) List(ctx context.Context, kind string, prefix ...string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []Entry
	for id, value := range m.data[kind] {
		if !matchesPrefix(id, prefix) {
			continue
		}
		out := make([]byte, len(value))
		copy(out, value)
		entries = append(entries, Entry{
			Key:   Key{Kind: kind, Parts: splitID(id)},
			Value: out,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.ID() < entries[j].Key.ID()
	})
	return entries, nil
}

func (m *Memory) Close() error {
	return nil
}

// set writes value under key; callers hold m.mu.
func (m *Memory) set(key Key, value []byte) {
	kindMap, ok := m.data[key.Kind]
	if !ok {
		kindMap = make(map[string][]byte)
		m.data[key.Kind] = kindMap
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	kindMap[key.ID()] = stored
}
