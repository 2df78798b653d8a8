package store

// SetFailWrite makes every following write on the in-memory store fail with
// err, for exercising the write-failure path. Pass nil to heal it.
func (m *Memory) SetFailWrite(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = err
}
