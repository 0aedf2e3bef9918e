// Package lock provides a keyed mutual-exclusion primitive used to
// serialize finalization attempts on the same reservation.  Each key maps
// to an independent lock; holders of different keys never block each
// other.  Entries are reference counted and removed once the last waiter
// releases, so the registry stays bounded even with a large keyspace.
package lock

import (
    "context"
    "sync"
)

// entry is a single keyed lock.  The semaphore channel has capacity one;
// holding the token means holding the lock.  waiters counts the holder
// plus everyone blocked in Acquire so the registry knows when the entry
// can be dropped.
type entry struct {
    sem     chan struct{}
    waiters int
}

// Manager hands out per-key exclusive locks.  The zero value is not
// usable; construct with NewManager.
type Manager struct {
    mu      sync.Mutex
    entries map[uint64]*entry
}

// NewManager returns an empty lock registry.
func NewManager() *Manager {
    return &Manager{entries: make(map[uint64]*entry)}
}

// Acquire blocks until the exclusive lock for key is held or ctx is
// cancelled.  On success it returns a release function which must be
// called exactly once.  The lock itself never times out; callers impose
// deadlines through ctx.
func (m *Manager) Acquire(ctx context.Context, key uint64) (func(), error) {
    m.mu.Lock()
    e, ok := m.entries[key]
    if !ok {
        e = &entry{sem: make(chan struct{}, 1)}
        m.entries[key] = e
    }
    e.waiters++
    m.mu.Unlock()

    select {
    case e.sem <- struct{}{}:
        release := func() {
            <-e.sem
            m.drop(key, e)
        }
        return release, nil
    case <-ctx.Done():
        m.drop(key, e)
        return nil, ctx.Err()
    }
}

// drop decrements the waiter count for an entry and deletes it from the
// registry once nobody holds or waits on it.
func (m *Manager) drop(key uint64, e *entry) {
    m.mu.Lock()
    e.waiters--
    if e.waiters == 0 {
        delete(m.entries, key)
    }
    m.mu.Unlock()
}

// Len reports how many keys currently have a live entry.  Exposed for
// tests and metrics.
func (m *Manager) Len() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return len(m.entries)
}
