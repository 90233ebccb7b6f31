package engine

import "sync"

// instanceLocks hands out one advisory mutex per instance id. Entries are
// refcounted so the map does not grow with every instance ever processed.
type instanceLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{entries: make(map[string]*lockEntry)}
}

func (l *instanceLocks) Lock(instanceID string) {
	l.mu.Lock()
	entry, ok := l.entries[instanceID]
	if !ok {
		entry = &lockEntry{}
		l.entries[instanceID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *instanceLocks) Unlock(instanceID string) {
	l.mu.Lock()
	entry, ok := l.entries[instanceID]
	if ok {
		entry.refs--
		if entry.refs <= 0 {
			delete(l.entries, instanceID)
		}
	}
	l.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
