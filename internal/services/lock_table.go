package services

import "sync"

// LockTable provides per-key mutual exclusion. Entries are reference-counted
// so a lot that stopped receiving bids does not leak a mutex forever. One
// table is shared by the bid path and the lifecycle operations so a timer
// firing mid-bid waits its turn.
type LockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewLockTable() *LockTable {
	return &LockTable{entries: make(map[string]*lockEntry)}
}

// lotLockKey is the serialization key for everything that reads-then-writes
// one lot's auction state.
func lotLockKey(listingID, lotID string) string {
	return listingID + ":" + lotID
}

// Acquire blocks until the key's lock is held and returns the release func.
func (t *LockTable) Acquire(key string) func() {
	t.mu.Lock()
	entry, ok := t.entries[key]
	if !ok {
		entry = &lockEntry{}
		t.entries[key] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.entries, key)
		}
		t.mu.Unlock()
	}
}
