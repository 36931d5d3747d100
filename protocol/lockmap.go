package protocol

import "sync"

// A lockMap hands out one mutex per string key. Entries are never
// reclaimed; the key space (identity ids, phrase hashes) is small
// and bounded by the number of records.
type lockMap struct {
	mu    *sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockMap() lockMap {
	return lockMap{mu: new(sync.Mutex), locks: make(map[string]*sync.Mutex)}
}

func (lm lockMap) lock(key string) {
	lm.mu.Lock()
	l, ok := lm.locks[key]
	if !ok {
		l = new(sync.Mutex)
		lm.locks[key] = l
	}
	lm.mu.Unlock()
	l.Lock()
}

func (lm lockMap) unlock(key string) {
	lm.mu.Lock()
	l := lm.locks[key]
	lm.mu.Unlock()
	l.Unlock()
}
