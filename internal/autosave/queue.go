package autosave

import "sync"

// keyedQueue serializes work per key. Draft writes for one owner id go
// through the same lock, so a read-merge-write round trip can never interleave
// with another writer on the same key.
type keyedQueue struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedQueue() *keyedQueue {
	return &keyedQueue{locks: make(map[string]*sync.Mutex)}
}

func (q *keyedQueue) Do(key string, fn func()) {
	q.mu.Lock()
	lock, ok := q.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		q.locks[key] = lock
	}
	q.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	fn()
}
