// ABOUTME: Reference-counted per-key mutexes
// ABOUTME: Serializes work on one session without a global lock

package store

import "sync"

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is held and returns the unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// TryLock takes key only if nobody holds or waits for it.
func (k *keyedMutex) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	if _, busy := k.locks[key]; busy {
		k.mu.Unlock()
		return nil, false
	}
	l := &keyLock{refs: 1}
	l.mu.Lock()
	k.locks[key] = l
	k.mu.Unlock()

	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}, true
}
