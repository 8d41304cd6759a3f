package application

import (
	"sync"

	"github.com/tdex-network/spentbook/internal/core/domain"
)

// keyedMutex serializes access per fingerprint. Locks of a multi-key request
// are always acquired in sorted order so that overlapping requests can't
// deadlock.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.Fingerprint]*refCountedMutex
}

type refCountedMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[domain.Fingerprint]*refCountedMutex)}
}

// Lock locks all given keys and returns the function to unlock them.
func (k *keyedMutex) Lock(keys []domain.Fingerprint) func() {
	sorted := domain.SortedFingerprints(keys)
	acquired := make([]*refCountedMutex, 0, len(sorted))
	for _, key := range sorted {
		l := k.get(key)
		l.Lock()
		acquired = append(acquired, l)
	}

	return func() {
		for i := len(sorted) - 1; i >= 0; i-- {
			acquired[i].Unlock()
			k.release(sorted[i])
		}
	}
}

func (k *keyedMutex) get(key domain.Fingerprint) *refCountedMutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &refCountedMutex{}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *keyedMutex) release(key domain.Fingerprint) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l := k.locks[key]
	l.refs--
	if l.refs <= 0 {
		delete(k.locks, key)
	}
}
