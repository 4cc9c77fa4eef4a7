package orchestrator

import (
	"sort"
	"sync"
)

// keyedMutex hands out one mutex per logical resource key, so a
// stylist's calendar and an unrelated SKU never contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock acquires the mutex for one key and returns its unlock.
func (k *keyedMutex) Lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}

// LockAll acquires several keys in sorted order, the usual deadlock
// dodge when two checkouts share a subset of SKUs.
func (k *keyedMutex) LockAll(keys []string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		uniq = append(uniq, key)
	}
	sort.Strings(uniq)

	ms := make([]*sync.Mutex, len(uniq))
	for i, key := range uniq {
		ms[i] = k.get(key)
		ms[i].Lock()
	}
	return func() {
		for i := len(ms) - 1; i >= 0; i-- {
			ms[i].Unlock()
		}
	}
}
