package database

import (
	"fmt"
	"sort"
	"sync"
)

// keyedMutex serializes writers per resource key. sqlite gives the
// transaction atomicity, the keyed mutex gives the row-scoped exclusive
// section on top of it, so adjustments on one tour (or one wallet pair)
// queue up while unrelated rows proceed in parallel.
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

// Lock acquires the mutex for key and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}

// LockAll acquires every key in sorted order to keep lock acquisition
// deadlock-free when an operation spans two wallets.
func (k *keyedMutex) LockAll(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, key := range sorted {
		if seen[key] {
			continue
		}
		seen[key] = true
		unlocks = append(unlocks, k.Lock(key))
	}

	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func tourKey(tourID int64) string {
	return fmt.Sprintf("tour:%d", tourID)
}

func walletKey(walletID int64) string {
	return fmt.Sprintf("wallet:%d", walletID)
}
