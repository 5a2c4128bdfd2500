package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// MemoryStore is a small in-memory key-value cache with expiration
type MemoryStore[V any] struct {
	mu    sync.RWMutex
	items map[string]*memoryItem[V]
	clock clock.Clock
	stop  chan struct{}
	once  sync.Once
}

type memoryItem[V any] struct {
	value      V
	expireTime time.Time
}

// NewMemoryStore creates a new in-memory store and starts its cleanup loop
func NewMemoryStore[V any](clk clock.Clock, cleanupEvery time.Duration) *MemoryStore[V] {
	if clk == nil {
		clk = clock.New()
	}
	store := &MemoryStore[V]{
		items: make(map[string]*memoryItem[V]),
		clock: clk,
		stop:  make(chan struct{}),
	}

	if cleanupEvery > 0 {
		go store.cleanupExpired(cleanupEvery)
	}

	return store
}

// Set stores a value with expiration
func (ms *MemoryStore[V]) Set(key string, value V, expiration time.Duration) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.items[key] = &memoryItem[V]{
		value:      value,
		expireTime: ms.clock.Now().Add(expiration),
	}
}

// Get retrieves a value by key; ok is false if missing or expired
func (ms *MemoryStore[V]) Get(key string) (value V, ok bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	item, exists := ms.items[key]
	if !exists || ms.clock.Now().After(item.expireTime) {
		return value, false
	}
	return item.value, true
}

// Delete removes a key
func (ms *MemoryStore[V]) Delete(key string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.items, key)
}

// Len returns the number of stored entries, expired ones included
func (ms *MemoryStore[V]) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.items)
}

// Close stops the cleanup loop
func (ms *MemoryStore[V]) Close() {
	ms.once.Do(func() { close(ms.stop) })
}

// cleanupExpired periodically removes expired items
func (ms *MemoryStore[V]) cleanupExpired(every time.Duration) {
	ticker := ms.clock.Ticker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ms.stop:
			return
		case <-ticker.C:
			ms.purge()
		}
	}
}

func (ms *MemoryStore[V]) purge() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.clock.Now()
	for key, item := range ms.items {
		if now.After(item.expireTime) {
			delete(ms.items, key)
		}
	}
}
