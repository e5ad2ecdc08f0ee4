package cache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// ttlMap is a process-local map whose entries expire. Expired entries are
// dropped when read and, with a non-zero sweep interval, by a background loop
// that runs until close.
type ttlMap[V any] struct {
	mu      sync.Mutex
	entries map[string]ttlEntry[V]
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newTTLMap[V any](sweepEvery time.Duration) *ttlMap[V] {
	m := &ttlMap[V]{
		entries: make(map[string]ttlEntry[V]),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweepEvery <= 0 {
		close(m.done)
		return m
	}
	go m.sweepLoop(sweepEvery)
	return m
}

// get returns the live value for key
func (m *ttlMap[V]) get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if ok && m.now().Before(e.expiresAt) {
		return e.value, true
	}
	if ok {
		delete(m.entries, key)
	}
	var zero V
	return zero, false
}

func (m *ttlMap[V]) put(key string, v V, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = ttlEntry[V]{value: v, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

// putIfAbsent stores v unless a live entry exists and reports whether it stored
func (m *ttlMap[V]) putIfAbsent(key string, v V, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		return false
	}
	m.entries[key] = ttlEntry[V]{value: v, expiresAt: now.Add(ttl)}
	return true
}

func (m *ttlMap[V]) delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *ttlMap[V]) reset() {
	m.mu.Lock()
	m.entries = make(map[string]ttlEntry[V])
	m.mu.Unlock()
}

// len counts stored entries, expired ones not yet swept included
func (m *ttlMap[V]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *ttlMap[V]) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

func (m *ttlMap[V]) sweepLoop(every time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// close stops the sweeper and waits for it. It is idempotent.
func (m *ttlMap[V]) close() {
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.done
}
