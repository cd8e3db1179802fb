package automod

import (
	"sync"
	"time"
)

const markerCooldown = 5 * time.Second

// Markers deduplicate enforcement per user and category. TryAcquire is an
// atomic test-and-set: the first trigger wins and further triggers are
// ignored until the marker is released after the cooldown.
type Markers struct {
	mu  sync.Mutex
	set map[string]struct{}

	// releaseAfter is swapped in tests to release synchronously.
	releaseAfter func(key string, m *Markers)
}

func NewMarkers() *Markers {
	return &Markers{
		set: make(map[string]struct{}),
		releaseAfter: func(key string, m *Markers) {
			time.AfterFunc(markerCooldown, func() { m.Release(key) })
		},
	}
}

func (m *Markers) TryAcquire(key string) bool {
	m.mu.Lock()
	if _, held := m.set[key]; held {
		m.mu.Unlock()
		return false
	}
	m.set[key] = struct{}{}
	m.mu.Unlock()

	m.releaseAfter(key, m)
	return true
}

func (m *Markers) Release(key string) {
	m.mu.Lock()
	delete(m.set, key)
	m.mu.Unlock()
}

func (m *Markers) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.set[key]
	return held
}
