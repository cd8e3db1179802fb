package automod

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type messageRecord struct {
	messageID string
	content   string
	mentions  int
	at        time.Time
}

// windowStore keeps the recent messages of each author, keyed
// "guildID:userID". Entries older than the rule's window are pruned on every
// append.
type windowStore struct {
	mu      sync.Mutex
	entries map[string][]messageRecord
}

func newWindowStore() *windowStore {
	return &windowStore{entries: make(map[string][]messageRecord)}
}

// add appends the record, prunes anything outside the window and returns a
// snapshot of what remains.
func (w *windowStore) add(key string, record messageRecord, window time.Duration) []messageRecord {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := record.at.Add(-window)
	kept := w.entries[key][:0]
	for _, item := range w.entries[key] {
		if item.at.After(cutoff) {
			kept = append(kept, item)
		}
	}
	kept = append(kept, record)
	w.entries[key] = kept

	snapshot := make([]messageRecord, len(kept))
	copy(snapshot, kept)
	return snapshot
}

// drop clears an author's window after a trigger so the next message starts
// a fresh count.
func (w *windowStore) drop(key string) {
	w.mu.Lock()
	delete(w.entries, key)
	w.mu.Unlock()
}

func (w *windowStore) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
