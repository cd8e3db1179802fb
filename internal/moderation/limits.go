package moderation

import (
	"sync"
	"time"

	"warden/internal/storage"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Limiter tracks how many punishments each staff member has issued inside
// their role's rolling period. Counts live in memory only; a restart resets
// them, which matches how the limits are meant to catch bursts.
type Limiter struct {
	mu    sync.Mutex
	clock Clock
	hits  map[string][]time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{clock: realClock{}, hits: make(map[string][]time.Time)}
}

func (l *Limiter) WithClock(clock Clock) {
	l.mu.Lock()
	l.clock = clock
	l.mu.Unlock()
}

// Allow records one action and reports whether the staff member is still
// inside their limit. A zero or unparseable period disables the check.
func (l *Limiter) Allow(guildID, staffID, actionType string, limits storage.ActionLimits) bool {
	if !limits.Enabled {
		return true
	}
	max := limitFor(actionType, limits)
	if max <= 0 {
		return true
	}
	period, err := time.ParseDuration(limits.Period)
	if err != nil || period <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := guildID + ":" + staffID + ":" + actionType
	now := l.clock.Now()
	cutoff := now.Add(-period)

	kept := l.hits[key][:0]
	for _, hit := range l.hits[key] {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	if len(kept) >= max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

func limitFor(actionType string, limits storage.ActionLimits) int {
	switch actionType {
	case storage.PunishmentWarn:
		return limits.Warn
	case storage.PunishmentKick:
		return limits.Kick
	case storage.PunishmentBan:
		return limits.Ban
	case storage.PunishmentTimeout:
		return limits.Timeout
	default:
		return 0
	}
}
