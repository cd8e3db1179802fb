package moderation

import (
	"testing"
	"time"

	"warden/internal/storage"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestLimiterRollingWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	limiter := NewLimiter()
	limiter.WithClock(clock)

	limits := storage.ActionLimits{Enabled: true, Warn: 2, Period: "1m"}

	if !limiter.Allow("g", "staff", storage.PunishmentWarn, limits) {
		t.Fatalf("first warn should pass")
	}
	if !limiter.Allow("g", "staff", storage.PunishmentWarn, limits) {
		t.Fatalf("second warn should pass")
	}
	if limiter.Allow("g", "staff", storage.PunishmentWarn, limits) {
		t.Fatalf("third warn inside the window should be blocked")
	}

	// Other action types and other staff are counted separately.
	if !limiter.Allow("g", "staff", storage.PunishmentKick, storage.ActionLimits{Enabled: true, Kick: 1, Period: "1m"}) {
		t.Fatalf("kick counter must be independent")
	}
	if !limiter.Allow("g", "other", storage.PunishmentWarn, limits) {
		t.Fatalf("other staff must have their own counter")
	}

	clock.now = clock.now.Add(61 * time.Second)
	if !limiter.Allow("g", "staff", storage.PunishmentWarn, limits) {
		t.Fatalf("warn should pass after the window rolled over")
	}
}

func TestLimiterDisabledConfigurations(t *testing.T) {
	limiter := NewLimiter()

	disabled := storage.ActionLimits{Enabled: false, Warn: 1, Period: "1m"}
	for i := 0; i < 5; i++ {
		if !limiter.Allow("g", "s", storage.PunishmentWarn, disabled) {
			t.Fatalf("disabled limits must never block")
		}
	}

	zeroMax := storage.ActionLimits{Enabled: true, Warn: 0, Period: "1m"}
	if !limiter.Allow("g", "s", storage.PunishmentWarn, zeroMax) {
		t.Fatalf("a zero max disables the check")
	}

	badPeriod := storage.ActionLimits{Enabled: true, Warn: 1, Period: "soon"}
	for i := 0; i < 3; i++ {
		if !limiter.Allow("g", "s", storage.PunishmentWarn, badPeriod) {
			t.Fatalf("an unparseable period disables the check")
		}
	}
}
