package automod

import (
	"testing"
	"time"

	"warden/internal/storage"
)

func spamSettings() storage.SpamSettings {
	return storage.SpamSettings{
		Enabled:             true,
		MessageLimit:        5,
		MessageDuration:     4,
		MessageDurationUnit: "s",
		MentionLimit:        5,
		DuplicateLimit:      3,
	}
}

func records(contents ...string) []messageRecord {
	now := time.Now()
	out := make([]messageRecord, len(contents))
	for i, content := range contents {
		out[i] = messageRecord{content: content, at: now}
	}
	return out
}

func TestSpamRateRule(t *testing.T) {
	settings := spamSettings()
	window := records("a", "b", "c", "d", "e", "f")

	verdict, ok := evaluateSpam(settings, window, window[len(window)-1])
	if !ok || verdict.rule != RuleRate {
		t.Fatalf("expected rate trigger, got %+v ok=%v", verdict, ok)
	}
	if !verdict.purge {
		t.Fatalf("rate trigger should purge recent messages")
	}

	// Exactly at the limit does not trigger.
	if _, ok := evaluateSpam(settings, window[:5], window[4]); ok {
		t.Fatalf("did not expect trigger at the limit")
	}
}

func TestSpamRateDisabledWhenLimitZero(t *testing.T) {
	settings := spamSettings()
	settings.MessageLimit = 0
	window := records("a", "b", "c", "d", "e", "f", "g", "h")
	if verdict, ok := evaluateSpam(settings, window, window[len(window)-1]); ok && verdict.rule == RuleRate {
		t.Fatalf("rate rule should be disabled with limit 0")
	}
}

func TestSpamMentionRule(t *testing.T) {
	settings := spamSettings()
	current := messageRecord{content: "hey everyone", mentions: 6, at: time.Now()}

	verdict, ok := evaluateSpam(settings, []messageRecord{current}, current)
	if !ok || verdict.rule != RuleMention {
		t.Fatalf("expected mention trigger, got %+v ok=%v", verdict, ok)
	}
	if verdict.purge {
		t.Fatalf("mention trigger should not purge")
	}

	current.mentions = 5
	if _, ok := evaluateSpam(settings, []messageRecord{current}, current); ok {
		t.Fatalf("did not expect trigger at the mention limit")
	}
}

func TestSpamDuplicateRule(t *testing.T) {
	settings := spamSettings()
	window := records("buy my stuff", "BUY my stuff", "buy MY stuff", "buy my STUFF")

	verdict, ok := evaluateSpam(settings, window, window[len(window)-1])
	if !ok || verdict.rule != RuleDuplicate {
		t.Fatalf("expected duplicate trigger, got %+v ok=%v", verdict, ok)
	}
	if !verdict.purge {
		t.Fatalf("duplicate trigger should purge")
	}
}

func TestSpamDuplicateIgnoresShortMessages(t *testing.T) {
	settings := spamSettings()
	window := records("ok", "ok", "ok", "ok", "ok")
	if _, ok := evaluateSpam(settings, window, window[len(window)-1]); ok {
		t.Fatalf("short messages should never count as duplicates")
	}
}

func TestSpamRuleOrder(t *testing.T) {
	// A burst that is both over the rate limit and full of duplicates
	// reports as rate, the first rule checked.
	settings := spamSettings()
	window := records("same message", "same message", "same message", "same message", "same message", "same message")

	verdict, ok := evaluateSpam(settings, window, window[len(window)-1])
	if !ok || verdict.rule != RuleRate {
		t.Fatalf("expected rate to win, got %+v", verdict)
	}
}

func TestSpamWindowUnits(t *testing.T) {
	settings := spamSettings()
	if got := spamWindow(settings); got != 4*time.Second {
		t.Fatalf("expected 4s window, got %s", got)
	}
	settings.MessageDurationUnit = "m"
	settings.MessageDuration = 2
	if got := spamWindow(settings); got != 2*time.Minute {
		t.Fatalf("expected 2m window, got %s", got)
	}
}

func TestWindowStorePruning(t *testing.T) {
	store := newWindowStore()
	base := time.Now()

	store.add("k", messageRecord{content: "old", at: base.Add(-10 * time.Second)}, 4*time.Second)
	window := store.add("k", messageRecord{content: "new", at: base}, 4*time.Second)
	if len(window) != 1 || window[0].content != "new" {
		t.Fatalf("expected old entry pruned, got %+v", window)
	}

	store.drop("k")
	if store.len() != 0 {
		t.Fatalf("expected drop to clear the key")
	}
}
