package automod

import (
	"fmt"
	"strings"
	"time"

	"warden/internal/storage"
)

// Duplicate detection ignores very short messages; "ok" three times in a row
// is not spam.
const duplicateMinLength = 5

type spamVerdict struct {
	rule   Rule
	reason string
	purge  bool
}

func spamWindow(settings storage.SpamSettings) time.Duration {
	unit := time.Second
	if settings.MessageDurationUnit == "m" {
		unit = time.Minute
	}
	duration := settings.MessageDuration
	if duration <= 0 {
		duration = 4
	}
	return time.Duration(duration) * unit
}

// evaluateSpam checks the three spam rules in a fixed order and returns the
// first that fires. The window already includes the current message.
func evaluateSpam(settings storage.SpamSettings, window []messageRecord, current messageRecord) (spamVerdict, bool) {
	if settings.MessageLimit > 0 && len(window) > settings.MessageLimit {
		return spamVerdict{
			rule:   RuleRate,
			reason: fmt.Sprintf("Sending messages too quickly (%d in %s)", len(window), spamWindow(settings)),
			purge:  true,
		}, true
	}

	if settings.MentionLimit > 0 && current.mentions > settings.MentionLimit {
		return spamVerdict{
			rule:   RuleMention,
			reason: fmt.Sprintf("Mass mentions (%d in one message)", current.mentions),
		}, true
	}

	if settings.DuplicateLimit > 0 && len(current.content) > duplicateMinLength {
		target := strings.ToLower(current.content)
		count := 0
		for _, record := range window {
			if strings.ToLower(record.content) == target {
				count++
			}
		}
		if count > settings.DuplicateLimit {
			return spamVerdict{
				rule:   RuleDuplicate,
				reason: fmt.Sprintf("Repeating the same message (%d times)", count),
				purge:  true,
			}, true
		}
	}

	return spamVerdict{}, false
}
