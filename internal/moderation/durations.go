package moderation

import (
	"fmt"
	"time"
)

const (
	minTimeout = 10 * time.Second
	maxTimeout = 28 * 24 * time.Hour
)

// ParseBanDuration accepts days, weeks or months (treated as 30 days).
func ParseBanDuration(amount int, unit string) (time.Duration, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("ban duration must be positive, got %d", amount)
	}
	switch unit {
	case "d":
		return time.Duration(amount) * 24 * time.Hour, nil
	case "w":
		return time.Duration(amount) * 7 * 24 * time.Hour, nil
	case "m":
		return time.Duration(amount) * 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown ban duration unit %q", unit)
	}
}

// ParseTimeoutDuration accepts minutes, hours or days and clamps the result
// to the bounds Discord enforces for communication timeouts.
func ParseTimeoutDuration(amount int, unit string) (time.Duration, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("timeout duration must be positive, got %d", amount)
	}
	var d time.Duration
	switch unit {
	case "m":
		d = time.Duration(amount) * time.Minute
	case "h":
		d = time.Duration(amount) * time.Hour
	case "d":
		d = time.Duration(amount) * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown timeout duration unit %q", unit)
	}
	if d < minTimeout {
		d = minTimeout
	}
	if d > maxTimeout {
		d = maxTimeout
	}
	return d, nil
}

// FormatBanDuration and FormatTimeoutDuration render the human label stored
// alongside a punishment. The unit letters overlap ("m" is months for bans,
// minutes for timeouts) so each action type has its own formatter.
func FormatBanDuration(amount int, unit string) string {
	return formatDuration(amount, unit, map[string]string{"d": "day", "w": "week", "m": "month"})
}

func FormatTimeoutDuration(amount int, unit string) string {
	return formatDuration(amount, unit, map[string]string{"m": "minute", "h": "hour", "d": "day"})
}

func formatDuration(amount int, unit string, names map[string]string) string {
	name, ok := names[unit]
	if !ok {
		name = unit
	}
	if amount == 1 {
		return "1 " + name
	}
	return fmt.Sprintf("%d %ss", amount, name)
}
