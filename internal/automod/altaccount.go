package automod

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/internal/storage"
)

// checkAccountAge flags accounts created more recently than the configured
// minimum. Creation time comes from the user ID snowflake.
func checkAccountAge(userID string, settings storage.AltPreventionSettings, now time.Time) (Trigger, bool) {
	if settings.AccountAgeDays <= 0 {
		return Trigger{}, false
	}
	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return Trigger{}, false
	}
	minAge := time.Duration(settings.AccountAgeDays) * 24 * time.Hour
	age := now.Sub(created)
	if age >= minAge {
		return Trigger{}, false
	}
	return Trigger{
		Category: CategoryAltAccount,
		Rule:     RuleAccountAge,
		Reason:   fmt.Sprintf("Account age %s is below the %d day minimum", age.Round(time.Hour), settings.AccountAgeDays),
		Actions:  settings.Actions,
	}, true
}
