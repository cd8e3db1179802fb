package automod

import "regexp"

var inviteRegex = regexp.MustCompile(`(?i)(discord\.(gg|io|me|li)|discord(app)?\.com/invite)/[a-zA-Z0-9-]+`)

func containsInvite(content string) bool {
	return inviteRegex.MatchString(content)
}
