package automod

import "warden/internal/storage"

// inScope reports whether a rule applies in the channel. SpecificChannels is
// an exclusion list checked against both the channel and its parent
// category. With AllChannels false and no exclusions configured the rule
// applies nowhere.
func inScope(scope storage.ChannelScope, channelID, parentID string) bool {
	if scope.AllChannels {
		return true
	}
	if len(scope.SpecificChannels) == 0 {
		return false
	}
	for _, id := range scope.SpecificChannels {
		if id == channelID || (parentID != "" && id == parentID) {
			return false
		}
	}
	return true
}
