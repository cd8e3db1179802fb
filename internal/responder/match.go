package responder

import (
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/internal/storage"
)

// matches applies the response's matching mode. Wildcard patterns use * as a
// free-form gap; exact match compares the whole message; the default is a
// substring check.
func matches(resp storage.AutoResponse, content string) bool {
	trigger := resp.Trigger
	if !resp.Settings.CaseSensitive {
		trigger = strings.ToLower(trigger)
		content = strings.ToLower(content)
	}

	switch {
	case resp.Settings.WildcardMatching && strings.Contains(trigger, "*"):
		return wildcardMatch(trigger, content)
	case resp.Settings.ExactMatch:
		return content == trigger
	default:
		return strings.Contains(content, trigger)
	}
}

func wildcardMatch(pattern, content string) bool {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile("^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return false
	}
	return re.MatchString(content)
}

// channelAllowed honors the whitelist when present, otherwise the blacklist.
func channelAllowed(settings storage.AutoResponseSettings, channelID string) bool {
	if len(settings.WhitelistedChannels) > 0 {
		for _, id := range settings.WhitelistedChannels {
			if id == channelID {
				return true
			}
		}
		return false
	}
	for _, id := range settings.BlacklistedChannels {
		if id == channelID {
			return false
		}
	}
	return true
}

var variablePattern = regexp.MustCompile(`\{(user|username|server|channel)\}`)

func substituteVariables(text string, msg *discordgo.MessageCreate, guildName string) string {
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		switch match {
		case "{user}":
			return "<@" + msg.Author.ID + ">"
		case "{username}":
			return msg.Author.Username
		case "{server}":
			return guildName
		case "{channel}":
			return "<#" + msg.ChannelID + ">"
		default:
			return match
		}
	})
}

func buildEmbed(spec storage.EmbedSpec, msg *discordgo.MessageCreate, guildName string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       substituteVariables(spec.Title, msg, guildName),
		Description: substituteVariables(spec.Description, msg, guildName),
		Color:       spec.Color,
	}
	if spec.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: substituteVariables(spec.Footer, msg, guildName)}
	}
	if spec.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: spec.Thumbnail}
	}
	if spec.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: spec.Image}
	}
	if spec.Timestamp {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}
	return embed
}
