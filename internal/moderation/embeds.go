package moderation

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/internal/storage"
)

const (
	colorWarn    = 0xFEE75C
	colorKick    = 0xE67E22
	colorBan     = 0xED4245
	colorTimeout = 0x5865F2
)

func actionColor(actionType string) int {
	switch actionType {
	case storage.PunishmentWarn:
		return colorWarn
	case storage.PunishmentKick:
		return colorKick
	case storage.PunishmentBan:
		return colorBan
	case storage.PunishmentTimeout:
		return colorTimeout
	default:
		return colorWarn
	}
}

func buildCaseEmbed(p storage.Punishment) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: "<@" + p.UserID + ">", Inline: true},
		{Name: "Action", Value: p.Type, Inline: true},
		{Name: "Case", Value: p.PunishmentID, Inline: true},
		{Name: "Reason", Value: valueOr(p.Reason, "No reason specified."), Inline: false},
	}
	if p.Duration != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: p.Duration, Inline: true})
	}
	if p.StaffID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Staff", Value: "<@" + p.StaffID + ">", Inline: true})
	}
	return &discordgo.MessageEmbed{
		Title:     p.Type + " issued",
		Color:     actionColor(p.Type),
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: "Case " + p.PunishmentID},
		Timestamp: p.CreatedAt.Format(time.RFC3339),
	}
}

func buildDMEmbed(actionType, reason, punishmentID, duration, appealURL string) *discordgo.MessageEmbed {
	description := "You received a " + actionType + "."
	fields := []*discordgo.MessageEmbedField{
		{Name: "Reason", Value: valueOr(reason, "No reason specified."), Inline: false},
		{Name: "Case", Value: punishmentID, Inline: true},
	}
	if duration != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: duration, Inline: true})
	}
	if appealURL != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Appeal", Value: appealURL, Inline: false})
	}
	return &discordgo.MessageEmbed{
		Title:       "Moderation notice",
		Description: description,
		Color:       actionColor(actionType),
		Fields:      fields,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
