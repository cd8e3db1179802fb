package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/moderation"
	"warden/internal/reports"
)

func (b *Bot) registerCommands() error {
	userOption := func(description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: description,
			Required:    true,
		}
	}
	reasonOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason for the action",
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "warn",
			Description: "Warn a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption("Member to warn"), reasonOption},
		},
		{
			Name:        "kick",
			Description: "Kick a member",
			Options:     []*discordgo.ApplicationCommandOption{userOption("Member to kick"), reasonOption},
		},
		{
			Name:        "ban",
			Description: "Ban a member, permanently or for a duration",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to ban"),
				reasonOption,
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "Ban length; omit for a permanent ban",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "unit",
					Description: "Duration unit",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "days", Value: "d"},
						{Name: "weeks", Value: "w"},
						{Name: "months", Value: "m"},
					},
				},
			},
		},
		{
			Name:        "unban",
			Description: "Lift a ban",
			Options:     []*discordgo.ApplicationCommandOption{userOption("User to unban")},
		},
		{
			Name:        "timeout",
			Description: "Time a member out",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to time out"),
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "Timeout length",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "unit",
					Description: "Duration unit",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "minutes", Value: "m"},
						{Name: "hours", Value: "h"},
						{Name: "days", Value: "d"},
					},
				},
				reasonOption,
			},
		},
		{
			Name:        "note",
			Description: "Set a staff note on a member",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member the note is about"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "Note content",
					Required:    true,
				},
			},
		},
		{
			Name:        "history",
			Description: "Show a member's punishment history",
			Options:     []*discordgo.ApplicationCommandOption{userOption("Member to look up")},
		},
		{
			Name:        "case",
			Description: "Look up a punishment by case ID",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "id",
					Description: "Case ID, e.g. P1K34C6Z",
					Required:    true,
				},
			},
		},
		{
			Name:        "purge",
			Description: "Delete recent messages from this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "How many messages to delete (max 100)",
					Required:    true,
				},
			},
		},
		{
			Name:        "report",
			Description: "Report a member to the staff team",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Member to report"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "What happened",
				},
			},
		},
	}

	appID := b.session.State.User.ID
	for _, cmd := range commands {
		if _, err := b.session.ApplicationCommandCreate(appID, b.cfg.GuildID, cmd); err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
	}
	return nil
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" || interaction.Member == nil || interaction.Member.User == nil {
		b.respond(session, interaction, "This command only works in a server.", true)
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	options := optionMap(data.Options)
	actor := interaction.Member.User

	switch data.Name {
	case "warn":
		req := b.buildRequest(interaction, options, actor)
		result := b.actions.Warn(ctx, session, req)
		b.respondResult(ctx, session, interaction, result)
	case "kick":
		req := b.buildRequest(interaction, options, actor)
		result := b.actions.Kick(ctx, session, req)
		b.respondResult(ctx, session, interaction, result)
	case "ban":
		req := b.buildRequest(interaction, options, actor)
		duration := intOption(options, "duration")
		unit := stringOption(options, "unit")
		if duration > 0 && unit == "" {
			unit = "d"
		}
		result := b.actions.Ban(ctx, session, req, duration > 0, duration, unit)
		b.respondResult(ctx, session, interaction, result)
	case "unban":
		target := userOptionValue(session, options)
		if target == nil {
			b.respond(session, interaction, "User not found.", true)
			return
		}
		result := b.actions.Unban(ctx, session, interaction.GuildID, target.ID, actor.ID)
		b.respondResult(ctx, session, interaction, result)
	case "timeout":
		req := b.buildRequest(interaction, options, actor)
		result := b.actions.Timeout(ctx, session, req, intOption(options, "duration"), stringOption(options, "unit"))
		b.respondResult(ctx, session, interaction, result)
	case "note":
		target := userOptionValue(session, options)
		if target == nil {
			b.respond(session, interaction, "User not found.", true)
			return
		}
		result := b.actions.SetNote(ctx, interaction.GuildID, actor.ID, target.ID, stringOption(options, "text"))
		b.respond(session, interaction, result.Message, true)
	case "purge":
		result := b.actions.Purge(ctx, session, interaction.GuildID, interaction.ChannelID, actor.ID, intOption(options, "amount"))
		b.respond(session, interaction, result.Message, true)
	case "history":
		b.handleHistory(ctx, session, interaction, options, actor)
	case "case":
		b.handleCase(ctx, session, interaction, options, actor)
	case "report":
		b.handleReport(ctx, session, interaction, options, actor)
	}
}

func (b *Bot) buildRequest(interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption, actor *discordgo.User) moderation.Request {
	target := userOptionValue(b.session, options)
	req := moderation.Request{
		GuildID:   interaction.GuildID,
		ActorID:   actor.ID,
		ActorName: actor.Username,
		Reason:    stringOption(options, "reason"),
	}
	if target != nil {
		req.TargetID = target.ID
		req.TargetName = target.Username
	}
	return req
}

func (b *Bot) respondResult(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, result moderation.Result) {
	if result.Success {
		b.stats.RecordPunishment(ctx, interaction.GuildID)
	}
	message := result.Message
	if result.PunishmentID != "" {
		message += " (case " + result.PunishmentID + ")"
	}
	b.respond(session, interaction, message, true)
}

func (b *Bot) handleHistory(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption, actor *discordgo.User) {
	isStaff, err := b.staff.IsStaff(ctx, interaction.GuildID, actor.ID)
	if err != nil || (!isStaff && !b.staff.HasFullAccess(actor.ID)) {
		b.respond(session, interaction, "Staff only.", true)
		return
	}
	target := userOptionValue(session, options)
	if target == nil {
		b.respond(session, interaction, "User not found.", true)
		return
	}

	punishments, err := b.store.ListUserPunishments(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respond(session, interaction, "History lookup failed.", true)
		return
	}
	if len(punishments) == 0 {
		b.respond(session, interaction, "No punishments on record for "+target.Username+".", true)
		return
	}

	lines := make([]string, 0, len(punishments))
	for i, p := range punishments {
		if i >= 10 {
			lines = append(lines, fmt.Sprintf("... and %d more", len(punishments)-i))
			break
		}
		line := fmt.Sprintf("`%s` %s - %s (%s)", p.PunishmentID, p.Type, p.Reason, p.Status)
		lines = append(lines, line)
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Punishment history",
		Description: strings.Join(lines, "\n"),
		Color:       0x5865F2,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d total", len(punishments))},
	}
	if note, err := b.store.GetUserNote(ctx, interaction.GuildID, target.ID); err == nil && note != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Staff note", Value: note})
	}
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleCase(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption, actor *discordgo.User) {
	isStaff, err := b.staff.IsStaff(ctx, interaction.GuildID, actor.ID)
	if err != nil || (!isStaff && !b.staff.HasFullAccess(actor.ID)) {
		b.respond(session, interaction, "Staff only.", true)
		return
	}
	punishment, err := b.store.GetPunishment(ctx, stringOption(options, "id"))
	if err != nil {
		b.respond(session, interaction, "No case with that ID.", true)
		return
	}
	embed := &discordgo.MessageEmbed{
		Title: "Case " + punishment.PunishmentID,
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: "<@" + punishment.UserID + ">", Inline: true},
			{Name: "Type", Value: punishment.Type, Inline: true},
			{Name: "Status", Value: punishment.Status, Inline: true},
			{Name: "Reason", Value: punishment.Reason, Inline: false},
		},
		Timestamp: punishment.CreatedAt.Format(time.RFC3339),
	}
	if punishment.Duration != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Duration", Value: punishment.Duration, Inline: true})
	}
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleReport(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption, actor *discordgo.User) {
	target := userOptionValue(session, options)
	if target == nil {
		b.respond(session, interaction, "User not found.", true)
		return
	}
	if target.Bot {
		b.respond(session, interaction, "You cannot report a bot.", true)
		return
	}

	_, err := b.reports.Submit(ctx, session, reports.SubmitRequest{
		GuildID:      interaction.GuildID,
		ReporterID:   actor.ID,
		ReporterName: actor.Username,
		ReportedID:   target.ID,
		ReportedName: target.Username,
		Reason:       stringOption(options, "reason"),
		ChannelID:    interaction.ChannelID,
	})
	if err != nil {
		b.respond(session, interaction, reportErrorMessage(err), true)
		return
	}
	b.stats.RecordReport(ctx, interaction.GuildID)
	b.respond(session, interaction, "Report submitted. Thank you.", true)
}

func reportErrorMessage(err error) string {
	switch err {
	case reports.ErrDisabled, reports.ErrSelfReport, reports.ErrStaffTarget, reports.ErrReasonRequired:
		return strings.ToUpper(err.Error()[:1]) + err.Error()[1:] + "."
	default:
		return "Report submission failed."
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: flags},
	}); err != nil {
		b.logger.Debug("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}, Flags: flags},
	})
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, option := range options {
		m[option.Name] = option
	}
	return m
}

func stringOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if option, ok := options[name]; ok {
		return option.StringValue()
	}
	return ""
}

func intOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	if option, ok := options[name]; ok {
		return int(option.IntValue())
	}
	return 0
}

func userOptionValue(session *discordgo.Session, options map[string]*discordgo.ApplicationCommandInteractionDataOption) *discordgo.User {
	if option, ok := options["user"]; ok {
		return option.UserValue(session)
	}
	return nil
}
