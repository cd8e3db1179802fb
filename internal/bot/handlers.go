package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// onMessageCreate runs the pipeline: stats, automod (invites, phishing,
// spam), then custom commands and auto responses. A message the automod
// acted on never reaches the responder.
func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	b.metrics.MessageProcessed()
	b.stats.RecordMessage(ctx, msg.GuildID)

	if b.automod.HandleMessage(ctx, session, msg, b.channelParent(msg.ChannelID)) {
		b.stats.RecordAutomodTrigger(ctx, msg.GuildID)
		return
	}

	b.responder.HandleMessage(ctx, session, msg, b.guildName(msg.GuildID))
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}
	ctx := context.Background()
	b.stats.RecordJoin(ctx, event.GuildID)
	if b.automod.HandleJoin(ctx, session, event) {
		b.stats.RecordAutomodTrigger(ctx, event.GuildID)
	}
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.GuildID == "" {
		return
	}
	_ = session
	b.stats.RecordLeave(context.Background(), event.GuildID)
}

func (b *Bot) channelParent(channelID string) string {
	channel, err := b.session.State.Channel(channelID)
	if err != nil || channel == nil {
		return ""
	}
	return channel.ParentID
}

func (b *Bot) guildName(guildID string) string {
	guild, err := b.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return ""
	}
	return guild.Name
}
