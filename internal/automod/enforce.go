package automod

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/moderation"
)

const purgeFetchLimit = 10

// enforceMessage deduplicates through the category marker, handles message
// deletion and applies the configured punishment chain.
func (e *Evaluator) enforceMessage(ctx context.Context, session Session, msg *discordgo.MessageCreate, trigger Trigger) bool {
	key := string(trigger.Category) + ":" + msg.GuildID + ":" + msg.Author.ID
	if !e.markers.TryAcquire(key) {
		// Another trigger for this user is already being enforced; still
		// delete the message if the rule wants that.
		if trigger.Actions.DeleteMessage {
			_ = session.ChannelMessageDelete(msg.ChannelID, msg.ID)
		}
		return true
	}

	e.metrics.AutomodTrigger(string(trigger.Category), string(trigger.Rule))
	e.logger.Info("automod trigger",
		zap.String("guild", msg.GuildID),
		zap.String("user", msg.Author.ID),
		zap.String("category", string(trigger.Category)),
		zap.String("rule", string(trigger.Rule)),
		zap.String("reason", trigger.Reason))

	if trigger.Actions.DeleteMessage {
		if trigger.PurgeRecent {
			e.purgeRecent(session, msg)
		} else if err := session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
			e.logger.Debug("message delete failed", zap.String("message", msg.ID), zap.Error(err))
		}
	}

	e.applyPunishments(ctx, session, msg.GuildID, msg.Author.ID, username(msg.Author), trigger)
	return true
}

// purgeRecent sweeps the author's latest messages from the channel. Bulk
// delete first; if Discord rejects it (messages older than two weeks) fall
// back to deleting one by one.
func (e *Evaluator) purgeRecent(session Session, msg *discordgo.MessageCreate) {
	messages, err := session.ChannelMessages(msg.ChannelID, purgeFetchLimit, "", "", "")
	if err != nil {
		_ = session.ChannelMessageDelete(msg.ChannelID, msg.ID)
		return
	}

	var ids []string
	for _, m := range messages {
		if m.Author != nil && m.Author.ID == msg.Author.ID {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if len(ids) == 1 {
		_ = session.ChannelMessageDelete(msg.ChannelID, ids[0])
		return
	}
	if err := session.ChannelMessagesBulkDelete(msg.ChannelID, ids); err != nil {
		for _, id := range ids {
			_ = session.ChannelMessageDelete(msg.ChannelID, id)
		}
	}
}

// applyPunishments walks the action chain in severity order. A disabled
// action is skipped; a failed one falls through to the next so the user does
// not escape punishment because one API call failed.
func (e *Evaluator) applyPunishments(ctx context.Context, session Session, guildID, userID, name string, trigger Trigger) {
	req := moderation.Request{
		GuildID:    guildID,
		TargetID:   userID,
		TargetName: name,
		Reason:     "Auto-moderation: " + trigger.Reason,
		System:     true,
	}
	actions := trigger.Actions

	if actions.BanUser {
		result := e.actions.Ban(ctx, session, req, actions.IsTempBan, actions.BanDuration, actions.BanUnit)
		if result.Success {
			return
		}
	}
	if actions.KickUser {
		result := e.actions.Kick(ctx, session, req)
		if result.Success {
			return
		}
	}
	if actions.Timeout {
		duration, unit := actions.TimeoutDuration, actions.TimeoutUnit
		if duration <= 0 {
			duration, unit = 5, "m"
		}
		result := e.actions.Timeout(ctx, session, req, duration, unit)
		if result.Success {
			return
		}
	}
	if actions.WarnUser {
		e.actions.Warn(ctx, session, req)
	}
}

// applyJoinPunishments handles the alt prevention category, which punishes
// with the configured join message as the reason and prefers kicking over
// banning: the member has done nothing yet beyond joining on a new account.
func (e *Evaluator) applyJoinPunishments(ctx context.Context, session Session, guildID, userID, name string, trigger Trigger, reason string) {
	req := moderation.Request{
		GuildID:    guildID,
		TargetID:   userID,
		TargetName: name,
		Reason:     reason,
		System:     true,
	}
	actions := trigger.Actions

	if actions.KickUser {
		if e.actions.Kick(ctx, session, req).Success {
			return
		}
	}
	if actions.BanUser {
		if e.actions.Ban(ctx, session, req, actions.IsTempBan, actions.BanDuration, actions.BanUnit).Success {
			return
		}
	}
	if actions.Timeout {
		duration, unit := actions.TimeoutDuration, actions.TimeoutUnit
		if duration <= 0 {
			duration, unit = 5, "m"
		}
		e.actions.Timeout(ctx, session, req, duration, unit)
	}
}
