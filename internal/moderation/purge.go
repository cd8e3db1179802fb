package moderation

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/storage"
)

const maxPurgeCount = 100

// ChannelSession is the slice of discordgo the purge path needs. It is
// narrower than Session because purging never touches members or bans.
type ChannelSession interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Purge deletes up to count recent messages from the channel. Bulk delete
// first; when Discord rejects the batch (messages older than two weeks) the
// messages are deleted one by one.
func (s *Service) Purge(ctx context.Context, session ChannelSession, guildID, channelID, actorID string, count int) Result {
	if !s.staff.HasFullAccess(actorID) {
		allowed, err := s.staff.HasPermission(ctx, guildID, actorID, storage.PermPurgeMessages)
		if err != nil || !allowed {
			return Result{Message: "You are not allowed to purge messages."}
		}
	}
	if count < 1 {
		return Result{Message: "The purge amount must be at least 1."}
	}
	if count > maxPurgeCount {
		count = maxPurgeCount
	}

	messages, err := session.ChannelMessages(channelID, count, "", "", "")
	if err != nil {
		s.logger.Warn("purge fetch failed", zap.String("channel", channelID), zap.Error(err))
		return Result{Message: "Failed to fetch messages."}
	}
	if len(messages) == 0 {
		return Result{Success: true, Message: "Nothing to delete."}
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}

	deleted := len(ids)
	if len(ids) == 1 {
		if err := session.ChannelMessageDelete(channelID, ids[0]); err != nil {
			return Result{Message: "Failed to delete messages."}
		}
	} else if err := session.ChannelMessagesBulkDelete(channelID, ids); err != nil {
		deleted = 0
		for _, id := range ids {
			if err := session.ChannelMessageDelete(channelID, id); err == nil {
				deleted++
			}
		}
		if deleted == 0 {
			return Result{Message: "Failed to delete messages."}
		}
	}

	s.logger.Info("channel purged",
		zap.String("guild", guildID),
		zap.String("channel", channelID),
		zap.String("staff", actorID),
		zap.Int("deleted", deleted))
	return Result{Success: true, Message: fmt.Sprintf("Deleted %d messages.", deleted)}
}
