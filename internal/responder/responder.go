// Package responder serves prefix-triggered custom commands and automatic
// replies. Both are guild-configured through the dashboard; lookups are
// cached briefly and trigger counts are written back in batches instead of
// per message.
package responder

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/cache"
	"warden/internal/storage"
)

const (
	responseCacheTTL = time.Minute
	prefixCacheTTL   = 3 * time.Minute
	flushInterval    = time.Minute
)

type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Service struct {
	store     *storage.Store
	responses *cache.TTL[string, []storage.AutoResponse]
	prefixes  *cache.TTL[string, string]
	logger    *zap.Logger
	clock     Clock

	cooldownMu sync.Mutex
	cooldowns  map[string]time.Time

	pendingMu sync.Mutex
	pending   map[int64]int64

	defaultPrefix string
}

func New(store *storage.Store, logger *zap.Logger, defaultPrefix string) *Service {
	if defaultPrefix == "" {
		defaultPrefix = "!"
	}
	return &Service{
		store:         store,
		responses:     cache.NewTTL[string, []storage.AutoResponse](responseCacheTTL),
		prefixes:      cache.NewTTL[string, string](prefixCacheTTL),
		logger:        logger,
		clock:         realClock{},
		cooldowns:     make(map[string]time.Time),
		pending:       make(map[int64]int64),
		defaultPrefix: defaultPrefix,
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// Invalidate drops cached responses and prefix after a dashboard edit.
func (s *Service) Invalidate(guildID string) {
	s.responses.Delete(guildID)
	s.prefixes.Delete(guildID)
}

// Prefix returns the guild's command prefix, cached.
func (s *Service) Prefix(ctx context.Context, guildID string) string {
	if prefix, ok := s.prefixes.Get(guildID); ok {
		return prefix
	}
	settings, err := s.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{CommandPrefix: s.defaultPrefix})
	prefix := s.defaultPrefix
	if err == nil && settings.CommandPrefix != "" {
		prefix = settings.CommandPrefix
	}
	s.prefixes.Set(guildID, prefix)
	return prefix
}

// HandleMessage tries custom commands first, then auto responses. Returns
// true when a reply was sent.
func (s *Service) HandleMessage(ctx context.Context, session Session, msg *discordgo.MessageCreate, guildName string) bool {
	prefix := s.Prefix(ctx, msg.GuildID)
	if strings.HasPrefix(msg.Content, prefix) {
		if s.handleCommand(ctx, session, msg, prefix, guildName) {
			return true
		}
	}
	return s.handleAutoResponse(ctx, session, msg, guildName)
}

func (s *Service) handleCommand(ctx context.Context, session Session, msg *discordgo.MessageCreate, prefix, guildName string) bool {
	name := strings.TrimPrefix(msg.Content, prefix)
	if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[0]
	}
	name = strings.ToLower(name)
	if name == "" {
		return false
	}

	cmd, err := s.store.GetCustomCommand(ctx, msg.GuildID, name)
	if err != nil {
		return false
	}

	data := &discordgo.MessageSend{}
	if cmd.ResponseType == "embed" && cmd.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{buildEmbed(*cmd.Embed, msg, guildName)}
	} else {
		data.Content = substituteVariables(cmd.TextResponse, msg, guildName)
	}
	if cmd.ReplyToUser {
		data.Reference = &discordgo.MessageReference{MessageID: msg.ID, ChannelID: msg.ChannelID, GuildID: msg.GuildID}
	}

	if _, err := session.ChannelMessageSendComplex(msg.ChannelID, data); err != nil {
		s.logger.Debug("custom command send failed", zap.String("command", name), zap.Error(err))
		return false
	}
	if cmd.DeleteTrigger {
		_ = session.ChannelMessageDelete(msg.ChannelID, msg.ID)
	}
	if err := s.store.IncrementCommandUsage(ctx, cmd.ID); err != nil {
		s.logger.Debug("command usage update failed", zap.Error(err))
	}
	return true
}

func (s *Service) handleAutoResponse(ctx context.Context, session Session, msg *discordgo.MessageCreate, guildName string) bool {
	responses, err := s.responsesFor(ctx, msg.GuildID)
	if err != nil {
		return false
	}

	for _, resp := range responses {
		if !resp.Settings.Enabled {
			continue
		}
		if !channelAllowed(resp.Settings, msg.ChannelID) {
			continue
		}
		if !matches(resp, msg.Content) {
			continue
		}
		if !s.passCooldown(msg.GuildID, resp.ID, resp.Settings.CooldownSeconds) {
			continue
		}

		data := &discordgo.MessageSend{}
		if resp.Type == "EMBED" && resp.Embed != nil {
			data.Embeds = []*discordgo.MessageEmbed{buildEmbed(*resp.Embed, msg, guildName)}
		} else {
			data.Content = substituteVariables(resp.Message, msg, guildName)
		}
		if resp.Settings.ReplyToUser {
			data.Reference = &discordgo.MessageReference{MessageID: msg.ID, ChannelID: msg.ChannelID, GuildID: msg.GuildID}
		}

		if _, err := session.ChannelMessageSendComplex(msg.ChannelID, data); err != nil {
			s.logger.Debug("auto response send failed", zap.Int64("response", resp.ID), zap.Error(err))
			return false
		}
		if resp.Settings.DeleteUserMessage {
			_ = session.ChannelMessageDelete(msg.ChannelID, msg.ID)
		}
		s.queueCount(resp.ID)
		return true
	}
	return false
}

func (s *Service) responsesFor(ctx context.Context, guildID string) ([]storage.AutoResponse, error) {
	if cached, ok := s.responses.Get(guildID); ok {
		return cached, nil
	}
	responses, err := s.store.ListAutoResponses(ctx, guildID)
	if err != nil {
		return nil, err
	}
	s.responses.Set(guildID, responses)
	return responses, nil
}

func (s *Service) passCooldown(guildID string, responseID int64, seconds int) bool {
	if seconds <= 0 {
		return true
	}
	key := guildID + ":" + strconv.FormatInt(responseID, 10)
	now := s.clock.Now()

	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()
	if last, ok := s.cooldowns[key]; ok && now.Sub(last) < time.Duration(seconds)*time.Second {
		return false
	}
	s.cooldowns[key] = now
	return true
}

func (s *Service) queueCount(responseID int64) {
	s.pendingMu.Lock()
	s.pending[responseID]++
	s.pendingMu.Unlock()
}

// StartFlusher writes queued trigger counts on an interval until stop
// closes, with one final flush on the way out.
func (s *Service) StartFlusher(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Flush(context.Background())
			case <-stop:
				s.Flush(context.Background())
				return
			}
		}
	}()
}

func (s *Service) Flush(ctx context.Context) {
	s.pendingMu.Lock()
	pending := s.pending
	s.pending = make(map[int64]int64)
	s.pendingMu.Unlock()

	if err := s.store.FlushAutoResponseCounts(ctx, pending); err != nil {
		s.logger.Warn("trigger count flush failed", zap.Error(err))
	}
}
