// Package automod evaluates guild messages and joins against the configured
// heuristics (spam, invite links, phishing domains, new-account screening)
// and enforces the per-category action set when a rule fires.
package automod

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/cache"
	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/staff"
	"warden/internal/storage"
)

const settingsCacheTTL = 3 * time.Minute

// Session extends the moderation session with the message management calls
// enforcement needs.
type Session interface {
	moderation.Session
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
}

type Evaluator struct {
	store    *storage.Store
	settings *cache.TTL[string, storage.AutoModSettings]
	windows  *windowStore
	markers  *Markers
	phishing *PhishingDetector
	actions  *moderation.Service
	staff    *staff.Service
	metrics  *metrics.Set
	logger   *zap.Logger
	clock    Clock
}

func NewEvaluator(store *storage.Store, phishing *PhishingDetector, actions *moderation.Service, staffSvc *staff.Service, m *metrics.Set, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		store:    store,
		settings: cache.NewTTL[string, storage.AutoModSettings](settingsCacheTTL),
		windows:  newWindowStore(),
		markers:  NewMarkers(),
		phishing: phishing,
		actions:  actions,
		staff:    staffSvc,
		metrics:  m,
		logger:   logger,
		clock:    realClock{},
	}
}

func (e *Evaluator) WithClock(clock Clock) {
	e.clock = clock
}

// InvalidateSettings drops the cached document after a dashboard edit.
func (e *Evaluator) InvalidateSettings(guildID string) {
	e.settings.Delete(guildID)
}

func (e *Evaluator) settingsFor(ctx context.Context, guildID string) (storage.AutoModSettings, error) {
	if cached, ok := e.settings.Get(guildID); ok {
		return cached, nil
	}
	settings, err := e.store.GetAutoModSettings(ctx, guildID)
	if err != nil {
		return storage.AutoModSettings{}, err
	}
	e.settings.Set(guildID, settings)
	return settings, nil
}

// HandleMessage runs the category checks in order (invites, phishing, spam)
// and enforces the first trigger. Staff authors are exempt from every
// heuristic. It reports whether the message was acted on.
func (e *Evaluator) HandleMessage(ctx context.Context, session Session, msg *discordgo.MessageCreate, parentID string) bool {
	if e.exemptAuthor(ctx, msg.GuildID, msg.Author.ID) {
		return false
	}

	settings, err := e.settingsFor(ctx, msg.GuildID)
	if err != nil {
		e.logger.Warn("automod settings unavailable", zap.String("guild", msg.GuildID), zap.Error(err))
		return false
	}

	if trigger, ok := e.checkInvites(settings, msg, parentID); ok {
		return e.enforceMessage(ctx, session, msg, trigger)
	}
	if trigger, ok := e.checkPhishing(settings, msg, parentID); ok {
		return e.enforceMessage(ctx, session, msg, trigger)
	}
	if trigger, ok := e.checkSpam(settings, msg, parentID); ok {
		return e.enforceMessage(ctx, session, msg, trigger)
	}
	return false
}

// exemptAuthor reports whether the author is staff or a full-access user.
// The lookup is cached by the staff service, so the message pipeline does
// not hit the database per event. A failed lookup is treated as non-staff.
func (e *Evaluator) exemptAuthor(ctx context.Context, guildID, userID string) bool {
	if e.staff == nil {
		return false
	}
	if e.staff.HasFullAccess(userID) {
		return true
	}
	isStaff, err := e.staff.IsStaff(ctx, guildID, userID)
	if err != nil {
		e.logger.Warn("staff lookup failed", zap.String("user", userID), zap.Error(err))
		return false
	}
	return isStaff
}

func (e *Evaluator) checkInvites(settings storage.AutoModSettings, msg *discordgo.MessageCreate, parentID string) (Trigger, bool) {
	rule := settings.Invites
	if !rule.Enabled || !inScope(rule.Channels, msg.ChannelID, parentID) {
		return Trigger{}, false
	}
	if !containsInvite(msg.Content) {
		return Trigger{}, false
	}
	return Trigger{
		Category: CategoryInvites,
		Rule:     RuleInvite,
		Reason:   "Posting Discord invite links",
		Actions:  rule.Actions,
	}, true
}

func (e *Evaluator) checkPhishing(settings storage.AutoModSettings, msg *discordgo.MessageCreate, parentID string) (Trigger, bool) {
	rule := settings.Phishing
	if !rule.Enabled || !inScope(rule.Channels, msg.ChannelID, parentID) {
		return Trigger{}, false
	}
	domain, ok := e.phishing.Match(msg.Content, rule)
	if !ok {
		return Trigger{}, false
	}
	return Trigger{
		Category: CategoryPhishing,
		Rule:     RuleDomain,
		Reason:   "Posting a flagged link (" + domain + ")",
		Actions:  rule.Actions,
	}, true
}

func (e *Evaluator) checkSpam(settings storage.AutoModSettings, msg *discordgo.MessageCreate, parentID string) (Trigger, bool) {
	rule := settings.Spam
	if !rule.Enabled || !inScope(rule.Channels, msg.ChannelID, parentID) {
		return Trigger{}, false
	}

	// While the enforcement marker is held, messages sent during the
	// cooldown must not accumulate in a fresh window; otherwise the user
	// trips the rule again the instant the marker clears.
	if e.markers.Held(string(CategorySpam) + ":" + msg.GuildID + ":" + msg.Author.ID) {
		return Trigger{}, false
	}

	key := msg.GuildID + ":" + msg.Author.ID
	record := messageRecord{
		messageID: msg.ID,
		content:   msg.Content,
		mentions:  len(msg.Mentions) + len(msg.MentionRoles),
		at:        e.clock.Now(),
	}
	window := e.windows.add(key, record, spamWindow(rule))

	verdict, ok := evaluateSpam(rule, window, record)
	if !ok {
		return Trigger{}, false
	}
	e.windows.drop(key)
	return Trigger{
		Category:    CategorySpam,
		Rule:        verdict.rule,
		Reason:      verdict.reason,
		Actions:     rule.Actions,
		PurgeRecent: verdict.purge,
	}, true
}

// HandleJoin screens new members against the alt prevention rule.
func (e *Evaluator) HandleJoin(ctx context.Context, session Session, event *discordgo.GuildMemberAdd) bool {
	settings, err := e.settingsFor(ctx, event.GuildID)
	if err != nil {
		e.logger.Warn("automod settings unavailable", zap.String("guild", event.GuildID), zap.Error(err))
		return false
	}
	rule := settings.AltPrevention
	if !rule.Enabled {
		return false
	}
	trigger, ok := checkAccountAge(event.User.ID, rule, e.clock.Now())
	if !ok {
		return false
	}

	key := string(trigger.Category) + ":" + event.GuildID + ":" + event.User.ID
	if !e.markers.TryAcquire(key) {
		return false
	}

	e.metrics.AutomodTrigger(string(trigger.Category), string(trigger.Rule))
	e.logger.Info("automod trigger",
		zap.String("guild", event.GuildID),
		zap.String("user", event.User.ID),
		zap.String("category", string(trigger.Category)),
		zap.String("rule", string(trigger.Rule)))

	reason := rule.CustomMessage
	if reason == "" {
		reason = defaultJoinMessage
	}
	e.notifyJoinTarget(session, event.User.ID, reason)
	e.applyJoinPunishments(ctx, session, event.GuildID, event.User.ID, username(event.User), trigger, reason)
	return true
}

const defaultJoinMessage = "Your account is too new to join this server."

func (e *Evaluator) notifyJoinTarget(session Session, userID, message string) {
	channel, err := session.UserChannelCreate(userID)
	if err != nil {
		return
	}
	_, _ = session.ChannelMessageSendEmbed(channel.ID, &discordgo.MessageEmbed{
		Title:       "Unable to join",
		Description: message,
		Color:       0xED4245,
	})
}

func username(user *discordgo.User) string {
	if user == nil {
		return ""
	}
	return user.Username
}
