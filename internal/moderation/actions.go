// Package moderation applies punishments. Every path funnels through the
// same validation chain (bot target, self target, permission, rank, rate
// limits) whether the action came from a staff command, the automod
// evaluator or the report auto-action hook.
package moderation

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/metrics"
	"warden/internal/staff"
	"warden/internal/storage"
)

// Session is the slice of discordgo the action layer needs. Tests substitute
// a fake; production passes *discordgo.Session.
type Session interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error
	GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error
	GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error
	GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Request describes one punishment to apply. System requests come from the
// automod evaluator or report auto-actions and skip the staff checks.
type Request struct {
	GuildID    string
	TargetID   string
	TargetName string
	ActorID    string
	ActorName  string
	Reason     string
	System     bool
}

type Result struct {
	Success      bool
	Message      string
	PunishmentID string
}

type Config struct {
	BotUserID       string
	LogChannelID    string
	DMOnAction      bool
	AppealsEnabled  bool
	CustomAppealURL string
	BaseURL         string
}

type Service struct {
	store   *storage.Store
	staff   *staff.Service
	limiter *Limiter
	logger  *zap.Logger
	metrics *metrics.Set
	clock   Clock
	cfg     Config
}

func NewService(store *storage.Store, staffSvc *staff.Service, m *metrics.Set, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		store:   store,
		staff:   staffSvc,
		limiter: NewLimiter(),
		logger:  logger,
		metrics: m,
		clock:   realClock{},
		cfg:     cfg,
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
	s.limiter.WithClock(clock)
}

// SetBotUser records the bot's own user ID once the gateway session is open.
func (s *Service) SetBotUser(userID string) {
	s.cfg.BotUserID = userID
}

func (s *Service) Warn(ctx context.Context, session Session, req Request) Result {
	if res, ok := s.validate(ctx, req, storage.PunishmentWarn, storage.PermWarnUsers); !ok {
		return res
	}
	return s.record(ctx, session, req, storage.Punishment{Type: storage.PunishmentWarn})
}

func (s *Service) Kick(ctx context.Context, session Session, req Request) Result {
	if res, ok := s.validate(ctx, req, storage.PunishmentKick, storage.PermKickUsers); !ok {
		return res
	}
	// DM before the kick; afterwards there is no shared guild to DM through.
	punishmentID := NewPunishmentID()
	s.notifyTarget(ctx, session, req, storage.PunishmentKick, punishmentID, "")
	if err := session.GuildMemberDeleteWithReason(req.GuildID, req.TargetID, req.Reason); err != nil {
		s.logger.Warn("kick failed", zap.String("guild", req.GuildID), zap.String("user", req.TargetID), zap.Error(err))
		return Result{Message: "Failed to kick the user."}
	}
	return s.persist(ctx, session, req, storage.Punishment{Type: storage.PunishmentKick, PunishmentID: punishmentID}, "")
}

func (s *Service) Timeout(ctx context.Context, session Session, req Request, amount int, unit string) Result {
	if res, ok := s.validate(ctx, req, storage.PunishmentTimeout, storage.PermTimeoutUsers); !ok {
		return res
	}
	duration, err := ParseTimeoutDuration(amount, unit)
	if err != nil {
		return Result{Message: err.Error()}
	}
	until := s.clock.Now().Add(duration)
	if err := session.GuildMemberTimeout(req.GuildID, req.TargetID, &until); err != nil {
		s.logger.Warn("timeout failed", zap.String("guild", req.GuildID), zap.String("user", req.TargetID), zap.Error(err))
		return Result{Message: "Failed to time out the user."}
	}
	label := FormatTimeoutDuration(amount, unit)
	return s.record(ctx, session, req, storage.Punishment{Type: storage.PunishmentTimeout, Duration: label})
}

// Ban applies a permanent ban when temp is false, otherwise schedules an
// unban through the temporary ban sweeper.
func (s *Service) Ban(ctx context.Context, session Session, req Request, temp bool, amount int, unit string) Result {
	if res, ok := s.validate(ctx, req, storage.PunishmentBan, storage.PermBanUsers); !ok {
		return res
	}
	var label string
	var expiresAt time.Time
	if temp {
		duration, err := ParseBanDuration(amount, unit)
		if err != nil {
			return Result{Message: err.Error()}
		}
		label = FormatBanDuration(amount, unit)
		expiresAt = s.clock.Now().Add(duration)
	}

	punishmentID := NewPunishmentID()
	s.notifyTarget(ctx, session, req, storage.PunishmentBan, punishmentID, label)
	if err := session.GuildBanCreateWithReason(req.GuildID, req.TargetID, req.Reason, 0); err != nil {
		s.logger.Warn("ban failed", zap.String("guild", req.GuildID), zap.String("user", req.TargetID), zap.Error(err))
		return Result{Message: "Failed to ban the user."}
	}

	if temp {
		ban := storage.TemporaryBan{
			GuildID:      req.GuildID,
			UserID:       req.TargetID,
			Username:     req.TargetName,
			Reason:       req.Reason,
			PunishmentID: punishmentID,
			StaffID:      req.ActorID,
			ExpiresAt:    expiresAt,
		}
		if err := s.store.AddTemporaryBan(ctx, ban); err != nil {
			s.logger.Error("temporary ban not persisted", zap.String("punishment", punishmentID), zap.Error(err))
		}
	}
	return s.persist(ctx, session, req, storage.Punishment{Type: storage.PunishmentBan, PunishmentID: punishmentID, Duration: label}, label)
}

func (s *Service) Unban(ctx context.Context, session Session, guildID, userID, actorID string) Result {
	if !s.staff.HasFullAccess(actorID) {
		allowed, err := s.staff.HasPermission(ctx, guildID, actorID, storage.PermBanUsers)
		if err != nil || !allowed {
			return Result{Message: "You are not allowed to unban users."}
		}
	}
	if err := session.GuildBanDelete(guildID, userID); err != nil {
		return Result{Message: "Failed to unban the user."}
	}
	if err := s.store.MarkTemporaryBansProcessedForUser(ctx, guildID, userID); err != nil {
		s.logger.Warn("temporary ban cleanup failed", zap.String("user", userID), zap.Error(err))
	}
	return Result{Success: true, Message: "User unbanned."}
}

func (s *Service) SetNote(ctx context.Context, guildID, actorID, targetID, note string) Result {
	if !s.staff.HasFullAccess(actorID) {
		allowed, err := s.staff.HasPermission(ctx, guildID, actorID, storage.PermSetNotes)
		if err != nil || !allowed {
			return Result{Message: "You are not allowed to set notes."}
		}
	}
	if err := s.store.SetUserNote(ctx, guildID, targetID, note); err != nil {
		return Result{Message: "Failed to save the note."}
	}
	return Result{Success: true, Message: "Note saved."}
}

// validate runs the shared pre-action checks. The bool is false when the
// caller should stop and return the Result as-is.
func (s *Service) validate(ctx context.Context, req Request, actionType, permission string) (Result, bool) {
	if req.TargetID == s.cfg.BotUserID {
		return Result{Message: "I will not act on myself."}, false
	}
	if req.ActorID != "" && req.ActorID == req.TargetID {
		return Result{Message: "You cannot act on yourself."}, false
	}
	if req.System {
		return Result{}, true
	}

	allowed, err := s.staff.HasPermission(ctx, req.GuildID, req.ActorID, permission)
	if err != nil {
		s.logger.Warn("permission lookup failed", zap.Error(err))
		return Result{Message: "Permission check failed."}, false
	}
	if !allowed {
		return Result{Message: "You are not allowed to " + actionLabel(actionType) + " users."}, false
	}

	outranks, err := s.staff.Outranks(ctx, req.GuildID, req.ActorID, req.TargetID)
	if err != nil {
		return Result{Message: "Permission check failed."}, false
	}
	if !outranks {
		return Result{Message: "You cannot act on a staff member of equal or higher rank."}, false
	}

	limits, err := s.staff.Limits(ctx, req.GuildID, req.ActorID)
	if err != nil {
		return Result{Message: "Permission check failed."}, false
	}
	if !s.limiter.Allow(req.GuildID, req.ActorID, actionType, limits) {
		return Result{Message: "You have hit your " + actionLabel(actionType) + " limit. Try again later."}, false
	}
	return Result{}, true
}

// record persists a punishment that needs no Discord API call of its own
// (warns, and timeouts after the API call succeeded) and handles DM + log.
func (s *Service) record(ctx context.Context, session Session, req Request, p storage.Punishment) Result {
	p.PunishmentID = NewPunishmentID()
	s.notifyTarget(ctx, session, req, p.Type, p.PunishmentID, p.Duration)
	return s.persist(ctx, session, req, p, p.Duration)
}

func (s *Service) persist(ctx context.Context, session Session, req Request, p storage.Punishment, duration string) Result {
	p.GuildID = req.GuildID
	p.UserID = req.TargetID
	p.Username = req.TargetName
	p.Reason = req.Reason
	p.StaffID = req.ActorID
	p.StaffUsername = req.ActorName
	p.Duration = duration
	p.CreatedAt = s.clock.Now()

	if err := s.store.AddPunishment(ctx, p); err != nil {
		// The platform call already succeeded; the record is bookkeeping.
		// Reporting failure here would make automod's fall-through chain
		// stack a second action on top of one that was applied.
		s.logger.Error("punishment not persisted", zap.String("punishment", p.PunishmentID), zap.Error(err))
		return Result{Success: true, Message: actionPastTense(p.Type) + " " + req.TargetName + ". The case could not be recorded.", PunishmentID: p.PunishmentID}
	}
	if s.metrics != nil {
		s.metrics.PunishmentIssued(p.Type)
	}
	s.logCase(session, p)
	return Result{Success: true, Message: actionPastTense(p.Type) + " " + req.TargetName + ".", PunishmentID: p.PunishmentID}
}

func (s *Service) notifyTarget(ctx context.Context, session Session, req Request, actionType, punishmentID, duration string) {
	if !s.cfg.DMOnAction {
		return
	}
	appealURL := s.appealURL(ctx, req.GuildID, punishmentID)
	embed := buildDMEmbed(actionType, req.Reason, punishmentID, duration, appealURL)
	channel, err := session.UserChannelCreate(req.TargetID)
	if err != nil {
		return
	}
	_, _ = session.ChannelMessageSendEmbed(channel.ID, embed)
}

func (s *Service) logCase(session Session, p storage.Punishment) {
	if s.cfg.LogChannelID == "" {
		return
	}
	_, _ = session.ChannelMessageSendEmbed(s.cfg.LogChannelID, buildCaseEmbed(p))
}

func (s *Service) appealURL(ctx context.Context, guildID, punishmentID string) string {
	settings, err := s.store.GetGuildSettings(ctx, guildID, storage.GuildSettings{
		AppealsEnabled:  s.cfg.AppealsEnabled,
		CustomAppealURL: s.cfg.CustomAppealURL,
	})
	if err != nil || !settings.AppealsEnabled {
		return ""
	}
	if settings.CustomAppealURL != "" {
		return settings.CustomAppealURL
	}
	if s.cfg.BaseURL == "" {
		return ""
	}
	return s.cfg.BaseURL + "/appeal?punishment=" + punishmentID
}

func actionLabel(actionType string) string {
	switch actionType {
	case storage.PunishmentWarn:
		return "warn"
	case storage.PunishmentKick:
		return "kick"
	case storage.PunishmentBan:
		return "ban"
	case storage.PunishmentTimeout:
		return "timeout"
	default:
		return "moderate"
	}
}

func actionPastTense(actionType string) string {
	switch actionType {
	case storage.PunishmentWarn:
		return "Warned"
	case storage.PunishmentKick:
		return "Kicked"
	case storage.PunishmentBan:
		return "Banned"
	case storage.PunishmentTimeout:
		return "Timed out"
	default:
		return "Punished"
	}
}
