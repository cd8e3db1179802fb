// Package reports accepts user reports, posts them to the configured staff
// channel and escalates automatically when enough distinct reporters flag
// the same member inside the rolling window.
package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/staff"
	"warden/internal/storage"
)

var (
	ErrDisabled       = errors.New("reports are disabled for this guild")
	ErrSelfReport     = errors.New("you cannot report yourself")
	ErrStaffTarget    = errors.New("you cannot report a staff member")
	ErrReasonRequired = errors.New("a reason is required")
)

type SubmitRequest struct {
	GuildID      string
	ReporterID   string
	ReporterName string
	ReportedID   string
	ReportedName string
	Reason       string
	ChannelID    string
}

type Service struct {
	store   *storage.Store
	staff   *staff.Service
	actions *moderation.Service
	metrics *metrics.Set
	logger  *zap.Logger
}

func New(store *storage.Store, staffSvc *staff.Service, actions *moderation.Service, m *metrics.Set, logger *zap.Logger) *Service {
	return &Service{store: store, staff: staffSvc, actions: actions, metrics: m, logger: logger}
}

func (s *Service) Submit(ctx context.Context, session moderation.Session, req SubmitRequest) (storage.Report, error) {
	settings, err := s.store.GetReportSettings(ctx, req.GuildID)
	if err != nil {
		return storage.Report{}, err
	}
	if !settings.Enabled {
		return storage.Report{}, ErrDisabled
	}
	if req.ReporterID == req.ReportedID {
		return storage.Report{}, ErrSelfReport
	}
	if s.staff != nil {
		if s.staff.HasFullAccess(req.ReportedID) {
			return storage.Report{}, ErrStaffTarget
		}
		isStaff, err := s.staff.IsStaff(ctx, req.GuildID, req.ReportedID)
		if err != nil {
			s.logger.Warn("staff lookup failed", zap.String("user", req.ReportedID), zap.Error(err))
		} else if isStaff {
			return storage.Report{}, ErrStaffTarget
		}
	}
	if settings.RequireReason && req.Reason == "" {
		return storage.Report{}, ErrReasonRequired
	}

	report := storage.Report{
		ReportID:         moderation.NewReportID(time.Now()),
		GuildID:          req.GuildID,
		ReporterID:       req.ReporterID,
		ReporterUsername: req.ReporterName,
		ReportedID:       req.ReportedID,
		ReportedUsername: req.ReportedName,
		Reason:           req.Reason,
		ChannelID:        req.ChannelID,
		CreatedAt:        time.Now(),
	}
	if err := s.store.AddReport(ctx, report); err != nil {
		return storage.Report{}, err
	}
	s.metrics.ReportSubmitted()

	if settings.ChannelID != "" {
		_, _ = session.ChannelMessageSendEmbed(settings.ChannelID, buildReportEmbed(report))
	}

	if settings.AutoActionsEnabled {
		s.maybeAutoAction(ctx, session, settings, report)
	}
	return report, nil
}

// maybeAutoAction punishes the reported member once both the total report
// count and the unique reporter count clear their thresholds.
func (s *Service) maybeAutoAction(ctx context.Context, session moderation.Session, settings storage.ReportSettings, report storage.Report) {
	window := time.Duration(settings.WindowHours) * time.Hour
	if window <= 0 {
		window = 24 * time.Hour
	}
	recent, err := s.store.RecentReportsAgainst(ctx, report.GuildID, report.ReportedID, time.Now().Add(-window))
	if err != nil {
		s.logger.Warn("recent report query failed", zap.Error(err))
		return
	}

	reporters := make(map[string]struct{}, len(recent))
	actioned := false
	for _, r := range recent {
		reporters[r.ReporterID] = struct{}{}
		if r.AutoActioned {
			actioned = true
		}
	}
	if actioned {
		return
	}
	if len(recent) < settings.ReportThreshold || len(reporters) < settings.MinUniqueReporters {
		return
	}

	req := moderation.Request{
		GuildID:    report.GuildID,
		TargetID:   report.ReportedID,
		TargetName: report.ReportedUsername,
		Reason:     settings.ActionReason,
		System:     true,
	}

	var result moderation.Result
	switch settings.ActionType {
	case "ban":
		result = s.actions.Ban(ctx, session, req, !settings.PermanentBan, settings.BanDays, "d")
	case "kick":
		result = s.actions.Kick(ctx, session, req)
	default:
		result = s.actions.Timeout(ctx, session, req, settings.TimeoutMinutes, "m")
	}
	if !result.Success {
		s.logger.Warn("report auto-action failed",
			zap.String("guild", report.GuildID),
			zap.String("user", report.ReportedID),
			zap.String("action", settings.ActionType),
			zap.String("message", result.Message))
		return
	}

	s.logger.Info("report auto-action applied",
		zap.String("guild", report.GuildID),
		zap.String("user", report.ReportedID),
		zap.String("action", settings.ActionType),
		zap.Int("reports", len(recent)),
		zap.Int("reporters", len(reporters)))
	if err := s.store.MarkReportsAutoActioned(ctx, report.GuildID, report.ReportedID, settings.ActionType); err != nil {
		s.logger.Warn("report auto-action flag failed", zap.Error(err))
	}
}

func buildReportEmbed(report storage.Report) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "New report",
		Color: 0xE67E22,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reported", Value: fmt.Sprintf("<@%s> (%s)", report.ReportedID, report.ReportedUsername), Inline: true},
			{Name: "Reporter", Value: fmt.Sprintf("<@%s> (%s)", report.ReporterID, report.ReporterUsername), Inline: true},
			{Name: "Report ID", Value: report.ReportID, Inline: true},
			{Name: "Reason", Value: report.Reason, Inline: false},
		},
		Timestamp: report.CreatedAt.Format(time.RFC3339),
	}
}
