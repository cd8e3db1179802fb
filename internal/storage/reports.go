package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Report struct {
	ID               int64
	ReportID         string
	GuildID          string
	ReporterID       string
	ReporterUsername string
	ReportedID       string
	ReportedUsername string
	Reason           string
	ChannelID        string
	Status           string
	AutoActioned     bool
	AutoActionType   string
	CreatedAt        time.Time
}

type ReportSettings struct {
	GuildID            string
	Enabled            bool
	ChannelID          string
	RequireReason      bool
	AutoActionsEnabled bool
	ReportThreshold    int
	MinUniqueReporters int
	WindowHours        int
	ActionType         string
	ActionReason       string
	TimeoutMinutes     int
	BanDays            int
	PermanentBan       bool
}

type Appeal struct {
	ID           int64
	AppealID     string
	GuildID      string
	PunishmentID string
	UserID       string
	Content      string
	Status       string
	DecidedBy    string
	DecidedAt    *time.Time
	CreatedAt    time.Time
}

func DefaultReportSettings(guildID string) ReportSettings {
	return ReportSettings{
		GuildID:            guildID,
		RequireReason:      true,
		ReportThreshold:    5,
		MinUniqueReporters: 3,
		WindowHours:        24,
		ActionType:         "timeout",
		ActionReason:       "Automatic action due to multiple user reports",
		TimeoutMinutes:     60,
		BanDays:            7,
	}
}

func (s *Store) AddReport(ctx context.Context, report Report) error {
	created := report.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (report_id, guild_id, reporter_id, reporter_username, reported_id, reported_username, reason, channel_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ReportID, report.GuildID, report.ReporterID, report.ReporterUsername, report.ReportedID, report.ReportedUsername,
		report.Reason, report.ChannelID, statusOrPending(report.Status), created.Unix())
	return err
}

func (s *Store) RecentReportsAgainst(ctx context.Context, guildID, reportedID string, since time.Time) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, guild_id, reporter_id, reporter_username, reported_id, reported_username, reason, channel_id, status, auto_actioned, auto_action_type, created_at
		FROM reports WHERE guild_id = ? AND reported_id = ? AND created_at > ?
		ORDER BY created_at DESC`, guildID, reportedID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

func (s *Store) ListReports(ctx context.Context, guildID, status string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, report_id, guild_id, reporter_id, reporter_username, reported_id, reported_username, reason, channel_id, status, auto_actioned, auto_action_type, created_at
		FROM reports WHERE guild_id = ?`
	args := []any{guildID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReports(rows)
}

func (s *Store) UpdateReportStatus(ctx context.Context, reportID, status string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reports SET status = ? WHERE report_id = ?`, status, reportID)
	return err
}

func (s *Store) MarkReportsAutoActioned(ctx context.Context, guildID, reportedID, actionType string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reports SET auto_actioned = 1, auto_action_type = ?
		WHERE guild_id = ? AND reported_id = ? AND status = 'Pending'
	`, actionType, guildID, reportedID)
	return err
}

func (s *Store) GetReportSettings(ctx context.Context, guildID string) (ReportSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT enabled, channel_id, require_reason, auto_actions_enabled, report_threshold, min_unique_reporters, window_hours, action_type, action_reason, timeout_minutes, ban_days, permanent_ban
		FROM report_settings WHERE guild_id = ?`, guildID)

	settings := DefaultReportSettings(guildID)
	var enabled, requireReason, autoActions, permanent int
	err := row.Scan(&enabled, &settings.ChannelID, &requireReason, &autoActions, &settings.ReportThreshold,
		&settings.MinUniqueReporters, &settings.WindowHours, &settings.ActionType, &settings.ActionReason,
		&settings.TimeoutMinutes, &settings.BanDays, &permanent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return settings, nil
		}
		return ReportSettings{}, err
	}
	settings.Enabled = intToBool(enabled)
	settings.RequireReason = intToBool(requireReason)
	settings.AutoActionsEnabled = intToBool(autoActions)
	settings.PermanentBan = intToBool(permanent)
	return settings, nil
}

func (s *Store) SaveReportSettings(ctx context.Context, settings ReportSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_settings (guild_id, enabled, channel_id, require_reason, auto_actions_enabled, report_threshold, min_unique_reporters, window_hours, action_type, action_reason, timeout_minutes, ban_days, permanent_ban)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			enabled = excluded.enabled,
			channel_id = excluded.channel_id,
			require_reason = excluded.require_reason,
			auto_actions_enabled = excluded.auto_actions_enabled,
			report_threshold = excluded.report_threshold,
			min_unique_reporters = excluded.min_unique_reporters,
			window_hours = excluded.window_hours,
			action_type = excluded.action_type,
			action_reason = excluded.action_reason,
			timeout_minutes = excluded.timeout_minutes,
			ban_days = excluded.ban_days,
			permanent_ban = excluded.permanent_ban
	`, settings.GuildID, boolToInt(settings.Enabled), settings.ChannelID, boolToInt(settings.RequireReason),
		boolToInt(settings.AutoActionsEnabled), settings.ReportThreshold, settings.MinUniqueReporters,
		settings.WindowHours, settings.ActionType, settings.ActionReason, settings.TimeoutMinutes,
		settings.BanDays, boolToInt(settings.PermanentBan))
	return err
}

func (s *Store) AddAppeal(ctx context.Context, appeal Appeal) error {
	created := appeal.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appeals (appeal_id, guild_id, punishment_id, user_id, content, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, appeal.AppealID, appeal.GuildID, appeal.PunishmentID, appeal.UserID, appeal.Content, statusOrPending(appeal.Status), created.Unix())
	return err
}

func (s *Store) GetAppeal(ctx context.Context, appealID string) (Appeal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, appeal_id, guild_id, punishment_id, user_id, content, status, decided_by, decided_at, created_at
		FROM appeals WHERE appeal_id = ?`, appealID)
	return scanAppeal(row)
}

func (s *Store) GetAppealForPunishment(ctx context.Context, punishmentID string) (Appeal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, appeal_id, guild_id, punishment_id, user_id, content, status, decided_by, decided_at, created_at
		FROM appeals WHERE punishment_id = ? ORDER BY created_at DESC LIMIT 1`, punishmentID)
	return scanAppeal(row)
}

func (s *Store) ListAppeals(ctx context.Context, guildID, status string, limit int) ([]Appeal, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, appeal_id, guild_id, punishment_id, user_id, content, status, decided_by, decided_at, created_at
		FROM appeals WHERE guild_id = ?`
	args := []any{guildID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appeals []Appeal
	for rows.Next() {
		appeal, err := scanAppeal(rows)
		if err != nil {
			return nil, err
		}
		appeals = append(appeals, appeal)
	}
	return appeals, rows.Err()
}

func (s *Store) DecideAppeal(ctx context.Context, appealID, status, decidedBy string, decidedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE appeals SET status = ?, decided_by = ?, decided_at = ? WHERE appeal_id = ?
	`, status, decidedBy, decidedAt.Unix(), appealID)
	return err
}

func scanAppeal(row rowScanner) (Appeal, error) {
	var appeal Appeal
	var created int64
	var decided sql.NullInt64
	err := row.Scan(&appeal.ID, &appeal.AppealID, &appeal.GuildID, &appeal.PunishmentID, &appeal.UserID,
		&appeal.Content, &appeal.Status, &appeal.DecidedBy, &decided, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appeal{}, ErrNotFound
		}
		return Appeal{}, err
	}
	appeal.CreatedAt = time.Unix(created, 0)
	if decided.Valid {
		value := time.Unix(decided.Int64, 0)
		appeal.DecidedAt = &value
	}
	return appeal, nil
}

func collectReports(rows *sql.Rows) ([]Report, error) {
	var reports []Report
	for rows.Next() {
		var report Report
		var created int64
		var autoActioned int
		if err := rows.Scan(&report.ID, &report.ReportID, &report.GuildID, &report.ReporterID, &report.ReporterUsername,
			&report.ReportedID, &report.ReportedUsername, &report.Reason, &report.ChannelID, &report.Status,
			&autoActioned, &report.AutoActionType, &created); err != nil {
			return nil, err
		}
		report.AutoActioned = intToBool(autoActioned)
		report.CreatedAt = time.Unix(created, 0)
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func statusOrPending(status string) string {
	if status == "" {
		return "Pending"
	}
	return status
}
