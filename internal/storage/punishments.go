package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const (
	PunishmentWarn    = "Warn"
	PunishmentKick    = "Kick"
	PunishmentBan     = "Ban"
	PunishmentTimeout = "Timeout"
)

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusAppealed = "Appealed"
)

// Punishment is immutable once created except for its status and appeal
// linkage, which the appeals workflow updates.
type Punishment struct {
	ID            int64
	PunishmentID  string
	GuildID       string
	UserID        string
	Username      string
	Type          string
	Reason        string
	StaffID       string
	StaffUsername string
	Duration      string
	Status        string
	AppealID      string
	CreatedAt     time.Time
}

type TemporaryBan struct {
	ID           int64
	GuildID      string
	UserID       string
	Username     string
	Reason       string
	PunishmentID string
	StaffID      string
	ExpiresAt    time.Time
	Processed    bool
	CreatedAt    time.Time
}

func (s *Store) AddPunishment(ctx context.Context, p Punishment) error {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO punishments (punishment_id, guild_id, user_id, username, type, reason, staff_id, staff_username, duration, status, appeal_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.PunishmentID, p.GuildID, p.UserID, p.Username, p.Type, p.Reason, p.StaffID, p.StaffUsername, p.Duration, statusOrActive(p.Status), p.AppealID, created.Unix())
	return err
}

func (s *Store) GetPunishment(ctx context.Context, punishmentID string) (Punishment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, punishment_id, guild_id, user_id, username, type, reason, staff_id, staff_username, duration, status, appeal_id, created_at
		FROM punishments WHERE punishment_id = ?`, punishmentID)
	return scanPunishment(row)
}

func (s *Store) ListPunishments(ctx context.Context, guildID string, limit, offset int) ([]Punishment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, punishment_id, guild_id, user_id, username, type, reason, staff_id, staff_username, duration, status, appeal_id, created_at
		FROM punishments WHERE guild_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, guildID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPunishments(rows)
}

func (s *Store) ListUserPunishments(ctx context.Context, guildID, userID string) ([]Punishment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, punishment_id, guild_id, user_id, username, type, reason, staff_id, staff_username, duration, status, appeal_id, created_at
		FROM punishments WHERE guild_id = ? AND user_id = ?
		ORDER BY created_at DESC`, guildID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPunishments(rows)
}

func (s *Store) UpdatePunishmentStatus(ctx context.Context, punishmentID, status, appealID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE punishments SET status = ?, appeal_id = ? WHERE punishment_id = ?
	`, status, appealID, punishmentID)
	return err
}

func (s *Store) AddTemporaryBan(ctx context.Context, ban TemporaryBan) error {
	created := ban.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO temporary_bans (guild_id, user_id, username, reason, punishment_id, staff_id, expires_at, processed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, ban.GuildID, ban.UserID, ban.Username, ban.Reason, ban.PunishmentID, ban.StaffID, ban.ExpiresAt.Unix(), created.Unix())
	return err
}

func (s *Store) ExpiredTemporaryBans(ctx context.Context, now time.Time) ([]TemporaryBan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, username, reason, punishment_id, staff_id, expires_at, processed, created_at
		FROM temporary_bans WHERE expires_at <= ? AND processed = 0`, now.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []TemporaryBan
	for rows.Next() {
		var ban TemporaryBan
		var expires, created int64
		var processed int
		if err := rows.Scan(&ban.ID, &ban.GuildID, &ban.UserID, &ban.Username, &ban.Reason, &ban.PunishmentID, &ban.StaffID, &expires, &processed, &created); err != nil {
			return nil, err
		}
		ban.ExpiresAt = time.Unix(expires, 0)
		ban.CreatedAt = time.Unix(created, 0)
		ban.Processed = intToBool(processed)
		bans = append(bans, ban)
	}
	return bans, rows.Err()
}

func (s *Store) MarkTemporaryBanProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE temporary_bans SET processed = 1 WHERE id = ?`, id)
	return err
}

func (s *Store) MarkTemporaryBansProcessedForUser(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE temporary_bans SET processed = 1 WHERE guild_id = ? AND user_id = ? AND processed = 0`, guildID, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPunishment(row rowScanner) (Punishment, error) {
	var p Punishment
	var created int64
	err := row.Scan(&p.ID, &p.PunishmentID, &p.GuildID, &p.UserID, &p.Username, &p.Type, &p.Reason, &p.StaffID, &p.StaffUsername, &p.Duration, &p.Status, &p.AppealID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Punishment{}, ErrNotFound
		}
		return Punishment{}, err
	}
	p.CreatedAt = time.Unix(created, 0)
	return p, nil
}

func collectPunishments(rows *sql.Rows) ([]Punishment, error) {
	var list []Punishment
	for rows.Next() {
		p, err := scanPunishment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func statusOrActive(status string) string {
	if status == "" {
		return StatusActive
	}
	return status
}

var ErrNotFound = errors.New("not found")
