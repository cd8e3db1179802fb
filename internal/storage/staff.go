package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Staff permission strings, matched case-sensitively against a role's
// permission list. Administrator implies everything.
const (
	PermAdministrator = "ADMINISTRATOR"
	PermManageStaff   = "MANAGE_STAFF_MEMBERS"
	PermWarnUsers     = "WARN_USERS"
	PermKickUsers     = "KICK_USERS"
	PermBanUsers      = "BAN_USERS"
	PermTimeoutUsers  = "TIMEOUT_USERS"
	PermPurgeMessages = "PURGE_MESSAGES"
	PermSetNotes      = "SET_NOTES"
	PermDMUsers       = "DM_USERS"
)

type ActionLimits struct {
	Enabled bool
	Warn    int
	Kick    int
	Ban     int
	Timeout int
	Period  string // parsed with time.ParseDuration, e.g. "3m"
}

// StaffRole has a priority where a LOWER number outranks a higher one.
type StaffRole struct {
	ID            int64
	GuildID       string
	Name          string
	Priority      int
	DiscordRoleID string
	Permissions   []string
	Limits        ActionLimits
}

type StaffMember struct {
	GuildID string
	UserID  string
	RoleID  int64
	AddedAt time.Time
}

func (r StaffRole) HasPermission(permission string) bool {
	for _, p := range r.Permissions {
		if p == PermAdministrator || p == permission {
			return true
		}
	}
	return false
}

func (s *Store) CreateStaffRole(ctx context.Context, role StaffRole) (int64, error) {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_roles (guild_id, name, priority, discord_role_id, permissions, limits_enabled, limit_warn, limit_kick, limit_ban, limit_timeout, limit_period)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, role.GuildID, role.Name, role.Priority, role.DiscordRoleID, string(perms),
		boolToInt(role.Limits.Enabled), role.Limits.Warn, role.Limits.Kick, role.Limits.Ban, role.Limits.Timeout, role.Limits.Period)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Store) GetStaffRole(ctx context.Context, roleID int64) (StaffRole, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, name, priority, discord_role_id, permissions, limits_enabled, limit_warn, limit_kick, limit_ban, limit_timeout, limit_period
		FROM staff_roles WHERE id = ?`, roleID)
	return scanStaffRole(row)
}

func (s *Store) GetStaffRoleByName(ctx context.Context, guildID, name string) (StaffRole, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, name, priority, discord_role_id, permissions, limits_enabled, limit_warn, limit_kick, limit_ban, limit_timeout, limit_period
		FROM staff_roles WHERE guild_id = ? AND name = ?`, guildID, name)
	return scanStaffRole(row)
}

func (s *Store) ListStaffRoles(ctx context.Context, guildID string) ([]StaffRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, name, priority, discord_role_id, permissions, limits_enabled, limit_warn, limit_kick, limit_ban, limit_timeout, limit_period
		FROM staff_roles WHERE guild_id = ? ORDER BY priority`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []StaffRole
	for rows.Next() {
		role, err := scanStaffRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) DeleteStaffRole(ctx context.Context, roleID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM staff_roles WHERE id = ?`, roleID)
	return err
}

func (s *Store) UpsertStaffMember(ctx context.Context, member StaffMember) error {
	added := member.AddedAt
	if added.IsZero() {
		added = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff_members (guild_id, user_id, role_id, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET role_id = excluded.role_id
	`, member.GuildID, member.UserID, member.RoleID, added.Unix())
	return err
}

func (s *Store) GetStaffMember(ctx context.Context, guildID, userID string) (StaffMember, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, role_id, added_at FROM staff_members
		WHERE guild_id = ? AND user_id = ?`, guildID, userID)

	var member StaffMember
	var added int64
	err := row.Scan(&member.GuildID, &member.UserID, &member.RoleID, &added)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StaffMember{}, ErrNotFound
		}
		return StaffMember{}, err
	}
	member.AddedAt = time.Unix(added, 0)
	return member, nil
}

func (s *Store) RemoveStaffMember(ctx context.Context, guildID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM staff_members WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return err
}

func (s *Store) ListStaffMembers(ctx context.Context, guildID string) ([]StaffMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, user_id, role_id, added_at FROM staff_members WHERE guild_id = ?`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []StaffMember
	for rows.Next() {
		var member StaffMember
		var added int64
		if err := rows.Scan(&member.GuildID, &member.UserID, &member.RoleID, &added); err != nil {
			return nil, err
		}
		member.AddedAt = time.Unix(added, 0)
		members = append(members, member)
	}
	return members, rows.Err()
}

func scanStaffRole(row rowScanner) (StaffRole, error) {
	var role StaffRole
	var perms string
	var limitsEnabled int
	err := row.Scan(&role.ID, &role.GuildID, &role.Name, &role.Priority, &role.DiscordRoleID, &perms,
		&limitsEnabled, &role.Limits.Warn, &role.Limits.Kick, &role.Limits.Ban, &role.Limits.Timeout, &role.Limits.Period)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StaffRole{}, ErrNotFound
		}
		return StaffRole{}, err
	}
	role.Limits.Enabled = intToBool(limitsEnabled)
	if err := json.Unmarshal([]byte(perms), &role.Permissions); err != nil {
		return StaffRole{}, err
	}
	return role, nil
}
