package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// GuildSettings are the dashboard-editable knobs that are not part of the
// per-category automod document.
type GuildSettings struct {
	GuildID         string
	CommandPrefix   string
	AppealsEnabled  bool
	CustomAppealURL string
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT command_prefix, appeals_enabled, custom_appeal_url
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var appeals int
	err := row.Scan(&result.CommandPrefix, &appeals, &result.CustomAppealURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	result.AppealsEnabled = appeals == 1
	if result.CommandPrefix == "" {
		result.CommandPrefix = defaults.CommandPrefix
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, command_prefix, appeals_enabled, custom_appeal_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			command_prefix = excluded.command_prefix,
			appeals_enabled = excluded.appeals_enabled,
			custom_appeal_url = excluded.custom_appeal_url
	`, settings.GuildID, settings.CommandPrefix, boolToInt(settings.AppealsEnabled), settings.CustomAppealURL)
	return err
}

func (s *Store) SetUserNote(ctx context.Context, guildID, userID, note string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_notes (guild_id, user_id, note, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			note = excluded.note,
			updated_at = excluded.updated_at
	`, guildID, userID, note, time.Now().Unix())
	return err
}

func (s *Store) GetUserNote(ctx context.Context, guildID, userID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT note FROM user_notes WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	var note string
	if err := row.Scan(&note); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return note, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func intToBool(value int) bool { return value == 1 }

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
