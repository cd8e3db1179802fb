package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ActionSet mirrors the per-category enforcement toggles. Precedence when
// several are enabled is ban > kick > timeout > warn; DeleteMessage is
// independent of the rest.
type ActionSet struct {
	DeleteMessage   bool   `json:"deleteMessage"`
	WarnUser        bool   `json:"warnUser"`
	Timeout         bool   `json:"timeout"`
	TimeoutDuration int    `json:"timeoutDuration"`
	TimeoutUnit     string `json:"timeoutUnit"` // m, h, d
	KickUser        bool   `json:"kickUser"`
	BanUser         bool   `json:"banUser"`
	IsTempBan       bool   `json:"isTempBan"`
	BanDuration     int    `json:"banDuration"`
	BanUnit         string `json:"banUnit"` // d, w, m
}

// ChannelScope is an exclusion list: with AllChannels false, channels and
// categories listed in SpecificChannels are exempt from the rule.
type ChannelScope struct {
	AllChannels      bool     `json:"allChannels"`
	SpecificChannels []string `json:"specificChannels"`
}

type SpamSettings struct {
	Enabled             bool         `json:"enabled"`
	MessageLimit        int          `json:"messageLimit"`
	MessageDuration     int          `json:"messageDuration"`
	MessageDurationUnit string       `json:"messageDurationUnit"` // s, m
	MentionLimit        int          `json:"mentionLimit"`
	DuplicateLimit      int          `json:"duplicateLimit"`
	Actions             ActionSet    `json:"actions"`
	Channels            ChannelScope `json:"channels"`
}

type InviteSettings struct {
	Enabled  bool         `json:"enabled"`
	Actions  ActionSet    `json:"actions"`
	Channels ChannelScope `json:"channels"`
}

type PhishingSettings struct {
	Enabled         bool         `json:"enabled"`
	UseExternalFeed bool         `json:"useExternalFeed"`
	CustomDomains   []string     `json:"customDomains"`
	Actions         ActionSet    `json:"actions"`
	Channels        ChannelScope `json:"channels"`
}

type AltPreventionSettings struct {
	Enabled        bool      `json:"enabled"`
	AccountAgeDays int       `json:"accountAgeDays"`
	CustomMessage  string    `json:"customMessage"`
	Actions        ActionSet `json:"actions"`
}

type AutoModSettings struct {
	GuildID       string                `json:"guildId"`
	Spam          SpamSettings          `json:"spamProtection"`
	Invites       InviteSettings        `json:"discordInviteFilter"`
	Phishing      PhishingSettings      `json:"phishingProtection"`
	AltPrevention AltPreventionSettings `json:"altPrevention"`
}

func DefaultAutoModSettings(guildID string) AutoModSettings {
	return AutoModSettings{
		GuildID: guildID,
		Spam: SpamSettings{
			MessageLimit:        5,
			MessageDuration:     4,
			MessageDurationUnit: "s",
			MentionLimit:        5,
			DuplicateLimit:      3,
			Actions:             ActionSet{DeleteMessage: true, BanDuration: 7, BanUnit: "d", TimeoutDuration: 5, TimeoutUnit: "m"},
			Channels:            ChannelScope{AllChannels: true},
		},
		Invites: InviteSettings{
			Actions:  ActionSet{DeleteMessage: true, WarnUser: true, BanDuration: 7, BanUnit: "d", TimeoutDuration: 5, TimeoutUnit: "m"},
			Channels: ChannelScope{AllChannels: true},
		},
		Phishing: PhishingSettings{
			UseExternalFeed: true,
			Actions:         ActionSet{DeleteMessage: true, Timeout: true, TimeoutDuration: 10, TimeoutUnit: "m", BanDuration: 7, BanUnit: "d"},
			Channels:        ChannelScope{AllChannels: true},
		},
		AltPrevention: AltPreventionSettings{
			AccountAgeDays: 7,
			CustomMessage:  "Your account is too new to join this server.",
			Actions:        ActionSet{KickUser: true, TimeoutDuration: 24, TimeoutUnit: "h", BanDuration: 7, BanUnit: "d"},
		},
	}
}

// GetAutoModSettings creates and persists the default document on first read
// for a guild.
func (s *Store) GetAutoModSettings(ctx context.Context, guildID string) (AutoModSettings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT document FROM automod_settings WHERE guild_id = ?`, guildID)

	var document string
	err := row.Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			settings := DefaultAutoModSettings(guildID)
			if err := s.SaveAutoModSettings(ctx, settings); err != nil {
				return AutoModSettings{}, err
			}
			return settings, nil
		}
		return AutoModSettings{}, err
	}

	var settings AutoModSettings
	if err := json.Unmarshal([]byte(document), &settings); err != nil {
		return AutoModSettings{}, err
	}
	settings.GuildID = guildID
	return settings, nil
}

func (s *Store) SaveAutoModSettings(ctx context.Context, settings AutoModSettings) error {
	document, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO automod_settings (guild_id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, settings.GuildID, string(document), time.Now().Unix())
	return err
}
