package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type EmbedSpec struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Footer      string `json:"footer,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   bool   `json:"timestamp,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Image       string `json:"image,omitempty"`
}

type CustomCommand struct {
	ID            int64
	GuildID       string
	Name          string
	ResponseType  string // text or embed
	TextResponse  string
	Embed         *EmbedSpec
	ReplyToUser   bool
	DeleteTrigger bool
	UsageCount    int64
}

type AutoResponseSettings struct {
	Enabled               bool     `json:"enabled"`
	ExactMatch            bool     `json:"exactMatch"`
	WildcardMatching      bool     `json:"wildcardMatching"`
	CaseSensitive         bool     `json:"caseSensitive"`
	CooldownSeconds       int      `json:"cooldown"`
	WhitelistedChannels   []string `json:"whitelistedChannels"`
	WhitelistedCategories []string `json:"whitelistedCategories"`
	BlacklistedChannels   []string `json:"blacklistedChannels"`
	BlacklistedCategories []string `json:"blacklistedCategories"`
	ReplyToUser           bool     `json:"replyToUser"`
	DeleteUserMessage     bool     `json:"deleteUserMessage"`
}

type AutoResponse struct {
	ID            int64
	GuildID       string
	Trigger       string
	Type          string // TEXT or EMBED
	Message       string
	Embed         *EmbedSpec
	Settings      AutoResponseSettings
	TriggerCount  int64
	LastTriggered *time.Time
}

func (s *Store) GetCustomCommand(ctx context.Context, guildID, name string) (CustomCommand, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, name, response_type, text_response, embed, reply_to_user, delete_trigger, usage_count
		FROM custom_commands WHERE guild_id = ? AND name = ?`, guildID, name)

	var cmd CustomCommand
	var embed string
	var reply, del int
	err := row.Scan(&cmd.ID, &cmd.GuildID, &cmd.Name, &cmd.ResponseType, &cmd.TextResponse, &embed, &reply, &del, &cmd.UsageCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CustomCommand{}, ErrNotFound
		}
		return CustomCommand{}, err
	}
	cmd.ReplyToUser = intToBool(reply)
	cmd.DeleteTrigger = intToBool(del)
	if embed != "" {
		var spec EmbedSpec
		if err := json.Unmarshal([]byte(embed), &spec); err != nil {
			return CustomCommand{}, err
		}
		cmd.Embed = &spec
	}
	return cmd, nil
}

func (s *Store) UpsertCustomCommand(ctx context.Context, cmd CustomCommand) error {
	embed := ""
	if cmd.Embed != nil {
		data, err := json.Marshal(cmd.Embed)
		if err != nil {
			return err
		}
		embed = string(data)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_commands (guild_id, name, response_type, text_response, embed, reply_to_user, delete_trigger)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, name) DO UPDATE SET
			response_type = excluded.response_type,
			text_response = excluded.text_response,
			embed = excluded.embed,
			reply_to_user = excluded.reply_to_user,
			delete_trigger = excluded.delete_trigger
	`, cmd.GuildID, cmd.Name, cmd.ResponseType, cmd.TextResponse, embed, boolToInt(cmd.ReplyToUser), boolToInt(cmd.DeleteTrigger))
	return err
}

func (s *Store) ListCustomCommands(ctx context.Context, guildID string) ([]CustomCommand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, name, response_type, text_response, embed, reply_to_user, delete_trigger, usage_count
		FROM custom_commands WHERE guild_id = ? ORDER BY name`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []CustomCommand
	for rows.Next() {
		var cmd CustomCommand
		var embed string
		var reply, del int
		if err := rows.Scan(&cmd.ID, &cmd.GuildID, &cmd.Name, &cmd.ResponseType, &cmd.TextResponse, &embed, &reply, &del, &cmd.UsageCount); err != nil {
			return nil, err
		}
		cmd.ReplyToUser = intToBool(reply)
		cmd.DeleteTrigger = intToBool(del)
		if embed != "" {
			var spec EmbedSpec
			if err := json.Unmarshal([]byte(embed), &spec); err != nil {
				return nil, err
			}
			cmd.Embed = &spec
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

func (s *Store) DeleteCustomCommand(ctx context.Context, guildID, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM custom_commands WHERE guild_id = ? AND name = ?`, guildID, name)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IncrementCommandUsage(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE custom_commands SET usage_count = usage_count + 1 WHERE id = ?`, id)
	return err
}

func (s *Store) ListAutoResponses(ctx context.Context, guildID string) ([]AutoResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, trigger_text, type, message, embed, settings, trigger_count, last_triggered
		FROM auto_responses WHERE guild_id = ?`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []AutoResponse
	for rows.Next() {
		var resp AutoResponse
		var embed, settings string
		var last sql.NullInt64
		if err := rows.Scan(&resp.ID, &resp.GuildID, &resp.Trigger, &resp.Type, &resp.Message, &embed, &settings, &resp.TriggerCount, &last); err != nil {
			return nil, err
		}
		if embed != "" {
			var spec EmbedSpec
			if err := json.Unmarshal([]byte(embed), &spec); err != nil {
				return nil, err
			}
			resp.Embed = &spec
		}
		if settings != "" {
			if err := json.Unmarshal([]byte(settings), &resp.Settings); err != nil {
				return nil, err
			}
		}
		if last.Valid {
			value := time.Unix(last.Int64, 0)
			resp.LastTriggered = &value
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

func (s *Store) AddAutoResponse(ctx context.Context, resp AutoResponse) (int64, error) {
	embed := ""
	if resp.Embed != nil {
		data, err := json.Marshal(resp.Embed)
		if err != nil {
			return 0, err
		}
		embed = string(data)
	}
	settings, err := json.Marshal(resp.Settings)
	if err != nil {
		return 0, err
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_responses (guild_id, trigger_text, type, message, embed, settings)
		VALUES (?, ?, ?, ?, ?, ?)
	`, resp.GuildID, resp.Trigger, resp.Type, resp.Message, embed, string(settings))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateAutoResponse rewrites the trigger, response and settings of an
// existing row. The trigger count survives the edit.
func (s *Store) UpdateAutoResponse(ctx context.Context, resp AutoResponse) error {
	embed := ""
	if resp.Embed != nil {
		data, err := json.Marshal(resp.Embed)
		if err != nil {
			return err
		}
		embed = string(data)
	}
	settings, err := json.Marshal(resp.Settings)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE auto_responses SET trigger_text = ?, type = ?, message = ?, embed = ?, settings = ?
		WHERE id = ? AND guild_id = ?
	`, resp.Trigger, resp.Type, resp.Message, embed, string(settings), resp.ID, resp.GuildID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAutoResponse(ctx context.Context, guildID string, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auto_responses WHERE id = ? AND guild_id = ?`, id, guildID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FlushAutoResponseCounts applies batched trigger-count increments in one
// transaction, mirroring the batched analytics writes the responder queues.
func (s *Store) FlushAutoResponseCounts(ctx context.Context, counts map[int64]int64) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	for id, count := range counts {
		if _, err := tx.ExecContext(ctx, `
			UPDATE auto_responses SET trigger_count = trigger_count + ?, last_triggered = ? WHERE id = ?
		`, count, now, id); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
