package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	MetricMessages        = "messages"
	MetricMembersJoined   = "members_joined"
	MetricMembersLeft     = "members_left"
	MetricPunishments     = "punishments"
	MetricAutomodTriggers = "automod_triggers"
	MetricReports         = "reports"
)

// Rollup periods. "all" uses a fixed period key so every increment lands on
// the same row.
var statPeriods = []struct {
	name string
	key  func(time.Time) string
}{
	{"day", func(t time.Time) string { return t.Format("2006-01-02") }},
	{"week", isoWeekKey},
	{"month", func(t time.Time) string { return t.Format("2006-01") }},
	{"year", func(t time.Time) string { return t.Format("2006") }},
	{"all", func(time.Time) string { return "all" }},
}

func isoWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// IncrementStat bumps the metric across every rollup period for the given
// moment.
func (s *Store) IncrementStat(ctx context.Context, guildID, metric string, at time.Time, delta int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, period := range statPeriods {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stats (guild_id, period, period_key, metric, value)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(guild_id, period, period_key, metric) DO UPDATE SET
				value = value + excluded.value
		`, guildID, period.name, period.key(at), metric, delta); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetStat reads one metric for a period at the given moment. Missing rows
// read as zero.
func (s *Store) GetStat(ctx context.Context, guildID, period, metric string, at time.Time) (int64, error) {
	key, err := periodKey(period, at)
	if err != nil {
		return 0, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(value), 0) FROM stats
		WHERE guild_id = ? AND period = ? AND period_key = ? AND metric = ?
	`, guildID, period, key, metric)
	var value int64
	if err := row.Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

// StatsForPeriod returns every metric recorded for the period containing at.
func (s *Store) StatsForPeriod(ctx context.Context, guildID, period string, at time.Time) (map[string]int64, error) {
	key, err := periodKey(period, at)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric, value FROM stats
		WHERE guild_id = ? AND period = ? AND period_key = ?
	`, guildID, period, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var metric string
		var value int64
		if err := rows.Scan(&metric, &value); err != nil {
			return nil, err
		}
		result[metric] = value
	}
	return result, rows.Err()
}

// MetricHistory returns the most recent period buckets for one metric,
// oldest first.
func (s *Store) MetricHistory(ctx context.Context, guildID, period, metric string, buckets int) (map[string]int64, error) {
	if buckets <= 0 {
		buckets = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT period_key, value FROM stats
		WHERE guild_id = ? AND period = ? AND metric = ?
		ORDER BY period_key DESC LIMIT ?
	`, guildID, period, metric, buckets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, rows.Err()
}

func periodKey(period string, at time.Time) (string, error) {
	for _, p := range statPeriods {
		if p.name == period {
			return p.key(at), nil
		}
	}
	return "", fmt.Errorf("unknown stats period %q", period)
}
