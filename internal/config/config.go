package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken    string           `yaml:"discord_token"`
	GuildID         string           `yaml:"guild_id"`
	DatabasePath    string           `yaml:"database_path"`
	LogLevel        string           `yaml:"log_level"`
	BaseURL         string           `yaml:"base_url"`
	CommandPrefix   string           `yaml:"command_prefix"`
	FullAccessUsers []string         `yaml:"full_access_users"`
	Moderation      ModerationConfig `yaml:"moderation"`
	Phishing        PhishingConfig   `yaml:"phishing"`
	Dashboard       DashboardConfig  `yaml:"dashboard"`
}

type ModerationConfig struct {
	LogChannel      string `yaml:"log_channel"`
	DMOnAction      bool   `yaml:"dm_on_action"`
	AppealsEnabled  bool   `yaml:"appeals_enabled"`
	CustomAppealURL string `yaml:"custom_appeal_url"`
}

type PhishingConfig struct {
	FeedURL                string `yaml:"feed_url"`
	RefreshIntervalMinutes int    `yaml:"refresh_interval_minutes"`
}

type DashboardConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	JWTSecret     string `yaml:"jwt_secret"`
	AdminPassword string `yaml:"admin_password"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/warden.db",
		LogLevel:      "info",
		CommandPrefix: "!",
		Moderation: ModerationConfig{
			DMOnAction:     true,
			AppealsEnabled: true,
		},
		Phishing: PhishingConfig{
			FeedURL:                "https://raw.githubusercontent.com/Discord-AntiScam/scam-links/main/list.json",
			RefreshIntervalMinutes: 60,
		},
		Dashboard: DashboardConfig{
			Enabled:       false,
			Addr:          ":8080",
			TokenTTLHours: 12,
		},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return Config{}, errors.New("GUILD_ID is required")
	}
	if cfg.Dashboard.Enabled && cfg.Dashboard.JWTSecret == "" {
		return Config{}, errors.New("DASHBOARD_JWT_SECRET is required when the dashboard is enabled")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.BaseURL = envString("BASE_URL", cfg.BaseURL)
	cfg.CommandPrefix = envString("COMMAND_PREFIX", cfg.CommandPrefix)
	if value := os.Getenv("FULL_ACCESS_USERS"); value != "" {
		cfg.FullAccessUsers = splitList(value)
	}
	cfg.Moderation.LogChannel = envString("MODERATION_LOG_CHANNEL", cfg.Moderation.LogChannel)
	cfg.Moderation.DMOnAction = envBool("MODERATION_DM_ON_ACTION", cfg.Moderation.DMOnAction)
	cfg.Moderation.AppealsEnabled = envBool("APPEALS_ENABLED", cfg.Moderation.AppealsEnabled)
	cfg.Moderation.CustomAppealURL = envString("CUSTOM_APPEAL_URL", cfg.Moderation.CustomAppealURL)
	cfg.Phishing.FeedURL = envString("PHISHING_FEED_URL", cfg.Phishing.FeedURL)
	cfg.Phishing.RefreshIntervalMinutes = envInt("PHISHING_REFRESH_MINUTES", cfg.Phishing.RefreshIntervalMinutes)
	cfg.Dashboard.Enabled = envBool("DASHBOARD_ENABLED", cfg.Dashboard.Enabled)
	cfg.Dashboard.Addr = envString("DASHBOARD_ADDR", cfg.Dashboard.Addr)
	cfg.Dashboard.JWTSecret = envString("DASHBOARD_JWT_SECRET", cfg.Dashboard.JWTSecret)
	cfg.Dashboard.AdminPassword = envString("DASHBOARD_ADMIN_PASSWORD", cfg.Dashboard.AdminPassword)
	cfg.Dashboard.TokenTTLHours = envInt("DASHBOARD_TOKEN_TTL_HOURS", cfg.Dashboard.TokenTTLHours)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
