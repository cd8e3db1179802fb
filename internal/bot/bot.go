// Package bot owns the gateway session and wires Discord events into the
// automod evaluator, the responder and the slash command handlers.
package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/automod"
	"warden/internal/config"
	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/reports"
	"warden/internal/responder"
	"warden/internal/staff"
	"warden/internal/stats"
	"warden/internal/storage"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	session   *discordgo.Session
	automod   *automod.Evaluator
	actions   *moderation.Service
	responder *responder.Service
	reports   *reports.Service
	staff     *staff.Service
	stats     *stats.Service
	metrics   *metrics.Set
	sweeper   *moderation.Sweeper
	stop      chan struct{}
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, evaluator *automod.Evaluator, actions *moderation.Service, responderSvc *responder.Service, reportsSvc *reports.Service, staffSvc *staff.Service, statsSvc *stats.Service, m *metrics.Set) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		session:   session,
		automod:   evaluator,
		actions:   actions,
		responder: responderSvc,
		reports:   reportsSvc,
		staff:     staffSvc,
		stats:     statsSvc,
		metrics:   m,
		stop:      make(chan struct{}),
	}
	b.sweeper = moderation.NewSweeper(store, session, logger, time.Minute)
	return b, nil
}

// Session exposes the gateway session for components that only need the
// moderation slice of it, such as the dashboard appeal handlers.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	b.actions.SetBotUser(b.session.State.User.ID)

	if err := b.registerCommands(); err != nil {
		return err
	}

	go b.sweeper.Run(b.stop)
	b.responder.StartFlusher(b.stop)
	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	close(b.stop)
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}
