package moderation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"warden/internal/storage"
)

// Sweeper lifts temporary bans once they expire. Rows stay in the table with
// processed=1 so a ban history survives the unban.
type Sweeper struct {
	store    *storage.Store
	session  Session
	logger   *zap.Logger
	interval time.Duration
}

func NewSweeper(store *storage.Store, session Session, logger *zap.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, session: session, logger: logger, interval: interval}
}

func (s *Sweeper) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(context.Background())
		case <-stop:
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	bans, err := s.store.ExpiredTemporaryBans(ctx, time.Now())
	if err != nil {
		s.logger.Error("temporary ban query failed", zap.Error(err))
		return
	}
	for _, ban := range bans {
		if err := s.session.GuildBanDelete(ban.GuildID, ban.UserID); err != nil {
			// Manual unbans surface as 404 here; mark the row either way so
			// it is not retried forever.
			s.logger.Warn("unban failed", zap.String("guild", ban.GuildID), zap.String("user", ban.UserID), zap.Error(err))
		} else {
			s.logger.Info("temporary ban expired", zap.String("guild", ban.GuildID), zap.String("user", ban.UserID), zap.String("punishment", ban.PunishmentID))
		}
		if err := s.store.MarkTemporaryBanProcessed(ctx, ban.ID); err != nil {
			s.logger.Error("temporary ban not marked processed", zap.Int64("id", ban.ID), zap.Error(err))
		}
	}
}
