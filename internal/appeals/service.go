// Package appeals handles punishment appeals: one appeal per punishment,
// submitted by the punished user, decided by staff through the dashboard or
// a command. Approval deactivates the punishment and lifts any standing ban
// or timeout.
package appeals

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/storage"
)

const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusDenied   = "Denied"
)

var (
	ErrUnknownPunishment = errors.New("unknown punishment")
	ErrNotYourCase       = errors.New("this punishment does not belong to you")
	ErrNotActive         = errors.New("this punishment is not active")
	ErrAlreadyAppealed   = errors.New("this punishment has already been appealed")
	ErrAlreadyDecided    = errors.New("this appeal has already been decided")
	ErrEmptyContent      = errors.New("appeal content is required")
)

type Service struct {
	store   *storage.Store
	metrics *metrics.Set
	logger  *zap.Logger
}

func New(store *storage.Store, m *metrics.Set, logger *zap.Logger) *Service {
	return &Service{store: store, metrics: m, logger: logger}
}

// Submit files an appeal against a punishment the user owns.
func (s *Service) Submit(ctx context.Context, punishmentID, userID, content string) (storage.Appeal, error) {
	if content == "" {
		return storage.Appeal{}, ErrEmptyContent
	}
	punishment, err := s.store.GetPunishment(ctx, punishmentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Appeal{}, ErrUnknownPunishment
		}
		return storage.Appeal{}, err
	}
	if punishment.UserID != userID {
		return storage.Appeal{}, ErrNotYourCase
	}
	if punishment.Status != storage.StatusActive {
		return storage.Appeal{}, ErrNotActive
	}
	if _, err := s.store.GetAppealForPunishment(ctx, punishmentID); err == nil {
		return storage.Appeal{}, ErrAlreadyAppealed
	} else if !errors.Is(err, storage.ErrNotFound) {
		return storage.Appeal{}, err
	}

	appeal := storage.Appeal{
		AppealID:     moderation.NewAppealID(),
		GuildID:      punishment.GuildID,
		PunishmentID: punishmentID,
		UserID:       userID,
		Content:      content,
		Status:       StatusPending,
		CreatedAt:    time.Now(),
	}
	if err := s.store.AddAppeal(ctx, appeal); err != nil {
		return storage.Appeal{}, err
	}
	if err := s.store.UpdatePunishmentStatus(ctx, punishmentID, storage.StatusAppealed, appeal.AppealID); err != nil {
		s.logger.Warn("appeal link not recorded", zap.String("punishment", punishmentID), zap.Error(err))
	}
	s.logger.Info("appeal submitted", zap.String("appeal", appeal.AppealID), zap.String("punishment", punishmentID))
	return appeal, nil
}

// Approve deactivates the punishment and reverses its standing effect.
func (s *Service) Approve(ctx context.Context, session moderation.Session, appealID, decidedBy string) error {
	appeal, err := s.load(ctx, appealID)
	if err != nil {
		return err
	}
	punishment, err := s.store.GetPunishment(ctx, appeal.PunishmentID)
	if err != nil {
		return err
	}

	if err := s.store.DecideAppeal(ctx, appealID, StatusApproved, decidedBy, time.Now()); err != nil {
		return err
	}
	if err := s.store.UpdatePunishmentStatus(ctx, appeal.PunishmentID, storage.StatusInactive, appealID); err != nil {
		return err
	}

	switch punishment.Type {
	case storage.PunishmentBan:
		if err := session.GuildBanDelete(punishment.GuildID, punishment.UserID); err != nil {
			s.logger.Warn("unban on appeal failed", zap.String("user", punishment.UserID), zap.Error(err))
		}
		if err := s.store.MarkTemporaryBansProcessedForUser(ctx, punishment.GuildID, punishment.UserID); err != nil {
			s.logger.Warn("temporary ban cleanup failed", zap.Error(err))
		}
	case storage.PunishmentTimeout:
		if err := session.GuildMemberTimeout(punishment.GuildID, punishment.UserID, nil); err != nil {
			s.logger.Warn("timeout removal on appeal failed", zap.String("user", punishment.UserID), zap.Error(err))
		}
	}

	s.metrics.AppealDecided(StatusApproved)
	s.logger.Info("appeal approved", zap.String("appeal", appealID), zap.String("by", decidedBy))
	return nil
}

// Deny records the decision; the punishment returns to Active.
func (s *Service) Deny(ctx context.Context, appealID, decidedBy string) error {
	appeal, err := s.load(ctx, appealID)
	if err != nil {
		return err
	}
	if err := s.store.DecideAppeal(ctx, appealID, StatusDenied, decidedBy, time.Now()); err != nil {
		return err
	}
	if err := s.store.UpdatePunishmentStatus(ctx, appeal.PunishmentID, storage.StatusActive, appealID); err != nil {
		return err
	}
	s.metrics.AppealDecided(StatusDenied)
	s.logger.Info("appeal denied", zap.String("appeal", appealID), zap.String("by", decidedBy))
	return nil
}

func (s *Service) load(ctx context.Context, appealID string) (storage.Appeal, error) {
	appeal, err := s.store.GetAppeal(ctx, appealID)
	if err != nil {
		return storage.Appeal{}, err
	}
	if appeal.Status != StatusPending {
		return storage.Appeal{}, ErrAlreadyDecided
	}
	return appeal, nil
}
