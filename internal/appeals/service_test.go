package appeals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/metrics"
	"warden/internal/storage"
)

type fakeSession struct {
	unbans          []string
	timeoutsCleared []string
}

func (f *fakeSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID}}, nil
}

func (f *fakeSession) GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSession) GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSession) GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error {
	f.unbans = append(f.unbans, userID)
	return nil
}

func (f *fakeSession) GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	if until == nil {
		f.timeoutsCleared = append(f.timeoutsCleared, userID)
	}
	return nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{}, nil
}

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(store, metrics.New(), zap.NewNop()), store
}

func seedPunishment(t *testing.T, store *storage.Store, punishmentID, punishmentType string) {
	t.Helper()
	err := store.AddPunishment(context.Background(), storage.Punishment{
		PunishmentID: punishmentID,
		GuildID:      "g1",
		UserID:       "u1",
		Username:     "target",
		Type:         punishmentType,
		Reason:       "being rude",
	})
	if err != nil {
		t.Fatalf("add punishment: %v", err)
	}
}

func TestSubmitValidations(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedPunishment(t, store, "P1A3406B", storage.PunishmentWarn)

	if _, err := svc.Submit(ctx, "P1A3406B", "u1", ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := svc.Submit(ctx, "missing", "u1", "please"); !errors.Is(err, ErrUnknownPunishment) {
		t.Fatalf("expected ErrUnknownPunishment, got %v", err)
	}
	if _, err := svc.Submit(ctx, "P1A3406B", "someone-else", "please"); !errors.Is(err, ErrNotYourCase) {
		t.Fatalf("expected ErrNotYourCase, got %v", err)
	}

	appeal, err := svc.Submit(ctx, "P1A3406B", "u1", "I was quoting someone")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if appeal.Status != StatusPending {
		t.Fatalf("status = %q", appeal.Status)
	}

	// Submitting marks the punishment appealed, which blocks a second appeal
	// twice over.
	p, _ := store.GetPunishment(ctx, "P1A3406B")
	if p.Status != storage.StatusAppealed || p.AppealID != appeal.AppealID {
		t.Fatalf("punishment not linked, got %+v", p)
	}
	if _, err := svc.Submit(ctx, "P1A3406B", "u1", "again"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestApproveLiftsBan(t *testing.T) {
	svc, store := newTestService(t)
	session := &fakeSession{}
	ctx := context.Background()
	seedPunishment(t, store, "P1B3416C", storage.PunishmentBan)

	appeal, err := svc.Submit(ctx, "P1B3416C", "u1", "it was my brother")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Approve(ctx, session, appeal.AppealID, "admin"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if len(session.unbans) != 1 || session.unbans[0] != "u1" {
		t.Fatalf("expected the ban lifted, got %v", session.unbans)
	}

	p, _ := store.GetPunishment(ctx, "P1B3416C")
	if p.Status != storage.StatusInactive {
		t.Fatalf("punishment status = %q", p.Status)
	}
	decided, _ := store.GetAppeal(ctx, appeal.AppealID)
	if decided.Status != StatusApproved || decided.DecidedBy != "admin" || decided.DecidedAt == nil {
		t.Fatalf("unexpected appeal %+v", decided)
	}

	if err := svc.Approve(ctx, session, appeal.AppealID, "admin"); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestApproveClearsTimeout(t *testing.T) {
	svc, store := newTestService(t)
	session := &fakeSession{}
	ctx := context.Background()
	seedPunishment(t, store, "P1C3426D", storage.PunishmentTimeout)

	appeal, err := svc.Submit(ctx, "P1C3426D", "u1", "unfair")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Approve(ctx, session, appeal.AppealID, "admin"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(session.timeoutsCleared) != 1 {
		t.Fatalf("expected the timeout cleared, got %v", session.timeoutsCleared)
	}
}

func TestDenyReactivatesPunishment(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	seedPunishment(t, store, "P1D3436E", storage.PunishmentWarn)

	appeal, err := svc.Submit(ctx, "P1D3436E", "u1", "come on")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Deny(ctx, appeal.AppealID, "admin"); err != nil {
		t.Fatalf("deny: %v", err)
	}

	p, _ := store.GetPunishment(ctx, "P1D3436E")
	if p.Status != storage.StatusActive {
		t.Fatalf("denied appeal should reactivate the punishment, got %q", p.Status)
	}
	decided, _ := store.GetAppeal(ctx, appeal.AppealID)
	if decided.Status != StatusDenied {
		t.Fatalf("appeal status = %q", decided.Status)
	}

	if err := svc.Deny(ctx, appeal.AppealID, "admin"); !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}
