package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/metrics"
	"warden/internal/staff"
	"warden/internal/storage"
)

type fakeSession struct {
	kicks      []string
	kickErr    error
	bans       []string
	banErr     error
	unbans     []string
	timeouts   []string
	timeoutErr error
	until      *time.Time
	dms        []*discordgo.MessageEmbed
	logs       []*discordgo.MessageEmbed
}

func (f *fakeSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID}}, nil
}

func (f *fakeSession) GuildMemberDeleteWithReason(guildID, userID, reason string, options ...discordgo.RequestOption) error {
	f.kicks = append(f.kicks, userID)
	return f.kickErr
}

func (f *fakeSession) GuildBanCreateWithReason(guildID, userID, reason string, days int, options ...discordgo.RequestOption) error {
	f.bans = append(f.bans, userID)
	return f.banErr
}

func (f *fakeSession) GuildBanDelete(guildID, userID string, options ...discordgo.RequestOption) error {
	f.unbans = append(f.unbans, userID)
	return nil
}

func (f *fakeSession) GuildMemberTimeout(guildID, userID string, until *time.Time, options ...discordgo.RequestOption) error {
	f.timeouts = append(f.timeouts, userID)
	f.until = until
	return f.timeoutErr
}

func (f *fakeSession) UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if channelID == "log-channel" {
		f.logs = append(f.logs, embed)
	} else {
		f.dms = append(f.dms, embed)
	}
	return &discordgo.Message{}, nil
}

func newTestService(t *testing.T, fullAccess []string, cfg Config) (*Service, *storage.Store, *staff.Service, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	staffSvc := staff.New(store, fullAccess)
	svc := NewService(store, staffSvc, metrics.New(), zap.NewNop(), cfg)
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	svc.WithClock(clock)
	return svc, store, staffSvc, clock
}

func seedStaff(t *testing.T, store *storage.Store, userID string, priority int, perms []string, limits storage.ActionLimits) {
	t.Helper()
	ctx := context.Background()
	roleID, err := store.CreateStaffRole(ctx, storage.StaffRole{
		GuildID:     "g1",
		Name:        "role-" + userID,
		Priority:    priority,
		Permissions: perms,
		Limits:      limits,
	})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := store.UpsertStaffMember(ctx, storage.StaffMember{GuildID: "g1", UserID: userID, RoleID: roleID}); err != nil {
		t.Fatalf("upsert member: %v", err)
	}
}

func TestWarnValidationChain(t *testing.T) {
	svc, store, _, _ := newTestService(t, nil, Config{BotUserID: "bot"})
	seedStaff(t, store, "mod", 2, []string{storage.PermWarnUsers}, storage.ActionLimits{})
	seedStaff(t, store, "peer", 2, []string{storage.PermWarnUsers}, storage.ActionLimits{})
	seedStaff(t, store, "senior", 1, nil, storage.ActionLimits{})
	session := &fakeSession{}
	ctx := context.Background()

	cases := []struct {
		name    string
		req     Request
		message string
	}{
		{"bot target", Request{GuildID: "g1", TargetID: "bot", ActorID: "mod"}, "I will not act on myself."},
		{"self target", Request{GuildID: "g1", TargetID: "mod", ActorID: "mod"}, "You cannot act on yourself."},
		{"not staff", Request{GuildID: "g1", TargetID: "u1", ActorID: "rando"}, "You are not allowed to warn users."},
		{"equal rank", Request{GuildID: "g1", TargetID: "peer", ActorID: "mod"}, "You cannot act on a staff member of equal or higher rank."},
		{"higher rank", Request{GuildID: "g1", TargetID: "senior", ActorID: "mod"}, "You cannot act on a staff member of equal or higher rank."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := svc.Warn(ctx, session, tc.req)
			if result.Success {
				t.Fatalf("expected rejection")
			}
			if result.Message != tc.message {
				t.Fatalf("message = %q, want %q", result.Message, tc.message)
			}
		})
	}

	punishments, _ := store.ListPunishments(ctx, "g1", 50, 0)
	if len(punishments) != 0 {
		t.Fatalf("no punishment should be recorded, got %d", len(punishments))
	}
}

func TestWarnRecordsCase(t *testing.T) {
	svc, store, _, _ := newTestService(t, nil, Config{LogChannelID: "log-channel", DMOnAction: true})
	seedStaff(t, store, "mod", 1, []string{storage.PermWarnUsers}, storage.ActionLimits{})
	session := &fakeSession{}
	ctx := context.Background()

	result := svc.Warn(ctx, session, Request{
		GuildID: "g1", TargetID: "u1", TargetName: "troublemaker",
		ActorID: "mod", ActorName: "moderator", Reason: "spamming",
	})
	if !result.Success {
		t.Fatalf("warn failed: %s", result.Message)
	}
	if result.PunishmentID == "" {
		t.Fatalf("expected a case ID")
	}

	p, err := store.GetPunishment(ctx, result.PunishmentID)
	if err != nil {
		t.Fatalf("get punishment: %v", err)
	}
	if p.Type != storage.PunishmentWarn || p.Reason != "spamming" || p.Status != storage.StatusActive {
		t.Fatalf("unexpected punishment %+v", p)
	}

	if len(session.dms) != 1 {
		t.Fatalf("expected a DM to the target, got %d", len(session.dms))
	}
	if len(session.logs) != 1 {
		t.Fatalf("expected a log channel entry, got %d", len(session.logs))
	}
}

func TestSystemRequestSkipsStaffChecks(t *testing.T) {
	svc, store, _, _ := newTestService(t, nil, Config{})
	session := &fakeSession{}
	ctx := context.Background()

	result := svc.Warn(ctx, session, Request{
		GuildID: "g1", TargetID: "u1", TargetName: "bot-target",
		Reason: "Auto-moderation: spam", System: true,
	})
	if !result.Success {
		t.Fatalf("system warn failed: %s", result.Message)
	}
	punishments, _ := store.ListUserPunishments(ctx, "g1", "u1")
	if len(punishments) != 1 {
		t.Fatalf("expected one case, got %d", len(punishments))
	}
}

func TestTimeoutSetsExpiry(t *testing.T) {
	svc, store, _, clock := newTestService(t, nil, Config{})
	seedStaff(t, store, "mod", 1, []string{storage.PermTimeoutUsers}, storage.ActionLimits{})
	session := &fakeSession{}
	ctx := context.Background()

	result := svc.Timeout(ctx, session, Request{GuildID: "g1", TargetID: "u1", TargetName: "u", ActorID: "mod", Reason: "cool off"}, 10, "m")
	if !result.Success {
		t.Fatalf("timeout failed: %s", result.Message)
	}
	if session.until == nil {
		t.Fatalf("expected a timeout expiry")
	}
	if want := clock.now.Add(10 * time.Minute); !session.until.Equal(want) {
		t.Fatalf("until = %s, want %s", session.until, want)
	}

	p, err := store.GetPunishment(ctx, result.PunishmentID)
	if err != nil {
		t.Fatalf("get punishment: %v", err)
	}
	if p.Duration != "10 minutes" {
		t.Fatalf("duration label = %q", p.Duration)
	}
}

func TestTempBanSchedulesUnban(t *testing.T) {
	svc, store, _, clock := newTestService(t, nil, Config{})
	session := &fakeSession{}
	ctx := context.Background()

	result := svc.Ban(ctx, session, Request{
		GuildID: "g1", TargetID: "u1", TargetName: "u", Reason: "raiding", System: true,
	}, true, 7, "d")
	if !result.Success {
		t.Fatalf("ban failed: %s", result.Message)
	}
	if len(session.bans) != 1 {
		t.Fatalf("expected the ban API call")
	}

	p, err := store.GetPunishment(ctx, result.PunishmentID)
	if err != nil {
		t.Fatalf("get punishment: %v", err)
	}
	if p.Type != storage.PunishmentBan || p.Duration != "7 days" {
		t.Fatalf("unexpected punishment %+v", p)
	}

	// Not yet due.
	due, err := store.ExpiredTemporaryBans(ctx, clock.now.Add(6*24*time.Hour))
	if err != nil {
		t.Fatalf("expired bans: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("ban should not be due yet")
	}
	due, _ = store.ExpiredTemporaryBans(ctx, clock.now.Add(8*24*time.Hour))
	if len(due) != 1 || due[0].PunishmentID != result.PunishmentID {
		t.Fatalf("expected the scheduled unban, got %+v", due)
	}
}

func TestBanFailureRecordsNothing(t *testing.T) {
	svc, store, _, _ := newTestService(t, nil, Config{})
	session := &fakeSession{banErr: errors.New("missing permissions")}
	ctx := context.Background()

	result := svc.Ban(ctx, session, Request{GuildID: "g1", TargetID: "u1", System: true}, false, 0, "")
	if result.Success {
		t.Fatalf("expected failure")
	}
	punishments, _ := store.ListUserPunishments(ctx, "g1", "u1")
	if len(punishments) != 0 {
		t.Fatalf("no case should be recorded after a failed ban")
	}
}

func TestUnbanPermissions(t *testing.T) {
	svc, store, _, _ := newTestService(t, []string{"owner"}, Config{})
	seedStaff(t, store, "mod", 1, []string{storage.PermBanUsers}, storage.ActionLimits{})
	session := &fakeSession{}
	ctx := context.Background()

	if result := svc.Unban(ctx, session, "g1", "u1", "rando"); result.Success {
		t.Fatalf("non-staff must not unban")
	}
	if result := svc.Unban(ctx, session, "g1", "u1", "mod"); !result.Success {
		t.Fatalf("staff with ban permission should unban: %s", result.Message)
	}
	if result := svc.Unban(ctx, session, "g1", "u2", "owner"); !result.Success {
		t.Fatalf("full access user should unban: %s", result.Message)
	}
	if len(session.unbans) != 2 {
		t.Fatalf("expected two unban calls, got %v", session.unbans)
	}
}

func TestActionLimit(t *testing.T) {
	svc, store, _, _ := newTestService(t, nil, Config{})
	seedStaff(t, store, "mod", 1, []string{storage.PermWarnUsers},
		storage.ActionLimits{Enabled: true, Warn: 1, Period: "5m"})
	session := &fakeSession{}
	ctx := context.Background()

	first := svc.Warn(ctx, session, Request{GuildID: "g1", TargetID: "u1", ActorID: "mod", Reason: "x"})
	if !first.Success {
		t.Fatalf("first warn should pass: %s", first.Message)
	}
	second := svc.Warn(ctx, session, Request{GuildID: "g1", TargetID: "u2", ActorID: "mod", Reason: "x"})
	if second.Success {
		t.Fatalf("second warn should hit the limit")
	}
	if second.Message != "You have hit your warn limit. Try again later." {
		t.Fatalf("message = %q", second.Message)
	}
}

func TestKickReportsSuccessWhenRecordFails(t *testing.T) {
	svc, store, _, _ := newTestService(t, nil, Config{})
	session := &fakeSession{}
	ctx := context.Background()

	// The member is gone from the guild either way; a failed record write
	// must not be reported as a failed kick.
	store.Close()
	result := svc.Kick(ctx, session, Request{
		GuildID: "g1", TargetID: "u1", TargetName: "troublemaker", System: true, Reason: "spam",
	})
	if !result.Success {
		t.Fatalf("expected success after the platform call, got %q", result.Message)
	}
	if result.PunishmentID == "" {
		t.Fatalf("expected a case ID even without a record")
	}
	if len(session.kicks) != 1 {
		t.Fatalf("expected one kick, got %v", session.kicks)
	}
}
