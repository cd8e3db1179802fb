package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestGuildSettingsDefaults(t *testing.T) {
	store := newTestStore(t)
	defaults := GuildSettings{CommandPrefix: "!", AppealsEnabled: true}

	got, err := store.GetGuildSettings(context.Background(), "g1", defaults)
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.CommandPrefix != "!" || !got.AppealsEnabled {
		t.Fatalf("expected defaults back, got %+v", got)
	}

	got.CommandPrefix = "?"
	if err := store.UpsertGuildSettings(context.Background(), got); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err = store.GetGuildSettings(context.Background(), "g1", defaults)
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.CommandPrefix != "?" {
		t.Fatalf("expected persisted prefix, got %q", got.CommandPrefix)
	}
}

func TestPunishmentLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := Punishment{
		PunishmentID: "P1A34B6C",
		GuildID:      "g1",
		UserID:       "u1",
		Username:     "alice",
		Type:         PunishmentWarn,
		Reason:       "spam",
		StaffID:      "s1",
	}
	if err := store.AddPunishment(ctx, p); err != nil {
		t.Fatalf("add punishment: %v", err)
	}

	got, err := store.GetPunishment(ctx, "P1A34B6C")
	if err != nil {
		t.Fatalf("get punishment: %v", err)
	}
	if got.Status != StatusActive {
		t.Fatalf("expected default status Active, got %q", got.Status)
	}

	if err := store.UpdatePunishmentStatus(ctx, "P1A34B6C", StatusInactive, "appeal-1"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = store.GetPunishment(ctx, "P1A34B6C")
	if got.Status != StatusInactive || got.AppealID != "appeal-1" {
		t.Fatalf("expected inactive with appeal link, got %+v", got)
	}

	list, err := store.ListUserPunishments(ctx, "g1", "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one punishment, got %d err=%v", len(list), err)
	}

	if _, err := store.GetPunishment(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTemporaryBanExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := store.AddTemporaryBan(ctx, TemporaryBan{
		GuildID: "g1", UserID: "u1", PunishmentID: "P1", StaffID: "s1",
		ExpiresAt: now.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("add expired ban: %v", err)
	}
	if err := store.AddTemporaryBan(ctx, TemporaryBan{
		GuildID: "g1", UserID: "u2", PunishmentID: "P2", StaffID: "s1",
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("add future ban: %v", err)
	}

	expired, err := store.ExpiredTemporaryBans(ctx, now)
	if err != nil {
		t.Fatalf("expired bans: %v", err)
	}
	if len(expired) != 1 || expired[0].UserID != "u1" {
		t.Fatalf("expected only u1 expired, got %+v", expired)
	}

	if err := store.MarkTemporaryBanProcessed(ctx, expired[0].ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	expired, _ = store.ExpiredTemporaryBans(ctx, now)
	if len(expired) != 0 {
		t.Fatalf("expected no expired bans after processing, got %d", len(expired))
	}
}

func TestAutoModSettingsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// First read creates and persists the defaults.
	settings, err := store.GetAutoModSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("get automod settings: %v", err)
	}
	if settings.Spam.MessageLimit != 5 || settings.Spam.MessageDurationUnit != "s" {
		t.Fatalf("unexpected defaults: %+v", settings.Spam)
	}
	if !settings.AltPrevention.Actions.KickUser {
		t.Fatalf("expected default alt prevention action to be kick")
	}

	settings.Spam.Enabled = true
	settings.Spam.MessageLimit = 3
	settings.Phishing.CustomDomains = []string{"bad.example"}
	if err := store.SaveAutoModSettings(ctx, settings); err != nil {
		t.Fatalf("save automod settings: %v", err)
	}

	got, err := store.GetAutoModSettings(ctx, "g1")
	if err != nil {
		t.Fatalf("reread automod settings: %v", err)
	}
	if !got.Spam.Enabled || got.Spam.MessageLimit != 3 {
		t.Fatalf("spam settings not persisted: %+v", got.Spam)
	}
	if len(got.Phishing.CustomDomains) != 1 || got.Phishing.CustomDomains[0] != "bad.example" {
		t.Fatalf("custom domains not persisted: %+v", got.Phishing.CustomDomains)
	}
}

func TestStaffRolesAndMembers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	adminID, err := store.CreateStaffRole(ctx, StaffRole{
		GuildID: "g1", Name: "Admin", Priority: 1,
		Permissions: []string{PermAdministrator},
	})
	if err != nil {
		t.Fatalf("create admin role: %v", err)
	}
	modID, err := store.CreateStaffRole(ctx, StaffRole{
		GuildID: "g1", Name: "Mod", Priority: 3,
		Permissions: []string{PermWarnUsers, PermTimeoutUsers},
		Limits:      ActionLimits{Enabled: true, Warn: 3, Period: "3m"},
	})
	if err != nil {
		t.Fatalf("create mod role: %v", err)
	}

	if err := store.UpsertStaffMember(ctx, StaffMember{GuildID: "g1", UserID: "u1", RoleID: modID}); err != nil {
		t.Fatalf("upsert member: %v", err)
	}

	member, err := store.GetStaffMember(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	role, err := store.GetStaffRole(ctx, member.RoleID)
	if err != nil {
		t.Fatalf("get role: %v", err)
	}
	if !role.HasPermission(PermWarnUsers) {
		t.Fatalf("expected warn permission")
	}
	if role.HasPermission(PermBanUsers) {
		t.Fatalf("did not expect ban permission")
	}
	if !role.Limits.Enabled || role.Limits.Warn != 3 {
		t.Fatalf("limits not persisted: %+v", role.Limits)
	}

	admin, _ := store.GetStaffRole(ctx, adminID)
	if !admin.HasPermission(PermBanUsers) {
		t.Fatalf("administrator should imply every permission")
	}

	roles, err := store.ListStaffRoles(ctx, "g1")
	if err != nil || len(roles) != 2 {
		t.Fatalf("expected two roles, got %d err=%v", len(roles), err)
	}
	if roles[0].Name != "Admin" {
		t.Fatalf("expected priority ordering, got %q first", roles[0].Name)
	}

	if _, err := store.GetStaffMember(ctx, "g1", "stranger"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for non-staff, got %v", err)
	}
}

func TestRecentReportsWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	add := func(id, reporter string, at time.Time) {
		t.Helper()
		if err := store.AddReport(ctx, Report{
			ReportID: id, GuildID: "g1", ReporterID: reporter,
			ReportedID: "target", Reason: "spam", CreatedAt: at,
		}); err != nil {
			t.Fatalf("add report %s: %v", id, err)
		}
	}
	add("r1", "a", now.Add(-30*time.Hour))
	add("r2", "b", now.Add(-2*time.Hour))
	add("r3", "c", now.Add(-time.Hour))

	recent, err := store.RecentReportsAgainst(ctx, "g1", "target", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("recent reports: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 reports inside the window, got %d", len(recent))
	}

	if err := store.MarkReportsAutoActioned(ctx, "g1", "target", "timeout"); err != nil {
		t.Fatalf("mark auto actioned: %v", err)
	}
	recent, _ = store.RecentReportsAgainst(ctx, "g1", "target", now.Add(-24*time.Hour))
	for _, r := range recent {
		if !r.AutoActioned || r.AutoActionType != "timeout" {
			t.Fatalf("expected auto action flags on %s, got %+v", r.ReportID, r)
		}
	}
}

func TestAppealRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	appeal := Appeal{
		AppealID: "a1", GuildID: "g1", PunishmentID: "P1", UserID: "u1",
		Content: "I am sorry",
	}
	if err := store.AddAppeal(ctx, appeal); err != nil {
		t.Fatalf("add appeal: %v", err)
	}

	got, err := store.GetAppealForPunishment(ctx, "P1")
	if err != nil {
		t.Fatalf("get appeal for punishment: %v", err)
	}
	if got.Status != "Pending" || got.DecidedAt != nil {
		t.Fatalf("expected pending appeal, got %+v", got)
	}

	decided := time.Now()
	if err := store.DecideAppeal(ctx, "a1", "Approved", "staff-1", decided); err != nil {
		t.Fatalf("decide appeal: %v", err)
	}
	got, _ = store.GetAppeal(ctx, "a1")
	if got.Status != "Approved" || got.DecidedBy != "staff-1" || got.DecidedAt == nil {
		t.Fatalf("decision not recorded: %+v", got)
	}
}

func TestStatsRollups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.IncrementStat(ctx, "g1", MetricMessages, at, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := store.IncrementStat(ctx, "g1", MetricMessages, at.Add(48*time.Hour), 1); err != nil {
		t.Fatalf("increment next day: %v", err)
	}

	day, err := store.GetStat(ctx, "g1", "day", MetricMessages, at)
	if err != nil || day != 3 {
		t.Fatalf("expected 3 for the day, got %d err=%v", day, err)
	}
	month, err := store.GetStat(ctx, "g1", "month", MetricMessages, at)
	if err != nil || month != 4 {
		t.Fatalf("expected 4 for the month, got %d err=%v", month, err)
	}
	all, err := store.GetStat(ctx, "g1", "all", MetricMessages, at)
	if err != nil || all != 4 {
		t.Fatalf("expected 4 all-time, got %d err=%v", all, err)
	}

	if _, err := store.GetStat(ctx, "g1", "decade", MetricMessages, at); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func TestAutoResponses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.AddAutoResponse(ctx, AutoResponse{
		GuildID: "g1", Trigger: "hello", Type: "TEXT", Message: "hi {user}",
		Settings: AutoResponseSettings{Enabled: true, CooldownSeconds: 5},
	})
	if err != nil {
		t.Fatalf("add auto response: %v", err)
	}

	if err := store.FlushAutoResponseCounts(ctx, map[int64]int64{id: 3}); err != nil {
		t.Fatalf("flush counts: %v", err)
	}

	responses, err := store.ListAutoResponses(ctx, "g1")
	if err != nil || len(responses) != 1 {
		t.Fatalf("expected one response, got %d err=%v", len(responses), err)
	}
	got := responses[0]
	if got.TriggerCount != 3 || got.LastTriggered == nil {
		t.Fatalf("counts not flushed: %+v", got)
	}
	if !got.Settings.Enabled || got.Settings.CooldownSeconds != 5 {
		t.Fatalf("settings not persisted: %+v", got.Settings)
	}
}

func TestCustomCommands(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cmd := CustomCommand{
		GuildID: "g1", Name: "rules", ResponseType: "embed",
		Embed:       &EmbedSpec{Title: "Server rules", Color: 0x5865F2},
		ReplyToUser: true,
	}
	if err := store.UpsertCustomCommand(ctx, cmd); err != nil {
		t.Fatalf("upsert command: %v", err)
	}

	got, err := store.GetCustomCommand(ctx, "g1", "rules")
	if err != nil {
		t.Fatalf("get command: %v", err)
	}
	if got.Embed == nil || got.Embed.Title != "Server rules" {
		t.Fatalf("embed not persisted: %+v", got)
	}

	if err := store.IncrementCommandUsage(ctx, got.ID); err != nil {
		t.Fatalf("increment usage: %v", err)
	}
	got, _ = store.GetCustomCommand(ctx, "g1", "rules")
	if got.UsageCount != 1 {
		t.Fatalf("expected usage count 1, got %d", got.UsageCount)
	}

	if _, err := store.GetCustomCommand(ctx, "g1", "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
