package moderation

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"guard-bot/auth"
	"guard-bot/model"
	"guard-bot/utils/database"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDirectory is an in-memory model.GuildDirectory that records platform
// effect calls.
type fakeDirectory struct {
	mu      sync.Mutex
	guild   model.GuildInfo
	members map[string]model.MemberInfo

	bans         []string
	unbans       []string
	rolesAdded   map[string][]string
	rolesRemoved map[string][]string
	effectErr    error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		guild:        model.GuildInfo{ID: "g1", OwnerID: "owner", RolePositions: map[string]int{}},
		members:      make(map[string]model.MemberInfo),
		rolesAdded:   make(map[string][]string),
		rolesRemoved: make(map[string][]string),
	}
}

func (d *fakeDirectory) Guild(guildID string) (*model.GuildInfo, error) {
	g := d.guild
	return &g, nil
}

func (d *fakeDirectory) Member(guildID, userID string) (*model.MemberInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[userID]
	if !ok {
		return nil, errors.New("unknown member")
	}
	return &m, nil
}

func (d *fakeDirectory) MemberExists(guildID, userID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.members[userID]
	return ok, nil
}

func (d *fakeDirectory) AddBan(guildID, userID, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.effectErr != nil {
		return d.effectErr
	}
	d.bans = append(d.bans, userID)
	return nil
}

func (d *fakeDirectory) RemoveBan(guildID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.effectErr != nil {
		return d.effectErr
	}
	d.unbans = append(d.unbans, userID)
	return nil
}

func (d *fakeDirectory) AddRole(guildID, userID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.effectErr != nil {
		return d.effectErr
	}
	d.rolesAdded[userID] = append(d.rolesAdded[userID], roleID)
	return nil
}

func (d *fakeDirectory) RemoveRole(guildID, userID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.effectErr != nil {
		return d.effectErr
	}
	d.rolesRemoved[userID] = append(d.rolesRemoved[userID], roleID)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	expiries []time.Time
}

func (n *fakeNotifier) Notify(expiry time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expiries = append(n.expiries, expiry)
}

type ledgerFixture struct {
	ledger      *Ledger
	infractions *database.InfractionRepository
	roles       *database.DesignatedRoleRepository
	directory   *fakeDirectory
	notifier    *fakeNotifier
	db          *sqlx.DB
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	return newLedgerFixtureWithDefault(t, 0)
}

func newLedgerFixtureWithDefault(t *testing.T, defaultMuteDuration time.Duration) *ledgerFixture {
	t.Helper()
	db, err := database.Init(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := newFakeDirectory()
	dir.members["mod"] = model.MemberInfo{UserID: "mod", Administrator: true}
	dir.members["subject"] = model.MemberInfo{UserID: "subject"}

	infractions := database.NewInfractionRepository(db)
	roles := database.NewDesignatedRoleRepository(db)
	ranks := auth.NewRankChecker(dir, roles)

	ledger := NewLedger(infractions, database.NewActionRepository(db), roles, dir, ranks, "bot", "", defaultMuteDuration)
	notifier := &fakeNotifier{}
	ledger.SetNotifier(notifier)

	return &ledgerFixture{
		ledger:      ledger,
		infractions: infractions,
		roles:       roles,
		directory:   dir,
		notifier:    notifier,
		db:          db,
	}
}

func (f *ledgerFixture) designateMuteRole(t *testing.T, roleID string) {
	t.Helper()
	_, err := f.roles.Insert(f.db, model.DesignatedRoleMapping{
		GuildID: "g1", RoleID: roleID, Type: model.DesignationModerationMute,
		CreatedBy: "admin", CreatedAt: time.Now().Unix(),
	})
	require.NoError(t, err)
}

func moderator(claims ...model.Claim) *auth.Context {
	return &auth.Context{UserID: "mod", GuildID: "g1", Claims: model.NewClaimSet(claims...)}
}

func durationPtr(d time.Duration) *time.Duration { return &d }

func TestCreateMuteAppliesRoleAndNotifies(t *testing.T) {
	f := newLedgerFixture(t)
	f.designateMuteRole(t, "muted")

	result, err := f.ledger.Create(moderator(model.ClaimModerationMute), CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute,
		Reason: "spamming", Duration: durationPtr(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.Infraction)

	assert.Equal(t, []string{"muted"}, f.directory.rolesAdded["subject"])
	require.Len(t, f.notifier.expiries, 1)
	assert.Equal(t, result.Infraction.CreatedAt+3600, f.notifier.expiries[0].Unix())

	var auditCount int
	require.NoError(t, f.db.Get(&auditCount,
		"SELECT COUNT(*) FROM moderation_actions WHERE infraction_id = ? AND action_type = ?",
		result.Infraction.ID, model.ActionInfractionCreated))
	assert.Equal(t, 1, auditCount)
}

func TestCreateMuteWithoutDurationUsesConfiguredDefault(t *testing.T) {
	f := newLedgerFixtureWithDefault(t, 30*time.Minute)
	f.designateMuteRole(t, "muted")
	actor := moderator(model.ClaimModerationMute, model.ClaimModerationBan)

	result, err := f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute, Reason: "spamming",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	require.True(t, result.Infraction.Duration.Valid)
	assert.Equal(t, int64(1800), result.Infraction.Duration.Int64)

	// The defaulted mute is timed, so it arms the scheduler.
	require.Len(t, f.notifier.expiries, 1)
	assert.Equal(t, result.Infraction.CreatedAt+1800, f.notifier.expiries[0].Unix())

	// An explicit duration beats the default.
	f.directory.members["other"] = model.MemberInfo{UserID: "other"}
	result, err = f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "other", Type: model.InfractionMute,
		Reason: "spamming", Duration: durationPtr(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), result.Infraction.Duration.Int64)

	// The default is mute-only; a ban without a duration stays indefinite.
	result, err = f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "other", Type: model.InfractionBan, Reason: "raiding",
	})
	require.NoError(t, err)
	assert.False(t, result.Infraction.Duration.Valid)
}

func TestCreateMuteWithoutDefaultStaysIndefinite(t *testing.T) {
	f := newLedgerFixture(t)
	f.designateMuteRole(t, "muted")

	result, err := f.ledger.Create(moderator(model.ClaimModerationMute), CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute, Reason: "spamming",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.False(t, result.Infraction.Duration.Valid)
	assert.Empty(t, f.notifier.expiries)
}

func TestCreateBanBansSubject(t *testing.T) {
	f := newLedgerFixture(t)

	result, err := f.ledger.Create(moderator(model.ClaimModerationBan), CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionBan, Reason: "raiding",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, []string{"subject"}, f.directory.bans)
	// An indefinite infraction does not arm the scheduler.
	assert.Empty(t, f.notifier.expiries)
}

func TestCreateRejectsSecondActiveMute(t *testing.T) {
	f := newLedgerFixture(t)
	f.designateMuteRole(t, "muted")
	actor := moderator(model.ClaimModerationMute)

	_, err := f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute, Reason: "first",
	})
	require.NoError(t, err)

	_, err = f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute, Reason: "second",
	})
	assert.ErrorIs(t, err, ErrDuplicateActive)

	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM infractions"))
	assert.Equal(t, 1, count)
}

func TestCreateAllowsStackedWarnings(t *testing.T) {
	f := newLedgerFixture(t)
	actor := moderator(model.ClaimModerationWarn)

	for _, reason := range []string{"first", "second"} {
		result, err := f.ledger.Create(actor, CreateRequest{
			GuildID: "g1", SubjectID: "subject", Type: model.InfractionWarning, Reason: reason,
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
	}
}

func TestCreateValidationFailures(t *testing.T) {
	f := newLedgerFixture(t)

	cases := []struct {
		name  string
		actor *auth.Context
		req   CreateRequest
	}{
		{
			name:  "blank reason",
			actor: moderator(model.ClaimModerationWarn),
			req:   CreateRequest{GuildID: "g1", SubjectID: "subject", Type: model.InfractionWarning, Reason: "   "},
		},
		{
			name:  "overlong reason",
			actor: moderator(model.ClaimModerationWarn),
			req:   CreateRequest{GuildID: "g1", SubjectID: "subject", Type: model.InfractionWarning, Reason: strings.Repeat("x", model.MaxReasonLength+1)},
		},
		{
			name:  "unknown type",
			actor: moderator(model.ClaimModerationWarn),
			req:   CreateRequest{GuildID: "g1", SubjectID: "subject", Type: "timeout", Reason: "r"},
		},
		{
			name:  "missing claim",
			actor: moderator(model.ClaimModerationWarn),
			req:   CreateRequest{GuildID: "g1", SubjectID: "subject", Type: model.InfractionBan, Reason: "r"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := f.ledger.Create(tc.actor, tc.req)
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Message)
		})
	}

	// None of the failures may have left a record behind.
	var count int
	require.NoError(t, f.db.Get(&count, "SELECT COUNT(*) FROM infractions"))
	assert.Zero(t, count)
}

func TestCreateRejectsRankEscalation(t *testing.T) {
	f := newLedgerFixture(t)
	// Peer moderator without admin and no ranked roles: ties do not outrank.
	f.directory.members["peer"] = model.MemberInfo{UserID: "peer"}
	actor := &auth.Context{UserID: "peer", GuildID: "g1", Claims: model.NewClaimSet(model.ClaimModerationWarn)}

	_, err := f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionWarning, Reason: "r",
	})
	assert.ErrorIs(t, err, ErrRankEscalation)
}

func TestRescindRemovesEffectOnce(t *testing.T) {
	f := newLedgerFixture(t)
	f.designateMuteRole(t, "muted")
	actor := moderator(model.ClaimModerationMute, model.ClaimModerationRescind)

	result, err := f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute, Reason: "r",
	})
	require.NoError(t, err)

	require.NoError(t, f.ledger.Rescind(actor, "g1", model.InfractionMute, "subject", "appealed"))
	assert.Equal(t, []string{"muted"}, f.directory.rolesRemoved["subject"])

	// The user-invoked path reports a missing target.
	err = f.ledger.Rescind(actor, "g1", model.InfractionMute, "subject", "again")
	assert.Error(t, err)
	assert.Len(t, f.directory.rolesRemoved["subject"], 1)

	inf, err := f.infractions.GetByID(result.Infraction.ID)
	require.NoError(t, err)
	assert.Equal(t, "appealed", inf.RescindReason.String)
}

func TestRescindByIDChecksRank(t *testing.T) {
	f := newLedgerFixture(t)
	actor := moderator(model.ClaimModerationBan, model.ClaimModerationRescind)

	result, err := f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionBan, Reason: "r",
	})
	require.NoError(t, err)
	// A ban removes the subject from the guild.
	delete(f.directory.members, "subject")

	f.directory.members["peer"] = model.MemberInfo{UserID: "peer"}
	peer := &auth.Context{UserID: "peer", GuildID: "g1", Claims: model.NewClaimSet(model.ClaimModerationRescind)}

	// An absent subject poses no escalation risk, so the peer may rescind.
	require.NoError(t, f.ledger.RescindByID(peer, result.Infraction.ID, "appealed"))
	assert.Equal(t, []string{"subject"}, f.directory.unbans)
}

func TestDeleteAfterRescindSkipsSecondEffect(t *testing.T) {
	f := newLedgerFixture(t)
	actor := moderator(model.ClaimModerationBan, model.ClaimModerationRescind, model.ClaimModerationDeleteInfraction)

	result, err := f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionBan, Reason: "r",
	})
	require.NoError(t, err)
	id := result.Infraction.ID

	require.NoError(t, f.ledger.RescindByID(actor, id, "appealed"))
	require.Len(t, f.directory.unbans, 1)

	require.NoError(t, f.ledger.Delete(actor, id))
	assert.Len(t, f.directory.unbans, 1)

	inf, err := f.infractions.GetByID(id)
	require.NoError(t, err)
	assert.True(t, inf.DeletedAt.Valid)

	// Deleting twice reports the record gone.
	assert.Error(t, f.ledger.Delete(actor, id))
}

func TestDeleteUndoesEffectWhenNotRescinded(t *testing.T) {
	f := newLedgerFixture(t)
	actor := moderator(model.ClaimModerationBan, model.ClaimModerationDeleteInfraction)

	result, err := f.ledger.Create(actor, CreateRequest{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionBan, Reason: "r",
	})
	require.NoError(t, err)

	require.NoError(t, f.ledger.Delete(actor, result.Infraction.ID))
	assert.Equal(t, []string{"subject"}, f.directory.unbans)
}

func TestAutoRescindExpired(t *testing.T) {
	f := newLedgerFixture(t)
	f.designateMuteRole(t, "muted")

	// One mute expired an hour ago, one still running.
	expired, err := f.infractions.Insert(f.db, model.Infraction{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute,
		Reason: "r", Duration: nullSeconds(60), CreatedBy: "mod",
		CreatedAt: time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)
	running, err := f.infractions.Insert(f.db, model.Infraction{
		GuildID: "g1", SubjectID: "other", Type: model.InfractionMute,
		Reason: "r", Duration: nullSeconds(7200), CreatedBy: "mod",
		CreatedAt: time.Now().Unix(),
	})
	require.NoError(t, err)
	f.directory.members["other"] = model.MemberInfo{UserID: "other"}

	require.NoError(t, f.ledger.AutoRescindExpired())

	inf, err := f.infractions.GetByID(expired)
	require.NoError(t, err)
	assert.False(t, inf.Active())
	assert.Equal(t, AutoRescindReason, inf.RescindReason.String)
	assert.Equal(t, []string{"muted"}, f.directory.rolesRemoved["subject"])

	inf, err = f.infractions.GetByID(running)
	require.NoError(t, err)
	assert.True(t, inf.Active())

	// The scheduler path records the bot as the acting party.
	var actorID string
	require.NoError(t, f.db.Get(&actorID,
		"SELECT actor_id FROM moderation_actions WHERE infraction_id = ? AND action_type = ?",
		expired, model.ActionInfractionRescinded))
	assert.Equal(t, "bot", actorID)
}

func TestAutoRescindSkipsDepartedSubject(t *testing.T) {
	f := newLedgerFixture(t)
	f.designateMuteRole(t, "muted")

	id, err := f.infractions.Insert(f.db, model.Infraction{
		GuildID: "g1", SubjectID: "ghost", Type: model.InfractionMute,
		Reason: "r", Duration: nullSeconds(60), CreatedBy: "mod",
		CreatedAt: time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)

	require.NoError(t, f.ledger.AutoRescindExpired())

	// The record closes even though there was no role to remove.
	inf, err := f.infractions.GetByID(id)
	require.NoError(t, err)
	assert.False(t, inf.Active())
	assert.Empty(t, f.directory.rolesRemoved["ghost"])
}

func TestReapplyMuteOnRejoin(t *testing.T) {
	f := newLedgerFixture(t)
	f.designateMuteRole(t, "muted")

	// No active mute: nothing to reapply.
	require.NoError(t, f.ledger.ReapplyMuteOnRejoin("g1", "subject"))
	assert.Empty(t, f.directory.rolesAdded["subject"])

	_, err := f.infractions.Insert(f.db, model.Infraction{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute,
		Reason: "r", CreatedBy: "mod", CreatedAt: time.Now().Unix(),
	})
	require.NoError(t, err)

	require.NoError(t, f.ledger.ReapplyMuteOnRejoin("g1", "subject"))
	assert.Equal(t, []string{"muted"}, f.directory.rolesAdded["subject"])
}

func TestReapplyMuteSkipsLapsedMute(t *testing.T) {
	f := newLedgerFixture(t)
	f.designateMuteRole(t, "muted")

	// Expired but not yet swept by the scheduler: still Active in storage.
	_, err := f.infractions.Insert(f.db, model.Infraction{
		GuildID: "g1", SubjectID: "subject", Type: model.InfractionMute,
		Reason: "r", Duration: nullSeconds(60), CreatedBy: "mod",
		CreatedAt: time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)

	require.NoError(t, f.ledger.ReapplyMuteOnRejoin("g1", "subject"))
	assert.Empty(t, f.directory.rolesAdded["subject"])
}

func nullSeconds(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}
