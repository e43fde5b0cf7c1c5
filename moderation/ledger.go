package moderation

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"guard-bot/auth"
	"guard-bot/model"
	"guard-bot/utils"
	"guard-bot/utils/database"
)

// AutoRescindReason stamps infractions the scheduler expires.
const AutoRescindReason = "Expired"

var (
	// ErrRankEscalation reports a moderator acting on an equal-or-higher
	// ranked subject.
	ErrRankEscalation = errors.New("moderator does not outrank the subject")
	// ErrDuplicateActive reports a second active mute or ban for the same
	// subject.
	ErrDuplicateActive = errors.New("subject already has an active infraction of this type")
)

// Notifier receives the expiry of a newly created timed infraction.
// Satisfied by RescindScheduler.
type Notifier interface {
	Notify(expiry time.Time)
}

// Ledger owns the infraction lifecycle: creation, rescission, deletion, and
// expiry. Database writes are serialized per mutation class through the
// infraction repository's guard; platform side effects run outside the
// storage transaction.
type Ledger struct {
	infractions *database.InfractionRepository
	actions     *database.ActionRepository
	roles       *database.DesignatedRoleRepository
	directory   model.GuildDirectory
	ranks       *auth.RankChecker
	botUserID   string
	webhookURL  string
	// defaultMuteDuration applies to mutes created without an explicit
	// duration. Zero means such mutes are indefinite.
	defaultMuteDuration time.Duration
	notifier            Notifier
}

// NewLedger builds a ledger. botUserID is the actor recorded on
// scheduler-driven rescissions; webhookURL may be empty to disable ops
// reporting.
func NewLedger(infractions *database.InfractionRepository, actions *database.ActionRepository, roles *database.DesignatedRoleRepository, directory model.GuildDirectory, ranks *auth.RankChecker, botUserID, webhookURL string, defaultMuteDuration time.Duration) *Ledger {
	return &Ledger{
		infractions:         infractions,
		actions:             actions,
		roles:               roles,
		directory:           directory,
		ranks:               ranks,
		botUserID:           botUserID,
		webhookURL:          webhookURL,
		defaultMuteDuration: defaultMuteDuration,
	}
}

// SetNotifier wires the scheduler after construction; the scheduler itself
// needs the ledger first.
func (l *Ledger) SetNotifier(n Notifier) {
	l.notifier = n
}

// CreateRequest describes one infraction to create.
type CreateRequest struct {
	GuildID   string
	SubjectID string
	Type      model.InfractionType
	Reason    string
	// Duration of nil means indefinite.
	Duration *time.Duration
}

// CreateResult reports validation outcomes as a value so callers can present
// a user-facing message without error machinery. Invariant violations still
// surface as errors from Create.
type CreateResult struct {
	Success    bool
	Message    string
	Infraction *model.Infraction
}

func createFailure(format string, args ...interface{}) CreateResult {
	return CreateResult{Message: fmt.Sprintf(format, args...)}
}

// Create records a new infraction and applies its platform effect. The
// record and its audit action commit atomically; the effect runs after the
// commit, so an effect failure leaves an active record with no platform
// effect. That divergence is reported, not retried.
func (l *Ledger) Create(actor *auth.Context, req CreateRequest) (CreateResult, error) {
	if err := actor.RequireAuthenticatedUser(); err != nil {
		return CreateResult{}, err
	}
	if err := actor.RequireAuthenticatedGuild(); err != nil {
		return CreateResult{}, err
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return createFailure("A reason is required."), nil
	}
	if len(reason) > model.MaxReasonLength {
		return createFailure("Reason must be at most %d characters (got %d).", model.MaxReasonLength, len(reason)), nil
	}

	claim, ok := req.Type.CreateClaim()
	if !ok {
		return createFailure("Unknown infraction type %q.", req.Type), nil
	}
	if !actor.HasClaims(claim) {
		return createFailure("You do not have the %s claim.", claim), nil
	}

	outranks, err := l.ranks.Outranks(req.GuildID, actor.UserID, req.SubjectID)
	if err != nil {
		return CreateResult{}, err
	}
	if !outranks {
		return CreateResult{}, ErrRankEscalation
	}

	tx, err := l.infractions.BeginCreate(nil)
	if err != nil {
		return CreateResult{}, err
	}
	defer tx.Close()

	// The duplicate check and the insert share the create-class critical
	// section; the guard is what closes the check-then-insert race.
	if req.Type.Exclusive() {
		exists, err := l.infractions.ActiveExists(tx.Tx, req.GuildID, req.SubjectID, req.Type)
		if err != nil {
			return CreateResult{}, err
		}
		if exists {
			return CreateResult{}, fmt.Errorf("%w: %s for subject %s", ErrDuplicateActive, req.Type, req.SubjectID)
		}
	}

	duration := req.Duration
	if duration == nil && req.Type == model.InfractionMute && l.defaultMuteDuration > 0 {
		duration = &l.defaultMuteDuration
	}

	now := time.Now()
	inf := model.Infraction{
		GuildID:   req.GuildID,
		SubjectID: req.SubjectID,
		Type:      req.Type,
		Reason:    reason,
		CreatedBy: actor.UserID,
		CreatedAt: now.Unix(),
	}
	if duration != nil {
		inf.Duration = sql.NullInt64{Int64: int64(duration.Seconds()), Valid: true}
	}

	id, err := l.infractions.Insert(tx.Tx, inf)
	if err != nil {
		return CreateResult{}, err
	}
	inf.ID = id

	_, err = l.actions.InsertModeration(tx.Tx, model.ModerationAction{
		GuildID:      req.GuildID,
		Type:         model.ActionInfractionCreated,
		ActorID:      actor.UserID,
		CreatedAt:    now.Unix(),
		InfractionID: id,
	})
	if err != nil {
		return CreateResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return CreateResult{}, err
	}

	if err := l.applyEffect(&inf); err != nil {
		log.Printf("Infraction %d committed but its platform effect failed: %v", id, err)
		l.reportOps(utils.Error, "ApplyEffect", fmt.Sprintf("infraction %d (%s) in guild %s: %v", id, inf.Type, inf.GuildID, err))
	}

	if expiry, ok := inf.ExpiresAt(); ok && l.notifier != nil {
		l.notifier.Notify(expiry)
	}

	return CreateResult{Success: true, Infraction: &inf}, nil
}

// Rescind reverses the active infraction of the given type for a subject.
// A missing target is a reported failure on this user-invoked path.
func (l *Ledger) Rescind(actor *auth.Context, guildID string, t model.InfractionType, subjectID, reason string) error {
	if err := actor.RequireClaims(model.ClaimModerationRescind); err != nil {
		return err
	}

	outranks, err := l.ranks.Outranks(guildID, actor.UserID, subjectID)
	if err != nil {
		return err
	}
	if !outranks {
		return ErrRankEscalation
	}

	inf, err := l.infractions.FindActive(guildID, subjectID, t)
	if err != nil {
		return err
	}
	if inf == nil {
		return fmt.Errorf("no active %s found for subject %s", t, subjectID)
	}

	return l.rescind(actor.UserID, inf.ID, reason, true)
}

// RescindByID reverses one infraction by its id.
func (l *Ledger) RescindByID(actor *auth.Context, id int64, reason string) error {
	if err := actor.RequireClaims(model.ClaimModerationRescind); err != nil {
		return err
	}

	inf, err := l.infractions.GetByID(id)
	if err != nil {
		return err
	}

	outranks, err := l.ranks.Outranks(inf.GuildID, actor.UserID, inf.SubjectID)
	if err != nil {
		return err
	}
	if !outranks {
		return ErrRankEscalation
	}

	return l.rescind(actor.UserID, id, reason, true)
}

// rescind removes the platform effect and stamps the rescind columns under
// the delete-class guard. On the scheduler path a no-longer-active target is
// a silent no-op; on the user path it is a reported failure. Either way a
// closed infraction never triggers a second side-effect call.
func (l *Ledger) rescind(actorID string, id int64, reason string, userInvoked bool) error {
	tx, err := l.infractions.BeginDelete(nil)
	if err != nil {
		return err
	}
	defer tx.Close()

	inf, err := l.infractions.GetByID(id)
	if err != nil {
		return err
	}
	if !inf.Active() {
		if userInvoked {
			return fmt.Errorf("infraction %d is already rescinded or deleted", id)
		}
		return nil
	}

	// The effect is undone before the stamp commits. A commit failure here
	// leaves an Active row whose effect is already lifted; the next pass
	// then re-calls the platform removal, which fails for a ban that no
	// longer exists. The window is accepted; the ops log surfaces it.
	if err := l.removeEffect(inf); err != nil {
		return err
	}

	now := time.Now()
	if _, err := l.infractions.TryRescind(tx.Tx, id, reason, now); err != nil {
		return err
	}

	_, err = l.actions.InsertModeration(tx.Tx, model.ModerationAction{
		GuildID:      inf.GuildID,
		Type:         model.ActionInfractionRescinded,
		ActorID:      actorID,
		CreatedAt:    now.Unix(),
		InfractionID: id,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Delete suppresses an infraction from views, removing its platform effect
// only when a rescind has not already done so.
func (l *Ledger) Delete(actor *auth.Context, id int64) error {
	if err := actor.RequireClaims(model.ClaimModerationDeleteInfraction); err != nil {
		return err
	}

	inf, err := l.infractions.GetByID(id)
	if err != nil {
		return err
	}

	outranks, err := l.ranks.Outranks(inf.GuildID, actor.UserID, inf.SubjectID)
	if err != nil {
		return err
	}
	if !outranks {
		return ErrRankEscalation
	}

	tx, err := l.infractions.BeginDelete(nil)
	if err != nil {
		return err
	}
	defer tx.Close()

	inf, err = l.infractions.GetByID(id)
	if err != nil {
		return err
	}
	if inf.DeletedAt.Valid {
		return fmt.Errorf("infraction %d is already deleted", id)
	}

	// A rescind already undid the effect; a second unban would surface as
	// a platform error.
	if !inf.RescindedAt.Valid {
		if err := l.removeEffect(inf); err != nil {
			return err
		}
	}

	now := time.Now()
	if _, err := l.infractions.TryDelete(tx.Tx, id, now); err != nil {
		return err
	}

	_, err = l.actions.InsertModeration(tx.Tx, model.ModerationAction{
		GuildID:      inf.GuildID,
		Type:         model.ActionInfractionDeleted,
		ActorID:      actor.UserID,
		CreatedAt:    now.Unix(),
		InfractionID: id,
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// AutoRescindExpired rescinds every timed infraction whose duration has
// elapsed. Per-infraction failures are logged and do not stop the pass.
func (l *Ledger) AutoRescindExpired() error {
	expired, err := l.infractions.ExpiredActive(time.Now())
	if err != nil {
		return err
	}

	for _, inf := range expired {
		if err := l.rescind(l.botUserID, inf.ID, AutoRescindReason, false); err != nil {
			log.Printf("Failed to auto-rescind infraction %d: %v", inf.ID, err)
			l.reportOps(utils.Error, "AutoRescind", fmt.Sprintf("infraction %d (%s) in guild %s: %v", inf.ID, inf.Type, inf.GuildID, err))
		}
	}
	return nil
}

// EarliestExpiry returns the soonest expiry among still-active timed
// infractions, or nil when none remain.
func (l *Ledger) EarliestExpiry() (*time.Time, error) {
	return l.infractions.EarliestExpiry()
}

// ReapplyMuteOnRejoin re-assigns the mute role when a subject with an
// active mute rejoins the guild.
func (l *Ledger) ReapplyMuteOnRejoin(guildID, userID string) error {
	inf, err := l.infractions.FindActive(guildID, userID, model.InfractionMute)
	if err != nil {
		return err
	}
	if inf == nil {
		return nil
	}
	// A mute that lapsed but has not been swept yet is not re-applied; the
	// next scheduler pass closes the row.
	if inf.Expired(time.Now()) {
		return nil
	}

	roleID, ok, err := l.roles.MuteRoleID(guildID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("guild %s has an active mute but no designated mute role", guildID)
	}
	return l.directory.AddRole(guildID, userID, roleID)
}

// applyEffect performs the platform-side consequence of a freshly committed
// infraction.
func (l *Ledger) applyEffect(inf *model.Infraction) error {
	switch inf.Type {
	case model.InfractionMute:
		roleID, ok, err := l.roles.MuteRoleID(inf.GuildID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no mute role designated for guild %s", inf.GuildID)
		}
		return l.directory.AddRole(inf.GuildID, inf.SubjectID, roleID)
	case model.InfractionBan:
		return l.directory.AddBan(inf.GuildID, inf.SubjectID, inf.Reason)
	}
	return nil
}

// removeEffect undoes the platform-side consequence of an infraction. A
// mute subject who already left the guild is logged and skipped.
func (l *Ledger) removeEffect(inf *model.Infraction) error {
	switch inf.Type {
	case model.InfractionMute:
		exists, err := l.directory.MemberExists(inf.GuildID, inf.SubjectID)
		if err != nil {
			return err
		}
		if !exists {
			log.Printf("Subject %s of mute %d is no longer in guild %s, skipping role removal", inf.SubjectID, inf.ID, inf.GuildID)
			return nil
		}
		roleID, ok, err := l.roles.MuteRoleID(inf.GuildID)
		if err != nil {
			return err
		}
		if !ok {
			log.Printf("Guild %s has no designated mute role, skipping role removal for mute %d", inf.GuildID, inf.ID)
			return nil
		}
		return l.directory.RemoveRole(inf.GuildID, inf.SubjectID, roleID)
	case model.InfractionBan:
		return l.directory.RemoveBan(inf.GuildID, inf.SubjectID)
	}
	return nil
}

func (l *Ledger) reportOps(level utils.LogLevel, operation, extraInfo string) {
	if l.webhookURL == "" {
		return
	}
	if err := utils.SendLog(l.webhookURL, level, "InfractionLedger", operation, extraInfo); err != nil {
		log.Printf("Failed to send ops log: %v", err)
	}
}
