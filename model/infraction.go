package model

import (
	"database/sql"
	"time"
)

// InfractionType classifies a disciplinary record.
type InfractionType string

const (
	InfractionNotice  InfractionType = "notice"
	InfractionWarning InfractionType = "warning"
	InfractionMute    InfractionType = "mute"
	InfractionBan     InfractionType = "ban"
)

// MaxReasonLength is the longest reason accepted on infraction creation.
const MaxReasonLength = 1000

// CreateClaim returns the claim required to create an infraction of this
// type. The second return is false for unknown types.
func (t InfractionType) CreateClaim() (Claim, bool) {
	switch t {
	case InfractionNotice:
		return ClaimModerationNote, true
	case InfractionWarning:
		return ClaimModerationWarn, true
	case InfractionMute:
		return ClaimModerationMute, true
	case InfractionBan:
		return ClaimModerationBan, true
	}
	return "", false
}

// Exclusive reports whether at most one active infraction of this type may
// exist per subject per guild.
func (t InfractionType) Exclusive() bool {
	return t == InfractionMute || t == InfractionBan
}

// Infraction represents a single disciplinary record in the database.
// The table is named 'infractions'. Rescinded and deleted records keep their
// rows; rescinded_at / deleted_at mark the terminal states.
type Infraction struct {
	ID            int64          `db:"infraction_id"` // Primary Key, Auto-increment
	GuildID       string         `db:"guild_id"`
	SubjectID     string         `db:"subject_id"`
	Type          InfractionType `db:"infraction_type"`
	Reason        string         `db:"reason"`
	Duration      sql.NullInt64  `db:"duration_seconds"`
	CreatedBy     string         `db:"created_by"`
	CreatedAt     int64          `db:"created_at"` // Unix seconds
	RescindedAt   sql.NullInt64  `db:"rescinded_at"`
	RescindReason sql.NullString `db:"rescind_reason"`
	DeletedAt     sql.NullInt64  `db:"deleted_at"`
}

// Active reports whether the infraction is neither rescinded nor deleted.
func (i *Infraction) Active() bool {
	return !i.RescindedAt.Valid && !i.DeletedAt.Valid
}

// ExpiresAt returns the expiry instant for a timed infraction. The second
// return is false for indefinite infractions.
func (i *Infraction) ExpiresAt() (time.Time, bool) {
	if !i.Duration.Valid {
		return time.Time{}, false
	}
	return time.Unix(i.CreatedAt+i.Duration.Int64, 0), true
}

// Expired reports whether a timed infraction's duration has elapsed at the
// given instant. Indefinite infractions never expire.
func (i *Infraction) Expired(now time.Time) bool {
	expiry, ok := i.ExpiresAt()
	if !ok {
		return false
	}
	return !now.Before(expiry)
}
