package model

import (
	"database/sql"
	"sort"
)

// Claim is a named permission that can be granted or denied to a role or a
// user within a guild.
type Claim string

const (
	ClaimAuthorizationConfigure      Claim = "authorization_configure"
	ClaimDesignatedRoleMappingCreate Claim = "designated_role_mapping_create"
	ClaimDesignatedRoleMappingRead   Claim = "designated_role_mapping_read"
	ClaimDesignatedRoleMappingDelete Claim = "designated_role_mapping_delete"
	ClaimModerationRead              Claim = "moderation_read"
	ClaimModerationNote              Claim = "moderation_note"
	ClaimModerationWarn              Claim = "moderation_warn"
	ClaimModerationMute              Claim = "moderation_mute"
	ClaimModerationBan               Claim = "moderation_ban"
	ClaimModerationRescind           Claim = "moderation_rescind"
	ClaimModerationDeleteInfraction  Claim = "moderation_delete_infraction"
)

// AllClaims returns every claim known to the system.
func AllClaims() []Claim {
	return []Claim{
		ClaimAuthorizationConfigure,
		ClaimDesignatedRoleMappingCreate,
		ClaimDesignatedRoleMappingRead,
		ClaimDesignatedRoleMappingDelete,
		ClaimModerationRead,
		ClaimModerationNote,
		ClaimModerationWarn,
		ClaimModerationMute,
		ClaimModerationBan,
		ClaimModerationRescind,
		ClaimModerationDeleteInfraction,
	}
}

// SubjectKind identifies whether a claim mapping targets a role or a user.
type SubjectKind string

const (
	SubjectRole SubjectKind = "role"
	SubjectUser SubjectKind = "user"
)

// MappingType identifies whether a claim mapping grants or denies its claim.
type MappingType string

const (
	MappingGrant MappingType = "grant"
	MappingDeny  MappingType = "deny"
)

// ClaimMapping represents a single grant or deny of one claim to one role or
// user within one guild. Mappings are soft-deleted: a non-null deleted_at
// marks the row inactive, the row itself is never removed.
// The database table is named 'claim_mappings'.
type ClaimMapping struct {
	ID          int64          `db:"mapping_id"` // Primary Key, Auto-increment
	GuildID     string         `db:"guild_id"`
	SubjectKind SubjectKind    `db:"subject_kind"`
	SubjectID   string         `db:"subject_id"`
	Claim       Claim          `db:"claim"`
	Type        MappingType    `db:"mapping_type"`
	CreatedBy   string         `db:"created_by"`
	CreatedAt   int64          `db:"created_at"` // Unix seconds
	DeletedBy   sql.NullString `db:"deleted_by"`
	DeletedAt   sql.NullInt64  `db:"deleted_at"`
}

// Active reports whether the mapping has not been soft-deleted.
func (m *ClaimMapping) Active() bool {
	return !m.DeletedAt.Valid
}

// ClaimSet is the effective set of claims a subject possesses.
type ClaimSet map[Claim]struct{}

// NewClaimSet builds a set from the given claims.
func NewClaimSet(claims ...Claim) ClaimSet {
	s := make(ClaimSet, len(claims))
	for _, c := range claims {
		s[c] = struct{}{}
	}
	return s
}

func (s ClaimSet) Add(c Claim)    { s[c] = struct{}{} }
func (s ClaimSet) Remove(c Claim) { delete(s, c) }

func (s ClaimSet) Contains(c Claim) bool {
	_, ok := s[c]
	return ok
}

// Missing returns the subset of the given claims not present in the set,
// in a stable order.
func (s ClaimSet) Missing(claims ...Claim) []Claim {
	var missing []Claim
	for _, c := range claims {
		if !s.Contains(c) {
			missing = append(missing, c)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// Slice returns the set's claims in a stable order.
func (s ClaimSet) Slice() []Claim {
	out := make([]Claim, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
