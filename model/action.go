package model

import "database/sql"

// ModerationActionType classifies an entry in the moderation audit trail.
type ModerationActionType string

const (
	ActionInfractionCreated   ModerationActionType = "infraction_created"
	ActionInfractionRescinded ModerationActionType = "infraction_rescinded"
	ActionInfractionDeleted   ModerationActionType = "infraction_deleted"
)

// ModerationAction is an append-only audit record for one infraction
// lifecycle event. The audit trail is authoritative; the lifecycle columns
// on the infraction row are denormalized pointers into it.
// The table is named 'moderation_actions'.
type ModerationAction struct {
	ID           int64                `db:"action_id"` // Primary Key, Auto-increment
	GuildID      string               `db:"guild_id"`
	Type         ModerationActionType `db:"action_type"`
	ActorID      string               `db:"actor_id"`
	CreatedAt    int64                `db:"created_at"` // Unix seconds
	InfractionID int64                `db:"infraction_id"`
}

// ConfigurationActionType classifies an entry in the configuration audit
// trail.
type ConfigurationActionType string

const (
	ActionClaimMappingCreated   ConfigurationActionType = "claim_mapping_created"
	ActionClaimMappingDeleted   ConfigurationActionType = "claim_mapping_deleted"
	ActionDesignatedRoleCreated ConfigurationActionType = "designated_role_created"
	ActionDesignatedRoleDeleted ConfigurationActionType = "designated_role_deleted"
)

// ConfigurationAction is an append-only audit record for one authorization
// configuration event. Exactly one of the mapping foreign keys is set.
// The table is named 'configuration_actions'.
type ConfigurationAction struct {
	ID                      int64                   `db:"action_id"` // Primary Key, Auto-increment
	GuildID                 string                  `db:"guild_id"`
	Type                    ConfigurationActionType `db:"action_type"`
	ActorID                 string                  `db:"actor_id"`
	CreatedAt               int64                   `db:"created_at"` // Unix seconds
	ClaimMappingID          sql.NullInt64           `db:"claim_mapping_id"`
	DesignatedRoleMappingID sql.NullInt64           `db:"designated_role_mapping_id"`
}
