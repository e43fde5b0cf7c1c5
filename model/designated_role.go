package model

import "database/sql"

// DesignationType tags a role with a functional purpose.
type DesignationType string

const (
	// DesignationRank roles impose the escalation order between moderators
	// and subjects via the role's platform-defined position.
	DesignationRank DesignationType = "rank"
	// DesignationModerationMute identifies the single role assigned to
	// muted subjects.
	DesignationModerationMute DesignationType = "moderation_mute"
	DesignationPingable       DesignationType = "pingable"
	DesignationUnmoderated    DesignationType = "unmoderated"
)

// DesignatedRoleMapping tags one role in one guild with a designation.
// Soft-deleted like claim mappings. The table is named
// 'designated_role_mappings'.
type DesignatedRoleMapping struct {
	ID        int64           `db:"mapping_id"` // Primary Key, Auto-increment
	GuildID   string          `db:"guild_id"`
	RoleID    string          `db:"role_id"`
	Type      DesignationType `db:"designation_type"`
	CreatedBy string          `db:"created_by"`
	CreatedAt int64           `db:"created_at"` // Unix seconds
	DeletedBy sql.NullString  `db:"deleted_by"`
	DeletedAt sql.NullInt64   `db:"deleted_at"`
}

// Active reports whether the mapping has not been soft-deleted.
func (m *DesignatedRoleMapping) Active() bool {
	return !m.DeletedAt.Valid
}
