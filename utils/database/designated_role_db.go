package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guard-bot/model"

	"github.com/jmoiron/sqlx"
)

// DesignatedRoleRepository persists designated role mappings.
type DesignatedRoleRepository struct {
	db    *sqlx.DB
	guard *TransactionGuard
}

// NewDesignatedRoleRepository builds a designated role repository over the
// given database.
func NewDesignatedRoleRepository(db *sqlx.DB) *DesignatedRoleRepository {
	return &DesignatedRoleRepository{db: db, guard: NewTransactionGuard(db)}
}

// BeginCreate acquires the create-class guard.
func (r *DesignatedRoleRepository) BeginCreate(ambient *sqlx.Tx) (*GuardedTx, error) {
	return r.guard.Acquire(CreateClass, ambient)
}

// BeginDelete acquires the delete-class guard.
func (r *DesignatedRoleRepository) BeginDelete(ambient *sqlx.Tx) (*GuardedTx, error) {
	return r.guard.Acquire(DeleteClass, ambient)
}

// Insert adds a new designated role mapping and returns the new row's ID.
func (r *DesignatedRoleRepository) Insert(ext sqlx.Ext, m model.DesignatedRoleMapping) (int64, error) {
	query := `INSERT INTO designated_role_mappings (guild_id, role_id, designation_type, created_by, created_at)
			  VALUES (:guild_id, :role_id, :designation_type, :created_by, :created_at)`

	result, err := sqlx.NamedExec(ext, query, m)
	if err != nil {
		return 0, fmt.Errorf("failed to insert designated role mapping: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// ActiveExists reports whether an active mapping already exists for the
// given role and designation.
func (r *DesignatedRoleRepository) ActiveExists(ext sqlx.Ext, guildID, roleID string, t model.DesignationType) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM designated_role_mappings
			  WHERE guild_id = ? AND role_id = ? AND designation_type = ? AND deleted_at IS NULL`
	err := sqlx.Get(ext, &count, query, guildID, roleID, t)
	if err != nil {
		return false, fmt.Errorf("failed to check designated role %s in guild %s: %w", roleID, guildID, err)
	}
	return count > 0, nil
}

// ActiveRoleIDs retrieves the ids of all roles carrying the given
// designation in a guild.
func (r *DesignatedRoleRepository) ActiveRoleIDs(guildID string, t model.DesignationType) ([]string, error) {
	var roleIDs []string
	query := `SELECT role_id FROM designated_role_mappings
			  WHERE guild_id = ? AND designation_type = ? AND deleted_at IS NULL`
	err := r.db.Select(&roleIDs, query, guildID, t)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s roles for guild %s: %w", t, guildID, err)
	}
	return roleIDs, nil
}

// MuteRoleID retrieves the role granted to muted subjects in a guild. The
// second return is false when the guild has no mute role designated.
func (r *DesignatedRoleRepository) MuteRoleID(guildID string) (string, bool, error) {
	var roleID string
	query := `SELECT role_id FROM designated_role_mappings
			  WHERE guild_id = ? AND designation_type = ? AND deleted_at IS NULL
			  ORDER BY mapping_id DESC LIMIT 1`
	err := r.db.Get(&roleID, query, guildID, model.DesignationModerationMute)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get mute role for guild %s: %w", guildID, err)
	}
	return roleID, true, nil
}

// TryDeleteByRole soft-deletes every active mapping pointing at the given
// role, reporting how many rows were stamped. Used when the platform deletes
// the role out from under the mappings.
func (r *DesignatedRoleRepository) TryDeleteByRole(ext sqlx.Ext, guildID, roleID, deletedBy string, at time.Time) (int64, error) {
	query := `UPDATE designated_role_mappings SET deleted_by = ?, deleted_at = ?
			  WHERE guild_id = ? AND role_id = ? AND deleted_at IS NULL`
	result, err := ext.Exec(query, deletedBy, at.Unix(), guildID, roleID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete designated role mappings for role %s: %w", roleID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected for role %s: %w", roleID, err)
	}
	return rowsAffected, nil
}

// TryDelete soft-deletes an active mapping by id, reporting whether a row
// was found.
func (r *DesignatedRoleRepository) TryDelete(ext sqlx.Ext, id int64, deletedBy string, at time.Time) (bool, error) {
	query := `UPDATE designated_role_mappings SET deleted_by = ?, deleted_at = ?
			  WHERE mapping_id = ? AND deleted_at IS NULL`
	result, err := ext.Exec(query, deletedBy, at.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete designated role mapping %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for designated role mapping %d: %w", id, err)
	}
	return rowsAffected > 0, nil
}
