package database

import (
	"fmt"
	"time"

	"guard-bot/model"

	"github.com/jmoiron/sqlx"
)

// ClaimRepository persists claim mappings. All mutations go through the
// repository's TransactionGuard; reads run unguarded.
type ClaimRepository struct {
	db    *sqlx.DB
	guard *TransactionGuard
}

// NewClaimRepository builds a claim repository over the given database.
func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db, guard: NewTransactionGuard(db)}
}

// BeginCreate acquires the create-class guard.
func (r *ClaimRepository) BeginCreate(ambient *sqlx.Tx) (*GuardedTx, error) {
	return r.guard.Acquire(CreateClass, ambient)
}

// BeginDelete acquires the delete-class guard.
func (r *ClaimRepository) BeginDelete(ambient *sqlx.Tx) (*GuardedTx, error) {
	return r.guard.Acquire(DeleteClass, ambient)
}

// Insert adds a new claim mapping and returns the new row's ID.
func (r *ClaimRepository) Insert(ext sqlx.Ext, m model.ClaimMapping) (int64, error) {
	query := `INSERT INTO claim_mappings (guild_id, subject_kind, subject_id, claim, mapping_type, created_by, created_at)
			  VALUES (:guild_id, :subject_kind, :subject_id, :claim, :mapping_type, :created_by, :created_at)`

	result, err := sqlx.NamedExec(ext, query, m)
	if err != nil {
		return 0, fmt.Errorf("failed to insert claim mapping: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// ActiveExists reports whether an active mapping already exists for the
// given identity tuple. Runs on the caller's transaction so the check and
// the subsequent insert share the create-class critical section.
func (r *ClaimRepository) ActiveExists(ext sqlx.Ext, guildID string, kind model.SubjectKind, subjectID string, claim model.Claim, mt model.MappingType) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM claim_mappings
			  WHERE guild_id = ? AND subject_kind = ? AND subject_id = ? AND claim = ? AND mapping_type = ? AND deleted_at IS NULL`
	err := sqlx.Get(ext, &count, query, guildID, kind, subjectID, claim, mt)
	if err != nil {
		return false, fmt.Errorf("failed to check active claim mapping for subject %s in guild %s: %w", subjectID, guildID, err)
	}
	return count > 0, nil
}

// SearchActive retrieves all active mappings in a guild whose subject is one
// of the given role ids or the given user id, optionally restricted to the
// filter claims.
func (r *ClaimRepository) SearchActive(guildID string, roleIDs []string, userID string, filter []model.Claim) ([]model.ClaimMapping, error) {
	query := `SELECT * FROM claim_mappings
			  WHERE guild_id = ? AND deleted_at IS NULL
			  AND ((subject_kind = 'user' AND subject_id = ?)`
	args := []interface{}{guildID, userID}

	if len(roleIDs) > 0 {
		query += " OR (subject_kind = 'role' AND subject_id IN (?))"
		args = append(args, roleIDs)
	}
	query += ")"

	if len(filter) > 0 {
		query += " AND claim IN (?)"
		args = append(args, filter)
	}
	query += " ORDER BY mapping_id"

	query, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to expand claim mapping query: %w", err)
	}

	var mappings []model.ClaimMapping
	err = r.db.Select(&mappings, query, inArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to search claim mappings for guild %s: %w", guildID, err)
	}
	return mappings, nil
}

// GetByID retrieves a single mapping by its primary key.
func (r *ClaimRepository) GetByID(id int64) (*model.ClaimMapping, error) {
	var m model.ClaimMapping
	query := "SELECT * FROM claim_mappings WHERE mapping_id = ?"
	err := r.db.Get(&m, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get claim mapping by id %d: %w", id, err)
	}
	return &m, nil
}

// TryDelete soft-deletes an active mapping, reporting whether a row was
// found. Already-deleted mappings are not touched.
func (r *ClaimRepository) TryDelete(ext sqlx.Ext, id int64, deletedBy string, at time.Time) (bool, error) {
	query := "UPDATE claim_mappings SET deleted_by = ?, deleted_at = ? WHERE mapping_id = ? AND deleted_at IS NULL"
	result, err := ext.Exec(query, deletedBy, at.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete claim mapping %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for claim mapping %d: %w", id, err)
	}
	return rowsAffected > 0, nil
}
