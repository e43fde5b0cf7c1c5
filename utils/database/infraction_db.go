package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guard-bot/model"

	"github.com/jmoiron/sqlx"
)

// InfractionRepository persists infractions. All mutations go through the
// repository's TransactionGuard; reads run unguarded.
type InfractionRepository struct {
	db    *sqlx.DB
	guard *TransactionGuard
}

// NewInfractionRepository builds an infraction repository over the given
// database.
func NewInfractionRepository(db *sqlx.DB) *InfractionRepository {
	return &InfractionRepository{db: db, guard: NewTransactionGuard(db)}
}

// BeginCreate acquires the create-class guard.
func (r *InfractionRepository) BeginCreate(ambient *sqlx.Tx) (*GuardedTx, error) {
	return r.guard.Acquire(CreateClass, ambient)
}

// BeginDelete acquires the delete-class guard. Rescind and delete both
// stamp closing columns on existing rows, so both ride this class.
func (r *InfractionRepository) BeginDelete(ambient *sqlx.Tx) (*GuardedTx, error) {
	return r.guard.Acquire(DeleteClass, ambient)
}

// Insert adds a new infraction and returns the new row's ID.
func (r *InfractionRepository) Insert(ext sqlx.Ext, inf model.Infraction) (int64, error) {
	query := `INSERT INTO infractions (guild_id, subject_id, infraction_type, reason, duration_seconds, created_by, created_at)
			  VALUES (:guild_id, :subject_id, :infraction_type, :reason, :duration_seconds, :created_by, :created_at)`

	result, err := sqlx.NamedExec(ext, query, inf)
	if err != nil {
		return 0, fmt.Errorf("failed to insert infraction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetByID retrieves a single infraction by its primary key.
func (r *InfractionRepository) GetByID(id int64) (*model.Infraction, error) {
	var inf model.Infraction
	query := "SELECT * FROM infractions WHERE infraction_id = ?"
	err := r.db.Get(&inf, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get infraction by id %d: %w", id, err)
	}
	return &inf, nil
}

// ActiveExists reports whether the subject already has an active infraction
// of the given type. Runs on the caller's transaction so the check and the
// subsequent insert share the create-class critical section.
func (r *InfractionRepository) ActiveExists(ext sqlx.Ext, guildID, subjectID string, t model.InfractionType) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM infractions
			  WHERE guild_id = ? AND subject_id = ? AND infraction_type = ? AND rescinded_at IS NULL AND deleted_at IS NULL`
	err := sqlx.Get(ext, &count, query, guildID, subjectID, t)
	if err != nil {
		return false, fmt.Errorf("failed to check active %s for subject %s in guild %s: %w", t, subjectID, guildID, err)
	}
	return count > 0, nil
}

// FindActive retrieves the active infraction of the given type for a
// subject, or nil if none exists.
func (r *InfractionRepository) FindActive(guildID, subjectID string, t model.InfractionType) (*model.Infraction, error) {
	var inf model.Infraction
	query := `SELECT * FROM infractions
			  WHERE guild_id = ? AND subject_id = ? AND infraction_type = ? AND rescinded_at IS NULL AND deleted_at IS NULL
			  ORDER BY infraction_id DESC LIMIT 1`
	err := r.db.Get(&inf, query, guildID, subjectID, t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active %s for subject %s in guild %s: %w", t, subjectID, guildID, err)
	}
	return &inf, nil
}

// SearchBySubject retrieves all non-deleted infractions for a subject.
func (r *InfractionRepository) SearchBySubject(guildID, subjectID string) ([]model.Infraction, error) {
	var infractions []model.Infraction
	query := `SELECT * FROM infractions
			  WHERE guild_id = ? AND subject_id = ? AND deleted_at IS NULL ORDER BY created_at`
	err := r.db.Select(&infractions, query, guildID, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get infractions for subject %s in guild %s: %w", subjectID, guildID, err)
	}
	return infractions, nil
}

// ExpiredActive retrieves all timed infractions whose duration has elapsed
// at the given instant and that are neither rescinded nor deleted.
func (r *InfractionRepository) ExpiredActive(now time.Time) ([]model.Infraction, error) {
	var infractions []model.Infraction
	query := `SELECT * FROM infractions
			  WHERE duration_seconds IS NOT NULL
			  AND created_at + duration_seconds <= ?
			  AND rescinded_at IS NULL AND deleted_at IS NULL`
	err := r.db.Select(&infractions, query, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get expired infractions: %w", err)
	}
	return infractions, nil
}

// EarliestExpiry returns the soonest expiry among still-active timed
// infractions, or nil when none remain.
func (r *InfractionRepository) EarliestExpiry() (*time.Time, error) {
	var expiry sql.NullInt64
	query := `SELECT MIN(created_at + duration_seconds) FROM infractions
			  WHERE duration_seconds IS NOT NULL AND rescinded_at IS NULL AND deleted_at IS NULL`
	err := r.db.Get(&expiry, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get earliest infraction expiry: %w", err)
	}
	if !expiry.Valid {
		return nil, nil
	}
	t := time.Unix(expiry.Int64, 0)
	return &t, nil
}

// TryRescind stamps the rescind columns on an active infraction, reporting
// whether a row was found. Already-rescinded or deleted rows are not
// touched, which keeps double-rescind from producing a second write.
func (r *InfractionRepository) TryRescind(ext sqlx.Ext, id int64, reason string, at time.Time) (bool, error) {
	query := `UPDATE infractions SET rescinded_at = ?, rescind_reason = ?
			  WHERE infraction_id = ? AND rescinded_at IS NULL AND deleted_at IS NULL`
	result, err := ext.Exec(query, at.Unix(), reason, id)
	if err != nil {
		return false, fmt.Errorf("failed to rescind infraction %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for infraction %d: %w", id, err)
	}
	return rowsAffected > 0, nil
}

// TryDelete stamps deleted_at on an infraction, reporting whether a row was
// found.
func (r *InfractionRepository) TryDelete(ext sqlx.Ext, id int64, at time.Time) (bool, error) {
	query := "UPDATE infractions SET deleted_at = ? WHERE infraction_id = ? AND deleted_at IS NULL"
	result, err := ext.Exec(query, at.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete infraction %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected for infraction %d: %w", id, err)
	}
	return rowsAffected > 0, nil
}

// GetModeratorStats retrieves the infraction count per moderator within a
// given time range.
func (r *InfractionRepository) GetModeratorStats(guildID string, since time.Time) (map[string]int, error) {
	query := `SELECT created_by, COUNT(*) as count FROM infractions
			  WHERE guild_id = ? AND created_at >= ? AND deleted_at IS NULL
			  GROUP BY created_by ORDER BY count DESC`
	rows, err := r.db.Query(query, guildID, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get moderator infraction stats for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var moderatorID string
		var count int
		if err := rows.Scan(&moderatorID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan moderator infraction stats row: %w", err)
		}
		stats[moderatorID] = count
	}
	return stats, nil
}

// GetTotalCount retrieves the total number of non-deleted infractions
// within a given time range.
func (r *InfractionRepository) GetTotalCount(guildID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM infractions WHERE guild_id = ? AND created_at >= ? AND deleted_at IS NULL`
	err := r.db.Get(&count, query, guildID, since.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to get total infraction count for guild %s: %w", guildID, err)
	}
	return count, nil
}
