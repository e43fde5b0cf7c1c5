package database

import (
	"fmt"

	"guard-bot/model"

	"github.com/jmoiron/sqlx"
)

// ActionRepository writes the append-only audit trail. Audit rows always
// ride the ambient transaction of the mutation they describe, so the
// repository carries no guard of its own.
type ActionRepository struct {
	db *sqlx.DB
}

// NewActionRepository builds an action repository over the given database.
func NewActionRepository(db *sqlx.DB) *ActionRepository {
	return &ActionRepository{db: db}
}

// InsertModeration appends one moderation audit record and returns its ID.
func (r *ActionRepository) InsertModeration(ext sqlx.Ext, a model.ModerationAction) (int64, error) {
	query := `INSERT INTO moderation_actions (guild_id, action_type, actor_id, created_at, infraction_id)
			  VALUES (:guild_id, :action_type, :actor_id, :created_at, :infraction_id)`

	result, err := sqlx.NamedExec(ext, query, a)
	if err != nil {
		return 0, fmt.Errorf("failed to insert moderation action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// InsertConfiguration appends one configuration audit record and returns
// its ID.
func (r *ActionRepository) InsertConfiguration(ext sqlx.Ext, a model.ConfigurationAction) (int64, error) {
	query := `INSERT INTO configuration_actions (guild_id, action_type, actor_id, created_at, claim_mapping_id, designated_role_mapping_id)
			  VALUES (:guild_id, :action_type, :actor_id, :created_at, :claim_mapping_id, :designated_role_mapping_id)`

	result, err := sqlx.NamedExec(ext, query, a)
	if err != nil {
		return 0, fmt.Errorf("failed to insert configuration action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetModerationByInfraction retrieves the audit records for one infraction
// in creation order.
func (r *ActionRepository) GetModerationByInfraction(infractionID int64) ([]model.ModerationAction, error) {
	var actions []model.ModerationAction
	query := "SELECT * FROM moderation_actions WHERE infraction_id = ? ORDER BY action_id"
	err := r.db.Select(&actions, query, infractionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get moderation actions for infraction %d: %w", infractionID, err)
	}
	return actions, nil
}
