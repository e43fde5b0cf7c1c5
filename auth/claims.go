package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guard-bot/model"
	"guard-bot/utils/database"
)

// ErrDuplicateMapping reports an attempt to create a second active mapping
// for the same (guild, subject kind, subject, claim, type) tuple. The store
// carries no uniqueness constraint; the pre-insert check under the
// create-class guard is what upholds the invariant.
var ErrDuplicateMapping = errors.New("an active claim mapping already exists for this subject, claim, and type")

// ClaimService manages claim mapping configuration.
type ClaimService struct {
	claims  *database.ClaimRepository
	actions *database.ActionRepository
}

// NewClaimService builds a claim service.
func NewClaimService(claims *database.ClaimRepository, actions *database.ActionRepository) *ClaimService {
	return &ClaimService{claims: claims, actions: actions}
}

// CreateMapping records a new grant or deny. The existence check and the
// insert share the create-class critical section so concurrent creates
// cannot both pass the check.
func (s *ClaimService) CreateMapping(actor *Context, guildID string, kind model.SubjectKind, subjectID string, claim model.Claim, mt model.MappingType) (int64, error) {
	if err := actor.RequireAuthenticatedGuild(); err != nil {
		return 0, err
	}
	if err := actor.RequireClaims(model.ClaimAuthorizationConfigure); err != nil {
		return 0, err
	}

	tx, err := s.claims.BeginCreate(nil)
	if err != nil {
		return 0, err
	}
	defer tx.Close()

	exists, err := s.claims.ActiveExists(tx.Tx, guildID, kind, subjectID, claim, mt)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrDuplicateMapping
	}

	now := time.Now()
	id, err := s.claims.Insert(tx.Tx, model.ClaimMapping{
		GuildID:     guildID,
		SubjectKind: kind,
		SubjectID:   subjectID,
		Claim:       claim,
		Type:        mt,
		CreatedBy:   actor.UserID,
		CreatedAt:   now.Unix(),
	})
	if err != nil {
		return 0, err
	}

	_, err = s.actions.InsertConfiguration(tx.Tx, model.ConfigurationAction{
		GuildID:        guildID,
		Type:           model.ActionClaimMappingCreated,
		ActorID:        actor.UserID,
		CreatedAt:      now.Unix(),
		ClaimMappingID: sql.NullInt64{Int64: id, Valid: true},
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteMapping soft-deletes a mapping and records the closing audit row.
func (s *ClaimService) DeleteMapping(actor *Context, guildID string, id int64) error {
	if err := actor.RequireAuthenticatedGuild(); err != nil {
		return err
	}
	if err := actor.RequireClaims(model.ClaimAuthorizationConfigure); err != nil {
		return err
	}

	tx, err := s.claims.BeginDelete(nil)
	if err != nil {
		return err
	}
	defer tx.Close()

	now := time.Now()
	found, err := s.claims.TryDelete(tx.Tx, id, actor.UserID, now)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no active claim mapping found with id %d", id)
	}

	_, err = s.actions.InsertConfiguration(tx.Tx, model.ConfigurationAction{
		GuildID:        guildID,
		Type:           model.ActionClaimMappingDeleted,
		ActorID:        actor.UserID,
		CreatedAt:      now.Unix(),
		ClaimMappingID: sql.NullInt64{Int64: id, Valid: true},
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}
