package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"guard-bot/model"
	"guard-bot/utils/database"
)

// ErrDuplicateDesignation reports an attempt to designate a role twice with
// the same type.
var ErrDuplicateDesignation = errors.New("an active designation of this type already exists for this role")

// DesignationService manages designated role configuration.
type DesignationService struct {
	roles   *database.DesignatedRoleRepository
	actions *database.ActionRepository
}

// NewDesignationService builds a designation service.
func NewDesignationService(roles *database.DesignatedRoleRepository, actions *database.ActionRepository) *DesignationService {
	return &DesignationService{roles: roles, actions: actions}
}

// Designate tags a role with a designation type.
func (s *DesignationService) Designate(actor *Context, guildID, roleID string, t model.DesignationType) (int64, error) {
	if err := actor.RequireAuthenticatedGuild(); err != nil {
		return 0, err
	}
	if err := actor.RequireClaims(model.ClaimDesignatedRoleMappingCreate); err != nil {
		return 0, err
	}

	tx, err := s.roles.BeginCreate(nil)
	if err != nil {
		return 0, err
	}
	defer tx.Close()

	exists, err := s.roles.ActiveExists(tx.Tx, guildID, roleID, t)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrDuplicateDesignation
	}

	now := time.Now()
	id, err := s.roles.Insert(tx.Tx, model.DesignatedRoleMapping{
		GuildID:   guildID,
		RoleID:    roleID,
		Type:      t,
		CreatedBy: actor.UserID,
		CreatedAt: now.Unix(),
	})
	if err != nil {
		return 0, err
	}

	_, err = s.actions.InsertConfiguration(tx.Tx, model.ConfigurationAction{
		GuildID:                 guildID,
		Type:                    model.ActionDesignatedRoleCreated,
		ActorID:                 actor.UserID,
		CreatedAt:               now.Unix(),
		DesignatedRoleMappingID: sql.NullInt64{Int64: id, Valid: true},
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// Undesignate soft-deletes one designation by id.
func (s *DesignationService) Undesignate(actor *Context, guildID string, id int64) error {
	if err := actor.RequireAuthenticatedGuild(); err != nil {
		return err
	}
	if err := actor.RequireClaims(model.ClaimDesignatedRoleMappingDelete); err != nil {
		return err
	}

	tx, err := s.roles.BeginDelete(nil)
	if err != nil {
		return err
	}
	defer tx.Close()

	now := time.Now()
	found, err := s.roles.TryDelete(tx.Tx, id, actor.UserID, now)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no active designated role mapping found with id %d", id)
	}

	_, err = s.actions.InsertConfiguration(tx.Tx, model.ConfigurationAction{
		GuildID:                 guildID,
		Type:                    model.ActionDesignatedRoleDeleted,
		ActorID:                 actor.UserID,
		CreatedAt:               now.Unix(),
		DesignatedRoleMappingID: sql.NullInt64{Int64: id, Valid: true},
	})
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CleanupDeletedRole stamps every designation pointing at a role the
// platform has removed. Invoked from the role-delete gateway notification;
// the bot itself is the actor.
func (s *DesignationService) CleanupDeletedRole(guildID, roleID, botUserID string) (int64, error) {
	tx, err := s.roles.BeginDelete(nil)
	if err != nil {
		return 0, err
	}
	defer tx.Close()

	stamped, err := s.roles.TryDeleteByRole(tx.Tx, guildID, roleID, botUserID, time.Now())
	if err != nil {
		return 0, err
	}
	if stamped == 0 {
		return 0, nil
	}
	return stamped, tx.Commit()
}
