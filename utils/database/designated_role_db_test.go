package database

import (
	"testing"
	"time"

	"guard-bot/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesignatedRoleLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewDesignatedRoleRepository(db)

	now := time.Now().Unix()
	_, err := repo.Insert(db, model.DesignatedRoleMapping{
		GuildID: "g1", RoleID: "r1", Type: model.DesignationRank,
		CreatedBy: "admin", CreatedAt: now,
	})
	require.NoError(t, err)
	_, err = repo.Insert(db, model.DesignatedRoleMapping{
		GuildID: "g1", RoleID: "r2", Type: model.DesignationRank,
		CreatedBy: "admin", CreatedAt: now,
	})
	require.NoError(t, err)

	roleIDs, err := repo.ActiveRoleIDs("g1", model.DesignationRank)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, roleIDs)

	exists, err := repo.ActiveExists(db, "g1", "r1", model.DesignationRank)
	require.NoError(t, err)
	assert.True(t, exists)

	stamped, err := repo.TryDeleteByRole(db, "g1", "r1", "bot", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stamped)

	roleIDs, err = repo.ActiveRoleIDs("g1", model.DesignationRank)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, roleIDs)

	// Nothing left to stamp for that role.
	stamped, err = repo.TryDeleteByRole(db, "g1", "r1", "bot", time.Now())
	require.NoError(t, err)
	assert.Zero(t, stamped)
}

func TestMuteRoleID(t *testing.T) {
	db := testDB(t)
	repo := NewDesignatedRoleRepository(db)

	_, found, err := repo.MuteRoleID("g1")
	require.NoError(t, err)
	assert.False(t, found)

	id, err := repo.Insert(db, model.DesignatedRoleMapping{
		GuildID: "g1", RoleID: "muted", Type: model.DesignationModerationMute,
		CreatedBy: "admin", CreatedAt: time.Now().Unix(),
	})
	require.NoError(t, err)

	roleID, found, err := repo.MuteRoleID("g1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "muted", roleID)

	ok, err := repo.TryDelete(db, id, "admin", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err = repo.MuteRoleID("g1")
	require.NoError(t, err)
	assert.False(t, found)
}
