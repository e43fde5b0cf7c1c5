package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimSetMissingIsSortedAndExact(t *testing.T) {
	set := NewClaimSet(ClaimModerationWarn)

	missing := set.Missing(ClaimModerationWarn, ClaimModerationMute, ClaimModerationBan)
	assert.Equal(t, []Claim{ClaimModerationBan, ClaimModerationMute}, missing)

	assert.Empty(t, set.Missing(ClaimModerationWarn))
	assert.Empty(t, set.Missing())
}

func TestClaimSetAddRemove(t *testing.T) {
	set := NewClaimSet()
	set.Add(ClaimModerationMute)
	assert.True(t, set.Contains(ClaimModerationMute))

	set.Remove(ClaimModerationMute)
	assert.False(t, set.Contains(ClaimModerationMute))

	// Removing an absent claim is a no-op.
	set.Remove(ClaimModerationBan)
	assert.Empty(t, set)
}

func TestInfractionTypeCreateClaim(t *testing.T) {
	cases := map[InfractionType]Claim{
		InfractionNotice:  ClaimModerationNote,
		InfractionWarning: ClaimModerationWarn,
		InfractionMute:    ClaimModerationMute,
		InfractionBan:     ClaimModerationBan,
	}
	for infractionType, want := range cases {
		claim, ok := infractionType.CreateClaim()
		assert.True(t, ok)
		assert.Equal(t, want, claim)
	}

	_, ok := InfractionType("timeout").CreateClaim()
	assert.False(t, ok)
}

func TestInfractionTypeExclusive(t *testing.T) {
	assert.True(t, InfractionMute.Exclusive())
	assert.True(t, InfractionBan.Exclusive())
	assert.False(t, InfractionNotice.Exclusive())
	assert.False(t, InfractionWarning.Exclusive())
}
