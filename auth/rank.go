package auth

import (
	"fmt"
	"math"

	"guard-bot/model"
)

// RankRoleSource supplies the roles carrying a designation in a guild.
// Satisfied by database.DesignatedRoleRepository.
type RankRoleSource interface {
	ActiveRoleIDs(guildID string, t model.DesignationType) ([]string, error)
}

// RankChecker decides whether a moderator outranks a subject. Rank is the
// highest platform position among a party's roles that carry the Rank
// designation; a party with no ranked roles compares as minimal.
type RankChecker struct {
	directory model.GuildDirectory
	roles     RankRoleSource
}

// NewRankChecker builds a rank checker.
func NewRankChecker(directory model.GuildDirectory, roles RankRoleSource) *RankChecker {
	return &RankChecker{directory: directory, roles: roles}
}

// Outranks reports whether the moderator may discipline the subject.
func (c *RankChecker) Outranks(guildID, moderatorID, subjectID string) (bool, error) {
	// A subject who already left the guild poses no escalation risk.
	exists, err := c.directory.MemberExists(guildID, subjectID)
	if err != nil {
		return false, fmt.Errorf("failed to check membership of %s in guild %s: %w", subjectID, guildID, err)
	}
	if !exists {
		return true, nil
	}

	guild, err := c.directory.Guild(guildID)
	if err != nil {
		return false, fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}
	// Nobody but the owner outranks the owner, Administrator included.
	if subjectID == guild.OwnerID && moderatorID != guild.OwnerID {
		return false, nil
	}

	moderator, err := c.directory.Member(guildID, moderatorID)
	if err != nil {
		return false, fmt.Errorf("failed to get member %s in guild %s: %w", moderatorID, guildID, err)
	}
	if moderator.Administrator {
		return true, nil
	}

	subject, err := c.directory.Member(guildID, subjectID)
	if err != nil {
		return false, fmt.Errorf("failed to get member %s in guild %s: %w", subjectID, guildID, err)
	}

	rankRoleIDs, err := c.roles.ActiveRoleIDs(guildID, model.DesignationRank)
	if err != nil {
		return false, err
	}
	ranked := make(map[string]struct{}, len(rankRoleIDs))
	for _, id := range rankRoleIDs {
		ranked[id] = struct{}{}
	}

	moderatorRank := highestRank(guild, moderator.RoleIDs, ranked)
	subjectRank := highestRank(guild, subject.RoleIDs, ranked)
	return moderatorRank > subjectRank, nil
}

// highestRank returns the highest platform position among the party's
// Rank-designated roles, or math.MinInt when none of their roles is ranked.
func highestRank(guild *model.GuildInfo, roleIDs []string, ranked map[string]struct{}) int {
	best := math.MinInt
	for _, id := range roleIDs {
		if _, ok := ranked[id]; !ok {
			continue
		}
		if pos, ok := guild.RolePositions[id]; ok && pos > best {
			best = pos
		}
	}
	return best
}
