package bot

import (
	"errors"
	"fmt"

	"guard-bot/model"

	"github.com/bwmarrin/discordgo"
)

// SessionDirectory implements model.GuildDirectory over the gateway
// session's REST surface.
type SessionDirectory struct {
	session *discordgo.Session
}

func NewSessionDirectory(s *discordgo.Session) *SessionDirectory {
	return &SessionDirectory{session: s}
}

func (d *SessionDirectory) Guild(guildID string) (*model.GuildInfo, error) {
	g, err := d.session.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}

	positions := make(map[string]int, len(g.Roles))
	for _, role := range g.Roles {
		positions[role.ID] = role.Position
	}
	return &model.GuildInfo{ID: g.ID, OwnerID: g.OwnerID, RolePositions: positions}, nil
}

func (d *SessionDirectory) Member(guildID, userID string) (*model.MemberInfo, error) {
	m, err := d.session.GuildMember(guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s in guild %s: %w", userID, guildID, err)
	}

	g, err := d.session.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild %s: %w", guildID, err)
	}

	administrator := g.OwnerID == userID
	if !administrator {
		perms := make(map[string]int64, len(g.Roles))
		for _, role := range g.Roles {
			perms[role.ID] = role.Permissions
		}
		for _, roleID := range m.Roles {
			if perms[roleID]&discordgo.PermissionAdministrator != 0 {
				administrator = true
				break
			}
		}
	}

	return &model.MemberInfo{UserID: userID, RoleIDs: m.Roles, Administrator: administrator}, nil
}

func (d *SessionDirectory) MemberExists(guildID, userID string) (bool, error) {
	_, err := d.session.GuildMember(guildID, userID)
	if err == nil {
		return true, nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMember {
		return false, nil
	}
	return false, fmt.Errorf("failed to check member %s in guild %s: %w", userID, guildID, err)
}

func (d *SessionDirectory) AddBan(guildID, userID, reason string) error {
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (d *SessionDirectory) RemoveBan(guildID, userID string) error {
	return d.session.GuildBanDelete(guildID, userID)
}

func (d *SessionDirectory) AddRole(guildID, userID, roleID string) error {
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *SessionDirectory) RemoveRole(guildID, userID, roleID string) error {
	return d.session.GuildMemberRoleRemove(guildID, userID, roleID)
}
