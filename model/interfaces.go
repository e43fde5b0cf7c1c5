package model

// GuildInfo is the slice of platform guild state the core needs.
type GuildInfo struct {
	ID      string
	OwnerID string
	// RolePositions maps role id to the role's platform-defined position.
	RolePositions map[string]int
}

// MemberInfo is the slice of platform member state the core needs.
type MemberInfo struct {
	UserID        string
	RoleIDs       []string
	Administrator bool
}

// GuildDirectory provides guild state and member/role/ban mutations on the
// chat platform. Implemented over the gateway session; defined here to avoid
// circular dependencies between the auth, moderation, and bot packages.
type GuildDirectory interface {
	Guild(guildID string) (*GuildInfo, error)
	Member(guildID, userID string) (*MemberInfo, error)
	MemberExists(guildID, userID string) (bool, error)
	AddBan(guildID, userID, reason string) error
	RemoveBan(guildID, userID string) error
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
}
