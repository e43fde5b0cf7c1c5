package model

// NotificationType identifies a gateway-originated event delivered to the
// core. The core never polls the gateway; each event arrives as one typed
// notification fanned out to all registered handlers.
type NotificationType string

const (
	NotifyReady          NotificationType = "ready"
	NotifyGuildAvailable NotificationType = "guild_available"
	NotifyMemberJoined   NotificationType = "member_joined"
	NotifyMemberLeft     NotificationType = "member_left"
	NotifyRoleCreated    NotificationType = "role_created"
	NotifyRoleUpdated    NotificationType = "role_updated"
	NotifyRoleDeleted    NotificationType = "role_deleted"
)

// Notification carries one gateway event. Fields beyond Type are populated
// where the event supplies them.
type Notification struct {
	Type    NotificationType
	GuildID string
	UserID  string
	RoleID  string
}

// NotificationHandler processes one notification. The done channel closes on
// shutdown; handlers must not block past it.
type NotificationHandler func(n Notification, done <-chan struct{})
