package handlers

import (
	"log"

	"guard-bot/bot"
	"guard-bot/model"

	"github.com/bwmarrin/discordgo"
)

// Register wires gateway events into the notification dispatcher and hooks
// the core's handlers onto it.
func Register(b *bot.Bot) {
	d := NewDispatcher(b.Done())
	registerCoreHandlers(b, d)
	addSessionHandlers(b, d)
}

func registerCoreHandlers(b *bot.Bot, d *Dispatcher) {
	d.Register(model.NotifyReady, func(n model.Notification, done <-chan struct{}) {
		b.OnReady()
	})

	// A muted subject who rejoins gets the mute role back.
	d.Register(model.NotifyMemberJoined, func(n model.Notification, done <-chan struct{}) {
		if err := b.Ledger.ReapplyMuteOnRejoin(n.GuildID, n.UserID); err != nil {
			log.Printf("Failed to reapply mute for user %s in guild %s: %v", n.UserID, n.GuildID, err)
		}
	})

	// Designations pointing at a role the platform removed go stale;
	// stamp them out.
	d.Register(model.NotifyRoleDeleted, func(n model.Notification, done <-chan struct{}) {
		stamped, err := b.Designations.CleanupDeletedRole(n.GuildID, n.RoleID, b.UserID)
		if err != nil {
			log.Printf("Failed to clean up designations for deleted role %s in guild %s: %v", n.RoleID, n.GuildID, err)
			return
		}
		if stamped > 0 {
			log.Printf("Removed %d designation(s) for deleted role %s in guild %s", stamped, n.RoleID, n.GuildID)
		}
	})
}

func addSessionHandlers(b *bot.Bot, d *Dispatcher) {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Printf("Logged in as: %v#%v", r.User.Username, r.User.Discriminator)
		d.Dispatch(model.Notification{Type: model.NotifyReady})
	})
	b.Session.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		d.Dispatch(model.Notification{Type: model.NotifyGuildAvailable, GuildID: g.ID})
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		d.Dispatch(model.Notification{Type: model.NotifyMemberJoined, GuildID: m.GuildID, UserID: m.User.ID})
	})
	b.Session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
		d.Dispatch(model.Notification{Type: model.NotifyMemberLeft, GuildID: m.GuildID, UserID: m.User.ID})
	})
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.GuildRoleCreate) {
		d.Dispatch(model.Notification{Type: model.NotifyRoleCreated, GuildID: r.GuildID, RoleID: r.Role.ID})
	})
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.GuildRoleUpdate) {
		d.Dispatch(model.Notification{Type: model.NotifyRoleUpdated, GuildID: r.GuildID, RoleID: r.Role.ID})
	})
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.GuildRoleDelete) {
		d.Dispatch(model.Notification{Type: model.NotifyRoleDeleted, GuildID: r.GuildID, RoleID: r.RoleID})
	})
}
