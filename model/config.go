package model

import "time"

// StatsChannel configures one channel receiving the periodic infraction
// stats embed. MessageID is filled after the first post so later runs edit
// the same message.
type StatsChannel struct {
	TargetGuildID string `json:"target_guild_id"`
	ChannelID     string `json:"channel_id"`
	MessageID     string `json:"message_id,omitempty"`
}

// Config stores the application configuration.
type Config struct {
	BotToken      string
	DBPath        string
	LogChannelID  string
	LogWebhookURL string
	// DefaultMuteDuration applies when a mute is created without an
	// explicit duration. Zero means indefinite.
	DefaultMuteDuration time.Duration
	StatsChannels       []StatsChannel
}
