package tasks

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"guard-bot/model"
	"guard-bot/utils/database"

	"github.com/bwmarrin/discordgo"
)

func GenerateInfractionStatsEmbed(repo *database.InfractionRepository, targetGuildID string, duration time.Duration) (*discordgo.MessageEmbed, error) {
	since := time.Now().Add(-duration)
	stats, err := repo.GetModeratorStats(targetGuildID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get moderator infraction stats for guild %s: %v", targetGuildID, err)
	}

	total, err := repo.GetTotalCount(targetGuildID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get total infraction count for guild %s: %v", targetGuildID, err)
	}

	var sortedModerators []string
	for moderatorID := range stats {
		sortedModerators = append(sortedModerators, moderatorID)
	}
	sort.Slice(sortedModerators, func(i, j int) bool {
		return stats[sortedModerators[i]] > stats[sortedModerators[j]]
	})

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("### Infractions in the last %s\n", duration.String()))
	builder.WriteString(fmt.Sprintf("**Total: %d**\n\n", total))
	builder.WriteString("**By moderator:**\n")

	for i, moderatorID := range sortedModerators {
		builder.WriteString(fmt.Sprintf("%d. <@%s>: %d\n", i+1, moderatorID, stats[moderatorID]))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Infraction Statistics",
		Description: builder.String(),
		Timestamp:   time.Now().Format(time.RFC3339),
		Color:       0x00ff00,
	}
	return embed, nil
}

func UpdateInfractionStats(s *discordgo.Session, repo *database.InfractionRepository, config *model.StatsChannel, duration time.Duration) {
	embed, err := GenerateInfractionStatsEmbed(repo, config.TargetGuildID, duration)
	if err != nil {
		log.Printf("Failed to generate infraction stats embed: %v", err)
		return
	}

	if config.MessageID == "" {
		msg, err := s.ChannelMessageSendEmbed(config.ChannelID, embed)
		if err != nil {
			log.Printf("Failed to send infraction stats message to channel %s: %v", config.ChannelID, err)
			return
		}
		config.MessageID = msg.ID
	} else {
		_, err = s.ChannelMessageEditEmbed(config.ChannelID, config.MessageID, embed)
		if err != nil {
			log.Printf("Failed to edit infraction stats message %s in channel %s: %v", config.MessageID, config.ChannelID, err)
		}
	}
}
