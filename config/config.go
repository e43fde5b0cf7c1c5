package config

import (
	"encoding/json"
	"log"
	"os"

	"guard-bot/model"
	"guard-bot/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load loads the configuration from environment variables and JSON files.
func Load() (*model.Config, error) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Info: .env file not found, relying on environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DB_PATH", "data/moderation.db")

	token := v.GetString("BOT_TOKEN")
	if token == "" {
		log.Fatal("Error: BOT_TOKEN environment variable not set")
	}

	logChannelID := v.GetString("LOG_CHANNEL_ID")
	if logChannelID == "" {
		log.Println("Warning: LOG_CHANNEL_ID not set, channel logging will be disabled")
	}

	cfg := &model.Config{
		BotToken:      token,
		DBPath:        v.GetString("DB_PATH"),
		LogChannelID:  logChannelID,
		LogWebhookURL: v.GetString("LOG_WEBHOOK_URL"),
	}

	if raw := v.GetString("DEFAULT_MUTE_DURATION"); raw != "" {
		d, err := utils.ParseDuration(raw)
		if err != nil {
			log.Printf("Warning: Invalid DEFAULT_MUTE_DURATION value %q, mutes default to indefinite. Error: %v", raw, err)
		} else {
			cfg.DefaultMuteDuration = d
		}
	}

	// Load stats channel config
	if err := loadJSON("data/stats_channels.json", &cfg.StatsChannels); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadJSON(path string, v interface{}) error {
	configFile, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Warning: Config file not found at %s, skipping.", path)
			return nil
		}
		return err
	}
	return json.Unmarshal(configFile, v)
}
