package bot

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"guard-bot/utils"
)

func (b *Bot) Run() {
	err := b.Session.Open()
	if err != nil {
		log.Fatalf("Error opening connection: %v", err)
	}

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	if url := b.GetConfig().LogWebhookURL; url != "" {
		if err := utils.LogInfo(url, "System", "Startup", "Bot has started successfully."); err != nil {
			log.Printf("Failed to send startup log: %v", err)
		}
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
}
