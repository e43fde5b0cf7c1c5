package bot

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"guard-bot/auth"
	"guard-bot/model"
	"guard-bot/moderation"
	"guard-bot/tasks"
	"guard-bot/utils/database"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
)

type Bot struct {
	Session *discordgo.Session
	config  atomic.Value // *model.Config
	DB      *sqlx.DB
	UserID  string

	Claims      *database.ClaimRepository
	Infractions *database.InfractionRepository
	Roles       *database.DesignatedRoleRepository
	Actions     *database.ActionRepository

	Authorizer   *auth.Authorizer
	ClaimService *auth.ClaimService
	Designations *auth.DesignationService
	Ledger       *moderation.Ledger
	Scheduler    *moderation.RescindScheduler

	statsTicker *time.Ticker
	readyOnce   sync.Once
	wg          sync.WaitGroup
	done        chan struct{}
}

func (b *Bot) GetConfig() *model.Config {
	return b.config.Load().(*model.Config)
}

func (b *Bot) GetSession() *discordgo.Session {
	return b.Session
}

func (b *Bot) GetDB() *sqlx.DB {
	return b.DB
}

// Done closes when the bot shuts down.
func (b *Bot) Done() <-chan struct{} {
	return b.done
}

func New(cfg *model.Config, db *sqlx.DB) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	dg.StateEnabled = false

	// The bot's own account resolves to all claims and acts as the actor
	// on scheduler-driven rescissions; fetch it up front over REST.
	self, err := dg.User("@me")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bot account: %w", err)
	}

	claims := database.NewClaimRepository(db)
	infractions := database.NewInfractionRepository(db)
	roles := database.NewDesignatedRoleRepository(db)
	actions := database.NewActionRepository(db)

	directory := NewSessionDirectory(dg)
	resolver := auth.NewResolver(claims, self.ID)
	ranks := auth.NewRankChecker(directory, roles)

	ledger := moderation.NewLedger(infractions, actions, roles, directory, ranks, self.ID, cfg.LogWebhookURL, cfg.DefaultMuteDuration)
	scheduler := moderation.NewRescindScheduler(ledger)
	ledger.SetNotifier(scheduler)

	b := &Bot{
		Session:      dg,
		DB:           db,
		UserID:       self.ID,
		Claims:       claims,
		Infractions:  infractions,
		Roles:        roles,
		Actions:      actions,
		Authorizer:   auth.NewAuthorizer(resolver),
		ClaimService: auth.NewClaimService(claims, actions),
		Designations: auth.NewDesignationService(roles, actions),
		Ledger:       ledger,
		Scheduler:    scheduler,
		done:         make(chan struct{}),
	}
	b.config.Store(cfg)
	return b, nil
}

// OnReady runs once, on the first ready signal: the scheduler fires
// immediately to catch up on expirations missed while offline, and the
// periodic stats loop starts.
func (b *Bot) OnReady() {
	b.readyOnce.Do(func() {
		b.Scheduler.FireNow()

		cfg := b.GetConfig()
		if cfg.LogChannelID != "" {
			tasks.PostSystemStatus(b.Session, cfg.LogChannelID)
		}
		if len(cfg.StatsChannels) > 0 {
			b.startStatsLoop()
		}
	})
}

func (b *Bot) startStatsLoop() {
	b.statsTicker = time.NewTicker(1 * time.Hour)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.statsTicker.C:
				log.Println("Updating infraction stats...")
				b.updateStats()
			case <-b.done:
				return
			}
		}
	}()
}

func (b *Bot) updateStats() {
	cfg := b.GetConfig()
	for idx := range cfg.StatsChannels {
		tasks.UpdateInfractionStats(b.Session, b.Infractions, &cfg.StatsChannels[idx], 24*time.Hour)
	}
}

func (b *Bot) Close() {
	log.Println("Gracefully shutting down.")
	close(b.done)

	b.Scheduler.Stop()
	if b.statsTicker != nil {
		b.statsTicker.Stop()
	}
	b.wg.Wait()
	b.Session.Close()
}
