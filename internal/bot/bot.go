// Package bot provides the Telegram bot initialization and handler
// registration, and implements the notification dispatcher for mastery
// announcements.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"retro-league-bot/internal/config"
	"retro-league-bot/internal/handler"
	"retro-league-bot/internal/model"
	"retro-league-bot/internal/pkg/metrics"
	"retro-league-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	leagueHandler *handler.LeagueHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	MasteryService *service.MasteryService
	LeagueService  *service.LeagueService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	// Initialize handlers
	b.leagueHandler = handler.NewLeagueHandler(deps.Config, deps.MasteryService, deps.LeagueService)

	// Register middleware
	b.registerMiddleware()

	// Register handlers
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
	b.bot.Use(RecoveryMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/monthly", b.leagueHandler.HandleMonthly)
	b.bot.Handle("/masteries", b.leagueHandler.HandleMasteries)
}

// AnnounceMastery formats and posts a mastery announcement to the
// configured league chat.
func (b *Bot) AnnounceMastery(member model.LeagueMember, delta *model.MasteryDelta, pick *model.RarestPick) error {
	text := FormatMasteryMessage(member, delta, pick)

	chat := &tele.Chat{ID: b.cfg.Bot.LeagueChatID}
	if _, err := b.bot.Send(chat, text, tele.ModeMarkdown); err != nil {
		return fmt.Errorf("failed to send mastery announcement: %w", err)
	}

	metrics.NotificationsSent.Inc()
	log.Info().
		Str("username", member.RAUsername).
		Int64("game_id", delta.Game.GameID).
		Int("mastery_count", delta.TotalMasteryCount).
		Msg("Mastery announcement sent")
	return nil
}

// Start starts the bot polling. Blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
