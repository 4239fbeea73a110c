// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"retro-league-bot/internal/config"
	"retro-league-bot/internal/model"
	"retro-league-bot/internal/service"
)

// LeagueHandler handles league member commands. Commands are only useful
// to roster members; anyone else gets a short refusal.
type LeagueHandler struct {
	cfg            *config.Config
	masteryService *service.MasteryService
	leagueService  *service.LeagueService
}

// NewLeagueHandler creates a new LeagueHandler.
func NewLeagueHandler(cfg *config.Config, masteryService *service.MasteryService, leagueService *service.LeagueService) *LeagueHandler {
	return &LeagueHandler{
		cfg:            cfg,
		masteryService: masteryService,
		leagueService:  leagueService,
	}
}

// HandleMonthly handles the /monthly command: the caller's stats for the
// current calendar month.
func (h *LeagueHandler) HandleMonthly(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	member, ok := h.cfg.MemberByTelegramID(sender.ID)
	if !ok {
		return c.Reply("You are not on the league roster.")
	}

	from, to := service.MonthWindow(time.Now())
	stats, err := h.leagueService.BuildPeriodStats(ctx, member, from, to)
	if err != nil {
		log.Warn().Str("username", member.RAUsername).Err(err).
			Msg("Failed to build monthly stats")
		return c.Reply("Could not fetch your stats right now, try again later.")
	}

	return c.Reply(formatPeriodStats(stats, "Monthly"), tele.ModeMarkdown)
}

// HandleMasteries handles the /masteries command: the caller's recorded
// mastery count.
func (h *LeagueHandler) HandleMasteries(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	member, ok := h.cfg.MemberByTelegramID(sender.ID)
	if !ok {
		return c.Reply("You are not on the league roster.")
	}

	count, err := h.masteryService.MasteryCount(ctx, member)
	if err != nil {
		log.Warn().Str("username", member.RAUsername).Err(err).
			Msg("Failed to read mastery count")
		return c.Reply("Could not read your masteries right now, try again later.")
	}

	if count == 1 {
		return c.Reply("You have 1 recorded mastery.")
	}
	return c.Reply(fmt.Sprintf("You have %d recorded masteries.", count))
}

// formatPeriodStats renders a member's period statistics reply.
func formatPeriodStats(stats *model.PeriodStats, periodName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 %s stats for %s\n\n", periodName, stats.Member.RAUsername)
	fmt.Fprintf(&b, "Points: %d\n", stats.TotalPoints)
	fmt.Fprintf(&b, "White points: %.2f\n", stats.TotalWhitePoints)

	if stats.RarestAchievement != nil {
		fmt.Fprintf(&b, "Rarest achievement: *%s*", stats.RarestAchievement.Title)
		if stats.RarestGame != nil {
			fmt.Fprintf(&b, " (%s)", stats.RarestGame.Title)
		}
	} else {
		b.WriteString("No matured achievements earned this period.")
	}

	return b.String()
}
