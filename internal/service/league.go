package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"retro-league-bot/internal/model"
)

// maturityPeriod is how old an achievement definition must be before it
// counts toward rarity-weighted scoring. Freshly revised achievements can
// carry inflated TrueRatio values for a grace period; excluding them keeps
// a late edit from distorting a period's score.
const maturityPeriod = 14 * 24 * time.Hour

// defaultFanOut bounds per-game progress fetches issued in parallel.
const defaultFanOut = 10

// LeagueService aggregates a member's hardcore activity over a date
// window: total points, rarity-weighted "white points", and the rarest
// achievement earned in the period. Pure reads; nothing is persisted.
type LeagueService struct {
	source  AchievementSource
	fanOut  int
	nowFunc func() time.Time
}

// NewLeagueService creates a new LeagueService instance. fanOut bounds the
// number of concurrent per-game fetches; nowFunc defaults to time.Now and
// is injectable for the maturity filter in tests.
func NewLeagueService(source AchievementSource, fanOut int, nowFunc func() time.Time) *LeagueService {
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &LeagueService{
		source:  source,
		fanOut:  fanOut,
		nowFunc: nowFunc,
	}
}

// MonthWindow returns the first and last day of now's calendar month.
func MonthWindow(now time.Time) (time.Time, time.Time) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, 0).Add(-24 * time.Hour)
	return first, last
}

// BuildPeriodStats computes the member's period statistics for the window
// [from, to].
func (s *LeagueService) BuildPeriodStats(ctx context.Context, member model.LeagueMember, from, to time.Time) (*model.PeriodStats, error) {
	username := member.RAUsername

	events, err := s.source.AchievementsEarnedBetween(ctx, username, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dated achievements for %s: %w", username, err)
	}

	// Only hardcore unlocks count for the league.
	hardcore := events[:0:0]
	for _, e := range events {
		if e.Hardcore {
			hardcore = append(hardcore, e)
		}
	}

	stats := &model.PeriodStats{Member: member}
	for _, e := range hardcore {
		stats.TotalPoints += e.Points
	}

	games, err := s.fetchGameProgress(ctx, username, hardcore)
	if err != nil {
		return nil, err
	}

	restrictToPeriod(games, hardcore)

	cutoff := s.nowFunc().Add(-maturityPeriod)
	for _, game := range games {
		for i := range game.Achievements {
			a := &game.Achievements[i]
			if !a.EarnedHardcore() {
				continue
			}
			if a.DateCreated.After(cutoff) {
				continue
			}

			stats.TotalWhitePoints += a.TrueRatio

			if stats.RarestAchievement == nil || a.TrueRatio > stats.RarestAchievement.TrueRatio {
				picked := a.Achievement
				stats.RarestAchievement = &picked
				stats.RarestGame = game
			}
		}
	}

	return stats, nil
}

// fetchGameProgress fetches progress for every distinct game touched by
// the events, in first-seen order, with at most fanOut fetches in flight.
func (s *LeagueService) fetchGameProgress(ctx context.Context, username string, events []model.DatedAchievement) ([]*model.GameProgress, error) {
	var gameIDs []int64
	seen := make(map[int64]struct{})
	for _, e := range events {
		if _, ok := seen[e.GameID]; ok {
			continue
		}
		seen[e.GameID] = struct{}{}
		gameIDs = append(gameIDs, e.GameID)
	}

	games := make([]*model.GameProgress, len(gameIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, gameID := range gameIDs {
		g.Go(func() error {
			progress, err := s.source.GameProgress(gctx, username, gameID)
			if err != nil {
				return fmt.Errorf("failed to fetch progress for game %d: %w", gameID, err)
			}
			games[i] = progress
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return games, nil
}

// restrictToPeriod drops every achievement that was not unlocked within
// the window. The progress endpoint reports a game's whole earned history;
// without this filter, pre-existing unlocks would count toward the period.
func restrictToPeriod(games []*model.GameProgress, events []model.DatedAchievement) {
	inPeriod := make(map[int64]struct{}, len(events))
	for _, e := range events {
		inPeriod[e.AchievementID] = struct{}{}
	}

	for _, game := range games {
		kept := game.Achievements[:0]
		for _, a := range game.Achievements {
			if _, ok := inPeriod[a.ID]; ok {
				kept = append(kept, a)
			}
		}
		game.Achievements = kept
	}
}
