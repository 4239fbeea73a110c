package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retro-league-bot/internal/model"
)

var leagueMember = model.LeagueMember{TelegramID: 9, RAUsername: "Rayfinkel"}

// fixedNow is the evaluation time injected into the maturity filter.
var fixedNow = time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

func nowFunc() time.Time { return fixedNow }

func daysBefore(d int) time.Time { return fixedNow.AddDate(0, 0, -d) }

func earned(at time.Time) *time.Time { return &at }

// TestBuildPeriodStats_Scenario runs the canonical window aggregation: two
// hardcore events worth 10 and 15 points on one game, whose restricted
// achievement list carries one matured earned entry with TrueRatio 4.2.
func TestBuildPeriodStats_Scenario(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	source := newFakeSource()
	source.events["Rayfinkel"] = []model.DatedAchievement{
		{AchievementID: 501, GameID: 3, Points: 10, Hardcore: true, EarnedAt: from.AddDate(0, 0, 4)},
		{AchievementID: 502, GameID: 3, Points: 15, Hardcore: true, EarnedAt: from.AddDate(0, 0, 9)},
	}
	source.progress[3] = &model.GameProgress{
		ID:    3,
		Title: "Gradius",
		Achievements: []model.PlayerAchievement{
			{
				Achievement:        model.Achievement{ID: 501, Title: "Loop One", TrueRatio: 4.2, DateCreated: daysBefore(100)},
				DateEarnedHardcore: earned(from.AddDate(0, 0, 4)),
			},
			{
				// Earned long before the window: the progress endpoint
				// reports it anyway, the period filter must drop it.
				Achievement:        model.Achievement{ID: 999, Title: "Old Unlock", TrueRatio: 50, DateCreated: daysBefore(200)},
				DateEarnedHardcore: earned(from.AddDate(0, -6, 0)),
			},
		},
	}

	svc := NewLeagueService(source, 10, nowFunc)
	stats, err := svc.BuildPeriodStats(context.Background(), leagueMember, from, to)
	require.NoError(t, err)

	assert.Equal(t, 25, stats.TotalPoints)
	assert.InDelta(t, 4.2, stats.TotalWhitePoints, 1e-9)
	require.NotNil(t, stats.RarestAchievement)
	assert.Equal(t, int64(501), stats.RarestAchievement.ID)
	require.NotNil(t, stats.RarestGame)
	assert.Equal(t, "Gradius", stats.RarestGame.Title)
}

// TestBuildPeriodStats_MaturityFilter verifies the grace period boundary:
// an achievement created 3 days before evaluation is excluded even though
// it was earned in the window; one created 20 days before is included.
func TestBuildPeriodStats_MaturityFilter(t *testing.T) {
	from := daysBefore(30)
	to := fixedNow

	source := newFakeSource()
	source.events["Rayfinkel"] = []model.DatedAchievement{
		{AchievementID: 1, GameID: 5, Points: 10, Hardcore: true, EarnedAt: daysBefore(2)},
		{AchievementID: 2, GameID: 5, Points: 10, Hardcore: true, EarnedAt: daysBefore(2)},
	}
	source.progress[5] = &model.GameProgress{
		ID: 5,
		Achievements: []model.PlayerAchievement{
			{
				Achievement:        model.Achievement{ID: 1, Title: "Fresh", TrueRatio: 100, DateCreated: daysBefore(3)},
				DateEarnedHardcore: earned(daysBefore(2)),
			},
			{
				Achievement:        model.Achievement{ID: 2, Title: "Matured", TrueRatio: 6, DateCreated: daysBefore(20)},
				DateEarnedHardcore: earned(daysBefore(2)),
			},
		},
	}

	svc := NewLeagueService(source, 10, nowFunc)
	stats, err := svc.BuildPeriodStats(context.Background(), leagueMember, from, to)
	require.NoError(t, err)

	assert.InDelta(t, 6.0, stats.TotalWhitePoints, 1e-9, "only the matured achievement counts")
	require.NotNil(t, stats.RarestAchievement)
	assert.Equal(t, "Matured", stats.RarestAchievement.Title)
}

// TestBuildPeriodStats_HardcoreOnly verifies that softcore events count
// neither toward points nor toward the restriction set.
func TestBuildPeriodStats_HardcoreOnly(t *testing.T) {
	source := newFakeSource()
	source.events["Rayfinkel"] = []model.DatedAchievement{
		{AchievementID: 1, GameID: 5, Points: 10, Hardcore: true, EarnedAt: daysBefore(5)},
		{AchievementID: 2, GameID: 6, Points: 99, Hardcore: false, EarnedAt: daysBefore(5)},
	}
	source.progress[5] = &model.GameProgress{ID: 5}

	svc := NewLeagueService(source, 10, nowFunc)
	stats, err := svc.BuildPeriodStats(context.Background(), leagueMember, daysBefore(30), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 10, stats.TotalPoints)
	// Game 6 was only touched by a softcore event and must not be fetched
	assert.Equal(t, []int64{5}, source.progressOrder)
}

// TestBuildPeriodStats_TieKeepsFirstGame verifies that on equal TrueRatio
// the rarest achievement stays with the first game encountered.
func TestBuildPeriodStats_TieKeepsFirstGame(t *testing.T) {
	source := newFakeSource()
	source.events["Rayfinkel"] = []model.DatedAchievement{
		{AchievementID: 1, GameID: 5, Points: 1, Hardcore: true, EarnedAt: daysBefore(5)},
		{AchievementID: 2, GameID: 6, Points: 1, Hardcore: true, EarnedAt: daysBefore(4)},
	}
	source.progress[5] = &model.GameProgress{
		ID: 5, Title: "First Game",
		Achievements: []model.PlayerAchievement{{
			Achievement:        model.Achievement{ID: 1, Title: "A", TrueRatio: 5, DateCreated: daysBefore(60)},
			DateEarnedHardcore: earned(daysBefore(5)),
		}},
	}
	source.progress[6] = &model.GameProgress{
		ID: 6, Title: "Second Game",
		Achievements: []model.PlayerAchievement{{
			Achievement:        model.Achievement{ID: 2, Title: "B", TrueRatio: 5, DateCreated: daysBefore(60)},
			DateEarnedHardcore: earned(daysBefore(4)),
		}},
	}

	svc := NewLeagueService(source, 10, nowFunc)
	stats, err := svc.BuildPeriodStats(context.Background(), leagueMember, daysBefore(30), fixedNow)
	require.NoError(t, err)

	require.NotNil(t, stats.RarestGame)
	assert.Equal(t, "First Game", stats.RarestGame.Title)
	assert.InDelta(t, 10.0, stats.TotalWhitePoints, 1e-9)
}

// TestBuildPeriodStats_BoundedFanOut verifies that per-game fetches never
// exceed the configured concurrency bound.
func TestBuildPeriodStats_BoundedFanOut(t *testing.T) {
	source := newFakeSource()
	source.progressDelay = 5 * time.Millisecond

	var events []model.DatedAchievement
	for i := int64(1); i <= 20; i++ {
		events = append(events, model.DatedAchievement{
			AchievementID: i, GameID: i, Points: 1, Hardcore: true, EarnedAt: daysBefore(5),
		})
		source.progress[i] = &model.GameProgress{ID: i}
	}
	source.events["Rayfinkel"] = events

	svc := NewLeagueService(source, 3, nowFunc)
	_, err := svc.BuildPeriodStats(context.Background(), leagueMember, daysBefore(30), fixedNow)
	require.NoError(t, err)

	assert.LessOrEqual(t, source.maxInFlight, 3)
	assert.Len(t, source.progressOrder, 20)
}

// TestMonthWindow verifies first/last day computation across month
// lengths.
func TestMonthWindow(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantFirst time.Time
		wantLast  time.Time
	}{
		{
			name:      "january",
			now:       time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			wantFirst: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantLast:  time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "leap february",
			now:       time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
			wantFirst: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantLast:  time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "december wraps the year",
			now:       time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
			wantFirst: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
			wantLast:  time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := MonthWindow(tt.now)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}
