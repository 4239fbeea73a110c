// Package service provides business logic implementations.
package service

import (
	"context"
	"time"

	"retro-league-bot/internal/model"
)

// AchievementSource is the upstream achievement data provider. Implemented
// by retroapi.Client; services only depend on this interface so tests can
// substitute fakes.
type AchievementSource interface {
	UserCompletionStats(ctx context.Context, username string) ([]model.GameCompletion, error)
	GameDetails(ctx context.Context, gameID int64) (*model.GameDetails, error)
	AchievementsEarnedBetween(ctx context.Context, username string, from, to time.Time) ([]model.DatedAchievement, error)
	GameProgress(ctx context.Context, username string, gameID int64) (*model.GameProgress, error)
}

// SnapshotStore persists the per-account set of already-announced mastery
// game IDs. Implemented by repository.SnapshotRepository.
type SnapshotStore interface {
	Get(ctx context.Context, username string) ([]int64, error)
	Set(ctx context.Context, username string, gameIDs []int64) error
	Exists(ctx context.Context, username string) (bool, error)
}
