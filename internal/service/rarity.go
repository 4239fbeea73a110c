package service

import (
	"context"
	"fmt"

	"retro-league-bot/internal/model"
)

// RarityService resolves the rarest achievement of a game. Pure reads of
// remote state; safe to retry.
type RarityService struct {
	source AchievementSource
}

// NewRarityService creates a new RarityService instance.
func NewRarityService(source AchievementSource) *RarityService {
	return &RarityService{source: source}
}

// ResolveRarest fetches the game's full achievement set and returns the
// achievement with the highest TrueRatio together with the game's total
// point value. Ties keep the first achievement encountered; a missing
// TrueRatio counts as zero. Achievement is nil for games without any
// achievements.
func (s *RarityService) ResolveRarest(ctx context.Context, gameID int64) (*model.RarestPick, error) {
	details, err := s.source.GameDetails(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch game details for %d: %w", gameID, err)
	}

	pick := &model.RarestPick{}
	var rarest *model.Achievement
	for i := range details.Achievements {
		a := &details.Achievements[i]
		pick.TotalGamePoints += a.Points

		if rarest == nil || a.TrueRatio > rarest.TrueRatio {
			rarest = a
		}
	}

	if rarest != nil {
		picked := *rarest
		pick.Achievement = &picked
	}
	return pick, nil
}
