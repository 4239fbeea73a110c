// Package model defines the data models for the RetroAchievements league bot.
package model

import "time"

// LeagueMember pairs a Telegram identity with a RetroAchievements account.
// The roster is static configuration; the RA username is the identity key.
type LeagueMember struct {
	TelegramID int64  `mapstructure:"telegram_id"`
	RAUsername string `mapstructure:"ra_username"`
}

// GameCompletion is one entry of a user's completion stats as reported by
// the RetroAchievements API.
type GameCompletion struct {
	GameID      int64
	Title       string
	ConsoleName string
	MaxPossible int
	NumAwarded  int
	PctWon      float64
	Hardcore    bool
}

// Mastered reports whether the game has been fully completed in hardcore
// mode, which is what the league counts as a mastery.
func (g GameCompletion) Mastered() bool {
	return g.Hardcore && g.PctWon == 1.0
}

// Achievement is a single achievement definition within a game.
// TrueRatio is the site's rarity metric: higher means rarer.
type Achievement struct {
	ID          int64
	Title       string
	Description string
	Points      int
	TrueRatio   float64
	DateCreated time.Time
}

// GameDetails holds the full achievement set of a game.
// Achievements are ordered by ascending achievement ID so that scans over
// them are deterministic.
type GameDetails struct {
	ID           int64
	Title        string
	ConsoleName  string
	Achievements []Achievement
}

// PlayerAchievement is an achievement definition together with a player's
// earned state for it.
type PlayerAchievement struct {
	Achievement
	DateEarnedHardcore *time.Time
}

// EarnedHardcore reports whether the player has unlocked the achievement in
// hardcore mode.
func (a PlayerAchievement) EarnedHardcore() bool {
	return a.DateEarnedHardcore != nil
}

// GameProgress holds a player's progress for a single game.
type GameProgress struct {
	ID           int64
	Title        string
	ConsoleName  string
	Achievements []PlayerAchievement
}

// DatedAchievement is an achievement unlock event within a date window.
type DatedAchievement struct {
	AchievementID int64
	GameID        int64
	Points        int
	TrueRatio     float64
	Hardcore      bool
	EarnedAt      time.Time
}

// MasteryDelta is a newly detected mastery for a league member.
// TotalMasteryCount is the member's mastery count including this one.
type MasteryDelta struct {
	Game              GameCompletion
	TotalMasteryCount int
}

// RarestPick is the outcome of resolving a game's rarest achievement.
// Achievement is nil when the game has no achievements to pick from.
type RarestPick struct {
	Achievement     *Achievement
	TotalGamePoints int
}

// PeriodStats aggregates a member's hardcore activity over a date window.
// RarestAchievement and RarestGame are nil when no earned achievement in
// the window passed the maturity filter.
type PeriodStats struct {
	Member            LeagueMember
	TotalPoints       int
	TotalWhitePoints  float64
	RarestAchievement *Achievement
	RarestGame        *GameProgress
}
