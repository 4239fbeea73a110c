package retroapi

import (
	"bytes"
	"sort"
	"strconv"
	"time"

	"retro-league-bot/internal/model"
)

// The RetroAchievements API is inconsistent about scalar encoding: the
// same field may arrive as a number or a quoted string depending on the
// endpoint. The wire types below absorb that before anything reaches the
// model package.

// raTimeFormat is the timestamp layout used across the RA API.
const raTimeFormat = "2006-01-02 15:04:05"

// flexInt decodes an integer that may be quoted.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

// flexFloat decodes a float that may be quoted.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// raTime decodes an RA timestamp; null and empty strings decode to zero.
type raTime struct {
	time.Time
}

func (t *raTime) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(raTimeFormat, string(data))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// timePtr converts a wire timestamp to an optional model timestamp.
func (t raTime) timePtr() *time.Time {
	if t.IsZero() {
		return nil
	}
	tt := t.Time
	return &tt
}

// wireCompletedGame is one entry of API_GetUserCompletedGames.
type wireCompletedGame struct {
	GameID       flexInt   `json:"GameID"`
	Title        string    `json:"Title"`
	ConsoleName  string    `json:"ConsoleName"`
	MaxPossible  flexInt   `json:"MaxPossible"`
	NumAwarded   flexInt   `json:"NumAwarded"`
	PctWon       flexFloat `json:"PctWon"`
	HardcoreMode flexInt   `json:"HardcoreMode"`
}

func (w wireCompletedGame) toModel() model.GameCompletion {
	return model.GameCompletion{
		GameID:      int64(w.GameID),
		Title:       w.Title,
		ConsoleName: w.ConsoleName,
		MaxPossible: int(w.MaxPossible),
		NumAwarded:  int(w.NumAwarded),
		PctWon:      float64(w.PctWon),
		Hardcore:    w.HardcoreMode == 1,
	}
}

// wireAchievement is an achievement definition plus optional earned state,
// shared by the extended-game and game-progress endpoints.
type wireAchievement struct {
	ID                 flexInt   `json:"ID"`
	Title              string    `json:"Title"`
	Description        string    `json:"Description"`
	Points             flexInt   `json:"Points"`
	TrueRatio          flexFloat `json:"TrueRatio"`
	DateCreated        raTime    `json:"DateCreated"`
	DateEarnedHardcore raTime    `json:"DateEarnedHardcore"`
}

func (w wireAchievement) toModel() model.Achievement {
	return model.Achievement{
		ID:          int64(w.ID),
		Title:       w.Title,
		Description: w.Description,
		Points:      int(w.Points),
		TrueRatio:   float64(w.TrueRatio),
		DateCreated: w.DateCreated.Time,
	}
}

// wireGame is the shared shape of API_GetGameExtended and
// API_GetGameInfoAndUserProgress. Achievements arrive keyed by ID.
type wireGame struct {
	ID           flexInt                    `json:"ID"`
	Title        string                     `json:"Title"`
	ConsoleName  string                     `json:"ConsoleName"`
	Achievements map[string]wireAchievement `json:"Achievements"`
}

// sortedAchievements flattens the achievement map into a slice ordered by
// ascending achievement ID, so that rarity scans are deterministic.
func (w wireGame) sortedAchievements() []wireAchievement {
	out := make([]wireAchievement, 0, len(w.Achievements))
	for _, a := range w.Achievements {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (w wireGame) toDetails() *model.GameDetails {
	details := &model.GameDetails{
		ID:          int64(w.ID),
		Title:       w.Title,
		ConsoleName: w.ConsoleName,
	}
	for _, a := range w.sortedAchievements() {
		details.Achievements = append(details.Achievements, a.toModel())
	}
	return details
}

func (w wireGame) toProgress() *model.GameProgress {
	progress := &model.GameProgress{
		ID:          int64(w.ID),
		Title:       w.Title,
		ConsoleName: w.ConsoleName,
	}
	for _, a := range w.sortedAchievements() {
		progress.Achievements = append(progress.Achievements, model.PlayerAchievement{
			Achievement:        a.toModel(),
			DateEarnedHardcore: a.DateEarnedHardcore.timePtr(),
		})
	}
	return progress
}

// wireDatedAchievement is one entry of API_GetAchievementsEarnedBetween.
type wireDatedAchievement struct {
	AchievementID flexInt   `json:"AchievementID"`
	GameID        flexInt   `json:"GameID"`
	Points        flexInt   `json:"Points"`
	TrueRatio     flexFloat `json:"TrueRatio"`
	HardcoreMode  flexInt   `json:"HardcoreMode"`
	Date          raTime    `json:"Date"`
}

func (w wireDatedAchievement) toModel() model.DatedAchievement {
	return model.DatedAchievement{
		AchievementID: int64(w.AchievementID),
		GameID:        int64(w.GameID),
		Points:        int(w.Points),
		TrueRatio:     float64(w.TrueRatio),
		Hardcore:      w.HardcoreMode == 1,
		EarnedAt:      w.Date.Time,
	}
}
