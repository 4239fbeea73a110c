package bot

import (
	"fmt"
	"strings"

	"retro-league-bot/internal/model"
)

// gameURLBase is the canonical game page URL prefix.
const gameURLBase = "https://retroachievements.org/game/"

// Ordinal returns the English ordinal form of n (1st, 2nd, 3rd, 4th,
// 11th, 21st, ...).
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
		// teens always take "th"
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// GameURL returns the canonical page URL for a game.
func GameURL(gameID int64) string {
	return fmt.Sprintf("%s%d", gameURLBase, gameID)
}

// mention builds a Telegram Markdown mention for a league member, shown
// under their RA username.
func mention(member model.LeagueMember) string {
	return fmt.Sprintf("[%s](tg://user?id=%d)", member.RAUsername, member.TelegramID)
}

// FormatMasteryMessage renders the announcement for a newly detected
// mastery. The rarest-achievement block is omitted when pick carries no
// achievement (or rarity resolution failed upstream).
func FormatMasteryMessage(member model.LeagueMember, delta *model.MasteryDelta, pick *model.RarestPick) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🏆 %s just earned their %s mastery!\n\n",
		mention(member), Ordinal(delta.TotalMasteryCount))
	fmt.Fprintf(&b, "*%s* (%s)", delta.Game.Title, delta.Game.ConsoleName)

	if pick != nil {
		fmt.Fprintf(&b, " — %d points", pick.TotalGamePoints)
		if pick.Achievement != nil {
			fmt.Fprintf(&b, "\n\nRarest achievement: *%s* (%d pts)\n_%s_",
				pick.Achievement.Title, pick.Achievement.Points, pick.Achievement.Description)
		}
	}

	fmt.Fprintf(&b, "\n\n%s", GameURL(delta.Game.GameID))
	return b.String()
}
