package gamification

import (
	"time"

	domain "github.com/yungbote/studyhub-backend/internal/domain/gamification"
)

var awards = map[string]int{
	domain.ReasonTaskCompleted:     10,
	domain.ReasonPomodoroCompleted: 15,
	domain.ReasonAssessmentCreated: 5,
	domain.ReasonNoteCreated:       5,
	domain.ReasonPostCreated:       5,
	domain.ReasonDailyStreak:       5,
}

// AwardFor returns the fixed XP for an action, or 0 for reasons without a fixed award.
func AwardFor(reason string) int {
	return awards[reason]
}

const dayLayout = "2006-01-02"

func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// StreakUpdate is the outcome of registering activity on a given day.
type StreakUpdate struct {
	Current    int
	Longest    int
	Day        string
	FirstToday bool
}

// AdvanceStreak applies one qualifying action at now. Activity yesterday extends the
// streak, activity earlier today leaves it unchanged, anything else restarts it at 1.
func AdvanceStreak(lastActiveOn string, current, longest int, now time.Time) StreakUpdate {
	today := DayKey(now)
	out := StreakUpdate{Current: current, Longest: longest, Day: today}
	switch lastActiveOn {
	case today:
		if out.Current < 1 {
			out.Current = 1
		}
	case DayKey(now.AddDate(0, 0, -1)):
		out.Current = current + 1
		out.FirstToday = true
	default:
		out.Current = 1
		out.FirstToday = true
	}
	if out.Current > out.Longest {
		out.Longest = out.Current
	}
	return out
}
