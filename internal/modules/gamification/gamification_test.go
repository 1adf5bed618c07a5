package gamification

import (
	"testing"
	"time"

	types "github.com/yungbote/studyhub-backend/internal/domain"
)

func TestThresholdCurve(t *testing.T) {
	cases := []struct {
		level int
		want  int64
	}{
		{1, 0},
		{2, 100},
		{3, 300},
		{4, 600},
		{5, 1000},
		{10, 4500},
	}
	for _, tc := range cases {
		if got := ThresholdFor(tc.level); got != tc.want {
			t.Fatalf("ThresholdFor(%d) = %d, want %d", tc.level, got, tc.want)
		}
		if ThresholdFor(tc.level)+SpanFor(tc.level) != ThresholdFor(tc.level+1) {
			t.Fatalf("T(L)+S(L) != T(L+1) at L=%d", tc.level)
		}
	}
}

func TestLevelForBoundaries(t *testing.T) {
	cases := []struct {
		xp   int64
		want int
	}{
		{-5, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{999, 4},
		{1000, 5},
		{4500, 10},
		{4499, 9},
	}
	for _, tc := range cases {
		if got := LevelFor(tc.xp); got != tc.want {
			t.Fatalf("LevelFor(%d) = %d, want %d", tc.xp, got, tc.want)
		}
	}
}

func TestLevelMonotoneAndReconstructs(t *testing.T) {
	prev := 1
	for xp := int64(0); xp <= 60000; xp += 7 {
		p := ProgressFor(xp)
		if p.Level < prev {
			t.Fatalf("level decreased at xp=%d: %d < %d", xp, p.Level, prev)
		}
		prev = p.Level
		if p.XPInLevel+p.XPToNextLevel != p.LevelSpan {
			t.Fatalf("xp=%d: in(%d)+remaining(%d) != span(%d)", xp, p.XPInLevel, p.XPToNextLevel, p.LevelSpan)
		}
		if p.LevelStartXP+p.LevelSpan != p.NextLevelXP {
			t.Fatalf("xp=%d: start+span != next", xp)
		}
		if p.ProgressFraction < 0 || p.ProgressFraction >= 1 {
			t.Fatalf("xp=%d: progress out of [0,1): %v", xp, p.ProgressFraction)
		}
		if p.XPToNextLevel <= 0 {
			t.Fatalf("xp=%d: remaining must be positive", xp)
		}
	}
}

func TestAdvanceStreak(t *testing.T) {
	now := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		last      string
		current   int
		longest   int
		want      int
		wantLong  int
		wantFirst bool
	}{
		{"never active", "", 0, 0, 1, 1, true},
		{"yesterday", "2025-05-19", 4, 6, 5, 6, true},
		{"yesterday beats longest", "2025-05-19", 6, 6, 7, 7, true},
		{"same day", "2025-05-20", 3, 5, 3, 5, false},
		{"gap", "2025-05-10", 9, 9, 1, 9, true},
	}
	for _, tc := range cases {
		got := AdvanceStreak(tc.last, tc.current, tc.longest, now)
		if got.Current != tc.want || got.Longest != tc.wantLong || got.FirstToday != tc.wantFirst {
			t.Fatalf("%s: got %+v", tc.name, got)
		}
		if got.Day != "2025-05-20" {
			t.Fatalf("%s: day key %q", tc.name, got.Day)
		}
	}
}

func TestEmbeddedCatalogLoads(t *testing.T) {
	entries, err := LoadCatalog(nil)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("embedded catalog is empty")
	}
	if _, err := LoadCatalog([]byte("achievements:\n  - code: x\n    category: nope\n    threshold: 1\n")); err == nil {
		t.Fatalf("expected unknown category error")
	}
	if _, err := LoadCatalog([]byte("achievements:\n  - code: x\n    category: level\n    threshold: 1\n  - code: x\n    category: level\n    threshold: 2\n")); err == nil {
		t.Fatalf("expected duplicate code error")
	}
}

func TestDueAchievements(t *testing.T) {
	catalog := []*types.Achievement{
		{Code: "first_task", Category: "tasks_completed", Threshold: 1},
		{Code: "tasks_25", Category: "tasks_completed", Threshold: 25},
		{Code: "streak_3", Category: "streak_days", Threshold: 3},
		{Code: "followers_10", Category: "followers", Threshold: 10},
	}
	counters := Counters{"tasks_completed": 25, "streak_days": 2}
	due := Due(catalog, map[string]bool{"first_task": true}, counters)
	if len(due) != 1 || due[0].Code != "tasks_25" {
		t.Fatalf("unexpected due set: %+v", due)
	}
	if p := ProgressToward(catalog[2], counters); p < 0.66 || p > 0.67 {
		t.Fatalf("ProgressToward: %v", p)
	}
	if p := ProgressToward(catalog[3], counters); p != 0 {
		t.Fatalf("ProgressToward(missing counter): %v", p)
	}
}

func TestAwardFor(t *testing.T) {
	if AwardFor("task_completed") != 10 || AwardFor("pomodoro_completed") != 15 {
		t.Fatalf("unexpected fixed awards")
	}
	if AwardFor("achievement") != 0 {
		t.Fatalf("achievement rewards come from the catalog")
	}
}
