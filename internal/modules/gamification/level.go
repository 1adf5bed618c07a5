// Package gamification holds the XP arithmetic, streak rules and the achievement
// catalog. Nothing here touches the database.
package gamification

import "math"

// LevelBase is the XP span of level 1. Level L spans LevelBase*L XP.
const LevelBase = 100

// ThresholdFor is the cumulative XP needed to reach level L: 50·L·(L−1).
func ThresholdFor(level int) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level)
	return LevelBase * l * (l - 1) / 2
}

// SpanFor is the XP width of level L, ThresholdFor(L+1) − ThresholdFor(L).
func SpanFor(level int) int64 {
	if level < 1 {
		level = 1
	}
	return LevelBase * int64(level)
}

// LevelFor inverts ThresholdFor: floor((1 + sqrt(1 + 8·xp/100)) / 2).
func LevelFor(xp int64) int {
	if xp <= 0 {
		return 1
	}
	level := int(math.Floor((1 + math.Sqrt(1+8*float64(xp)/LevelBase)) / 2))
	if level < 1 {
		level = 1
	}
	// float rounding near exact thresholds
	for level > 1 && ThresholdFor(level) > xp {
		level--
	}
	for ThresholdFor(level+1) <= xp {
		level++
	}
	return level
}

// Progress is the derived view of an XP total.
type Progress struct {
	XP               int64   `json:"xp"`
	Level            int     `json:"level"`
	LevelStartXP     int64   `json:"level_start_xp"`
	NextLevelXP      int64   `json:"next_level_xp"`
	XPInLevel        int64   `json:"xp_in_level"`
	XPToNextLevel    int64   `json:"xp_to_next_level"`
	LevelSpan        int64   `json:"level_span"`
	ProgressFraction float64 `json:"progress"`
}

func ProgressFor(xp int64) Progress {
	if xp < 0 {
		xp = 0
	}
	level := LevelFor(xp)
	start := ThresholdFor(level)
	next := ThresholdFor(level + 1)
	span := next - start
	in := xp - start
	return Progress{
		XP:               xp,
		Level:            level,
		LevelStartXP:     start,
		NextLevelXP:      next,
		XPInLevel:        in,
		XPToNextLevel:    next - xp,
		LevelSpan:        span,
		ProgressFraction: float64(in) / float64(span),
	}
}
