// Package feed scores and orders social activity for the home feed.
package feed

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/domain/academic"
	"github.com/yungbote/studyhub-backend/internal/domain/social"
)

const (
	FollowedBonus = 100.0
	SubjectBonus  = 50.0
	RecencyMax    = 20.0
	RecencyPerDay = 2.0

	DefaultLimit = 10
	MaxLimit     = 50
)

var typeWeights = map[string]float64{
	social.ActivityPost:                30,
	social.ActivityAchievementUnlocked: 25,
	social.ActivityLevelUp:             25,
	social.ActivityNoteShared:          20,
	social.ActivityMaterialShared:      20,
	social.ActivityTaskCompleted:       15,
	social.ActivityPomodoroCompleted:   10,
	social.ActivityAssessmentCreated:   5,
}

const unknownTypeWeight = 5.0

// Viewer is what the scorer knows about the person reading the feed.
type Viewer struct {
	Followed     map[uuid.UUID]bool
	SubjectIDs   map[uuid.UUID]bool
	SubjectNames map[string]bool // normalized
}

func NewViewer(followed []uuid.UUID, subjects []*types.Subject) Viewer {
	v := Viewer{
		Followed:     make(map[uuid.UUID]bool, len(followed)),
		SubjectIDs:   make(map[uuid.UUID]bool, len(subjects)),
		SubjectNames: make(map[string]bool, len(subjects)),
	}
	for _, id := range followed {
		v.Followed[id] = true
	}
	for _, s := range subjects {
		if s == nil {
			continue
		}
		v.SubjectIDs[s.ID] = true
		if n := academic.NormalizeSubjectName(s.Name); n != "" {
			v.SubjectNames[n] = true
		}
	}
	return v
}

type Breakdown struct {
	Followed float64 `json:"followed"`
	Subject  float64 `json:"subject"`
	Type     float64 `json:"type"`
	Recency  float64 `json:"recency"`
}

type Scored struct {
	Activity  *types.Activity `json:"activity"`
	Score     float64         `json:"score"`
	Breakdown Breakdown       `json:"breakdown"`
}

func TypeWeight(activityType string) float64 {
	if w, ok := typeWeights[activityType]; ok {
		return w
	}
	return unknownTypeWeight
}

// RecencyBonus is max(0, 20 - 2*days) with days measured as a fraction.
// Rows stamped in the future count as brand new.
func RecencyBonus(createdAt, now time.Time) float64 {
	days := now.Sub(createdAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Max(0, RecencyMax-RecencyPerDay*days)
}

func (v Viewer) referencesEnrolledSubject(a *types.Activity) bool {
	if a.SubjectID != nil && v.SubjectIDs[*a.SubjectID] {
		return true
	}
	if a.SubjectName != "" && v.SubjectNames[academic.NormalizeSubjectName(a.SubjectName)] {
		return true
	}
	return false
}

func Score(a *types.Activity, v Viewer, now time.Time) Scored {
	var b Breakdown
	if v.Followed[a.UserID] {
		b.Followed = FollowedBonus
	}
	if v.referencesEnrolledSubject(a) {
		b.Subject = SubjectBonus
	}
	b.Type = TypeWeight(a.Type)
	b.Recency = RecencyBonus(a.CreatedAt, now)
	return Scored{
		Activity:  a,
		Score:     b.Followed + b.Subject + b.Type + b.Recency,
		Breakdown: b,
	}
}

// Rank scores every candidate, orders by score descending (ties: newer first, then id)
// and keeps the first limit rows. It does not modify candidates.
func Rank(candidates []*types.Activity, v Viewer, now time.Time, limit int) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, a := range candidates {
		if a == nil {
			continue
		}
		scored = append(scored, Score(a, v, now))
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		ai, aj := scored[i].Activity, scored[j].Activity
		if !ai.CreatedAt.Equal(aj.CreatedAt) {
			return ai.CreatedAt.After(aj.CreatedAt)
		}
		return ai.ID.String() < aj.ID.String()
	})
	if limit >= 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// ClampPage normalizes client paging input.
func ClampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

// CandidateWindow is the recency-ordered slice of rows fetched for a page: the page's
// own limit rows starting at offset plus one look-ahead row for has_more. Only the
// page rows are ranked, so every row lands on exactly one page.
func CandidateWindow(offset, limit int) (start, size int) {
	offset, limit = ClampPage(offset, limit)
	return offset, limit + 1
}

// RankPage ranks the page slice of a window fetched with CandidateWindow and reports
// whether rows remain past it.
func RankPage(window []*types.Activity, v Viewer, now time.Time, limit int) ([]Scored, bool) {
	hasMore := len(window) > limit
	if hasMore {
		window = window[:limit]
	}
	return Rank(window, v, now, -1), hasMore
}
