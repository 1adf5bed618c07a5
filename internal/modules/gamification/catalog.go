package gamification

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	domain "github.com/yungbote/studyhub-backend/internal/domain/gamification"
)

//go:embed catalog.yaml
var catalogYAML []byte

type CatalogEntry struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Threshold   int64  `yaml:"threshold"`
	XPReward    int    `yaml:"xp_reward"`
	Icon        string `yaml:"icon"`
}

type catalogFile struct {
	Achievements []CatalogEntry `yaml:"achievements"`
}

var knownCategories = map[string]bool{
	domain.CategoryTasksCompleted:     true,
	domain.CategoryPomodorosCompleted: true,
	domain.CategoryStreakDays:         true,
	domain.CategoryLevel:              true,
	domain.CategoryXPTotal:            true,
	domain.CategoryNotesCreated:       true,
	domain.CategorySubjectsCreated:    true,
	domain.CategoryFollowers:          true,
}

// LoadCatalog parses a catalog document. A nil or empty input loads the embedded one.
func LoadCatalog(raw []byte) ([]CatalogEntry, error) {
	if len(raw) == 0 {
		raw = catalogYAML
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse achievement catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.Achievements))
	for _, e := range f.Achievements {
		if e.Code == "" {
			return nil, fmt.Errorf("achievement without code")
		}
		if seen[e.Code] {
			return nil, fmt.Errorf("duplicate achievement code %q", e.Code)
		}
		seen[e.Code] = true
		if !knownCategories[e.Category] {
			return nil, fmt.Errorf("achievement %q: unknown category %q", e.Code, e.Category)
		}
		if e.Threshold <= 0 {
			return nil, fmt.Errorf("achievement %q: threshold must be positive", e.Code)
		}
	}
	return f.Achievements, nil
}

func (e CatalogEntry) Model() *types.Achievement {
	return &types.Achievement{
		Code:        e.Code,
		Name:        e.Name,
		Description: e.Description,
		Category:    e.Category,
		Threshold:   e.Threshold,
		XPReward:    e.XPReward,
		Icon:        e.Icon,
	}
}

// Counters are the freshly queried values achievement predicates compare against,
// keyed by category.
type Counters map[string]int64

// Due returns the achievements whose threshold the counters meet and that are not yet
// unlocked, ordered by category then threshold.
func Due(catalog []*types.Achievement, unlocked map[string]bool, c Counters) []*types.Achievement {
	var out []*types.Achievement
	for _, a := range catalog {
		if a == nil || unlocked[a.Code] {
			continue
		}
		v, ok := c[a.Category]
		if !ok {
			continue
		}
		if v >= a.Threshold {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Threshold < out[j].Threshold
	})
	return out
}

// ProgressToward is the fraction of a threshold reached, capped at 1.
func ProgressToward(a *types.Achievement, c Counters) float64 {
	if a == nil || a.Threshold <= 0 {
		return 0
	}
	v := c[a.Category]
	if v >= a.Threshold {
		return 1
	}
	if v <= 0 {
		return 0
	}
	return float64(v) / float64(a.Threshold)
}
