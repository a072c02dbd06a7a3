package achievements

import (
	"fmt"
	"time"
)

// Badge is an immutable catalog entry.
type Badge struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
	Rarity      string `json:"rarity"`
	XPReward    int64  `json:"xp_reward"`
}

// Award links a badge to a user. The (user, badge) pair is unique; a badge
// is held at most once.
type Award struct {
	UserID    int64     `json:"user_id"`
	BadgeID   int64     `json:"badge_id"`
	AwardedAt time.Time `json:"awarded_at"`
	Badge     Badge     `json:"badge"`
}

// Badge rarities.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Badge names referenced by evaluation logic. The seeded catalog carries
// more entries than these; anything not listed here is awarded by surfaces
// outside this service.
const (
	BadgeFirstLogin   = "first_login"
	BadgeQuizChampion = "quiz_champion"
	BadgeProMember    = "pro_member"
)

// CounterQuizPasses labels the passed-assessment counter in milestone checks.
const CounterQuizPasses = "quiz_passes"

// QuizChampionThreshold is the passed-quiz count that earns the champion badge.
const QuizChampionThreshold = 50

// levelMilestones is the fixed set of global levels carrying a badge.
var levelMilestones = map[int]struct{}{
	5:   {},
	10:  {},
	25:  {},
	50:  {},
	100: {},
}

// IsLevelMilestone reports whether the level carries a milestone badge.
func IsLevelMilestone(level int) bool {
	_, ok := levelMilestones[level]
	return ok
}

// LevelBadgeName builds the catalog name for a level milestone badge.
func LevelBadgeName(level int) string {
	return fmt.Sprintf("level_%d", level)
}
