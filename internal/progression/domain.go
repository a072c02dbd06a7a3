package progression

import (
	"math"
	"time"
)

// CategoryGlobal is the aggregate progression category. Every award to a
// specific category contributes half its amount here; awards made directly
// to it never cascade further.
const CategoryGlobal = "global"

// Record is the per-(user, category) progression state. XP only ever grows;
// Level is always LevelForXP(XP).
type Record struct {
	UserID    int64     `json:"user_id"`
	Category  string    `json:"category"`
	XP        int64     `json:"xp"`
	Level     int       `json:"level"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Result reports the outcome of a single XP award.
type Result struct {
	NewXP     int64 `json:"new_xp"`
	NewLevel  int   `json:"new_level"`
	LeveledUp bool  `json:"leveled_up"`
}

// PassResult reports the outcome of a recorded quiz pass.
type PassResult struct {
	Passes int    `json:"passes"`
	Award  Result `json:"award"`
}

// Entry is one ranked leaderboard row.
type Entry struct {
	Rank        int    `json:"rank"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	XP          int64  `json:"xp"`
	Level       int    `json:"level"`
	NextLevelXP int64  `json:"next_level_xp"`
}

// LevelForXP derives the level for a cumulative XP total:
// level = floor(sqrt(xp/100)) + 1.
func LevelForXP(xp int64) int {
	if xp < 0 {
		return 1
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}

// XPThresholdForLevel is the inverse of LevelForXP: the cumulative XP needed
// to reach the given level, (level-1)^2 * 100.
func XPThresholdForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level - 1)
	return l * l * 100
}
