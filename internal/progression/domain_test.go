package progression

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelForXP(t *testing.T) {
	cases := []struct {
		xp    int64
		level int
	}{
		{-50, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
		{240100, 50},
		{980100, 100},
	}
	for _, c := range cases {
		require.Equal(t, c.level, LevelForXP(c.xp), "xp=%d", c.xp)
	}
}

func TestXPThresholdForLevel(t *testing.T) {
	require.EqualValues(t, 0, XPThresholdForLevel(0))
	require.EqualValues(t, 0, XPThresholdForLevel(1))
	require.EqualValues(t, 100, XPThresholdForLevel(2))
	require.EqualValues(t, 400, XPThresholdForLevel(3))
	require.EqualValues(t, 8100, XPThresholdForLevel(10))
	require.EqualValues(t, 980100, XPThresholdForLevel(100))
}

func TestThresholdIsExactLevelBoundary(t *testing.T) {
	for level := 2; level <= 120; level++ {
		threshold := XPThresholdForLevel(level)
		require.Equal(t, level, LevelForXP(threshold), "at threshold of level %d", level)
		require.Equal(t, level-1, LevelForXP(threshold-1), "below threshold of level %d", level)
	}
}
