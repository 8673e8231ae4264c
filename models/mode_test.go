package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForPoints(t *testing.T) {
	cases := []struct {
		points int
		want   RankTier
	}{
		{0, TierRecruits},
		{249, TierRecruits},
		{250, TierOperators},
		{499, TierOperators},
		{500, TierVeterans},
		{749, TierVeterans},
		{750, TierCommandants},
		{999, TierCommandants},
		{1000, TierWarlords},
		{1499, TierWarlords},
		{1500, TierImmortal},
		{9000, TierImmortal},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, TierForPoints(tc.points), "points=%d", tc.points)
	}
}

func TestLossCurveValidate(t *testing.T) {
	assert.True(t, DefaultLossCurve.Validate())

	partial := LossCurve{TierRecruits: 10, TierOperators: 13}
	assert.False(t, partial.Validate())

	assert.False(t, LossCurve{}.Validate())
}

func TestPolicyRegistry(t *testing.T) {
	for _, mode := range SupportedModes() {
		p, ok := PolicyForMode(mode)
		require.True(t, ok)
		assert.Equal(t, mode, p.Mode)
		assert.Greater(t, p.TeamSize, 0)
		assert.Greater(t, p.PointsWin, 0)
		if p.TieredLoss != nil {
			assert.True(t, p.TieredLoss.Validate())
		} else {
			assert.Greater(t, p.FlatLoss, 0, "mode %s needs a flat loss", mode)
		}
	}

	_, ok := PolicyForMode("battle-royale")
	assert.False(t, ok)
}

func TestMatchStatusTerminal(t *testing.T) {
	assert.True(t, MatchCompleted.IsTerminal())
	assert.True(t, MatchCancelled.IsTerminal())
	assert.False(t, MatchPending.IsTerminal())
	assert.False(t, MatchReady.IsTerminal())
	assert.False(t, MatchInProgress.IsTerminal())
	// disputed matches are recoverable through arbitration
	assert.False(t, MatchDisputed.IsTerminal())
}

func TestSurvivorMaps(t *testing.T) {
	m := &Match{
		MapPool: []MapOption{
			{Name: "Overwatch"}, {Name: "Ruins"}, {Name: "Yard"}, {Name: "Factory"},
		},
		MapBans: MapBans{Team1Banned: "Overwatch", Team2Banned: "Yard"},
	}

	survivors := m.SurvivorMaps()
	require.Len(t, survivors, 2)
	assert.Equal(t, "Ruins", survivors[0].Name)
	assert.Equal(t, "Factory", survivors[1].Name)
}
