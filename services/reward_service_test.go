package services

import (
	"testing"

	"ladder-match-system/models"

	"github.com/stretchr/testify/assert"
)

func TestComputePlayerRewardTieredLoss(t *testing.T) {
	rewards := models.ModeRewards{PointsWin: 30}
	curve := models.DefaultLossCurve

	cases := []struct {
		name       string
		points     int
		won        bool
		wantChange int
		wantNew    int
	}{
		{"win grants flat points", 820, true, 30, 850},
		{"recruit loses 10", 100, false, -10, 90},
		{"operator loses 13", 300, false, -13, 287},
		{"veteran loses 16", 600, false, -16, 584},
		{"commandant loses 20", 820, false, -20, 800},
		{"commandant lower bound loses 20", 750, false, -20, 730},
		{"warlord loses 25", 1200, false, -25, 1175},
		{"immortal loses 30", 1600, false, -30, 1570},
		{"loss clamps at zero", 15, false, -15, 0},
		{"zero points lose nothing", 0, false, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := computePlayerReward(tc.points, tc.won, rewards, curve)
			assert.Equal(t, tc.points, r.OldPoints)
			assert.Equal(t, tc.wantChange, r.PointsChange)
			assert.Equal(t, tc.wantNew, r.NewPoints)
		})
	}
}

func TestComputePlayerRewardFlatModes(t *testing.T) {
	rewards := models.ModeRewards{
		PointsWin: 15, FlatLoss: 8,
		GoldWin: 40, GoldLoss: 20,
		XPWin: 400,
	}

	win := computePlayerReward(500, true, rewards, nil)
	assert.Equal(t, 15, win.PointsChange)
	assert.Equal(t, 40, win.GoldEarned)
	assert.Equal(t, 400, win.XPEarned)

	loss := computePlayerReward(500, false, rewards, nil)
	assert.Equal(t, -8, loss.PointsChange)
	assert.Equal(t, 492, loss.NewPoints)
	assert.Equal(t, 20, loss.GoldEarned)
	assert.Equal(t, 0, loss.XPEarned)
}

func TestApplySquadResult(t *testing.T) {
	rewards := models.ModeRewards{PointsWin: 30}
	curve := models.DefaultLossCurve

	winner := &models.Squad{Points: 500}
	applySquadResult(winner, true, rewards, curve)
	assert.Equal(t, 530, winner.Points)
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 0, winner.Losses)

	// A Commandants squad pays the Commandants loss, same curve as players.
	loser := &models.Squad{Points: 820}
	applySquadResult(loser, false, rewards, curve)
	assert.Equal(t, 800, loser.Points)
	assert.Equal(t, 0, loser.Wins)
	assert.Equal(t, 1, loser.Losses)

	// A loss never drags squad points below zero.
	broke := &models.Squad{Points: 15}
	applySquadResult(broke, false, models.ModeRewards{PointsWin: 15, FlatLoss: 20}, nil)
	assert.Equal(t, 0, broke.Points)
	assert.Equal(t, 1, broke.Losses)
}

func TestDistributeRewardsSecondInvocationIsNoOp(t *testing.T) {
	// Once the distributed flag is up, a repeat call must bail before touching
	// any ledger.
	m := &models.Match{
		ID:                 "m-paid",
		Mode:               "versus5",
		Status:             models.MatchCompleted,
		Result:             models.MatchResult{Winner: 1, Confirmed: true},
		RewardsDistributed: true,
	}

	s := NewRewardService(nil, nil)
	err := s.DistributeMatchRewards(m)
	assert.ErrorIs(t, err, ErrRewardsAlreadyDistributed)
	assert.True(t, m.RewardsDistributed)
}

func TestComputePlayerRewardUsesCurrentPointsNotSnapshot(t *testing.T) {
	// Points moved between match creation and completion; the loss is taken
	// from where the player stands now.
	r := computePlayerReward(995, false, models.ModeRewards{PointsWin: 30}, models.DefaultLossCurve)
	assert.Equal(t, -20, r.PointsChange) // 995 is still Commandants
	assert.Equal(t, 975, r.NewPoints)

	r = computePlayerReward(1005, false, models.ModeRewards{PointsWin: 30}, models.DefaultLossCurve)
	assert.Equal(t, -25, r.PointsChange) // 1005 crossed into Warlords
}
