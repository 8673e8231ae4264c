package services

import (
	"testing"
	"time"

	"ladder-match-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func banPhaseMatch(firstBan int) *models.Match {
	now := time.Now()
	return &models.Match{
		ID:            "m1",
		Mode:          "versus5",
		TeamSize:      5,
		Status:        models.MatchPending,
		Team1Referent: "ref1",
		Team2Referent: "ref2",
		MapPool: []models.MapOption{
			{Name: "Overwatch"}, {Name: "Ruins"}, {Name: "Yard"},
			{Name: "Factory"}, {Name: "Bridges"}, {Name: "Palace"},
		},
		MapBans: models.MapBans{
			FirstBanTeam:  firstBan,
			CurrentTurn:   firstBan,
			TurnStartedAt: &now,
		},
		Roster: models.RosterDraft{IsActive: false},
	}
}

func TestApplyBanTurnOrder(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name    string
		team    int
		mapName string
		setup   func(m *models.Match)
		wantErr error
	}{
		{
			name:    "first ban by the starting side",
			team:    1,
			mapName: "Overwatch",
		},
		{
			name:    "out of turn ban rejected",
			team:    2,
			mapName: "Ruins",
			wantErr: ErrNotYourTurn,
		},
		{
			name:    "map outside the pool rejected",
			team:    1,
			mapName: "Atlantis",
			wantErr: ErrMapNotInPool,
		},
		{
			name:    "banning during the draft rejected",
			team:    1,
			mapName: "Overwatch",
			setup:   func(m *models.Match) { m.Roster.IsActive = true },
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "double ban of the opponent's map rejected",
			team:    2,
			mapName: "Overwatch",
			setup: func(m *models.Match) {
				require.NoError(t, applyBan(m, 1, "Overwatch", now))
			},
			wantErr: ErrMapAlreadyBanned,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := banPhaseMatch(1)
			if tc.setup != nil {
				tc.setup(m)
			}

			err := applyBan(m, tc.team, tc.mapName, now)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.mapName, m.MapBans.BannedFor(tc.team))
			assert.Equal(t, 2, m.MapBans.CurrentTurn)
		})
	}
}

func TestApplyBanSecondBanRejectedForSameSide(t *testing.T) {
	now := time.Now()
	m := banPhaseMatch(1)

	require.NoError(t, applyBan(m, 1, "Overwatch", now))
	// turn is with team 2 now; force it back to simulate a stale client
	m.MapBans.CurrentTurn = 1

	err := applyBan(m, 1, "Ruins", now)
	assert.ErrorIs(t, err, ErrAlreadyBanned)
}

func TestBothBansSelectMapAndArmReady(t *testing.T) {
	now := time.Now()
	m := banPhaseMatch(2)

	require.NoError(t, applyBan(m, 2, "Overwatch", now))
	require.NoError(t, applyBan(m, 1, "Ruins", now))

	require.Len(t, m.SelectedMaps, 1)
	selected := m.SelectedMaps[0].Name
	assert.NotEqual(t, "Overwatch", selected)
	assert.NotEqual(t, "Ruins", selected)
	assert.True(t, m.MapInPool(selected))

	assert.Equal(t, models.MatchReady, m.Status)
	require.NotNil(t, m.ReadyDeadline)
	assert.True(t, m.ReadyDeadline.After(now))
}

func TestBanAfterSelectionRejected(t *testing.T) {
	now := time.Now()
	m := banPhaseMatch(1)

	require.NoError(t, applyBan(m, 1, "Yard", now))
	require.NoError(t, applyBan(m, 2, "Palace", now))
	require.NotEmpty(t, m.SelectedMaps)

	err := applyBan(m, 1, "Factory", now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMultiRandomFormatDrawsThreeMaps(t *testing.T) {
	now := time.Now()
	m := banPhaseMatch(1)
	m.Mode = "squad-bo3"
	m.TeamSize = 4

	require.NoError(t, applyBan(m, 1, "Overwatch", now))
	require.NoError(t, applyBan(m, 2, "Ruins", now))

	require.Len(t, m.SelectedMaps, 3)
	seen := map[string]bool{}
	for i, sel := range m.SelectedMaps {
		assert.Equal(t, i+1, sel.Order)
		assert.False(t, seen[sel.Name], "map %s drawn twice", sel.Name)
		assert.NotEqual(t, "Overwatch", sel.Name)
		assert.NotEqual(t, "Ruins", sel.Name)
		seen[sel.Name] = true
	}
}

func TestVoteFormatOpensBallotInsteadOfDrawing(t *testing.T) {
	now := time.Now()
	m := banPhaseMatch(1)
	m.Mode = "duo"
	m.TeamSize = 2
	m.Players = []models.MatchPlayer{
		{UserID: "ref1", Team: 1, IsReferent: true},
		{UserID: "p1", Team: 1},
		{UserID: "ref2", Team: 2, IsReferent: true},
		{UserID: "p2", Team: 2},
	}

	require.NoError(t, applyBan(m, 1, "Overwatch", now))
	require.NoError(t, applyBan(m, 2, "Ruins", now))

	assert.Empty(t, m.SelectedMaps)
	assert.Equal(t, models.MatchPending, m.Status)
}

func TestApplyVote(t *testing.T) {
	now := time.Now()
	m := banPhaseMatch(1)
	m.Mode = "duo"
	m.TeamSize = 2
	m.Players = []models.MatchPlayer{
		{UserID: "ref1", Team: 1, IsReferent: true},
		{UserID: "p1", Team: 1},
		{UserID: "ref2", Team: 2, IsReferent: true},
		{UserID: "p2", Team: 2},
	}
	require.NoError(t, applyBan(m, 1, "Overwatch", now))
	require.NoError(t, applyBan(m, 2, "Ruins", now))

	require.NoError(t, applyVote(m, "ref1", "Yard", now))

	assert.ErrorIs(t, applyVote(m, "ref1", "Palace", now), ErrAlreadyVoted)
	assert.ErrorIs(t, applyVote(m, "stranger", "Yard", now), ErrNotSquadMember)
	assert.ErrorIs(t, applyVote(m, "p1", "Overwatch", now), ErrMapAlreadyBanned)
	assert.ErrorIs(t, applyVote(m, "p1", "Atlantis", now), ErrMapNotInPool)
}

func TestCloseVoteTallyAndTieBreak(t *testing.T) {
	now := time.Now()
	m := banPhaseMatch(1)
	m.Mode = "duo"
	m.TeamSize = 2
	m.Players = []models.MatchPlayer{
		{UserID: "ref1", Team: 1, IsReferent: true},
		{UserID: "p1", Team: 1},
		{UserID: "ref2", Team: 2, IsReferent: true},
		{UserID: "p2", Team: 2},
	}
	require.NoError(t, applyBan(m, 1, "Overwatch", now))
	require.NoError(t, applyBan(m, 2, "Ruins", now))

	// 2-2 tie. Yard's first vote landed before Palace's first vote, so Yard
	// wins even though Yard also received the last vote of the ballot.
	require.NoError(t, applyVote(m, "ref1", "Yard", now.Add(1*time.Second)))
	require.NoError(t, applyVote(m, "ref2", "Palace", now.Add(2*time.Second)))
	require.NoError(t, applyVote(m, "p2", "Palace", now.Add(3*time.Second)))
	require.NoError(t, applyVote(m, "p1", "Yard", now.Add(4*time.Second)))

	closeVote(m, now.Add(5*time.Second))

	require.Len(t, m.SelectedMaps, 1)
	assert.Equal(t, "Yard", m.SelectedMaps[0].Name)
	assert.Equal(t, models.MatchReady, m.Status)
}

func TestCloseVoteEmptyBallotDrawsRandom(t *testing.T) {
	now := time.Now()
	m := banPhaseMatch(1)
	m.Mode = "duo"
	m.TeamSize = 2

	require.NoError(t, applyBan(m, 1, "Overwatch", now))
	require.NoError(t, applyBan(m, 2, "Ruins", now))

	closeVote(m, now)

	require.Len(t, m.SelectedMaps, 1)
	assert.NotEqual(t, "Overwatch", m.SelectedMaps[0].Name)
	assert.NotEqual(t, "Ruins", m.SelectedMaps[0].Name)
	assert.Equal(t, models.MatchReady, m.Status)
}
