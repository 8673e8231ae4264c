package services

import (
	"fmt"
	"testing"
	"time"

	"ladder-match-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftMatch(teamSize int) *models.Match {
	now := time.Now()
	return &models.Match{
		ID:            "m1",
		Mode:          "versus5",
		TeamSize:      teamSize,
		Status:        models.MatchPending,
		Team1SquadID:  "squad1",
		Team2SquadID:  "squad2",
		Team1Referent: "ref1",
		Team2Referent: "ref2",
		Players: []models.MatchPlayer{
			{UserID: "ref1", Username: "ref1", Team: 1, SquadID: "squad1", IsReferent: true},
			{UserID: "ref2", Username: "ref2", Team: 2, SquadID: "squad2", IsReferent: true},
		},
		MapBans: models.MapBans{FirstBanTeam: 1, CurrentTurn: 1},
		Roster: models.RosterDraft{
			IsActive:      true,
			CurrentTurn:   1,
			TurnStartedAt: &now,
			StartedAt:     &now,
		},
	}
}

func ladderUser(id string) *models.LadderUser {
	return &models.LadderUser{ExternalUserID: id, Username: id}
}

func TestApplyPickAlternatesTurns(t *testing.T) {
	now := time.Now()
	m := draftMatch(3)

	require.NoError(t, applyPick(m, 1, ladderUser("a1"), now))
	assert.Equal(t, 2, m.Roster.CurrentTurn)

	require.NoError(t, applyPick(m, 2, ladderUser("b1"), now))
	assert.Equal(t, 1, m.Roster.CurrentTurn)

	assert.Equal(t, 2, m.Roster.TotalPicks)
	assert.Equal(t, 2, m.TeamCount(1))
	assert.Equal(t, 2, m.TeamCount(2))
}

func TestApplyPickOutOfTurnRejected(t *testing.T) {
	now := time.Now()
	m := draftMatch(3)

	err := applyPick(m, 2, ladderUser("b1"), now)
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestApplyPickDuplicateRejected(t *testing.T) {
	now := time.Now()
	m := draftMatch(3)

	require.NoError(t, applyPick(m, 1, ladderUser("a1"), now))
	err := applyPick(m, 2, ladderUser("a1"), now)
	assert.ErrorIs(t, err, ErrAlreadyPicked)

	// referents are seated from creation, picking one again must fail
	err = applyPick(m, 2, ladderUser("ref1"), now)
	assert.ErrorIs(t, err, ErrAlreadyPicked)
}

func TestDraftCompletesWhenBothRostersFull(t *testing.T) {
	now := time.Now()
	m := draftMatch(3)

	for i := 0; i < 2; i++ {
		require.NoError(t, applyPick(m, 1, ladderUser(fmt.Sprintf("a%d", i)), now))
		require.NoError(t, applyPick(m, 2, ladderUser(fmt.Sprintf("b%d", i)), now))
	}

	assert.False(t, m.Roster.IsActive)
	require.NotNil(t, m.Roster.CompletedAt)
	assert.Equal(t, 3, m.TeamCount(1))
	assert.Equal(t, 3, m.TeamCount(2))
	assert.Len(t, m.Roster.PickOrder, 4)

	// ban phase opens with the coin-flipped side on the clock
	assert.Equal(t, 1, m.MapBans.CurrentTurn)
	require.NotNil(t, m.MapBans.TurnStartedAt)

	// no further picks accepted
	err := applyPick(m, 1, ladderUser("late"), now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDraftKeepsTurnWhenOpponentFull(t *testing.T) {
	now := time.Now()
	m := draftMatch(3)
	// team 1 already full (a skipped turn put the sides out of step)
	m.Players = append(m.Players,
		models.MatchPlayer{UserID: "a1", Team: 1, SquadID: "squad1"},
		models.MatchPlayer{UserID: "a2", Team: 1, SquadID: "squad1"},
	)
	m.Roster.CurrentTurn = 2

	require.NoError(t, applyPick(m, 2, ladderUser("b1"), now))
	// team 2 keeps the turn until its roster is full
	assert.Equal(t, 2, m.Roster.CurrentTurn)
	assert.True(t, m.Roster.IsActive)

	require.NoError(t, applyPick(m, 2, ladderUser("b2"), now))
	assert.False(t, m.Roster.IsActive)
}

func TestShortRosterGetsFillerSlots(t *testing.T) {
	now := time.Now()
	m := draftMatch(3)
	m.Roster.CurrentTurn = 2

	completeDraft(m, now)

	assert.Equal(t, 3, m.TeamCount(1))
	assert.Equal(t, 3, m.TeamCount(2))

	fillers := 0
	for _, p := range m.Players {
		if p.IsFiller {
			fillers++
			assert.False(t, p.IsReferent)
		}
	}
	assert.Equal(t, 4, fillers)
}

func TestPickOrderIsRecorded(t *testing.T) {
	now := time.Now()
	m := draftMatch(2)

	require.NoError(t, applyPick(m, 1, ladderUser("a1"), now))
	require.NoError(t, applyPick(m, 2, ladderUser("b1"), now))

	require.Len(t, m.Roster.PickOrder, 2)
	assert.Equal(t, "a1", m.Roster.PickOrder[0].UserID)
	assert.Equal(t, 1, m.Roster.PickOrder[0].Team)
	assert.Equal(t, "b1", m.Roster.PickOrder[1].UserID)
	assert.Equal(t, 2, m.Roster.PickOrder[1].Team)
}
