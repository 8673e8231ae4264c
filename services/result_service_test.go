package services

import (
	"testing"
	"time"

	"ladder-match-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inProgressMatch() *models.Match {
	started := time.Now().Add(-30 * time.Minute)
	return &models.Match{
		ID:            "m1",
		Mode:          "versus5",
		TeamSize:      5,
		Status:        models.MatchInProgress,
		Team1Referent: "ref1",
		Team2Referent: "ref2",
		StartedAt:     &started,
	}
}

func TestFirstReportWaitsForOpponent(t *testing.T) {
	now := time.Now()
	m := inProgressMatch()

	outcome, err := applyReport(m, 1, 1, now)
	require.NoError(t, err)
	assert.Equal(t, reportPending, outcome)
	assert.Equal(t, models.MatchInProgress, m.Status)
	require.NotNil(t, m.Result.Team1Report)
	assert.Nil(t, m.Result.Team2Report)
}

func TestMatchingReportsConfirm(t *testing.T) {
	t1 := time.Now()
	t2 := t1.Add(2 * time.Minute)
	m := inProgressMatch()

	_, err := applyReport(m, 1, 2, t1)
	require.NoError(t, err)

	outcome, err := applyReport(m, 2, 2, t2)
	require.NoError(t, err)
	assert.Equal(t, reportConfirmed, outcome)
}

func TestContradictingReportsDispute(t *testing.T) {
	t1 := time.Now()
	t2 := t1.Add(2 * time.Minute)
	m := inProgressMatch()

	_, err := applyReport(m, 1, 1, t1)
	require.NoError(t, err)

	outcome, err := applyReport(m, 2, 2, t2)
	require.NoError(t, err)
	assert.Equal(t, reportDisputed, outcome)
	assert.Equal(t, models.MatchDisputed, m.Status)
	assert.True(t, m.Dispute.IsActive)
	assert.False(t, m.Result.Confirmed)
}

func TestSecondReportFromSameSideRejected(t *testing.T) {
	now := time.Now()
	m := inProgressMatch()

	_, err := applyReport(m, 1, 1, now)
	require.NoError(t, err)

	_, err = applyReport(m, 1, 2, now.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyReported)
	// the original report stands
	assert.Equal(t, 1, m.Result.Team1Report.Winner)
}

func TestReportOutsideInProgressRejected(t *testing.T) {
	now := time.Now()

	for _, status := range []models.MatchStatus{
		models.MatchPending, models.MatchReady,
		models.MatchCompleted, models.MatchCancelled,
	} {
		m := inProgressMatch()
		m.Status = status
		_, err := applyReport(m, 1, 1, now)
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s", status)
	}
}
