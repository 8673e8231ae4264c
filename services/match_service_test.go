package services

import (
	"testing"
	"time"

	"ladder-match-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyMatch() *models.Match {
	return &models.Match{
		ID:       "m-ready",
		Mode:     "versus5",
		Status:   models.MatchReady,
		HostTeam: 1,
	}
}

func TestMatchStartTriggers(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name       string
		team1Acked bool
		team2Acked bool
		gameCode   string
		wantStatus models.MatchStatus
	}{
		{"nothing yet stays ready", false, false, "", models.MatchReady},
		{"one ack stays ready", true, false, "", models.MatchReady},
		{"both acks start without a code", true, true, "", models.MatchInProgress},
		{"host code alone starts", false, false, "ABC123", models.MatchInProgress},
		{"ack plus code starts", true, false, "ABC123", models.MatchInProgress},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := readyMatch()
			m.Team1Acked = tc.team1Acked
			m.Team2Acked = tc.team2Acked
			m.GameCode = tc.gameCode

			s := &MatchService{}
			s.maybeStart(m, now)

			assert.Equal(t, tc.wantStatus, m.Status)
			if tc.wantStatus == models.MatchInProgress {
				require.NotNil(t, m.StartedAt)
				assert.Equal(t, now, *m.StartedAt)
				require.NotNil(t, m.ReportDeadline)
				assert.True(t, m.ReportDeadline.After(now))
			} else {
				assert.Nil(t, m.StartedAt)
			}
		})
	}
}

func TestMatchStartIgnoresNonReadyStates(t *testing.T) {
	now := time.Now()

	for _, status := range []models.MatchStatus{
		models.MatchPending, models.MatchInProgress,
		models.MatchCompleted, models.MatchCancelled, models.MatchDisputed,
	} {
		m := readyMatch()
		m.Status = status
		m.Team1Acked = true
		m.Team2Acked = true
		m.GameCode = "ABC123"

		s := &MatchService{}
		s.maybeStart(m, now)
		assert.Equal(t, status, m.Status)
	}
}
