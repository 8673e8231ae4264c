package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingTracking(detected time.Time) *ConnectivityTracking {
	return &ConnectivityTracking{
		ID:         "t1",
		UserID:     "u1",
		MatchID:    "m1",
		DetectedAt: detected,
		CheckAt:    detected.Add(ShadowBanGracePeriod),
		Status:     TrackingPending,
	}
}

func TestEvaluatePrecedence(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name        string
		connected   bool
		matchActive bool
		want        TrackingStatus
		wantReason  string
	}{
		{"finished match expires even when still dark", false, false, TrackingExpired, ResolutionMatchEnded},
		{"finished match expires even when reconnected", true, false, TrackingExpired, ResolutionMatchEnded},
		{"signal restored clears", true, true, TrackingCleared, ResolutionReconnected},
		{"still dark in active match bans", false, true, TrackingBanned, ResolutionBanned},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := pendingTracking(now.Add(-ShadowBanGracePeriod))
			got := tr.Evaluate(tc.connected, tc.matchActive, now)

			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantReason, tr.ResolutionReason)
			require.NotNil(t, tr.ResolvedAt)
		})
	}
}

func TestEvaluateBanWindow(t *testing.T) {
	now := time.Now()
	tr := pendingTracking(now.Add(-ShadowBanGracePeriod))

	tr.Evaluate(false, true, now)

	assert.True(t, tr.BanApplied)
	require.NotNil(t, tr.BanExpiresAt)
	assert.Equal(t, now.Add(ShadowBanDuration), *tr.BanExpiresAt)
	assert.NotEmpty(t, tr.BanReason)
}

func TestManualClearOnlyWhilePending(t *testing.T) {
	now := time.Now()

	tr := pendingTracking(now)
	require.True(t, tr.Clear("authority-1", now))
	assert.Equal(t, TrackingCleared, tr.Status)
	assert.Equal(t, ResolutionManualClear, tr.ResolutionReason)
	assert.Equal(t, "authority-1", tr.ResolvedBy)

	// a resolved tracking cannot be cleared again
	assert.False(t, tr.Clear("authority-2", now))
	assert.Equal(t, "authority-1", tr.ResolvedBy)

	banned := pendingTracking(now)
	banned.Evaluate(false, true, now)
	assert.False(t, banned.Clear("authority-1", now))
}

func TestConnectivityPresentWindow(t *testing.T) {
	now := time.Now()

	fresh := now.Add(-2 * time.Minute)
	stale := now.Add(-4 * time.Minute)

	pc := &LadderUser{Platform: "PC", ConnectivityLastSeen: &fresh}
	assert.True(t, pc.ConnectivityPresent(now))

	pc.ConnectivityLastSeen = &stale
	assert.False(t, pc.ConnectivityPresent(now))

	pc.ConnectivityLastSeen = nil
	assert.False(t, pc.ConnectivityPresent(now))

	// non-PC platforms carry no signal and always pass
	console := &LadderUser{Platform: "PlayStation"}
	assert.True(t, console.ConnectivityPresent(now))
}
