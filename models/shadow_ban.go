package models

import (
	"time"
)

// Shadow-ban timings: a player detected without the live-connection signal
// during an active match gets a grace window before the delayed check; a
// failed check applies a temporary account ban.
const (
	ShadowBanGracePeriod = 10 * time.Minute
	ShadowBanDuration    = 24 * time.Hour
)

// TrackingStatus is the lifecycle of a connectivity tracking record.
type TrackingStatus string

const (
	TrackingPending TrackingStatus = "pending"
	TrackingCleared TrackingStatus = "cleared"
	TrackingBanned  TrackingStatus = "banned"
	TrackingExpired TrackingStatus = "expired"
)

// Resolution reasons recorded when a tracking leaves pending.
const (
	ResolutionReconnected = "reconnected"
	ResolutionMatchEnded  = "match_ended"
	ResolutionBanned      = "banned"
	ResolutionManualClear = "manual_clear"
)

// ConnectivityTracking is one record per (match, player) pair, created when a
// participant lacks the live-connection signal while the match is active.
// Enforcement is deliberately delayed to tolerate transient signal loss.
type ConnectivityTracking struct {
	ID       string `gorm:"primaryKey" json:"id"`
	UserID   string `gorm:"index:idx_tracking_match_user,unique;not null" json:"user_id"`
	Username string `json:"username"`
	MatchID  string `gorm:"index:idx_tracking_match_user,unique;not null" json:"match_id"`
	Mode     string `json:"mode"`

	DetectedAt time.Time `gorm:"not null" json:"detected_at"`
	CheckAt    time.Time `gorm:"not null;index" json:"check_at"`

	Status TrackingStatus `gorm:"type:varchar(16);default:'pending';index" json:"status"`

	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionReason string     `json:"resolution_reason,omitempty"`
	ResolvedBy       string     `json:"resolved_by,omitempty"`

	BanApplied   bool       `gorm:"default:false" json:"ban_applied"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`
	BanReason    string     `json:"ban_reason,omitempty"`

	Timestamps
}

// Evaluate decides the outcome of a due check. Precedence: a finished match
// expires the tracking, a restored signal clears it, otherwise it bans.
func (t *ConnectivityTracking) Evaluate(connected, matchActive bool, now time.Time) TrackingStatus {
	switch {
	case !matchActive:
		t.Status = TrackingExpired
		t.ResolutionReason = ResolutionMatchEnded
	case connected:
		t.Status = TrackingCleared
		t.ResolutionReason = ResolutionReconnected
	default:
		t.Status = TrackingBanned
		t.ResolutionReason = ResolutionBanned
		t.BanApplied = true
		expires := now.Add(ShadowBanDuration)
		t.BanExpiresAt = &expires
		t.BanReason = "missing live-connection signal during an active match"
	}
	t.ResolvedAt = &now
	return t.Status
}

// Clear resolves a pending tracking manually, overriding the automatic check.
func (t *ConnectivityTracking) Clear(resolvedBy string, now time.Time) bool {
	if t.Status != TrackingPending {
		return false
	}
	t.Status = TrackingCleared
	t.ResolutionReason = ResolutionManualClear
	t.ResolvedBy = resolvedBy
	t.ResolvedAt = &now
	return true
}
