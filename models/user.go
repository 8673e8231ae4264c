package models

import (
	"time"
)

// ConnectivitySignalWindow: the live-connection signal is considered present
// when the last ping is within this window (pings arrive every 2 minutes).
const ConnectivitySignalWindow = 3 * time.Minute

// LadderUser is a local snapshot of user data needed for match orchestration.
// Owned solely by this service; populated via sync worker from the profile
// service and mutated here only for ladder stats, rewards and bans.
type LadderUser struct {
	ID             string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string  `gorm:"index;not null" json:"username"`
	Platform       string  `json:"platform,omitempty"`
	AvatarURL      *string `json:"avatar_url,omitempty"`

	// Live-connection signal, refreshed by the anti-cheat client heartbeat.
	ConnectivityLastSeen *time.Time `json:"connectivity_last_seen,omitempty"`

	// Ladder stats
	Points int `gorm:"default:0" json:"points"`
	Wins   int `gorm:"default:0" json:"wins"`
	Losses int `gorm:"default:0" json:"losses"`

	// Wallet mirrors credited by reward distribution
	Gold int `gorm:"default:0" json:"gold"`
	XP   int `gorm:"default:0" json:"xp"`

	IsBanned     bool       `gorm:"default:false" json:"is_banned"`
	BanReason    string     `json:"ban_reason,omitempty"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`

	Timestamps
}

// ConnectivityPresent reports whether the live-connection signal is fresh.
// Only PC players carry the signal; other platforms always pass.
func (u *LadderUser) ConnectivityPresent(now time.Time) bool {
	if u.Platform != "PC" {
		return true
	}
	return u.ConnectivityLastSeen != nil && now.Sub(*u.ConnectivityLastSeen) < ConnectivitySignalWindow
}

// ActiveBan reports whether the user is currently banned.
func (u *LadderUser) ActiveBan(now time.Time) bool {
	if !u.IsBanned {
		return false
	}
	return u.BanExpiresAt == nil || u.BanExpiresAt.After(now)
}
