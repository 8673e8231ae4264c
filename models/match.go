package models

import (
	"time"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchReady      MatchStatus = "ready"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
	MatchDisputed   MatchStatus = "disputed"
)

// IsTerminal reports whether no further state mutation is accepted.
// disputed is recoverable (arbitration), so it is not terminal.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

// PlayerRewards is the per-player audit record written at distribution time.
type PlayerRewards struct {
	PointsChange int `json:"points_change"`
	OldPoints    int `json:"old_points"`
	NewPoints    int `json:"new_points"`
	GoldEarned   int `json:"gold_earned"`
	XPEarned     int `json:"xp_earned"`
}

// MatchPlayer is one roster slot. Filler slots carry no real participant and
// are excluded from reward distribution.
type MatchPlayer struct {
	UserID     string         `json:"user_id"`
	Username   string         `json:"username"`
	Rank       RankTier       `json:"rank"`
	Points     int            `json:"points"`
	Team       int            `json:"team"` // 1 or 2
	SquadID    string         `json:"squad_id"`
	IsReferent bool           `json:"is_referent"`
	IsFiller   bool           `json:"is_filler"`
	Rewards    *PlayerRewards `json:"rewards,omitempty"`
}

// MapOption is a catalog entry snapshotted onto the match at creation.
type MapOption struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
}

// MapBans records the turn-based elimination phase. Each referent bans exactly
// one map; the starting side comes from a coin flip recorded once at creation.
type MapBans struct {
	FirstBanTeam  int        `json:"first_ban_team"`
	CurrentTurn   int        `json:"current_turn"`
	TurnStartedAt *time.Time `json:"turn_started_at,omitempty"`
	Team1Banned   string     `json:"team1_banned"`
	Team1BannedAt *time.Time `json:"team1_banned_at,omitempty"`
	Team2Banned   string     `json:"team2_banned"`
	Team2BannedAt *time.Time `json:"team2_banned_at,omitempty"`
}

// Complete reports whether both referents have banned.
func (b MapBans) Complete() bool {
	return b.Team1Banned != "" && b.Team2Banned != ""
}

// BannedFor returns the ban recorded for a side.
func (b MapBans) BannedFor(team int) string {
	if team == 1 {
		return b.Team1Banned
	}
	return b.Team2Banned
}

// MapVote is one roster member's vote among the survivor pool.
type MapVote struct {
	UserID  string    `json:"user_id"`
	MapName string    `json:"map_name"`
	VotedAt time.Time `json:"voted_at"`
}

// SelectedMap is one entry of the final ordered map list.
type SelectedMap struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Order int    `json:"order"`
}

// RosterPick is one entry in the draft pick log.
type RosterPick struct {
	Team     int       `json:"team"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	PickedAt time.Time `json:"picked_at"`
}

// RosterDraft tracks the alternating pick phase. Referents are pre-seated, so
// the pick budget is teamSize-1 per side.
type RosterDraft struct {
	IsActive      bool         `json:"is_active"`
	CurrentTurn   int          `json:"current_turn"`
	TurnStartedAt *time.Time   `json:"turn_started_at,omitempty"`
	PickOrder     []RosterPick `json:"pick_order"`
	TotalPicks    int          `json:"total_picks"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
}

// TeamReport is one side's independent result report.
type TeamReport struct {
	Winner     int       `json:"winner"` // 1 or 2
	ReportedAt time.Time `json:"reported_at"`
}

// MatchResult holds the dual reports and the reconciled outcome. Once
// Confirmed is true the winner is immutable.
type MatchResult struct {
	Winner        int         `json:"winner"`
	Team1Score    int         `json:"team1_score"`
	Team2Score    int         `json:"team2_score"`
	Team1Report   *TeamReport `json:"team1_report,omitempty"`
	Team2Report   *TeamReport `json:"team2_report,omitempty"`
	Confirmed     bool        `json:"confirmed"`
	ConfirmedAt   *time.Time  `json:"confirmed_at,omitempty"`
	IsForfeit     bool        `json:"is_forfeit"`
	ForfeitTeam   int         `json:"forfeit_team,omitempty"`
	ForfeitReason string      `json:"forfeit_reason,omitempty"`
}

// ReportFor returns the report recorded for a side.
func (r MatchResult) ReportFor(team int) *TeamReport {
	if team == 1 {
		return r.Team1Report
	}
	return r.Team2Report
}

// DisputeEvidence is one append-only evidence attachment.
type DisputeEvidence struct {
	UploadedBy  string    `json:"uploaded_by"`
	Team        int       `json:"team"`
	AssetURL    string    `json:"asset_url"`
	Description string    `json:"description"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Dispute tracks an open litigation and its arbitration outcome.
type Dispute struct {
	IsActive       bool              `json:"is_active"`
	ReportedBy     string            `json:"reported_by,omitempty"`
	ReportedByTeam int               `json:"reported_by_team,omitempty"`
	ReportedAt     *time.Time        `json:"reported_at,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	Evidence       []DisputeEvidence `json:"evidence,omitempty"`
	ResolvedBy     string            `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time        `json:"resolved_at,omitempty"`
	Resolution     string            `json:"resolution,omitempty"`
	ResolvedWinner int               `json:"resolved_winner,omitempty"`
}

// CancellationVotes holds the mutual pre-match cancellation votes. A vote once
// cast is final for that side.
type CancellationVotes struct {
	Team1        *bool      `json:"team1,omitempty"`
	Team2        *bool      `json:"team2,omitempty"`
	Team1VotedAt *time.Time `json:"team1_voted_at,omitempty"`
	Team2VotedAt *time.Time `json:"team2_voted_at,omitempty"`
}

// ChatMessage is one append-only match chat entry.
type ChatMessage struct {
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Team      int       `json:"team,omitempty"`
	Message   string    `json:"message"`
	IsSystem  bool      `json:"is_system"`
	IsStaff   bool      `json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is the central aggregate. All sub-protocol state lives on it and is
// persisted through a single version-guarded conditional write per transition.
type Match struct {
	ID       string      `gorm:"primaryKey" json:"id"`
	Mode     string      `gorm:"index;not null" json:"mode"`
	TeamSize int         `json:"team_size"`
	Status   MatchStatus `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	Version  int         `gorm:"not null;default:0" json:"-"`

	Team1SquadID  string `gorm:"index" json:"team1_squad_id"`
	Team2SquadID  string `gorm:"index" json:"team2_squad_id"`
	Team1Referent string `gorm:"index" json:"team1_referent"`
	Team2Referent string `gorm:"index" json:"team2_referent"`
	Team1Acked    bool   `json:"team1_acked"`
	Team2Acked    bool   `json:"team2_acked"`

	// Host side drawn at creation, provides the game-session code.
	HostTeam int    `json:"host_team"`
	GameCode string `json:"game_code,omitempty"`

	Players      []MatchPlayer     `gorm:"type:jsonb;serializer:json" json:"players"`
	MapPool      []MapOption       `gorm:"type:jsonb;serializer:json" json:"map_pool"`
	MapBans      MapBans           `gorm:"type:jsonb;serializer:json" json:"map_bans"`
	MapVotes     []MapVote         `gorm:"type:jsonb;serializer:json" json:"map_votes"`
	SelectedMaps []SelectedMap     `gorm:"type:jsonb;serializer:json" json:"selected_maps"`
	Roster       RosterDraft       `gorm:"type:jsonb;serializer:json" json:"roster"`
	Result       MatchResult       `gorm:"type:jsonb;serializer:json" json:"result"`
	Dispute      Dispute           `gorm:"type:jsonb;serializer:json" json:"dispute"`
	CancelVotes  CancellationVotes `gorm:"type:jsonb;serializer:json" json:"cancel_votes"`
	Chat         []ChatMessage     `gorm:"type:jsonb;serializer:json" json:"chat"`

	RewardsDistributed bool `gorm:"default:false" json:"rewards_distributed"`

	QueuedAt       time.Time  `json:"queued_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ReadyDeadline  *time.Time `json:"ready_deadline,omitempty"`
	ReportDeadline *time.Time `json:"report_deadline,omitempty"`

	Timestamps
}

// ReferentTeam returns the side a user is referent for, 0 if neither.
func (m *Match) ReferentTeam(userID string) int {
	switch userID {
	case m.Team1Referent:
		return 1
	case m.Team2Referent:
		return 2
	}
	return 0
}

// PlayerTeam returns the side a user is rostered on, 0 if not rostered.
func (m *Match) PlayerTeam(userID string) int {
	for _, p := range m.Players {
		if p.UserID == userID {
			return p.Team
		}
	}
	return 0
}

// OpponentTeam returns the other side.
func OpponentTeam(team int) int {
	if team == 1 {
		return 2
	}
	return 1
}

// SquadFor returns the squad id of a side.
func (m *Match) SquadFor(team int) string {
	if team == 1 {
		return m.Team1SquadID
	}
	return m.Team2SquadID
}

// TeamCount counts rostered players on a side.
func (m *Match) TeamCount(team int) int {
	n := 0
	for _, p := range m.Players {
		if p.Team == team {
			n++
		}
	}
	return n
}

// HasPlayer reports whether a user already holds a roster slot.
func (m *Match) HasPlayer(userID string) bool {
	return m.PlayerTeam(userID) != 0
}

// SurvivorMaps returns the pool minus both bans.
func (m *Match) SurvivorMaps() []MapOption {
	survivors := make([]MapOption, 0, len(m.MapPool))
	for _, opt := range m.MapPool {
		if opt.Name == m.MapBans.Team1Banned || opt.Name == m.MapBans.Team2Banned {
			continue
		}
		survivors = append(survivors, opt)
	}
	return survivors
}

// MapInPool reports whether a name is part of the snapshotted catalog.
func (m *Match) MapInPool(name string) bool {
	for _, opt := range m.MapPool {
		if opt.Name == name {
			return true
		}
	}
	return false
}

// PushSystemMessage appends a system chat entry.
func (m *Match) PushSystemMessage(msg string, now time.Time) {
	m.Chat = append(m.Chat, ChatMessage{
		Message:   msg,
		IsSystem:  true,
		CreatedAt: now,
	})
}
