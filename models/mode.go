package models

import "time"

// MapFormat decides what happens to the survivor pool once both bans are in.
type MapFormat string

const (
	MapFormatSingleRandom MapFormat = "single_random" // one map drawn at random
	MapFormatMultiRandom  MapFormat = "multi_random"  // N maps drawn at random (BO3 etc.)
	MapFormatVote         MapFormat = "vote"          // roster members vote among survivors
)

// RankTier is a point-threshold bracket used to scale point loss on defeat.
type RankTier string

const (
	TierRecruits    RankTier = "Recruits"
	TierOperators   RankTier = "Operators"
	TierVeterans    RankTier = "Veterans"
	TierCommandants RankTier = "Commandants"
	TierWarlords    RankTier = "Warlords"
	TierImmortal    RankTier = "Immortal"
)

// TierForPoints maps a point total to its rank tier.
func TierForPoints(points int) RankTier {
	switch {
	case points >= 1500:
		return TierImmortal
	case points >= 1000:
		return TierWarlords
	case points >= 750:
		return TierCommandants
	case points >= 500:
		return TierVeterans
	case points >= 250:
		return TierOperators
	default:
		return TierRecruits
	}
}

// LossCurve is a closed tier → point-loss mapping. Every tier must be present;
// an unknown tier is a validation error, never a silent zero.
type LossCurve map[RankTier]int

// Validate checks that every tier has an entry.
func (c LossCurve) Validate() bool {
	for _, tier := range []RankTier{TierRecruits, TierOperators, TierVeterans, TierCommandants, TierWarlords, TierImmortal} {
		if _, ok := c[tier]; !ok {
			return false
		}
	}
	return true
}

// GameModePolicy parameterizes the match state machine per game mode:
// team size, map pipeline shape and the reward curve. One state machine,
// many modes.
type GameModePolicy struct {
	Mode      string
	TeamSize  int
	MapFormat MapFormat
	MapCount  int // selected maps for the random formats

	PointsWin int
	// TieredLoss uses the loser's rank tier at the moment of loss; when nil,
	// FlatLoss applies.
	TieredLoss LossCurve
	FlatLoss   int

	GoldWin  int
	GoldLoss int
	XPWin    int
	XPLoss   int

	// RequireConnectivity gates roster eligibility on a fresh live-connection
	// signal and enables shadow-ban tracking for the mode.
	RequireConnectivity bool

	BanTurnDeadline  time.Duration
	PickTurnDeadline time.Duration
	VoteDeadline     time.Duration
	ReadyTimeout     time.Duration
	ReportDeadline   time.Duration
}

// DefaultLossCurve: higher tiers lose more, a stabilizing mechanic.
var DefaultLossCurve = LossCurve{
	TierRecruits:    10,
	TierOperators:   13,
	TierVeterans:    16,
	TierCommandants: 20,
	TierWarlords:    25,
	TierImmortal:    30,
}

// gameModes is the closed registry of supported modes.
var gameModes = map[string]GameModePolicy{
	"versus5": {
		Mode:                "versus5",
		TeamSize:            5,
		MapFormat:           MapFormatSingleRandom,
		MapCount:            1,
		PointsWin:           30,
		TieredLoss:          DefaultLossCurve,
		RequireConnectivity: true,
		BanTurnDeadline:     60 * time.Second,
		PickTurnDeadline:    45 * time.Second,
		ReadyTimeout:        10 * time.Minute,
		ReportDeadline:      2 * time.Hour,
	},
	"duo": {
		Mode:                "duo",
		TeamSize:            2,
		MapFormat:           MapFormatVote,
		MapCount:            1,
		PointsWin:           15,
		FlatLoss:            8,
		GoldWin:             40,
		GoldLoss:            20,
		XPWin:               400,
		XPLoss:              0,
		RequireConnectivity: false,
		BanTurnDeadline:     60 * time.Second,
		PickTurnDeadline:    45 * time.Second,
		VoteDeadline:        90 * time.Second,
		ReadyTimeout:        10 * time.Minute,
		ReportDeadline:      2 * time.Hour,
	},
	"squad-bo3": {
		Mode:                "squad-bo3",
		TeamSize:            4,
		MapFormat:           MapFormatMultiRandom,
		MapCount:            3,
		PointsWin:           25,
		FlatLoss:            12,
		GoldWin:             60,
		GoldLoss:            30,
		XPWin:               600,
		XPLoss:              0,
		RequireConnectivity: true,
		BanTurnDeadline:     60 * time.Second,
		PickTurnDeadline:    45 * time.Second,
		ReadyTimeout:        10 * time.Minute,
		ReportDeadline:      2 * time.Hour,
	},
}

// PolicyForMode returns the policy for a mode tag, false when unknown.
func PolicyForMode(mode string) (GameModePolicy, bool) {
	p, ok := gameModes[mode]
	return p, ok
}

// SupportedModes lists the registered mode tags.
func SupportedModes() []string {
	modes := make([]string, 0, len(gameModes))
	for m := range gameModes {
		modes = append(modes, m)
	}
	return modes
}
