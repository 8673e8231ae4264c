package models

// ModeRewards are the per-mode knobs an operator can override at runtime.
type ModeRewards struct {
	PointsWin int `json:"points_win"`
	FlatLoss  int `json:"flat_loss"`
	GoldWin   int `json:"gold_win"`
	GoldLoss  int `json:"gold_loss"`
	XPWin     int `json:"xp_win"`
	XPLoss    int `json:"xp_loss"`
}

// RewardConfig is the single authoritative, versioned configuration record.
// Every reward computation reads it fresh (through a short TTL cache) so a
// concurrent season reset cannot apply a stale curve.
type RewardConfig struct {
	ID      string `gorm:"primaryKey" json:"id"`
	Version int    `gorm:"not null;default:1" json:"version"`

	LossCurve   LossCurve              `gorm:"type:jsonb;serializer:json" json:"loss_curve"`
	ModeRewards map[string]ModeRewards `gorm:"type:jsonb;serializer:json" json:"mode_rewards"`

	Season int `gorm:"default:1" json:"season"`

	Timestamps
}

// DefaultRewardConfig is the seed record created on first run.
func DefaultRewardConfig() *RewardConfig {
	return &RewardConfig{
		ID:        "reward-config",
		Version:   1,
		LossCurve: DefaultLossCurve,
		ModeRewards: map[string]ModeRewards{
			"versus5":   {PointsWin: 30},
			"duo":       {PointsWin: 15, FlatLoss: 8, GoldWin: 40, GoldLoss: 20, XPWin: 400},
			"squad-bo3": {PointsWin: 25, FlatLoss: 12, GoldWin: 60, GoldLoss: 30, XPWin: 600},
		},
		Season: 1,
	}
}

// RewardsFor returns the configured rewards for a mode, falling back to the
// compiled-in policy values when the record has no entry.
func (c *RewardConfig) RewardsFor(policy GameModePolicy) ModeRewards {
	if r, ok := c.ModeRewards[policy.Mode]; ok {
		return r
	}
	return ModeRewards{
		PointsWin: policy.PointsWin,
		FlatLoss:  policy.FlatLoss,
		GoldWin:   policy.GoldWin,
		GoldLoss:  policy.GoldLoss,
		XPWin:     policy.XPWin,
		XPLoss:    policy.XPLoss,
	}
}
