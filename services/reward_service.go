package services

import (
	"fmt"
	"log"
	"time"

	"ladder-match-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RewardService applies match outcomes to player and squad ledgers exactly
// once per match. The rewards_distributed flag is flipped with a conditional
// write before any ledger is touched, so a concurrent double completion can
// never pay twice.
type RewardService struct {
	DB     *gorm.DB
	Config *ConfigService
}

func NewRewardService(db *gorm.DB, cfg *ConfigService) *RewardService {
	return &RewardService{DB: db, Config: cfg}
}

// computePlayerReward derives one player's ledger delta. Losers pay by the
// rank tier their current points place them in; a loss never takes points
// below zero.
func computePlayerReward(currentPoints int, won bool, rewards models.ModeRewards, curve models.LossCurve) models.PlayerRewards {
	r := models.PlayerRewards{OldPoints: currentPoints}

	if won {
		r.PointsChange = rewards.PointsWin
		r.GoldEarned = rewards.GoldWin
		r.XPEarned = rewards.XPWin
	} else {
		loss := rewards.FlatLoss
		if curve != nil {
			loss = curve[models.TierForPoints(currentPoints)]
		}
		r.PointsChange = -loss
		r.GoldEarned = rewards.GoldLoss
		r.XPEarned = rewards.XPLoss
	}

	r.NewPoints = currentPoints + r.PointsChange
	if r.NewPoints < 0 {
		r.NewPoints = 0
		r.PointsChange = -currentPoints
	}
	return r
}

// DistributeMatchRewards pays out a completed match. Filler slots are
// skipped. Safe to call again after a partial failure: the flag flip decides.
func (s *RewardService) DistributeMatchRewards(m *models.Match) error {
	if !m.Result.Confirmed || m.Result.Winner == 0 {
		return fmt.Errorf("match %s has no confirmed winner", m.ID)
	}
	if m.RewardsDistributed {
		log.Printf("[REWARDS] INTEGRITY: distribution re-attempted for match %s", m.ID)
		return ErrRewardsAlreadyDistributed
	}

	// Claim the distribution. Zero rows means someone already did (or is
	// doing) it, which on a single completion path is an integrity defect.
	res := s.DB.Model(&models.Match{}).
		Where("id = ? AND rewards_distributed = ?", m.ID, false).
		Update("rewards_distributed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("[REWARDS] INTEGRITY: distribution re-attempted for match %s", m.ID)
		return ErrRewardsAlreadyDistributed
	}
	m.RewardsDistributed = true

	cfg, err := s.Config.Get()
	if err != nil {
		return err
	}
	policy, ok := models.PolicyForMode(m.Mode)
	if !ok {
		return fmt.Errorf("match %s has unknown mode %s", m.ID, m.Mode)
	}
	rewards := cfg.RewardsFor(policy)
	var curve models.LossCurve
	if policy.TieredLoss != nil {
		curve = cfg.LossCurve
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for i := range m.Players {
			p := &m.Players[i]
			if p.IsFiller {
				continue
			}

			var u models.LadderUser
			if err := tx.First(&u, "external_user_id = ?", p.UserID).Error; err != nil {
				log.Printf("[REWARDS] user %s missing for match %s: %v", p.UserID, m.ID, err)
				continue
			}

			won := p.Team == m.Result.Winner
			pr := computePlayerReward(u.Points, won, rewards, curve)

			u.Points = pr.NewPoints
			u.Gold += pr.GoldEarned
			u.XP += pr.XPEarned
			if won {
				u.Wins++
			} else {
				u.Losses++
			}
			if err := tx.Save(&u).Error; err != nil {
				return err
			}

			p.Rewards = &pr
		}

		// Persist the per-player audit onto the match itself.
		return tx.Model(&models.Match{}).
			Where("id = ?", m.ID).
			Update("players", m.Players).Error
	})
	if err != nil {
		// Ledger untouched (transaction rolled back) but the flag is set;
		// flag it loudly for recovery instead of risking a double payout.
		log.Printf("[REWARDS] INTEGRITY: distribution for %s failed after claim: %v", m.ID, err)
		return err
	}

	log.Printf("[REWARDS] distributed match %s, winner=team%d", m.ID, m.Result.Winner)
	s.updateSquadAggregates(m, rewards, curve)
	return nil
}

// applySquadResult mutates one squad ledger for a settled match. Squads pay
// the same tier curve as players, clamped at zero, with the win gain taken
// from the runtime config.
func applySquadResult(squad *models.Squad, won bool, rewards models.ModeRewards, curve models.LossCurve) {
	r := computePlayerReward(squad.Points, won, rewards, curve)
	squad.Points = r.NewPoints
	if won {
		squad.Wins++
	} else {
		squad.Losses++
	}
}

// updateSquadAggregates applies the win/loss to both squad ledgers. Runs
// outside the player transaction; a failure here is retried by the audit
// sweep, never blocks the player payout.
func (s *RewardService) updateSquadAggregates(m *models.Match, rewards models.ModeRewards, curve models.LossCurve) {
	for team := 1; team <= 2; team++ {
		squadID := m.SquadFor(team)
		if squadID == "" {
			continue
		}

		var squad models.Squad
		if err := s.DB.First(&squad, "id = ?", squadID).Error; err != nil {
			log.Printf("[REWARDS] squad %s missing for match %s: %v", squadID, m.ID, err)
			continue
		}

		applySquadResult(&squad, team == m.Result.Winner, rewards, curve)
		if err := s.DB.Save(&squad).Error; err != nil {
			log.Printf("[REWARDS] DB error updating squad %s: %v", squadID, err)
		}
	}
}

// AuditDistribution cross-checks the flag against the per-player audit for a
// match and reports any drift.
func (s *RewardService) AuditDistribution(c *fiber.Ctx) error {
	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}

	paid := 0
	fillers := 0
	for _, p := range m.Players {
		if p.IsFiller {
			fillers++
			continue
		}
		if p.Rewards != nil {
			paid++
		}
	}
	expected := len(m.Players) - fillers

	consistent := (m.RewardsDistributed && paid == expected) ||
		(!m.RewardsDistributed && paid == 0)
	if !consistent {
		log.Printf("[REWARDS] INTEGRITY: match %s flag=%v paid=%d expected=%d", m.ID, m.RewardsDistributed, paid, expected)
	}

	return c.JSON(fiber.Map{
		"match_id":            m.ID,
		"rewards_distributed": m.RewardsDistributed,
		"players_paid":        paid,
		"players_expected":    expected,
		"consistent":          consistent,
	})
}

// SweepStuckDistributions retries completed matches that never got paid,
// e.g. after a crash between completion and distribution.
func (s *RewardService) SweepStuckDistributions() {
	cutoff := time.Now().Add(-2 * time.Minute)

	var matches []models.Match
	err := s.DB.
		Where("status = ? AND rewards_distributed = ? AND completed_at < ?", models.MatchCompleted, false, cutoff).
		Limit(20).
		Find(&matches).Error
	if err != nil {
		log.Printf("[REWARDS] sweep query error: %v", err)
		return
	}

	for i := range matches {
		m := &matches[i]
		if err := s.DistributeMatchRewards(m); err != nil {
			log.Printf("[REWARDS] retry for %s failed: %v", m.ID, err)
		}
	}
}
