package services

import (
	"log"
	"time"

	"ladder-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ShadowBanService watches the live-connection signal of players in active
// matches. A missing signal opens a tracking with a grace period; the delayed
// check bans anyone still dark, unless the match ended or the signal came
// back first.
type ShadowBanService struct {
	DB        *gorm.DB
	Broadcast *Broadcaster
}

func NewShadowBanService(db *gorm.DB, bc *Broadcaster) *ShadowBanService {
	return &ShadowBanService{DB: db, Broadcast: bc}
}

// TrackMatchStart opens trackings for every real player without a fresh
// signal when the match goes live.
func (s *ShadowBanService) TrackMatchStart(m *models.Match, now time.Time) {
	for _, p := range m.Players {
		if p.IsFiller {
			continue
		}

		var u models.LadderUser
		if err := s.DB.First(&u, "external_user_id = ?", p.UserID).Error; err != nil {
			continue
		}
		if u.ConnectivityPresent(now) {
			continue
		}

		if err := s.openTracking(m, p, now); err != nil {
			if err != ErrTrackingExists {
				log.Printf("[SHADOWBAN] failed to open tracking for %s in %s: %v", p.UserID, m.ID, err)
			}
		}
	}
}

// openTracking creates the (match, player) record. The unique index makes a
// second detection for the same pair a no-op.
func (s *ShadowBanService) openTracking(m *models.Match, p models.MatchPlayer, now time.Time) error {
	var existing int64
	s.DB.Model(&models.ConnectivityTracking{}).
		Where("match_id = ? AND user_id = ?", m.ID, p.UserID).
		Count(&existing)
	if existing > 0 {
		return ErrTrackingExists
	}

	t := models.ConnectivityTracking{
		ID:         uuid.NewString(),
		UserID:     p.UserID,
		Username:   p.Username,
		MatchID:    m.ID,
		Mode:       m.Mode,
		DetectedAt: now,
		CheckAt:    now.Add(models.ShadowBanGracePeriod),
		Status:     models.TrackingPending,
	}
	if err := s.DB.Create(&t).Error; err != nil {
		// Unique index lost a race with a concurrent detection.
		return ErrTrackingExists
	}

	log.Printf("[SHADOWBAN] tracking opened for %s in match %s, check at %s", p.UserID, m.ID, t.CheckAt.Format(time.RFC3339))
	return nil
}

// ScanActiveMatches re-checks every in-progress connectivity-gated match and
// opens trackings for players whose signal dropped mid-game.
func (s *ShadowBanService) ScanActiveMatches() {
	now := time.Now()

	var matches []models.Match
	err := s.DB.Where("status = ?", models.MatchInProgress).Find(&matches).Error
	if err != nil {
		log.Printf("[SHADOWBAN] scan query error: %v", err)
		return
	}

	for i := range matches {
		m := &matches[i]
		policy, ok := models.PolicyForMode(m.Mode)
		if !ok || !policy.RequireConnectivity {
			continue
		}
		s.TrackMatchStart(m, now)
	}
}

// ProcessDue resolves every pending tracking whose check time has arrived.
func (s *ShadowBanService) ProcessDue() {
	now := time.Now()

	var due []models.ConnectivityTracking
	err := s.DB.
		Where("status = ? AND check_at <= ?", models.TrackingPending, now).
		Limit(100).
		Find(&due).Error
	if err != nil {
		log.Printf("[SHADOWBAN] due query error: %v", err)
		return
	}

	for i := range due {
		t := &due[i]

		matchActive := false
		var m models.Match
		if err := s.DB.First(&m, "id = ?", t.MatchID).Error; err == nil {
			matchActive = !m.Status.IsTerminal()
		}

		var u models.LadderUser
		userFound := s.DB.First(&u, "external_user_id = ?", t.UserID).Error == nil
		connected := userFound && u.ConnectivityPresent(now)

		if deferTrackingResolution(matchActive, userFound, connected) {
			log.Printf("[SHADOWBAN] user %s not loadable for tracking %s, left pending for retry", t.UserID, t.ID)
			continue
		}

		status := t.Evaluate(connected, matchActive, now)
		if err := s.DB.Save(t).Error; err != nil {
			log.Printf("[SHADOWBAN] DB error resolving tracking %s: %v", t.ID, err)
			continue
		}

		if status == models.TrackingBanned {
			s.applyBan(&u, t, now)
			s.Broadcast.Publish(t.MatchID, "player_banned", fiber.Map{"user_id": t.UserID})
		}
		log.Printf("[SHADOWBAN] tracking %s resolved: %s (%s)", t.ID, status, t.ResolutionReason)
	}
}

// deferTrackingResolution reports whether a due check has to wait: the
// outcome would be a ban, but the user row cannot be loaded, so the ban
// could not actually land. The tracking stays pending for the next sweep.
func deferTrackingResolution(matchActive, userFound, connected bool) bool {
	return matchActive && !connected && !userFound
}

func (s *ShadowBanService) applyBan(u *models.LadderUser, t *models.ConnectivityTracking, now time.Time) {
	if u.ID == "" {
		return
	}
	u.IsBanned = true
	u.BanReason = t.BanReason
	u.BannedAt = &now
	u.BanExpiresAt = t.BanExpiresAt
	if err := s.DB.Save(u).Error; err != nil {
		log.Printf("[SHADOWBAN] DB error banning user %s: %v", u.ExternalUserID, err)
		return
	}
	log.Printf("[SHADOWBAN] banned %s until %s", u.ExternalUserID, t.BanExpiresAt.Format(time.RFC3339))
}

// ResolveForMatch expires all pending trackings when a match reaches a
// terminal state. A finished match can no longer incriminate anyone.
func (s *ShadowBanService) ResolveForMatch(matchID string) {
	now := time.Now()

	res := s.DB.Model(&models.ConnectivityTracking{}).
		Where("match_id = ? AND status = ?", matchID, models.TrackingPending).
		Updates(map[string]interface{}{
			"status":            models.TrackingExpired,
			"resolution_reason": models.ResolutionMatchEnded,
			"resolved_at":       now,
		})
	if res.Error != nil {
		log.Printf("[SHADOWBAN] DB error expiring trackings for %s: %v", matchID, res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("[SHADOWBAN] expired %d trackings for match %s", res.RowsAffected, matchID)
	}
}

// SweepExpiredBans lifts account bans whose window has passed.
func (s *ShadowBanService) SweepExpiredBans() {
	now := time.Now()

	res := s.DB.Model(&models.LadderUser{}).
		Where("is_banned = ? AND ban_expires_at IS NOT NULL AND ban_expires_at <= ?", true, now).
		Updates(map[string]interface{}{"is_banned": false, "ban_reason": ""})
	if res.Error != nil {
		log.Printf("[SHADOWBAN] ban sweep error: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("[SHADOWBAN] lifted %d expired bans", res.RowsAffected)
	}
}

// ListTrackings returns trackings filtered by status for review.
func (s *ShadowBanService) ListTrackings(c *fiber.Ctx) error {
	q := s.DB.Model(&models.ConnectivityTracking{}).Order("detected_at DESC").Limit(200)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if matchID := c.Query("match_id"); matchID != "" {
		q = q.Where("match_id = ?", matchID)
	}

	var trackings []models.ConnectivityTracking
	if err := q.Find(&trackings).Error; err != nil {
		log.Printf("[SHADOWBAN] DB error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(trackings)
}

// ManualClear lets an authority resolve a pending tracking before the check
// fires, e.g. a verified client crash.
func (s *ShadowBanService) ManualClear(c *fiber.Ctx) error {
	resolvedBy := c.Locals("user_id").(string)

	var t models.ConnectivityTracking
	if err := s.DB.First(&t, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "tracking not found"})
	}

	now := time.Now()
	if !t.Clear(resolvedBy, now) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "tracking is not pending"})
	}
	if err := s.DB.Save(&t).Error; err != nil {
		log.Printf("[SHADOWBAN] DB error clearing tracking %s: %v", t.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	log.Printf("[SHADOWBAN] tracking %s cleared manually by %s", t.ID, resolvedBy)
	return c.JSON(t)
}
