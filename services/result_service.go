package services

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"ladder-match-system/models"
	"ladder-match-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResultService reconciles the two independent result reports, handles
// forfeits and runs the dispute flow through arbitration.
type ResultService struct {
	DB        *gorm.DB
	Broadcast *Broadcaster
	Matches   *MatchService
}

func NewResultService(db *gorm.DB, bc *Broadcaster, matches *MatchService) *ResultService {
	return &ResultService{DB: db, Broadcast: bc, Matches: matches}
}

// SubmitReport records one referent's result. Matching reports confirm the
// outcome and complete the match; contradicting reports open a dispute.
func (s *ResultService) SubmitReport(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Winner     int `json:"winner"`
		Team1Score int `json:"team1_score"`
		Team2Score int `json:"team2_score"`
	}
	if err := c.BodyParser(&req); err != nil || (req.Winner != 1 && req.Winner != 2) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "winner must be 1 or 2"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	team := m.ReferentTeam(userID)
	if team == 0 {
		return RejectJSON(c, ErrNotReferent)
	}

	now := time.Now()
	outcome, err := applyReport(m, team, req.Winner, now)
	if err != nil {
		return RejectJSON(c, err)
	}
	if req.Team1Score != 0 || req.Team2Score != 0 {
		m.Result.Team1Score = req.Team1Score
		m.Result.Team2Score = req.Team2Score
	}

	switch outcome {
	case reportConfirmed:
		if err := s.Matches.completeMatch(m, req.Winner, now); err != nil {
			return s.rejectSave(c, m, "report", err)
		}

	case reportDisputed:
		if err := saveMatch(s.DB, m); err != nil {
			return s.rejectSave(c, m, "report", err)
		}
		log.Printf("[RESULT] %s disputed on contradicting reports", m.ID)
		s.Broadcast.Publish(m.ID, "match_disputed", m.Dispute)

	default:
		// First report in; wait for the opponent.
		if err := saveMatch(s.DB, m); err != nil {
			return s.rejectSave(c, m, "report", err)
		}
		s.Broadcast.Publish(m.ID, "result_reported", fiber.Map{"team": team})
	}

	return c.JSON(m)
}

type reportOutcome string

const (
	reportPending   reportOutcome = "pending"
	reportConfirmed reportOutcome = "confirmed"
	reportDisputed  reportOutcome = "disputed"
)

// applyReport is the pure reconciliation transition. The first report waits,
// a matching second report confirms, a contradicting one disputes.
func applyReport(m *models.Match, team, winner int, now time.Time) (reportOutcome, error) {
	if m.Status != models.MatchInProgress {
		return "", ErrInvalidTransition
	}
	if m.Result.ReportFor(team) != nil {
		return "", ErrAlreadyReported
	}

	report := &models.TeamReport{Winner: winner, ReportedAt: now}
	if team == 1 {
		m.Result.Team1Report = report
	} else {
		m.Result.Team2Report = report
	}
	m.PushSystemMessage(fmt.Sprintf("Team %d reported the result.", team), now)

	other := m.Result.ReportFor(models.OpponentTeam(team))
	switch {
	case other == nil:
		return reportPending, nil
	case other.Winner == winner:
		return reportConfirmed, nil
	default:
		m.Status = models.MatchDisputed
		m.Dispute.IsActive = true
		m.Dispute.ReportedAt = &now
		m.Dispute.Reason = "contradicting result reports"
		m.PushSystemMessage("Reports contradict each other. Match is under dispute.", now)
		return reportDisputed, nil
	}
}

// Forfeit concedes the match for the caller's side and confirms the opponent
// as winner immediately.
func (s *ResultService) Forfeit(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	team := m.ReferentTeam(userID)
	if team == 0 {
		return RejectJSON(c, ErrNotReferent)
	}
	if m.Status != models.MatchInProgress && m.Status != models.MatchReady {
		return RejectJSON(c, ErrInvalidTransition)
	}

	now := time.Now()
	m.Result.IsForfeit = true
	m.Result.ForfeitTeam = team
	m.Result.ForfeitReason = req.Reason
	m.PushSystemMessage(fmt.Sprintf("Team %d forfeited.", team), now)

	if err := s.Matches.completeMatch(m, models.OpponentTeam(team), now); err != nil {
		return s.rejectSave(c, m, "forfeit", err)
	}
	return c.JSON(m)
}

// OpenDispute raises a formal dispute with an optional evidence upload. A
// dispute can be opened even when reports happen to agree, as long as the
// match is not terminal.
func (s *ResultService) OpenDispute(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	reason := strings.TrimSpace(c.FormValue("reason"))
	if reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reason is required"})
	}
	if len(reason) > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reason too long (max 500 characters)"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	team := m.PlayerTeam(userID)
	if team == 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only match participants can open a dispute"})
	}
	if m.Status.IsTerminal() {
		return RejectJSON(c, ErrInvalidTransition)
	}

	now := time.Now()
	if !m.Dispute.IsActive {
		m.Dispute.IsActive = true
		m.Dispute.ReportedBy = userID
		m.Dispute.ReportedByTeam = team
		m.Dispute.ReportedAt = &now
		m.Dispute.Reason = reason
	}
	m.Status = models.MatchDisputed

	if file, err := c.FormFile("evidence"); err == nil {
		key := fmt.Sprintf("evidence/%s/%s%s", m.ID, uuid.NewString(), filepath.Ext(file.Filename))
		url, err := utils.UploadEvidence(file, key)
		if err != nil {
			log.Printf("[RESULT] evidence upload for %s failed: %v", m.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload evidence"})
		}
		m.Dispute.Evidence = append(m.Dispute.Evidence, models.DisputeEvidence{
			UploadedBy:  userID,
			Team:        team,
			AssetURL:    url,
			Description: reason,
			UploadedAt:  now,
		})
	}
	m.PushSystemMessage(fmt.Sprintf("Team %d opened a dispute.", team), now)

	if err := saveMatch(s.DB, m); err != nil {
		return s.rejectSave(c, m, "dispute", err)
	}
	log.Printf("[RESULT] %s disputed by %s (team %d)", m.ID, userID, team)
	s.Broadcast.Publish(m.ID, "match_disputed", m.Dispute)
	return c.JSON(m)
}

// AddEvidence appends an evidence attachment to an open dispute.
func (s *ResultService) AddEvidence(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	team := m.PlayerTeam(userID)
	if team == 0 {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only match participants can add evidence"})
	}
	if m.Status != models.MatchDisputed || !m.Dispute.IsActive {
		return RejectJSON(c, ErrInvalidTransition)
	}

	file, err := c.FormFile("evidence")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "evidence file is required"})
	}

	now := time.Now()
	key := fmt.Sprintf("evidence/%s/%s%s", m.ID, uuid.NewString(), filepath.Ext(file.Filename))
	url, err := utils.UploadEvidence(file, key)
	if err != nil {
		log.Printf("[RESULT] evidence upload for %s failed: %v", m.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to upload evidence"})
	}

	m.Dispute.Evidence = append(m.Dispute.Evidence, models.DisputeEvidence{
		UploadedBy:  userID,
		Team:        team,
		AssetURL:    url,
		Description: strings.TrimSpace(c.FormValue("description")),
		UploadedAt:  now,
	})

	if err := saveMatch(s.DB, m); err != nil {
		return s.rejectSave(c, m, "evidence", err)
	}
	s.Broadcast.Publish(m.ID, "dispute_evidence", fiber.Map{"team": team})
	return c.JSON(m.Dispute)
}

// ResolveDispute lets an arbitrator settle a disputed match with a final
// winner, or void it entirely.
func (s *ResultService) ResolveDispute(c *fiber.Ctx) error {
	arbitratorID := c.Locals("user_id").(string)

	var req struct {
		Winner     int    `json:"winner"` // 0 voids the match
		Resolution string `json:"resolution"`
	}
	if err := c.BodyParser(&req); err != nil || req.Winner < 0 || req.Winner > 2 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "winner must be 0, 1 or 2"})
	}
	if strings.TrimSpace(req.Resolution) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "resolution note is required"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	if m.Status != models.MatchDisputed {
		return RejectJSON(c, ErrInvalidTransition)
	}

	now := time.Now()
	m.Dispute.IsActive = false
	m.Dispute.ResolvedBy = arbitratorID
	m.Dispute.ResolvedAt = &now
	m.Dispute.Resolution = req.Resolution
	m.Dispute.ResolvedWinner = req.Winner

	if req.Winner == 0 {
		m.Status = models.MatchCancelled
		m.CompletedAt = &now
		m.PushSystemMessage("Dispute resolved: match voided.", now)
		if err := saveMatch(s.DB, m); err != nil {
			return s.rejectSave(c, m, "resolve", err)
		}
		log.Printf("[RESULT] %s voided by arbitrator %s", m.ID, arbitratorID)
		s.Broadcast.Publish(m.ID, "match_cancelled", m)
		if s.Matches.Tracking != nil {
			s.Matches.Tracking.ResolveForMatch(m.ID)
		}
		return c.JSON(m)
	}

	m.PushSystemMessage(fmt.Sprintf("Dispute resolved in favor of team %d.", req.Winner), now)
	if err := s.Matches.completeMatch(m, req.Winner, now); err != nil {
		return s.rejectSave(c, m, "resolve", err)
	}
	log.Printf("[RESULT] %s dispute resolved by %s, winner=team%d", m.ID, arbitratorID, req.Winner)
	return c.JSON(m)
}

// SweepReportDeadlines escalates matches where only one side reported before
// the deadline. The silent side gets flagged, arbitration decides.
func (s *ResultService) SweepReportDeadlines() {
	now := time.Now()

	var matches []models.Match
	err := s.DB.
		Where("status = ? AND report_deadline IS NOT NULL AND report_deadline < ?", models.MatchInProgress, now).
		Find(&matches).Error
	if err != nil {
		log.Printf("[RESULT] sweep query error: %v", err)
		return
	}

	for i := range matches {
		m := &matches[i]

		if m.Result.Team1Report == nil && m.Result.Team2Report == nil {
			// Nobody reported at all; void the match.
			m.Status = models.MatchCancelled
			m.CompletedAt = &now
			m.PushSystemMessage("Match voided: no result reported before the deadline.", now)
			if err := saveMatch(s.DB, m); err != nil {
				continue
			}
			log.Printf("[RESULT] %s voided, no reports before deadline", m.ID)
			s.Broadcast.Publish(m.ID, "match_cancelled", m)
			if s.Matches.Tracking != nil {
				s.Matches.Tracking.ResolveForMatch(m.ID)
			}
			continue
		}

		m.Status = models.MatchDisputed
		m.Dispute.IsActive = true
		m.Dispute.ReportedAt = &now
		m.Dispute.Reason = "report deadline passed with a single report"
		m.PushSystemMessage("Report deadline passed. Match escalated to arbitration.", now)
		if err := saveMatch(s.DB, m); err != nil {
			continue
		}
		log.Printf("[RESULT] %s escalated to arbitration on report deadline", m.ID)
		s.Broadcast.Publish(m.ID, "match_disputed", m.Dispute)
	}
}

func (s *ResultService) rejectSave(c *fiber.Ctx, m *models.Match, op string, err error) error {
	if err == ErrConflict {
		return RejectJSON(c, ErrConflict)
	}
	log.Printf("[RESULT] DB error saving %s (%s): %v", m.ID, op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
}
