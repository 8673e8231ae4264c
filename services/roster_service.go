package services

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"ladder-match-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// RosterService runs the alternating pick phase. Referents take turns adding
// squad members to their side until both rosters are full, then the map ban
// phase opens.
type RosterService struct {
	DB        *gorm.DB
	Broadcast *Broadcaster
}

func NewRosterService(db *gorm.DB, bc *Broadcaster) *RosterService {
	return &RosterService{DB: db, Broadcast: bc}
}

// PickPlayer adds one squad member to the picking referent's roster.
func (s *RosterService) PickPlayer(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	team := m.ReferentTeam(userID)
	if team == 0 {
		return RejectJSON(c, ErrNotReferent)
	}

	target, err := s.eligiblePick(m, team, req.UserID)
	if err != nil {
		return RejectJSON(c, err)
	}

	now := time.Now()
	if err := applyPick(m, team, target, now); err != nil {
		return RejectJSON(c, err)
	}

	if err := saveMatch(s.DB, m); err != nil {
		if err == ErrConflict {
			return RejectJSON(c, ErrConflict)
		}
		log.Printf("[ROSTER] DB error saving pick for %s: %v", m.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	s.Broadcast.Publish(m.ID, "roster_updated", m.Roster)
	if !m.Roster.IsActive {
		s.Broadcast.Publish(m.ID, "map_ban_started", m.MapBans)
	}
	return c.JSON(m)
}

// applyPick is the pure draft transition: turn check, slot budget, roster
// append, turn advance and completion.
func applyPick(m *models.Match, team int, target *models.LadderUser, now time.Time) error {
	if m.Status != models.MatchPending || !m.Roster.IsActive {
		return ErrInvalidTransition
	}
	if m.Roster.CurrentTurn != team {
		return ErrNotYourTurn
	}
	// Referents are pre-seated, so each side drafts teamSize-1 players.
	if m.TeamCount(team) >= m.TeamSize {
		return ErrInvalidTransition
	}
	if m.HasPlayer(target.ExternalUserID) {
		return ErrAlreadyPicked
	}

	m.Players = append(m.Players, playerFromUser(target, team, m.SquadFor(team), false))
	m.Roster.PickOrder = append(m.Roster.PickOrder, models.RosterPick{
		Team:     team,
		UserID:   target.ExternalUserID,
		Username: target.Username,
		PickedAt: now,
	})
	m.Roster.TotalPicks++
	m.PushSystemMessage(fmt.Sprintf("Team %d picked %s.", team, target.Username), now)

	advanceDraftTurn(m, now)
	return nil
}

// advanceDraftTurn hands the turn to the next side that still has open slots,
// completing the draft when both rosters are full.
func advanceDraftTurn(m *models.Match, now time.Time) {
	opp := models.OpponentTeam(m.Roster.CurrentTurn)

	switch {
	case m.TeamCount(opp) < m.TeamSize:
		m.Roster.CurrentTurn = opp
	case m.TeamCount(m.Roster.CurrentTurn) < m.TeamSize:
		// Opponent is full, same side keeps picking.
	default:
		completeDraft(m, now)
		return
	}
	m.Roster.TurnStartedAt = &now
}

func completeDraft(m *models.Match, now time.Time) {
	m.Roster.IsActive = false
	m.Roster.CompletedAt = &now
	m.Roster.TurnStartedAt = nil

	// Short sides play anyway; empty slots become filler entries that the
	// reward engine skips.
	for team := 1; team <= 2; team++ {
		for i := m.TeamCount(team); i < m.TeamSize; i++ {
			m.Players = append(m.Players, models.MatchPlayer{
				UserID:   fmt.Sprintf("filler-%s-%d-%d", m.ID, team, i),
				Username: "Filler",
				Team:     team,
				SquadID:  m.SquadFor(team),
				IsFiller: true,
			})
		}
	}

	m.MapBans.TurnStartedAt = &now
	m.PushSystemMessage(fmt.Sprintf("Rosters locked. Team %d bans first.", m.MapBans.CurrentTurn), now)
}

// eligiblePick validates a draft target: own squad, not already rostered, no
// active ban and, when the mode requires it, a fresh connection signal.
func (s *RosterService) eligiblePick(m *models.Match, team int, externalID string) (*models.LadderUser, error) {
	var squad models.Squad
	if err := s.DB.First(&squad, "id = ?", m.SquadFor(team)).Error; err != nil {
		return nil, ErrNotSquadMember
	}
	if !squad.HasMember(externalID) {
		return nil, ErrNotSquadMember
	}

	var u models.LadderUser
	if err := s.DB.First(&u, "external_user_id = ?", externalID).Error; err != nil {
		return nil, ErrNotSquadMember
	}

	now := time.Now()
	policy, _ := models.PolicyForMode(m.Mode)
	if u.ActiveBan(now) {
		return nil, ErrPlayerBanned
	}
	if policy.RequireConnectivity && !u.ConnectivityPresent(now) {
		return nil, ErrPlayerOffline
	}
	return &u, nil
}

// SweepTurnDeadlines auto-picks for sides that let their draft turn lapse.
// A side with no eligible member left forfeits the turn but the draft keeps
// going for the other side.
func (s *RosterService) SweepTurnDeadlines() {
	now := time.Now()

	var matches []models.Match
	err := s.DB.Where("status = ?", models.MatchPending).Find(&matches).Error
	if err != nil {
		log.Printf("[ROSTER] sweep query error: %v", err)
		return
	}

	for i := range matches {
		m := &matches[i]
		if !m.Roster.IsActive || m.Roster.TurnStartedAt == nil {
			continue
		}
		policy, ok := models.PolicyForMode(m.Mode)
		if !ok || now.Sub(*m.Roster.TurnStartedAt) < policy.PickTurnDeadline {
			continue
		}

		team := m.Roster.CurrentTurn
		candidates := s.eligibleCandidates(m, team, policy, now)
		if len(candidates) == 0 {
			// Nobody left to draft on this side; pass the turn.
			m.PushSystemMessage(fmt.Sprintf("Team %d has no eligible players left, turn skipped.", team), now)
			opp := models.OpponentTeam(team)
			oppDone := m.TeamCount(opp) >= m.TeamSize ||
				len(s.eligibleCandidates(m, opp, policy, now)) == 0
			if oppDone {
				// Neither side can grow, lock what we have.
				completeDraft(m, now)
			} else {
				advanceDraftTurn(m, now)
			}
		} else {
			pick := candidates[rand.Intn(len(candidates))]
			if err := applyPick(m, team, &pick, now); err != nil {
				log.Printf("[ROSTER] auto-pick for %s failed: %v", m.ID, err)
				continue
			}
			log.Printf("[ROSTER] auto-picked %s for team %d in %s", pick.Username, team, m.ID)
		}

		if err := saveMatch(s.DB, m); err != nil {
			continue
		}
		s.Broadcast.Publish(m.ID, "roster_updated", m.Roster)
		if !m.Roster.IsActive {
			s.Broadcast.Publish(m.ID, "map_ban_started", m.MapBans)
		}
	}
}

// eligibleCandidates lists the squad members a side could still draft.
func (s *RosterService) eligibleCandidates(m *models.Match, team int, policy models.GameModePolicy, now time.Time) []models.LadderUser {
	var squad models.Squad
	if err := s.DB.First(&squad, "id = ?", m.SquadFor(team)).Error; err != nil {
		return nil
	}

	var out []models.LadderUser
	for _, member := range squad.Members {
		if m.HasPlayer(member.UserID) {
			continue
		}
		var u models.LadderUser
		if err := s.DB.First(&u, "external_user_id = ?", member.UserID).Error; err != nil {
			continue
		}
		if u.ActiveBan(now) {
			continue
		}
		if policy.RequireConnectivity && !u.ConnectivityPresent(now) {
			continue
		}
		out = append(out, u)
	}
	return out
}
