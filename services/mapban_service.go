package services

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"ladder-match-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MapBanService runs the turn-based elimination phase and the survivor
// selection that follows it: a random draw or an open roster vote depending
// on the mode.
type MapBanService struct {
	DB        *gorm.DB
	Broadcast *Broadcaster
}

func NewMapBanService(db *gorm.DB, bc *Broadcaster) *MapBanService {
	return &MapBanService{DB: db, Broadcast: bc}
}

// BanMap records the acting referent's ban and, when both are in, resolves
// the selection for random formats or opens the vote.
func (s *MapBanService) BanMap(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		MapName string `json:"map_name"`
	}
	if err := c.BodyParser(&req); err != nil || req.MapName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "map_name is required"})
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
	if err := applyBan(m, team, req.MapName, now); err != nil {
		return RejectJSON(c, err)
	}

	if err := saveMatch(s.DB, m); err != nil {
		if err == ErrConflict {
			return RejectJSON(c, ErrConflict)
		}
		log.Printf("[MAPBAN] DB error saving ban for %s: %v", m.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	s.Broadcast.Publish(m.ID, "map_ban", m.MapBans)
	if len(m.SelectedMaps) > 0 {
		s.Broadcast.Publish(m.ID, "maps_selected", m.SelectedMaps)
	}
	return c.JSON(m)
}

// applyBan is the pure ban transition: phase and turn checks, pool
// membership, one ban per side and no double-banning a map.
func applyBan(m *models.Match, team int, mapName string, now time.Time) error {
	if m.Status != models.MatchPending || m.Roster.IsActive {
		return ErrInvalidTransition
	}
	if m.MapBans.Complete() || len(m.SelectedMaps) > 0 {
		return ErrInvalidTransition
	}
	if m.MapBans.CurrentTurn != team {
		return ErrNotYourTurn
	}
	if m.MapBans.BannedFor(team) != "" {
		return ErrAlreadyBanned
	}
	if !m.MapInPool(mapName) {
		return ErrMapNotInPool
	}
	if m.MapBans.BannedFor(models.OpponentTeam(team)) == mapName {
		return ErrMapAlreadyBanned
	}

	if team == 1 {
		m.MapBans.Team1Banned = mapName
		m.MapBans.Team1BannedAt = &now
	} else {
		m.MapBans.Team2Banned = mapName
		m.MapBans.Team2BannedAt = &now
	}
	m.PushSystemMessage(fmt.Sprintf("Team %d banned %s.", team, mapName), now)

	if m.MapBans.Complete() {
		m.MapBans.TurnStartedAt = nil
		finalizeSelection(m, now)
	} else {
		m.MapBans.CurrentTurn = models.OpponentTeam(team)
		m.MapBans.TurnStartedAt = &now
	}
	return nil
}

// finalizeSelection resolves the survivor pool once both bans are in. Random
// formats draw immediately and arm the ready phase; the vote format opens the
// ballot instead.
func finalizeSelection(m *models.Match, now time.Time) {
	policy, _ := models.PolicyForMode(m.Mode)
	survivors := m.SurvivorMaps()

	if policy.MapFormat == models.MapFormatVote {
		m.PushSystemMessage("Bans locked. Vote for the map!", now)
		return
	}

	count := policy.MapCount
	if count > len(survivors) {
		count = len(survivors)
	}
	rand.Shuffle(len(survivors), func(i, j int) {
		survivors[i], survivors[j] = survivors[j], survivors[i]
	})
	for i := 0; i < count; i++ {
		m.SelectedMaps = append(m.SelectedMaps, models.SelectedMap{
			Name:  survivors[i].Name,
			Image: survivors[i].Image,
			Order: i + 1,
		})
	}
	armReadyPhase(m, now)
}

// armReadyPhase moves the match to ready with its acknowledgement deadline.
func armReadyPhase(m *models.Match, now time.Time) {
	policy, _ := models.PolicyForMode(m.Mode)
	m.Status = models.MatchReady
	deadline := now.Add(policy.ReadyTimeout)
	m.ReadyDeadline = &deadline

	names := make([]string, len(m.SelectedMaps))
	for i, sel := range m.SelectedMaps {
		names[i] = sel.Name
	}
	m.PushSystemMessage(fmt.Sprintf("Maps locked: %v. Waiting for both teams to ready up.", names), now)
}

// SubmitMapVote records one roster member's vote among the survivors. The
// ballot closes when everyone voted or at the vote deadline.
func (s *MapBanService) SubmitMapVote(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		MapName string `json:"map_name"`
	}
	if err := c.BodyParser(&req); err != nil || req.MapName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "map_name is required"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}

	now := time.Now()
	if err := applyVote(m, userID, req.MapName, now); err != nil {
		return RejectJSON(c, err)
	}

	voters := 0
	for _, p := range m.Players {
		if !p.IsFiller {
			voters++
		}
	}
	if len(m.MapVotes) >= voters {
		closeVote(m, now)
	}

	if err := saveMatch(s.DB, m); err != nil {
		if err == ErrConflict {
			return RejectJSON(c, ErrConflict)
		}
		log.Printf("[MAPBAN] DB error saving vote for %s: %v", m.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	s.Broadcast.Publish(m.ID, "map_vote", fiber.Map{"votes": len(m.MapVotes), "players": len(m.Players)})
	if len(m.SelectedMaps) > 0 {
		s.Broadcast.Publish(m.ID, "maps_selected", m.SelectedMaps)
	}
	return c.JSON(m)
}

func applyVote(m *models.Match, userID, mapName string, now time.Time) error {
	policy, _ := models.PolicyForMode(m.Mode)
	if policy.MapFormat != models.MapFormatVote {
		return ErrInvalidTransition
	}
	if m.Status != models.MatchPending || !m.MapBans.Complete() || len(m.SelectedMaps) > 0 {
		return ErrInvalidTransition
	}
	if m.PlayerTeam(userID) == 0 {
		return ErrNotSquadMember
	}
	for _, v := range m.MapVotes {
		if v.UserID == userID {
			return ErrAlreadyVoted
		}
	}

	survivor := false
	for _, opt := range m.SurvivorMaps() {
		if opt.Name == mapName {
			survivor = true
			break
		}
	}
	if !survivor {
		if m.MapInPool(mapName) {
			return ErrMapAlreadyBanned
		}
		return ErrMapNotInPool
	}

	m.MapVotes = append(m.MapVotes, models.MapVote{UserID: userID, MapName: mapName, VotedAt: now})
	return nil
}

// closeVote tallies the ballot. Ties break toward the map whose first vote
// was cast earliest; an empty ballot falls back to a random draw.
func closeVote(m *models.Match, now time.Time) {
	survivors := m.SurvivorMaps()

	if len(m.MapVotes) == 0 {
		pick := survivors[rand.Intn(len(survivors))]
		m.SelectedMaps = []models.SelectedMap{{Name: pick.Name, Image: pick.Image, Order: 1}}
		m.PushSystemMessage("No votes cast, map drawn at random.", now)
		armReadyPhase(m, now)
		return
	}

	counts := make(map[string]int)
	firstVote := make(map[string]time.Time)
	for _, v := range m.MapVotes {
		counts[v.MapName]++
		if _, ok := firstVote[v.MapName]; !ok {
			firstVote[v.MapName] = v.VotedAt
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return firstVote[names[i]].Before(firstVote[names[j]])
	})

	winner := names[0]
	for _, opt := range survivors {
		if opt.Name == winner {
			m.SelectedMaps = []models.SelectedMap{{Name: opt.Name, Image: opt.Image, Order: 1}}
			break
		}
	}
	armReadyPhase(m, now)
}

// SweepTurnDeadlines advances lapsed ban turns with a random legal ban and
// closes overdue votes with the partial tally.
func (s *MapBanService) SweepTurnDeadlines() {
	now := time.Now()

	var matches []models.Match
	err := s.DB.Where("status = ?", models.MatchPending).Find(&matches).Error
	if err != nil {
		log.Printf("[MAPBAN] sweep query error: %v", err)
		return
	}

	for i := range matches {
		m := &matches[i]
		if m.Roster.IsActive || len(m.SelectedMaps) > 0 {
			continue
		}
		policy, ok := models.PolicyForMode(m.Mode)
		if !ok {
			continue
		}

		changed := false
		switch {
		case !m.MapBans.Complete():
			if m.MapBans.TurnStartedAt == nil || now.Sub(*m.MapBans.TurnStartedAt) < policy.BanTurnDeadline {
				continue
			}
			team := m.MapBans.CurrentTurn
			legal := s.legalBans(m, team)
			if len(legal) == 0 {
				continue
			}
			pick := legal[rand.Intn(len(legal))]
			if err := applyBan(m, team, pick, now); err != nil {
				log.Printf("[MAPBAN] auto-ban for %s failed: %v", m.ID, err)
				continue
			}
			log.Printf("[MAPBAN] auto-banned %s for team %d in %s", pick, team, m.ID)
			changed = true

		case policy.MapFormat == models.MapFormatVote:
			// Ballot open; close it once the vote window since the last ban
			// has passed.
			var closedAt *time.Time
			if m.MapBans.Team1BannedAt != nil && m.MapBans.Team2BannedAt != nil {
				later := m.MapBans.Team1BannedAt
				if m.MapBans.Team2BannedAt.After(*later) {
					later = m.MapBans.Team2BannedAt
				}
				closedAt = later
			}
			if closedAt == nil || now.Sub(*closedAt) < policy.VoteDeadline {
				continue
			}
			closeVote(m, now)
			log.Printf("[MAPBAN] vote closed on deadline for %s", m.ID)
			changed = true
		}

		if !changed {
			continue
		}
		if err := saveMatch(s.DB, m); err != nil {
			continue
		}
		s.Broadcast.Publish(m.ID, "map_ban", m.MapBans)
		if len(m.SelectedMaps) > 0 {
			s.Broadcast.Publish(m.ID, "maps_selected", m.SelectedMaps)
		}
	}
}

// legalBans lists the maps a side could still legally ban.
func (s *MapBanService) legalBans(m *models.Match, team int) []string {
	if m.MapBans.BannedFor(team) != "" {
		return nil
	}
	opp := m.MapBans.BannedFor(models.OpponentTeam(team))

	var out []string
	for _, opt := range m.MapPool {
		if opt.Name == opp {
			continue
		}
		out = append(out, opt.Name)
	}
	return out
}
