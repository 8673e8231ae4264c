package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"ladder-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchService owns the match lifecycle: creation, the ready handshake,
// cancellation votes, chat and the terminal transitions. The ban, draft and
// result phases live in their own services but share saveMatch.
type MatchService struct {
	DB        *gorm.DB
	Broadcast *Broadcaster
	Rewards   *RewardService
	Tracking  *ShadowBanService
}

func NewMatchService(db *gorm.DB, bc *Broadcaster, rewards *RewardService, tracking *ShadowBanService) *MatchService {
	return &MatchService{DB: db, Broadcast: bc, Rewards: rewards, Tracking: tracking}
}

// saveMatch persists a transition with a version guard. Any concurrent writer
// that committed first wins; the loser gets ErrConflict and must re-read.
func saveMatch(db *gorm.DB, m *models.Match) error {
	prev := m.Version
	m.Version = prev + 1

	res := db.Model(&models.Match{}).
		Where("id = ? AND version = ?", m.ID, prev).
		Select("*").
		Omit("id", "created_at").
		Updates(m)
	if res.Error != nil {
		m.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		m.Version = prev
		return ErrConflict
	}
	return nil
}

func loadMatch(db *gorm.DB, id string) (*models.Match, error) {
	var m models.Match
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMatch queues a new match between two squads: snapshots the map pool,
// seats both referents, draws the host and first-ban sides and opens the
// roster draft.
func (s *MatchService) CreateMatch(c *fiber.Ctx) error {
	var req struct {
		Mode          string `json:"mode"`
		Team1SquadID  string `json:"team1_squad_id"`
		Team2SquadID  string `json:"team2_squad_id"`
		Team1Referent string `json:"team1_referent"`
		Team2Referent string `json:"team2_referent"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	policy, ok := models.PolicyForMode(req.Mode)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unknown mode, supported: %s", strings.Join(models.SupportedModes(), ", ")),
		})
	}
	if req.Team1SquadID == "" || req.Team2SquadID == "" || req.Team1SquadID == req.Team2SquadID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "two distinct squads are required"})
	}

	var squad1, squad2 models.Squad
	if err := s.DB.First(&squad1, "id = ?", req.Team1SquadID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "team1 squad not found"})
	}
	if err := s.DB.First(&squad2, "id = ?", req.Team2SquadID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "team2 squad not found"})
	}
	if !squad1.HasMember(req.Team1Referent) || !squad2.HasMember(req.Team2Referent) {
		return RejectJSON(c, ErrNotSquadMember)
	}

	ref1, err := s.eligibleUser(req.Team1Referent, policy)
	if err != nil {
		return RejectJSON(c, err)
	}
	ref2, err := s.eligibleUser(req.Team2Referent, policy)
	if err != nil {
		return RejectJSON(c, err)
	}

	var pool []models.GameMap
	if err := s.DB.Where("is_active = ?", true).Order("name ASC").Find(&pool).Error; err != nil {
		log.Printf("[MATCH] DB error loading map pool: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	if len(pool) < 3 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "map catalog too small for the ban phase"})
	}

	now := time.Now()
	hostTeam := 1 + rand.Intn(2)
	firstBan := 1 + rand.Intn(2)

	m := &models.Match{
		ID:            uuid.NewString(),
		Mode:          policy.Mode,
		TeamSize:      policy.TeamSize,
		Status:        models.MatchPending,
		Team1SquadID:  squad1.ID,
		Team2SquadID:  squad2.ID,
		Team1Referent: ref1.ExternalUserID,
		Team2Referent: ref2.ExternalUserID,
		HostTeam:      hostTeam,
		QueuedAt:      now,
		Players: []models.MatchPlayer{
			playerFromUser(ref1, 1, squad1.ID, true),
			playerFromUser(ref2, 2, squad2.ID, true),
		},
		MapBans: models.MapBans{
			FirstBanTeam: firstBan,
			CurrentTurn:  firstBan,
		},
		Roster: models.RosterDraft{
			IsActive:      true,
			CurrentTurn:   firstBan,
			TurnStartedAt: &now,
			StartedAt:     &now,
		},
	}
	for _, gm := range pool {
		m.MapPool = append(m.MapPool, models.MapOption{Name: gm.Name, Slug: gm.Slug, Image: gm.Image})
	}
	m.PushSystemMessage(fmt.Sprintf("Match created. Team %d hosts, team %d drafts first.", hostTeam, firstBan), now)

	if err := s.DB.Create(m).Error; err != nil {
		log.Printf("[MATCH] DB error creating match: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create match"})
	}

	log.Printf("[MATCH] created %s mode=%s host=team%d firstDraft=team%d", m.ID, m.Mode, hostTeam, firstBan)
	return c.Status(fiber.StatusCreated).JSON(m)
}

func playerFromUser(u *models.LadderUser, team int, squadID string, referent bool) models.MatchPlayer {
	return models.MatchPlayer{
		UserID:     u.ExternalUserID,
		Username:   u.Username,
		Rank:       models.TierForPoints(u.Points),
		Points:     u.Points,
		Team:       team,
		SquadID:    squadID,
		IsReferent: referent,
	}
}

// eligibleUser loads a user and checks ban state plus, when the mode requires
// it, the live-connection signal.
func (s *MatchService) eligibleUser(externalID string, policy models.GameModePolicy) (*models.LadderUser, error) {
	var u models.LadderUser
	if err := s.DB.First(&u, "external_user_id = ?", externalID).Error; err != nil {
		return nil, ErrNotSquadMember
	}
	now := time.Now()
	if u.ActiveBan(now) {
		return nil, ErrPlayerBanned
	}
	if policy.RequireConnectivity && !u.ConnectivityPresent(now) {
		return nil, ErrPlayerOffline
	}
	return &u, nil
}

// GetMatch returns the full aggregate.
func (s *MatchService) GetMatch(c *fiber.Ctx) error {
	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	return c.JSON(m)
}

// ListMatches returns matches filtered by status and/or squad.
func (s *MatchService) ListMatches(c *fiber.Ctx) error {
	q := s.DB.Model(&models.Match{}).Order("queued_at DESC").Limit(100)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if squad := c.Query("squad_id"); squad != "" {
		q = q.Where("team1_squad_id = ? OR team2_squad_id = ?", squad, squad)
	}

	var matches []models.Match
	if err := q.Find(&matches).Error; err != nil {
		log.Printf("[MATCH] DB error listing matches: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(matches)
}

// Acknowledge records a referent's ready signal. The match goes in_progress
// once both sides acked and the host published a game code.
func (s *MatchService) Acknowledge(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	team := m.ReferentTeam(userID)
	if team == 0 {
		return RejectJSON(c, ErrNotReferent)
	}
	if m.Status != models.MatchReady {
		return RejectJSON(c, ErrInvalidTransition)
	}

	now := time.Now()
	if team == 1 {
		m.Team1Acked = true
	} else {
		m.Team2Acked = true
	}
	m.PushSystemMessage(fmt.Sprintf("Team %d is ready.", team), now)
	s.maybeStart(m, now)

	if err := saveMatch(s.DB, m); err != nil {
		return s.rejectSave(c, m.ID, "acknowledge", err)
	}
	s.Broadcast.Publish(m.ID, "match_updated", m)
	return c.JSON(m)
}

// SetGameCode lets the host referent publish the lobby code.
func (s *MatchService) SetGameCode(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		GameCode string `json:"game_code"`
	}
	if err := c.BodyParser(&req); err != nil || req.GameCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game_code is required"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	if m.ReferentTeam(userID) != m.HostTeam {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only the host referent can set the game code"})
	}
	if m.Status != models.MatchReady {
		return RejectJSON(c, ErrInvalidTransition)
	}

	now := time.Now()
	m.GameCode = req.GameCode
	m.PushSystemMessage("Game code published by the host.", now)
	s.maybeStart(m, now)

	if err := saveMatch(s.DB, m); err != nil {
		return s.rejectSave(c, m.ID, "game code", err)
	}
	s.Broadcast.Publish(m.ID, "match_updated", m)
	return c.JSON(m)
}

// maybeStart flips ready -> in_progress, arming the report deadline and
// connectivity tracking. Two triggers: both sides acknowledged, or the host
// published the game code (the code itself is the host's start signal).
func (s *MatchService) maybeStart(m *models.Match, now time.Time) {
	if m.Status != models.MatchReady {
		return
	}
	bothAcked := m.Team1Acked && m.Team2Acked
	if !bothAcked && m.GameCode == "" {
		return
	}
	policy, _ := models.PolicyForMode(m.Mode)

	m.Status = models.MatchInProgress
	m.StartedAt = &now
	deadline := now.Add(policy.ReportDeadline)
	m.ReportDeadline = &deadline
	m.PushSystemMessage("Match started. Good luck!", now)
	log.Printf("[MATCH] %s started", m.ID)

	if policy.RequireConnectivity && s.Tracking != nil {
		s.Tracking.TrackMatchStart(m, now)
	}
}

// CastCancelVote records one side's cancellation vote. Both sides voting yes
// before the match starts cancels it; a cast vote is final.
func (s *MatchService) CastCancelVote(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Vote *bool `json:"vote"`
	}
	if err := c.BodyParser(&req); err != nil || req.Vote == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "vote is required"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	team := m.ReferentTeam(userID)
	if team == 0 {
		return RejectJSON(c, ErrNotReferent)
	}
	if m.Status != models.MatchPending && m.Status != models.MatchReady {
		return RejectJSON(c, ErrInvalidTransition)
	}

	now := time.Now()
	if team == 1 {
		if m.CancelVotes.Team1 != nil {
			return RejectJSON(c, ErrVoteCast)
		}
		m.CancelVotes.Team1 = req.Vote
		m.CancelVotes.Team1VotedAt = &now
	} else {
		if m.CancelVotes.Team2 != nil {
			return RejectJSON(c, ErrVoteCast)
		}
		m.CancelVotes.Team2 = req.Vote
		m.CancelVotes.Team2VotedAt = &now
	}
	m.PushSystemMessage(fmt.Sprintf("Team %d voted on cancellation.", team), now)

	if m.CancelVotes.Team1 != nil && *m.CancelVotes.Team1 &&
		m.CancelVotes.Team2 != nil && *m.CancelVotes.Team2 {
		m.Status = models.MatchCancelled
		m.CompletedAt = &now
		m.PushSystemMessage("Match cancelled by mutual agreement.", now)
		log.Printf("[MATCH] %s cancelled by mutual vote", m.ID)
	}

	if err := saveMatch(s.DB, m); err != nil {
		return s.rejectSave(c, m.ID, "cancel vote", err)
	}
	if m.Status == models.MatchCancelled {
		s.Broadcast.Publish(m.ID, "match_cancelled", m)
		if s.Tracking != nil {
			s.Tracking.ResolveForMatch(m.ID)
		}
	} else {
		s.Broadcast.Publish(m.ID, "match_updated", m)
	}
	return c.JSON(m)
}

// PostChat appends a chat message from a rostered player.
func (s *MatchService) PostChat(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}
	if len(req.Message) > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message too long (max 500 characters)"})
	}

	m, err := loadMatch(s.DB, c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	team := m.PlayerTeam(userID)
	isStaff := hasRole(c, "arbitrator") || hasRole(c, "authority")
	if team == 0 && !isStaff {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only match participants can chat"})
	}
	if m.Status.IsTerminal() {
		return RejectJSON(c, ErrInvalidTransition)
	}

	username := userID
	for _, p := range m.Players {
		if p.UserID == userID {
			username = p.Username
		}
	}

	msg := models.ChatMessage{
		UserID:    userID,
		Username:  username,
		Team:      team,
		Message:   strings.TrimSpace(req.Message),
		IsStaff:   isStaff,
		CreatedAt: time.Now(),
	}
	m.Chat = append(m.Chat, msg)

	if err := saveMatch(s.DB, m); err != nil {
		return s.rejectSave(c, m.ID, "chat", err)
	}
	s.Broadcast.Publish(m.ID, "chat_message", msg)
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// StreamMatchEvents streams lifecycle and chat events for one match over SSE.
func (s *MatchService) StreamMatchEvents(c *fiber.Ctx) error {
	matchID := c.Params("id")
	if _, err := loadMatch(s.DB, matchID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	events, cancel := s.Broadcast.Subscribe(matchID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, _ := json.Marshal(ev)
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
				if err := w.Flush(); err != nil {
					return
				}
			case <-keepalive.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}

// completeMatch applies the shared completion path: terminal status, reward
// distribution, tracking expiry and squad aggregates.
func (s *MatchService) completeMatch(m *models.Match, winner int, now time.Time) error {
	m.Status = models.MatchCompleted
	m.Result.Winner = winner
	m.Result.Confirmed = true
	if m.Result.ConfirmedAt == nil {
		m.Result.ConfirmedAt = &now
	}
	m.CompletedAt = &now
	m.PushSystemMessage(fmt.Sprintf("Match complete. Team %d wins.", winner), now)

	if err := saveMatch(s.DB, m); err != nil {
		return err
	}
	log.Printf("[MATCH] %s completed, winner=team%d", m.ID, winner)

	// Completion is durable at this point; everything below is best effort
	// and recoverable by the sweeps.
	if s.Rewards != nil {
		if err := s.Rewards.DistributeMatchRewards(m); err != nil {
			log.Printf("[MATCH] reward distribution for %s failed: %v", m.ID, err)
		}
	}
	if s.Tracking != nil {
		s.Tracking.ResolveForMatch(m.ID)
	}
	s.Broadcast.Publish(m.ID, "match_completed", m)
	return nil
}

// SweepReadyTimeouts cancels matches stuck in ready past their deadline.
func (s *MatchService) SweepReadyTimeouts() {
	now := time.Now()

	var matches []models.Match
	err := s.DB.
		Where("status = ? AND ready_deadline IS NOT NULL AND ready_deadline < ?", models.MatchReady, now).
		Find(&matches).Error
	if err != nil {
		log.Printf("[MATCH] sweep query error: %v", err)
		return
	}

	for i := range matches {
		m := &matches[i]
		m.Status = models.MatchCancelled
		m.CompletedAt = &now
		m.Result.IsForfeit = true
		m.Result.ForfeitReason = "ready deadline passed"
		// If exactly one side acked, the silent side carries the forfeit.
		switch {
		case m.Team1Acked && !m.Team2Acked:
			m.Result.ForfeitTeam = 2
		case m.Team2Acked && !m.Team1Acked:
			m.Result.ForfeitTeam = 1
		}
		m.PushSystemMessage("Match cancelled: ready deadline passed.", now)

		if err := saveMatch(s.DB, m); err != nil {
			// Lost the race to a real transition, nothing to do.
			continue
		}
		log.Printf("[MATCH] %s cancelled on ready timeout", m.ID)
		s.Broadcast.Publish(m.ID, "match_cancelled", m)
		if s.Tracking != nil {
			s.Tracking.ResolveForMatch(m.ID)
		}
	}
}

// rejectSave maps a failed guarded write to a response, logging real errors.
func (s *MatchService) rejectSave(c *fiber.Ctx, matchID, op string, err error) error {
	if err == ErrConflict {
		return RejectJSON(c, ErrConflict)
	}
	log.Printf("[MATCH] DB error saving %s (%s): %v", matchID, op, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
}

func hasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals("user_roles").([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
