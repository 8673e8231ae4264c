package services

import (
	"errors"
	"log"
	"time"

	"ladder-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConfirmationService manages the 30 second yes/no requests sent between
// players (roster substitutions and similar). Expiry is enforced lazily on
// every read and swept periodically for anyone not looking.
type ConfirmationService struct {
	DB        *gorm.DB
	Broadcast *Broadcaster
}

func NewConfirmationService(db *gorm.DB, bc *Broadcaster) *ConfirmationService {
	return &ConfirmationService{DB: db, Broadcast: bc}
}

// CreateConfirmation opens a new request. A responder can only hold one live
// pending request at a time; stale ones are expired on the way in.
func (s *ConfirmationService) CreateConfirmation(c *fiber.Ctx) error {
	requesterID := c.Locals("user_id").(string)

	var req struct {
		ResponderID string `json:"responder_id"`
		Action      string `json:"action"`
		MatchID     string `json:"match_id"`
		Payload     string `json:"payload"`
	}
	if err := c.BodyParser(&req); err != nil || req.ResponderID == "" || req.Action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "responder_id and action are required"})
	}
	if req.ResponderID == requesterID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot request a confirmation from yourself"})
	}

	now := time.Now()

	// Lazy expiry keeps the uniqueness check honest without waiting for the
	// sweep.
	s.DB.Model(&models.MatchConfirmation{}).
		Where("responder_id = ? AND status = ? AND expires_at <= ?", req.ResponderID, models.ConfirmationPending, now).
		Updates(map[string]interface{}{"status": models.ConfirmationExpired, "responded_at": now})

	var pending int64
	err := s.DB.Model(&models.MatchConfirmation{}).
		Where("responder_id = ? AND status = ?", req.ResponderID, models.ConfirmationPending).
		Count(&pending).Error
	if err != nil {
		log.Printf("[CONFIRM] DB error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	if pending > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "responder already has a pending confirmation"})
	}
	// The count is only a fast path; the partial unique index on
	// (responder_id) WHERE status = 'pending' decides under concurrency.

	conf := models.MatchConfirmation{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		ResponderID: req.ResponderID,
		Action:      req.Action,
		MatchID:     req.MatchID,
		Payload:     req.Payload,
		Status:      models.ConfirmationPending,
		ExpiresAt:   now.Add(models.ConfirmationTTL),
	}
	if err := s.DB.Create(&conf).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "responder already has a pending confirmation"})
		}
		log.Printf("[CONFIRM] DB error creating confirmation: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create confirmation"})
	}

	if conf.MatchID != "" {
		s.Broadcast.Publish(conf.MatchID, "confirmation_requested", conf)
	}
	return c.Status(fiber.StatusCreated).JSON(conf)
}

// GetPending returns the caller's live pending confirmation, if any.
func (s *ConfirmationService) GetPending(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var conf models.MatchConfirmation
	err := s.DB.
		Where("responder_id = ? AND status = ?", userID, models.ConfirmationPending).
		First(&conf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"pending": nil})
	}
	if err != nil {
		log.Printf("[CONFIRM] DB error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	now := time.Now()
	if !conf.Pending(now) {
		conf.Status = models.ConfirmationExpired
		conf.RespondedAt = &now
		s.DB.Save(&conf)
		return c.JSON(fiber.Map{"pending": nil})
	}
	return c.JSON(fiber.Map{"pending": conf})
}

// Respond accepts or declines a pending confirmation. A late response is
// rejected and the record forced to expired.
func (s *ConfirmationService) Respond(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Accept *bool `json:"accept"`
	}
	if err := c.BodyParser(&req); err != nil || req.Accept == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "accept is required"})
	}

	var conf models.MatchConfirmation
	if err := s.DB.First(&conf, "id = ?", c.Params("id")).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "confirmation not found"})
	}
	if conf.ResponderID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your confirmation"})
	}

	now := time.Now()
	respErr := conf.Respond(*req.Accept, now)

	if err := s.DB.Save(&conf).Error; err != nil {
		log.Printf("[CONFIRM] DB error saving response for %s: %v", conf.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	switch {
	case errors.Is(respErr, models.ErrConfirmationExpired):
		return RejectJSON(c, ErrExpired)
	case errors.Is(respErr, models.ErrConfirmationResolved):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": respErr.Error()})
	}

	if conf.MatchID != "" {
		s.Broadcast.Publish(conf.MatchID, "confirmation_resolved", conf)
	}
	log.Printf("[CONFIRM] %s %s by %s", conf.ID, conf.Status, userID)
	return c.JSON(conf)
}

// SweepExpired marks overdue pending confirmations expired.
func (s *ConfirmationService) SweepExpired() {
	now := time.Now()

	res := s.DB.Model(&models.MatchConfirmation{}).
		Where("status = ? AND expires_at <= ?", models.ConfirmationPending, now).
		Updates(map[string]interface{}{"status": models.ConfirmationExpired, "responded_at": now})
	if res.Error != nil {
		log.Printf("[CONFIRM] sweep error: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("[CONFIRM] expired %d confirmations", res.RowsAffected)
	}
}
