package services

import (
	"errors"
	"log"
	"time"

	"ladder-match-system/models"

	"github.com/gofiber/fiber/v2"
	cache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

const configCacheKey = "reward-config"

// ConfigService serves the single authoritative reward configuration record
// behind a short TTL cache. The cache is dropped on every update so a season
// reset never applies a stale curve for longer than the TTL.
type ConfigService struct {
	DB    *gorm.DB
	cache *cache.Cache
}

func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{
		DB:    db,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// Get returns the current reward config, creating the seed record on first
// run.
func (s *ConfigService) Get() (*models.RewardConfig, error) {
	if cached, ok := s.cache.Get(configCacheKey); ok {
		return cached.(*models.RewardConfig), nil
	}

	var cfg models.RewardConfig
	err := s.DB.First(&cfg, "id = ?", "reward-config").Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seed := models.DefaultRewardConfig()
		if err := s.DB.Create(seed).Error; err != nil {
			return nil, err
		}
		cfg = *seed
	} else if err != nil {
		return nil, err
	}

	if !cfg.LossCurve.Validate() {
		// A hole in the curve would silently zero a tier's loss; refuse it.
		log.Printf("[CONFIG] stored loss curve incomplete, falling back to defaults")
		cfg.LossCurve = models.DefaultLossCurve
	}

	s.cache.Set(configCacheKey, &cfg, cache.DefaultExpiration)
	return &cfg, nil
}

// GetConfig returns the reward config to operators.
func (s *ConfigService) GetConfig(c *fiber.Ctx) error {
	cfg, err := s.Get()
	if err != nil {
		log.Printf("[CONFIG] DB error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(cfg)
}

// UpdateConfig replaces curve and per-mode rewards, bumping the version.
func (s *ConfigService) UpdateConfig(c *fiber.Ctx) error {
	var req struct {
		LossCurve   models.LossCurve              `json:"loss_curve"`
		ModeRewards map[string]models.ModeRewards `json:"mode_rewards"`
		Season      *int                          `json:"season"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.LossCurve != nil && !req.LossCurve.Validate() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "loss curve must cover every rank tier"})
	}

	cfg, err := s.Get()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	updates := map[string]interface{}{"version": cfg.Version + 1}
	if req.LossCurve != nil {
		cfg.LossCurve = req.LossCurve
		updates["loss_curve"] = req.LossCurve
	}
	if req.ModeRewards != nil {
		cfg.ModeRewards = req.ModeRewards
		updates["mode_rewards"] = req.ModeRewards
	}
	if req.Season != nil {
		cfg.Season = *req.Season
		updates["season"] = *req.Season
	}

	res := s.DB.Model(&models.RewardConfig{}).
		Where("id = ? AND version = ?", cfg.ID, cfg.Version).
		Updates(updates)
	if res.Error != nil {
		log.Printf("[CONFIG] DB error updating config: %v", res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update config"})
	}
	if res.RowsAffected == 0 {
		return RejectJSON(c, ErrConflict)
	}

	s.cache.Delete(configCacheKey)
	cfg.Version++
	return c.JSON(cfg)
}
