package services

import (
	"log"

	"ladder-match-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// MapService manages the map catalog that every new match snapshots its pool
// from.
type MapService struct {
	DB *gorm.DB
}

func NewMapService(db *gorm.DB) *MapService {
	return &MapService{DB: db}
}

var defaultMaps = []string{"Overwatch", "Ruins", "Yard", "Factory", "Bridges", "Palace"}

// EnsureDefaultMaps seeds the catalog on first boot. Existing rows are left
// untouched so operator edits survive restarts.
func (s *MapService) EnsureDefaultMaps() error {
	var count int64
	if err := s.DB.Model(&models.GameMap{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, name := range defaultMaps {
		m := models.GameMap{
			ID:       uuid.NewString(),
			Name:     name,
			Slug:     slug.Make(name),
			IsActive: true,
		}
		if err := s.DB.Create(&m).Error; err != nil {
			return err
		}
	}
	log.Printf("[MAPS] seeded %d default maps", len(defaultMaps))
	return nil
}

// ActiveMaps returns the maps eligible for new match pools.
func (s *MapService) ActiveMaps() ([]models.GameMap, error) {
	var maps []models.GameMap
	err := s.DB.Where("is_active = ?", true).Order("name ASC").Find(&maps).Error
	return maps, err
}

// ListMaps returns the full catalog, active and retired.
func (s *MapService) ListMaps(c *fiber.Ctx) error {
	var maps []models.GameMap
	if err := s.DB.Order("name ASC").Find(&maps).Error; err != nil {
		log.Printf("[MAPS] DB error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}
	return c.JSON(maps)
}

// CreateMap adds a map to the catalog.
func (s *MapService) CreateMap(c *fiber.Ctx) error {
	var req struct {
		Name  string `json:"name"`
		Image string `json:"image"`
	}
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	m := models.GameMap{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Slug:     slug.Make(req.Name),
		Image:    req.Image,
		IsActive: true,
	}
	if err := s.DB.Create(&m).Error; err != nil {
		log.Printf("[MAPS] DB error creating map %s: %v", req.Name, err)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "map already exists"})
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// UpdateMap toggles activity or renames a map. Retired maps stay in old match
// pools but are excluded from new ones.
func (s *MapService) UpdateMap(c *fiber.Ctx) error {
	id := c.Params("id")

	var m models.GameMap
	if err := s.DB.First(&m, "id = ?", id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "map not found"})
	}

	var req struct {
		Name     *string `json:"name"`
		Image    *string `json:"image"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if req.Name != nil && *req.Name != "" {
		m.Name = *req.Name
		m.Slug = slug.Make(*req.Name)
	}
	if req.Image != nil {
		m.Image = *req.Image
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}

	if err := s.DB.Save(&m).Error; err != nil {
		log.Printf("[MAPS] DB error updating map %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update map"})
	}
	return c.JSON(m)
}
