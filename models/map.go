package models

// GameMap is one catalog entry available for the ban/selection pipeline.
type GameMap struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Slug     string `gorm:"index" json:"slug"`
	Image    string `json:"image"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	Timestamps
}
