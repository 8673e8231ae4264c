package models

// SquadMember is one membership entry on the squad roster.
type SquadMember struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // leader, officer, member
}

// Squad is the local squad directory record: membership plus the aggregate
// win/loss/points bookkeeping updated after match completion.
type Squad struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"not null" json:"name"`
	Tag  string `gorm:"size:8" json:"tag"`

	Members []SquadMember `gorm:"type:jsonb;serializer:json" json:"members"`

	Points int `gorm:"default:0" json:"points"`
	Wins   int `gorm:"default:0" json:"wins"`
	Losses int `gorm:"default:0" json:"losses"`

	Timestamps
}

// HasMember reports whether a user belongs to the squad.
func (s *Squad) HasMember(userID string) bool {
	for _, m := range s.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
