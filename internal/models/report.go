package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Category string

const (
	CategoryPothole      Category = "Pothole"
	CategoryStreetlight  Category = "Streetlight"
	CategorySanitation   Category = "Sanitation"
	CategoryWaterLeakage Category = "Water Leakage"
	CategoryOther        Category = "Other"
)

var Categories = []Category{
	CategoryPothole, CategoryStreetlight, CategorySanitation, CategoryWaterLeakage, CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusSubmitted    Status = "Submitted"
	StatusAcknowledged Status = "Acknowledged"
	StatusInProgress   Status = "In Progress"
	StatusResolved     Status = "Resolved"
	StatusRejected     Status = "Rejected"
)

var Statuses = []Status{
	StatusSubmitted, StatusAcknowledged, StatusInProgress, StatusResolved, StatusRejected,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Report is a single civic issue. Score is the sum of all current vote
// values on the report and only changes through the vote critical section.
type Report struct {
	ID          uuid.UUID                   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID                   `gorm:"type:uuid;not null;index:idx_reports_owner_created,priority:1" json:"user_id"`
	Title       string                      `gorm:"size:200;not null" json:"title"`
	Description string                      `gorm:"type:text;not null" json:"description"`
	Category    Category                    `gorm:"size:30;not null;index" json:"category"`
	Address     string                      `gorm:"size:500;not null" json:"address"`
	Longitude   float64                     `gorm:"not null;index:idx_reports_location,priority:1" json:"longitude"`
	Latitude    float64                     `gorm:"not null;index:idx_reports_location,priority:2" json:"latitude"`
	Images      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"images"`
	Status      Status                      `gorm:"size:20;not null;default:'Submitted'" json:"status"`
	Score       int                         `gorm:"not null;default:0;index:idx_reports_rank,priority:1,sort:desc" json:"score"`
	CreatedAt   time.Time                   `gorm:"index:idx_reports_rank,priority:2,sort:desc;index:idx_reports_owner_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}
