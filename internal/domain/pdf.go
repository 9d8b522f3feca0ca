package domain

import (
	"time"

	"github.com/google/uuid"
)

// PDF holds just the reading-progress slice of the documents table. The full
// PDF module (upload, extraction, metadata) lives outside this service; the
// session core only advances a linked document's position when a session ends.
type PDF struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title string    `gorm:"type:varchar(255)" json:"title,omitempty"`

	TotalPages      int        `gorm:"not null;default:0" json:"total_pages"`
	CurrentPage     int        `gorm:"not null;default:1" json:"current_page"`
	LastReadPage    int        `gorm:"not null;default:1" json:"last_read_page"`
	ReadingProgress float64    `gorm:"not null;default:0" json:"reading_progress"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PDF) TableName() string { return "pdfs" }
