package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CycleType string

const (
	CycleTypeWork       CycleType = "work"
	CycleTypeShortBreak CycleType = "short_break"
	CycleTypeLongBreak  CycleType = "long_break"
)

func (t CycleType) IsBreak() bool {
	return t == CycleTypeShortBreak || t == CycleTypeLongBreak
}

// PomodoroCycle is a timed work or break interval nested inside a session.
// A cycle either completes or is abandoned; an abandoned cycle simply stays
// incomplete and is excluded from completion statistics.
type PomodoroCycle struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`

	CycleNumber            int       `gorm:"not null" json:"cycle_number"`
	CycleType              CycleType `gorm:"type:varchar(20);not null" json:"cycle_type"`
	PlannedDurationMinutes int       `gorm:"not null;default:25" json:"planned_duration_minutes"`
	ActualDurationMinutes  int       `gorm:"not null;default:0" json:"actual_duration_minutes"`
	Completed              bool      `gorm:"not null;default:false" json:"completed"`

	Interruptions       int            `gorm:"not null;default:0" json:"interruptions"`
	InterruptionTypes   datatypes.JSON `gorm:"type:json" json:"interruption_types,omitempty"`
	EffectivenessRating *int           `json:"effectiveness_rating,omitempty"`
	FocusRating         *int           `json:"focus_rating,omitempty"`
	TaskCompleted       bool           `gorm:"not null;default:false" json:"task_completed"`

	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	XPEarned    int        `gorm:"not null;default:0" json:"xp_earned"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (PomodoroCycle) TableName() string { return "pomodoro_cycles" }

func (p *PomodoroCycle) IsActive() bool { return p.CompletedAt == nil }
