package domain

import (
	"time"

	"github.com/google/uuid"
)

type BreakType string

const (
	BreakTypePlanned      BreakType = "planned"
	BreakTypePomodoro     BreakType = "pomodoro"
	BreakTypeInterruption BreakType = "interruption"
	BreakTypeFatigue      BreakType = "fatigue"
)

// SessionBreak is one pause interval inside a session. At most one break per
// session is open (BreakEnd unset) at a time.
type SessionBreak struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`

	BreakType       BreakType  `gorm:"type:varchar(20);not null;default:'planned'" json:"break_type"`
	BreakStart      time.Time  `gorm:"not null" json:"break_start"`
	BreakEnd        *time.Time `json:"break_end,omitempty"`
	DurationSeconds int        `gorm:"not null;default:0" json:"duration_seconds"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (SessionBreak) TableName() string { return "session_breaks" }

func (b *SessionBreak) IsOpen() bool { return b.BreakEnd == nil }

// Duration prefers the recorded end; for an open break it measures up to now.
func (b *SessionBreak) Duration(now time.Time) time.Duration {
	if b.BreakEnd != nil {
		return b.BreakEnd.Sub(b.BreakStart)
	}
	return now.Sub(b.BreakStart)
}
