package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SessionKind string

const (
	SessionKindStudy    SessionKind = "study"
	SessionKindExercise SessionKind = "exercise"
	SessionKindReview   SessionKind = "review"
	SessionKindResearch SessionKind = "research"
)

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusPaused SessionStatus = "paused"
	SessionStatusEnded  SessionStatus = "ended"
)

// StudySession is one bounded study attempt, from start to end. Timing
// fields are written only by the session's own timer task; once EndTime is
// set the record is immutable.
type StudySession struct {
	ID      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PDFID   *uuid.UUID `gorm:"type:uuid;index" json:"pdf_id,omitempty"`
	TopicID *uuid.UUID `gorm:"type:uuid;index" json:"topic_id,omitempty"`

	SessionKind SessionKind   `gorm:"type:varchar(20);not null;default:'study'" json:"session_kind"`
	SessionName string        `gorm:"type:varchar(255)" json:"session_name,omitempty"`
	Status      SessionStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	StartTime              time.Time  `gorm:"not null" json:"start_time"`
	EndTime                *time.Time `gorm:"index" json:"end_time,omitempty"`
	PlannedDurationMinutes int        `gorm:"not null;default:60" json:"planned_duration_minutes"`
	TotalMinutes           int        `gorm:"not null;default:0" json:"total_minutes"`
	ActiveMinutes          int        `gorm:"not null;default:0" json:"active_minutes"`
	IdleMinutes            int        `gorm:"not null;default:0" json:"idle_minutes"`
	BreakMinutes           int        `gorm:"not null;default:0" json:"break_minutes"`

	PagesVisited   int `gorm:"not null;default:0" json:"pages_visited"`
	PagesCompleted int `gorm:"not null;default:0" json:"pages_completed"`
	StartingPage   int `gorm:"not null;default:1" json:"starting_page"`
	EndingPage     int `gorm:"not null;default:1" json:"ending_page"`

	PomodoroCycles int `gorm:"not null;default:0" json:"pomodoro_cycles"`
	Interruptions  int `gorm:"not null;default:0" json:"interruptions"`

	FocusScore        float64 `gorm:"not null;default:0" json:"focus_score"`
	ProductivityScore float64 `gorm:"not null;default:0" json:"productivity_score"`

	DifficultyRating *int   `json:"difficulty_rating,omitempty"`
	EnergyLevel      *int   `json:"energy_level,omitempty"`
	MoodRating       *int   `json:"mood_rating,omitempty"`
	EnvironmentType  string `gorm:"type:varchar(50)" json:"environment_type,omitempty"`

	Notes         string         `gorm:"type:text" json:"notes,omitempty"`
	GoalsSet      datatypes.JSON `gorm:"type:json" json:"goals_set,omitempty"`
	GoalsAchieved datatypes.JSON `gorm:"type:json" json:"goals_achieved,omitempty"`
	XPEarned      int            `gorm:"not null;default:0" json:"xp_earned"`

	SessionData datatypes.JSON `gorm:"type:json" json:"session_data,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (StudySession) TableName() string { return "study_sessions" }

func (s *StudySession) IsActive() bool { return s.Status != SessionStatusEnded }

// EfficiencyScore is active time over total time, as a percentage.
func (s *StudySession) EfficiencyScore() float64 {
	if s.TotalMinutes == 0 {
		return 0
	}
	return float64(s.ActiveMinutes) / float64(s.TotalMinutes) * 100
}

func (s *StudySession) GoalsSetList() []string      { return decodeStringList(s.GoalsSet) }
func (s *StudySession) GoalsAchievedList() []string { return decodeStringList(s.GoalsAchieved) }

func EncodeStringList(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
