package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/data/repos"
	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/pkg/dbctx"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

// PomodoroConfig carries cycle duration defaults and XP bases.
type PomodoroConfig struct {
	WorkMinutes       int `yaml:"work_minutes"`
	ShortBreakMinutes int `yaml:"short_break_minutes"`
	LongBreakMinutes  int `yaml:"long_break_minutes"`
	WorkBaseXP        int `yaml:"work_base_xp"`
	BreakBaseXP       int `yaml:"break_base_xp"`
}

func DefaultPomodoroConfig() PomodoroConfig {
	return PomodoroConfig{
		WorkMinutes:       25,
		ShortBreakMinutes: 5,
		LongBreakMinutes:  15,
		WorkBaseXP:        10,
		BreakBaseXP:       5,
	}
}

type StartCycleInput struct {
	SessionID       uuid.UUID        `json:"session_id"`
	CycleType       domain.CycleType `json:"cycle_type"`
	PlannedDuration int              `json:"planned_duration_minutes"`
}

type CompleteCycleInput struct {
	Effectiveness     *int     `json:"effectiveness_rating"`
	FocusRating       *int     `json:"focus_rating"`
	TaskCompleted     bool     `json:"task_completed"`
	Interruptions     int      `json:"interruptions"`
	InterruptionTypes []string `json:"interruption_types"`
	Notes             string   `json:"notes"`
}

type PomodoroService interface {
	StartCycle(ctx context.Context, in StartCycleInput) (*domain.PomodoroCycle, error)
	CompleteCycle(ctx context.Context, cycleID uuid.UUID, in CompleteCycleInput) (*domain.PomodoroCycle, error)
}

type pomodoroService struct {
	log      *logger.Logger
	cfg      PomodoroConfig
	repos    repos.Set
	sessions SessionService
}

func NewPomodoroService(log *logger.Logger, cfg PomodoroConfig, rs repos.Set, sessions SessionService) PomodoroService {
	return &pomodoroService{
		log:      log.With("service", "PomodoroService"),
		cfg:      cfg,
		repos:    rs,
		sessions: sessions,
	}
}

// StartCycle opens a work or break interval inside a running session. Break
// cycles also pause the session timer so the break time lands in the break
// bucket, not in active or idle.
func (s *pomodoroService) StartCycle(ctx context.Context, in StartCycleInput) (*domain.PomodoroCycle, error) {
	session, err := s.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.SessionStatusActive {
		return nil, fmt.Errorf("session %s is %s, not active: %w", in.SessionID, session.Status, domain.ErrInvalidState)
	}

	cycleType := in.CycleType
	if cycleType == "" {
		cycleType = domain.CycleTypeWork
	}
	planned := in.PlannedDuration
	if planned <= 0 {
		switch cycleType {
		case domain.CycleTypeShortBreak:
			planned = s.cfg.ShortBreakMinutes
		case domain.CycleTypeLongBreak:
			planned = s.cfg.LongBreakMinutes
		default:
			planned = s.cfg.WorkMinutes
		}
	}

	dbc := dbctx.Context{Ctx: ctx}
	count, err := s.repos.Cycles.CountBySession(dbc, in.SessionID)
	if err != nil {
		return nil, &domain.StorageError{Op: "pomodoro.count", Err: err}
	}

	cycle := &domain.PomodoroCycle{
		ID:                     uuid.New(),
		SessionID:              in.SessionID,
		CycleNumber:            int(count) + 1,
		CycleType:              cycleType,
		PlannedDurationMinutes: planned,
		StartedAt:              time.Now().UTC(),
	}
	if err := s.repos.Cycles.Append(dbc, cycle); err != nil {
		return nil, &domain.StorageError{Op: "pomodoro.create", Err: err}
	}

	if cycleType.IsBreak() {
		if _, err := s.sessions.Pause(ctx, in.SessionID, domain.BreakTypePomodoro); err != nil {
			s.log.Warn("break cycle did not pause session", "session_id", in.SessionID, "error", err)
		}
	}

	s.log.Info("pomodoro cycle started",
		"session_id", in.SessionID,
		"cycle_id", cycle.ID,
		"cycle_number", cycle.CycleNumber,
		"cycle_type", cycleType)
	return cycle, nil
}

// CompleteCycle closes a cycle, grades it and awards XP scaled by the
// effectiveness rating. Completing a cycle twice reports not found.
func (s *pomodoroService) CompleteCycle(ctx context.Context, cycleID uuid.UUID, in CompleteCycleInput) (*domain.PomodoroCycle, error) {
	dbc := dbctx.Context{Ctx: ctx}
	cycle, err := s.repos.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, &domain.StorageError{Op: "pomodoro.get", Err: err}
	}
	if cycle == nil || cycle.Completed {
		return nil, domain.ErrNotFound
	}
	if err := validateRating(in.Effectiveness); err != nil {
		return nil, err
	}
	if err := validateRating(in.FocusRating); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	actualMinutes := int(now.Sub(cycle.StartedAt).Minutes())

	baseXP := s.cfg.WorkBaseXP
	if cycle.CycleType.IsBreak() {
		baseXP = s.cfg.BreakBaseXP
	}
	xp := baseXP
	if in.Effectiveness != nil {
		xp = int(math.Round(float64(baseXP) * float64(*in.Effectiveness) / 3))
	}

	updates := map[string]any{
		"completed":               true,
		"completed_at":            now,
		"actual_duration_minutes": actualMinutes,
		"task_completed":          in.TaskCompleted,
		"interruptions":           in.Interruptions,
		"xp_earned":               xp,
	}
	if in.Effectiveness != nil {
		updates["effectiveness_rating"] = *in.Effectiveness
	}
	if in.FocusRating != nil {
		updates["focus_rating"] = *in.FocusRating
	}
	if len(in.InterruptionTypes) > 0 {
		updates["interruption_types"] = domain.EncodeStringList(in.InterruptionTypes)
	}
	if in.Notes != "" {
		updates["notes"] = in.Notes
	}
	if err := s.repos.Cycles.Update(dbc, cycleID, updates); err != nil {
		return nil, &domain.StorageError{Op: "pomodoro.complete", Err: err}
	}

	if cycle.CycleType.IsBreak() {
		if _, err := s.sessions.Resume(ctx, cycle.SessionID); err != nil {
			s.log.Warn("break cycle did not resume session", "session_id", cycle.SessionID, "error", err)
		}
	}
	if err := s.sessions.RecordPomodoroCompletion(ctx, cycle.SessionID, xp); err != nil {
		s.log.Error("cycle completion not folded into session", "session_id", cycle.SessionID, "error", err)
	}

	s.log.Info("pomodoro cycle completed",
		"session_id", cycle.SessionID,
		"cycle_id", cycleID,
		"cycle_type", cycle.CycleType,
		"xp_earned", xp)
	return s.repos.Cycles.GetByID(dbc, cycleID)
}

func validateRating(rating *int) error {
	if rating == nil {
		return nil
	}
	if *rating < 1 || *rating > 5 {
		return fmt.Errorf("rating %d outside 1..5: %w", *rating, domain.ErrInvalidState)
	}
	return nil
}
