package services

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/data/repos"
	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/pkg/dbctx"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

// SessionConfig carries session policy knobs.
type SessionConfig struct {
	// SingleActiveSession rejects a start while another session is open.
	SingleActiveSession bool `yaml:"single_active_session"`
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{SingleActiveSession: true}
}

type StartSessionInput struct {
	PDFID           *uuid.UUID         `json:"pdf_id"`
	TopicID         *uuid.UUID         `json:"topic_id"`
	SessionKind     domain.SessionKind `json:"session_type"`
	SessionName     string             `json:"session_name"`
	PlannedDuration int                `json:"planned_duration_minutes"`
	StartingPage    int                `json:"starting_page"`
	GoalsSet        []string           `json:"goals_set"`
	EnvironmentType string             `json:"environment_type"`
	EnergyLevel     *int               `json:"energy_level"`
	MoodRating      *int               `json:"mood_rating"`
}

// UpdateSessionInput is a partial patch; nil fields are left untouched.
type UpdateSessionInput struct {
	SessionName      *string  `json:"session_name"`
	Notes            *string  `json:"notes"`
	EndingPage       *int     `json:"ending_page"`
	PagesVisited     *int     `json:"pages_visited"`
	GoalsAchieved    []string `json:"goals_achieved"`
	DifficultyRating *int     `json:"difficulty_rating"`
	EnergyLevel      *int     `json:"energy_level"`
	MoodRating       *int     `json:"mood_rating"`
	EnvironmentType  *string  `json:"environment_type"`
}

type SessionService interface {
	Start(ctx context.Context, in StartSessionInput) (*domain.StudySession, error)
	Current(ctx context.Context) (*domain.StudySession, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.StudySession, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateSessionInput) (*domain.StudySession, error)
	Pause(ctx context.Context, id uuid.UUID, breakType domain.BreakType) (*domain.StudySession, error)
	Resume(ctx context.Context, id uuid.UUID) (*domain.StudySession, error)
	End(ctx context.Context, id uuid.UUID) (*domain.StudySession, error)
	TimerState(id uuid.UUID) (TimerSnapshot, error)
	RecordActivity(id uuid.UUID, typ domain.ActivityType, payload domain.ActivityPayload) bool
	RecordInterruption(id uuid.UUID, subtype string) bool
	RecordPomodoroCompletion(ctx context.Context, sessionID uuid.UUID, xp int) error
	FlushPending(ctx context.Context) int
	Shutdown(ctx context.Context)
}

type sessionService struct {
	db     *gorm.DB
	log    *logger.Logger
	cfg    SessionConfig
	repos  repos.Set
	timers *TimerSupervisor

	mu         sync.Mutex
	openBreaks map[uuid.UUID]uuid.UUID
	pending    map[uuid.UUID]pendingEnd
}

// pendingEnd parks a finalized session whose write failed, so a later flush
// or shutdown can retry without re-deriving the metrics.
type pendingEnd struct {
	session *domain.StudySession
	updates map[string]any
}

func NewSessionService(db *gorm.DB, log *logger.Logger, cfg SessionConfig, rs repos.Set, timers *TimerSupervisor) SessionService {
	return &sessionService{
		db:         db,
		log:        log.With("service", "SessionService"),
		cfg:        cfg,
		repos:      rs,
		timers:     timers,
		openBreaks: make(map[uuid.UUID]uuid.UUID),
		pending:    make(map[uuid.UUID]pendingEnd),
	}
}

func (s *sessionService) Start(ctx context.Context, in StartSessionInput) (*domain.StudySession, error) {
	dbc := dbctx.Context{Ctx: ctx}

	if s.cfg.SingleActiveSession {
		open, err := s.repos.Sessions.GetOpen(dbc)
		if err != nil {
			return nil, &domain.StorageError{Op: "session.start", Err: err}
		}
		if open != nil {
			return nil, fmt.Errorf("session %s is still open: %w", open.ID, domain.ErrConflict)
		}
	}

	now := time.Now().UTC()
	kind := in.SessionKind
	if kind == "" {
		kind = domain.SessionKindStudy
	}
	planned := in.PlannedDuration
	if planned <= 0 {
		planned = 60
	}
	startPage := in.StartingPage
	if startPage <= 0 {
		startPage = 1
	}

	session := &domain.StudySession{
		ID:                     uuid.New(),
		PDFID:                  in.PDFID,
		TopicID:                in.TopicID,
		SessionKind:            kind,
		SessionName:            in.SessionName,
		Status:                 domain.SessionStatusActive,
		StartTime:              now,
		PlannedDurationMinutes: planned,
		StartingPage:           startPage,
		EndingPage:             startPage,
		GoalsSet:               domain.EncodeStringList(in.GoalsSet),
		EnvironmentType:        in.EnvironmentType,
		EnergyLevel:            in.EnergyLevel,
		MoodRating:             in.MoodRating,
	}

	if err := s.repos.Sessions.Create(dbc, session); err != nil {
		return nil, &domain.StorageError{Op: "session.create", Err: err}
	}
	if err := s.timers.Start(session.ID, TimerSpec{
		PlannedDuration: time.Duration(planned) * time.Minute,
		GoalsSet:        len(in.GoalsSet),
	}); err != nil {
		return nil, err
	}

	s.log.Info("session started", "session_id", session.ID, "kind", kind, "planned_minutes", planned)
	return session, nil
}

func (s *sessionService) Current(ctx context.Context) (*domain.StudySession, error) {
	open, err := s.repos.Sessions.GetOpen(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, &domain.StorageError{Op: "session.current", Err: err}
	}
	if open == nil {
		return nil, domain.ErrNotFound
	}
	return open, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*domain.StudySession, error) {
	session, err := s.repos.Sessions.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, &domain.StorageError{Op: "session.get", Err: err}
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

func (s *sessionService) Update(ctx context.Context, id uuid.UUID, in UpdateSessionInput) (*domain.StudySession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("session %s already ended: %w", id, domain.ErrInvalidState)
	}

	updates := map[string]any{}
	if in.SessionName != nil {
		updates["session_name"] = *in.SessionName
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}
	if in.EndingPage != nil {
		updates["ending_page"] = *in.EndingPage
		pages := *in.EndingPage - session.StartingPage + 1
		if pages < 0 {
			pages = 0
		}
		updates["pages_completed"] = pages
	}
	if in.PagesVisited != nil {
		updates["pages_visited"] = *in.PagesVisited
	}
	if in.GoalsAchieved != nil {
		updates["goals_achieved"] = domain.EncodeStringList(in.GoalsAchieved)
	}
	if in.DifficultyRating != nil {
		updates["difficulty_rating"] = *in.DifficultyRating
	}
	if in.EnergyLevel != nil {
		updates["energy_level"] = *in.EnergyLevel
	}
	if in.MoodRating != nil {
		updates["mood_rating"] = *in.MoodRating
	}
	if in.EnvironmentType != nil {
		updates["environment_type"] = *in.EnvironmentType
	}
	if len(updates) == 0 {
		return session, nil
	}

	if err := s.repos.Sessions.UpdateFields(dbctx.Context{Ctx: ctx}, id, updates); err != nil {
		return nil, &domain.StorageError{Op: "session.update", Err: err}
	}
	session, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	goals := session.GoalsSetList()
	s.timers.SetProgress(id, session.PagesCompleted, len(goals), len(session.GoalsAchievedList()))
	return session, nil
}

func (s *sessionService) Pause(ctx context.Context, id uuid.UUID, breakType domain.BreakType) (*domain.StudySession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("session %s already ended: %w", id, domain.ErrInvalidState)
	}
	if breakType == "" {
		breakType = domain.BreakTypePlanned
	}

	if err := s.timers.Pause(id, breakType); err != nil {
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	brk := &domain.SessionBreak{
		ID:         uuid.New(),
		SessionID:  id,
		BreakType:  breakType,
		BreakStart: time.Now().UTC(),
	}
	if err := s.repos.Breaks.Append(dbc, brk); err != nil {
		s.log.Error("break row not persisted", "session_id", id, "error", err)
	} else {
		s.mu.Lock()
		s.openBreaks[id] = brk.ID
		s.mu.Unlock()
	}
	if err := s.repos.Sessions.UpdateFields(dbc, id, map[string]any{
		"status": domain.SessionStatusPaused,
	}); err != nil {
		return nil, &domain.StorageError{Op: "session.pause", Err: err}
	}
	s.log.Info("session paused", "session_id", id, "break_type", breakType)
	return s.Get(ctx, id)
}

func (s *sessionService) Resume(ctx context.Context, id uuid.UUID) (*domain.StudySession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("session %s already ended: %w", id, domain.ErrInvalidState)
	}

	if err := s.timers.Resume(id); err != nil {
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	s.closeOpenBreakRow(dbc, id, time.Now().UTC())

	snap, stateErr := s.timers.State(id)
	updates := map[string]any{"status": domain.SessionStatusActive}
	if stateErr == nil {
		updates["break_minutes"] = snap.BreakSeconds / 60
	}
	if err := s.repos.Sessions.UpdateFields(dbc, id, updates); err != nil {
		return nil, &domain.StorageError{Op: "session.resume", Err: err}
	}
	s.log.Info("session resumed", "session_id", id)
	return s.Get(ctx, id)
}

// End stops the session's timer, derives the final metrics and persists the
// terminal record in one transaction. A second End on an ended session is a
// no-op returning the stored record.
func (s *sessionService) End(ctx context.Context, id uuid.UUID) (*domain.StudySession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return session, fmt.Errorf("session already ended: %w", domain.ErrInvalidState)
	}

	final, err := s.timers.Stop(id)
	if err != nil {
		// No live timer but the row is still open: a crash or a failed
		// earlier End left it behind. Finalize from what the row holds.
		s.log.Warn("ending session without live timer", "session_id", id)
		final = &FinalMetrics{
			SessionID:         id,
			TotalSeconds:      int(time.Since(session.StartTime).Seconds()),
			ActiveSeconds:     session.ActiveMinutes * 60,
			IdleSeconds:       session.IdleMinutes * 60,
			BreakSeconds:      session.BreakMinutes * 60,
			Interruptions:     session.Interruptions,
			PomodoroCycles:    session.PomodoroCycles,
			FocusScore:        session.FocusScore,
			ProductivityScore: session.ProductivityScore,
		}
	}

	now := time.Now().UTC()
	pagesCompleted := session.EndingPage - session.StartingPage + 1
	if pagesCompleted < 0 {
		pagesCompleted = 0
	}
	activeMinutes := final.ActiveSeconds / 60
	xp := int(math.Round(float64(activeMinutes) * (1 + final.FocusScore/100)))

	updates := map[string]any{
		"status":             domain.SessionStatusEnded,
		"end_time":           now,
		"total_minutes":      final.TotalSeconds / 60,
		"active_minutes":     activeMinutes,
		"idle_minutes":       final.IdleSeconds / 60,
		"break_minutes":      final.BreakSeconds / 60,
		"interruptions":      final.Interruptions,
		"pomodoro_cycles":    final.PomodoroCycles,
		"pages_completed":    pagesCompleted,
		"focus_score":        final.FocusScore,
		"productivity_score": final.ProductivityScore,
		"xp_earned":          xp,
	}

	if err := s.persistEnd(ctx, session, updates, now); err != nil {
		finalized := *session
		applySessionUpdates(&finalized, updates, now)
		s.mu.Lock()
		s.pending[id] = pendingEnd{session: &finalized, updates: updates}
		s.mu.Unlock()
		s.log.Error("session finalized in memory only", "session_id", id, "error", err)
		return &finalized, &domain.StorageError{Op: "session.end", Err: err}
	}

	s.log.Info("session ended",
		"session_id", id,
		"total_minutes", final.TotalSeconds/60,
		"active_minutes", activeMinutes,
		"focus_score", final.FocusScore,
		"xp_earned", xp)
	return s.Get(ctx, id)
}

func (s *sessionService) persistEnd(ctx context.Context, session *domain.StudySession, updates map[string]any, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		s.closeOpenBreakRow(dbc, session.ID, now)
		if err := s.repos.Sessions.UpdateFields(dbc, session.ID, updates); err != nil {
			return err
		}
		if session.PDFID != nil {
			if err := s.repos.PDFs.UpdateProgress(dbc, *session.PDFID, session.EndingPage); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sessionService) closeOpenBreakRow(dbc dbctx.Context, sessionID uuid.UUID, now time.Time) {
	s.mu.Lock()
	breakID, ok := s.openBreaks[sessionID]
	if ok {
		delete(s.openBreaks, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	brk, err := fetchBreak(s.repos.Breaks, dbc, sessionID, breakID)
	if err != nil || brk == nil {
		return
	}
	if err := s.repos.Breaks.Update(dbc, breakID, map[string]any{
		"break_end":        now,
		"duration_seconds": int(now.Sub(brk.BreakStart).Seconds()),
	}); err != nil {
		s.log.Error("break row not closed", "session_id", sessionID, "break_id", breakID, "error", err)
	}
}

func fetchBreak(r repos.SessionBreakRepo, dbc dbctx.Context, sessionID, breakID uuid.UUID) (*domain.SessionBreak, error) {
	rows, err := r.ListBySession(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.ID == breakID {
			return row, nil
		}
	}
	return nil, nil
}

func (s *sessionService) TimerState(id uuid.UUID) (TimerSnapshot, error) {
	return s.timers.State(id)
}

func (s *sessionService) RecordActivity(id uuid.UUID, typ domain.ActivityType, payload domain.ActivityPayload) bool {
	return s.timers.RegisterActivity(id, typ, payload)
}

func (s *sessionService) RecordInterruption(id uuid.UUID, subtype string) bool {
	return s.timers.RegisterInterruption(id, subtype)
}

// RecordPomodoroCompletion folds a completed cycle into the live timer and
// the session row.
func (s *sessionService) RecordPomodoroCompletion(ctx context.Context, sessionID uuid.UUID, xp int) error {
	s.timers.RecordPomodoro(sessionID)
	err := s.repos.Sessions.UpdateFields(dbctx.Context{Ctx: ctx}, sessionID, map[string]any{
		"pomodoro_cycles": gorm.Expr("pomodoro_cycles + 1"),
		"xp_earned":       gorm.Expr("xp_earned + ?", xp),
	})
	if err != nil {
		return &domain.StorageError{Op: "session.pomodoro", Err: err}
	}
	return nil
}

// FlushPending retries parked end-of-session writes. Returns how many were
// persisted.
func (s *sessionService) FlushPending(ctx context.Context) int {
	s.mu.Lock()
	batch := make(map[uuid.UUID]pendingEnd, len(s.pending))
	for id, p := range s.pending {
		batch[id] = p
	}
	s.mu.Unlock()

	flushed := 0
	for id, p := range batch {
		if err := s.persistEnd(ctx, p.session, p.updates, time.Now().UTC()); err != nil {
			s.log.Warn("pending session still not persisted", "session_id", id, "error", err)
			continue
		}
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		flushed++
		s.log.Info("pending session persisted", "session_id", id)
	}
	return flushed
}

// Shutdown ends every live session best-effort so in-memory time is not
// silently lost on process exit.
func (s *sessionService) Shutdown(ctx context.Context) {
	for _, id := range s.timers.ActiveIDs() {
		if _, err := s.End(ctx, id); err != nil {
			s.log.Error("session not finalized during shutdown", "session_id", id, "error", err)
		}
	}
	if n := s.FlushPending(ctx); n > 0 {
		s.log.Info("pending sessions recovered during shutdown", "count", n)
	}
}

// applySessionUpdates mirrors a column update map onto an in-memory row, so
// a caller can see the finalized values even when the write failed.
func applySessionUpdates(session *domain.StudySession, updates map[string]any, now time.Time) {
	for col, val := range updates {
		switch col {
		case "status":
			session.Status = val.(domain.SessionStatus)
		case "end_time":
			t := val.(time.Time)
			session.EndTime = &t
		case "total_minutes":
			session.TotalMinutes = val.(int)
		case "active_minutes":
			session.ActiveMinutes = val.(int)
		case "idle_minutes":
			session.IdleMinutes = val.(int)
		case "break_minutes":
			session.BreakMinutes = val.(int)
		case "interruptions":
			session.Interruptions = val.(int)
		case "pomodoro_cycles":
			if n, ok := val.(int); ok {
				session.PomodoroCycles = n
			}
		case "pages_completed":
			session.PagesCompleted = val.(int)
		case "focus_score":
			session.FocusScore = val.(float64)
		case "productivity_score":
			session.ProductivityScore = val.(float64)
		case "xp_earned":
			if n, ok := val.(int); ok {
				session.XPEarned = n
			}
		}
	}
	session.UpdatedAt = now
}
