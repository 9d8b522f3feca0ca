package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

// TimerConfig holds the timekeeping tunables. Cadence and thresholds are
// configuration, not contracts.
type TimerConfig struct {
	// TickInterval is the cadence of the per-session timekeeping task.
	TickInterval time.Duration
	// IdleThreshold is how long without activity before elapsed time is
	// attributed to idle instead of active.
	IdleThreshold time.Duration
	// IdleCap bounds the idle time attributed in a single evaluation, so a
	// machine-sleep gap does not land as one huge idle block.
	IdleCap time.Duration
	// ActiveCap bounds the active time credited in a single evaluation, so
	// one long gap cannot inflate active time.
	ActiveCap time.Duration
	// EventWindow is how much ledger history is kept for gap analysis.
	EventWindow time.Duration
}

func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		TickInterval:  time.Second,
		IdleThreshold: 120 * time.Second,
		IdleCap:       300 * time.Second,
		ActiveCap:     120 * time.Second,
		EventWindow:   time.Hour,
	}
}

// TimerSpec seeds a session's timekeeping task at start.
type TimerSpec struct {
	PlannedDuration time.Duration
	GoalsSet        int
}

// TimerSnapshot is the transient per-session state pushed to observers on
// every tick and on every discrete transition.
type TimerSnapshot struct {
	SessionID              uuid.UUID `json:"session_id"`
	IsPaused               bool      `json:"is_paused"`
	ElapsedSeconds         int       `json:"elapsed_seconds"`
	ActiveSeconds          int       `json:"active_seconds"`
	IdleSeconds            int       `json:"idle_seconds"`
	BreakSeconds           int       `json:"break_seconds"`
	PlannedDurationSeconds int       `json:"planned_duration_seconds"`
	ProgressPercent        float64   `json:"progress_percentage"`
	ActivityCount          int       `json:"activity_count"`
	Interruptions          int       `json:"interruptions"`
	FocusScore             float64   `json:"focus_score"`
	ProductivityScore      float64   `json:"productivity_score"`
	IsIdle                 bool      `json:"is_idle"`
	SecondsSinceActivity   int       `json:"time_since_activity"`
	PomodoroCycles         int       `json:"pomodoro_cycles"`
}

// FinalMetrics is the terminal aggregate a timer task hands back on stop.
type FinalMetrics struct {
	SessionID         uuid.UUID
	TotalSeconds      int
	ActiveSeconds     int
	IdleSeconds       int
	BreakSeconds      int
	ActivityCount     int
	Interruptions     int
	PomodoroCycles    int
	FocusScore        float64
	ProductivityScore float64
	EfficiencyPercent float64
	Events            []domain.ActivityEvent
	Breaks            []domain.SessionBreak
}

type cmdKind int

const (
	cmdActivity cmdKind = iota
	cmdInterruption
	cmdPause
	cmdResume
	cmdSetProgress
	cmdPomodoro
	cmdState
	cmdStop
)

type timerCmd struct {
	kind cmdKind

	activityType domain.ActivityType
	payload      domain.ActivityPayload
	breakType    domain.BreakType

	pages         int
	goalsSet      int
	goalsAchieved int

	replyBool  chan bool
	replyErr   chan error
	replyState chan TimerSnapshot
	replyFinal chan *FinalMetrics
}

type sessionTimer struct {
	id      uuid.UUID
	ctrl    chan timerCmd
	cancel  context.CancelFunc
	stopped chan struct{}
}

// TimerSupervisor owns one timekeeping task per active session. Every
// mutation for a session is delivered over that session's command channel,
// so the task is the sole writer of its TimerState and Activity Ledger and
// needs no locks around them. Stopping one session's task cannot affect
// another's: each task owns its own cancellation.
type TimerSupervisor struct {
	log     *logger.Logger
	cfg     TimerConfig
	scoring ScoreConfig
	publish func(TimerSnapshot)

	mu     sync.RWMutex
	timers map[uuid.UUID]*sessionTimer
	nowFn  func() time.Time
}

func NewTimerSupervisor(log *logger.Logger, cfg TimerConfig, scoring ScoreConfig, publish func(TimerSnapshot)) *TimerSupervisor {
	if publish == nil {
		publish = func(TimerSnapshot) {}
	}
	return &TimerSupervisor{
		log:     log.With("service", "TimerSupervisor"),
		cfg:     cfg,
		scoring: scoring,
		publish: publish,
		timers:  make(map[uuid.UUID]*sessionTimer),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Start spins up the timekeeping task for a session. A session id can own
// at most one task.
func (s *TimerSupervisor) Start(sessionID uuid.UUID, spec TimerSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.timers[sessionID]; exists {
		return domain.ErrConflict
	}
	ctx, cancel := context.WithCancel(context.Background())
	st := &sessionTimer{
		id:      sessionID,
		ctrl:    make(chan timerCmd),
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	// The clock baseline is taken here, not in the task goroutine, so no
	// wall time is lost to scheduling between Start returning and the
	// task's first instruction.
	now := s.nowFn()
	state := &timerState{
		id:           sessionID,
		startTime:    now,
		lastAccrual:  now,
		lastActivity: now,
		planned:      spec.PlannedDuration,
		goalsSet:     spec.GoalsSet,
	}
	s.timers[sessionID] = st
	go s.run(ctx, st, state)
	s.log.Info("timer started", "session_id", sessionID)
	return nil
}

func (s *TimerSupervisor) lookup(sessionID uuid.UUID) *sessionTimer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timers[sessionID]
}

// ActiveIDs lists sessions that currently own a timekeeping task.
func (s *TimerSupervisor) ActiveIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	return ids
}

// RegisterActivity appends an activity event, refreshes last-activity and
// triggers a score recompute. Returns false when the session is unknown,
// stopped or paused.
func (s *TimerSupervisor) RegisterActivity(sessionID uuid.UUID, typ domain.ActivityType, payload domain.ActivityPayload) bool {
	st := s.lookup(sessionID)
	if st == nil {
		return false
	}
	cmd := timerCmd{kind: cmdActivity, activityType: typ, payload: payload, replyBool: make(chan bool, 1)}
	if !st.send(cmd) {
		return false
	}
	return <-cmd.replyBool
}

// RegisterInterruption appends an interruption event and bumps the
// interruption counter. Allowed while paused.
func (s *TimerSupervisor) RegisterInterruption(sessionID uuid.UUID, subtype string) bool {
	st := s.lookup(sessionID)
	if st == nil {
		return false
	}
	cmd := timerCmd{
		kind:         cmdInterruption,
		activityType: domain.ActivityInterruption,
		payload:      domain.InterruptionPayload{Subtype: subtype},
		replyBool:    make(chan bool, 1),
	}
	if !st.send(cmd) {
		return false
	}
	return <-cmd.replyBool
}

func (s *TimerSupervisor) Pause(sessionID uuid.UUID, breakType domain.BreakType) error {
	st := s.lookup(sessionID)
	if st == nil {
		return domain.ErrNotFound
	}
	cmd := timerCmd{kind: cmdPause, breakType: breakType, replyErr: make(chan error, 1)}
	if !st.send(cmd) {
		return domain.ErrNotFound
	}
	return <-cmd.replyErr
}

func (s *TimerSupervisor) Resume(sessionID uuid.UUID) error {
	st := s.lookup(sessionID)
	if st == nil {
		return domain.ErrNotFound
	}
	cmd := timerCmd{kind: cmdResume, replyErr: make(chan error, 1)}
	if !st.send(cmd) {
		return domain.ErrNotFound
	}
	return <-cmd.replyErr
}

// SetProgress feeds page/goal progress into live scoring.
func (s *TimerSupervisor) SetProgress(sessionID uuid.UUID, pagesCompleted, goalsSet, goalsAchieved int) bool {
	st := s.lookup(sessionID)
	if st == nil {
		return false
	}
	cmd := timerCmd{
		kind:          cmdSetProgress,
		pages:         pagesCompleted,
		goalsSet:      goalsSet,
		goalsAchieved: goalsAchieved,
		replyBool:     make(chan bool, 1),
	}
	if !st.send(cmd) {
		return false
	}
	return <-cmd.replyBool
}

// RecordPomodoro bumps the completed-cycle count used by the scorer.
func (s *TimerSupervisor) RecordPomodoro(sessionID uuid.UUID) bool {
	st := s.lookup(sessionID)
	if st == nil {
		return false
	}
	cmd := timerCmd{kind: cmdPomodoro, replyBool: make(chan bool, 1)}
	if !st.send(cmd) {
		return false
	}
	return <-cmd.replyBool
}

// State returns the current snapshot for an active timer.
func (s *TimerSupervisor) State(sessionID uuid.UUID) (TimerSnapshot, error) {
	st := s.lookup(sessionID)
	if st == nil {
		return TimerSnapshot{}, domain.ErrNotFound
	}
	cmd := timerCmd{kind: cmdState, replyState: make(chan TimerSnapshot, 1)}
	if !st.send(cmd) {
		return TimerSnapshot{}, domain.ErrNotFound
	}
	return <-cmd.replyState, nil
}

// Stop tears the session's task down and returns the final aggregated
// metrics. A second Stop on the same id reports ErrNotFound and changes
// nothing.
func (s *TimerSupervisor) Stop(sessionID uuid.UUID) (*FinalMetrics, error) {
	s.mu.Lock()
	st := s.timers[sessionID]
	if st != nil {
		delete(s.timers, sessionID)
	}
	s.mu.Unlock()
	if st == nil {
		return nil, domain.ErrNotFound
	}

	cmd := timerCmd{kind: cmdStop, replyFinal: make(chan *FinalMetrics, 1)}
	if !st.send(cmd) {
		return nil, domain.ErrNotFound
	}
	final := <-cmd.replyFinal
	st.cancel()
	<-st.stopped
	s.log.Info("timer stopped", "session_id", sessionID, "total_seconds", final.TotalSeconds)
	return final, nil
}

// send delivers a command unless the task has already exited.
func (st *sessionTimer) send(cmd timerCmd) bool {
	select {
	case st.ctrl <- cmd:
		return true
	case <-st.stopped:
		return false
	}
}

// run is the per-session timekeeping loop: the sole writer of this
// session's timer state and activity ledger. It blocks only on the next
// tick or an incoming control message.
func (s *TimerSupervisor) run(ctx context.Context, st *sessionTimer, state *timerState) {
	defer close(st.stopped)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick := s.nowFn()
			state.accrue(tick, s.cfg)
			s.publish(state.snapshot(tick, s.cfg, s.scoring))
		case cmd := <-st.ctrl:
			now := s.nowFn()
			state.accrue(now, s.cfg)
			if done := s.apply(state, cmd, now); done {
				return
			}
		}
	}
}

// apply executes one control command. Mutating commands publish a snapshot
// immediately so observers do not wait a full tick to see transitions.
func (s *TimerSupervisor) apply(state *timerState, cmd timerCmd, now time.Time) bool {
	switch cmd.kind {
	case cmdActivity:
		if state.paused {
			cmd.replyBool <- false
			return false
		}
		state.appendEvent(cmd.activityType, cmd.payload, now, s.cfg)
		state.lastActivity = now
		state.activityCount++
		cmd.replyBool <- true
		s.publish(state.snapshot(now, s.cfg, s.scoring))
	case cmdInterruption:
		state.appendEvent(domain.ActivityInterruption, cmd.payload, now, s.cfg)
		state.interruptions++
		cmd.replyBool <- true
		s.publish(state.snapshot(now, s.cfg, s.scoring))
	case cmdPause:
		if state.paused {
			cmd.replyErr <- domain.ErrInvalidState
			return false
		}
		state.paused = true
		state.breaks = append(state.breaks, domain.SessionBreak{
			SessionID:  state.id,
			BreakType:  cmd.breakType,
			BreakStart: now,
		})
		cmd.replyErr <- nil
		s.publish(state.snapshot(now, s.cfg, s.scoring))
	case cmdResume:
		if !state.paused {
			cmd.replyErr <- domain.ErrInvalidState
			return false
		}
		state.paused = false
		state.closeOpenBreak(now)
		state.lastActivity = now
		cmd.replyErr <- nil
		s.publish(state.snapshot(now, s.cfg, s.scoring))
	case cmdSetProgress:
		state.pagesCompleted = cmd.pages
		state.goalsSet = cmd.goalsSet
		state.goalsAchieved = cmd.goalsAchieved
		cmd.replyBool <- true
		s.publish(state.snapshot(now, s.cfg, s.scoring))
	case cmdPomodoro:
		state.pomodoroCycles++
		cmd.replyBool <- true
		s.publish(state.snapshot(now, s.cfg, s.scoring))
	case cmdState:
		cmd.replyState <- state.snapshot(now, s.cfg, s.scoring)
	case cmdStop:
		state.closeOpenBreak(now)
		final := state.final(now, s.scoring)
		s.publish(state.snapshot(now, s.cfg, s.scoring))
		cmd.replyFinal <- final
		return true
	}
	return false
}

// timerState is owned exclusively by one run loop.
type timerState struct {
	id           uuid.UUID
	startTime    time.Time
	lastAccrual  time.Time
	lastActivity time.Time
	planned      time.Duration

	paused bool

	activeSecs float64
	idleSecs   float64
	breakSecs  float64

	activityCount  int
	interruptions  int
	pomodoroCycles int
	pagesCompleted int
	goalsSet       int
	goalsAchieved  int

	events []domain.ActivityEvent
	breaks []domain.SessionBreak
}

// accrue attributes the wall-clock interval since the last evaluation to
// exactly one of break, idle or active time. Idle and active credit are
// both capped per evaluation, so active+idle+break never exceeds elapsed.
func (t *timerState) accrue(now time.Time, cfg TimerConfig) {
	delta := now.Sub(t.lastAccrual)
	if delta <= 0 {
		return
	}
	t.lastAccrual = now

	if t.paused {
		t.breakSecs += delta.Seconds()
		return
	}
	if now.Sub(t.lastActivity) > cfg.IdleThreshold {
		t.idleSecs += math.Min(delta.Seconds(), cfg.IdleCap.Seconds())
	} else {
		t.activeSecs += math.Min(delta.Seconds(), cfg.ActiveCap.Seconds())
	}
}

func (t *timerState) appendEvent(typ domain.ActivityType, payload domain.ActivityPayload, now time.Time, cfg TimerConfig) {
	t.events = append(t.events, domain.ActivityEvent{
		SessionID: t.id,
		Type:      typ,
		Timestamp: now,
		Payload:   payload,
	})
	cutoff := now.Add(-cfg.EventWindow)
	trim := 0
	for trim < len(t.events) && t.events[trim].Timestamp.Before(cutoff) {
		trim++
	}
	if trim > 0 {
		t.events = append(t.events[:0], t.events[trim:]...)
	}
}

func (t *timerState) closeOpenBreak(now time.Time) {
	for i := len(t.breaks) - 1; i >= 0; i-- {
		if t.breaks[i].BreakEnd == nil {
			end := now
			t.breaks[i].BreakEnd = &end
			t.breaks[i].DurationSeconds = int(end.Sub(t.breaks[i].BreakStart).Seconds())
			return
		}
	}
}

func (t *timerState) scoreInput(now time.Time) ScoreInput {
	return ScoreInput{
		ActiveSeconds:  t.activeSecs,
		IdleSeconds:    t.idleSecs,
		BreakSeconds:   t.breakSecs,
		TotalSeconds:   now.Sub(t.startTime).Seconds(),
		Interruptions:  t.interruptions,
		PomodoroCycles: t.pomodoroCycles,
		PagesCompleted: t.pagesCompleted,
		GoalsSet:       t.goalsSet,
		GoalsAchieved:  t.goalsAchieved,
		Events:         t.events,
		Breaks:         t.breaks,
	}
}

func (t *timerState) snapshot(now time.Time, cfg TimerConfig, scoring ScoreConfig) TimerSnapshot {
	in := t.scoreInput(now)
	elapsed := now.Sub(t.startTime)
	sinceActivity := now.Sub(t.lastActivity)

	snap := TimerSnapshot{
		SessionID:              t.id,
		IsPaused:               t.paused,
		ElapsedSeconds:         int(elapsed.Seconds()),
		ActiveSeconds:          int(t.activeSecs),
		IdleSeconds:            int(t.idleSecs),
		BreakSeconds:           int(t.breakSecs),
		PlannedDurationSeconds: int(t.planned.Seconds()),
		ActivityCount:          t.activityCount,
		Interruptions:          t.interruptions,
		FocusScore:             FocusScore(in, scoring),
		ProductivityScore:      ProductivityScore(in, scoring),
		IsIdle:                 !t.paused && sinceActivity > cfg.IdleThreshold,
		SecondsSinceActivity:   int(sinceActivity.Seconds()),
		PomodoroCycles:         t.pomodoroCycles,
	}
	if t.planned > 0 {
		snap.ProgressPercent = math.Min(100, elapsed.Seconds()/t.planned.Seconds()*100)
	}
	return snap
}

func (t *timerState) final(now time.Time, scoring ScoreConfig) *FinalMetrics {
	in := t.scoreInput(now)
	return &FinalMetrics{
		SessionID:         t.id,
		TotalSeconds:      int(now.Sub(t.startTime).Seconds()),
		ActiveSeconds:     int(t.activeSecs),
		IdleSeconds:       int(t.idleSecs),
		BreakSeconds:      int(t.breakSecs),
		ActivityCount:     t.activityCount,
		Interruptions:     t.interruptions,
		PomodoroCycles:    t.pomodoroCycles,
		FocusScore:        FocusScore(in, scoring),
		ProductivityScore: ProductivityScore(in, scoring),
		EfficiencyPercent: EfficiencyPercent(in),
		Events:            append([]domain.ActivityEvent(nil), t.events...),
		Breaks:            append([]domain.SessionBreak(nil), t.breaks...),
	}
}
