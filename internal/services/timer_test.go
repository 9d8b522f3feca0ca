package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestSupervisor uses a tick interval long enough that only explicit
// commands drive accrual, which keeps the tests deterministic.
func newTestSupervisor(t *testing.T, publish func(TimerSnapshot)) (*TimerSupervisor, *fakeClock) {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := DefaultTimerConfig()
	cfg.TickInterval = time.Hour
	sup := NewTimerSupervisor(log, cfg, DefaultScoreConfig(), publish)
	clock := newFakeClock()
	sup.nowFn = clock.Now
	return sup, clock
}

func TestTimerActiveAccrual(t *testing.T) {
	sup, clock := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{PlannedDuration: 25 * time.Minute}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sup.Stop(id)

	clock.Advance(60 * time.Second)
	if !sup.RegisterActivity(id, domain.ActivityInteraction, domain.InteractionPayload{Source: "keyboard"}) {
		t.Fatalf("activity rejected on running session")
	}

	snap, err := sup.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if snap.ActiveSeconds != 60 {
		t.Fatalf("expected 60 active seconds, got %d", snap.ActiveSeconds)
	}
	if snap.IdleSeconds != 0 || snap.BreakSeconds != 0 {
		t.Fatalf("unexpected idle/break attribution: %+v", snap)
	}
	if snap.ActivityCount != 1 {
		t.Fatalf("expected 1 activity, got %d", snap.ActivityCount)
	}
}

// The accrual baseline must be the moment Start returns, not whenever the
// task goroutine first gets scheduled. Advancing the clock immediately
// after Start makes any later baseline visible as lost elapsed time.
func TestTimerBaselineSetAtStart(t *testing.T) {
	sup, clock := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{PlannedDuration: 2 * time.Minute}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sup.Stop(id)

	clock.Advance(60 * time.Second)
	snap, err := sup.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if snap.ElapsedSeconds != 60 {
		t.Fatalf("expected 60 elapsed seconds from start, got %d", snap.ElapsedSeconds)
	}
	if snap.ActiveSeconds != 60 {
		t.Fatalf("expected the full interval attributed as active, got %d", snap.ActiveSeconds)
	}
	if snap.ProgressPercent != 50 {
		t.Fatalf("expected 50%% progress, got %v", snap.ProgressPercent)
	}
}

func TestTimerIdleAttribution(t *testing.T) {
	sup, clock := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sup.Stop(id)

	clock.Advance(200 * time.Second)
	snap, err := sup.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if snap.IdleSeconds != 200 {
		t.Fatalf("expected 200 idle seconds, got %d", snap.IdleSeconds)
	}
	if !snap.IsIdle {
		t.Fatalf("expected idle flag after silence past the threshold")
	}
}

func TestTimerIdleCapBoundsMachineSleep(t *testing.T) {
	sup, clock := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sup.Stop(id)

	clock.Advance(2 * time.Hour)
	snap, err := sup.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if snap.IdleSeconds != 300 {
		t.Fatalf("expected idle capped at 300s, got %d", snap.IdleSeconds)
	}
	if snap.ElapsedSeconds != 7200 {
		t.Fatalf("elapsed should reflect wall clock, got %d", snap.ElapsedSeconds)
	}
}

func TestTimerPauseResume(t *testing.T) {
	sup, clock := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sup.Stop(id)

	clock.Advance(30 * time.Second)
	if err := sup.Pause(id, domain.BreakTypePlanned); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := sup.Pause(id, domain.BreakTypePlanned); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double pause should be invalid, got %v", err)
	}
	if sup.RegisterActivity(id, domain.ActivityInteraction, domain.InteractionPayload{Source: "mouse"}) {
		t.Fatalf("activity should be rejected while paused")
	}

	clock.Advance(90 * time.Second)
	if err := sup.Resume(id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := sup.Resume(id); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("resume on running session should be invalid, got %v", err)
	}

	snap, err := sup.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if snap.BreakSeconds != 90 {
		t.Fatalf("expected 90 break seconds, got %d", snap.BreakSeconds)
	}
	if snap.ActiveSeconds != 30 {
		t.Fatalf("expected 30 active seconds, got %d", snap.ActiveSeconds)
	}
	if snap.IsPaused {
		t.Fatalf("still paused after resume")
	}
}

func TestTimerInterruptionAllowedWhilePaused(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sup.Stop(id)

	if err := sup.Pause(id, domain.BreakTypePlanned); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !sup.RegisterInterruption(id, "phone") {
		t.Fatalf("interruption should be accepted while paused")
	}
	snap, err := sup.State(id)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if snap.Interruptions != 1 {
		t.Fatalf("expected 1 interruption, got %d", snap.Interruptions)
	}
}

func TestTimerStopReturnsFinalMetrics(t *testing.T) {
	sup, clock := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{PlannedDuration: 10 * time.Minute}); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(60 * time.Second)
	sup.RegisterActivity(id, domain.ActivityPageChange, domain.PageChangePayload{FromPage: 1, ToPage: 2})
	clock.Advance(60 * time.Second)
	sup.Pause(id, domain.BreakTypePlanned)
	clock.Advance(60 * time.Second)

	final, err := sup.Stop(id)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if final.TotalSeconds != 180 {
		t.Fatalf("expected 180 total seconds, got %d", final.TotalSeconds)
	}
	if final.ActiveSeconds != 120 {
		t.Fatalf("expected 120 active seconds, got %d", final.ActiveSeconds)
	}
	if final.BreakSeconds != 60 {
		t.Fatalf("expected 60 break seconds, got %d", final.BreakSeconds)
	}
	if len(final.Breaks) != 1 || final.Breaks[0].BreakEnd == nil {
		t.Fatalf("open break should be closed on stop: %+v", final.Breaks)
	}
	if len(final.Events) != 1 {
		t.Fatalf("expected 1 ledger event, got %d", len(final.Events))
	}

	if _, err := sup.Stop(id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second stop should be not found, got %v", err)
	}
	if sup.RegisterActivity(id, domain.ActivityInteraction, nil) {
		t.Fatalf("activity accepted after stop")
	}
	if _, err := sup.State(id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("state after stop should be not found, got %v", err)
	}
}

func TestTimerAttributionNeverExceedsElapsed(t *testing.T) {
	sup, clock := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 0; i < 20; i++ {
		clock.Advance(45 * time.Second)
		sup.RegisterActivity(id, domain.ActivityInteraction, domain.InteractionPayload{Source: "keyboard"})
	}
	clock.Advance(10 * time.Minute)
	sup.Pause(id, domain.BreakTypeFatigue)
	clock.Advance(3 * time.Minute)
	sup.Resume(id)
	clock.Advance(30 * time.Second)

	final, err := sup.Stop(id)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	attributed := final.ActiveSeconds + final.IdleSeconds + final.BreakSeconds
	if attributed > final.TotalSeconds {
		t.Fatalf("attributed %ds exceeds elapsed %ds", attributed, final.TotalSeconds)
	}
}

func TestTimerDuplicateStart(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sup.Stop(id)

	if err := sup.Start(id, TimerSpec{}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate start should conflict, got %v", err)
	}
}

func TestTimerPublishesOnTransitions(t *testing.T) {
	var mu sync.Mutex
	var got []TimerSnapshot
	publish := func(s TimerSnapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}
	sup, clock := newTestSupervisor(t, publish)
	id := uuid.New()
	if err := sup.Start(id, TimerSpec{PlannedDuration: time.Minute}); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(30 * time.Second)
	sup.RegisterActivity(id, domain.ActivityInteraction, domain.InteractionPayload{Source: "keyboard"})
	sup.Pause(id, domain.BreakTypePlanned)
	sup.Resume(id)
	if _, err := sup.Stop(id); err != nil {
		t.Fatalf("stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) < 4 {
		t.Fatalf("expected a snapshot per transition, got %d", len(got))
	}
	last := got[len(got)-1]
	if last.SessionID != id {
		t.Fatalf("snapshot for wrong session: %v", last.SessionID)
	}
	if last.ProgressPercent != 50 {
		t.Fatalf("expected 50%% progress, got %v", last.ProgressPercent)
	}
}

func TestTimerActiveIDs(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	a, b := uuid.New(), uuid.New()
	sup.Start(a, TimerSpec{})
	sup.Start(b, TimerSpec{})

	ids := sup.ActiveIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 active timers, got %d", len(ids))
	}
	sup.Stop(a)
	if ids := sup.ActiveIDs(); len(ids) != 1 || ids[0] != b {
		t.Fatalf("expected only %v active, got %v", b, ids)
	}
	sup.Stop(b)
}
