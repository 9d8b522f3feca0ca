package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/testutil"
)

func newPomodoroFixture(t *testing.T) (*sessionFixture, PomodoroService) {
	t.Helper()
	f := newSessionFixture(t)
	svc := NewPomodoroService(testutil.Logger(t), DefaultPomodoroConfig(), f.repos, f.svc)
	return f, svc
}

func TestPomodoroStartNumbersCycles(t *testing.T) {
	f, pom := newPomodoroFixture(t)
	ctx := context.Background()

	session, err := f.svc.Start(ctx, StartSessionInput{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	first, err := pom.StartCycle(ctx, StartCycleInput{SessionID: session.ID})
	if err != nil {
		t.Fatalf("start cycle: %v", err)
	}
	if first.CycleNumber != 1 || first.CycleType != domain.CycleTypeWork {
		t.Fatalf("unexpected first cycle: %+v", first)
	}
	if first.PlannedDurationMinutes != 25 {
		t.Fatalf("expected 25 minute work default, got %d", first.PlannedDurationMinutes)
	}

	second, err := pom.StartCycle(ctx, StartCycleInput{SessionID: session.ID, CycleType: domain.CycleTypeShortBreak})
	if err != nil {
		t.Fatalf("start break cycle: %v", err)
	}
	if second.CycleNumber != 2 {
		t.Fatalf("expected cycle number 2, got %d", second.CycleNumber)
	}
	if second.PlannedDurationMinutes != 5 {
		t.Fatalf("expected 5 minute break default, got %d", second.PlannedDurationMinutes)
	}
}

func TestPomodoroStartRequiresOpenSession(t *testing.T) {
	f, pom := newPomodoroFixture(t)
	ctx := context.Background()

	if _, err := pom.StartCycle(ctx, StartCycleInput{SessionID: uuid.New()}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown session should be not found, got %v", err)
	}

	session, err := f.svc.Start(ctx, StartSessionInput{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := f.svc.End(ctx, session.ID); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if _, err := pom.StartCycle(ctx, StartCycleInput{SessionID: session.ID}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("cycle on ended session should be invalid, got %v", err)
	}
}

func TestPomodoroStartRejectedWhilePaused(t *testing.T) {
	f, pom := newPomodoroFixture(t)
	ctx := context.Background()

	session, err := f.svc.Start(ctx, StartSessionInput{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := f.svc.Pause(ctx, session.ID, domain.BreakTypePlanned); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if _, err := pom.StartCycle(ctx, StartCycleInput{SessionID: session.ID}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("cycle on paused session should be invalid, got %v", err)
	}
}

func TestPomodoroCompleteAwardsScaledXP(t *testing.T) {
	f, pom := newPomodoroFixture(t)
	ctx := context.Background()

	session, err := f.svc.Start(ctx, StartSessionInput{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	cycle, err := pom.StartCycle(ctx, StartCycleInput{SessionID: session.ID})
	if err != nil {
		t.Fatalf("start cycle: %v", err)
	}

	rating := 5
	done, err := pom.CompleteCycle(ctx, cycle.ID, CompleteCycleInput{Effectiveness: &rating, TaskCompleted: true})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil {
		t.Fatalf("cycle not closed: %+v", done)
	}
	if done.XPEarned != 17 {
		t.Fatalf("expected xp 17 = round(10 * 5/3), got %d", done.XPEarned)
	}

	after, err := f.svc.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if after.PomodoroCycles != 1 {
		t.Fatalf("completion not folded into session, got %d cycles", after.PomodoroCycles)
	}
	if after.XPEarned != 17 {
		t.Fatalf("cycle xp not folded into session, got %d", after.XPEarned)
	}
}

func TestPomodoroCompleteTwice(t *testing.T) {
	f, pom := newPomodoroFixture(t)
	ctx := context.Background()

	session, err := f.svc.Start(ctx, StartSessionInput{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	cycle, err := pom.StartCycle(ctx, StartCycleInput{SessionID: session.ID})
	if err != nil {
		t.Fatalf("start cycle: %v", err)
	}
	if _, err := pom.CompleteCycle(ctx, cycle.ID, CompleteCycleInput{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := pom.CompleteCycle(ctx, cycle.ID, CompleteCycleInput{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double complete should be not found, got %v", err)
	}
}

func TestPomodoroRatingValidation(t *testing.T) {
	f, pom := newPomodoroFixture(t)
	ctx := context.Background()

	session, err := f.svc.Start(ctx, StartSessionInput{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	cycle, err := pom.StartCycle(ctx, StartCycleInput{SessionID: session.ID})
	if err != nil {
		t.Fatalf("start cycle: %v", err)
	}

	bad := 6
	if _, err := pom.CompleteCycle(ctx, cycle.ID, CompleteCycleInput{Effectiveness: &bad}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("rating 6 should be rejected, got %v", err)
	}
	got, err := f.repos.Cycles.GetByID(testDBC(ctx), cycle.ID)
	if err != nil {
		t.Fatalf("get cycle: %v", err)
	}
	if got.Completed {
		t.Fatalf("rejected completion still closed the cycle")
	}
}

func TestPomodoroBreakCyclePausesSession(t *testing.T) {
	f, pom := newPomodoroFixture(t)
	ctx := context.Background()

	session, err := f.svc.Start(ctx, StartSessionInput{})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	cycle, err := pom.StartCycle(ctx, StartCycleInput{SessionID: session.ID, CycleType: domain.CycleTypeShortBreak})
	if err != nil {
		t.Fatalf("start break cycle: %v", err)
	}

	snap, err := f.svc.TimerState(session.ID)
	if err != nil {
		t.Fatalf("timer state: %v", err)
	}
	if !snap.IsPaused {
		t.Fatalf("break cycle should pause the timer")
	}

	if _, err := pom.CompleteCycle(ctx, cycle.ID, CompleteCycleInput{}); err != nil {
		t.Fatalf("complete break: %v", err)
	}
	snap, err = f.svc.TimerState(session.ID)
	if err != nil {
		t.Fatalf("timer state: %v", err)
	}
	if snap.IsPaused {
		t.Fatalf("completing the break cycle should resume the timer")
	}
}
