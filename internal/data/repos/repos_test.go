package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/pkg/dbctx"
	"github.com/studysprint/studysprint-backend/internal/testutil"
)

func newTestSet(t *testing.T) (Set, dbctx.Context, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	return NewSet(db, testutil.Logger(t)), dbctx.Context{Ctx: context.Background()}, db
}

func TestSessionRepoMissingRowIsNil(t *testing.T) {
	rs, dbc, _ := newTestSet(t)

	got, err := rs.Sessions.GetByID(dbc, uuid.New())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing row, got %+v", got)
	}
}

func TestSessionRepoCreateAndGet(t *testing.T) {
	rs, dbc, _ := newTestSet(t)

	session := &domain.StudySession{
		SessionKind: domain.SessionKindStudy,
		Status:      domain.SessionStatusActive,
		StartTime:   time.Now().UTC(),
	}
	if err := rs.Sessions.Create(dbc, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.ID == uuid.Nil {
		t.Fatalf("create did not assign an id")
	}

	got, err := rs.Sessions.GetByID(dbc, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != session.ID {
		t.Fatalf("round trip failed: %+v", got)
	}
}

func TestSessionRepoGetOpen(t *testing.T) {
	rs, dbc, _ := newTestSet(t)

	open, err := rs.Sessions.GetOpen(dbc)
	if err != nil {
		t.Fatalf("get open: %v", err)
	}
	if open != nil {
		t.Fatalf("expected no open session, got %+v", open)
	}

	ended := time.Now().UTC().Add(-time.Hour)
	endedAt := time.Now().UTC().Add(-30 * time.Minute)
	closed := &domain.StudySession{StartTime: ended, EndTime: &endedAt, Status: domain.SessionStatusEnded}
	if err := rs.Sessions.Create(dbc, closed); err != nil {
		t.Fatalf("create closed: %v", err)
	}

	live := &domain.StudySession{StartTime: time.Now().UTC(), Status: domain.SessionStatusActive}
	if err := rs.Sessions.Create(dbc, live); err != nil {
		t.Fatalf("create live: %v", err)
	}

	open, err = rs.Sessions.GetOpen(dbc)
	if err != nil {
		t.Fatalf("get open: %v", err)
	}
	if open == nil || open.ID != live.ID {
		t.Fatalf("expected the live session, got %+v", open)
	}
}

func TestSessionRepoUpdateFields(t *testing.T) {
	rs, dbc, _ := newTestSet(t)

	session := &domain.StudySession{StartTime: time.Now().UTC(), Status: domain.SessionStatusActive}
	if err := rs.Sessions.Create(dbc, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := rs.Sessions.UpdateFields(dbc, session.ID, map[string]any{
		"notes":       "done",
		"focus_score": 72.5,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := rs.Sessions.GetByID(dbc, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Notes != "done" || got.FocusScore != 72.5 {
		t.Fatalf("fields not patched: %+v", got)
	}
}

func TestSessionBreakRepoListOrder(t *testing.T) {
	rs, dbc, _ := newTestSet(t)

	sessionID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 2; i >= 0; i-- {
		brk := &domain.SessionBreak{
			SessionID:  sessionID,
			BreakType:  domain.BreakTypePlanned,
			BreakStart: base.Add(time.Duration(i) * 10 * time.Minute),
		}
		if err := rs.Breaks.Append(dbc, brk); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rows, err := rs.Breaks.ListBySession(dbc, sessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 breaks, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].BreakStart.Before(rows[i-1].BreakStart) {
			t.Fatalf("breaks out of order: %v before %v", rows[i].BreakStart, rows[i-1].BreakStart)
		}
	}
}

func TestSessionBreakRepoClose(t *testing.T) {
	rs, dbc, _ := newTestSet(t)

	start := time.Now().UTC().Add(-5 * time.Minute)
	brk := &domain.SessionBreak{SessionID: uuid.New(), BreakType: domain.BreakTypePomodoro, BreakStart: start}
	if err := rs.Breaks.Append(dbc, brk); err != nil {
		t.Fatalf("append: %v", err)
	}

	end := time.Now().UTC()
	if err := rs.Breaks.Update(dbc, brk.ID, map[string]any{
		"break_end":        end,
		"duration_seconds": int(end.Sub(start).Seconds()),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	rows, err := rs.Breaks.ListBySession(dbc, brk.SessionID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].BreakEnd == nil || rows[0].DurationSeconds < 299 {
		t.Fatalf("break not closed: %+v", rows[0])
	}
}

func TestPomodoroCycleRepoCount(t *testing.T) {
	rs, dbc, _ := newTestSet(t)

	sessionID := uuid.New()
	for i := 1; i <= 3; i++ {
		cycle := &domain.PomodoroCycle{
			SessionID:   sessionID,
			CycleNumber: i,
			CycleType:   domain.CycleTypeWork,
			StartedAt:   time.Now().UTC(),
		}
		if err := rs.Cycles.Append(dbc, cycle); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// A cycle on another session must not count.
	other := &domain.PomodoroCycle{SessionID: uuid.New(), CycleNumber: 1, CycleType: domain.CycleTypeWork, StartedAt: time.Now().UTC()}
	if err := rs.Cycles.Append(dbc, other); err != nil {
		t.Fatalf("append other: %v", err)
	}

	count, err := rs.Cycles.CountBySession(dbc, sessionID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 cycles, got %d", count)
	}
}

func TestPDFRepoProgressForwardOnly(t *testing.T) {
	rs, dbc, db := newTestSet(t)

	pdf := &domain.PDF{ID: uuid.New(), Title: "calculus", TotalPages: 100, CurrentPage: 1, LastReadPage: 40}
	if err := db.Create(pdf).Error; err != nil {
		t.Fatalf("seed pdf: %v", err)
	}

	if err := rs.PDFs.UpdateProgress(dbc, pdf.ID, 25); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	got, err := rs.PDFs.GetByID(dbc, pdf.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentPage != 25 {
		t.Fatalf("current page not moved, got %d", got.CurrentPage)
	}
	if got.LastReadPage != 40 {
		t.Fatalf("last read page moved backwards: %d", got.LastReadPage)
	}
	if got.ReadingProgress != 25 {
		t.Fatalf("expected 25%% progress, got %v", got.ReadingProgress)
	}

	if err := rs.PDFs.UpdateProgress(dbc, pdf.ID, 100); err != nil {
		t.Fatalf("update progress: %v", err)
	}
	got, err = rs.PDFs.GetByID(dbc, pdf.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CompletedAt == nil {
		t.Fatalf("reaching the last page should set completion")
	}
	if got.LastReadPage != 100 {
		t.Fatalf("last read page not advanced, got %d", got.LastReadPage)
	}
}
