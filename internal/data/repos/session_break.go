package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/pkg/dbctx"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

type SessionBreakRepo interface {
	Append(dbc dbctx.Context, brk *domain.SessionBreak) error
	Update(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.SessionBreak, error)
}

type sessionBreakRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionBreakRepo(db *gorm.DB, baseLog *logger.Logger) SessionBreakRepo {
	return &sessionBreakRepo{
		db:  db,
		log: baseLog.With("repo", "SessionBreakRepo"),
	}
}

func (r *sessionBreakRepo) Append(dbc dbctx.Context, brk *domain.SessionBreak) error {
	if brk.ID == uuid.Nil {
		brk.ID = uuid.New()
	}
	if brk.CreatedAt.IsZero() {
		brk.CreatedAt = time.Now().UTC()
	}
	return dbc.DB(r.db).Create(brk).Error
}

func (r *sessionBreakRepo) Update(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&domain.SessionBreak{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sessionBreakRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*domain.SessionBreak, error) {
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var rows []*domain.SessionBreak
	if err := dbc.DB(r.db).
		Where("session_id = ?", sessionID).
		Order("break_start ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
