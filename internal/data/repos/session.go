package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/pkg/dbctx"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

// SessionRepo is the durable side of the session store. All access is by
// primary key; the one exception is GetOpen, which backs the
// single-active-session invariant check at start.
type SessionRepo interface {
	Create(dbc dbctx.Context, session *domain.StudySession) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.StudySession, error)
	GetOpen(dbc dbctx.Context) (*domain.StudySession, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{
		db:  db,
		log: baseLog.With("repo", "SessionRepo"),
	}
}

func (r *sessionRepo) Create(dbc dbctx.Context, session *domain.StudySession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	return dbc.DB(r.db).Create(session).Error
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.StudySession, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row domain.StudySession
	if err := dbc.DB(r.db).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *sessionRepo) GetOpen(dbc dbctx.Context) (*domain.StudySession, error) {
	var row domain.StudySession
	if err := dbc.DB(r.db).
		Where("end_time IS NULL").
		Order("start_time DESC").
		Limit(1).
		Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]any{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&domain.StudySession{}).
		Where("id = ?", id).
		Updates(updates).Error
}
