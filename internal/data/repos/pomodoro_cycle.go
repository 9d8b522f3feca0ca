package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/pkg/dbctx"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

type PomodoroCycleRepo interface {
	Append(dbc dbctx.Context, cycle *domain.PomodoroCycle) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.PomodoroCycle, error)
	Update(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error
	CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error)
}

type pomodoroCycleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPomodoroCycleRepo(db *gorm.DB, baseLog *logger.Logger) PomodoroCycleRepo {
	return &pomodoroCycleRepo{
		db:  db,
		log: baseLog.With("repo", "PomodoroCycleRepo"),
	}
}

func (r *pomodoroCycleRepo) Append(dbc dbctx.Context, cycle *domain.PomodoroCycle) error {
	if cycle.ID == uuid.Nil {
		cycle.ID = uuid.New()
	}
	return dbc.DB(r.db).Create(cycle).Error
}

func (r *pomodoroCycleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.PomodoroCycle, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row domain.PomodoroCycle
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

func (r *pomodoroCycleRepo) Update(dbc dbctx.Context, id uuid.UUID, updates map[string]any) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).
		Model(&domain.PomodoroCycle{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *pomodoroCycleRepo) CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error) {
	if sessionID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := dbc.DB(r.db).
		Model(&domain.PomodoroCycle{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
