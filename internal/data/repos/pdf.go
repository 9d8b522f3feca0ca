package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/pkg/dbctx"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

type PDFRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.PDF, error)
	// UpdateProgress advances the document's reading position. LastReadPage
	// only moves forward; progress hits 100 when the last page is reached.
	UpdateProgress(dbc dbctx.Context, id uuid.UUID, currentPage int) error
}

type pdfRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPDFRepo(db *gorm.DB, baseLog *logger.Logger) PDFRepo {
	return &pdfRepo{
		db:  db,
		log: baseLog.With("repo", "PDFRepo"),
	}
}

func (r *pdfRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.PDF, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row domain.PDF
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

func (r *pdfRepo) UpdateProgress(dbc dbctx.Context, id uuid.UUID, currentPage int) error {
	if id == uuid.Nil || currentPage < 1 {
		return nil
	}
	pdf, err := r.GetByID(dbc, id)
	if err != nil {
		return err
	}
	if pdf == nil {
		return nil
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"current_page": currentPage,
		"updated_at":   now,
	}
	if currentPage > pdf.LastReadPage {
		updates["last_read_page"] = currentPage
	}
	if pdf.TotalPages > 0 {
		updates["reading_progress"] = float64(currentPage) / float64(pdf.TotalPages) * 100
		if currentPage >= pdf.TotalPages && pdf.CompletedAt == nil {
			updates["completed_at"] = now
		}
	}
	return dbc.DB(r.db).
		Model(&domain.PDF{}).
		Where("id = ?", id).
		Updates(updates).Error
}
