package repos

import (
	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

// Set bundles every repo the services need.
type Set struct {
	Sessions SessionRepo
	Breaks   SessionBreakRepo
	Cycles   PomodoroCycleRepo
	PDFs     PDFRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Sessions: NewSessionRepo(db, log),
		Breaks:   NewSessionBreakRepo(db, log),
		Cycles:   NewPomodoroCycleRepo(db, log),
		PDFs:     NewPDFRepo(db, log),
	}
}
