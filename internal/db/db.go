package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/studysprint/studysprint-backend/internal/domain"
	"github.com/studysprint/studysprint-backend/internal/platform/envutil"
	"github.com/studysprint/studysprint-backend/internal/platform/logger"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewService connects to Postgres by default; DB_DRIVER=sqlite selects an
// embedded database for local development.
func NewService(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	driver := strings.ToLower(envutil.String("DB_DRIVER", "postgres"))
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		path := envutil.String("SQLITE_PATH", "studysprint.db")
		serviceLog.Info("Connecting to SQLite", "path", path)
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	default:
		host := envutil.String("POSTGRES_HOST", "localhost")
		port := envutil.String("POSTGRES_PORT", "5432")
		user := envutil.String("POSTGRES_USER", "postgres")
		password := envutil.String("POSTGRES_PASSWORD", "")
		name := envutil.String("POSTGRES_NAME", "studysprint")
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
		serviceLog.Info("Connecting to Postgres", "host", host, "db", name)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
	}
	if err != nil {
		serviceLog.Error("Failed to connect to database", "driver", driver, "error", err)
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver != "sqlite" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
			return nil, fmt.Errorf("enable uuid-ossp: %w", err)
		}
	}

	return &Service{db: db, log: serviceLog}, nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := s.db.AutoMigrate(
		&domain.StudySession{},
		&domain.SessionBreak{},
		&domain.PomodoroCycle{},
		&domain.PDF{},
	); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}

func (s *Service) DB() *gorm.DB {
	return s.db
}
