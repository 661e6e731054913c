package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/deckforge/deckforge-backend/internal/platform/envutil"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
	"github.com/deckforge/deckforge-backend/internal/types"
)

// Service owns the gorm connection. Run persistence is a session log, not
// a correctness dependency: callers log and swallow store errors.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New connects to Postgres when DB_DRIVER=postgres (the default when
// POSTGRES_HOST is set) and falls back to a local SQLite file otherwise.
func New(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")

	driver := strings.ToLower(envutil.Str("DB_DRIVER", ""))
	if driver == "" {
		if envutil.Str("POSTGRES_HOST", "") != "" {
			driver = "postgres"
		} else {
			driver = "sqlite"
		}
	}

	var (
		gdb *gorm.DB
		err error
	)
	switch driver {
	case "postgres":
		host := envutil.Str("POSTGRES_HOST", "localhost")
		port := envutil.Str("POSTGRES_PORT", "5432")
		user := envutil.Str("POSTGRES_USER", "postgres")
		password := envutil.Str("POSTGRES_PASSWORD", "")
		name := envutil.Str("POSTGRES_NAME", "deckforge")

		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
		serviceLog.Info("Connecting to Postgres...", "host", host, "db", name)
		gdb, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
	case "sqlite":
		path := envutil.Str("SQLITE_PATH", "deckforge.db")
		serviceLog.Info("Opening SQLite database...", "path", path)
		gdb, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
	if err != nil {
		serviceLog.Error("Failed to connect to database", "driver", driver, "error", err)
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	return &Service{db: gdb, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := s.db.AutoMigrate(
		&types.GenerationRun{},
		&types.LLMCallLog{},
	); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	s.log.Info("Auto migration complete")
	return nil
}
