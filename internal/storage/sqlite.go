package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/driphype/shopbot/internal/config"
	"github.com/driphype/shopbot/internal/logger"
)

// OpenSQLite opens the embedded file backend and applies migrations.
// The driver is CGO-free, so the same binary serves both backends.
func OpenSQLite(cfg config.DatabaseConfig) (Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", cfg.Path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	took := time.Since(start)
	if err != nil {
		logger.Error(ctx, "db", "db.connect",
			slog.String("driver", "sqlite"),
			slog.String("path", cfg.Path),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	// A single writer avoids SQLITE_BUSY churn under concurrent updates.
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info(ctx, "db", "db.connect",
		slog.String("driver", "sqlite"),
		slog.String("path", cfg.Path),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return &sqlStore{db: db, returning: false}, nil
}

func migrateSQLite(db *sqlx.DB) error {
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	sourceURL := "file://" + filepath.Join(migrationsDir(), "sqlite")
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", upErr)
	}

	ver, _, _ := m.Version()
	logger.Info(context.Background(), "db.migrate", "summary",
		slog.Uint64("version", uint64(ver)),
		slog.Bool("changed", upErr == nil),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}
