package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/driphype/shopbot/internal/config"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store exposes backend-agnostic access to products, orders, and users.
// Placeholder syntax and identifier generation differ per backend but are
// invisible to callers.
type Store interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	InsertProduct(ctx context.Context, p Product) (int64, error)
	DeleteProduct(ctx context.Context, id int64) error

	InsertOrder(ctx context.Context, o Order) (int64, error)
	ListRecentOrders(ctx context.Context, limit int) ([]Order, error)

	UpsertUser(ctx context.Context, u User) error

	Close() error
}

// migrationsDir resolves the schema migration root relative to the working
// directory, mirroring how deployments lay out the binary.
func migrationsDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "migrations"
	}
	return filepath.Join(cwd, "migrations")
}

// Open connects the backend selected by configuration and applies migrations.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(cfg)
	case config.DriverSQLite:
		return OpenSQLite(cfg)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
