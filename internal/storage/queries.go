package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/driphype/shopbot/internal/logger"
)

// sqlStore implements Store over sqlx for both backends. Queries are written
// with `?` placeholders and rebound per driver; the only behavioural split is
// identifier generation on insert.
type sqlStore struct {
	db *sqlx.DB

	// returning selects INSERT ... RETURNING id (postgres) over
	// LastInsertId (sqlite).
	returning bool
}

func (s *sqlStore) ListProducts(ctx context.Context) ([]Product, error) {
	products := []Product{}
	query := s.db.Rebind(`SELECT id, name, description, price, image_url, category, product_type, sizes, created_at
		FROM products ORDER BY created_at DESC, id DESC`)
	if err := s.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *sqlStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	query := s.db.Rebind(`SELECT id, name, description, price, image_url, category, product_type, sizes, created_at
		FROM products WHERE id = ?`)
	if err := s.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (s *sqlStore) InsertProduct(ctx context.Context, p Product) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO products (name, description, price, image_url, category, product_type, sizes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{p.Name, p.Description, p.Price, p.ImageURL, p.Category, p.ProductType, p.Sizes, p.CreatedAt}

	id, err := s.insert(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert product: %w", err)
	}
	logger.Info(ctx, "db", "product.insert",
		slog.Int64("product_id", id),
		slog.String("name", logger.SanitizeLimit(p.Name, 64)),
	)
	return id, nil
}

func (s *sqlStore) DeleteProduct(ctx context.Context, id int64) error {
	query := s.db.Rebind(`DELETE FROM products WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %d: rows affected: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	logger.Info(ctx, "db", "product.delete", slog.Int64("product_id", id))
	return nil
}

func (s *sqlStore) InsertOrder(ctx context.Context, o Order) (int64, error) {
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO orders (user_id, username, products, total_price, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	args := []interface{}{o.UserID, o.Username, o.Items, o.TotalPrice, o.Status, o.CreatedAt}

	id, err := s.insert(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	logger.Info(ctx, "db", "order.insert",
		slog.Int64("order_id", id),
		slog.Int64("user_id", o.UserID),
	)
	return id, nil
}

func (s *sqlStore) ListRecentOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 10
	}
	orders := []Order{}
	query := s.db.Rebind(`SELECT id, user_id, username, products, total_price, status, created_at
		FROM orders ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &orders, query, limit); err != nil {
		return nil, fmt.Errorf("list recent orders: %w", err)
	}
	return orders, nil
}

func (s *sqlStore) UpsertUser(ctx context.Context, u User) error {
	// ON CONFLICT upsert syntax is shared by postgres and sqlite.
	query := s.db.Rebind(`INSERT INTO users (user_id, username, first_name, last_name, is_admin)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			is_admin = excluded.is_admin`)
	if _, err := s.db.ExecContext(ctx, query, u.UserID, u.Username, u.FirstName, u.LastName, u.IsAdmin); err != nil {
		return fmt.Errorf("upsert user %d: %w", u.UserID, err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if s.returning {
		var id int64
		q := s.db.Rebind(query + " RETURNING id")
		if err := s.db.GetContext(ctx, &id, q, args...); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
