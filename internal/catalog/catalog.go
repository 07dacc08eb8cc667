// Package catalog reads the menu shared with the ordering mini-app:
// categories, products and the order history used for the ranking.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/botmesero/mesero/core/logger"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("catalog: not found")

// Category groups products on the menu.
type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	Slug string `db:"slug"`
}

// Product is a menu item. Price keeps the database text representation.
type Product struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	Price      string         `db:"price"`
	Image      sql.NullString `db:"image"`
	CategoryID int64          `db:"categoryId"`
}

// Ranked is a product with the total quantity ordered across all orders.
type Ranked struct {
	Product
	Quantity int64 `db:"quantity"`
}

// Store runs the catalog queries on postgres or sqlite.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const productColumns = `p.id, p.name, CAST(p.price AS TEXT) AS price, p.image, p."categoryId"`

// ListCategories returns every category ordered by id.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	start := time.Now()
	var out []Category
	err := s.db.SelectContext(ctx, &out, `SELECT id, name, slug FROM "Category" ORDER BY id`)
	s.logQuery(ctx, "list_categories", start, err, slog.Int("rows", len(out)))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// ListProductsByCategory returns the products of category id ordered by id.
// An unknown category yields an empty slice.
func (s *Store) ListProductsByCategory(ctx context.Context, categoryID int64) ([]Product, error) {
	start := time.Now()
	var out []Product
	query := s.db.Rebind(`SELECT ` + productColumns + ` FROM "Product" p WHERE p."categoryId" = ? ORDER BY p.id`)
	err := s.db.SelectContext(ctx, &out, query, categoryID)
	s.logQuery(ctx, "list_products", start, err,
		slog.Int64("category_id", categoryID),
		slog.Int("rows", len(out)),
	)
	if err != nil {
		return nil, fmt.Errorf("list products of category %d: %w", categoryID, err)
	}
	return out, nil
}

// GetProduct returns product id or ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	start := time.Now()
	var p Product
	query := s.db.Rebind(`SELECT ` + productColumns + ` FROM "Product" p WHERE p.id = ?`)
	err := s.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	s.logQuery(ctx, "get_product", start, err, slog.Int64("product_id", id))
	if err != nil {
		return Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// MostOrderedProduct sums OrderItem quantities per product and returns the
// top one. Ties go to the lowest product id. With no orders it returns
// ErrNotFound.
func (s *Store) MostOrderedProduct(ctx context.Context) (Ranked, error) {
	start := time.Now()
	var r Ranked
	err := s.db.GetContext(ctx, &r, `
		SELECT `+productColumns+`, SUM(oi.quantity) AS quantity
		FROM "OrderItem" oi
		JOIN "Product" p ON p.id = oi."productId"
		GROUP BY p.id, p.name, p.price, p.image, p."categoryId"
		ORDER BY SUM(oi.quantity) DESC, p.id ASC
		LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	attrs := []slog.Attr{}
	if err == nil {
		attrs = append(attrs, slog.Int64("product_id", r.ID), slog.Int64("quantity", r.Quantity))
	}
	s.logQuery(ctx, "most_ordered", start, err, attrs...)
	if err != nil {
		return Ranked{}, fmt.Errorf("most ordered product: %w", err)
	}
	return r, nil
}

func (s *Store) logQuery(ctx context.Context, op string, start time.Time, err error, attrs ...slog.Attr) {
	level := slog.LevelDebug
	base := []slog.Attr{
		slog.String("op", op),
		slog.String("driver", s.db.DriverName()),
		slog.Duration("query_duration", logger.Took(start)),
	}
	switch {
	case err == nil:
		base = append(base, slog.String("status", "ok"))
	case errors.Is(err, ErrNotFound):
		base = append(base, slog.String("status", "ok"), slog.Bool("found", false))
	default:
		level = slog.LevelError
		base = append(base,
			slog.String("status", logger.Status(err)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	logger.LogEvent(ctx, logger.SVCCatalog, level, "db.query", append(base, attrs...)...)
}

// FormatPrice renders a database price with two decimals. Values that are
// not numbers are returned unchanged.
func FormatPrice(raw string) string {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
