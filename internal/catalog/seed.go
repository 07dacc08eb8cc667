package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/botmesero/mesero/core/logger"
)

type demoCategory struct {
	name, slug string
	products   []demoProduct
}

type demoProduct struct {
	name, price string
	ordered     int
}

// demoMenu is a small restaurant menu for local runs without the ordering
// app. The ordered quantities give the ranking something to show.
var demoMenu = []demoCategory{
	{name: "Platos fuertes", slug: "platos-fuertes", products: []demoProduct{
		{name: "Seco de pollo", price: "6.75", ordered: 4},
		{name: "Encebollado", price: "5.50", ordered: 7},
		{name: "Churrasco", price: "8.25", ordered: 2},
	}},
	{name: "Bebidas", slug: "bebidas", products: []demoProduct{
		{name: "Café pasado", price: "1.50", ordered: 5},
		{name: "Jugo de naranjilla", price: "2.00", ordered: 3},
	}},
	{name: "Postres", slug: "postres", products: []demoProduct{
		{name: "Helado de paila", price: "2.75"},
	}},
}

// SeedDemo fills an empty catalog with demoMenu and one demo order. A
// catalog that already has categories is left untouched.
func SeedDemo(ctx context.Context, db *sqlx.DB) error {
	start := time.Now()
	var existing int
	if err := db.GetContext(ctx, &existing, `SELECT COUNT(*) FROM "Category"`); err != nil {
		return fmt.Errorf("seed demo: count categories: %w", err)
	}
	if existing > 0 {
		logger.Debug(ctx, "service.catalog", "seed.skip",
			slog.String("op", "seed_demo"),
			slog.Int("rows", existing),
		)
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed demo: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	products, err := insertDemoMenu(ctx, tx)
	if err != nil {
		return fmt.Errorf("seed demo: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed demo: commit: %w", err)
	}
	logger.Info(ctx, "service.catalog", "seed.done",
		slog.String("op", "seed_demo"),
		slog.String("driver", db.DriverName()),
		slog.Int("rows", products),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func insertDemoMenu(ctx context.Context, tx *sqlx.Tx) (int, error) {
	var orderID int64
	err := tx.QueryRowxContext(ctx, `INSERT INTO "Order" ("chatId", status) VALUES (0, 'demo') RETURNING id`).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	insertCategory := tx.Rebind(`INSERT INTO "Category" (name, slug) VALUES (?, ?) RETURNING id`)
	insertProduct := tx.Rebind(`INSERT INTO "Product" (name, price, "categoryId") VALUES (?, ?, ?) RETURNING id`)
	insertItem := tx.Rebind(`INSERT INTO "OrderItem" ("orderId", "productId", quantity) VALUES (?, ?, ?)`)

	products := 0
	for _, c := range demoMenu {
		var categoryID int64
		if err := tx.QueryRowxContext(ctx, insertCategory, c.name, c.slug).Scan(&categoryID); err != nil {
			return 0, fmt.Errorf("insert category %s: %w", c.slug, err)
		}
		for _, p := range c.products {
			var productID int64
			if err := tx.QueryRowxContext(ctx, insertProduct, p.name, p.price, categoryID).Scan(&productID); err != nil {
				return 0, fmt.Errorf("insert product %s: %w", p.name, err)
			}
			products++
			if p.ordered == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, insertItem, orderID, productID, p.ordered); err != nil {
				return 0, fmt.Errorf("insert order item %s: %w", p.name, err)
			}
		}
	}
	return products, nil
}
