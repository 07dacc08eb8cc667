package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/botmesero/mesero/core/logger"
)

// Seeder loads reference data once the database is open.
type Seeder interface {
	Seed(ctx context.Context, db *sqlx.DB) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, db *sqlx.DB) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, db *sqlx.DB) error {
	return f(ctx, db)
}

const seedTimeout = 30 * time.Second

func runSeeders(db *sqlx.DB, seeders []Seeder) error {
	if len(seeders) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	start := time.Now()
	for i, s := range seeders {
		if err := s.Seed(ctx, db); err != nil {
			logger.Error(ctx, "db", "db.seed",
				slog.Int("seeder", i),
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			return fmt.Errorf("seeder %d: %w", i, err)
		}
	}
	logger.Info(ctx, "db", "db.seed",
		slog.String("status", "ok"),
		slog.Int("rows", len(seeders)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
