package database

import (
	"context"
	"fmt"

	"scoop_backend/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// schema backs the postgres store: one row per (logical table, PK, SK).
const schema = `
CREATE TABLE IF NOT EXISTS kv_items (
	table_name TEXT  NOT NULL,
	pk         TEXT  NOT NULL,
	sk         TEXT  NOT NULL,
	attrs      JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (table_name, pk, sk)
);
CREATE INDEX IF NOT EXISTS kv_items_sk_idx ON kv_items (table_name, sk);
`

func Connect(cfg *config.Config, logger *zap.Logger) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("connected to database", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	return db, nil
}

// Migrate creates the key-value table if it does not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate kv_items: %w", err)
	}
	return nil
}
