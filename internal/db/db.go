package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"student-fee-service/internal/config"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// New opens the connection pool and pings it, retrying with a fixed delay.
// The returned *bun.DB is owned by the caller and must be closed with Close.
func New(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*bun.DB, error) {
	db := Open(cfg.URL)
	configurePool(db, cfg, logger)

	attempts := cfg.ConnectRetries
	if attempts <= 0 {
		attempts = 1
	}
	delay := time.Duration(cfg.ConnectRetryDelay) * time.Second

	if err := pingWithRetry(ctx, db, attempts, delay, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database connected successfully")
	return db, nil
}

// Open creates a bun handle for dsn without touching the network.
func Open(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

type pinger interface {
	PingContext(ctx context.Context) error
}

func pingWithRetry(ctx context.Context, db pinger, attempts int, delay time.Duration, logger *slog.Logger) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		logger.Error("database connection attempt failed", "attempt", attempt, "max_attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", attempts, err)
}

func configurePool(db *bun.DB, cfg config.DatabaseConfig, logger *slog.Logger) {
	sqlDB := db.DB

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 25
	}
	sqlDB.SetMaxOpenConns(maxOpen)

	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 10
	}
	sqlDB.SetMaxIdleConns(maxIdle)

	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime == 0 {
		connMaxLifetime = 300
	}
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 60
	}
	sqlDB.SetConnMaxIdleTime(time.Duration(connMaxIdleTime) * time.Second)

	logger.Info("database pool configured",
		"max_open_conns", maxOpen,
		"max_idle_conns", maxIdle,
		"conn_max_lifetime_seconds", connMaxLifetime,
		"conn_max_idle_time_seconds", connMaxIdleTime,
	)
}

func Close(db *bun.DB) {
	if db != nil {
		db.Close()
	}
}

// RunMigrations creates the table of every model if it does not exist yet.
// Models may add constraints and indexes through bun's create-table hooks.
func RunMigrations(ctx context.Context, db bun.IDB, models ...interface{}) error {
	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model: %w", err)
		}
	}
	slog.Info("database migrations completed successfully")
	return nil
}
