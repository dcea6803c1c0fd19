// Package testdb provides a shared PostgreSQL testcontainer for integration
// tests.
package testdb

import (
	"context"
	"sync"
	"testing"

	"student-fee-service/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

var (
	sharedContainer *PostgresContainer
	sharedOnce      sync.Once
)

type PostgresContainer struct {
	Container *postgres.PostgresContainer
	DB        *bun.DB
	DSN       string
}

// SetupSharedPostgres starts one PostgreSQL container for the whole test
// binary. Tests using it cannot run in parallel.
//
// Usage:
//
//	func TestRepository(t *testing.T) {
//	    pg := testdb.SetupSharedPostgres(t)
//	    defer pg.Cleanup(t)
//
//	    pg.RunMigrations(t, student.Models()...)
//
//	    t.Run("Create", func(t *testing.T) {
//	        testdb.CleanupTables(t, pg.DB, "fee_records", "students")
//	    })
//	}
func SetupSharedPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	sharedOnce.Do(func() {
		ctx := context.Background()
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("school_fees"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2),
			),
		)
		require.NoError(t, err)

		dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)

		bunDB := db.Open(dsn)
		require.NoError(t, bunDB.PingContext(ctx))

		sharedContainer = &PostgresContainer{
			Container: pgContainer,
			DB:        bunDB,
			DSN:       dsn,
		}
	})

	require.NotNil(t, sharedContainer, "postgres container failed to start")
	return sharedContainer
}

func (pc *PostgresContainer) Cleanup(t *testing.T) {
	t.Helper()

	if pc.DB != nil {
		pc.DB.Close()
	}
	if pc.Container != nil {
		if err := pc.Container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
}

// RunMigrations creates the tables of models with the service's own
// migration code.
func (pc *PostgresContainer) RunMigrations(t *testing.T, models ...interface{}) {
	t.Helper()
	require.NoError(t, db.RunMigrations(context.Background(), pc.DB, models...), "failed to run migrations")
}

func CleanupTables(t *testing.T, db *bun.DB, tables ...string) {
	t.Helper()

	ctx := context.Background()
	for _, table := range tables {
		_, err := db.ExecContext(ctx, "TRUNCATE "+table+" CASCADE")
		require.NoError(t, err, "failed to truncate table: %s", table)
	}
}
