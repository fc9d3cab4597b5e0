//go:build integration

package containers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"admissions/internal/platform/config"
	"admissions/internal/platform/database"
	"admissions/migrations"
)

// AuditTables are the tables created by migrations, in truncation order.
var AuditTables = []string{"audit_logs"}

// PostgresContainer is a migrated Postgres reachable through the same pool
// type the server uses.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	Pool      *database.Pool
}

// NewPostgresContainer starts Postgres, opens a pool and applies migrations.
// It fails the test on any error.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("admissions_test"),
		postgres.WithUsername("admissions"),
		postgres.WithPassword("admissions_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	fail := func(format string, args ...any) {
		_ = container.Terminate(context.Background())
		t.Fatalf(format, args...)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fail("postgres connection string: %v", err)
	}
	pool, err := database.OpenPostgres(ctx, config.DatabaseConfig{
		URL:             dsn,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		fail("open postgres pool: %v", err)
	}
	if err := migrations.Up(ctx, pool.DB(), pool.Driver()); err != nil {
		_ = pool.Close()
		fail("apply migrations: %v", err)
	}

	// Shared across suites through the Manager; Ryuk removes it when the
	// test process exits.
	return &PostgresContainer{Container: container, DSN: dsn, Pool: pool}
}

// Reset empties tables, defaulting to AuditTables.
func (p *PostgresContainer) Reset(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		tables = AuditTables
	}
	stmt := "TRUNCATE TABLE " + strings.Join(tables, ", ")
	if _, err := p.Pool.DB().ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate %v: %w", tables, err)
	}
	return nil
}
