package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"admissions/internal/platform/config"
)

// Driver names registered by the imported database/sql drivers.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Pool wraps a *sql.DB with health checking capabilities.
type Pool struct {
	db     *sql.DB
	driver string
}

// OpenPostgres opens and pings a postgres pool.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	return open(ctx, DriverPostgres, cfg.URL, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime)
}

// OpenSQLite opens a single-connection sqlite database at path. WAL mode lets
// queries read while the audit writer appends.
func OpenSQLite(ctx context.Context, path string) (*Pool, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	return open(ctx, DriverSQLite, dsn, 1, 1, 0)
}

func open(ctx context.Context, driver, dsn string, maxOpen, maxIdle int, lifetime time.Duration) (*Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: empty connection string", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{db: db, driver: driver}, nil
}

// DB returns the underlying *sql.DB for query operations.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Driver reports which database/sql driver backs the pool.
func (p *Pool) Driver() string {
	return p.driver
}

// Health checks if the database is reachable.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return fmt.Errorf("database not configured")
	}
	return p.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
