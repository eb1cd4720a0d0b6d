package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/robuust/reverserelations/internal/infrastructure/config"
)

//go:embed migrations
var migrations embed.FS

// Database represents an open connection to the relations store
type Database struct {
	DB     *sql.DB
	Driver string
}

// Open opens the database selected by cfg.Driver
func Open(cfg *config.DatabaseConfig) (*Database, error) {
	var driverName string
	switch cfg.Driver {
	case config.DriverPostgres:
		driverName = "postgres"
	case config.DriverSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	if cfg.Driver == config.DriverSQLite {
		// A single writer avoids SQLITE_BUSY on the shared file
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{DB: db, Driver: cfg.Driver}, nil
}

// Placeholder returns the bind parameter format of the driver
func (d *Database) Placeholder() sq.PlaceholderFormat {
	return PlaceholderFor(d.Driver)
}

// PlaceholderFor returns the bind parameter format for a driver name
func PlaceholderFor(driver string) sq.PlaceholderFormat {
	if driver == config.DriverPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// NewMigrate returns a migrate instance over the embedded migrations.
// The returned instance shares d.DB; do not Close it while the database is in use.
func (d *Database) NewMigrate() (*migrate.Migrate, error) {
	source, err := iofs.New(migrations, "migrations/"+d.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	var driver migratedb.Driver
	switch d.Driver {
	case config.DriverPostgres:
		driver, err = postgres.WithInstance(d.DB, &postgres.Config{})
	case config.DriverSQLite:
		driver, err = sqlite.WithInstance(d.DB, &sqlite.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", d.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, d.Driver, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return m, nil
}

// RunMigrations applies all pending migrations
func (d *Database) RunMigrations() error {
	m, err := d.NewMigrate()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck checks if the database connection is healthy
func (d *Database) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
