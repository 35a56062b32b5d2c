package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"alawein/internal/platform/config"
	"alawein/migrations"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DB carries the pool together with the driver it was opened with, which
// the migrator and health checks need.
type DB struct {
	*sql.DB
	Driver string
}

func Open(cfg config.DatabaseConfig) (*DB, error) {
	driver, dsn := resolve(cfg.URL)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	// Each SQLite :memory: connection is a separate database.
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, Driver: driver}, nil
}

// OpenMemory opens a migrated in-memory SQLite database for tests and local runs.
func OpenMemory(ctx context.Context) (*DB, error) {
	db, err := Open(config.DatabaseConfig{URL: ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, "up"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func resolve(url string) (driver, dsn string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url
	case strings.HasPrefix(url, "file:"):
		return DriverSQLite, strings.TrimPrefix(url, "file:")
	default:
		return DriverSQLite, url
	}
}

func Migrate(ctx context.Context, db *DB, direction string) error {
	dialect := "sqlite3"
	if db.Driver == DriverPostgres {
		dialect = "postgres"
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}

	switch direction {
	case "up":
		return goose.UpContext(ctx, db.DB, ".")
	case "down":
		return goose.DownContext(ctx, db.DB, ".")
	case "status":
		return goose.StatusContext(ctx, db.DB, ".")
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}

func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

type gooseLogger struct{}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	log.Error().Str("component", "migrate").Msgf(format, v...)
}

func (gooseLogger) Printf(format string, v ...interface{}) {
	log.Debug().Str("component", "migrate").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
