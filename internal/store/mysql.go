package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

// Config defines configurations to connect the mirror database.
type Config struct {
	DSN                string `mapstructure:"dsn"`
	Automigrate        bool   `mapstructure:"automigrate"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

// MYSQLStore implements the daily-summary mirror on MySQL.
type MYSQLStore struct {
	db    *sqlx.DB
	close context.CancelFunc
}

//go:embed sql
var fs embed.FS

// New connects to the database, optionally applies migrations and returns
// a new MYSQLStore.
func New(ctx context.Context, cfg Config) (*MYSQLStore, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	d, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("couldn't open database: %w", err)
	}

	if cfg.MaxOpenConnections > 0 {
		d.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		d.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	d.SetConnMaxLifetime(2 * time.Minute)
	d.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	defer pingCancel()
	if err := d.PingContext(pingCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.Automigrate {
		slog.Default().InfoContext(ctx, "applying migrations")
		if err := Migrate(d.DB); err != nil {
			d.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	ms := &MYSQLStore{
		db:    d,
		close: cancel,
	}

	go func() {
		<-ctx.Done()
		d.Close()
	}()

	return ms, nil
}

// normalizeDSN forces parseTime on the connection so DATE columns scan
// into time.Time.
func normalizeDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	c.ParseTime = true
	return c.FormatDSN(), nil
}

// Migrate applies the embedded migrations.
func Migrate(db *sql.DB) error {
	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: fs,
		Root:       "sql",
	}
	n, err := migrate.Exec(db, "mysql", src, migrate.Up)
	if err != nil {
		return fmt.Errorf("can't apply migrations: %w", err)
	}
	slog.Default().Info("migrations applied", slog.Int("count", n))
	return nil
}

// Close releases the underlying connection pool.
func (ms *MYSQLStore) Close() {
	ms.close()
}
