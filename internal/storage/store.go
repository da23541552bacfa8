package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finanzas/internal/core"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver selects the relational store dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Validate reports whether the driver is supported.
func (d Driver) Validate() error {
	switch d {
	case DriverPostgres, DriverSQLite:
		return nil
	}
	return fmt.Errorf("unsupported database driver %q", d)
}

func (d Driver) sqlName() string {
	return string(d)
}

// SQLiteDSN builds a modernc DSN for a database file with foreign keys
// enforced, matching Postgres semantics for referenced rows.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Options configures Open.
type Options struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Migrate applies pending migrations before the store is returned.
	Migrate bool
}

// Store owns the connection pool and the repositories built on top of it.
type Store struct {
	db *sql.DB

	Users          *UserStore
	Categories     *Repository[core.Named]
	PaymentMethods *Repository[core.Named]
	IncomeTypes    *Repository[core.Named]
	Expenses       *Repository[core.Expense]
	Incomes        *Repository[core.Income]
	SavingsGoals   *Repository[core.SavingsGoal]
}

// Open connects to the database, verifies the connection and optionally
// runs migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if err := opts.Driver.Validate(); err != nil {
		return nil, err
	}
	if opts.Driver == DriverSQLite {
		if err := ensureSQLiteDir(opts.DSN); err != nil {
			return nil, err
		}
	}

	if opts.Migrate {
		if err := RunMigrations(opts.Driver, opts.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(opts.Driver.sqlName(), opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", opts.Driver, err)
	}

	if opts.Driver == DriverSQLite {
		// SQLite allows a single writer; serialising through one connection
		// turns lock contention into pool queueing.
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Database connection established",
		"driver", opts.Driver,
		"migrated", opts.Migrate)

	return newStore(db), nil
}

func newStore(db *sql.DB) *Store {
	return &Store{
		db:             db,
		Users:          &UserStore{db: db},
		Categories:     NewRepository(db, Categories),
		PaymentMethods: NewRepository(db, PaymentMethods),
		IncomeTypes:    NewRepository(db, IncomeTypes),
		Expenses:       NewRepository(db, Expenses),
		Incomes:        NewRepository(db, Incomes),
		SavingsGoals:   NewRepository(db, SavingsGoals),
	}
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return core.Dependency("database unreachable", err)
	}
	return nil
}

// Now returns the database clock, used as a liveness probe.
func (s *Store) Now(ctx context.Context) (time.Time, error) {
	var now timestamp
	if err := s.db.QueryRowContext(ctx, "SELECT CURRENT_TIMESTAMP").Scan(&now); err != nil {
		return time.Time{}, core.Dependency("database connection error", err)
	}
	return now.Time, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	return nil
}

// timestamp scans database timestamps that Postgres returns as time.Time
// and SQLite as text.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case []byte:
		return t.Scan(string(v))
	case string:
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("cannot parse timestamp %q", v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}
