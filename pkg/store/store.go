// Package store persists the catalog, run ledger and conversation history
// in SQLite or PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/history"
	"github.com/ujjwalredd/Axiomeer/pkg/ledger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	_ catalog.Store = (*Store)(nil)
	_ ledger.Ledger = (*Runs)(nil)
	_ history.Store = (*Store)(nil)
)

func init() {
	// sqlx knows the cgo driver as sqlite3; modernc registers as sqlite.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store is a SQL-backed catalog, ledger and history store.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ParseURL maps a database URL onto a driver name and its DSN. Postgres
// URLs pass through. sqlite:///rel.db and sqlite:////abs.db follow the
// SQLAlchemy convention; sqlite://file.db and bare paths are also accepted.
func ParseURL(databaseURL string) (driver, dsn string, err error) {
	u := strings.TrimSpace(databaseURL)
	switch {
	case u == "":
		return "", "", errors.New("database url is empty")
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DriverPostgres, u, nil
	case strings.HasPrefix(u, "sqlite:///"):
		u = strings.TrimPrefix(u, "sqlite:///")
	case strings.HasPrefix(u, "sqlite://"):
		u = strings.TrimPrefix(u, "sqlite://")
	case strings.Contains(u, "://"):
		return "", "", fmt.Errorf("unsupported database url scheme in %q", databaseURL)
	}
	if u == "" {
		return "", "", fmt.Errorf("database url %q has no path", databaseURL)
	}
	if u == ":memory:" {
		return DriverSQLite, "file::memory:?_pragma=foreign_keys(1)", nil
	}
	return DriverSQLite, u + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

// Open connects to databaseURL and creates missing tables.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	driver, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time avoids SQLITE_BUSY under concurrent appends.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("database ready", zap.String("driver", driver))
	return s, nil
}

// New wraps an existing connection. The driver name of db selects the SQL
// dialect.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) postgres() bool {
	return s.db.DriverName() == DriverPostgres
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (s *Store) schema() []string {
	serial, float, boolean := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL", "INTEGER"
	if s.postgres() {
		serial, float, boolean = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION", "BOOLEAN"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS apps (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			capabilities TEXT NOT NULL DEFAULT '[]',
			freshness TEXT NOT NULL,
			citations_supported ` + boolean + ` NOT NULL,
			latency_est_ms INTEGER NOT NULL,
			cost_est_usd ` + float + ` NOT NULL,
			executor_type TEXT NOT NULL,
			executor_method TEXT NOT NULL,
			executor_url TEXT NOT NULL DEFAULT '',
			input_schema TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id ` + serial + `,
			app_id TEXT NOT NULL,
			task TEXT NOT NULL,
			client_id TEXT NOT NULL DEFAULT '',
			ok ` + boolean + ` NOT NULL,
			require_citations ` + boolean + ` NOT NULL,
			latency_ms INTEGER,
			output TEXT,
			validation_errors TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_app ON runs(app_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id ` + serial + `,
			client_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_client ON messages(client_id, id)`,
	}
}

// Timestamps are stored as RFC 3339 text so both dialects round-trip them
// identically.
func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
