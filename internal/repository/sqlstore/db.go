// Package sqlstore is the durable home of the engine's cross-cycle state:
// threshold hysteresis, anomaly baselines, the action journal, and the audit
// log. SQLite serves single-node deployments; Postgres serves shared ones.
package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Config selects and tunes the backing database.
type Config struct {
	Driver string // sqlite or postgres
	Path   string // sqlite file path

	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects, tunes the pool, and runs migrations.
func Open(cfg Config) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
		// SQLite supports a single writer.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)

	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
		)
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, driver: cfg.Driver}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Store implements the state repository over database/sql.
type Store struct {
	db     *sql.DB
	driver string
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS threshold_states (
    budget_name TEXT NOT NULL,
    scope_key TEXT NOT NULL,
    highest_level_fired DOUBLE PRECISION NOT NULL DEFAULT 0,
    period_start TIMESTAMP NOT NULL,
    last_evaluated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (budget_name, scope_key)
);

CREATE TABLE IF NOT EXISTS anomaly_baselines (
    key TEXT PRIMARY KEY,
    count BIGINT NOT NULL DEFAULT 0,
    mean DOUBLE PRECISION NOT NULL DEFAULT 0,
    m2 DOUBLE PRECISION NOT NULL DEFAULT 0,
    window_days INTEGER NOT NULL DEFAULT 30,
    first_sample_day TIMESTAMP,
    last_sample_day TIMESTAMP,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS action_journal (
    idempotency_key TEXT PRIMARY KEY,
    bucket TIMESTAMP NOT NULL,
    journaled_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    cycle_id TEXT NOT NULL,
    resource_id TEXT NOT NULL,
    policy_name TEXT NOT NULL,
    action TEXT NOT NULL,
    reason TEXT,
    dry_run BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_action_journal_bucket ON action_journal (bucket);
CREATE INDEX IF NOT EXISTS idx_audit_log_cycle ON audit_log (cycle_id);
`)
	return err
}

// rebind rewrites ? placeholders to $N for postgres. Queries are written
// once in sqlite's style and translated at the boundary.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
