// Package store implements the on-device relational store: a versioned
// SQLite schema, typed query/mutation operations per entity, and live
// query subscriptions that re-emit after every committed write.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	_ "modernc.org/sqlite"

	"safiri-store/internal/metrics"
)

// Store provides typed access to the on-device SQLite database. It owns
// the single shared connection for the process lifetime; construct it
// once via Open (or a Provider) and Close it on teardown.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	metrics  *metrics.Metrics
	notes    *notifier
	validate *validator.Validate
}

// Open opens the SQLite database at the given path, creating parent
// directories as needed.
func Open(ctx context.Context, databasePath string, logger *slog.Logger, m *metrics.Metrics) (*Store, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	// Busy timeout and WAL mode are recommended for SQLite concurrency;
	// foreign keys must be switched on per connection.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The store serialises all access through one connection; queries are
	// never executed in parallel inside the engine.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{
		db:       db,
		logger:   logger.With("component", "store"),
		metrics:  m,
		notes:    newNotifier(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Close flushes pending writes and releases the database handle.
func (s *Store) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("closing database", "error", err)
		}
	}
}

// Ping ensures the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// publish records committed writes and wakes matching subscriptions.
func (s *Store) publish(tables ...string) {
	for _, table := range tables {
		s.metrics.StoreWrites.WithLabelValues(table).Inc()
	}
	s.notes.publish(tables...)
}

// Provider hands out a single shared Store instance. Acquiring twice
// returns the same handle; the first error is sticky.
type Provider struct {
	once   sync.Once
	store  *Store
	err    error
	path   string
	logger *slog.Logger
	m      *metrics.Metrics
}

// NewProvider prepares a lazily-opened shared store for the given path.
func NewProvider(databasePath string, logger *slog.Logger, m *metrics.Metrics) *Provider {
	return &Provider{path: databasePath, logger: logger, m: m}
}

// Acquire opens the store on first call and returns the existing handle
// afterwards.
func (p *Provider) Acquire(ctx context.Context) (*Store, error) {
	p.once.Do(func() {
		p.store, p.err = Open(ctx, p.path, p.logger, p.m)
	})
	return p.store, p.err
}

// Close releases the shared store if it was ever opened.
func (p *Provider) Close() {
	if p.store != nil {
		p.store.Close()
	}
}

// Tx wraps an open transaction and records which tables it touched so
// subscriptions are only notified after a successful commit.
type Tx struct {
	tx      *sql.Tx
	touched map[string]struct{}
}

func (t *Tx) touch(tables ...string) {
	for _, table := range tables {
		t.touched[table] = struct{}{}
	}
}

// WithTx executes fn within a database transaction. Change notifications
// for touched tables are published only after the commit lands.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	wrapped := &Tx{tx: tx, touched: map[string]struct{}{}}
	if err := fn(wrapped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	tables := make([]string, 0, len(wrapped.touched))
	for table := range wrapped.touched {
		tables = append(tables, table)
	}
	s.publish(tables...)
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so entity operations can
// run standalone or inside a transaction scope.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
