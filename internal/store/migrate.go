package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

// RunMigrations brings the on-disk schema to the latest embedded version.
// Progress is tracked in PRAGMA user_version; re-running at the same
// version performs no structural changes. A brand-new database replays
// every step in order, which produces a schema structurally identical to
// creating the tables directly at the latest version, since all steps are
// additive. Each step runs in its own transaction and any failure aborts
// the open fatally.
func (s *Store) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return s.migrateTo(ctx, filesystem, 0)
}

// migrateTo applies steps up to target; target 0 means all of them.
func (s *Store) migrateTo(ctx context.Context, filesystem fs.FS, target int) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	entries, err := fs.ReadDir(filesystem, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := stepVersion(entry.Name())
		if err != nil {
			return err
		}
		if version <= current {
			continue
		}
		if target > 0 && version > target {
			break
		}

		sqlBytes, err := fs.ReadFile(filesystem, entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if err := s.applyStep(ctx, version, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}

		s.logger.Info("schema migrated", "version", version, "step", entry.Name())
		s.metrics.MigrationsApplied.Inc()
		current = version
	}

	return nil
}

func (s *Store) applyStep(ctx context.Context, version int, stmts string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmts); err != nil {
		tx.Rollback()
		return err
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d;", version)); err != nil {
		tx.Rollback()
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

// stepVersion extracts the numeric prefix of a migration file name,
// e.g. "003_routes.sql" -> 3.
func stepVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("migration %s: missing version prefix", name)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("migration %s: bad version prefix", name)
	}
	return version, nil
}

// SchemaVersion reports the current PRAGMA user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}
