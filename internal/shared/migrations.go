package shared

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration is one numbered schema change, loaded from sql/NNNN_<name>_up.sql and its _down.sql pair.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// MigrationState reports whether a migration has been applied to a database.
type MigrationState struct {
	Migration
	AppliedAt *time.Time
}

// Applied reports whether the migration is recorded in schema_migrations.
func (s MigrationState) Applied() bool {
	return s.AppliedAt != nil
}

// parseMigrationName splits "0001_create_blobs_up.sql" into 1, "create_blobs" and "up".
func parseMigrationName(file string) (version int, name, direction string, ok bool) {
	base, found := strings.CutSuffix(file, ".sql")
	if !found {
		return 0, "", "", false
	}

	switch {
	case strings.HasSuffix(base, "_up"):
		base, direction = strings.TrimSuffix(base, "_up"), "up"
	case strings.HasSuffix(base, "_down"):
		base, direction = strings.TrimSuffix(base, "_down"), "down"
	default:
		return 0, "", "", false
	}

	prefix, name, found := strings.Cut(base, "_")
	if !found {
		return 0, "", "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", "", false
	}
	return version, name, direction, true
}

// loadMigrations reads the embedded migration files sorted by version. Every version needs both halves.
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, direction, ok := parseMigrationName(entry.Name())
		if !ok {
			continue
		}

		content, err := migrationFiles.ReadFile(path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("incomplete migration for version %d", m.Version)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })

	return migrations, nil
}

// RunMigrations applies every pending migration.
func RunMigrations(db *sql.DB) error {
	_, err := ApplyPendingMigrations(db)
	return err
}

// ApplyPendingMigrations applies migrations missing from schema_migrations in version order and
// returns the ones it applied. Each migration runs in its own transaction.
func ApplyPendingMigrations(db *sql.DB) ([]Migration, error) {
	states, err := MigrationStatus(db)
	if err != nil {
		return nil, err
	}

	var applied []Migration
	for _, s := range states {
		if s.Applied() {
			continue
		}
		if err := migrate(db, s.Version, s.Up, "INSERT INTO schema_migrations (version) VALUES (?)"); err != nil {
			return applied, fmt.Errorf("failed to apply migration %d (%s): %w", s.Version, s.Name, err)
		}
		applied = append(applied, s.Migration)
	}
	return applied, nil
}

// RollbackMigration reverts the most recently applied migration.
func RollbackMigration(db *sql.DB) error {
	_, err := RollbackLatestMigration(db)
	return err
}

// RollbackLatestMigration reverts the highest applied version and returns it.
func RollbackLatestMigration(db *sql.DB) (*Migration, error) {
	states, err := MigrationStatus(db)
	if err != nil {
		return nil, err
	}

	for i := len(states) - 1; i >= 0; i-- {
		s := states[i]
		if !s.Applied() {
			continue
		}
		if err := migrate(db, s.Version, s.Down, "DELETE FROM schema_migrations WHERE version = ?"); err != nil {
			return nil, fmt.Errorf("failed to rollback migration %d (%s): %w", s.Version, s.Name, err)
		}
		return &s.Migration, nil
	}

	return nil, fmt.Errorf("%w: no migrations to rollback", ErrInvalidArgument)
}

// MigrationStatus lists every known migration with its applied time, creating schema_migrations if needed.
func MigrationStatus(db *sql.DB) ([]MigrationState, error) {
	migrations, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.Query("SELECT version, applied_at FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to check migration status: %w", err)
	}
	defer rows.Close()

	appliedAt := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at sql.NullTime
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		appliedAt[version] = at.Time
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read migration rows: %w", err)
	}

	states := make([]MigrationState, len(migrations))
	for i, m := range migrations {
		states[i] = MigrationState{Migration: m}
		if at, ok := appliedAt[m.Version]; ok {
			states[i].AppliedAt = &at
		}
	}
	return states, nil
}

// migrate runs script statement by statement, then record with the version, all in one transaction.
func migrate(db *sql.DB, version int, script, record string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range strings.Split(removeComments(script), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}

	if _, err := tx.Exec(record, version); err != nil {
		return err
	}
	return tx.Commit()
}

// removeComments strips "--" line comments and blank lines.
func removeComments(script string) string {
	var kept []string
	for _, line := range strings.Split(script, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
