package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Migrate ensures the attendance schema exists. Every statement uses
// IF NOT EXISTS, so it is safe to run on every startup and against a schema
// created before schema_migrations was tracked.
func Migrate(ctx context.Context, p *Pool) error {
	log.Info().Str("dialect", p.Dialect().String()).Msg("Initializing database schema")

	if _, err := p.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := WithTx(ctx, p, func(ctx context.Context, tx *Tx) (int, error) {
		var version int
		if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
			return 0, Classify("failed to get current migration version", err)
		}
		return version, nil
	})
	if err != nil {
		return err
	}

	log.Debug().Int("current_version", currentVersion).Msg("Current schema version")

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applying migration")

		_, err := WithTx(ctx, p, func(ctx context.Context, tx *Tx) (struct{}, error) {
			for i, stmt := range splitSQLStatements(m.sqlFor(tx.Dialect())) {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return struct{}{}, Classify(fmt.Sprintf("migration %d statement %d failed", m.Version, i+1), err)
				}
			}

			// Concurrent startups may race to record the same version.
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES (?) ON CONFLICT (version) DO NOTHING", m.Version); err != nil {
				return struct{}{}, Classify(fmt.Sprintf("failed to record migration %d", m.Version), err)
			}
			return struct{}{}, nil
		})
		if err != nil {
			return err
		}
	}

	log.Info().Msg("Database schema ready")
	return nil
}

type migration struct {
	Version  int
	Name     string
	SQLite   string
	Postgres string
}

func (m migration) sqlFor(d Dialect) string {
	if d == DialectPostgres {
		return m.Postgres
	}
	return m.SQLite
}

// splitSQLStatements splits a SQL string into individual statements,
// skipping blank lines and -- comments.
func splitSQLStatements(sql string) []string {
	var statements []string
	var current strings.Builder

	for line := range strings.SplitSeq(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSpace(current.String())
			if stmt != "" && stmt != ";" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if remaining := strings.TrimSpace(current.String()); remaining != "" {
		statements = append(statements, remaining)
	}

	return statements
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "attendance_table",
		SQLite: `
			CREATE TABLE IF NOT EXISTS attendance (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				employee_id INTEGER NOT NULL,
				date DATE NOT NULL,
				status VARCHAR(10) NOT NULL CHECK (status IN ('Present', 'Absent', 'WFH')),
				department VARCHAR(50) NOT NULL
			);
		`,
		Postgres: `
			CREATE TABLE IF NOT EXISTS attendance (
				id SERIAL PRIMARY KEY,
				employee_id INT NOT NULL,
				date DATE NOT NULL,
				status VARCHAR(10) NOT NULL CHECK (status IN ('Present', 'Absent', 'WFH')),
				department VARCHAR(50) NOT NULL
			);
		`,
	},
	{
		Version: 2,
		Name:    "attendance_employee_date_unique",
		SQLite: `
			-- (employee_id, date) is the key used by updates
			CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_employee_date ON attendance(employee_id, date);
		`,
		Postgres: `
			-- (employee_id, date) is the key used by updates
			CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_employee_date ON attendance(employee_id, date);
		`,
	},
}
