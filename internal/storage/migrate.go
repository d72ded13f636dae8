package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"imrich/internal/storage/migrations"
)

const migrationTable = "schema_migrations"

// Migrate applies every embedded migration for dialect at most once.
// It returns the names of the files applied by this call.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) ([]string, error) {
	migrationFS, root, err := migrationSet(dialect)
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	createSQL := `CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name       TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, file := range files {
		done, err := isApplied(ctx, db, dialect, file)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", file, err)
		}
		if done {
			continue
		}

		content, err := fs.ReadFile(migrationFS, root+"/"+file)
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUp(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, upSQL); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("exec migration %s: %w", file, err)
		}
		record := `INSERT INTO ` + migrationTable + ` (name, applied_at) VALUES (` + placeholders(dialect, 2) + `)`
		if _, err := tx.ExecContext(ctx, record, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration %s: %w", file, err)
		}
		applied = append(applied, file)
	}
	return applied, nil
}

func migrationSet(dialect Dialect) (fs.FS, string, error) {
	switch dialect {
	case DialectPostgres:
		return migrations.Postgres, "postgres", nil
	case DialectSQLite:
		return migrations.SQLite, "sqlite", nil
	default:
		return nil, "", fmt.Errorf("unknown dialect %q", dialect)
	}
}

func isApplied(ctx context.Context, db *sql.DB, dialect Dialect, name string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx,
		`SELECT 1 FROM `+migrationTable+` WHERE name = `+placeholders(dialect, 1), name,
	).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// extractUp returns the SQL between the Up and Down markers.
func extractUp(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	upIdx := strings.Index(content, up)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(up):]
	if downIdx := strings.Index(body, down); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

// placeholders renders n bind parameters in the dialect's style.
func placeholders(dialect Dialect, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if dialect == DialectPostgres {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}
