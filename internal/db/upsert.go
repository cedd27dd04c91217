package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertRow inserts a single row, updating the non-key columns on conflict.
// Used for company records, which arrive one at a time from the CLI.
func UpsertRow(ctx context.Context, pool Pool, table string, columns, conflictKeys []string, values []any) error {
	if len(columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(conflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	if len(values) != len(columns) {
		return eris.Errorf("db: upsert: %d values for %d columns", len(values), len(columns))
	}

	conflictSet := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		conflictSet[k] = true
	}

	placeholders := make([]string, len(columns))
	var setClauses []string
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if !conflictSet[col] {
			setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s",
				pgx.Identifier{col}.Sanitize(), pgx.Identifier{col}.Sanitize()))
		}
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		pgx.Identifier{table}.Sanitize(),
		quoteAndJoin(columns),
		strings.Join(placeholders, ", "),
		quoteAndJoin(conflictKeys),
		strings.Join(setClauses, ", "),
	)

	if _, err := pool.Exec(ctx, sql, values...); err != nil {
		return eris.Wrapf(err, "db: upsert into %s", table)
	}
	return nil
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
