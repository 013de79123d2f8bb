package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceRows deletes every row of table whose keyCol equals key and loads
// rows in their place with the COPY protocol, in one transaction. It returns
// the number of rows copied.
func ReplaceRows(ctx context.Context, pool Pool, table, keyCol string, key any, columns []string, rows [][]any) (int64, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: begin replace %s", table)
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", pgx.Identifier{table}.Sanitize(), pgx.Identifier{keyCol}.Sanitize())
	if _, err := tx.Exec(ctx, del, key); err != nil {
		_ = tx.Rollback(ctx)
		return 0, eris.Wrapf(err, "db: clear %s", table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: commit replace %s", table)
	}
	return n, nil
}
