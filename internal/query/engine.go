// Package query answers filtered, column-pruned reads of the Parquet artifact
// through an in-process DuckDB. Predicates and projections are pushed into
// read_parquet so only the touched row groups and columns are decoded.
package query

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Engine owns the DuckDB handle shared by the reader, the cataloger and the
// export tools. It is safe for concurrent use.
type Engine struct {
	DB *sql.DB
}

// Open starts an in-memory DuckDB. threads <= 0 keeps DuckDB's default.
func Open(ctx context.Context, threads int) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("duckdb open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb ping: %w", err)
	}
	if threads > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET threads = %d", threads)); err != nil {
			db.Close()
			return nil, fmt.Errorf("duckdb threads: %w", err)
		}
	}
	return &Engine{DB: db}, nil
}

// Close releases the DuckDB handle.
func (e *Engine) Close() error {
	if e == nil || e.DB == nil {
		return nil
	}
	return e.DB.Close()
}

// Source is the FROM clause for the artifact at path.
func Source(path string) string {
	return "read_parquet(" + Literal(path) + ")"
}
