package sqlite

import (
	"context"
	"fmt"
	"strings"

	"ouvidoria/internal/schema"
	"ouvidoria/internal/storage"
)

// newRepository is a test hook.
var newRepository = NewRepository

// wrappedRepo adds the storage.Repository Close to *Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Repository = (*wrappedRepo)(nil)

// Dialect renders SQLite DDL.
type Dialect struct{}

func sqlType(k schema.Kind) string {
	switch k {
	case schema.KindNumber:
		return "REAL"
	case schema.KindYear:
		return "INTEGER"
	case schema.KindDate:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (Dialect) CreateTable(td storage.TableDef) string {
	cols := make([]string, len(td.Columns))
	for i, c := range td.Columns {
		cols[i] = fmt.Sprintf("%s %s", Ident(c.Name), sqlType(c.Kind))
		if c.NotNull {
			cols[i] += " NOT NULL"
		}
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", Ident(td.Name), strings.Join(cols, ",\n  "))
}

func (Dialect) Truncate(table string) string { return "DELETE FROM " + Ident(table) }

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDialect("sqlite", Dialect{})
}
