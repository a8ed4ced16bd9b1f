package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"ouvidoria/internal/schema"
)

// ColumnDef is one destination column.
type ColumnDef struct {
	Name    string
	Kind    schema.Kind
	NotNull bool
}

// TableDef describes a mirror table.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// TableFromSchema derives a TableDef from the artifact schema. Columns keep
// the artifact order; non-canonical fields are rejected.
func TableFromSchema(table string, sc *arrow.Schema) (TableDef, error) {
	if strings.TrimSpace(table) == "" {
		return TableDef{}, fmt.Errorf("ddl: table name must not be empty")
	}
	td := TableDef{Name: table}
	for _, f := range sc.Fields() {
		col, ok := schema.Lookup(f.Name)
		if !ok {
			return TableDef{}, fmt.Errorf("ddl: column %s is not canonical", f.Name)
		}
		td.Columns = append(td.Columns, ColumnDef{Name: f.Name, Kind: col.Kind, NotNull: !f.Nullable})
	}
	if len(td.Columns) == 0 {
		return TableDef{}, fmt.Errorf("ddl: table %s has no columns", table)
	}
	return td, nil
}

// Dialect renders backend-specific SQL.
type Dialect interface {
	// CreateTable returns an idempotent CREATE TABLE statement.
	CreateTable(td TableDef) string
	// Truncate returns a statement removing every row of table.
	Truncate(table string) string
}

var (
	dialectMu sync.RWMutex
	dialects  = map[string]Dialect{}
)

// RegisterDialect installs the SQL dialect for kind.
func RegisterDialect(kind string, d Dialect) {
	dialectMu.Lock()
	defer dialectMu.Unlock()
	dialects[kind] = d
}

func dialectFor(kind string) (Dialect, error) {
	dialectMu.RLock()
	defer dialectMu.RUnlock()
	d, ok := dialects[kind]
	if !ok {
		return nil, fmt.Errorf("storage: no dialect registered for kind %q", kind)
	}
	return d, nil
}

// EnsureTable creates td through repo using the dialect of kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, td TableDef) error {
	d, err := dialectFor(kind)
	if err != nil {
		return err
	}
	return repo.Exec(ctx, d.CreateTable(td))
}
