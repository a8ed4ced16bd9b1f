package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"ouvidoria/internal/metrics"
	"ouvidoria/internal/schema"
	"ouvidoria/internal/storage/parquet"
)

// ErrMissingColumn is reported when a predicate names a column the artifact
// does not carry.
var ErrMissingColumn = errors.New("query: column not in artifact")

// Criteria selects a slice of the artifact. Years and States are required;
// an empty Category means every manifestation type. Limit <= 0 is unbounded.
type Criteria struct {
	Years    []int
	States   []string
	Category string
	Limit    int
}

// Ready reports whether c selects anything at all.
func (c Criteria) Ready() bool { return len(c.Years) > 0 && len(c.States) > 0 }

// Predicates returns the pushdown filters for c in a fixed order.
func (c Criteria) Predicates() []Expr {
	years := make([]any, len(c.Years))
	for i, y := range c.Years {
		years[i] = int32(y)
	}
	states := make([]any, len(c.States))
	for i, s := range c.States {
		states[i] = s
	}
	exprs := []Expr{
		In{Column: schema.RegistrationYear, Values: years},
		In{Column: schema.ComplainantState, Values: states},
	}
	if c.Category != "" {
		exprs = append(exprs, Eq{Column: schema.ManifestationType, Value: c.Category})
	}
	return exprs
}

// Reader reads slices of the artifact at Path. Failures never surface to the
// caller: they yield an empty table and are handed to OnError.
type Reader struct {
	Engine  *Engine
	Path    string
	OnError func(error)
	Mem     memory.Allocator
}

func (r *Reader) report(err error) {
	if r.OnError != nil {
		r.OnError(err)
		return
	}
	log.Printf("query: read %s: %v", r.Path, err)
}

func (r *Reader) mem() memory.Allocator {
	if r.Mem != nil {
		return r.Mem
	}
	return memory.DefaultAllocator
}

// Read returns the requested columns of the rows matching c. Columns missing
// from the artifact are silently dropped from the projection; predicate-only
// columns are never materialized. When c selects nothing the artifact is not
// opened.
func (r *Reader) Read(ctx context.Context, c Criteria, columns []string) *Table {
	if !c.Ready() {
		metrics.RecordRead("empty")
		return Empty()
	}
	return r.run(ctx, columns, c.Predicates(), c.Limit)
}

// Scan reads the requested columns of every row.
func (r *Reader) Scan(ctx context.Context, columns []string) *Table {
	return r.run(ctx, columns, nil, 0)
}

func (r *Reader) run(ctx context.Context, columns []string, exprs []Expr, limit int) *Table {
	start := time.Now()
	t, err := r.query(ctx, columns, exprs, limit)
	if err != nil {
		metrics.RecordRead("error")
		r.report(err)
		return Empty()
	}
	metrics.RecordRead("ok")
	log.Printf("query: rows=%d cols=%d elapsed=%s", t.NumRows(), len(t.Columns()), time.Since(start).Round(time.Millisecond))
	return t
}

func (r *Reader) query(ctx context.Context, columns []string, exprs []Expr, limit int) (*Table, error) {
	if r.Engine == nil || r.Engine.DB == nil {
		return nil, errors.New("query: no engine")
	}
	info, err := parquet.ReadSchema(r.Path)
	if err != nil {
		return nil, err
	}
	for _, ex := range exprs {
		if !info.Has(ex.column()) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ex.column())
		}
	}
	proj := Project(info.Schema, columns)

	var enc Encoder
	where, args := enc.EncodeFilters(exprs)
	q := buildSelect(proj, Source(r.Path), where, limit)

	if len(proj.Fields()) == 0 {
		var n int64
		if err := r.Engine.DB.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
		if limit > 0 && n > int64(limit) {
			n = int64(limit)
		}
		return NewTable(array.NewRecord(proj, nil, n)), nil
	}

	rows, err := r.Engine.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()
	rec, err := collect(rows, proj, r.mem())
	if err != nil {
		return nil, err
	}
	return NewTable(rec), nil
}

// Project keeps the requested columns that sc carries, in request order,
// dropping duplicates. Artifact metadata is not carried over.
func Project(sc *arrow.Schema, columns []string) *arrow.Schema {
	seen := make(map[string]bool, len(columns))
	var fields []arrow.Field
	for _, name := range columns {
		if seen[name] {
			continue
		}
		seen[name] = true
		if idx := sc.FieldIndices(name); len(idx) > 0 {
			fields = append(fields, sc.Field(idx[0]))
		}
	}
	return arrow.NewSchema(fields, nil)
}

func buildSelect(proj *arrow.Schema, from, where string, limit int) string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(proj.Fields()) == 0 {
		sb.WriteString("count(*)")
	} else {
		for i, f := range proj.Fields() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(Ident(f.Name))
		}
	}
	sb.WriteString(" FROM ")
	sb.WriteString(from)
	if where != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
	}
	if limit > 0 && len(proj.Fields()) > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	return sb.String()
}
