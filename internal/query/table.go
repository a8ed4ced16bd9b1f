package query

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"ouvidoria/internal/storage"
)

// Table is the result of one read: a single Arrow record holding only the
// projected columns. The zero Table (and a nil *Table) is empty.
type Table struct {
	rec arrow.Record
}

// Empty returns a table with no rows and no columns.
func Empty() *Table { return &Table{} }

// NewTable wraps rec. The table takes ownership of one reference.
func NewTable(rec arrow.Record) *Table { return &Table{rec: rec} }

// Release frees the underlying record.
func (t *Table) Release() {
	if t != nil && t.rec != nil {
		t.rec.Release()
		t.rec = nil
	}
}

// NumRows is the row count.
func (t *Table) NumRows() int64 {
	if t == nil || t.rec == nil {
		return 0
	}
	return t.rec.NumRows()
}

// Columns lists the projected column names in order.
func (t *Table) Columns() []string {
	if t == nil || t.rec == nil {
		return nil
	}
	fs := t.rec.Schema().Fields()
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// Has reports whether name was projected.
func (t *Table) Has(name string) bool { return t.Column(name) != nil }

// Column returns the named column or nil. The array is owned by the table.
func (t *Table) Column(name string) arrow.Array {
	if t == nil || t.rec == nil {
		return nil
	}
	idx := t.rec.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil
	}
	return t.rec.Column(idx[0])
}

// Strings returns a text column as Go strings; ok is false when the column is
// absent or not text.
func (t *Table) Strings(name string) (vals []string, ok bool) {
	c, isStr := t.Column(name).(*array.String)
	if !isStr {
		return nil, false
	}
	vals = make([]string, c.Len())
	for i := range vals {
		vals[i] = c.Value(i)
	}
	return vals, true
}

// Float64s returns a number column. Nulls read as 0.
func (t *Table) Float64s(name string) (vals []float64, ok bool) {
	c, isF := t.Column(name).(*array.Float64)
	if !isF {
		return nil, false
	}
	vals = make([]float64, c.Len())
	for i := range vals {
		if c.IsValid(i) {
			vals[i] = c.Value(i)
		}
	}
	return vals, true
}

// Times returns a date column; valid[i] is false for null cells.
func (t *Table) Times(name string) (vals []time.Time, valid []bool, ok bool) {
	c, isTS := t.Column(name).(*array.Timestamp)
	if !isTS {
		return nil, nil, false
	}
	unit := c.DataType().(*arrow.TimestampType).Unit
	vals = make([]time.Time, c.Len())
	valid = make([]bool, c.Len())
	for i := range vals {
		if c.IsValid(i) {
			vals[i] = c.Value(i).ToTime(unit).UTC()
			valid[i] = true
		}
	}
	return vals, valid, true
}

// WriteNDJSON writes one JSON object per row. Dates are RFC 3339, nulls are
// JSON null.
func (t *Table) WriteNDJSON(w io.Writer) error {
	if t.NumRows() == 0 {
		return nil
	}
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	names := t.Columns()
	row := make(map[string]any, len(names))
	for i := 0; i < int(t.rec.NumRows()); i++ {
		for c, name := range names {
			v := storage.Value(t.rec.Column(c), i)
			if ts, ok := v.(time.Time); ok {
				v = ts.Format(time.RFC3339)
			}
			row[name] = v
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("ndjson row %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// sink scans one result column and appends it to an Arrow builder.
type sink struct {
	dest   any
	append func()
}

func newSink(b array.Builder) (sink, error) {
	switch bb := b.(type) {
	case *array.StringBuilder:
		var v sql.NullString
		return sink{&v, func() {
			if v.Valid {
				bb.Append(v.String)
			} else {
				bb.AppendNull()
			}
		}}, nil
	case *array.Float64Builder:
		var v sql.NullFloat64
		return sink{&v, func() {
			if v.Valid {
				bb.Append(v.Float64)
			} else {
				bb.AppendNull()
			}
		}}, nil
	case *array.Int32Builder:
		var v sql.NullInt32
		return sink{&v, func() {
			if v.Valid {
				bb.Append(v.Int32)
			} else {
				bb.AppendNull()
			}
		}}, nil
	case *array.TimestampBuilder:
		unit := bb.Type().(*arrow.TimestampType).Unit
		var v sql.NullTime
		return sink{&v, func() {
			if !v.Valid {
				bb.AppendNull()
				return
			}
			ts, err := arrow.TimestampFromTime(v.Time, unit)
			if err != nil {
				bb.AppendNull()
				return
			}
			bb.Append(ts)
		}}, nil
	default:
		return sink{}, fmt.Errorf("unsupported column type %s", b.Type())
	}
}

// collect drains rows into a record shaped like sc. rows must yield the
// columns of sc in order.
func collect(rows *sql.Rows, sc *arrow.Schema, mem memory.Allocator) (arrow.Record, error) {
	bld := array.NewRecordBuilder(mem, sc)
	defer bld.Release()

	sinks := make([]sink, len(sc.Fields()))
	dests := make([]any, len(sinks))
	for i := range sinks {
		s, err := newSink(bld.Field(i))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", sc.Field(i).Name, err)
		}
		sinks[i], dests[i] = s, s.dest
	}
	for rows.Next() {
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		for _, s := range sinks {
			s.append()
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bld.NewRecord(), nil
}
