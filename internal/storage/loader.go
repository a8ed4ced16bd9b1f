package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// CopyFn is a backend's bulk insert, usually Repository.CopyFrom.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// RecordSource yields Arrow batches to fn in order. The batch is only valid
// during the call.
type RecordSource func(ctx context.Context, fn func(arrow.Record) error) error

// DefaultBatchSize is the row count per CopyFn call when none is given.
const DefaultBatchSize = 5000

// LoadRecords converts the batches yielded by src into rows and hands them to
// copyFn in groups of batchSize. Every batch must carry columns (in any
// order). It returns the number of rows copyFn reported and the first error.
func LoadRecords(ctx context.Context, columns []string, src RecordSource, batchSize int, copyFn CopyFn) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total   int64
		batches int
		start   = time.Now()
		pending = make([][]any, 0, batchSize)
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, pending)
		total += n
		pending = pending[:0]
		if err != nil {
			log.Printf("loader: copy failed after=%d total=%d err=%v", n, total, err)
			return err
		}
		batches++
		log.Printf("loader: batch #%d inserted=%d total=%d elapsed=%s",
			batches, n, total, time.Since(start).Truncate(time.Millisecond))
		return nil
	}

	err := src(ctx, func(rec arrow.Record) error {
		cols := make([]arrow.Array, len(columns))
		for i, name := range columns {
			ix := rec.Schema().FieldIndices(name)
			if len(ix) == 0 {
				return fmt.Errorf("loader: batch lacks column %s", name)
			}
			cols[i] = rec.Column(ix[0])
		}
		for r := 0; r < int(rec.NumRows()); r++ {
			row := make([]any, len(cols))
			for i, c := range cols {
				row[i] = Value(c, r)
			}
			pending = append(pending, row)
			if len(pending) == batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return ctx.Err()
	})
	if err != nil {
		return total, err
	}
	return total, flush()
}

// Value returns row i of a as a database/sql friendly Go value. Nulls become
// nil and timestamps become time.Time in UTC.
func Value(a arrow.Array, i int) any {
	if a.IsNull(i) {
		return nil
	}
	switch c := a.(type) {
	case *array.String:
		return c.Value(i)
	case *array.Float64:
		return c.Value(i)
	case *array.Int32:
		return c.Value(i)
	case *array.Int64:
		return c.Value(i)
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(i).ToTime(unit).UTC()
	default:
		return a.ValueStr(i)
	}
}
