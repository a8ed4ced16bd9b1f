package parquet

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// scanBatchRows bounds the rows per batch handed to Scan callbacks.
const scanBatchRows = 64 << 10

// Scan streams the artifact's rows to fn in file order. The record passed to
// fn is only valid during the call. Used to feed mirrors with exactly the
// rows that were compacted.
func Scan(ctx context.Context, path string, fn func(arrow.Record) error) error {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: scanBatchRows}, memory.DefaultAllocator)
	if err != nil {
		return fmt.Errorf("artifact reader: %w", err)
	}
	rr, err := fr.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("artifact record reader: %w", err)
	}
	defer rr.Release()

	for rr.Next() {
		if err := fn(rr.Record()); err != nil {
			return err
		}
	}
	return rr.Err()
}
