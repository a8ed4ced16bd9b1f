// Package parquet writes and inspects the single columnar artifact produced by
// the ETL. Each run replaces the artifact wholesale.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/oklog/ulid/v2"

	"ouvidoria/internal/schema"
)

// ErrNoBatches is returned when there is nothing to compact. No file is
// touched in that case.
var ErrNoBatches = errors.New("parquet: no batches to compact")

// Artifact key/value metadata keys.
const (
	MetaRunID       = "ouvidoria.run_id"
	MetaCreatedAt   = "ouvidoria.created_at"
	MetaSourceFiles = "ouvidoria.source_files"
)

// Options tunes Compact.
type Options struct {
	// Compression is snappy (default), zstd, gzip or none.
	Compression string

	// MaxRowGroup caps rows per row group; 0 keeps the writer default.
	MaxRowGroup int64

	// RunID identifies the run in the file metadata; empty generates a ULID.
	RunID string

	// Sources are recorded in the file metadata, joined by newlines.
	Sources []string

	Mem memory.Allocator
}

// Stats describes a finished compaction.
type Stats struct {
	RunID   string
	Rows    int64
	Batches int
	Columns []string
	Bytes   int64
	Elapsed time.Duration
}

var now = time.Now

// Codec maps a compression name to a Parquet codec.
func Codec(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("parquet: unknown compression %q", name)
}

// Compact writes batches, in arrival order, to a single Parquet file at path.
//
// The artifact schema is the canonical columns present in at least one batch.
// A batch lacking one of them is padded: text with the sentinel, numbers with
// 0, dates with null.
//
// An existing artifact is removed before the new one is written. The
// replacement is not crash-atomic: a failure after the removal leaves no
// artifact, which readers treat as an empty dataset until the ETL is rerun.
func Compact(ctx context.Context, path string, batches []arrow.Record, opts Options) (Stats, error) {
	start := now()
	if len(batches) == 0 {
		return Stats{}, ErrNoBatches
	}
	codec, err := Codec(opts.Compression)
	if err != nil {
		return Stats{}, err
	}
	mem := opts.Mem
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	runID := opts.RunID
	if runID == "" {
		runID = ulid.Make().String()
	}

	names := unionColumns(batches)
	md := arrow.NewMetadata(
		[]string{MetaRunID, MetaCreatedAt, MetaSourceFiles},
		[]string{runID, start.UTC().Format(time.RFC3339), strings.Join(opts.Sources, "\n")},
	)
	sc := schema.ArrowSchema(names, &md)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Stats{}, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Stats{}, fmt.Errorf("remove old artifact: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return Stats{}, fmt.Errorf("create %s: %w", path, err)
	}
	st := Stats{RunID: runID, Batches: len(batches), Columns: names}
	if err := write(ctx, f, sc, batches, codec, opts.MaxRowGroup, mem, &st); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Stats{}, err
	}
	// pqarrow closes the sink on Close.
	if fi, err := os.Stat(path); err == nil {
		st.Bytes = fi.Size()
	}
	st.Elapsed = now().Sub(start)
	log.Printf("compact: path=%s run_id=%s rows=%d batches=%d columns=%d bytes=%d elapsed=%s",
		path, runID, st.Rows, st.Batches, len(names), st.Bytes, st.Elapsed.Truncate(time.Millisecond))
	return st, nil
}

func write(ctx context.Context, f *os.File, sc *arrow.Schema, batches []arrow.Record,
	codec compress.Compression, maxRowGroup int64, mem memory.Allocator, st *Stats) error {

	wopts := []parquet.WriterProperty{
		parquet.WithCompression(codec),
		parquet.WithAllocator(mem),
	}
	if maxRowGroup > 0 {
		wopts = append(wopts, parquet.WithMaxRowGroupLength(maxRowGroup))
	}
	fw, err := pqarrow.NewFileWriter(sc, f,
		parquet.NewWriterProperties(wopts...),
		pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		return fmt.Errorf("parquet writer: %w", err)
	}

	for i, b := range batches {
		if err := ctx.Err(); err != nil {
			_ = fw.Close()
			return err
		}
		rec, err := conform(b, sc, mem)
		if err != nil {
			_ = fw.Close()
			return fmt.Errorf("batch %d: %w", i, err)
		}
		err = fw.Write(rec)
		rec.Release()
		if err != nil {
			_ = fw.Close()
			return fmt.Errorf("write batch %d: %w", i, err)
		}
		st.Rows += b.NumRows()
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// unionColumns returns the canonical names present in any batch, in
// canonical order. Unknown names cannot appear: batches come from Normalize.
func unionColumns(batches []arrow.Record) []string {
	seen := map[string]bool{}
	for _, b := range batches {
		for _, f := range b.Schema().Fields() {
			seen[f.Name] = true
		}
	}
	var out []string
	for _, c := range schema.Columns {
		if seen[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}

// conform re-shapes b onto sc, padding missing columns. The returned record
// always carries sc itself so the writer sees one schema; the caller releases it.
func conform(b arrow.Record, sc *arrow.Schema, mem memory.Allocator) (arrow.Record, error) {
	n := int(b.NumRows())
	cols := make([]arrow.Array, sc.NumFields())
	var padded []arrow.Array
	defer func() {
		for _, a := range padded {
			a.Release()
		}
	}()

	for i, f := range sc.Fields() {
		if ix := b.Schema().FieldIndices(f.Name); len(ix) > 0 {
			src := b.Column(ix[0])
			if !arrow.TypeEqual(src.DataType(), f.Type) {
				return nil, fmt.Errorf("column %s has type %s, want %s", f.Name, src.DataType(), f.Type)
			}
			cols[i] = src
			continue
		}
		col, ok := schema.Lookup(f.Name)
		if !ok {
			return nil, fmt.Errorf("column %s is not canonical", f.Name)
		}
		a := Pad(col.Kind, n, mem)
		padded = append(padded, a)
		cols[i] = a
	}
	return array.NewRecord(sc, cols, int64(n)), nil
}

// Pad builds an n-row array holding the fill value for kind.
func Pad(kind schema.Kind, n int, mem memory.Allocator) arrow.Array {
	switch kind {
	case schema.KindNumber:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(make([]float64, n), nil)
		return b.NewArray()
	case schema.KindDate:
		b := array.NewTimestampBuilder(mem, schema.DateType)
		defer b.Release()
		b.AppendNulls(n)
		return b.NewArray()
	case schema.KindYear:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(make([]int32, n), nil)
		return b.NewArray()
	default:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.Reserve(n)
		for i := 0; i < n; i++ {
			b.Append(schema.Sentinel)
		}
		return b.NewArray()
	}
}
