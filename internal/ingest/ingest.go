// Package ingest reads every raw extract, normalizes it into a canonical
// Arrow batch and collects the batches in path order. A defective file is
// logged and skipped; only a run with no usable file at all fails.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"ouvidoria/internal/datasource/file"
	"ouvidoria/internal/metrics"
	"ouvidoria/internal/parser/csv"
	"ouvidoria/internal/transformer"
)

// ErrNoUsableInput means every input file was skipped or there were none.
var ErrNoUsableInput = errors.New("ingest: no usable input")

// Skip reasons reported in FileOutcome.
const (
	SkipUnreadable = "unreadable"
	SkipEmpty      = "empty"
)

// FileOutcome is the per-file record of one ingest run.
type FileOutcome struct {
	Path     string
	Encoding string // encoding that decoded the file; empty when unreadable
	RowsIn   int
	RowsOut  int
	Skipped  string // "" when the file contributed a batch
	Err      error  // decode failure for unreadable files
	Report   transformer.Report
}

// Result holds the surviving batches in path order. The caller owns the
// batches and must call Release.
type Result struct {
	Batches []arrow.Record
	Files   []FileOutcome
}

// Rows returns the total row count over all batches.
func (r *Result) Rows() int64 {
	var n int64
	for _, b := range r.Batches {
		n += b.NumRows()
	}
	return n
}

// Release releases every batch.
func (r *Result) Release() {
	for _, b := range r.Batches {
		b.Release()
	}
	r.Batches = nil
}

// Ingestor reads and normalizes raw files.
type Ingestor struct {
	// Job labels metrics.
	Job string

	// Parser configures the raw decoder.
	Parser csv.Options

	// Mem allocates the Arrow batches; nil uses the default allocator.
	Mem memory.Allocator
}

// readTable is swapped in tests.
var readTable = csv.ReadTable

// Ingest processes paths in lexicographic order, one file at a time.
//
// Files that cannot be decoded, or whose normalized result is empty, are
// logged and skipped. If nothing survives the error is ErrNoUsableInput and
// the returned Result still lists every file outcome. A canceled context
// stops the run and releases what was read so far.
func (in *Ingestor) Ingest(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	ordered := append([]string(nil), paths...)
	sort.Strings(ordered)

	res := &Result{}
	for _, p := range ordered {
		if err := ctx.Err(); err != nil {
			res.Release()
			return res, err
		}
		out, rec := in.one(ctx, p)
		if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
			res.Release()
			return res, out.Err
		}
		res.Files = append(res.Files, out)
		if rec != nil {
			res.Batches = append(res.Batches, rec)
		}
	}

	var err error
	if len(res.Batches) == 0 {
		err = fmt.Errorf("%w: %d file(s) examined", ErrNoUsableInput, len(ordered))
	}
	metrics.RecordStep(in.Job, "ingest", err, time.Since(start))
	log.Printf("ingest: files=%d batches=%d rows=%d elapsed=%s",
		len(ordered), len(res.Batches), res.Rows(), time.Since(start).Truncate(time.Millisecond))
	return res, err
}

func (in *Ingestor) one(ctx context.Context, path string) (FileOutcome, arrow.Record) {
	out := FileOutcome{Path: path}

	raw, enc, err := readTable(ctx, file.NewLocal(path), in.Parser)
	if err != nil {
		out.Skipped, out.Err = SkipUnreadable, err
		log.Printf("ingest: skip file=%s reason=%s err=%v", path, out.Skipped, err)
		metrics.RecordFile(in.Job, "skipped")
		return out, nil
	}
	out.Encoding = enc

	rec, rep := transformer.Normalize(raw, in.Mem)
	out.Report, out.RowsIn, out.RowsOut = rep, rep.RowsIn, rep.RowsOut
	transformer.LogReport(path, rep)
	metrics.RecordRow(in.Job, "read", int64(rep.RowsIn))
	metrics.RecordRow(in.Job, "dropped_no_date", int64(rep.DroppedNoDate))

	if rec == nil {
		out.Skipped = SkipEmpty
		log.Printf("ingest: skip file=%s reason=%s encoding=%s", path, out.Skipped, enc)
		metrics.RecordFile(in.Job, "skipped")
		return out, nil
	}
	metrics.RecordRow(in.Job, "kept", int64(rep.RowsOut))
	metrics.RecordFile(in.Job, "ok")
	log.Printf("ingest: file=%s encoding=%s rows=%d", path, enc, rep.RowsOut)
	return out, rec
}
