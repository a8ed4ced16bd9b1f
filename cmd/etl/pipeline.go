package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/oklog/ulid/v2"

	"ouvidoria/internal/config"
	"ouvidoria/internal/datasource/file"
	"ouvidoria/internal/ingest"
	"ouvidoria/internal/parser/csv"
	"ouvidoria/internal/storage"
	"ouvidoria/internal/storage/parquet"
)

// summary describes one completed run.
type summary struct {
	RunID    string
	Files    int
	Skipped  int
	Rows     int64
	Mirrored int
}

// Seams for tests.
var (
	discover = file.Discover
	mirror   = storage.Mirror
	newRunID = func() string { return ulid.Make().String() }
)

// run discovers the inputs, ingests them, writes the artifact and refreshes
// each mirror from the artifact. No usable input is an error and leaves any
// previous artifact in place. Mirror failures are reported after every mirror
// was attempted; the artifact is kept.
func run(ctx context.Context, p config.Pipeline) (summary, error) {
	sum := summary{RunID: newRunID()}

	paths, err := discover(p.Source.File)
	if err != nil {
		return sum, fmt.Errorf("discover: %w", err)
	}
	log.Printf("etl: run_id=%s discovered %d file(s)", sum.RunID, len(paths))

	ing := &ingest.Ingestor{Job: p.Job, Parser: csv.OptionsFrom(p.Parser.Options)}
	res, err := ing.Ingest(ctx, paths)
	if res != nil {
		defer res.Release()
		sum.Files = len(res.Files)
		for _, f := range res.Files {
			if f.Skipped != "" {
				sum.Skipped++
			}
		}
	}
	if err != nil {
		return sum, err
	}

	var used []string
	for _, f := range res.Files {
		if f.Skipped == "" {
			used = append(used, f.Path)
		}
	}
	st, err := parquet.Compact(ctx, p.Artifact.Path, res.Batches, parquet.Options{
		Compression: p.Artifact.Compression,
		MaxRowGroup: p.Artifact.MaxRowGroup,
		RunID:       sum.RunID,
		Sources:     used,
	})
	if err != nil {
		return sum, err
	}
	sum.Rows = st.Rows
	// The batches are on disk now; mirrors read them back from the artifact.
	res.Release()

	if len(p.Mirrors) == 0 {
		return sum, nil
	}
	info, err := parquet.ReadSchema(p.Artifact.Path)
	if err != nil {
		return sum, err
	}
	src := func(ctx context.Context, fn func(arrow.Record) error) error {
		return parquet.Scan(ctx, p.Artifact.Path, fn)
	}
	var errs []error
	for _, m := range p.Mirrors {
		n, err := mirror(ctx, p.Job, m, info.Schema, src)
		if err != nil {
			log.Printf("etl: mirror kind=%s table=%s failed: %v", m.Kind, m.Table, err)
			errs = append(errs, fmt.Errorf("mirror %s %s: %w", m.Kind, m.Table, err))
			continue
		}
		log.Printf("etl: mirror kind=%s table=%s rows=%d", m.Kind, m.Table, n)
		sum.Mirrored++
	}
	return sum, errors.Join(errs...)
}
