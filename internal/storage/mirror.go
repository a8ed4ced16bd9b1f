package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"ouvidoria/internal/config"
	"ouvidoria/internal/metrics"
)

// Mirror copies every row yielded by src into the table described by m.
// sc is the artifact schema and fixes the column list.
//
// The table is created first when m.AutoCreateTable is set and emptied when
// m.Truncate is set. A failure here never touches the artifact.
func Mirror(ctx context.Context, job string, m config.Mirror, sc *arrow.Schema, src RecordSource) (n int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordStep(job, "mirror_"+m.Kind, err, time.Since(start)) }()

	repo, err := New(ctx, Config{Kind: m.Kind, DSN: m.DSN, Table: m.Table})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	if m.AutoCreateTable {
		td, err := TableFromSchema(m.Table, sc)
		if err != nil {
			return 0, err
		}
		if err := EnsureTable(ctx, m.Kind, repo, td); err != nil {
			return 0, fmt.Errorf("create %s: %w", m.Table, err)
		}
	}
	if m.Truncate {
		d, err := dialectFor(m.Kind)
		if err != nil {
			return 0, err
		}
		if err := repo.Exec(ctx, d.Truncate(m.Table)); err != nil {
			return 0, fmt.Errorf("truncate %s: %w", m.Table, err)
		}
	}

	columns := make([]string, sc.NumFields())
	for i, f := range sc.Fields() {
		columns[i] = f.Name
	}
	n, err = LoadRecords(ctx, columns, src, DefaultBatchSize, repo.CopyFrom)
	metrics.RecordRow(job, "mirrored", n)
	log.Printf("mirror: kind=%s table=%s rows=%d err=%v", m.Kind, m.Table, n, err)
	return n, err
}
