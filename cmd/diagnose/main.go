// Command diagnose prints a quick health check of the artifact: the most
// common satisfaction labels and the overdue-days distribution.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"ouvidoria/internal/insights"
	"ouvidoria/internal/query"
	"ouvidoria/internal/schema"
	"ouvidoria/internal/storage/parquet"
)

func main() {
	path := flag.String("artifact", "data/processed/ouvidoria.parquet", "Parquet artifact")
	flag.Parse()

	ctx := context.Background()
	eng, err := query.Open(ctx, 0)
	if err != nil {
		log.Fatalf("diagnose: %v", err)
	}
	defer eng.Close()
	if err := diagnose(ctx, os.Stdout, eng, *path); err != nil {
		fmt.Fprintf(os.Stderr, "diagnose: %v\n", err)
		eng.Close()
		os.Exit(1)
	}
}

func diagnose(ctx context.Context, w io.Writer, eng *query.Engine, path string) error {
	info, err := parquet.ReadSchema(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "artifact: %s run_id=%s created=%s rows=%d\n\n", path, info.RunID, info.Created, info.Rows)

	var readErr error
	r := &query.Reader{Engine: eng, Path: path, OnError: func(err error) { readErr = err }}
	tbl := r.Scan(ctx, []string{schema.SatisfactionLabel, schema.DaysOverdue})
	defer tbl.Release()
	if readErr != nil {
		return readErr
	}

	fmt.Fprintln(w, "--- satisfaction_label (top 10) ---")
	if counts := insights.TopCounts(tbl, schema.SatisfactionLabel, 10); counts != nil {
		for _, c := range counts {
			fmt.Fprintf(w, "%8d  %s\n", c.Count, c.Value)
		}
	} else {
		fmt.Fprintln(w, "column absent")
	}

	fmt.Fprintln(w, "\n--- days_overdue ---")
	if !tbl.Has(schema.DaysOverdue) {
		fmt.Fprintln(w, "column absent")
		return nil
	}
	st := insights.OverdueStats(tbl)
	fmt.Fprintf(w, "rows: %d\noverdue (> 0): %d\nmean overdue: %.2f days\nmax: %.0f days\n", st.Rows, st.Count, st.MeanOverdue, st.Max)
	return nil
}
