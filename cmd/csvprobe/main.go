// Command csvprobe shows how raw extracts will be read: the detected
// encoding, each header's normalized and canonical name, and how many rows
// survive normalization.
//
// Usage:
//
//	go run ./cmd/csvprobe data/raw/2023.csv data/raw/2024.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"ouvidoria/internal/datasource/file"
	"ouvidoria/internal/parser/csv"
	"ouvidoria/internal/schema"
	"ouvidoria/internal/transformer"
)

func main() {
	fallback := flag.String("fallback", csv.DefaultFallback, "encoding tried when the file is not valid UTF-8")
	lazy := flag.Bool("lazy-quotes", false, "tolerate stray quotes")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: csvprobe [flags] file.csv...")
		os.Exit(2)
	}
	opts := csv.Options{Comma: ';', FallbackEncoding: *fallback, LazyQuotes: *lazy}
	if err := probe(context.Background(), os.Stdout, flag.Args(), opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// probe describes every path on w. Unreadable files are reported inline; the
// returned error is only for write failures.
func probe(ctx context.Context, w io.Writer, paths []string, opts csv.Options) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range paths {
		fmt.Fprintf(tw, "file: %s\n", p)
		tbl, enc, err := csv.ReadTable(ctx, file.NewLocal(p), opts)
		if err != nil {
			fmt.Fprintf(tw, "error: %v\n\n", err)
			continue
		}
		fmt.Fprintf(tw, "encoding: %s\n", enc)

		seen := map[string]bool{}
		fmt.Fprintln(tw, "raw\tnormalized\tcanonical")
		for _, h := range tbl.Header {
			norm := transformer.ColumnName(h)
			canon := "(dropped)"
			if c, ok := schema.FromRaw(norm); ok {
				canon = c.Name
				if seen[c.Name] {
					canon = c.Name + " (duplicate, ignored)"
				}
				seen[c.Name] = true
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", h, norm, canon)
		}

		rec, rep := transformer.Normalize(tbl, nil)
		if rec != nil {
			rec.Release()
		}
		fmt.Fprintf(tw, "rows: in=%d out=%d dropped_no_date=%d\n", rep.RowsIn, rep.RowsOut, rep.DroppedNoDate)
		if len(rep.MissingColumns) > 0 {
			fmt.Fprintf(tw, "missing: %v\n", rep.MissingColumns)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
