// Command trainset exports the classifier training table from the artifact:
// the scorer's feature columns plus a binary target, neutral answers dropped.
//
// Usage:
//
//	go run ./cmd/trainset -artifact data/processed/ouvidoria.parquet -out data/processed/train.parquet
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"ouvidoria/internal/predict"
	"ouvidoria/internal/query"
	"ouvidoria/internal/schema"
	"ouvidoria/internal/storage/parquet"
)

func main() {
	artifact := flag.String("artifact", "data/processed/ouvidoria.parquet", "Parquet artifact")
	out := flag.String("out", "data/processed/train.parquet", "training table output")
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx := context.Background()
	eng, err := query.Open(ctx, 0)
	if err != nil {
		log.Fatalf("trainset: %v", err)
	}
	start := time.Now()
	n, err := export(ctx, eng, *artifact, *out)
	eng.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "trainset: %v\n", err)
		os.Exit(1)
	}
	log.Printf("trainset: rows=%d out=%s elapsed=%s", n, *out, time.Since(start).Truncate(time.Millisecond))
}

// Target is the label column of the training table.
const Target = "target"

// satisfactionPattern matches transformer.SatisfactionCode.
const satisfactionPattern = `\((\d)\)`

// export writes the training table to out and returns its row count.
func export(ctx context.Context, eng *query.Engine, artifact, out string) (int64, error) {
	info, err := parquet.ReadSchema(artifact)
	if err != nil {
		return 0, err
	}
	q, err := exportSQL(info, artifact, out)
	if err != nil {
		return 0, err
	}
	if _, err := eng.DB.ExecContext(ctx, q); err != nil {
		return 0, fmt.Errorf("copy: %w", err)
	}
	var n int64
	if err := eng.DB.QueryRowContext(ctx, "SELECT count(*) FROM "+query.Source(out)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count export: %w", err)
	}
	return n, nil
}

// exportSQL builds the COPY statement. Feature columns the artifact lacks are
// filled with the same literals the feature adapter uses.
func exportSQL(info parquet.Info, artifact, out string) (string, error) {
	if !info.Has(schema.SatisfactionLabel) {
		return "", errors.New("artifact has no satisfaction_label column")
	}
	var sel []string
	for _, col := range predict.FeatureColumns {
		src, fill := col, schema.Sentinel
		if col == predict.SubjectText {
			src, fill = schema.Subject, predict.NoSubject
		}
		if info.Has(src) {
			sel = append(sel, fmt.Sprintf("%s AS %s", query.Ident(src), query.Ident(col)))
		} else {
			sel = append(sel, fmt.Sprintf("%s AS %s", query.Literal(fill), query.Ident(col)))
		}
	}

	// Target mapping comes from predict.TrainingTarget so training and
	// serving agree on which codes count.
	var cases, keep []string
	for code := 1; code <= 5; code++ {
		if t, ok := predict.TrainingTarget(code); ok {
			cases = append(cases, fmt.Sprintf("WHEN %d THEN %d", code, t))
			keep = append(keep, fmt.Sprint(code))
		}
	}
	sel = append(sel, fmt.Sprintf("CAST(CASE code %s END AS INTEGER) AS %s", strings.Join(cases, " "), Target))

	return fmt.Sprintf(`COPY (
SELECT %s
FROM (SELECT *, TRY_CAST(regexp_extract(%s, %s, 1) AS INTEGER) AS code FROM %s)
WHERE code IN (%s)
) TO %s (FORMAT PARQUET, COMPRESSION ZSTD)`,
		strings.Join(sel, ", "),
		query.Ident(schema.SatisfactionLabel), query.Literal(satisfactionPattern), query.Source(artifact),
		strings.Join(keep, ", "),
		query.Literal(out)), nil
}
