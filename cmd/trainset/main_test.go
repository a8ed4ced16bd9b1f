package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"ouvidoria/internal/predict"
	"ouvidoria/internal/query"
	"ouvidoria/internal/storage/parquet"
	"ouvidoria/internal/testfixture"
)

func TestExportSQL(t *testing.T) {
	t.Parallel()

	path := testfixture.Artifact(t, testfixture.Batch{
		Header: []string{"Data Registro", "Gênero", "Satisfação"},
		Rows:   [][]string{{"01/02/2023", "feminino", "(1) muito insatisfeito"}},
	})
	info, err := parquet.ReadSchema(path)
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}
	q, err := exportSQL(info, path, "out.parquet")
	if err != nil {
		t.Fatalf("exportSQL: %v", err)
	}
	for _, want := range []string{
		`"gender" AS "gender"`,
		`'not informed' AS "agency_name"`,
		`'no subject' AS "subject_text"`,
		"WHEN 2 THEN 1 WHEN 4 THEN 0",
		"WHERE code IN (1, 2, 4, 5)",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("sql missing %q:\n%s", want, q)
		}
	}

	info.Schema = nil
	if _, err := exportSQL(info, path, "out.parquet"); err == nil {
		t.Fatalf("expected error without satisfaction_label")
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	eng, err := query.Open(context.Background(), 1)
	if err != nil {
		t.Fatalf("DuckDB not available: %v", err)
	}
	defer eng.Close()

	path := testfixture.Artifact(t, testfixture.Batch{Rows: [][]string{
		testfixture.Row("01/02/2023", "SP", "Reclamação", "INSS", "Concluída", "Muito insatisfeito (1)", "0"),
		testfixture.Row("02/02/2023", "SP", "Reclamação", "INSS", "Concluída", "Regular (3)", "0"),
		testfixture.Row("03/02/2023", "RJ", "Denúncia", "INSS", "Concluída", "Satisfeito (4)", "0"),
		testfixture.Row("04/02/2023", "RJ", "Denúncia", "INSS", "Concluída", "nan", "0"),
	}})
	out := filepath.Join(t.TempDir(), "train.parquet")

	n, err := export(context.Background(), eng, path, out)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported rows = %d, want 2 (neutral and unlabeled dropped)", n)
	}
	info, err := parquet.ReadSchema(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	for _, c := range append(append([]string(nil), predict.FeatureColumns...), Target) {
		if !info.Has(c) {
			t.Fatalf("export missing column %s", c)
		}
	}
}
