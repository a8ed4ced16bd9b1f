package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"ouvidoria/internal/query"
	"ouvidoria/internal/testfixture"
)

func TestDiagnose(t *testing.T) {
	t.Parallel()

	eng, err := query.Open(context.Background(), 1)
	if err != nil {
		t.Fatalf("DuckDB not available: %v", err)
	}
	defer eng.Close()

	path := testfixture.Artifact(t, testfixture.Batch{Rows: [][]string{
		testfixture.Row("01/02/2023", "SP", "Reclamação", "INSS", "Concluída", "Satisfeito (4)", "0"),
		testfixture.Row("02/02/2023", "SP", "Reclamação", "INSS", "Concluída", "Satisfeito (4)", "6"),
		testfixture.Row("03/02/2023", "SP", "Reclamação", "INSS", "Concluída", "nan", "2"),
	}})

	var buf bytes.Buffer
	if err := diagnose(context.Background(), &buf, eng, path); err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"run_id=01FIXTURE", "2  satisfeito (4)", "1  not informed", "overdue (> 0): 2", "mean overdue: 4.00", "max: 6"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	if err := diagnose(context.Background(), &buf, eng, filepath.Join(t.TempDir(), "none.parquet")); err == nil {
		t.Fatalf("expected error for missing artifact")
	}
}
