// Package testfixture builds small Parquet artifacts for package tests.
package testfixture

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"

	"ouvidoria/internal/storage/parquet"
	"ouvidoria/internal/transformer"
)

// Header is a raw extract header covering every dimension the readers use.
var Header = []string{
	"Data Registro",
	"Data Resposta",
	"Dias para Resolução",
	"Dias de Atraso",
	"Gênero",
	"Faixa Etária",
	"Raça/Cor",
	"UF do Município Manifestante",
	"Tipo Manifestação",
	"Nome Órgão",
	"Assunto",
	"Situação",
	"Satisfação",
}

// Row builds a raw row in Header order.
func Row(date, state, kind, agency, status, satisfaction string, overdue string) []string {
	return []string{date, "", "3", overdue, "feminino", "30 a 39", "parda", state, kind, agency, "saude", status, satisfaction}
}

// Artifact normalizes each batch of raw rows (all in Header order unless a
// batch starts with its own header, see Batch) and compacts them into a
// Parquet file under t.TempDir. It returns the artifact path.
func Artifact(t testing.TB, batches ...Batch) string {
	t.Helper()
	var recs []arrow.Record
	for _, b := range batches {
		h := b.Header
		if h == nil {
			h = Header
		}
		rec, rep := transformer.Normalize(&transformer.RawTable{Header: h, Rows: b.Rows}, nil)
		if rec == nil {
			t.Fatalf("fixture batch produced no rows: %s", rep)
		}
		recs = append(recs, rec)
	}
	defer func() {
		for _, r := range recs {
			r.Release()
		}
	}()
	path := filepath.Join(t.TempDir(), "artifact.parquet")
	if _, err := parquet.Compact(context.Background(), path, recs, parquet.Options{RunID: "01FIXTURE"}); err != nil {
		t.Fatalf("fixture compact: %v", err)
	}
	return path
}

// Batch is one raw file's worth of rows. A nil Header means Header.
type Batch struct {
	Header []string
	Rows   [][]string
}
