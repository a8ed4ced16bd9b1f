package parquet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"ouvidoria/internal/schema"
	"ouvidoria/internal/transformer"
)

func batch(t *testing.T, header []string, rows ...[]string) arrow.Record {
	t.Helper()
	rec, rep := transformer.Normalize(&transformer.RawTable{Header: header, Rows: rows}, nil)
	if rec == nil {
		t.Fatalf("Normalize produced no rows: %s", rep)
	}
	return rec
}

func readBack(t *testing.T, path string) arrow.Table {
	t.Helper()
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { rdr.Close() })
	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	t.Cleanup(tbl.Release)
	return tbl
}

func column(t *testing.T, tbl arrow.Table, name string) arrow.Array {
	t.Helper()
	ix := tbl.Schema().FieldIndices(name)
	if len(ix) == 0 {
		t.Fatalf("column %s missing", name)
	}
	// One chunk per row group; each Write starts a new one.
	a, err := array.Concatenate(tbl.Column(ix[0]).Data().Chunks(), memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("concatenate %s: %v", name, err)
	}
	t.Cleanup(a.Release)
	return a
}

func TestCompact_UnionAndPadding(t *testing.T) {
	t.Parallel()

	a := batch(t, []string{"Data Registro", "Gênero"}, []string{"01/02/2023", "feminino"})
	defer a.Release()
	b := batch(t, []string{"Data Registro", "Dias de Atraso", "Data Resposta"}, []string{"05/03/2022", "4", "10/03/2022"})
	defer b.Release()

	path := filepath.Join(t.TempDir(), "out", "artifact.parquet")
	st, err := Compact(context.Background(), path, []arrow.Record{a, b}, Options{
		Compression: "zstd",
		RunID:       "01TESTRUN",
		Sources:     []string{"a.csv", "b.csv"},
	})
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	want := []string{schema.RegistrationDate, schema.ResponseDate, schema.RegistrationYear, schema.DaysOverdue, schema.Gender}
	if !reflect.DeepEqual(st.Columns, want) || st.Rows != 2 || st.RunID != "01TESTRUN" {
		t.Fatalf("stats = %+v", st)
	}

	info, err := ReadSchema(path)
	if err != nil {
		t.Fatalf("ReadSchema: %v", err)
	}
	if info.Rows != 2 || info.RunID != "01TESTRUN" || !info.Has(schema.Gender) || info.Has(schema.AgencyName) {
		t.Fatalf("info = %+v", info)
	}

	tbl := readBack(t, path)
	gender := column(t, tbl, schema.Gender).(*array.String)
	if gender.Value(0) != "feminino" || gender.Value(1) != schema.Sentinel {
		t.Fatalf("gender = %q, %q", gender.Value(0), gender.Value(1))
	}
	overdue := column(t, tbl, schema.DaysOverdue).(*array.Float64)
	if overdue.Value(0) != 0 || overdue.Value(1) != 4 {
		t.Fatalf("days_overdue = %v", overdue.Float64Values())
	}
	resp := column(t, tbl, schema.ResponseDate)
	if !resp.IsNull(0) || resp.IsNull(1) {
		t.Fatalf("response_date nulls = %v,%v", resp.IsNull(0), resp.IsNull(1))
	}
	years := column(t, tbl, schema.RegistrationYear).(*array.Int32)
	if years.Value(0) != 2023 || years.Value(1) != 2022 {
		t.Fatalf("years = %v", years.Int32Values())
	}
}

func TestCompact_NoBatchesLeavesFileAlone(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "artifact.parquet")
	if err := os.WriteFile(path, []byte("previous"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Compact(context.Background(), path, nil, Options{}); !errors.Is(err, ErrNoBatches) {
		t.Fatalf("err = %v, want ErrNoBatches", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "previous" {
		t.Fatalf("artifact was touched")
	}
}

func TestCompact_ReplacesAndFingerprintChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "artifact.parquet")
	a := batch(t, []string{"Data Registro"}, []string{"01/01/2024"})
	defer a.Release()

	if _, err := Compact(context.Background(), path, []arrow.Record{a}, Options{RunID: "one"}); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	fp1, err := Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if again, _ := Fingerprint(path); again != fp1 {
		t.Fatalf("fingerprint not stable: %s vs %s", fp1, again)
	}

	if _, err := Compact(context.Background(), path, []arrow.Record{a, a}, Options{RunID: "two", Compression: "none"}); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	fp2, _ := Fingerprint(path)
	if fp1 == fp2 {
		t.Fatalf("fingerprint did not change after rewrite")
	}
	info, err := ReadSchema(path)
	if err != nil || info.Rows != 2 || info.RunID != "two" {
		t.Fatalf("info = %+v, %v", info, err)
	}
}

func TestCompact_BadCompression(t *testing.T) {
	t.Parallel()

	a := batch(t, []string{"Data Registro"}, []string{"01/01/2024"})
	defer a.Release()
	path := filepath.Join(t.TempDir(), "artifact.parquet")
	if _, err := Compact(context.Background(), path, []arrow.Record{a}, Options{Compression: "lz5"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact should not exist: %v", err)
	}
}

func TestPad(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	for _, k := range []schema.Kind{schema.KindText, schema.KindNumber, schema.KindDate, schema.KindYear} {
		a := Pad(k, 3, mem)
		if a.Len() != 3 {
			t.Fatalf("%s: len = %d", k, a.Len())
		}
		if (k == schema.KindDate) != (a.NullN() == 3) {
			t.Fatalf("%s: nulls = %d", k, a.NullN())
		}
		a.Release()
	}
}

func TestScanYieldsCompactedRows(t *testing.T) {
	t.Parallel()

	a := batch(t, []string{"Data Registro", "Gênero"}, []string{"01/02/2023", "feminino"}, []string{"02/02/2023", "masculino"})
	defer a.Release()
	b := batch(t, []string{"Data Registro"}, []string{"03/02/2023"})
	defer b.Release()

	path := filepath.Join(t.TempDir(), "artifact.parquet")
	if _, err := Compact(context.Background(), path, []arrow.Record{a, b}, Options{}); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	var rows int64
	var genders []string
	err := Scan(context.Background(), path, func(rec arrow.Record) error {
		rows += rec.NumRows()
		g := rec.Column(rec.Schema().FieldIndices(schema.Gender)[0]).(*array.String)
		for i := 0; i < g.Len(); i++ {
			genders = append(genders, g.Value(i))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if rows != 3 || !reflect.DeepEqual(genders, []string{"feminino", "masculino", schema.Sentinel}) {
		t.Fatalf("rows=%d genders=%v", rows, genders)
	}
}
