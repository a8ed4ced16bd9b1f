package transformer

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"ouvidoria/internal/schema"
)

func colByName(t *testing.T, rec arrow.Record, name string) arrow.Array {
	t.Helper()
	ix := rec.Schema().FieldIndices(name)
	if len(ix) == 0 {
		t.Fatalf("column %q missing from %s", name, rec.Schema())
	}
	return rec.Column(ix[0])
}

func TestNormalize_DropsRowsWithoutRegistrationDate(t *testing.T) {
	t.Parallel()

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	raw := &RawTable{
		Header: []string{"Data Registro", "Satisfação", "Dias de Atraso", "Gênero", "Protocolo"},
		Rows: [][]string{
			{"01/02/2023", "(2) Insatisfeito", "3", "Feminino", "A1"},
			{"", "(5) muito satisfeito", "0", "masculino", "A2"},
			{"not a date", "(4) satisfeito", "x", "", "A3"},
			{"15/03/2022", "nan", "", "NAN", "A4"},
			{"20/04/2021"}, // short row: trailing cells are absent
		},
	}
	rec, rep := Normalize(raw, mem)
	if rec == nil {
		t.Fatalf("Normalize returned nil record; report=%s", rep)
	}
	defer rec.Release()

	if rep.RowsIn != 5 || rep.RowsOut != 3 || rep.DroppedNoDate != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.UnknownHeaders) != 1 || rep.UnknownHeaders[0] != "protocolo" {
		t.Fatalf("unknown headers = %v", rep.UnknownHeaders)
	}
	if rec.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3", rec.NumRows())
	}

	years := colByName(t, rec, schema.RegistrationYear).(*array.Int32)
	wantYears := []int32{2023, 2022, 2021}
	for i, y := range wantYears {
		if years.Value(i) != y {
			t.Fatalf("year[%d] = %d, want %d", i, years.Value(i), y)
		}
	}

	dates := colByName(t, rec, schema.RegistrationDate).(*array.Timestamp)
	got := time.UnixMilli(int64(dates.Value(0))).UTC()
	if !got.Equal(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("registration_date[0] = %v, want 2023-02-01", got)
	}

	sat := colByName(t, rec, schema.SatisfactionLabel).(*array.String)
	if sat.Value(0) != "(2) insatisfeito" || sat.Value(1) != schema.Sentinel || sat.Value(2) != schema.Sentinel {
		t.Fatalf("satisfaction = %q,%q,%q", sat.Value(0), sat.Value(1), sat.Value(2))
	}
	if code, ok := SatisfactionCode(sat.Value(0)); !ok || code != 2 {
		t.Fatalf("SatisfactionCode = (%d,%v), want (2,true)", code, ok)
	}

	gender := colByName(t, rec, schema.Gender).(*array.String)
	for i := 0; i < gender.Len(); i++ {
		if gender.IsNull(i) {
			t.Fatalf("gender[%d] is null", i)
		}
	}
	if gender.Value(1) != schema.Sentinel {
		t.Fatalf("gender[1] = %q, want sentinel", gender.Value(1))
	}

	overdue := colByName(t, rec, schema.DaysOverdue).(*array.Float64)
	if overdue.Value(0) != 3 || overdue.Value(1) != 0 || overdue.Value(2) != 0 {
		t.Fatalf("days_overdue = %v", overdue.Float64Values())
	}

	// Columns the file never carried are not invented here.
	if len(rec.Schema().FieldIndices(schema.AgencyName)) != 0 {
		t.Fatalf("agency_name should be absent")
	}
}

func TestNormalize_NoDateColumn(t *testing.T) {
	t.Parallel()

	raw := &RawTable{
		Header: []string{"Gênero"},
		Rows:   [][]string{{"feminino"}, {"masculino"}},
	}
	rec, rep := Normalize(raw, nil)
	if rec != nil {
		rec.Release()
		t.Fatalf("expected nil record")
	}
	if rep.DroppedNoDate != 2 || rep.RowsOut != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestNormalize_DuplicateHeaderFirstWins(t *testing.T) {
	t.Parallel()

	raw := &RawTable{
		Header: []string{"Data Registro", "Gênero", "GENERO"},
		Rows:   [][]string{{"02/01/2024", "feminino", "masculino"}},
	}
	rec, rep := Normalize(raw, nil)
	if rec == nil {
		t.Fatalf("nil record")
	}
	defer rec.Release()

	if len(rep.DuplicateHeader) != 1 {
		t.Fatalf("duplicates = %v", rep.DuplicateHeader)
	}
	g := colByName(t, rec, schema.Gender).(*array.String)
	if g.Value(0) != "feminino" {
		t.Fatalf("gender = %q, want first header's value", g.Value(0))
	}
}

func TestNormalize_OptionalDatesAreNullable(t *testing.T) {
	t.Parallel()

	raw := &RawTable{
		Header: []string{"Data Registro", "Data Resposta"},
		Rows:   [][]string{{"02/01/2024", ""}, {"03/01/2024", "10/01/2024"}},
	}
	rec, _ := Normalize(raw, nil)
	if rec == nil {
		t.Fatalf("nil record")
	}
	defer rec.Release()

	resp := colByName(t, rec, schema.ResponseDate)
	if !resp.IsNull(0) || resp.IsNull(1) {
		t.Fatalf("response_date nulls = %v,%v", resp.IsNull(0), resp.IsNull(1))
	}
}
