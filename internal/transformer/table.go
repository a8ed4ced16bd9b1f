package transformer

import (
	"fmt"
	"log"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"ouvidoria/internal/schema"
)

// RawTable is one decoded source file: a header row plus data rows. Rows may
// be shorter than Header; missing trailing cells count as absent.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Report summarizes what Normalize did with one RawTable.
type Report struct {
	RowsIn          int
	RowsOut         int
	DroppedNoDate   int
	UnknownHeaders  []string // normalized headers with no canonical column
	DuplicateHeader []string // normalized headers seen more than once; first wins
	MissingColumns  []string // canonical columns absent from this file
}

// colPlan binds one canonical column to its source position.
type colPlan struct {
	col schema.Column
	src int // index into the raw row, -1 when the file lacks the column
}

// plan is compiled once per file from its header.
type plan struct {
	cols    []colPlan
	dateIx  int // position of registration_date in cols, -1 if absent
	present []string
}

func compilePlan(header []string, rep *Report) plan {
	srcIx := make(map[string]int, len(header))
	for i, h := range header {
		name := ColumnName(h)
		col, ok := schema.FromRaw(name)
		if !ok {
			rep.UnknownHeaders = append(rep.UnknownHeaders, name)
			continue
		}
		if _, dup := srcIx[col.Name]; dup {
			rep.DuplicateHeader = append(rep.DuplicateHeader, name)
			continue
		}
		srcIx[col.Name] = i
	}

	p := plan{dateIx: -1}
	for _, c := range schema.Columns {
		if c.Derived() {
			continue
		}
		si, ok := srcIx[c.Name]
		if !ok {
			rep.MissingColumns = append(rep.MissingColumns, c.Name)
			continue
		}
		if c.Name == schema.RegistrationDate {
			p.dateIx = len(p.cols)
		}
		p.cols = append(p.cols, colPlan{col: c, src: si})
		p.present = append(p.present, c.Name)
	}
	if p.dateIx >= 0 {
		p.present = append(p.present, schema.RegistrationYear)
	}
	return p
}

// Normalize coerces raw into a canonical Arrow record. Columns the file does
// not carry are left out of the record; the compactor pads them later.
//
// Dates are parsed before the validity gate: a row whose registration_date is
// missing or unparseable is dropped, and registration_year is derived only for
// the survivors. A file without a registration_date column yields zero rows.
//
// The returned record is nil when no row survives. The caller owns it and
// must Release it.
func Normalize(raw *RawTable, mem memory.Allocator) (arrow.Record, Report) {
	var rep Report
	if raw == nil {
		return nil, rep
	}
	rep.RowsIn = len(raw.Rows)
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	p := compilePlan(raw.Header, &rep)
	if p.dateIx < 0 {
		rep.DroppedNoDate = rep.RowsIn
		return nil, rep
	}

	sc := schema.ArrowSchema(p.present, nil)
	b := array.NewRecordBuilder(mem, sc)
	defer b.Release()

	// Field index per plan column, resolved once.
	fieldIx := make([]int, len(p.cols))
	for i, cp := range p.cols {
		fieldIx[i] = sc.FieldIndices(cp.col.Name)[0]
	}
	yearIx := sc.FieldIndices(schema.RegistrationYear)[0]
	yearB := b.Field(yearIx).(*array.Int32Builder)

	dates := make([]time.Time, len(p.cols))
	valid := make([]bool, len(p.cols))

	for _, row := range raw.Rows {
		cell := func(src int) (string, bool) {
			if src < 0 || src >= len(row) {
				return "", false
			}
			return row[src], true
		}

		// Dates first: the gate depends on them.
		for i, cp := range p.cols {
			if cp.col.Kind != schema.KindDate {
				continue
			}
			s, _ := cell(cp.src)
			dates[i], valid[i] = Date(s)
		}
		if !valid[p.dateIx] {
			rep.DroppedNoDate++
			continue
		}

		for i, cp := range p.cols {
			fb := b.Field(fieldIx[i])
			switch cp.col.Kind {
			case schema.KindDate:
				db := fb.(*array.TimestampBuilder)
				if valid[i] {
					db.Append(arrow.Timestamp(dates[i].UnixMilli()))
				} else {
					db.AppendNull()
				}
			case schema.KindNumber:
				s, _ := cell(cp.src)
				fb.(*array.Float64Builder).Append(Number(s))
			default:
				s, ok := cell(cp.src)
				fb.(*array.StringBuilder).Append(Text(s, ok))
			}
		}
		yearB.Append(int32(dates[p.dateIx].Year()))
		rep.RowsOut++
	}

	if rep.RowsOut == 0 {
		return nil, rep
	}
	return b.NewRecord(), rep
}

// LogReport writes a one-line summary of rep for source.
func LogReport(source string, rep Report) {
	log.Printf("normalize: file=%s rows_in=%d rows_out=%d dropped_no_date=%d unknown_headers=%d missing_columns=%d",
		source, rep.RowsIn, rep.RowsOut, rep.DroppedNoDate, len(rep.UnknownHeaders), len(rep.MissingColumns))
	if len(rep.DuplicateHeader) > 0 {
		log.Printf("normalize: file=%s duplicate headers ignored: %v", source, rep.DuplicateHeader)
	}
}

// String implements fmt.Stringer for compact test/debug output.
func (r Report) String() string {
	return fmt.Sprintf("in=%d out=%d no_date=%d", r.RowsIn, r.RowsOut, r.DroppedNoDate)
}
