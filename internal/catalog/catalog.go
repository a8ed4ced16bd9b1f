// Package catalog derives the filter choices offered to users from the
// artifact: distinct years, states and demographic values, plus the most
// frequent agencies. The result is computed once per process and shared.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	"ouvidoria/internal/query"
	"ouvidoria/internal/schema"
	"ouvidoria/internal/storage/parquet"
)

// TopAgencies caps the agency list.
const TopAgencies = 1000

const (
	fallbackYear  = 2025
	fallbackState = "br"
)

// Options holds the sorted choice lists. Treat it as read-only once built.
type Options struct {
	Years              []int    `json:"years" msgpack:"years"`
	States             []string `json:"states" msgpack:"states"`
	Genders            []string `json:"genders" msgpack:"genders"`
	AgeBrackets        []string `json:"age_brackets" msgpack:"age_brackets"`
	RaceColors         []string `json:"race_colors" msgpack:"race_colors"`
	ManifestationTypes []string `json:"manifestation_types" msgpack:"manifestation_types"`
	Agencies           []string `json:"agencies" msgpack:"agencies"`
	// Fallback is set when the lists could not be read from the artifact.
	Fallback bool `json:"fallback" msgpack:"fallback"`
}

// Fallback is the minimal catalog used when the artifact cannot be read.
func Fallback() *Options {
	return &Options{
		Years:    []int{fallbackYear},
		States:   []string{fallbackState},
		Fallback: true,
	}
}

// DefaultYears is the initial year selection.
func (o *Options) DefaultYears() []int {
	if len(o.Years) == 0 {
		return []int{fallbackYear}
	}
	return o.Years[:1]
}

// DefaultStates is the initial state selection.
func (o *Options) DefaultStates() []string {
	if len(o.States) == 0 {
		return []string{fallbackState}
	}
	return o.States[:1]
}

// DefaultSelection is the first year and first state.
func (o *Options) DefaultSelection() (int, string) {
	return o.DefaultYears()[0], o.DefaultStates()[0]
}

// Build reads the seven dimension columns of the artifact at path. Any
// failure is logged and Fallback is returned; Build never returns nil.
func Build(ctx context.Context, eng *query.Engine, path string) *Options {
	start := time.Now()
	o, err := build(ctx, eng, path)
	if err != nil {
		log.Printf("catalog: %v; using fallback options", err)
		return Fallback()
	}
	log.Printf("catalog: years=%d states=%d agencies=%d elapsed=%s",
		len(o.Years), len(o.States), len(o.Agencies), time.Since(start).Round(time.Millisecond))
	return o
}

func build(ctx context.Context, eng *query.Engine, path string) (*Options, error) {
	if eng == nil || eng.DB == nil {
		return nil, fmt.Errorf("no engine")
	}
	info, err := parquet.ReadSchema(path)
	if err != nil {
		return nil, err
	}
	src := query.Source(path)
	db := eng.DB
	o := &Options{}

	if info.Has(schema.RegistrationYear) {
		q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %[1]s IS NOT NULL ORDER BY 1",
			query.Ident(schema.RegistrationYear), src)
		if o.Years, err = ints(ctx, db, q); err != nil {
			return nil, fmt.Errorf("years: %w", err)
		}
	}
	for _, d := range []struct {
		col string
		dst *[]string
	}{
		{schema.ComplainantState, &o.States},
		{schema.Gender, &o.Genders},
		{schema.AgeBracket, &o.AgeBrackets},
		{schema.RaceColor, &o.RaceColors},
		{schema.ManifestationType, &o.ManifestationTypes},
	} {
		if !info.Has(d.col) {
			continue
		}
		q := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %[1]s IS NOT NULL AND %[1]s <> ? ORDER BY 1",
			query.Ident(d.col), src)
		if *d.dst, err = strs(ctx, db, q, schema.Sentinel); err != nil {
			return nil, fmt.Errorf("%s: %w", d.col, err)
		}
	}
	if info.Has(schema.AgencyName) {
		q := fmt.Sprintf(`SELECT %s FROM %s WHERE %[1]s IS NOT NULL AND %[1]s <> ?
GROUP BY 1 ORDER BY count(*) DESC, 1 LIMIT %[3]d`, query.Ident(schema.AgencyName), src, TopAgencies)
		if o.Agencies, err = strs(ctx, db, q, schema.Sentinel); err != nil {
			return nil, fmt.Errorf("agencies: %w", err)
		}
		sort.Strings(o.Agencies)
	}

	// An artifact with no usable year or state still needs a selection.
	if len(o.Years) == 0 {
		o.Years = []int{fallbackYear}
	}
	if len(o.States) == 0 {
		o.States = []string{fallbackState}
	}
	return o, nil
}

func ints(ctx context.Context, db *sql.DB, q string, args ...any) ([]int, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func strs(ctx context.Context, db *sql.DB, q string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
