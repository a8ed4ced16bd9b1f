package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"ouvidoria/internal/query"
	"ouvidoria/internal/schema"
	"ouvidoria/internal/storage/parquet"
	"ouvidoria/internal/testfixture"
)

func openEngine(t *testing.T) *query.Engine {
	t.Helper()
	eng, err := query.Open(context.Background(), 1)
	if err != nil {
		t.Fatalf("DuckDB not available: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func agencyRows() [][]string {
	var rows [][]string
	add := func(agency string, n int) {
		for i := 0; i < n; i++ {
			rows = append(rows, testfixture.Row("01/02/2023", "SP", "Reclamação", agency, "Concluída", "Satisfeito (4)", "0"))
		}
	}
	for i := 0; i <= TopAgencies; i++ {
		add(fmt.Sprintf("a%04d", i), 1)
	}
	add("x", 500)
	add("y", 3)
	add("", 2)
	rows = append(rows, testfixture.Row("05/06/2022", "", "Denúncia", "x", "", "", "0"))
	rows = append(rows, testfixture.Row("05/06/2024", "RJ", "Elogio", "x", "", "", "0"))
	return rows
}

func TestBuild(t *testing.T) {
	t.Parallel()

	path := testfixture.Artifact(t, testfixture.Batch{Rows: agencyRows()})
	o := Build(context.Background(), openEngine(t), path)
	if o.Fallback {
		t.Fatalf("Build fell back")
	}

	if want := []int{2022, 2023, 2024}; !reflect.DeepEqual(o.Years, want) {
		t.Fatalf("years = %v, want %v", o.Years, want)
	}
	if want := []string{"rj", "sp"}; !reflect.DeepEqual(o.States, want) {
		t.Fatalf("states = %v, want %v (sentinel excluded)", o.States, want)
	}
	if want := []string{"denúncia", "elogio", "reclamação"}; !reflect.DeepEqual(o.ManifestationTypes, want) {
		t.Fatalf("types = %v", o.ManifestationTypes)
	}

	if len(o.Agencies) != TopAgencies {
		t.Fatalf("agencies = %d, want %d", len(o.Agencies), TopAgencies)
	}
	if !sort.StringsAreSorted(o.Agencies) {
		t.Fatalf("agencies not sorted for display")
	}
	idx := func(s string) int {
		i := sort.SearchStrings(o.Agencies, s)
		if i < len(o.Agencies) && o.Agencies[i] == s {
			return i
		}
		return -1
	}
	if idx("x") < 0 || idx("y") < 0 {
		t.Fatalf("frequent agencies missing")
	}
	// Ties among single-complaint agencies break by name.
	if idx("a0997") < 0 || idx("a0998") >= 0 || idx(schema.Sentinel) >= 0 {
		t.Fatalf("top-N cut wrong: a0997=%d a0998=%d sentinel=%d", idx("a0997"), idx("a0998"), idx(schema.Sentinel))
	}

	if y, s := o.DefaultSelection(); y != 2022 || s != "rj" {
		t.Fatalf("DefaultSelection = %d %q", y, s)
	}
}

func TestBuildFallback(t *testing.T) {
	t.Parallel()

	o := Build(context.Background(), openEngine(t), filepath.Join(t.TempDir(), "missing.parquet"))
	if !o.Fallback || !reflect.DeepEqual(o.Years, []int{2025}) || !reflect.DeepEqual(o.States, []string{"br"}) {
		t.Fatalf("fallback = %+v", o)
	}
	if y, s := o.DefaultSelection(); y != 2025 || s != "br" {
		t.Fatalf("DefaultSelection = %d %q", y, s)
	}
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	path := testfixture.Artifact(t, testfixture.Batch{Rows: [][]string{
		testfixture.Row("01/02/2023", "SP", "Reclamação", "INSS", "Concluída", "Satisfeito (4)", "0"),
	}})
	fp, err := parquet.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	snap := filepath.Join(t.TempDir(), "cache", "catalog.snap")

	t.Run("reused", func(t *testing.T) {
		canned := &Options{Years: []int{1990}, States: []string{"zz"}}
		if err := SaveSnapshot(snap, fp, canned); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
		// No engine: only the snapshot can answer.
		o := Cached(context.Background(), nil, path, snap)
		if !reflect.DeepEqual(o.Years, []int{1990}) {
			t.Fatalf("snapshot not reused: %+v", o)
		}
	})

	t.Run("stale", func(t *testing.T) {
		if err := SaveSnapshot(snap, "other", &Options{Years: []int{1990}}); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
		if _, err := LoadSnapshot(snap, fp); !errors.Is(err, ErrStale) {
			t.Fatalf("LoadSnapshot err = %v, want ErrStale", err)
		}
		o := Cached(context.Background(), openEngine(t), path, snap)
		if !reflect.DeepEqual(o.Years, []int{2023}) {
			t.Fatalf("stale snapshot not rebuilt: %+v", o)
		}
		again, err := LoadSnapshot(snap, fp)
		if err != nil || !reflect.DeepEqual(again.States, []string{"sp"}) {
			t.Fatalf("rebuilt snapshot not saved: %+v, %v", again, err)
		}
	})
}
