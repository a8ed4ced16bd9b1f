package file

import (
	"path/filepath"
	"reflect"
	"testing"

	"ouvidoria/internal/config"
)

func TestDiscoverSortsAndDedupes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, n := range []string{"b_2023.csv", "a_2022.csv", "notes.txt", "sub/c.csv"} {
		mustWrite(t, filepath.Join(dir, n), "x")
	}
	list := filepath.Join(dir, "list.txt")
	mustWrite(t, list, "b_2023.csv\n")

	got, err := Discover(config.SourceFile{
		Dir:      dir,
		Pattern:  "*.csv",
		Paths:    []string{filepath.Join(dir, "b_2023.csv")},
		ListFile: list,
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	want := []string{filepath.Join(dir, "a_2022.csv"), filepath.Join(dir, "b_2023.csv")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Discover = %v, want %v", got, want)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	t.Parallel()

	if _, err := Discover(config.SourceFile{Dir: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestDiscoverEmptyDir(t *testing.T) {
	t.Parallel()

	got, err := Discover(config.SourceFile{Dir: t.TempDir(), Pattern: "*.csv"})
	if err != nil || len(got) != 0 {
		t.Fatalf("Discover = %v, %v", got, err)
	}
}
