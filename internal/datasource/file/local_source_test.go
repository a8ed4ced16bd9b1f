package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalOpen(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		prepare     func(t *testing.T) string
		cancel      bool
		wantErrIs   error
		wantContent string
	}{
		{
			name: "reads_content",
			prepare: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "a.csv")
				if err := os.WriteFile(p, []byte("data_registro;genero\n"), 0o644); err != nil {
					t.Fatalf("write: %v", err)
				}
				return p
			},
			wantContent: "data_registro;genero\n",
		},
		{
			name:      "missing_file_wraps_not_exist",
			prepare:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.csv") },
			wantErrIs: os.ErrNotExist,
		},
		{
			name:      "canceled_context",
			prepare:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.csv") },
			cancel:    true,
			wantErrIs: context.Canceled,
		},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if c.cancel {
				cancel()
			}
			rc, err := NewLocal(c.prepare(t)).Open(ctx)
			if c.wantErrIs != nil {
				if !errors.Is(err, c.wantErrIs) {
					t.Fatalf("err = %v, want %v", err, c.wantErrIs)
				}
				if rc != nil {
					rc.Close()
					t.Fatalf("non-nil reader on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer rc.Close()
			got, _ := io.ReadAll(rc)
			if string(got) != c.wantContent {
				t.Fatalf("content = %q", got)
			}
		})
	}
}

func BenchmarkLocalOpen(b *testing.B) {
	p := filepath.Join(b.TempDir(), "a.csv")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		b.Fatal(err)
	}
	src := NewLocal(p)
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rc, err := src.Open(ctx)
		if err != nil {
			b.Fatal(err)
		}
		rc.Close()
	}
}

func mustWrite(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestReadList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	list := filepath.Join(dir, "inputs.txt")
	mustWrite(t, list, "# extracts\n2023.csv\n\n  /abs/2022.csv \n")

	got, err := ReadList(list)
	if err != nil {
		t.Fatalf("ReadList: %v", err)
	}
	want := []string{filepath.Join(dir, "2023.csv"), "/abs/2022.csv"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("ReadList = %v, want %v", got, want)
	}
}
