package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ouvidoria/internal/config"
	"ouvidoria/internal/datasource/file"
)

func writeRaw(t *testing.T, body []byte) *file.Local {
	t.Helper()
	p := filepath.Join(t.TempDir(), "extract.csv")
	if err := os.WriteFile(p, body, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return file.NewLocal(p)
}

func TestReadTable_UTF8(t *testing.T) {
	t.Parallel()

	src := writeRaw(t, []byte("\uFEFFData Registro;Raça/Cor\n01/02/2023;Parda\n02/02/2023\n"))
	tbl, enc, err := ReadTable(context.Background(), src, Options{})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if enc != EncodingUTF8 {
		t.Fatalf("encoding = %q", enc)
	}
	if tbl.Header[0] != "Data Registro" || tbl.Header[1] != "Raça/Cor" {
		t.Fatalf("header = %q", tbl.Header)
	}
	if len(tbl.Rows) != 2 || len(tbl.Rows[1]) != 1 {
		t.Fatalf("rows = %q", tbl.Rows)
	}
}

func TestReadTable_Latin1Fallback(t *testing.T) {
	t.Parallel()

	// "Raça/Cor;Gênero" in ISO-8859-1.
	body := []byte("Data Registro;Ra\xe7a/Cor;G\xeanero\n01/02/2023;Parda;Feminino\n")
	tbl, enc, err := ReadTable(context.Background(), writeRaw(t, body), OptionsFrom(config.Options{}))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if enc != "iso-8859-1" {
		t.Fatalf("encoding = %q, want iso-8859-1", enc)
	}
	if tbl.Header[1] != "Raça/Cor" || tbl.Header[2] != "Gênero" {
		t.Fatalf("header = %q", tbl.Header)
	}
}

func TestReadTable_Rejects(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, _, err := ReadTable(context.Background(), writeRaw(t, nil), Options{})
		if !errors.Is(err, ErrNoHeader) {
			t.Fatalf("err = %v, want ErrNoHeader", err)
		}
	})
	t.Run("too_many_fields", func(t *testing.T) {
		t.Parallel()
		_, _, err := ReadTable(context.Background(), writeRaw(t, []byte("a;b\n1;2;3\n")), Options{})
		var fce *FieldCountError
		if !errors.As(err, &fce) || fce.Line != 2 || fce.Got != 3 {
			t.Fatalf("err = %v, want FieldCountError line 2", err)
		}
	})
	t.Run("missing_file", func(t *testing.T) {
		t.Parallel()
		src := file.NewLocal(filepath.Join(t.TempDir(), "missing.csv"))
		_, _, err := ReadTable(context.Background(), src, Options{})
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("err = %v, want ErrNotExist", err)
		}
	})
	t.Run("bad_fallback", func(t *testing.T) {
		t.Parallel()
		_, _, err := ReadTable(context.Background(), writeRaw(t, []byte("a\xff;b\n")), Options{FallbackEncoding: "no-such-charset"})
		if err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestReadTable_Comma(t *testing.T) {
	t.Parallel()

	// A comma-delimited file read with the default ';' is one wide column.
	tbl, _, err := ReadTable(context.Background(), writeRaw(t, []byte("a,b\n1,2\n")), Options{})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(tbl.Header) != 1 || tbl.Header[0] != "a,b" {
		t.Fatalf("header = %q", tbl.Header)
	}
}

func TestReadTable_BareQuoteInSubject(t *testing.T) {
	t.Parallel()

	body := []byte("Data Registro;Assunto\n01/02/2023;Reclamação sobre o programa \"Bolsa\" atrasado\n02/02/2023;Saúde\n")

	tbl, enc, err := ReadTable(context.Background(), writeRaw(t, body), OptionsFrom(config.Options{}))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if enc != EncodingUTF8 || len(tbl.Rows) != 2 {
		t.Fatalf("enc=%q rows=%q", enc, tbl.Rows)
	}
	if got := tbl.Rows[0][1]; got != `Reclamação sobre o programa "Bolsa" atrasado` {
		t.Fatalf("subject = %q", got)
	}

	// Strict quoting fails once; quoting errors are not retried with the
	// fallback encoding.
	_, _, err = ReadTable(context.Background(), writeRaw(t, body), Options{})
	if !errors.Is(err, csv.ErrBareQuote) {
		t.Fatalf("err = %v, want ErrBareQuote", err)
	}
	if strings.Contains(err.Error(), "iso-8859-1") {
		t.Fatalf("quoting error was retried: %v", err)
	}
}

func TestReadTable_TrimSpace(t *testing.T) {
	t.Parallel()

	body := []byte("Data Registro; Gênero\n01/02/2023;  Feminino\n")
	tbl, _, err := ReadTable(context.Background(), writeRaw(t, body), OptionsFrom(config.Options{"trim_space": true}))
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if tbl.Header[1] != "Gênero" || tbl.Rows[0][1] != "Feminino" {
		t.Fatalf("header=%q rows=%q", tbl.Header, tbl.Rows)
	}
}

func TestOptionsFrom(t *testing.T) {
	t.Parallel()

	if d := OptionsFrom(config.Options{}); !d.LazyQuotes || d.TrimSpace {
		t.Fatalf("defaults = %+v", d)
	}
	o := OptionsFrom(config.Options{"lazy_quotes": false, "trim_space": true, "fallback_encoding": "windows-1252"})
	if o.comma() != ';' || o.LazyQuotes || !o.TrimSpace || o.FallbackEncoding != "windows-1252" {
		t.Fatalf("options = %+v", o)
	}
	if _, name, err := o.fallback(); err != nil || name != "windows-1252" {
		t.Fatalf("fallback = %q, %v", name, err)
	}
}
