package transformer

import (
	"math"
	"testing"
	"time"

	"ouvidoria/internal/schema"
)

func TestColumnName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Raça/Cor", "raca_cor"},
		{"UF do Órgão", "uf_do_orgao"},
		{"Gênero", "genero"},
		{"Faixa Etária", "faixa_etaria"},
		{"  Data Registro ", "data_registro"},
		{"Dias para Resolução", "dias_para_resolucao"},
		{"UF do Município Manifestante", "uf_do_municipio_manifestante"},
		{"__already_snake__", "already_snake"},
		{"a - b", "a_b"},
		{"Situação (atual)", "situacao_atual"},
		{"", ""},
	}
	for _, c := range cases {
		c := c
		t.Run(c.in, func(t *testing.T) {
			t.Parallel()
			got := ColumnName(c.in)
			if got != c.want {
				t.Fatalf("ColumnName(%q) = %q, want %q", c.in, got, c.want)
			}
			if again := ColumnName(got); again != got {
				t.Fatalf("ColumnName not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestColumnNameCoversSchema(t *testing.T) {
	t.Parallel()

	// Every raw alias must already be a fixed point, otherwise it can never match.
	for _, c := range schema.Columns {
		if c.Raw == "" {
			continue
		}
		if got := ColumnName(c.Raw); got != c.Raw {
			t.Fatalf("raw alias %q normalizes to %q", c.Raw, got)
		}
	}
}

func TestText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		present bool
		want    string
	}{
		{"", false, schema.Sentinel},
		{"", true, schema.Sentinel},
		{"nan", true, schema.Sentinel},
		{"  NaN ", true, schema.Sentinel},
		{"   ", true, schema.Sentinel},
		{"NA", true, schema.Sentinel},
		{"N/A", true, schema.Sentinel},
		{"NULL", true, schema.Sentinel},
		{"None", true, schema.Sentinel},
		{"<NA>", true, schema.Sentinel},
		{"#N/A", true, schema.Sentinel},
		{"nação", true, "nação"},
		{" Reclamação ", true, "reclamação"},
		{"SP", true, "sp"},
	}
	for _, c := range cases {
		if got := Text(c.in, c.present); got != c.want {
			t.Fatalf("Text(%q,%v) = %q, want %q", c.in, c.present, got, c.want)
		}
	}
}

func TestNumber(t *testing.T) {
	t.Parallel()

	cases := map[string]float64{
		"12":    12,
		" 3.5 ": 3.5,
		"-2":    -2,
		"":      0,
		"abc":   0,
		"1,5":   0,
		"nan":   0,
		"inf":   0,
	}
	for in, want := range cases {
		got := Number(in)
		if got != want || math.IsNaN(got) {
			t.Fatalf("Number(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDateDayFirst(t *testing.T) {
	t.Parallel()

	feb1 := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"01/02/2023", feb1, true},
		{"1/2/2023", feb1, true},
		{"01/02/2023 13:45:10", time.Date(2023, 2, 1, 13, 45, 10, 0, time.UTC), true},
		{"01.02.2023", feb1, true},
		{"01-02-2023", feb1, true},
		{"2023-02-01", feb1, true},
		{"2023-02-01 08:00:00", time.Date(2023, 2, 1, 8, 0, 0, 0, time.UTC), true},
		{"31/02/2023", time.Time{}, false},
		{"13/13/2023", time.Time{}, false},
		{"", time.Time{}, false},
		{"sem data", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := Date(c.in)
		if ok != c.ok || !got.Equal(c.want) {
			t.Fatalf("Date(%q) = (%v,%v), want (%v,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestSatisfactionCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"(1) muito insatisfeito", 1, true},
		{"(2) insatisfeito", 2, true},
		{"resposta (5) muito satisfeito", 5, true},
		{"(0) invalid", 0, false},
		{"(9) invalid", 0, false},
		{schema.Sentinel, 0, false},
		{"(12) two digits", 0, false},
	}
	for _, c := range cases {
		got, ok := SatisfactionCode(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("SatisfactionCode(%q) = (%d,%v), want (%d,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func BenchmarkDate(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, ok := Date("17/08/2024"); !ok {
			b.Fatal("parse failed")
		}
	}
}

func BenchmarkColumnName(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = ColumnName("UF do Município Manifestante")
	}
}
