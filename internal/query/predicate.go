package query

import (
	"strings"
)

// Expr is a pushdown predicate over one artifact column.
type Expr interface {
	column() string
}

// In matches rows whose Column equals any of Values.
type In struct {
	Column string
	Values []any
}

// Eq matches rows whose Column equals Value.
type Eq struct {
	Column string
	Value  any
}

func (e In) column() string { return e.Column }
func (e Eq) column() string { return e.Column }

// Encoder turns predicates into a DuckDB WHERE body with positional "?"
// parameters. Values never appear in the SQL text.
type Encoder struct {
	args []any
}

// EncodeFilters joins every encodable predicate with AND. It returns the
// condition without the WHERE keyword and the bound arguments in order.
func (e *Encoder) EncodeFilters(exprs []Expr) (string, []any) {
	e.args = e.args[:0]
	var parts []string
	for _, ex := range exprs {
		if s := e.Encode(ex); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], e.args
	}
	return "(" + strings.Join(parts, ") AND (") + ")", e.args
}

// Encode converts one predicate. Unsupported or empty predicates encode to "".
func (e *Encoder) Encode(ex Expr) string {
	switch x := ex.(type) {
	case In:
		return e.encodeIn(x)
	case Eq:
		e.args = append(e.args, x.Value)
		return Ident(x.Column) + " = ?"
	default:
		return ""
	}
}

func (e *Encoder) encodeIn(x In) string {
	if len(x.Values) == 0 {
		return ""
	}
	if len(x.Values) == 1 {
		e.args = append(e.args, x.Values[0])
		return Ident(x.Column) + " = ?"
	}
	e.args = append(e.args, x.Values...)
	return Ident(x.Column) + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(x.Values)), ", ") + ")"
}

// Ident double-quotes a DuckDB identifier.
func Ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Literal single-quotes a string literal. Only used for the read_parquet path,
// which DuckDB does not accept as a bound parameter in every version.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
