// Package csv decodes raw ombudsman extracts: semicolon-delimited text in
// UTF-8 or a legacy single-byte encoding. Each file is read whole into a
// transformer.RawTable; the ETL never holds more than one raw file at a time.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"

	"ouvidoria/internal/transformer"
)

// EncodingUTF8 is reported when the strict UTF-8 attempt succeeds.
const EncodingUTF8 = "utf-8"

// ErrNoHeader is returned for a file with no header row (empty or blank).
var ErrNoHeader = errors.New("csv: no header row")

// FieldCountError reports a data row wider than the header. The whole file is
// rejected: a wider row means the delimiter or quoting is not what we expect.
type FieldCountError struct {
	Line int
	Want int
	Got  int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("csv: line %d has %d fields, header has %d", e.Line, e.Got, e.Want)
}

// Opener is satisfied by file.Local.
type Opener interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ReadTable decodes src into a RawTable. It first reads the bytes through a
// strict UTF-8 validator; when that fails it reopens src and decodes with the
// fallback encoding. It returns the name of the encoding that worked.
//
// Only invalid UTF-8 is retried. Quoting, width and header failures do not
// depend on the encoding.
func ReadTable(ctx context.Context, src Opener, opts Options) (*transformer.RawTable, string, error) {
	tbl, err := readWith(ctx, src, opts, func(r io.Reader) io.Reader {
		return transform.NewReader(r, encoding.UTF8Validator)
	})
	if err == nil {
		return tbl, EncodingUTF8, nil
	}
	if !retryable(ctx, err) {
		return nil, "", err
	}

	enc, name, ferr := opts.fallback()
	if ferr != nil {
		return nil, "", fmt.Errorf("utf-8: %v; %w", err, ferr)
	}
	tbl, err2 := readWith(ctx, src, opts, func(r io.Reader) io.Reader {
		return enc.NewDecoder().Reader(r)
	})
	if err2 != nil {
		return nil, "", fmt.Errorf("utf-8: %v; %s: %w", err, name, err2)
	}
	return tbl, name, nil
}

func retryable(ctx context.Context, err error) bool {
	return ctx.Err() == nil && errors.Is(err, encoding.ErrInvalidUTF8)
}

// cancelCheckEvery bounds how often the row loop polls ctx.
const cancelCheckEvery = 4096

func readWith(ctx context.Context, src Opener, opts Options, wrap func(io.Reader) io.Reader) (*transformer.RawTable, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	cr := csv.NewReader(wrap(rc))
	cr.Comma = opts.comma()
	cr.LazyQuotes = opts.LazyQuotes
	cr.TrimLeadingSpace = opts.TrimSpace
	cr.FieldsPerRecord = -1 // width is checked against the header below

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header = StripHeaderBOM(header)

	tbl := &transformer.RawTable{Header: header}
	for line := 2; ; line++ {
		if line%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		if len(rec) > len(header) {
			return nil, &FieldCountError{Line: line, Want: len(header), Got: len(rec)}
		}
		tbl.Rows = append(tbl.Rows, rec)
	}
	return tbl, nil
}
